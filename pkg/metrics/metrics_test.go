package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewJobMetrics(reg)
	job := "reservation-expiry"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "stockhold_maintenance_job_success_total", "job", job); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "stockhold_maintenance_job_failure_total", "job", job); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "stockhold_maintenance_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestReservationMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReservationMetrics(reg)
	m.ObserveAdmission(OutcomeAdmitted, 10*time.Millisecond)
	m.ObserveAdmission(OutcomeAdmitted, 10*time.Millisecond)
	m.ObserveAdmission(OutcomeInsufficient, time.Millisecond)
	m.IncTransition("confirm", OutcomeApplied)
	m.IncGuardMiss("cancel")
	m.AddExpired(4)
	m.AddExpired(0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "stockhold_reservation_admissions_total", "outcome", OutcomeAdmitted); err != nil || got != 2 {
		t.Fatalf("expected admitted=2, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "stockhold_reservation_admissions_total", "outcome", OutcomeInsufficient); err != nil || got != 1 {
		t.Fatalf("expected insufficient=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "stockhold_reservation_transitions_total", "outcome", OutcomeApplied); err != nil || got != 1 {
		t.Fatalf("expected applied=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "stockhold_reservation_guard_misses_total", "operation", "cancel"); err != nil || got != 1 {
		t.Fatalf("expected guard miss=1, got %f (%v)", got, err)
	}
	mf := findMetricFamily(mfs, "stockhold_reservations_expired_total")
	if mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 4 {
		t.Fatalf("expected expired=4")
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var jobs *JobMetrics
	jobs.IncSuccess("x")
	var res *ReservationMetrics
	res.ObserveAdmission(OutcomeAdmitted, time.Second)
	res.AddExpired(3)
	NewReservationMetrics(nil).IncTransition("confirm", OutcomeConflict)
}

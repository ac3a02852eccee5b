package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Admission outcomes.
const (
	OutcomeAdmitted     = "admitted"
	OutcomeInsufficient = "insufficient"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
)

// Transition outcomes.
const (
	OutcomeApplied    = "applied"
	OutcomeIdempotent = "idempotent"
	OutcomeConflict   = "conflict"
)

// ReservationMetrics counts admission and lifecycle outcomes.
type ReservationMetrics struct {
	admissions    *prometheus.CounterVec
	admissionWait prometheus.Histogram
	transitions   *prometheus.CounterVec
	lostRaces     *prometheus.CounterVec
	expired       prometheus.Counter
}

// NewReservationMetrics registers the reservation metrics on reg. A nil
// registerer yields a no-op recorder.
func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockhold_reservation_admissions_total",
		Help: "Reservation admission attempts by outcome.",
	}, []string{"outcome"})
	admissionWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stockhold_reservation_admission_duration_seconds",
		Help:    "Time spent in the admission transaction, including item lock wait.",
		Buckets: prometheus.DefBuckets,
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockhold_reservation_transitions_total",
		Help: "Reservation lifecycle calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	lostRaces := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockhold_reservation_guard_misses_total",
		Help: "Guarded updates that affected zero rows and were reconciled.",
	}, []string{"operation"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stockhold_reservations_expired_total",
		Help: "Reservations moved to EXPIRED by expiry sweeps.",
	})
	reg.MustRegister(admissions, admissionWait, transitions, lostRaces, expired)
	return &ReservationMetrics{
		admissions:    admissions,
		admissionWait: admissionWait,
		transitions:   transitions,
		lostRaces:     lostRaces,
		expired:       expired,
	}
}

func (m *ReservationMetrics) ObserveAdmission(outcome string, duration time.Duration) {
	if m == nil || m.admissions == nil {
		return
	}
	m.admissions.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.admissionWait.Observe(duration.Seconds())
}

func (m *ReservationMetrics) IncTransition(operation, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (m *ReservationMetrics) IncGuardMiss(operation string) {
	if m == nil || m.lostRaces == nil {
		return
	}
	m.lostRaces.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *ReservationMetrics) AddExpired(n int) {
	if m == nil || m.expired == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

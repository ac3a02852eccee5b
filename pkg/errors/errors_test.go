package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeInsufficientQuantity, status: http.StatusConflict, publicMsg: "insufficient quantity available", detailsOK: true},
		{code: CodeInvalidTransition, status: http.StatusConflict, publicMsg: "reservation state transition not allowed", detailsOK: true},
		{code: CodeReservationExpired, status: http.StatusConflict, publicMsg: "reservation has expired", detailsOK: true},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error"},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeInvalidTransition, "already confirmed")
	if got := As(err); got == nil || got.Code() != CodeInvalidTransition {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpCapturesPgxError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout", TableName: "items"}
	err := Wrap(CodeDependency, pgErr, "lock item")

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if d.PGCode != "55P03" || d.PGTable != "items" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected chain of 2, got %d", len(d.Chain))
	}
}

func TestDumpCapturesPqError(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23503", Constraint: "reservations_item_id_fkey"})

	d := Dump(err)
	if d.PGCode != "23503" || d.PGConstraint != "reservations_item_id_fkey" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if d.Code != "" {
		t.Fatalf("expected no typed code, got %s", d.Code)
	}
}

func TestDumpLogFields(t *testing.T) {
	plain := Dump(New(CodeValidation, "bad quantity")).LogFields()
	if plain["error_code"] != CodeValidation {
		t.Fatalf("unexpected code field %v", plain["error_code"])
	}
	if _, ok := plain["pg_code"]; ok {
		t.Fatalf("pg fields should be absent without a postgres error: %v", plain)
	}

	pg := Dump(Wrap(CodeDependency, &pgconn.PgError{Code: "40P01", TableName: "reservations"}, "confirm")).LogFields()
	if pg["pg_code"] != "40P01" || pg["pg_table"] != "reservations" {
		t.Fatalf("unexpected pg fields %v", pg)
	}
	if _, ok := pg["pg_column"]; ok {
		t.Fatalf("empty pg fields should be omitted: %v", pg)
	}
}

package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "lock timeout", err: &pgconn.PgError{Code: "55P03"}, want: true},
		{name: "serialization", err: fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"}), want: true},
		{name: "deadlock pq", err: &pq.Error{Code: "40P01"}, want: true},
		{name: "connection class", err: &pgconn.PgError{Code: "08006"}, want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "sqlite busy", err: errors.New("database is locked"), want: true},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Fatalf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("expected pg fk violation to match")
	}
	if !IsForeignKeyViolation(errors.New("FOREIGN KEY constraint failed")) {
		t.Fatal("expected sqlite fk violation to match")
	}
	if IsForeignKeyViolation(errors.New("boom")) {
		t.Fatal("unexpected match")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(errors.New(`duplicate key value violates unique constraint "items_pkey"`), "") {
		t.Fatal("expected duplicate key text to match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503", Message: "duplicate key value"}, "") {
		t.Fatal("fk code must not be classified as unique violation")
	}
}

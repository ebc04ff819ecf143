package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"SRTrack/internal/attendance"
)

func TestSessionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
		ok   bool
	}{
		{"open session", &pgconn.PgError{Code: "23505", ConstraintName: openSessionIndex}, attendance.ErrOpenSessionExists, true},
		{"clock in token", &pgconn.PgError{Code: "23505", ConstraintName: clockInTokenIndex}, attendance.ErrReplayTokenExists, true},
		{"clock out token wrapped", fmt.Errorf("update: %w", &pgconn.PgError{Code: "23505", ConstraintName: clockOutTokenIndex}), attendance.ErrReplayTokenExists, true},
		{"other unique index", &pgconn.PgError{Code: "23505", ConstraintName: "idx_other"}, nil, false},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: openSessionIndex}, nil, false},
		{"plain error", errors.New("connection refused"), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sessionConflict(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUniqueViolationTranslated(t *testing.T) {
	name, ok := uniqueViolation(gorm.ErrDuplicatedKey)
	assert.True(t, ok)
	assert.Empty(t, name)
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(gorm.ErrRecordNotFound), attendance.ErrNotFound)
	other := errors.New("boom")
	assert.Equal(t, other, notFound(other))
}

package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"SRTrack/internal/attendance"
)

const pgUniqueViolation = "23505"

// uniqueViolation reports whether err is a unique constraint hit and, when
// the driver tells us, which index fired.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	return "", false
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return attendance.ErrNotFound
	}
	return err
}

// sessionConflict maps a unique violation on attendance_sessions to the
// matching store error. ok is false for any other error.
func sessionConflict(err error) (error, bool) {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return nil, false
	}
	switch constraint {
	case openSessionIndex:
		return attendance.ErrOpenSessionExists, true
	case clockInTokenIndex, clockOutTokenIndex:
		return attendance.ErrReplayTokenExists, true
	}
	return nil, false
}

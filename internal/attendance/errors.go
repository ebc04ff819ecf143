package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Precondition failures. These are deterministic and shown to the user as is.
var (
	ErrNotRegistered    = errors.New("you are not registered")
	ErrAlreadyClockedIn = errors.New("you are already clocked in")
	ErrNotClockedIn     = errors.New("you are not currently clocked in")
	ErrPastCutoff       = errors.New("cannot clock in after the daily cutoff")
	ErrInvalidDuration  = errors.New("clock out time must be after clock in time")
)

// ErrDuplicateReplay means the triggering update was already processed.
var ErrDuplicateReplay = errors.New("this action has already been processed")

// Errors a Store returns so the engine can tell constraint hits apart from
// infrastructure failures.
var (
	ErrNotFound          = errors.New("record not found")
	ErrOpenSessionExists = errors.New("trainee already has an open session")
	ErrReplayTokenExists = errors.New("replay token already used")
	ErrSessionNotOpen    = errors.New("session is no longer open")
	ErrDuplicateRecord   = errors.New("record already exists")
)

type ErrorKind int

const (
	KindInfrastructure ErrorKind = iota
	KindValidation
	KindReplay
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindReplay:
		return "replay"
	default:
		return "infrastructure"
	}
}

func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrDuplicateReplay):
		return KindReplay
	case errors.Is(err, ErrNotRegistered),
		errors.Is(err, ErrAlreadyClockedIn),
		errors.Is(err, ErrNotClockedIn),
		errors.Is(err, ErrPastCutoff),
		errors.Is(err, ErrInvalidDuration):
		return KindValidation
	}
	return KindInfrastructure
}

// Retryable reports whether the caller may safely retry the same trigger.
func Retryable(err error) bool {
	return err != nil && KindOf(err) == KindInfrastructure
}

func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// IntegrityError reports more than one open session for a trainee. The
// newest one is used and the rest are listed here.
type IntegrityError struct {
	TraineeID  string
	SessionIDs []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("trainee %s has %d extra open sessions: %s",
		e.TraineeID, len(e.SessionIDs), strings.Join(e.SessionIDs, ","))
}

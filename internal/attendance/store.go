package attendance

import (
	"context"
	"time"
)

// Store is the persistence contract shared by the engine, the sweep and the
// dispatcher. Implementations must enforce the uniqueness rules themselves:
//   - one open session per trainee (ErrOpenSessionExists)
//   - one session per replay token (ErrReplayTokenExists)
//   - one notification per (commander, trainee, kind, date) (ErrDuplicateRecord)
type Store interface {
	TraineeStore
	SessionStore
	CommanderStore
	NotificationStore
}

type TraineeStore interface {
	// TraineeByTelegramID returns only active trainees.
	TraineeByTelegramID(ctx context.Context, telegramUserID int64) (*Trainee, error)
	TraineeByID(ctx context.Context, id string) (*Trainee, error)
	CreateTrainee(ctx context.Context, t *Trainee) error
	IdentificationNumberTaken(ctx context.Context, number string) (bool, error)
}

type SessionStore interface {
	// OpenSessions lists IN sessions with no clock out, newest clock in first.
	OpenSessions(ctx context.Context, traineeID string) ([]Session, error)
	LatestSession(ctx context.Context, traineeID string) (*Session, error)
	// SessionByReplayToken matches both the clock in and the clock out token.
	SessionByReplayToken(ctx context.Context, token string) (*Session, error)
	CreateSession(ctx context.Context, s *Session) error
	// CloseSession moves an open session to OUT. It returns ErrSessionNotOpen
	// when the row was closed by someone else first.
	CloseSession(ctx context.Context, sessionID string, at time.Time, token string) error
	OverdueCandidates(ctx context.Context, date string) ([]OverdueCandidate, error)
	// MarkOverdue flips the flag and reports whether this call changed it.
	MarkOverdue(ctx context.Context, sessionID string) (bool, error)
	SessionsByDate(ctx context.Context, date string, company Company) ([]SessionView, error)
}

type CommanderStore interface {
	ActiveCommanders(ctx context.Context, company Company) ([]Commander, error)
	ActiveAdmins(ctx context.Context) ([]Commander, error)
	UpsertCommander(ctx context.Context, c *Commander) error
}

type NotificationStore interface {
	NotificationExists(ctx context.Context, commanderID, traineeID string, kind NotificationKind, date string) (bool, error)
	// RecordNotification returns ErrDuplicateRecord when the ledger already
	// holds the key.
	RecordNotification(ctx context.Context, r *NotificationRecord) error
}

// Clock is the time authority seen by the domain.
type Clock interface {
	Now() time.Time
	DateOf(t time.Time) string
	PastCutoffAt(t time.Time) bool
}

// Notifier is called after a successful state change.
type Notifier interface {
	NotifyCommanders(ctx context.Context, trainee Trainee, kind NotificationKind, at time.Time) error
}

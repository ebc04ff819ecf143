package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inconshreveable/log15/v3"
)

const defaultStoreTimeout = 5 * time.Second

// Engine is the single implementation of the clock in/out rules. Every
// trigger surface goes through it.
type Engine struct {
	store        Store
	clock        Clock
	notifier     Notifier
	log          log15.Logger
	storeTimeout time.Duration
}

type Option func(*Engine)

func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.storeTimeout = d
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func NewEngine(store Store, clock Clock, log log15.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		clock:        clock,
		log:          log,
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type Result struct {
	Trainee Trainee
	Session Session
}

type StatusReport struct {
	Status Status
	// Session is the open session when Status is IN, otherwise the most
	// recent closed one (nil when the trainee never clocked in).
	Session *Session
	// Conflicts holds open sessions beyond the newest one.
	Conflicts []Session
}

func (e *Engine) ClockIn(ctx context.Context, telegramUserID int64, token string) (*Result, error) {
	trainee, err := e.trainee(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}

	if err := e.checkReplay(ctx, token); err != nil {
		return nil, err
	}

	open, err := e.openSessions(ctx, trainee.ID)
	if err != nil {
		return nil, err
	}
	if len(open) > 0 {
		return nil, ErrAlreadyClockedIn
	}

	now := e.clock.Now()
	if e.clock.PastCutoffAt(now) {
		return nil, ErrPastCutoff
	}

	session := Session{
		TraineeID:   trainee.ID,
		ClockIn:     now,
		Status:      StatusIn,
		Date:        e.clock.DateOf(now),
		Overdue:     false,
		ReplayToken: token,
	}

	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	err = e.store.CreateSession(sctx, &session)
	cancel()
	switch {
	case errors.Is(err, ErrReplayTokenExists):
		return nil, ErrDuplicateReplay
	case errors.Is(err, ErrOpenSessionExists):
		return nil, ErrAlreadyClockedIn
	case err != nil:
		return nil, fmt.Errorf("ClockIn: failed to create session for trainee %s: %w", trainee.ID, err)
	}

	e.log.Info("Trainee clocked in", "trainee", trainee.ID, "session", session.ID, "date", session.Date)
	e.notify(ctx, *trainee, KindClockIn, session.ClockIn)

	return &Result{Trainee: *trainee, Session: session}, nil
}

func (e *Engine) ClockOut(ctx context.Context, telegramUserID int64, token string) (*Result, error) {
	trainee, err := e.trainee(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}

	if err := e.checkReplay(ctx, token); err != nil {
		return nil, err
	}

	open, err := e.openSessions(ctx, trainee.ID)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, ErrNotClockedIn
	}
	session := open[0]

	now := e.clock.Now()
	if !now.After(session.ClockIn) {
		return nil, ErrInvalidDuration
	}

	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	err = e.store.CloseSession(sctx, session.ID, now, token)
	cancel()
	switch {
	case errors.Is(err, ErrReplayTokenExists):
		return nil, ErrDuplicateReplay
	case errors.Is(err, ErrSessionNotOpen):
		// Lost a race. If it was our own redelivery, say so.
		if dup := e.checkReplay(ctx, token); dup != nil {
			return nil, dup
		}
		return nil, ErrNotClockedIn
	case err != nil:
		return nil, fmt.Errorf("ClockOut: failed to close session %s: %w", session.ID, err)
	}

	session.ClockOut = &now
	session.Status = StatusOut
	session.ClockOutToken = token

	e.log.Info("Trainee clocked out", "trainee", trainee.ID, "session", session.ID, "duration", session.Duration())
	e.notify(ctx, *trainee, KindClockOut, now)

	return &Result{Trainee: *trainee, Session: session}, nil
}

func (e *Engine) GetStatus(ctx context.Context, telegramUserID int64) (*StatusReport, error) {
	trainee, err := e.trainee(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}

	open, err := e.openSessions(ctx, trainee.ID)
	if err != nil {
		return nil, err
	}
	if len(open) > 0 {
		s := open[0]
		return &StatusReport{Status: StatusIn, Session: &s, Conflicts: open[1:]}, nil
	}

	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	last, err := e.store.LatestSession(sctx, trainee.ID)
	if errors.Is(err, ErrNotFound) {
		return &StatusReport{Status: StatusOut}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetStatus: failed to load latest session for trainee %s: %w", trainee.ID, err)
	}
	return &StatusReport{Status: StatusOut, Session: last}, nil
}

// Trainee resolves an active trainee by Telegram identity.
func (e *Engine) Trainee(ctx context.Context, telegramUserID int64) (*Trainee, error) {
	return e.trainee(ctx, telegramUserID)
}

func (e *Engine) trainee(ctx context.Context, telegramUserID int64) (*Trainee, error) {
	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	t, err := e.store.TraineeByTelegramID(sctx, telegramUserID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("trainee lookup for telegram user %d: %w", telegramUserID, err)
	}
	if !t.Active {
		return nil, ErrNotRegistered
	}
	return t, nil
}

func (e *Engine) checkReplay(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	_, err := e.store.SessionByReplayToken(sctx, token)
	switch {
	case err == nil:
		return ErrDuplicateReplay
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return fmt.Errorf("replay lookup for token %s: %w", token, err)
	}
}

func (e *Engine) openSessions(ctx context.Context, traineeID string) ([]Session, error) {
	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	open, err := e.store.OpenSessions(sctx, traineeID)
	if err != nil {
		return nil, fmt.Errorf("open session lookup for trainee %s: %w", traineeID, err)
	}
	if len(open) > 1 {
		ids := make([]string, 0, len(open)-1)
		for _, s := range open[1:] {
			ids = append(ids, s.ID)
		}
		ierr := &IntegrityError{TraineeID: traineeID, SessionIDs: ids}
		e.log.Error("Multiple open sessions found", "trainee", traineeID, "using", open[0].ID, "err", ierr)
	}
	return open, nil
}

func (e *Engine) notify(ctx context.Context, trainee Trainee, kind NotificationKind, at time.Time) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyCommanders(ctx, trainee, kind, at); err != nil {
		e.log.Warn("Commander notification incomplete", "trainee", trainee.ID, "kind", kind, "err", err)
	}
}

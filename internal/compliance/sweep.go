package compliance

import (
	"context"
	"fmt"
	"time"

	"SRTrack/internal/attendance"

	"github.com/inconshreveable/log15/v3"
	"go.uber.org/multierr"
)

type Store interface {
	OverdueCandidates(ctx context.Context, date string) ([]attendance.OverdueCandidate, error)
	MarkOverdue(ctx context.Context, sessionID string) (bool, error)
}

// Sweeper promotes sessions still open at the cutoff to overdue.
type Sweeper struct {
	store        Store
	clock        attendance.Clock
	notifier     attendance.Notifier
	log          log15.Logger
	storeTimeout time.Duration
}

func NewSweeper(store Store, clock attendance.Clock, notifier attendance.Notifier, log log15.Logger, storeTimeout time.Duration) *Sweeper {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Sweeper{store: store, clock: clock, notifier: notifier, log: log, storeTimeout: storeTimeout}
}

type Report struct {
	Date string `json:"date"`
	// Skipped is set when the sweep ran before the cutoff and did nothing.
	Skipped   bool     `json:"skipped"`
	Found     int      `json:"found"`
	Processed int      `json:"processed"`
	Marked    int      `json:"marked"`
	Notified  int      `json:"notified"`
	Errors    []string `json:"errors,omitempty"`
	Err       error    `json:"-"`
}

// CheckAndMarkOverdue flags today's open sessions and notifies commanders.
// Running it again the same day finds nothing left to do.
func (s *Sweeper) CheckAndMarkOverdue(ctx context.Context) Report {
	now := s.clock.Now()
	report := Report{Date: s.clock.DateOf(now)}

	if !s.clock.PastCutoffAt(now) {
		report.Skipped = true
		s.log.Info("Overdue sweep skipped, cutoff not reached", "date", report.Date, "now", now.Format("15:04"))
		return report
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	candidates, err := s.store.OverdueCandidates(sctx, report.Date)
	cancel()
	if err != nil {
		report.Err = fmt.Errorf("CheckAndMarkOverdue: failed to fetch open sessions for %s: %w", report.Date, err)
		report.Errors = []string{report.Err.Error()}
		s.log.Error("Overdue sweep failed", "date", report.Date, "err", err)
		return report
	}
	report.Found = len(candidates)

	for _, c := range candidates {
		report.Processed++

		sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		changed, err := s.store.MarkOverdue(sctx, c.Session.ID)
		cancel()
		if err != nil {
			report.Err = multierr.Append(report.Err, fmt.Errorf("mark session %s: %w", c.Session.ID, err))
			continue
		}
		if !changed {
			// Another sweep or a clock out got there first.
			continue
		}
		report.Marked++

		if s.notifier == nil {
			continue
		}
		if err := s.notifier.NotifyCommanders(ctx, c.Trainee, attendance.KindOverdue, now); err != nil {
			report.Err = multierr.Append(report.Err, fmt.Errorf("notify for session %s: %w", c.Session.ID, err))
			continue
		}
		report.Notified++
	}

	for _, err := range multierr.Errors(report.Err) {
		report.Errors = append(report.Errors, err.Error())
	}

	s.log.Info("Overdue sweep finished", "date", report.Date, "found", report.Found,
		"marked", report.Marked, "notified", report.Notified, "errors", len(report.Errors))
	return report
}

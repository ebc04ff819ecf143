package scheduler

import (
	"context"
	"fmt"
	"time"

	"SRTrack/internal/compliance"

	"github.com/inconshreveable/log15/v3"
	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "5 22 * * *"

type Sweeper interface {
	CheckAndMarkOverdue(ctx context.Context) compliance.Report
}

// Scheduler runs the overdue sweep on a cron schedule in local time.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	log     log15.Logger
}

func New(sweeper Sweeper, loc *time.Location, log log15.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger{log: log}))),
		sweeper: sweeper,
		timeout: 2 * time.Minute,
		log:     log,
	}
}

func (s *Scheduler) Schedule(spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := s.cron.AddFunc(spec, s.runSweep); err != nil {
		return fmt.Errorf("Schedule: invalid schedule %q: %w", spec, err)
	}
	s.log.Info("Overdue sweep scheduled", "schedule", spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started...")
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stop timed out")
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report := s.sweeper.CheckAndMarkOverdue(ctx)
	if report.Err != nil {
		s.log.Error("Scheduled sweep finished with errors", "date", report.Date, "errors", len(report.Errors), "err", report.Err)
	}
}

type cronLogger struct {
	log log15.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "err", err)...)
}

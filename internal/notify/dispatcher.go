package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SRTrack/internal/attendance"

	"github.com/inconshreveable/log15/v3"
	"go.uber.org/multierr"
)

// Sender delivers a text to a Telegram chat. Delivery is best effort.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type Store interface {
	attendance.CommanderStore
	attendance.NotificationStore
}

type Clock interface {
	attendance.Clock
	Location() *time.Location
	CutoffHour() int
}

type Config struct {
	// ZoneLabel is printed after times in messages.
	ZoneLabel string
	// AdminKinds are the kinds that also go to every active admin.
	AdminKinds   []attendance.NotificationKind
	StoreTimeout time.Duration
}

type Dispatcher struct {
	store        Store
	sender       Sender
	clock        Clock
	log          log15.Logger
	zone         string
	adminKinds   map[attendance.NotificationKind]bool
	storeTimeout time.Duration
}

var _ attendance.Notifier = (*Dispatcher)(nil)

func NewDispatcher(store Store, sender Sender, clock Clock, log log15.Logger, cfg Config) *Dispatcher {
	d := &Dispatcher{
		store:        store,
		sender:       sender,
		clock:        clock,
		log:          log,
		zone:         cfg.ZoneLabel,
		adminKinds:   make(map[attendance.NotificationKind]bool),
		storeTimeout: cfg.StoreTimeout,
	}
	if d.zone == "" {
		d.zone = "SGT"
	}
	if d.storeTimeout <= 0 {
		d.storeTimeout = 5 * time.Second
	}
	for _, k := range cfg.AdminKinds {
		d.adminKinds[k] = true
	}
	return d
}

type Report struct {
	Recipients int
	Sent       int
	// Skipped counts recipients already present in the ledger.
	Skipped int
	// Unreachable counts recipients recorded but without a Telegram id.
	Unreachable int
	// SendFailures counts recorded notifications whose delivery failed.
	SendFailures int
	Err          error
}

func (d *Dispatcher) NotifyCommanders(ctx context.Context, trainee attendance.Trainee, kind attendance.NotificationKind, at time.Time) error {
	return d.Dispatch(ctx, trainee, kind, at).Err
}

// Dispatch notifies every recipient of the trainee's company at most once
// per kind and day. A failure for one recipient never stops the others.
func (d *Dispatcher) Dispatch(ctx context.Context, trainee attendance.Trainee, kind attendance.NotificationKind, at time.Time) Report {
	var report Report

	recipients, err := d.recipients(ctx, trainee.Company, kind)
	report.Err = multierr.Append(report.Err, err)
	report.Recipients = len(recipients)
	if len(recipients) == 0 {
		return report
	}

	date := d.clock.DateOf(d.clock.Now())
	message := Compose(kind, trainee, at, d.clock.Location(), d.zone, d.clock.CutoffHour())

	for _, c := range recipients {
		out, err := d.notifyOne(ctx, c, trainee, kind, date, message)
		switch {
		case err != nil:
			report.Err = multierr.Append(report.Err, err)
		case out == outcomeSkipped:
			report.Skipped++
		case out == outcomeUnreachable:
			report.Unreachable++
		case out == outcomeSendFailed:
			report.SendFailures++
		default:
			report.Sent++
		}
	}

	d.log.Info("Commanders notified", "trainee", trainee.ID, "kind", kind, "date", date,
		"recipients", report.Recipients, "sent", report.Sent, "skipped", report.Skipped,
		"unreachable", report.Unreachable, "send_failures", report.SendFailures)
	return report
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeUnreachable
	outcomeSendFailed
)

func (d *Dispatcher) notifyOne(ctx context.Context, c attendance.Commander, trainee attendance.Trainee, kind attendance.NotificationKind, date, message string) (outcome, error) {
	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	exists, err := d.store.NotificationExists(sctx, c.ID, trainee.ID, kind, date)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("notifyOne: ledger lookup for commander %s: %w", c.ID, err)
	}
	if exists {
		return outcomeSkipped, nil
	}

	// The ledger row is the dedup decision; only the caller that wrote it
	// goes on to send.
	record := attendance.NotificationRecord{
		CommanderID: c.ID,
		TraineeID:   trainee.ID,
		Kind:        kind,
		Date:        date,
		Message:     message,
		CreatedAt:   d.clock.Now(),
	}
	sctx, cancel = context.WithTimeout(ctx, d.storeTimeout)
	err = d.store.RecordNotification(sctx, &record)
	cancel()
	if errors.Is(err, attendance.ErrDuplicateRecord) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return 0, fmt.Errorf("notifyOne: ledger write for commander %s: %w", c.ID, err)
	}

	if c.TelegramUserID == nil {
		d.log.Warn("Commander has no Telegram id, notification recorded only", "commander", c.ID, "kind", kind)
		return outcomeUnreachable, nil
	}

	if err := d.sender.Send(ctx, *c.TelegramUserID, message); err != nil {
		d.log.Warn("Failed to deliver notification", "commander", c.ID, "kind", kind, "err", err)
		return outcomeSendFailed, nil
	}
	return outcomeSent, nil
}

func (d *Dispatcher) recipients(ctx context.Context, company attendance.Company, kind attendance.NotificationKind) ([]attendance.Commander, error) {
	var errs error

	sctx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	commanders, err := d.store.ActiveCommanders(sctx, company)
	cancel()
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("recipients: commanders of company %s: %w", company, err))
	}

	if !d.adminKinds[kind] {
		return commanders, errs
	}

	sctx, cancel = context.WithTimeout(ctx, d.storeTimeout)
	admins, err := d.store.ActiveAdmins(sctx)
	cancel()
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("recipients: admins: %w", err))
	}

	seen := make(map[string]bool, len(commanders))
	for _, c := range commanders {
		seen[c.ID] = true
	}
	for _, a := range admins {
		if !seen[a.ID] {
			seen[a.ID] = true
			commanders = append(commanders, a)
		}
	}
	return commanders, errs
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"SRTrack/internal/attendance"
	"SRTrack/internal/compliance"
	"SRTrack/internal/telegram"

	"github.com/inconshreveable/log15/v3"
)

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u telegram.Update) error
}

type Sweeper interface {
	CheckAndMarkOverdue(ctx context.Context) compliance.Report
}

type SessionLister interface {
	SessionsByDate(ctx context.Context, date string, company attendance.Company) ([]attendance.SessionView, error)
}

type WebhookSetter interface {
	SetWebhook(ctx context.Context, webhookURL, secret string) error
}

type Clock interface {
	attendance.Clock
	Location() *time.Location
}

type Config struct {
	WebhookSecret string
	WebhookURL    string
	CronSecret    string
	APIToken      string
}

// Handlers serves every HTTP trigger surface.
type Handlers struct {
	bot      UpdateHandler
	sweeper  Sweeper
	sessions SessionLister
	webhooks WebhookSetter
	clock    Clock
	cfg      Config
	log      log15.Logger
}

func NewHandlers(bot UpdateHandler, sweeper Sweeper, sessions SessionLister, webhooks WebhookSetter, clock Clock, cfg Config, log log15.Logger) *Handlers {
	return &Handlers{
		bot:      bot,
		sweeper:  sweeper,
		sessions: sessions,
		webhooks: webhooks,
		clock:    clock,
		cfg:      cfg,
		log:      log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// storeErrorStatus maps infrastructure failures to a status callers may
// retry on.
func storeErrorStatus(err error) int {
	if attendance.IsTimeout(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"SRTrack/internal/telegram"

	"github.com/hibiken/asynq"
	"github.com/inconshreveable/log15/v3"
)

type Deliverer interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type Handler struct {
	deliverer Deliverer
	log       log15.Logger
}

func NewHandler(deliverer Deliverer, log log15.Logger) *Handler {
	return &Handler{deliverer: deliverer, log: log}
}

func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload MessagePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.Error("Payload decode error", "type", t.Type(), "err", err)
		return fmt.Errorf("ProcessTask: %v: %w", err, asynq.SkipRetry)
	}

	err := h.deliverer.Send(ctx, payload.ChatID, payload.Text)
	if err == nil {
		h.log.Debug("Message delivered", "chat", payload.ChatID)
		return nil
	}

	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) && apiErr.Code < http.StatusInternalServerError && apiErr.Code != http.StatusTooManyRequests {
		// The chat is gone or blocked the bot; retrying will not help.
		h.log.Warn("Message rejected by Telegram", "chat", payload.ChatID, "code", apiErr.Code, "err", apiErr.Description)
		return fmt.Errorf("ProcessTask: %v: %w", err, asynq.SkipRetry)
	}
	h.log.Warn("Message delivery failed, will retry", "chat", payload.ChatID, "err", err)
	return fmt.Errorf("ProcessTask: %w", err)
}

func NewServeMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeSendMessage, h)
	return mux
}

// NewServer builds the worker that drains queued messages.
func NewServer(opt asynq.RedisConnOpt, log log15.Logger) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"notifications": 1},
		Logger:      asynqLogger{log: log},
	})
}

type asynqLogger struct {
	log log15.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.log.Crit(fmt.Sprint(args...)) }

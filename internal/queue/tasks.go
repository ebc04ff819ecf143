package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"SRTrack/utils"

	"github.com/hibiken/asynq"
	"github.com/inconshreveable/log15/v3"
)

const TypeSendMessage = "telegram:send_message"

type MessagePayload struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

func NewSendMessageTask(chatID int64, text string) (*asynq.Task, error) {
	payload, err := json.Marshal(MessagePayload{ChatID: chatID, Text: text})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSendMessage, payload), nil
}

func ParseRedisURI(uri string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(uri)
	if err != nil {
		return nil, fmt.Errorf("ParseRedisURI: %w", err)
	}
	return opt, nil
}

type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Sender hands messages to the worker instead of calling Telegram inline.
type Sender struct {
	client   Enqueuer
	log      log15.Logger
	maxRetry int
	queue    string
}

func NewSender(client Enqueuer, log log15.Logger) *Sender {
	return &Sender{client: client, log: log, maxRetry: 5, queue: "notifications"}
}

func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	task, err := NewSendMessageTask(chatID, text)
	if err != nil {
		return fmt.Errorf("Send: failed to build task: %w", err)
	}

	id := utils.Hash(strconv.FormatInt(chatID, 10) + "\n" + text)
	info, err := s.client.EnqueueContext(ctx, task,
		asynq.TaskID(id),
		asynq.MaxRetry(s.maxRetry),
		asynq.Queue(s.queue),
		asynq.Timeout(30*time.Second),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		s.log.Debug("Message already queued", "chat", chatID, "task", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("Send: failed to enqueue message for chat %d: %w", chatID, err)
	}
	s.log.Debug("Message queued", "chat", chatID, "task", info.ID, "queue", info.Queue)
	return nil
}

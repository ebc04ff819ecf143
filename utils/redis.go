package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNoState = errors.New("no registration in progress")

func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("NewRedisClient: failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("NewRedisClient: redis connection failed: %w", err)
	}
	return client, nil
}

// RegistrationState is the persisted progress of one user's registration.
type RegistrationState struct {
	Step      string            `json:"step"`
	Data      map[string]string `json:"data"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type RegistrationStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRegistrationStore(client *redis.Client, ttl time.Duration) *RegistrationStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RegistrationStore{client: client, ttl: ttl}
}

func registrationKey(telegramUserID int64) string {
	return fmt.Sprintf("registration:%d", telegramUserID)
}

func (s *RegistrationStore) TTL() time.Duration { return s.ttl }

func (s *RegistrationStore) Save(ctx context.Context, telegramUserID int64, state RegistrationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	ttl := s.ttl
	if !state.ExpiresAt.IsZero() {
		ttl = time.Until(state.ExpiresAt)
		if ttl <= 0 {
			return s.Delete(ctx, telegramUserID)
		}
	}
	return s.client.Set(ctx, registrationKey(telegramUserID), data, ttl).Err()
}

func (s *RegistrationStore) Get(ctx context.Context, telegramUserID int64) (*RegistrationState, error) {
	val, err := s.client.Get(ctx, registrationKey(telegramUserID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, err
	}

	var state RegistrationState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RegistrationStore) Delete(ctx context.Context, telegramUserID int64) error {
	return s.client.Del(ctx, registrationKey(telegramUserID)).Err()
}

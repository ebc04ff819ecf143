package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/jpillora/backoff"
)

const defaultBaseURL = "https://api.telegram.org"

// APIError is a non-retryable rejection from the Bot API.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: telegram responded %d: %s", e.Method, e.Code, e.Description)
}

// Client talks to the Telegram Bot API. It retries rate limits, 5xx and
// transport failures with backoff.
type Client struct {
	token       string
	baseURL     string
	http        *http.Client
	log         log15.Logger
	maxAttempts int
	minWait     time.Duration
	maxWait     time.Duration
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func WithRetry(attempts int, min, max time.Duration) ClientOption {
	return func(c *Client) {
		c.maxAttempts = attempts
		c.minWait = min
		c.maxWait = max
	}
}

func NewClient(token string, log log15.Logger, opts ...ClientOption) *Client {
	c := &Client{
		token:       token,
		baseURL:     defaultBaseURL,
		http:        &http.Client{Timeout: 10 * time.Second},
		log:         log,
		maxAttempts: 3,
		minWait:     500 * time.Millisecond,
		maxWait:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) error {
	return c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text, ReplyMarkup: markup})
}

// Send delivers a plain text message.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	return c.SendMessage(ctx, chatID, text, nil)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: callbackQueryID})
}

func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	return c.call(ctx, "setWebhook", setWebhookRequest{
		URL:            webhookURL,
		SecretToken:    secret,
		AllowedUpdates: []string{"message", "callback_query"},
	})
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal request: %w", method, err)
	}

	b := &backoff.Backoff{Min: c.minWait, Max: c.maxWait, Factor: 2, Jitter: true}
	for attempt := 1; ; attempt++ {
		retryAfter, retry, err := c.do(ctx, method, body)
		if err == nil {
			return nil
		}
		if !retry || attempt >= c.maxAttempts {
			return err
		}

		wait := b.Duration()
		if retryAfter > wait {
			wait = retryAfter
		}
		c.log.Debug("Retrying Telegram call", "method", method, "attempt", attempt, "wait", wait, "err", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", method, ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (c *Client) do(ctx context.Context, method string, body []byte) (time.Duration, bool, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, false, fmt.Errorf("%s: failed to create request: %w", method, redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		retry := ctx.Err() == nil
		return 0, retry, fmt.Errorf("%s: request failed: %w", method, redact(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, true, fmt.Errorf("%s: failed to read response: %w", method, err)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode == http.StatusOK {
		return 0, false, fmt.Errorf("%s: failed to decode response: %w", method, err)
	}
	if resp.StatusCode == http.StatusOK && out.OK {
		return 0, false, nil
	}

	apiErr := &APIError{Method: method, Code: resp.StatusCode, Description: out.Description}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		var wait time.Duration
		if out.Parameters != nil {
			wait = time.Duration(out.Parameters.RetryAfter) * time.Second
		}
		return wait, true, apiErr
	case resp.StatusCode >= http.StatusInternalServerError:
		return 0, true, apiErr
	default:
		return 0, false, apiErr
	}
}

// redact keeps the bot token out of logged URLs.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = "[redacted]"
	}
	return err
}

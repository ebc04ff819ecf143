package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"SRTrack/internal/attendance/attendancetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("TOKEN", attendancetest.Logger(),
		WithBaseURL(srv.URL), WithRetry(3, time.Millisecond, 5*time.Millisecond))
}

func TestSendMessage(t *testing.T) {
	var got sendMessageRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	err := client.SendMessage(context.Background(), 42, "hello", clockInKeyboard())
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "hello", got.Text)
	require.NotNil(t, got.ReplyMarkup)
	assert.Equal(t, callbackClockIn, got.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"ok":false,"error_code":502,"description":"Bad Gateway"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, client.Send(context.Background(), 1, "x"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientRetriesRateLimit(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":0}}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, client.Send(context.Background(), 1, "x"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	})

	err := client.Send(context.Background(), 1, "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Code)
	assert.Contains(t, apiErr.Description, "chat not found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	assert.Error(t, client.Send(context.Background(), 1, "x"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientErrorsHideToken(t *testing.T) {
	client := NewClient("SECRET-TOKEN", attendancetest.Logger(),
		WithBaseURL("http://127.0.0.1:1"), WithRetry(1, time.Millisecond, time.Millisecond))

	err := client.Send(context.Background(), 1, "x")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
}

func TestSetWebhook(t *testing.T) {
	var got setWebhookRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/setWebhook", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true,"result":true}`))
	})

	require.NoError(t, client.SetWebhook(context.Background(), "https://example.com/telegram/webhook", "s3cret"))
	assert.Equal(t, "https://example.com/telegram/webhook", got.URL)
	assert.Equal(t, "s3cret", got.SecretToken)
	assert.ElementsMatch(t, []string{"message", "callback_query"}, got.AllowedUpdates)
}

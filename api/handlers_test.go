package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SRTrack/internal/attendance"
	"SRTrack/internal/attendance/attendancetest"
	"SRTrack/internal/compliance"
	"SRTrack/internal/telegram"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "0123456789abcdef0123456789abcdef"

type fakeBot struct {
	updates []telegram.Update
	err     error
}

func (f *fakeBot) HandleUpdate(ctx context.Context, u telegram.Update) error {
	f.updates = append(f.updates, u)
	return f.err
}

type fakeWebhooks struct {
	url, secret string
	err         error
}

func (f *fakeWebhooks) SetWebhook(ctx context.Context, url, secret string) error {
	f.url, f.secret = url, secret
	return f.err
}

type apiFixture struct {
	store    *attendancetest.MemStore
	clock    *attendancetest.ManualClock
	engine   *attendance.Engine
	bot      *fakeBot
	webhooks *fakeWebhooks
	router   http.Handler
}

func newAPIFixture(t *testing.T, local string) *apiFixture {
	t.Helper()
	log := attendancetest.Logger()
	store := attendancetest.NewMemStore()
	clock := attendancetest.NewClock(t, local)
	f := &apiFixture{
		store:    store,
		clock:    clock,
		engine:   attendance.NewEngine(store, clock, log),
		bot:      &fakeBot{},
		webhooks: &fakeWebhooks{},
	}

	sweeper := compliance.NewSweeper(store, clock, nil, log, time.Second)
	h := NewHandlers(f.bot, sweeper, store, f.webhooks, clock, Config{
		WebhookSecret: webhookSecret,
		WebhookURL:    "https://srtrack.example.com/",
		CronSecret:    "cron-secret",
		APIToken:      "api-token",
	}, log)

	r := chi.NewRouter()
	r.Get("/health", h.HandleHealthCheck)
	r.Post(WebhookPath, h.HandleTelegramWebhook)
	r.With(h.RequireCronSecret()).Get("/cron/compliance-check", h.HandleComplianceCheck)
	r.With(h.RequireAPIToken()).Get("/api/attendance", h.HandleListAttendance)
	r.With(h.RequireAPIToken()).Post("/api/telegram/set-webhook", h.HandleSetWebhook)
	f.router = r
	return f
}

func (f *apiFixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) addTrainee(telegramID int64, name string, company attendance.Company) {
	f.store.AddTrainee(attendance.Trainee{
		TelegramUserID: telegramID, Rank: "PTE", FullName: name,
		IdentificationNumber: name + "-id", Company: company, Active: true,
	})
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, "2025-03-10 08:00")
	rec := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook(t *testing.T) {
	secret := map[string]string{webhookSecretHeader: webhookSecret}
	update := `{"update_id":77,"callback_query":{"id":"q","from":{"id":5},"data":"clock_in","message":{"message_id":1,"chat":{"id":5}}}}`

	t.Run("rejects bad secret", func(t *testing.T) {
		f := newAPIFixture(t, "2025-03-10 08:00")
		rec := f.do(http.MethodPost, WebhookPath, update, map[string]string{webhookSecretHeader: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, f.bot.updates)
	})

	t.Run("rejects missing update id", func(t *testing.T) {
		f := newAPIFixture(t, "2025-03-10 08:00")
		rec := f.do(http.MethodPost, WebhookPath, `{"message":{}}`, secret)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("dispatches update", func(t *testing.T) {
		f := newAPIFixture(t, "2025-03-10 08:00")
		rec := f.do(http.MethodPost, WebhookPath, update, secret)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, f.bot.updates, 1)
		assert.Equal(t, int64(77), f.bot.updates[0].UpdateID)
		assert.Equal(t, "clock_in", f.bot.updates[0].CallbackQuery.Data)
	})

	t.Run("asks for redelivery on failure", func(t *testing.T) {
		f := newAPIFixture(t, "2025-03-10 08:00")
		f.bot.err = context.DeadlineExceeded
		rec := f.do(http.MethodPost, WebhookPath, update, secret)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestComplianceCheck(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer cron-secret"}

	t.Run("requires secret", func(t *testing.T) {
		f := newAPIFixture(t, "2025-03-10 22:05")
		rec := f.do(http.MethodGet, "/cron/compliance-check", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("skips before cutoff", func(t *testing.T) {
		f := newAPIFixture(t, "2025-03-10 08:00")
		f.addTrainee(1, "Y", attendance.CompanyA)
		_, err := f.engine.ClockIn(context.Background(), 1, "t1")
		require.NoError(t, err)

		rec := f.do(http.MethodGet, "/cron/compliance-check", "", auth)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["skipped"])
		assert.False(t, f.store.Sessions()[0].Overdue)
	})

	t.Run("flags open sessions", func(t *testing.T) {
		f := newAPIFixture(t, "2025-03-10 08:00")
		f.addTrainee(1, "Y", attendance.CompanyA)
		_, err := f.engine.ClockIn(context.Background(), 1, "t1")
		require.NoError(t, err)
		f.clock.Set(t, "2025-03-10 22:05")

		rec := f.do(http.MethodGet, "/cron/compliance-check", "", auth)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(1), body["marked"])
		assert.True(t, f.store.Sessions()[0].Overdue)
	})

	t.Run("reports fetch failure", func(t *testing.T) {
		f := newAPIFixture(t, "2025-03-10 22:05")
		f.store.Fail = func(op string) error { return context.DeadlineExceeded }

		rec := f.do(http.MethodGet, "/cron/compliance-check", "", auth)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestListAttendance(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer api-token"}
	f := newAPIFixture(t, "2025-03-10 08:00")
	ctx := context.Background()
	f.addTrainee(1, "Y", attendance.CompanyA)
	f.addTrainee(2, "X", attendance.CompanyB)

	_, err := f.engine.ClockIn(ctx, 1, "y-in")
	require.NoError(t, err)
	f.clock.Set(t, "2025-03-10 09:00")
	_, err = f.engine.ClockIn(ctx, 2, "x-in")
	require.NoError(t, err)
	f.clock.Set(t, "2025-03-10 09:05")
	_, err = f.engine.ClockOut(ctx, 2, "x-out")
	require.NoError(t, err)
	f.clock.Set(t, "2025-03-10 22:01")

	rec := f.do(http.MethodGet, "/api/attendance?date=2025-03-10", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)

	var body attendanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)

	// Newest first.
	x, y := body.Records[0], body.Records[1]
	assert.Equal(t, "X", x.Trainee.FullName)
	assert.Equal(t, "09:00:00", x.ClockIn)
	require.NotNil(t, x.ClockOut)
	assert.Equal(t, "09:05:00", *x.ClockOut)
	assert.False(t, x.Overdue)

	assert.Equal(t, "Y", y.Trainee.FullName)
	assert.Nil(t, y.ClockOut)
	assert.Equal(t, "IN", y.Status)
	assert.True(t, y.Overdue, "open past cutoff is overdue before the sweep runs")

	rec = f.do(http.MethodGet, "/api/attendance?date=2025-03-10&company=B", "", auth)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "B", body.Company)
}

func TestListAttendanceValidation(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer api-token"}
	f := newAPIFixture(t, "2025-03-10 08:00")

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/attendance", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/attendance?date=10-03-2025", "", auth).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/attendance?company=Z", "", auth).Code)

	rec := f.do(http.MethodGet, "/api/attendance", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	var body attendanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2025-03-10", body.Date)
	assert.Empty(t, body.Records)
}

func TestSetWebhook(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer api-token"}
	f := newAPIFixture(t, "2025-03-10 08:00")

	rec := f.do(http.MethodPost, "/api/telegram/set-webhook", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://srtrack.example.com/telegram/webhook", f.webhooks.url)
	assert.Equal(t, webhookSecret, f.webhooks.secret)

	f.webhooks.err = errors.New("bad request")
	rec = f.do(http.MethodPost, "/api/telegram/set-webhook", "", auth)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

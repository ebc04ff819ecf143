package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SRTrack/internal/attendance"
	"SRTrack/internal/attendance/attendancetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []attendance.NotificationKind
	err   error
}

func (r *recordingNotifier) NotifyCommanders(ctx context.Context, trainee attendance.Trainee, kind attendance.NotificationKind, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	return r.err
}

type fixture struct {
	store    *attendancetest.MemStore
	clock    *attendancetest.ManualClock
	notifier *recordingNotifier
	engine   *attendance.Engine
	trainee  attendance.Trainee
}

func newFixture(t *testing.T, local string) *fixture {
	t.Helper()
	store := attendancetest.NewMemStore()
	clock := attendancetest.NewClock(t, local)
	notifier := &recordingNotifier{}
	trainee := store.AddTrainee(attendance.Trainee{
		TelegramUserID:       1001,
		Rank:                 "PTE",
		FullName:             "Tan Ah Kow",
		IdentificationNumber: "S1234567A",
		Company:              attendance.CompanyB,
		Active:               true,
	})
	engine := attendance.NewEngine(store, clock, attendancetest.Logger(), attendance.WithNotifier(notifier))
	return &fixture{store: store, clock: clock, notifier: notifier, engine: engine, trainee: trainee}
}

func countOpen(sessions []attendance.Session, traineeID string) int {
	n := 0
	for _, s := range sessions {
		if s.TraineeID == traineeID && s.Open() {
			n++
		}
	}
	return n
}

func TestClockInOutScenario(t *testing.T) {
	f := newFixture(t, "2025-03-10 09:00")
	ctx := context.Background()

	res, err := f.engine.ClockIn(ctx, 1001, "u-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusIn, res.Session.Status)
	assert.Equal(t, "2025-03-10", res.Session.Date)
	assert.False(t, res.Session.Overdue)

	status, err := f.engine.GetStatus(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusIn, status.Status)
	require.NotNil(t, status.Session)
	assert.Equal(t, res.Session.ID, status.Session.ID)

	f.clock.Set(t, "2025-03-10 09:05")
	out, err := f.engine.ClockOut(ctx, 1001, "u-2")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusOut, out.Session.Status)
	assert.Equal(t, 5*time.Minute, out.Session.Duration())

	status, err = f.engine.GetStatus(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusOut, status.Status)
	require.NotNil(t, status.Session)
	assert.Equal(t, res.Session.ID, status.Session.ID)

	assert.Equal(t, []attendance.NotificationKind{attendance.KindClockIn, attendance.KindClockOut}, f.notifier.kinds)
}

func TestClockInTwiceWithDifferentTokens(t *testing.T) {
	f := newFixture(t, "2025-03-10 08:00")
	ctx := context.Background()

	_, err := f.engine.ClockIn(ctx, 1001, "u-1")
	require.NoError(t, err)

	_, err = f.engine.ClockIn(ctx, 1001, "u-2")
	assert.ErrorIs(t, err, attendance.ErrAlreadyClockedIn)
	assert.Equal(t, attendance.KindValidation, attendance.KindOf(err))
	assert.Len(t, f.store.Sessions(), 1)
}

func TestClockInReplay(t *testing.T) {
	f := newFixture(t, "2025-03-10 08:00")
	ctx := context.Background()

	_, err := f.engine.ClockIn(ctx, 1001, "u-1")
	require.NoError(t, err)

	_, err = f.engine.ClockIn(ctx, 1001, "u-1")
	assert.ErrorIs(t, err, attendance.ErrDuplicateReplay)
	assert.Equal(t, attendance.KindReplay, attendance.KindOf(err))
	assert.False(t, attendance.Retryable(err))
	assert.Len(t, f.store.Sessions(), 1)
	assert.Len(t, f.notifier.kinds, 1)
}

func TestClockOutReplay(t *testing.T) {
	f := newFixture(t, "2025-03-10 08:00")
	ctx := context.Background()

	_, err := f.engine.ClockIn(ctx, 1001, "u-1")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	_, err = f.engine.ClockOut(ctx, 1001, "u-2")
	require.NoError(t, err)

	_, err = f.engine.ClockOut(ctx, 1001, "u-2")
	assert.ErrorIs(t, err, attendance.ErrDuplicateReplay)
}

func TestClockInPastCutoff(t *testing.T) {
	f := newFixture(t, "2025-03-10 22:30")

	_, err := f.engine.ClockIn(context.Background(), 1001, "u-1")
	assert.ErrorIs(t, err, attendance.ErrPastCutoff)
	assert.Empty(t, f.store.Sessions())
	assert.Empty(t, f.notifier.kinds)
}

func TestClockInNotRegistered(t *testing.T) {
	f := newFixture(t, "2025-03-10 08:00")
	f.store.AddTrainee(attendance.Trainee{TelegramUserID: 2002, IdentificationNumber: "X", Company: attendance.CompanyA, Active: false})

	for _, id := range []int64{9999, 2002} {
		_, err := f.engine.ClockIn(context.Background(), id, "u-1")
		assert.ErrorIs(t, err, attendance.ErrNotRegistered)
	}
	assert.Empty(t, f.store.Sessions())
}

func TestClockOutNotClockedIn(t *testing.T) {
	f := newFixture(t, "2025-03-10 08:00")

	_, err := f.engine.ClockOut(context.Background(), 1001, "u-1")
	assert.ErrorIs(t, err, attendance.ErrNotClockedIn)
}

func TestClockOutInvalidDuration(t *testing.T) {
	f := newFixture(t, "2025-03-10 08:00")
	ctx := context.Background()

	in, err := f.engine.ClockIn(ctx, 1001, "u-1")
	require.NoError(t, err)

	// Clock skew: now is before the stored clock in.
	f.clock.Advance(-time.Minute)
	_, err = f.engine.ClockOut(ctx, 1001, "u-2")
	assert.ErrorIs(t, err, attendance.ErrInvalidDuration)

	f.clock.SetTime(in.Session.ClockIn)
	_, err = f.engine.ClockOut(ctx, 1001, "u-3")
	assert.ErrorIs(t, err, attendance.ErrInvalidDuration)

	sessions := f.store.Sessions()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Open())
	assert.Empty(t, sessions[0].ClockOutToken)
}

func TestClockInAllowedAfterClockOut(t *testing.T) {
	f := newFixture(t, "2025-03-10 08:00")
	ctx := context.Background()

	_, err := f.engine.ClockIn(ctx, 1001, "u-1")
	require.NoError(t, err)
	f.clock.Set(t, "2025-03-10 12:00")
	_, err = f.engine.ClockOut(ctx, 1001, "u-2")
	require.NoError(t, err)
	f.clock.Set(t, "2025-03-10 13:00")
	_, err = f.engine.ClockIn(ctx, 1001, "u-3")
	require.NoError(t, err)

	assert.Len(t, f.store.Sessions(), 2)
	assert.Equal(t, 1, countOpen(f.store.Sessions(), f.trainee.ID))
}

func TestConcurrentClockInsLeaveOneOpenSession(t *testing.T) {
	f := newFixture(t, "2025-03-10 08:00")
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := "dup"
			if i%2 == 0 {
				token = "u-" + string(rune('a'+i))
			}
			_, errs[i] = f.engine.ClockIn(ctx, 1001, token)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t,
			errors.Is(err, attendance.ErrAlreadyClockedIn) || errors.Is(err, attendance.ErrDuplicateReplay),
			"unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, countOpen(f.store.Sessions(), f.trainee.ID))
}

func TestGetStatusSurfacesExtraOpenSessions(t *testing.T) {
	f := newFixture(t, "2025-03-10 10:00")
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, f.clock.Location())
	older := f.store.PutSession(attendance.Session{TraineeID: f.trainee.ID, ClockIn: base, Status: attendance.StatusIn, Date: "2025-03-10", ReplayToken: "a"})
	newer := f.store.PutSession(attendance.Session{TraineeID: f.trainee.ID, ClockIn: base.Add(time.Hour), Status: attendance.StatusIn, Date: "2025-03-10", ReplayToken: "b"})

	status, err := f.engine.GetStatus(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusIn, status.Status)
	assert.Equal(t, newer.ID, status.Session.ID)
	require.Len(t, status.Conflicts, 1)
	assert.Equal(t, older.ID, status.Conflicts[0].ID)

	// Clock out closes the newest one only.
	out, err := f.engine.ClockOut(context.Background(), 1001, "c")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, out.Session.ID)
}

func TestGetStatusNeverClockedIn(t *testing.T) {
	f := newFixture(t, "2025-03-10 10:00")

	status, err := f.engine.GetStatus(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusOut, status.Status)
	assert.Nil(t, status.Session)
}

func TestStoreFailureIsRetryable(t *testing.T) {
	f := newFixture(t, "2025-03-10 10:00")
	f.store.Fail = func(op string) error {
		if op == "CreateSession" {
			return context.DeadlineExceeded
		}
		return nil
	}

	_, err := f.engine.ClockIn(context.Background(), 1001, "u-1")
	require.Error(t, err)
	assert.True(t, attendance.Retryable(err))
	assert.True(t, attendance.IsTimeout(err))
	assert.Empty(t, f.store.Sessions())
}

func TestNotifierFailureDoesNotFailClockIn(t *testing.T) {
	f := newFixture(t, "2025-03-10 10:00")
	f.notifier.err = errors.New("telegram down")

	_, err := f.engine.ClockIn(context.Background(), 1001, "u-1")
	assert.NoError(t, err)
	assert.Len(t, f.store.Sessions(), 1)
}

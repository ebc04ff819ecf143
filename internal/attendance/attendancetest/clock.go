package attendancetest

import (
	"sync"
	"testing"
	"time"

	"SRTrack/utils"

	"github.com/inconshreveable/log15/v3"
)

// ManualClock is a utils.Clock whose current instant is set by the test.
type ManualClock struct {
	*utils.Clock

	mu  sync.Mutex
	now time.Time
}

// NewClock starts a Singapore clock with a 22:00 cutoff at the given local
// time, written as "2006-01-02 15:04".
func NewClock(t *testing.T, local string) *ManualClock {
	t.Helper()
	mc := &ManualClock{}
	c, err := utils.NewClock(utils.DefaultTimezone, utils.DefaultCutoffHour, utils.WithNow(mc.current))
	if err != nil {
		t.Fatalf("NewClock: %v", err)
	}
	mc.Clock = c
	mc.Set(t, local)
	return mc
}

func (mc *ManualClock) current() time.Time {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.now
}

func (mc *ManualClock) Set(t *testing.T, local string) {
	t.Helper()
	at, err := time.ParseInLocation("2006-01-02 15:04", local, mc.Location())
	if err != nil {
		t.Fatalf("ManualClock.Set: %v", err)
	}
	mc.SetTime(at)
}

func (mc *ManualClock) SetTime(at time.Time) {
	mc.mu.Lock()
	mc.now = at
	mc.mu.Unlock()
}

func (mc *ManualClock) Advance(d time.Duration) {
	mc.mu.Lock()
	mc.now = mc.now.Add(d)
	mc.mu.Unlock()
}

func Logger() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}

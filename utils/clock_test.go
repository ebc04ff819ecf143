package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *testing.T, utc string) *Clock {
	t.Helper()
	at, err := time.Parse(time.RFC3339, utc)
	require.NoError(t, err)
	c, err := NewClock("Asia/Singapore", 22, WithNow(func() time.Time { return at }))
	require.NoError(t, err)
	return c
}

func TestClockToday(t *testing.T) {
	// 17:30 UTC is 01:30 the next day in Singapore.
	c := fixedClock(t, "2025-03-10T17:30:00Z")
	assert.Equal(t, "2025-03-11", c.Today())
	assert.Equal(t, 1, c.Now().Hour())
}

func TestClockCutoff(t *testing.T) {
	tests := []struct {
		name string
		utc  string
		past bool
	}{
		{"morning", "2025-03-10T01:00:00Z", false},
		{"one minute before", "2025-03-10T13:59:00Z", false},
		{"at cutoff", "2025-03-10T14:00:00Z", true},
		{"late evening", "2025-03-10T14:30:00Z", true},
		{"after midnight", "2025-03-10T16:30:00Z", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.past, fixedClock(t, tt.utc).IsPastCutoff())
		})
	}
}

func TestNewClockRejectsBadInput(t *testing.T) {
	_, err := NewClock("Mars/Olympus", 22)
	assert.Error(t, err)

	_, err = NewClock("Asia/Singapore", 24)
	assert.Error(t, err)
}

func TestCutoffOn(t *testing.T) {
	c := fixedClock(t, "2025-03-10T01:00:00Z")
	cut, err := c.CutoffOn("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10T14:00:00Z", cut.UTC().Format(time.RFC3339))

	_, err = c.CutoffOn("10/03/2025")
	assert.Error(t, err)
}

package utils

import (
	"fmt"
	"time"
)

const (
	DefaultTimezone   = "Asia/Singapore"
	DefaultCutoffHour = 22
	dateLayout        = "2006-01-02"
)

// Clock is the time authority for the programme. All session dates and
// cutoff checks are derived from it so tests can pin the current instant.
type Clock struct {
	loc        *time.Location
	cutoffHour int
	now        func() time.Time
}

type ClockOption func(*Clock)

func WithNow(now func() time.Time) ClockOption {
	return func(c *Clock) { c.now = now }
}

func NewClock(timezone string, cutoffHour int, opts ...ClockOption) (*Clock, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("NewClock: invalid timezone '%s': %w", timezone, err)
	}
	if cutoffHour < 0 || cutoffHour > 23 {
		return nil, fmt.Errorf("NewClock: cutoff hour %d out of range", cutoffHour)
	}

	c := &Clock{loc: loc, cutoffHour: cutoffHour, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Clock) Location() *time.Location { return c.loc }

func (c *Clock) CutoffHour() int { return c.cutoffHour }

func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

func (c *Clock) Today() string {
	return c.DateOf(c.now())
}

func (c *Clock) IsPastCutoff() bool {
	return c.PastCutoffAt(c.now())
}

func (c *Clock) DateOf(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}

func (c *Clock) PastCutoffAt(t time.Time) bool {
	return t.In(c.loc).Hour() >= c.cutoffHour
}

// CutoffOn returns the cutoff instant of the given local date.
func (c *Clock) CutoffOn(date string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("CutoffOn: invalid date '%s': %w", date, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.cutoffHour, 0, 0, 0, c.loc), nil
}

func (c *Clock) Format(t time.Time, layout string) string {
	return t.In(c.loc).Format(layout)
}

func ValidDate(date string) bool {
	_, err := time.Parse(dateLayout, date)
	return err == nil
}

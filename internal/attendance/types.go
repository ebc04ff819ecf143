package attendance

import (
	"fmt"
	"time"
)

type Company string

const (
	CompanyA       Company = "A"
	CompanyB       Company = "B"
	CompanyC       Company = "C"
	CompanySupport Company = "Support"
	CompanyMSC     Company = "MSC"
	CompanyHQ      Company = "HQ"
)

var Companies = []Company{CompanyA, CompanyB, CompanyC, CompanySupport, CompanyMSC, CompanyHQ}

func ParseCompany(s string) (Company, error) {
	for _, c := range Companies {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("ParseCompany: unknown company %q", s)
}

type Status string

const (
	StatusIn  Status = "IN"
	StatusOut Status = "OUT"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusIn, StatusOut:
		return Status(s), nil
	}
	return "", fmt.Errorf("ParseStatus: unknown status %q", s)
}

type Role string

const (
	RoleCommander Role = "commander"
	RoleAdmin     Role = "admin"
)

type NotificationKind string

const (
	KindClockIn  NotificationKind = "clock_in"
	KindClockOut NotificationKind = "clock_out"
	KindOverdue  NotificationKind = "overdue"
)

func ParseNotificationKind(s string) (NotificationKind, error) {
	switch NotificationKind(s) {
	case KindClockIn, KindClockOut, KindOverdue:
		return NotificationKind(s), nil
	}
	return "", fmt.Errorf("ParseNotificationKind: unknown kind %q", s)
}

type Trainee struct {
	ID                   string
	TelegramUserID       int64
	Rank                 string
	FullName             string
	IdentificationNumber string
	Company              Company
	Active               bool
}

// Session is one clock-in attempt. Date is the local calendar date the
// session was opened on and never changes afterwards.
type Session struct {
	ID            string
	TraineeID     string
	ClockIn       time.Time
	ClockOut      *time.Time
	Status        Status
	Date          string
	Overdue       bool
	ReplayToken   string
	ClockOutToken string
}

func (s Session) Open() bool {
	return s.Status == StatusIn && s.ClockOut == nil
}

func (s Session) Duration() time.Duration {
	if s.ClockOut == nil {
		return 0
	}
	return s.ClockOut.Sub(s.ClockIn)
}

type Commander struct {
	ID             string
	Username       string
	Rank           string
	FullName       string
	Company        Company
	TelegramUserID *int64
	Role           Role
	Active         bool
}

type NotificationRecord struct {
	ID          string
	CommanderID string
	TraineeID   string
	Kind        NotificationKind
	Date        string
	Message     string
	CreatedAt   time.Time
}

// OverdueCandidate pairs an open session with its owner so the sweep can
// notify without a second lookup.
type OverdueCandidate struct {
	Session Session
	Trainee Trainee
}

// SessionView is a session joined with its trainee, used for listings.
type SessionView struct {
	Session Session
	Trainee Trainee
}

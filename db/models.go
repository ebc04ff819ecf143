package db

import (
	"fmt"
	"time"

	"SRTrack/internal/attendance"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var validate = validator.New()

type Trainee struct {
	ID                   string `gorm:"type:uuid;primaryKey"`
	TelegramUserID       int64  `gorm:"not null;uniqueIndex" validate:"gt=0"`
	Rank                 string `gorm:"size:100;not null" validate:"required,max=100"`
	FullName             string `gorm:"size:255;not null" validate:"required,max=255"`
	IdentificationNumber string `gorm:"size:50;not null;uniqueIndex" validate:"required,max=50"`
	Company              string `gorm:"size:16;not null;index" validate:"oneof=A B C Support MSC HQ"`
	IsActive             bool   `gorm:"not null"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type AttendanceSession struct {
	ID            string     `gorm:"type:uuid;primaryKey"`
	TraineeID     string     `gorm:"type:uuid;not null;index"`
	Trainee       Trainee    `gorm:"foreignKey:TraineeID;constraint:OnDelete:RESTRICT"`
	ClockInTime   time.Time  `gorm:"not null"`
	ClockOutTime  *time.Time
	Status        string     `gorm:"size:3;not null;index" validate:"oneof=IN OUT"`
	Date          string     `gorm:"size:10;not null;index" validate:"datetime=2006-01-02"`
	IsOverdue     bool       `gorm:"not null"`
	ReplayToken   string     `gorm:"size:64;not null;uniqueIndex:uniq_attendance_sessions_replay_token" validate:"required,max=64"`
	ClockOutToken *string    `gorm:"size:64"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Commander struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	Username       string  `gorm:"size:100;not null;uniqueIndex" validate:"required,min=3,max=100"`
	Rank           string  `gorm:"size:100" validate:"max=100"`
	FullName       string  `gorm:"size:255" validate:"max=255"`
	Company        string  `gorm:"size:16;not null;index" validate:"oneof=A B C Support MSC HQ"`
	ContactNumber  *string `gorm:"size:50"`
	TelegramUserID *int64  `gorm:"uniqueIndex"`
	Role           string  `gorm:"size:16;not null;default:commander" validate:"oneof=commander admin"`
	IsActive       bool    `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Notification is the dedup ledger. Rows are only ever inserted.
type Notification struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	CommanderID      string `gorm:"type:uuid;not null;uniqueIndex:uniq_notifications_commander_trainee_kind_date,priority:1"`
	TraineeID        string `gorm:"type:uuid;not null;uniqueIndex:uniq_notifications_commander_trainee_kind_date,priority:2"`
	NotificationType string `gorm:"size:16;not null;uniqueIndex:uniq_notifications_commander_trainee_kind_date,priority:3" validate:"oneof=clock_in clock_out overdue"`
	Date             string `gorm:"size:10;not null;uniqueIndex:uniq_notifications_commander_trainee_kind_date,priority:4"`
	MessageText      string `gorm:"type:text;not null"`
	CreatedAt        time.Time
}

func (Notification) TableName() string { return "notifications" }

func (t *Trainee) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return validate.Struct(t)
}

func (s *AttendanceSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return validate.Struct(s)
}

func (c *Commander) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return validate.Struct(c)
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return validate.Struct(n)
}

func (t Trainee) toDomain() (*attendance.Trainee, error) {
	company, err := attendance.ParseCompany(t.Company)
	if err != nil {
		return nil, fmt.Errorf("trainee %s: %w", t.ID, err)
	}
	return &attendance.Trainee{
		ID:                   t.ID,
		TelegramUserID:       t.TelegramUserID,
		Rank:                 t.Rank,
		FullName:             t.FullName,
		IdentificationNumber: t.IdentificationNumber,
		Company:              company,
		Active:               t.IsActive,
	}, nil
}

func traineeFromDomain(t *attendance.Trainee) Trainee {
	return Trainee{
		ID:                   t.ID,
		TelegramUserID:       t.TelegramUserID,
		Rank:                 t.Rank,
		FullName:             t.FullName,
		IdentificationNumber: t.IdentificationNumber,
		Company:              string(t.Company),
		IsActive:             t.Active,
	}
}

func (s AttendanceSession) toDomain() (*attendance.Session, error) {
	status, err := attendance.ParseStatus(s.Status)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, err)
	}
	out := &attendance.Session{
		ID:          s.ID,
		TraineeID:   s.TraineeID,
		ClockIn:     s.ClockInTime,
		ClockOut:    s.ClockOutTime,
		Status:      status,
		Date:        s.Date,
		Overdue:     s.IsOverdue,
		ReplayToken: s.ReplayToken,
	}
	if s.ClockOutToken != nil {
		out.ClockOutToken = *s.ClockOutToken
	}
	return out, nil
}

func sessionFromDomain(s *attendance.Session) AttendanceSession {
	row := AttendanceSession{
		ID:           s.ID,
		TraineeID:    s.TraineeID,
		ClockInTime:  s.ClockIn.UTC(),
		ClockOutTime: s.ClockOut,
		Status:       string(s.Status),
		Date:         s.Date,
		IsOverdue:    s.Overdue,
		ReplayToken:  s.ReplayToken,
	}
	if s.ClockOutToken != "" {
		token := s.ClockOutToken
		row.ClockOutToken = &token
	}
	return row
}

func (c Commander) toDomain() (*attendance.Commander, error) {
	company, err := attendance.ParseCompany(c.Company)
	if err != nil {
		return nil, fmt.Errorf("commander %s: %w", c.ID, err)
	}
	role := attendance.Role(c.Role)
	if role != attendance.RoleAdmin && role != attendance.RoleCommander {
		return nil, fmt.Errorf("commander %s: unknown role %q", c.ID, c.Role)
	}
	return &attendance.Commander{
		ID:             c.ID,
		Username:       c.Username,
		Rank:           c.Rank,
		FullName:       c.FullName,
		Company:        company,
		TelegramUserID: c.TelegramUserID,
		Role:           role,
		Active:         c.IsActive,
	}, nil
}

func commanderFromDomain(c *attendance.Commander) Commander {
	return Commander{
		ID:             c.ID,
		Username:       c.Username,
		Rank:           c.Rank,
		FullName:       c.FullName,
		Company:        string(c.Company),
		TelegramUserID: c.TelegramUserID,
		Role:           string(c.Role),
		IsActive:       c.Active,
	}
}

// Package attendancetest provides an in-memory Store and a settable clock for
// tests of packages built on top of attendance.
package attendancetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"SRTrack/internal/attendance"

	"github.com/google/uuid"
)

// MemStore enforces the same uniqueness rules as the database schema.
type MemStore struct {
	mu            sync.Mutex
	trainees      map[string]attendance.Trainee
	sessions      map[string]attendance.Session
	commanders    map[string]attendance.Commander
	notifications []attendance.NotificationRecord

	// Fail, when set, is consulted before every call; a non-nil result is
	// returned as the call's error.
	Fail func(op string) error
}

var _ attendance.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		trainees:   make(map[string]attendance.Trainee),
		sessions:   make(map[string]attendance.Session),
		commanders: make(map[string]attendance.Commander),
	}
}

func (m *MemStore) fail(op string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op)
}

func (m *MemStore) AddTrainee(t attendance.Trainee) attendance.Trainee {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	m.trainees[t.ID] = t
	return t
}

func (m *MemStore) AddCommander(c attendance.Commander) attendance.Commander {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.commanders[c.ID] = c
	return c
}

// PutSession stores a session as is, bypassing every constraint.
func (m *MemStore) PutSession(s attendance.Session) attendance.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.sessions[s.ID] = s
	return s
}

func (m *MemStore) Sessions() []attendance.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]attendance.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClockIn.After(out[j].ClockIn) })
	return out
}

func (m *MemStore) Notifications() []attendance.NotificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]attendance.NotificationRecord(nil), m.notifications...)
}

func (m *MemStore) TraineeByTelegramID(ctx context.Context, telegramUserID int64) (*attendance.Trainee, error) {
	if err := m.fail("TraineeByTelegramID"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trainees {
		if t.TelegramUserID == telegramUserID && t.Active {
			t := t
			return &t, nil
		}
	}
	return nil, attendance.ErrNotFound
}

func (m *MemStore) TraineeByID(ctx context.Context, id string) (*attendance.Trainee, error) {
	if err := m.fail("TraineeByID"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trainees[id]
	if !ok {
		return nil, attendance.ErrNotFound
	}
	return &t, nil
}

func (m *MemStore) CreateTrainee(ctx context.Context, t *attendance.Trainee) error {
	if err := m.fail("CreateTrainee"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.trainees {
		if existing.TelegramUserID == t.TelegramUserID || existing.IdentificationNumber == t.IdentificationNumber {
			return attendance.ErrDuplicateRecord
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	m.trainees[t.ID] = *t
	return nil
}

func (m *MemStore) IdentificationNumberTaken(ctx context.Context, number string) (bool, error) {
	if err := m.fail("IdentificationNumberTaken"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trainees {
		if t.IdentificationNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) OpenSessions(ctx context.Context, traineeID string) ([]attendance.Session, error) {
	if err := m.fail("OpenSessions"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attendance.Session
	for _, s := range m.sessions {
		if s.TraineeID == traineeID && s.Open() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClockIn.After(out[j].ClockIn) })
	return out, nil
}

func (m *MemStore) LatestSession(ctx context.Context, traineeID string) (*attendance.Session, error) {
	if err := m.fail("LatestSession"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *attendance.Session
	for _, s := range m.sessions {
		if s.TraineeID != traineeID {
			continue
		}
		if latest == nil || s.ClockIn.After(latest.ClockIn) {
			s := s
			latest = &s
		}
	}
	if latest == nil {
		return nil, attendance.ErrNotFound
	}
	return latest, nil
}

func (m *MemStore) SessionByReplayToken(ctx context.Context, token string) (*attendance.Session, error) {
	if err := m.fail("SessionByReplayToken"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byToken(token); ok {
		return &s, nil
	}
	return nil, attendance.ErrNotFound
}

func (m *MemStore) byToken(token string) (attendance.Session, bool) {
	for _, s := range m.sessions {
		if s.ReplayToken == token || (s.ClockOutToken != "" && s.ClockOutToken == token) {
			return s, true
		}
	}
	return attendance.Session{}, false
}

func (m *MemStore) CreateSession(ctx context.Context, s *attendance.Session) error {
	if err := m.fail("CreateSession"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ReplayToken != "" {
		if _, ok := m.byToken(s.ReplayToken); ok {
			return attendance.ErrReplayTokenExists
		}
	}
	for _, existing := range m.sessions {
		if existing.TraineeID == s.TraineeID && existing.Open() {
			return attendance.ErrOpenSessionExists
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemStore) CloseSession(ctx context.Context, sessionID string, at time.Time, token string) error {
	if err := m.fail("CloseSession"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if token != "" {
		if _, ok := m.byToken(token); ok {
			return attendance.ErrReplayTokenExists
		}
	}
	s, ok := m.sessions[sessionID]
	if !ok || !s.Open() {
		return attendance.ErrSessionNotOpen
	}
	s.ClockOut = &at
	s.Status = attendance.StatusOut
	s.ClockOutToken = token
	m.sessions[sessionID] = s
	return nil
}

func (m *MemStore) OverdueCandidates(ctx context.Context, date string) ([]attendance.OverdueCandidate, error) {
	if err := m.fail("OverdueCandidates"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attendance.OverdueCandidate
	for _, s := range m.sessions {
		if s.Open() && s.Date == date && !s.Overdue {
			out = append(out, attendance.OverdueCandidate{Session: s, Trainee: m.trainees[s.TraineeID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Session.ClockIn.Before(out[j].Session.ClockIn) })
	return out, nil
}

func (m *MemStore) MarkOverdue(ctx context.Context, sessionID string) (bool, error) {
	if err := m.fail("MarkOverdue"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || !s.Open() || s.Overdue {
		return false, nil
	}
	s.Overdue = true
	m.sessions[sessionID] = s
	return true, nil
}

func (m *MemStore) SessionsByDate(ctx context.Context, date string, company attendance.Company) ([]attendance.SessionView, error) {
	if err := m.fail("SessionsByDate"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attendance.SessionView
	for _, s := range m.sessions {
		t := m.trainees[s.TraineeID]
		if s.Date != date || (company != "" && t.Company != company) {
			continue
		}
		out = append(out, attendance.SessionView{Session: s, Trainee: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Session.ClockIn.After(out[j].Session.ClockIn) })
	return out, nil
}

func (m *MemStore) ActiveCommanders(ctx context.Context, company attendance.Company) ([]attendance.Commander, error) {
	if err := m.fail("ActiveCommanders"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attendance.Commander
	for _, c := range m.commanders {
		if c.Active && c.Company == company {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *MemStore) ActiveAdmins(ctx context.Context) ([]attendance.Commander, error) {
	if err := m.fail("ActiveAdmins"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attendance.Commander
	for _, c := range m.commanders {
		if c.Active && c.Role == attendance.RoleAdmin {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *MemStore) UpsertCommander(ctx context.Context, c *attendance.Commander) error {
	if err := m.fail("UpsertCommander"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.commanders {
		if existing.Username == c.Username {
			c.ID = id
			m.commanders[id] = *c
			return nil
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.commanders[c.ID] = *c
	return nil
}

func (m *MemStore) NotificationExists(ctx context.Context, commanderID, traineeID string, kind attendance.NotificationKind, date string) (bool, error) {
	if err := m.fail("NotificationExists"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.findNotification(commanderID, traineeID, kind, date)
	return ok, nil
}

func (m *MemStore) findNotification(commanderID, traineeID string, kind attendance.NotificationKind, date string) (attendance.NotificationRecord, bool) {
	for _, n := range m.notifications {
		if n.CommanderID == commanderID && n.TraineeID == traineeID && n.Kind == kind && n.Date == date {
			return n, true
		}
	}
	return attendance.NotificationRecord{}, false
}

func (m *MemStore) RecordNotification(ctx context.Context, r *attendance.NotificationRecord) error {
	if err := m.fail("RecordNotification"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.findNotification(r.CommanderID, r.TraineeID, r.Kind, r.Date); ok {
		return attendance.ErrDuplicateRecord
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.notifications = append(m.notifications, *r)
	return nil
}

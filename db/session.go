package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"SRTrack/internal/attendance"
)

func (s *Store) OpenSessions(ctx context.Context, traineeID string) ([]attendance.Session, error) {
	var rows []AttendanceSession
	err := s.db.WithContext(ctx).
		Where("trainee_id = ? AND status = ? AND clock_out_time IS NULL", traineeID, string(attendance.StatusIn)).
		Order("clock_in_time DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("OpenSessions: failed to fetch for trainee %s: %w", traineeID, err)
	}
	return sessionsToDomain(rows)
}

func (s *Store) LatestSession(ctx context.Context, traineeID string) (*attendance.Session, error) {
	var row AttendanceSession
	err := s.db.WithContext(ctx).
		Where("trainee_id = ?", traineeID).
		Order("clock_in_time DESC").
		First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return row.toDomain()
}

func (s *Store) SessionByReplayToken(ctx context.Context, token string) (*attendance.Session, error) {
	var row AttendanceSession
	err := s.db.WithContext(ctx).
		Where("replay_token = ? OR clock_out_token = ?", token, token).
		First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return row.toDomain()
}

func (s *Store) CreateSession(ctx context.Context, session *attendance.Session) error {
	row := sessionFromDomain(session)
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error
	if err == nil {
		session.ID = row.ID
		return nil
	}
	if mapped, ok := sessionConflict(err); ok {
		return mapped
	}
	if _, ok := uniqueViolation(err); ok {
		// Driver did not name the index; find out which rule we broke.
		if _, lookupErr := s.SessionByReplayToken(ctx, session.ReplayToken); lookupErr == nil {
			return attendance.ErrReplayTokenExists
		}
		return attendance.ErrOpenSessionExists
	}
	return fmt.Errorf("CreateSession: failed to insert session for trainee %s: %w", session.TraineeID, err)
}

func (s *Store) CloseSession(ctx context.Context, sessionID string, at time.Time, token string) error {
	updates := map[string]any{
		"clock_out_time": at.UTC(),
		"status":         string(attendance.StatusOut),
		"updated_at":     time.Now().UTC(),
	}
	if token != "" {
		updates["clock_out_token"] = token
	}

	result := s.db.WithContext(ctx).Model(&AttendanceSession{}).
		Where("id = ? AND status = ? AND clock_out_time IS NULL", sessionID, string(attendance.StatusIn)).
		Updates(updates)
	if result.Error != nil {
		if _, ok := uniqueViolation(result.Error); ok {
			return attendance.ErrReplayTokenExists
		}
		return fmt.Errorf("CloseSession: failed to update session %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return attendance.ErrSessionNotOpen
	}
	return nil
}

func (s *Store) OverdueCandidates(ctx context.Context, date string) ([]attendance.OverdueCandidate, error) {
	var rows []AttendanceSession
	err := s.db.WithContext(ctx).
		Preload("Trainee").
		Where("status = ? AND date = ? AND clock_out_time IS NULL AND is_overdue = ?", string(attendance.StatusIn), date, false).
		Order("clock_in_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("OverdueCandidates: failed to fetch sessions for %s: %w", date, err)
	}

	out := make([]attendance.OverdueCandidate, 0, len(rows))
	for _, row := range rows {
		session, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		trainee, err := row.Trainee.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, attendance.OverdueCandidate{Session: *session, Trainee: *trainee})
	}
	return out, nil
}

func (s *Store) MarkOverdue(ctx context.Context, sessionID string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&AttendanceSession{}).
		Where("id = ? AND status = ? AND clock_out_time IS NULL AND is_overdue = ?", sessionID, string(attendance.StatusIn), false).
		Updates(map[string]any{
			"is_overdue": true,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("MarkOverdue: failed to update session %s: %w", sessionID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) SessionsByDate(ctx context.Context, date string, company attendance.Company) ([]attendance.SessionView, error) {
	query := s.db.WithContext(ctx).
		Joins("Trainee").
		Where("attendance_sessions.date = ?", date)
	if company != "" {
		query = query.Where(`"Trainee"."company" = ?`, string(company))
	}

	var rows []AttendanceSession
	if err := query.Order("attendance_sessions.clock_in_time DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("SessionsByDate: failed to fetch sessions for %s: %w", date, err)
	}

	out := make([]attendance.SessionView, 0, len(rows))
	for _, row := range rows {
		session, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		trainee, err := row.Trainee.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, attendance.SessionView{Session: *session, Trainee: *trainee})
	}
	return out, nil
}

func sessionsToDomain(rows []AttendanceSession) ([]attendance.Session, error) {
	out := make([]attendance.Session, 0, len(rows))
	for _, row := range rows {
		session, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *session)
	}
	return out, nil
}

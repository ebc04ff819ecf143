package db

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"SRTrack/internal/attendance"
)

func (s *Store) NotificationExists(ctx context.Context, commanderID, traineeID string, kind attendance.NotificationKind, date string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Notification{}).
		Where("commander_id = ? AND trainee_id = ? AND notification_type = ? AND date = ?",
			commanderID, traineeID, string(kind), date).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("NotificationExists: failed to query ledger: %w", err)
	}
	return count > 0, nil
}

func (s *Store) RecordNotification(ctx context.Context, r *attendance.NotificationRecord) error {
	row := Notification{
		ID:               r.ID,
		CommanderID:      r.CommanderID,
		TraineeID:        r.TraineeID,
		NotificationType: string(r.Kind),
		Date:             r.Date,
		MessageText:      r.Message,
		CreatedAt:        r.CreatedAt.UTC(),
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		if _, ok := uniqueViolation(result.Error); ok {
			return attendance.ErrDuplicateRecord
		}
		return fmt.Errorf("RecordNotification: failed to insert ledger row: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return attendance.ErrDuplicateRecord
	}
	r.ID = row.ID
	return nil
}

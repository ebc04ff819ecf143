package db

import (
	"context"
	"fmt"

	"SRTrack/internal/attendance"
)

func (s *Store) TraineeByTelegramID(ctx context.Context, telegramUserID int64) (*attendance.Trainee, error) {
	var row Trainee
	err := s.db.WithContext(ctx).
		Where("telegram_user_id = ? AND is_active = ?", telegramUserID, true).
		First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return row.toDomain()
}

func (s *Store) TraineeByID(ctx context.Context, id string) (*attendance.Trainee, error) {
	var row Trainee
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toDomain()
}

func (s *Store) CreateTrainee(ctx context.Context, t *attendance.Trainee) error {
	row := traineeFromDomain(t)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if _, ok := uniqueViolation(err); ok {
			return attendance.ErrDuplicateRecord
		}
		return fmt.Errorf("CreateTrainee: failed to save trainee %s: %w", t.IdentificationNumber, err)
	}
	t.ID = row.ID
	return nil
}

func (s *Store) IdentificationNumberTaken(ctx context.Context, number string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Trainee{}).
		Where("identification_number = ?", number).
		Count(&count).Error
	return count > 0, err
}

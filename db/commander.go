package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"SRTrack/internal/attendance"
)

func (s *Store) ActiveCommanders(ctx context.Context, company attendance.Company) ([]attendance.Commander, error) {
	var rows []Commander
	err := s.db.WithContext(ctx).
		Where("company = ? AND is_active = ?", string(company), true).
		Order("username").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ActiveCommanders: failed to fetch commanders of %s: %w", company, err)
	}
	return commandersToDomain(rows)
}

func (s *Store) ActiveAdmins(ctx context.Context) ([]attendance.Commander, error) {
	var rows []Commander
	err := s.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", string(attendance.RoleAdmin), true).
		Order("username").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ActiveAdmins: failed to fetch admins: %w", err)
	}
	return commandersToDomain(rows)
}

// UpsertCommander inserts or updates a commander keyed by username.
func (s *Store) UpsertCommander(ctx context.Context, c *attendance.Commander) error {
	row := commanderFromDomain(c)
	row.UpdatedAt = time.Now().UTC()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"rank", "full_name", "company", "telegram_user_id", "role", "is_active", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("UpsertCommander: failed to save commander %s: %w", c.Username, err)
	}

	var saved Commander
	if err := s.db.WithContext(ctx).Where("username = ?", c.Username).First(&saved).Error; err != nil {
		return fmt.Errorf("UpsertCommander: failed to reload commander %s: %w", c.Username, err)
	}
	c.ID = saved.ID
	return nil
}

func commandersToDomain(rows []Commander) ([]attendance.Commander, error) {
	out := make([]attendance.Commander, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

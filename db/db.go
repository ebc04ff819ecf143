package db

import (
	"fmt"
	"time"

	"github.com/inconshreveable/log15/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the Postgres implementation of attendance.Store.
type Store struct {
	db  *gorm.DB
	log log15.Logger
}

func Open(dsn string, log log15.Logger) (*Store, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("Open: failed to connect to DB: %w", err)
	}

	log.Info("Connected to DB")
	return &Store{db: gdb, log: log}, nil
}

func New(gdb *gorm.DB, log log15.Logger) *Store {
	return &Store{db: gdb, log: log}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates the tables and the partial unique indexes the lifecycle
// rules depend on.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&Trainee{},
		&AttendanceSession{},
		&Commander{},
		&Notification{},
	); err != nil {
		return fmt.Errorf("Migrate: auto migrate failed: %w", err)
	}

	for _, stmt := range indexStatements {
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("Migrate: %q: %w", stmt, err)
		}
	}
	s.log.Info("Schema migrated")
	return nil
}

const (
	openSessionIndex   = "uniq_attendance_sessions_open_per_trainee"
	clockInTokenIndex  = "uniq_attendance_sessions_replay_token"
	clockOutTokenIndex = "uniq_attendance_sessions_clock_out_token"
)

var indexStatements = []string{
	"CREATE UNIQUE INDEX IF NOT EXISTS " + openSessionIndex +
		" ON attendance_sessions (trainee_id) WHERE status = 'IN' AND clock_out_time IS NULL",
	"CREATE UNIQUE INDEX IF NOT EXISTS " + clockOutTokenIndex +
		" ON attendance_sessions (clock_out_token) WHERE clock_out_token IS NOT NULL",
}

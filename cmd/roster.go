package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"SRTrack/internal/attendance"

	"github.com/go-playground/validator/v10"
	"github.com/inconshreveable/log15/v3"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

type rosterFile struct {
	Commanders []rosterEntry `yaml:"commanders"`
}

type rosterEntry struct {
	Username       string `yaml:"username" validate:"required,max=100"`
	Rank           string `yaml:"rank" validate:"max=100"`
	FullName       string `yaml:"full_name" validate:"required,max=255"`
	Company        string `yaml:"company" validate:"required,oneof=A B C Support MSC HQ"`
	TelegramUserID *int64 `yaml:"telegram_user_id"`
	Role           string `yaml:"role" validate:"omitempty,oneof=commander admin"`
	Active         *bool  `yaml:"active"`
}

func parseRoster(r io.Reader) ([]attendance.Commander, error) {
	var file rosterFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parseRoster: failed to decode roster: %w", err)
	}

	validate := validator.New()
	seen := make(map[string]bool, len(file.Commanders))
	out := make([]attendance.Commander, 0, len(file.Commanders))
	var errs error
	for i, e := range file.Commanders {
		if err := validate.Struct(e); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("entry %d (%s): %w", i+1, e.Username, err))
			continue
		}
		if seen[e.Username] {
			errs = multierr.Append(errs, fmt.Errorf("entry %d: duplicate username %s", i+1, e.Username))
			continue
		}
		seen[e.Username] = true

		c := attendance.Commander{
			Username:       e.Username,
			Rank:           e.Rank,
			FullName:       e.FullName,
			Company:        attendance.Company(e.Company),
			TelegramUserID: e.TelegramUserID,
			Role:           attendance.RoleCommander,
			Active:         true,
		}
		if e.Role == string(attendance.RoleAdmin) {
			c.Role = attendance.RoleAdmin
		}
		if e.Active != nil {
			c.Active = *e.Active
		}
		out = append(out, c)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// importRoster upserts every commander of the file by username.
func importRoster(ctx context.Context, store attendance.CommanderStore, path string, log log15.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("importRoster: %w", err)
	}
	defer f.Close()

	commanders, err := parseRoster(f)
	if err != nil {
		return err
	}

	var errs error
	imported := 0
	for i := range commanders {
		c := &commanders[i]
		if err := store.UpsertCommander(ctx, c); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("upsert %s: %w", c.Username, err))
			continue
		}
		imported++
	}
	log.Info("Roster imported", "path", path, "commanders", imported, "errors", len(multierr.Errors(errs)))
	return errs
}

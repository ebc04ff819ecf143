package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"SRTrack/internal/attendance"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	BotToken      string `env:"TELEGRAM_BOT_TOKEN"`
	WebhookSecret string `env:"TELEGRAM_WEBHOOK_SECRET"`
	WebhookURL    string `env:"WEBHOOK_URL"`
	CronSecret    string `env:"CRON_SECRET"`
	APIToken      string `env:"API_TOKEN"`
	Port          string `env:"PORT" envDefault:"8080"`

	Timezone   string `env:"TIMEZONE" envDefault:"Asia/Singapore"`
	ZoneLabel  string `env:"ZONE_LABEL" envDefault:"SGT"`
	CutoffHour int    `env:"CUTOFF_HOUR" envDefault:"22"`

	SweepSchedule   string        `env:"SWEEP_SCHEDULE" envDefault:"5 22 * * *"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	RegistrationTTL time.Duration `env:"REGISTRATION_TTL" envDefault:"30m"`

	NotifyAdmins       []string `env:"NOTIFY_ADMINS" envSeparator:","`
	QueueNotifications bool     `env:"QUEUE_NOTIFICATIONS" envDefault:"false"`
	NgrokTunnel        bool     `env:"NGROK_TUNNEL" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"logfmt"`
}

const minWebhookSecret = 32

func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not loaded")
		}
	}
}

// Load reads .env (outside hosted environments) and parses the process
// environment into a validated Config.
func Load() (*Config, error) {
	LoadEnv()
	return Parse()
}

func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs error
	if c.DatabaseURL == "" {
		errs = multierr.Append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.BotToken == "" {
		errs = multierr.Append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if len(c.WebhookSecret) < minWebhookSecret {
		errs = multierr.Append(errs, fmt.Errorf("TELEGRAM_WEBHOOK_SECRET must be at least %d characters", minWebhookSecret))
	}
	if c.CutoffHour < 0 || c.CutoffHour > 23 {
		errs = multierr.Append(errs, fmt.Errorf("CUTOFF_HOUR %d out of range", c.CutoffHour))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err))
	}
	if c.StoreTimeout <= 0 {
		errs = multierr.Append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	if _, err := c.AdminKinds(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// AdminKinds parses NOTIFY_ADMINS.
func (c *Config) AdminKinds() ([]attendance.NotificationKind, error) {
	kinds := make([]attendance.NotificationKind, 0, len(c.NotifyAdmins))
	for _, raw := range c.NotifyAdmins {
		k, err := attendance.ParseNotificationKind(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("NOTIFY_ADMINS: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/flashblaze/drinky-bot/internal/domain"
)

const (
	RunModePolling = "polling"
	RunModeWebhook = "webhook"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken           string        `envconfig:"BOT_TOKEN" required:"true"`
	DBPath             string        `envconfig:"DB_PATH" default:"./data/drinky.db"`
	DefaultTZ          string        `envconfig:"DEFAULT_TZ" default:"UTC"`
	DefaultGoalML      int           `envconfig:"DEFAULT_GOAL_ML" default:"2000"`
	DefaultIntervalMin int           `envconfig:"DEFAULT_INTERVAL_MIN" default:"60"`
	RunMode            string        `envconfig:"RUN_MODE" default:"polling"` // polling|webhook
	WebhookURL         string        `envconfig:"WEBHOOK_URL"`                // public base URL, webhook mode only
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`   // debug|info|warn|error
	LogFormat          string        `envconfig:"LOG_FORMAT" default:"json"`  // json|console
	HTTPAddr           string        `envconfig:"HTTP_ADDR" default:":8080"`  // healthz, metrics, webhook
	PollInterval       time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
	DevCommands        bool          `envconfig:"DEV_COMMANDS" default:"false"`
}

// Load reads environment variables into Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values that would only fail later at runtime.
func (c Config) Validate() error {
	var errs []error

	switch c.RunMode {
	case RunModePolling:
	case RunModeWebhook:
		if c.WebhookURL == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required in webhook mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RUN_MODE %q", c.RunMode))
	}

	if _, err := domain.ValidateTZ(c.DefaultTZ); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_TZ: %w", err))
	}
	if c.DefaultGoalML < 0 || c.DefaultGoalML > domain.MaxGoalML {
		errs = append(errs, fmt.Errorf("DEFAULT_GOAL_ML must be between 0 and %d", domain.MaxGoalML))
	}
	if iv := time.Duration(c.DefaultIntervalMin) * time.Minute; iv < domain.MinInterval || iv > domain.MaxInterval {
		errs = append(errs, fmt.Errorf("DEFAULT_INTERVAL_MIN must be between %d and %d",
			int(domain.MinInterval.Minutes()), int(domain.MaxInterval.Minutes())))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

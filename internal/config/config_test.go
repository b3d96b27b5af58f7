package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "./data/drinky.db", cfg.DBPath)
	assert.Equal(t, "UTC", cfg.DefaultTZ)
	assert.Equal(t, 2000, cfg.DefaultGoalML)
	assert.Equal(t, 60, cfg.DefaultIntervalMin)
	assert.Equal(t, RunModePolling, cfg.RunMode)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.False(t, cfg.DevCommands)
}

func TestLoad_RequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		BotToken:           "t",
		DefaultTZ:          "UTC",
		DefaultGoalML:      2000,
		DefaultIntervalMin: 60,
		RunMode:            RunModePolling,
		LogFormat:          "json",
		PollInterval:       time.Second,
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Config){
		"webhook without url": func(c *Config) { c.RunMode = RunModeWebhook },
		"unknown run mode":    func(c *Config) { c.RunMode = "push" },
		"bad tz":              func(c *Config) { c.DefaultTZ = "Nowhere/Land" },
		"negative goal":       func(c *Config) { c.DefaultGoalML = -1 },
		"tiny interval":       func(c *Config) { c.DefaultIntervalMin = 1 },
		"zero poll":           func(c *Config) { c.PollInterval = 0 },
		"bad log format":      func(c *Config) { c.LogFormat = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := valid
	c.RunMode, c.WebhookURL = RunModeWebhook, "https://example.com"
	assert.NoError(t, c.Validate())
}

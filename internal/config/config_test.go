package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		DBSSLMode:                "disable",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBPassword:               "secure-password",
		Port:                     "8080",
		ImageMaxUploadSizeMB:     10,
		DBConnMaxLifetimeMinutes: 1,
		RedisURL:                 "redis://localhost:6379",
		MailDriver:               "log",
		StoryTTLHours:            24,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with empty SSL mode", "prod", "", true},
		{"Prod with disable SSL mode", "prod", "disable", true},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Port = "" }},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }},
		{"missing redis", func(c *Config) { c.RedisURL = "" }},
		{"zero upload size", func(c *Config) { c.ImageMaxUploadSizeMB = 0 }},
		{"negative story ttl", func(c *Config) { c.StoryTTLHours = -1 }},
		{"unknown mail driver", func(c *Config) { c.MailDriver = "pigeon" }},
		{"default secret in production", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "require"
			c.JWTSecret = defaultJWTSecret
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	c := validConfig()
	c.SessionTTLHours = 2
	c.JobPollIntervalMS = 0

	assert.Equal(t, 24*time.Hour, c.StoryTTL())
	assert.Equal(t, 2*time.Hour, c.SessionTTL())
	assert.Equal(t, time.Second, c.JobPollInterval())

	c.JobPollIntervalMS = 250
	assert.Equal(t, 250*time.Millisecond, c.JobPollInterval())
}

func TestLoadConfig_SSLModeNormalization(t *testing.T) {
	// Clean up environment variables and viper after test
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 24, c.StoryTTLHours)
	assert.Equal(t, "@every 5m", c.StorySweepSpec)
	assert.Equal(t, "monolith_session", c.SessionCookieName)
}

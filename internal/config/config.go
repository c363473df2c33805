// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	Port              string `mapstructure:"PORT"`
	Env               string `mapstructure:"APP_ENV"`
	AllowedOrigins    string `mapstructure:"ALLOWED_ORIGINS"`
	FrontendURL       string `mapstructure:"FRONTEND_URL"`
	SessionCookieName string `mapstructure:"SESSION_COOKIE_NAME"`
	SessionTTLHours   int    `mapstructure:"SESSION_TTL_HOURS"`
	CookieSecure      bool   `mapstructure:"COOKIE_SECURE"`
	CSRFEnabled       bool   `mapstructure:"CSRF_ENABLED"`

	DBHost                        string `mapstructure:"DB_HOST"`
	DBPort                        string `mapstructure:"DB_PORT"`
	DBUser                        string `mapstructure:"DB_USER"`
	DBPassword                    string `mapstructure:"DB_PASSWORD"`
	DBName                        string `mapstructure:"DB_NAME"`
	DBSSLMode                     string `mapstructure:"DB_SSLMODE"`
	DBReadHost                    string `mapstructure:"DB_READ_HOST"`
	DBReadPort                    string `mapstructure:"DB_READ_PORT"`
	DBReadUser                    string `mapstructure:"DB_READ_USER"`
	DBReadPassword                string `mapstructure:"DB_READ_PASSWORD"`
	DBMaxOpenConns                int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	DevBootstrapRoot        bool   `mapstructure:"DEV_BOOTSTRAP_ROOT"`
	DevRootUsername         string `mapstructure:"DEV_ROOT_USERNAME"`
	DevRootEmail            string `mapstructure:"DEV_ROOT_EMAIL"`
	DevRootPassword         string `mapstructure:"DEV_ROOT_PASSWORD"`
	DevRootForceCredentials bool   `mapstructure:"DEV_ROOT_FORCE_CREDENTIALS"`
	DevSeedPreset           string `mapstructure:"DEV_SEED_PRESET"`

	FeatureFlags     string `mapstructure:"FEATURE_FLAGS"`
	FeatureFlagsFile string `mapstructure:"FEATURE_FLAGS_FILE"`

	MailDriver        string  `mapstructure:"MAIL_DRIVER"`
	MailFrom          string  `mapstructure:"MAIL_FROM"`
	MailRatePerSecond float64 `mapstructure:"MAIL_RATE_PER_SECOND"`
	SMTPHost          string  `mapstructure:"SMTP_HOST"`
	SMTPPort          int     `mapstructure:"SMTP_PORT"`
	SMTPUsername      string  `mapstructure:"SMTP_USERNAME"`
	SMTPPassword      string  `mapstructure:"SMTP_PASSWORD"`

	ImageKitPublicKey   string `mapstructure:"IMAGEKIT_PUBLIC_KEY"`
	ImageKitPrivateKey  string `mapstructure:"IMAGEKIT_PRIVATE_KEY"`
	ImageKitURLEndpoint string `mapstructure:"IMAGEKIT_URL_ENDPOINT"`

	MediaDir             string `mapstructure:"MEDIA_DIR"`
	MediaBaseURL         string `mapstructure:"MEDIA_BASE_URL"`
	ImageMaxUploadSizeMB int    `mapstructure:"MEDIA_MAX_UPLOAD_MB"`

	StoryTTLHours     int    `mapstructure:"STORY_TTL_HOURS"`
	JobPollIntervalMS int    `mapstructure:"JOB_POLL_INTERVAL_MS"`
	StorySweepSpec    string `mapstructure:"STORY_SWEEP_SPEC"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A local .env populates the process environment without overriding it.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment overrides from .env")
	}

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config
	// We intentionally ignore this error as the config file may not exist yet
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FRONTEND_URL", "http://localhost:5173")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("SESSION_COOKIE_NAME", "monolith_session")
	viper.SetDefault("SESSION_TTL_HOURS", 24*7)
	viper.SetDefault("COOKIE_SECURE", false)
	viper.SetDefault("CSRF_ENABLED", true)

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "monolith")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_READ_HOST", "")
	viper.SetDefault("DB_READ_PORT", "5432")
	viper.SetDefault("DB_READ_USER", "user")
	viper.SetDefault("DB_READ_PASSWORD", "password")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)

	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("DEV_BOOTSTRAP_ROOT", false)
	viper.SetDefault("DEV_ROOT_USERNAME", "monolith_root")
	viper.SetDefault("DEV_ROOT_EMAIL", "root@monolith.local")
	viper.SetDefault("DEV_ROOT_PASSWORD", "")
	viper.SetDefault("DEV_ROOT_FORCE_CREDENTIALS", false)
	viper.SetDefault("DEV_SEED_PRESET", "")

	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("FEATURE_FLAGS_FILE", "")

	viper.SetDefault("MAIL_DRIVER", "log")
	viper.SetDefault("MAIL_FROM", "no-reply@monolith.local")
	viper.SetDefault("MAIL_RATE_PER_SECOND", 2.0)
	viper.SetDefault("SMTP_HOST", "localhost")
	viper.SetDefault("SMTP_PORT", 1025)
	viper.SetDefault("SMTP_USERNAME", "")
	viper.SetDefault("SMTP_PASSWORD", "")

	viper.SetDefault("IMAGEKIT_PUBLIC_KEY", "")
	viper.SetDefault("IMAGEKIT_PRIVATE_KEY", "")
	viper.SetDefault("IMAGEKIT_URL_ENDPOINT", "")

	viper.SetDefault("MEDIA_DIR", "./storage/media")
	viper.SetDefault("MEDIA_BASE_URL", "/media")
	viper.SetDefault("MEDIA_MAX_UPLOAD_MB", 10)

	viper.SetDefault("STORY_TTL_HOURS", 24)
	viper.SetDefault("JOB_POLL_INTERVAL_MS", 1000)
	viper.SetDefault("STORY_SWEEP_SPEC", "@every 5m")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.MailDriver = strings.ToLower(strings.TrimSpace(c.MailDriver))
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// IsTest reports whether the config targets the test environment.
func (c *Config) IsTest() bool {
	return c.Env == "test"
}

// SessionTTL is the lifetime of issued session tokens.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// StoryTTL is how long a story stays visible.
func (c *Config) StoryTTL() time.Duration {
	return time.Duration(c.StoryTTLHours) * time.Hour
}

// JobPollInterval is how often the delayed job worker checks for due jobs.
func (c *Config) JobPollInterval() time.Duration {
	if c.JobPollIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.JobPollIntervalMS) * time.Millisecond
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.ImageMaxUploadSizeMB <= 0 {
		return errors.New("MEDIA_MAX_UPLOAD_MB must be positive")
	}
	if c.DBConnMaxLifetimeMinutes <= 0 {
		return errors.New("DB_CONN_MAX_LIFETIME_MINUTES must be positive")
	}
	if c.StoryTTLHours < 0 {
		return errors.New("STORY_TTL_HOURS must not be negative")
	}
	switch c.MailDriver {
	case "", "log", "smtp":
	default:
		return fmt.Errorf("unsupported MAIL_DRIVER %q", c.MailDriver)
	}

	// Strict checks for production
	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if !c.CookieSecure {
			log.Println("WARNING: COOKIE_SECURE is false in production. Session cookies will be sent over plain HTTP.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else {
		// Development/Test warnings
		if len(c.JWTSecret) < 32 {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
		}
	}

	return nil
}

// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	SecurityURL         string        `mapstructure:"SECURITY_URL"`
	SecurityTimeout     time.Duration `mapstructure:"SECURITY_TIMEOUT"`
	AdviserRoleID       string        `mapstructure:"ADVISER_ROLE_ID"`
	ClientRoleID        string        `mapstructure:"CLIENT_ROLE_ID"`
	NotificationsURL    string        `mapstructure:"NOTIFICATIONS_URL"`
	NotificationTimeout time.Duration `mapstructure:"NOTIFICATION_TIMEOUT"`
	NotificationWorkers int           `mapstructure:"NOTIFICATION_WORKERS"`

	MeiliHost   string `mapstructure:"MEILI_HOST"`
	MeiliAPIKey string `mapstructure:"MEILI_API_KEY"`
	MeiliIndex  string `mapstructure:"MEILI_INDEX"`

	SearchReindexCron string        `mapstructure:"SEARCH_REINDEX_CRON"`
	StaleRequestCron  string        `mapstructure:"STALE_REQUEST_CRON"`
	StaleRequestAge   time.Duration `mapstructure:"STALE_REQUEST_AGE"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars and defaults are enough to boot.
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

	SetDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.DBDriver = strings.ToLower(strings.TrimSpace(config.DBDriver))
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))
	config.SecurityURL = strings.TrimRight(config.SecurityURL, "/")
	config.NotificationsURL = strings.TrimRight(config.NotificationsURL, "/")

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults registers development defaults with viper.
func SetDefaults() {
	viper.SetDefault("PORT", "3000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:4200,http://localhost:3000")
	viper.SetDefault("DB_DRIVER", "mysql")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_USER", "root")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "akinmueble")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("SECURITY_URL", "http://localhost:3001")
	viper.SetDefault("SECURITY_TIMEOUT", "5s")
	viper.SetDefault("ADVISER_ROLE_ID", "643c8b6611b852318822326a")
	viper.SetDefault("CLIENT_ROLE_ID", "643c8b7111b852318822326b")
	viper.SetDefault("NOTIFICATIONS_URL", "http://localhost:7183/Notifications")
	viper.SetDefault("NOTIFICATION_TIMEOUT", "5s")
	viper.SetDefault("NOTIFICATION_WORKERS", 4)
	viper.SetDefault("MEILI_HOST", "")
	viper.SetDefault("MEILI_API_KEY", "")
	viper.SetDefault("MEILI_INDEX", "properties")
	viper.SetDefault("SEARCH_REINDEX_CRON", "0 3 * * *")
	viper.SetDefault("STALE_REQUEST_CRON", "0 8 * * 1-5")
	viper.SetDefault("STALE_REQUEST_AGE", "72h")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	switch c.DBDriver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be mysql or postgres, got %q", c.DBDriver)
	}
	if c.SecurityURL == "" {
		return errors.New("SECURITY_URL is required")
	}
	if c.NotificationsURL == "" {
		return errors.New("NOTIFICATIONS_URL is required")
	}
	if c.NotificationWorkers < 1 {
		return errors.New("NOTIFICATION_WORKERS must be at least 1")
	}
	if c.NotificationTimeout <= 0 {
		return errors.New("NOTIFICATION_TIMEOUT must be positive")
	}

	if c.IsProduction() {
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBDriver == "postgres" && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			return errors.New("DB_SSLMODE must not be 'disable' in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}

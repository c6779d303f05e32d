// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the accounting bot.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Server   ServerConfig   `mapstructure:"server"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Bot      BotConfig      `mapstructure:"bot"`
	Panel    PanelConfig    `mapstructure:"panel"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggerConfig configures slog output.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslMode,
	)
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// BotConfig configures the Telegram bot and the routing fallback.
type BotConfig struct {
	Token           string        `mapstructure:"token" validate:"required"`
	Mode            string        `mapstructure:"mode"` // polling or webhook
	Timeout         time.Duration `mapstructure:"timeout"`
	Language        string        `mapstructure:"language"`
	FallbackChatID  string        `mapstructure:"fallback_chat_id"`
	FallbackTopicID string        `mapstructure:"fallback_topic_id"`
}

// PanelConfig configures the external panel API. All three values empty
// means sync runs in degraded mode (disabled).
type PanelConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Configured reports whether the panel API client can be constructed.
func (c PanelConfig) Configured() bool {
	return c.BaseURL != "" && c.Username != "" && c.Password != ""
}

// WebhookConfig configures the inbound webhook endpoint.
type WebhookConfig struct {
	Secret     string        `mapstructure:"secret"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

// JobsConfig configures background processing.
type JobsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	SyncCron       string        `mapstructure:"sync_cron"`
	AuditRetention time.Duration `mapstructure:"audit_retention"`
}

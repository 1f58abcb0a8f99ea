// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config holds every environment-driven setting of the service.
type Config struct {
	// DatabaseURL selects the backing store: postgres:// for PostgreSQL,
	// sqlite:// or file: for the embedded SQLite store.
	DatabaseURL string `env:"DATABASE_URL,required"`

	Port            string        `env:"PORT"             envDefault:"5000"`
	AllowedOrigins  []string      `env:"CORS_ORIGINS"     envDefault:"https://qconnecttt.netlify.app" envSeparator:","`
	AdminEmails     []string      `env:"ADMIN_EMAILS"     envSeparator:","`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// HashConcurrency caps simultaneous password hashes. Each costs 64 MiB.
	HashConcurrency int `env:"PASSWORD_HASH_CONCURRENCY" envDefault:"4"`

	LeaderboardLimit int    `env:"LEADERBOARD_LIMIT" envDefault:"10"`
	QuizRoom         string `env:"QUIZ_ROOM"         envDefault:"quiz_room"`

	// RedisAddr is optional. When empty, live scores are kept in memory and
	// realtime events are not journaled.
	RedisAddr    string `env:"REDIS_ADDR"`
	RedisDB      int    `env:"REDIS_DB"         envDefault:"0"`
	LiveScoreKey string `env:"LIVE_SCORE_KEY"   envDefault:"qconnect:live_scores"`
	EventQueue   string `env:"EVENT_QUEUE_NAME" envDefault:"qconnect_events"`

	HistorianBatchSize     int           `env:"HISTORIAN_BATCH_SIZE"     envDefault:"20"`
	HistorianFlushInterval time.Duration `env:"HISTORIAN_FLUSH_INTERVAL" envDefault:"500ms"`
}

// Load parses the process environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg.normalize()
}

// LoadFrom parses the given key/value pairs instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg.normalize()
}

func (c Config) normalize() (Config, error) {
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	if c.DatabaseURL == "" {
		return c, fmt.Errorf("DATABASE_URL is required")
	}
	c.Port = strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	c.AllowedOrigins = trimAll(c.AllowedOrigins)
	c.AdminEmails = trimAll(c.AdminEmails)
	if c.LeaderboardLimit < 0 {
		return c, fmt.Errorf("LEADERBOARD_LIMIT must not be negative, got %d", c.LeaderboardLimit)
	}
	if strings.TrimSpace(c.QuizRoom) == "" {
		c.QuizRoom = "quiz_room"
	}
	if c.HashConcurrency <= 0 {
		return c, fmt.Errorf("PASSWORD_HASH_CONCURRENCY must be positive, got %d", c.HashConcurrency)
	}
	if c.HistorianBatchSize <= 0 {
		c.HistorianBatchSize = 20
	}
	if c.HistorianFlushInterval <= 0 {
		c.HistorianFlushInterval = 500 * time.Millisecond
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return c, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return c, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// NewLogger builds the process logger at the configured level.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

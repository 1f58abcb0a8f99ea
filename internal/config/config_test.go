package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"DATABASE_URL": "sqlite://quiz.db"})
	require.NoError(t, err)

	assert.Equal(t, "sqlite://quiz.db", cfg.DatabaseURL)
	assert.Equal(t, ":5000", cfg.Addr())
	assert.Equal(t, []string{"https://qconnecttt.netlify.app"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.AdminEmails)
	assert.Equal(t, 10, cfg.LeaderboardLimit)
	assert.Equal(t, "quiz_room", cfg.QuizRoom)
	assert.Equal(t, "qconnect_events", cfg.EventQueue)
	assert.Equal(t, 500*time.Millisecond, cfg.HistorianFlushInterval)
	assert.Equal(t, 4, cfg.HashConcurrency)
	assert.Equal(t, logrus.InfoLevel, cfg.NewLogger().GetLevel())
}

func TestLoadFromMissingDatabaseURL(t *testing.T) {
	_, err := LoadFrom(map[string]string{"PORT": "8080"})
	require.Error(t, err)
}

func TestLoadFromLists(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"DATABASE_URL": "postgres://quiz@localhost/quiz",
		"PORT":         ":8080",
		"ADMIN_EMAILS": " host@example.com, ,ops@example.com",
		"CORS_ORIGINS": "*",
		"LOG_LEVEL":    "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, []string{"host@example.com", "ops@example.com"}, cfg.AdminEmails)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, logrus.DebugLevel, cfg.NewLogger().GetLevel())
}

func TestLoadFromRejectsBadValues(t *testing.T) {
	_, err := LoadFrom(map[string]string{"DATABASE_URL": "sqlite://q.db", "LEADERBOARD_LIMIT": "-1"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"DATABASE_URL": "sqlite://q.db", "LOG_LEVEL": "loud"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"DATABASE_URL": "sqlite://q.db", "PASSWORD_HASH_CONCURRENCY": "0"})
	assert.Error(t, err)
}

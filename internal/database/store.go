// internal/database/store.go
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/qconnect/qconnect/internal/models"
	"github.com/sirupsen/logrus"
)

// Store is the full persistence surface used by the service. Both the
// PostgreSQL and the SQLite backends implement it.
type Store interface {
	// leaderboard
	UpsertBestScore(ctx context.Context, name string, score int) error
	ListLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	ListLeaderboardRows(ctx context.Context) ([]models.LeaderboardEntry, error)

	// option tallies
	IncrementOption(ctx context.Context, questionID, optionIndex int) (bool, error)
	ListQuestionTallies(ctx context.Context, questionID int) ([]models.OptionTally, error)
	ListAllTallies(ctx context.Context) ([]models.OptionTally, error)

	// users
	InsertUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserPassword(ctx context.Context, id int64, hash string) error

	// event journal
	InsertQuizEvents(ctx context.Context, events []models.QuizEvent) error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}

// Open connects to the store selected by url:
//
//	postgres://... or postgresql://...  PostgreSQL through pgx
//	sqlite://<path> or file:<path>      embedded SQLite
func Open(ctx context.Context, url string, logger *logrus.Logger) (Store, error) {
	url = strings.TrimSpace(url)
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return OpenPostgres(ctx, url, logger)
	case strings.HasPrefix(url, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(url, "sqlite://"), logger)
	case strings.HasPrefix(url, "file:"):
		return OpenSQLite(ctx, strings.TrimPrefix(url, "file:"), logger)
	case url == "":
		return nil, fmt.Errorf("database url is empty")
	default:
		return nil, fmt.Errorf("unsupported database url scheme in %q", redact(url))
	}
}

// redact hides credentials in a connection string before it is logged.
func redact(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return url
	}
	return scheme + "://***@" + rest[at+1:]
}

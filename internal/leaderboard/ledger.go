// Package leaderboard keeps one personal-best score per player name.
package leaderboard

import (
	"context"
	"math"
	"strings"

	"github.com/qconnect/qconnect/internal/apperr"
	"github.com/qconnect/qconnect/internal/models"
)

// Store is the persistence the ledger needs.
type Store interface {
	UpsertBestScore(ctx context.Context, name string, score int) error
	ListLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	ListLeaderboardRows(ctx context.Context) ([]models.LeaderboardEntry, error)
}

// Ledger owns the leaderboard entries.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Submit records score for name. The stored score only changes when score
// beats it. A nil score is missing; zero is a valid score. totalQuestions is
// echoed back and never stored.
func (l *Ledger) Submit(ctx context.Context, name *string, score *int, totalQuestions *int) (models.ScoreSubmission, error) {
	if name == nil || strings.TrimSpace(*name) == "" {
		return models.ScoreSubmission{}, apperr.Invalid("name", "Missing name or score")
	}
	if score == nil {
		return models.ScoreSubmission{}, apperr.Invalid("score", "Missing name or score")
	}
	// both stores keep the score in a 32-bit INTEGER column
	if *score < math.MinInt32 || *score > math.MaxInt32 {
		return models.ScoreSubmission{}, apperr.Invalid("score", "Score out of range")
	}

	if err := l.store.UpsertBestScore(ctx, *name, *score); err != nil {
		return models.ScoreSubmission{}, apperr.Persistence("submit score", err)
	}
	return models.ScoreSubmission{Name: *name, Score: *score, TotalQuestions: totalQuestions}, nil
}

// Ranked returns entries by score descending with dense 1-based ranks.
// limit <= 0 returns every entry.
func (l *Ledger) Ranked(ctx context.Context, limit int) ([]models.RankedEntry, error) {
	entries, err := l.store.ListLeaderboard(ctx, limit)
	if err != nil {
		return nil, apperr.Persistence("list leaderboard", err)
	}
	return Rank(entries), nil
}

// All dumps every stored row for inspection.
func (l *Ledger) All(ctx context.Context) ([]models.LeaderboardEntry, error) {
	entries, err := l.store.ListLeaderboardRows(ctx)
	if err != nil {
		return nil, apperr.Persistence("dump leaderboard", err)
	}
	return entries, nil
}

// Rank assigns position-based ranks to entries already sorted by score.
// Ties get consecutive ranks, so ranks never skip.
func Rank(entries []models.LeaderboardEntry) []models.RankedEntry {
	ranked := make([]models.RankedEntry, len(entries))
	for i, e := range entries {
		ranked[i] = models.RankedEntry{Rank: i + 1, Name: e.Name, Score: e.Score}
	}
	return ranked
}

// Package livescore tracks running scores while a quiz is in progress.
// Unlike the leaderboard, the latest write for a name wins.
package livescore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/qconnect/qconnect/internal/apperr"
	"github.com/qconnect/qconnect/internal/models"
)

// Board stores live scores. List orders by score descending, then name.
type Board interface {
	Set(ctx context.Context, name string, score int) error
	List(ctx context.Context) ([]models.LiveScore, error)
}

// Tracker validates updates before they reach the board.
type Tracker struct {
	board Board
}

func NewTracker(board Board) *Tracker {
	return &Tracker{board: board}
}

// Update overwrites the running score for name. A nil score is missing.
func (t *Tracker) Update(ctx context.Context, name *string, score *int) error {
	if name == nil || strings.TrimSpace(*name) == "" || score == nil {
		return apperr.Invalid("", "Missing name or score")
	}
	if err := t.board.Set(ctx, *name, *score); err != nil {
		return apperr.Persistence("update live score", err)
	}
	return nil
}

func (t *Tracker) List(ctx context.Context) ([]models.LiveScore, error) {
	scores, err := t.board.List(ctx)
	if err != nil {
		return nil, apperr.Persistence("list live scores", err)
	}
	return scores, nil
}

// MemoryBoard keeps scores in process memory.
type MemoryBoard struct {
	mu     sync.RWMutex
	scores map[string]int
}

func NewMemoryBoard() *MemoryBoard {
	return &MemoryBoard{scores: make(map[string]int)}
}

func (b *MemoryBoard) Set(_ context.Context, name string, score int) error {
	b.mu.Lock()
	b.scores[name] = score
	b.mu.Unlock()
	return nil
}

func (b *MemoryBoard) List(_ context.Context) ([]models.LiveScore, error) {
	b.mu.RLock()
	out := make([]models.LiveScore, 0, len(b.scores))
	for name, score := range b.scores {
		out = append(out, models.LiveScore{Name: name, Score: score})
	}
	b.mu.RUnlock()

	sortScores(out)
	return out, nil
}

func sortScores(scores []models.LiveScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Name < scores[j].Name
	})
}

package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/qconnect/qconnect/internal/apperr"
	"github.com/qconnect/qconnect/internal/models"
	"github.com/qconnect/qconnect/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestSubmitLowerScoreKeepsPersonalBest(t *testing.T) {
	ledger := NewLedger(testutil.SetupSQLite(t))
	ctx := context.Background()

	_, err := ledger.Submit(ctx, ptr("alice"), ptr(9), nil)
	require.NoError(t, err)
	got, err := ledger.Submit(ctx, ptr("alice"), ptr(4), ptr(10))
	require.NoError(t, err)
	assert.Equal(t, models.ScoreSubmission{Name: "alice", Score: 4, TotalQuestions: ptr(10)}, got)

	all, err := ledger.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 9, all[0].Score)

	_, err = ledger.Submit(ctx, ptr("alice"), ptr(12), nil)
	require.NoError(t, err)
	all, err = ledger.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, all[0].Score)
}

func TestSubmitManyTimesCreatesOneEntry(t *testing.T) {
	ledger := NewLedger(testutil.SetupSQLite(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			_, err := ledger.Submit(ctx, ptr("bob"), ptr(score), nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := ledger.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 24, all[0].Score)
}

func TestSubmitValidation(t *testing.T) {
	ledger := NewLedger(testutil.SetupSQLite(t))
	ctx := context.Background()

	_, err := ledger.Submit(ctx, nil, ptr(1), nil)
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = ledger.Submit(ctx, ptr(""), ptr(1), nil)
	assert.ErrorAs(t, err, &ve)

	_, err = ledger.Submit(ctx, ptr("carol"), nil, nil)
	assert.ErrorAs(t, err, &ve)

	// zero is a score, not a missing value
	_, err = ledger.Submit(ctx, ptr("carol"), ptr(0), nil)
	assert.NoError(t, err)
}

func TestSubmitRejectsScoresOutsideInt32(t *testing.T) {
	ledger := NewLedger(testutil.SetupSQLite(t))
	ctx := context.Background()

	for _, score := range []int{math.MaxInt32 + 1, math.MinInt32 - 1, math.MaxInt64} {
		_, err := ledger.Submit(ctx, ptr("dave"), ptr(score), nil)
		var ve *apperr.ValidationError
		require.ErrorAs(t, err, &ve, "%d", score)
		assert.Equal(t, "score", ve.Field)
	}

	rows, err := ledger.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	for _, score := range []int{math.MaxInt32, math.MinInt32} {
		_, err := ledger.Submit(ctx, ptr("erin"), ptr(score), nil)
		assert.NoError(t, err, "%d", score)
	}
}

func TestRankedIsSortedAndDense(t *testing.T) {
	ledger := NewLedger(testutil.SetupSQLite(t))
	ctx := context.Background()

	for name, score := range map[string]int{"a": 3, "b": 7, "c": 7, "d": 1, "e": 5} {
		_, err := ledger.Submit(ctx, ptr(name), ptr(score), nil)
		require.NoError(t, err)
	}

	ranked, err := ledger.Ranked(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 5)
	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, ranked[i-1].Score, r.Score)
		}
	}
	assert.Equal(t, 7, ranked[0].Score)
	assert.Equal(t, 1, ranked[4].Score)

	top, err := ledger.Ranked(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

type failingStore struct{ err error }

func (f failingStore) UpsertBestScore(context.Context, string, int) error { return f.err }
func (f failingStore) ListLeaderboard(context.Context, int) ([]models.LeaderboardEntry, error) {
	return nil, f.err
}
func (f failingStore) ListLeaderboardRows(context.Context) ([]models.LeaderboardEntry, error) {
	return nil, f.err
}

func TestStoreFailureIsPersistenceError(t *testing.T) {
	down := errors.New("connection refused")
	ledger := NewLedger(failingStore{err: fmt.Errorf("exec: %w", down)})
	ctx := context.Background()

	var pe *apperr.PersistenceError
	_, err := ledger.Submit(ctx, ptr("dave"), ptr(1), nil)
	assert.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, down)

	_, err = ledger.Ranked(ctx, 0)
	assert.ErrorAs(t, err, &pe)

	_, err = ledger.All(ctx)
	assert.ErrorAs(t, err, &pe)
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}

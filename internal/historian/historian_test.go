package historian

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/qconnect/qconnect/internal/models"
	"github.com/qconnect/qconnect/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSource struct {
	ch chan models.QuizEvent
}

func (c *chanSource) Pop(ctx context.Context, timeout time.Duration) (*models.QuizEvent, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case ev := <-c.ch:
		return &ev, nil
	case <-t.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type recordingStore struct {
	mu      sync.Mutex
	batches [][]models.QuizEvent
	fail    bool
}

func (r *recordingStore) InsertQuizEvents(_ context.Context, events []models.QuizEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("db down")
	}
	r.batches = append(r.batches, events)
	return nil
}

func (r *recordingStore) snapshot() [][]models.QuizEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]models.QuizEvent(nil), r.batches...)
}

func (r *recordingStore) total() int {
	n := 0
	for _, b := range r.snapshot() {
		n += len(b)
	}
	return n
}

func start(t *testing.T, svc *Service) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestFlushesWhenBatchIsFull(t *testing.T) {
	src := &chanSource{ch: make(chan models.QuizEvent, 10)}
	store := &recordingStore{}
	svc := NewService(src, store, Options{BatchSize: 3, FlushInterval: time.Hour, PollTimeout: 10 * time.Millisecond}, testutil.Logger())
	stop := start(t, svc)
	defer stop()

	for i := 0; i < 3; i++ {
		src.ch <- models.QuizEvent{Event: "question_update", Timestamp: int64(i)}
	}

	require.Eventually(t, func() bool { return store.total() == 3 }, 2*time.Second, 5*time.Millisecond)
	batches := store.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, int64(0), batches[0][0].Timestamp)
	assert.Equal(t, int64(2), batches[0][2].Timestamp)
}

func TestFlushesOnInterval(t *testing.T) {
	src := &chanSource{ch: make(chan models.QuizEvent, 10)}
	store := &recordingStore{}
	svc := NewService(src, store, Options{BatchSize: 100, FlushInterval: 20 * time.Millisecond, PollTimeout: 5 * time.Millisecond}, testutil.Logger())
	stop := start(t, svc)
	defer stop()

	src.ch <- models.QuizEvent{Event: "quiz_started"}

	require.Eventually(t, func() bool { return store.total() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestFlushesRemainderOnShutdown(t *testing.T) {
	src := &chanSource{ch: make(chan models.QuizEvent, 10)}
	store := &recordingStore{}
	svc := NewService(src, store, Options{BatchSize: 100, FlushInterval: time.Hour, PollTimeout: 5 * time.Millisecond}, testutil.Logger())
	stop := start(t, svc)

	src.ch <- models.QuizEvent{Event: "message"}
	src.ch <- models.QuizEvent{Event: "quiz_started"}
	require.Eventually(t, func() bool { return len(src.ch) == 0 }, 2*time.Second, 5*time.Millisecond)
	// the second event may still be in flight inside Pop
	time.Sleep(20 * time.Millisecond)

	stop()
	assert.Equal(t, 2, store.total())
}

func TestFailedBatchIsDropped(t *testing.T) {
	src := &chanSource{ch: make(chan models.QuizEvent, 10)}
	store := &recordingStore{fail: true}
	svc := NewService(src, store, Options{BatchSize: 1, FlushInterval: time.Hour, PollTimeout: 5 * time.Millisecond}, testutil.Logger())
	stop := start(t, svc)

	src.ch <- models.QuizEvent{Event: "message"}
	require.Eventually(t, func() bool { return len(src.ch) == 0 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	stop()
	assert.Empty(t, svc.batch)
	assert.Zero(t, store.total())
}

func TestPersistsToSQLite(t *testing.T) {
	db := testutil.SetupSQLite(t)
	src := &chanSource{ch: make(chan models.QuizEvent, 10)}
	svc := NewService(src, db, Options{BatchSize: 2, FlushInterval: time.Hour, PollTimeout: 5 * time.Millisecond}, testutil.Logger())
	stop := start(t, svc)

	src.ch <- models.QuizEvent{Event: "quiz_started", Room: "quiz_room", Sender: "a", Timestamp: time.Now().UnixMilli()}
	src.ch <- models.QuizEvent{Event: "question_update", Room: "quiz_room", Sender: "a", Timestamp: time.Now().UnixMilli()}

	require.Eventually(t, func() bool {
		n, err := db.CountQuizEvents(context.Background())
		return err == nil && n == 2
	}, 2*time.Second, 10*time.Millisecond)
	stop()
}

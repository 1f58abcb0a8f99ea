// Package cache holds the Redis-backed pieces: the client bootstrap and the
// realtime event journal queue.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/qconnect/qconnect/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Connect returns a client for addr that has answered a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

const defaultQueueBuffer = 256

// EventQueue journals realtime events to a Redis list. Producers call Record,
// which never blocks; Run drains the buffer with RPush. The historian reads the
// other end with Pop.
type EventQueue struct {
	rdb    *redis.Client
	name   string
	logger *logrus.Logger
	buf    chan models.QuizEvent
}

func NewEventQueue(rdb *redis.Client, name string, logger *logrus.Logger) *EventQueue {
	return &EventQueue{
		rdb:    rdb,
		name:   name,
		logger: logger,
		buf:    make(chan models.QuizEvent, defaultQueueBuffer),
	}
}

// Record buffers ev for publishing. When the buffer is full the event is
// dropped and logged.
func (q *EventQueue) Record(ev models.QuizEvent) {
	select {
	case q.buf <- ev:
	default:
		q.logger.WithField("event", ev.Event).Warn("event journal buffer full; dropping event")
	}
}

// Run publishes buffered events until ctx is done, then drains what is left.
func (q *EventQueue) Run(ctx context.Context) {
	for {
		select {
		case ev := <-q.buf:
			q.publishLogged(ctx, ev)
		case <-ctx.Done():
			q.drain()
			return
		}
	}
}

func (q *EventQueue) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-q.buf:
			q.publishLogged(ctx, ev)
		default:
			return
		}
	}
}

func (q *EventQueue) publishLogged(ctx context.Context, ev models.QuizEvent) {
	if err := q.Publish(ctx, ev); err != nil {
		q.logger.Errorf("journal event %q: %v", ev.Event, err)
	}
}

// Publish serializes ev and pushes it onto the queue.
func (q *EventQueue) Publish(ctx context.Context, ev models.QuizEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal QuizEvent: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop waits up to timeout for the next event. It returns nil, nil when the
// wait times out.
func (q *EventQueue) Pop(ctx context.Context, timeout time.Duration) (*models.QuizEvent, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blpop %s: %w", q.name, err)
	}
	// res[0] is the list name, res[1] the payload
	if len(res) < 2 {
		return nil, nil
	}

	var ev models.QuizEvent
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return nil, fmt.Errorf("invalid quiz event: %w", err)
	}
	return &ev, nil
}

// Package historian drains the realtime event journal into the database in
// batches.
package historian

import (
	"context"
	"time"

	"github.com/qconnect/qconnect/internal/models"
	"github.com/sirupsen/logrus"
)

// Source yields journaled events. Pop returns nil, nil when nothing arrived
// within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.QuizEvent, error)
}

// Store persists one batch atomically.
type Store interface {
	InsertQuizEvents(ctx context.Context, events []models.QuizEvent) error
}

type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	// PollTimeout bounds each wait on the source. Redis rounds anything under
	// a second up to one second.
	PollTimeout time.Duration
}

// Service batches events from a Source and flushes them to a Store when the
// batch is full, when FlushInterval elapses, and on shutdown. The batch is
// owned by the Run goroutine.
type Service struct {
	source Source
	store  Store
	opts   Options
	logger *logrus.Logger

	batch []models.QuizEvent
}

func NewService(source Source, store Store, opts Options, logger *logrus.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = time.Second
	}
	return &Service{
		source: source,
		store:  store,
		opts:   opts,
		logger: logger,
		batch:  make([]models.QuizEvent, 0, opts.BatchSize),
	}
}

// Run blocks until ctx is done. Whatever is still batched is flushed before
// it returns.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()

	s.logger.Info("qconnect-historian started")
	defer s.logger.Info("qconnect-historian stopped")

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.flush(flushCtx)
			cancel()
			return

		case <-ticker.C:
			s.flush(ctx)

		default:
			ev, err := s.source.Pop(ctx, s.opts.PollTimeout)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.logger.Errorf("pop event: %v", err)
				s.backoff(ctx)
				continue
			}
			if ev == nil {
				continue
			}
			s.batch = append(s.batch, *ev)
			if len(s.batch) >= s.opts.BatchSize {
				s.flush(ctx)
			}
		}
	}
}

func (s *Service) backoff(ctx context.Context) {
	t := time.NewTimer(s.opts.PollTimeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// flush writes the pending batch in one transaction. A failed batch is logged
// and dropped.
func (s *Service) flush(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	pending := make([]models.QuizEvent, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]

	if err := s.store.InsertQuizEvents(ctx, pending); err != nil {
		s.logger.Errorf("flush %d events: %v", len(pending), err)
		return
	}
	s.logger.Debugf("flushed %d events to DB", len(pending))
}

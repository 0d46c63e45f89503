package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"grove/internal/modules/focus/domain"
	focusout "grove/internal/modules/focus/port/out"
	apperrors "grove/internal/platform/errors"
)

// Persister writes terminated sessions in the order they were enqueued. A
// single worker drains an unbounded queue, so enqueueing never blocks the
// focus loop and two completions are never reordered.
type Persister struct {
	store      focusout.SessionStore
	logger     *slog.Logger
	metrics    *Metrics
	maxElapsed time.Duration
	report     func(error)

	mu    sync.Mutex
	queue []domain.Session
	idle  chan struct{}
	wake  chan struct{}
}

func NewPersister(store focusout.SessionStore, logger *slog.Logger, metrics *Metrics, maxElapsed time.Duration, report func(error)) *Persister {
	if report == nil {
		report = func(error) {}
	}
	return &Persister{
		store:      store,
		logger:     logger,
		metrics:    metrics,
		maxElapsed: maxElapsed,
		report:     report,
		wake:       make(chan struct{}, 1),
	}
}

func (p *Persister) Enqueue(session domain.Session) {
	p.mu.Lock()
	p.queue = append(p.queue, session)
	if p.idle == nil {
		p.idle = make(chan struct{})
	}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run processes the queue until ctx is done. Sessions still queued at that
// point stay queued.
func (p *Persister) Run(ctx context.Context) {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			if p.idle != nil {
				close(p.idle)
				p.idle = nil
			}
			p.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				continue
			}
		}
		session := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.persist(ctx, session)
	}
}

// Drain blocks until every enqueued session has been handled or ctx is done.
func (p *Persister) Drain(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports how many sessions are queued and not yet picked up.
func (p *Persister) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Persister) persist(ctx context.Context, session domain.Session) {
	inserted := false
	insert := func() (domain.Session, error) {
		stored, ok, err := p.store.Insert(ctx, session)
		if err != nil {
			if errors.Is(err, apperrors.ErrInvalidSession) {
				return domain.Session{}, backoff.Permanent(err)
			}
			return domain.Session{}, err
		}
		inserted = ok
		return stored, nil
	}
	notify := func(err error, next time.Duration) {
		p.metrics.PersistRetries.Inc()
		p.logger.Warn("retrying session write", "run_id", session.RunID, "error", err, "next", next)
	}

	stored, err := backoff.Retry(ctx, insert,
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxElapsedTime(p.maxElapsed),
		backoff.WithNotify(notify),
	)
	if err != nil {
		p.metrics.PersistFailures.Inc()
		p.logger.Error("session write failed", "run_id", session.RunID, "error", err)
		p.report(fmt.Errorf("record session %s: %w", session.RunID, err))
		return
	}
	if !inserted {
		p.logger.Info("session already recorded", "run_id", stored.RunID, "id", stored.ID)
		return
	}
	p.metrics.SessionsRecorded.WithLabelValues(outcomeLabel(stored.Success)).Inc()
	p.logger.Info("session recorded",
		"run_id", stored.RunID,
		"id", stored.ID,
		"planned_minutes", stored.PlannedMinutes,
		"actual_minutes", stored.ActualMinutes,
		"success", stored.Success,
	)
}

func (p *Persister) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(100*time.Millisecond, p.maxElapsed/10)
	b.MaxInterval = max(p.maxElapsed/4, b.InitialInterval)
	return b
}

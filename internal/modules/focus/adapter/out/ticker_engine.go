package out

import (
	"context"
	"sync"
	"time"

	"grove/internal/modules/focus/domain"
	"grove/internal/platform/clock"
)

// TickerEngine counts down on its own goroutine. Remaining time is always
// derived from the absolute end time, so a process that was suspended
// catches up on its next tick instead of drifting.
type TickerEngine struct {
	clock    clock.Clock
	interval time.Duration
	events   chan domain.TimerEvent

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTickerEngine(clk clock.Clock, interval time.Duration) *TickerEngine {
	if interval <= 0 {
		interval = time.Second
	}
	return &TickerEngine{
		clock:    clk,
		interval: interval,
		events:   make(chan domain.TimerEvent, 1),
	}
}

func (e *TickerEngine) Events() <-chan domain.TimerEvent {
	return e.events
}

func (e *TickerEngine) Start(ctx context.Context, runID string, endsAt time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	go e.run(runCtx, runID, endsAt, done)
	return nil
}

// Cancel stops the running countdown. An event already buffered may still be
// delivered after Cancel returns.
func (e *TickerEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *TickerEngine) stopLocked() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil
}

func (e *TickerEngine) run(ctx context.Context, runID string, endsAt time.Time, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	end := time.NewTimer(max(endsAt.Sub(e.clock.Now()), 0))
	defer end.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-end.C:
			// The wall clock may lag the monotonic timer slightly.
			if remaining := endsAt.Sub(e.clock.Now()); remaining > 0 {
				end.Reset(remaining)
				continue
			}
			e.send(ctx, domain.Finish(runID))
			return
		case <-ticker.C:
			remaining := endsAt.Sub(e.clock.Now()).Milliseconds()
			if remaining <= 0 {
				e.send(ctx, domain.Finish(runID))
				return
			}
			if !e.send(ctx, domain.Tick(runID, remaining)) {
				return
			}
		}
	}
}

func (e *TickerEngine) send(ctx context.Context, event domain.TimerEvent) bool {
	select {
	case e.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"grove/internal/modules/focus/domain"
	apperrors "grove/internal/platform/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type seqID struct {
	mu sync.Mutex
	n  int
}

func (s *seqID) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("run-%d", s.n)
}

type memoryPrefs struct {
	mu         sync.Mutex
	duration   *float64
	onboarded  bool
	setCalls   []int
	failWrites bool
}

func (p *memoryPrefs) DurationMinutes(context.Context) (float64, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.duration == nil {
		return 0, false, nil
	}
	return *p.duration, true, nil
}

func (p *memoryPrefs) SetDurationMinutes(_ context.Context, minutes int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWrites {
		return errors.New("disk full")
	}
	v := float64(minutes)
	p.duration = &v
	p.setCalls = append(p.setCalls, minutes)
	return nil
}

func (p *memoryPrefs) OnboardingCompleted(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onboarded, nil
}

func (p *memoryPrefs) SetOnboardingCompleted(_ context.Context, completed bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onboarded = completed
	return nil
}

type memoryActive struct {
	mu    sync.Mutex
	timer *domain.ActiveTimer
}

func (a *memoryActive) SaveActive(_ context.Context, timer domain.ActiveTimer) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timer = &timer
	return nil
}

func (a *memoryActive) LoadActive(context.Context) (domain.ActiveTimer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer == nil {
		return domain.ActiveTimer{}, apperrors.ErrNoActiveTimer
	}
	return *a.timer, nil
}

func (a *memoryActive) ClearActive(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timer = nil
	return nil
}

func (a *memoryActive) get() *domain.ActiveTimer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer
}

// memorySessions fails the first failures inserts and blocks every insert
// while gate is non-nil and open.
type memorySessions struct {
	mu       sync.Mutex
	rows     []domain.Session
	attempts int
	failures int
	failErr  error
	gate     chan struct{}
}

func (m *memorySessions) Insert(ctx context.Context, session domain.Session) (domain.Session, bool, error) {
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return domain.Session{}, false, ctx.Err()
		}
	}
	if err := session.Validate(); err != nil {
		return domain.Session{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.failures > 0 {
		m.failures--
		if m.failErr != nil {
			return domain.Session{}, false, m.failErr
		}
		return domain.Session{}, false, errors.New("database is locked")
	}
	for _, row := range m.rows {
		if row.RunID == session.RunID {
			return row, false, nil
		}
	}
	session.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, session)
	return session, true, nil
}

func (m *memorySessions) List(context.Context) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Session, len(m.rows))
	for i := range m.rows {
		out[len(m.rows)-1-i] = m.rows[i]
	}
	return out, nil
}

func (m *memorySessions) Observe(ctx context.Context) (<-chan []domain.Session, error) {
	list, _ := m.List(ctx)
	ch := make(chan []domain.Session, 1)
	ch <- list
	return ch, nil
}

func (m *memorySessions) stored() []domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Session(nil), m.rows...)
}

type fakeEngine struct {
	mu      sync.Mutex
	events  chan domain.TimerEvent
	started []startCall
	cancels int
	fail    error
}

type startCall struct {
	runID  string
	endsAt time.Time
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan domain.TimerEvent)}
}

func (e *fakeEngine) Start(_ context.Context, runID string, endsAt time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return e.fail
	}
	e.started = append(e.started, startCall{runID: runID, endsAt: endsAt})
	return nil
}

func (e *fakeEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels++
}

func (e *fakeEngine) Events() <-chan domain.TimerEvent {
	return e.events
}

func (e *fakeEngine) starts() []startCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]startCall(nil), e.started...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

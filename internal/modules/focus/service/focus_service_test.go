package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"grove/internal/modules/focus/domain"
	"grove/internal/modules/focus/service"
	apperrors "grove/internal/platform/errors"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	svc      *service.FocusService
	clock    *fakeClock
	prefs    *memoryPrefs
	active   *memoryActive
	sessions *memorySessions
	engine   *fakeEngine
	metrics  *service.Metrics
	cancel   context.CancelFunc
	done     chan error
	stopOnce sync.Once
}

func newHarness(t *testing.T, setup func(h *harness)) *harness {
	t.Helper()
	h := &harness{
		clock:    &fakeClock{now: t0},
		prefs:    &memoryPrefs{},
		active:   &memoryActive{},
		sessions: &memorySessions{},
		engine:   newFakeEngine(),
		metrics:  service.NewMetrics(nil),
		done:     make(chan error, 1),
	}
	opts := service.Options{PersistMaxElapsed: time.Second}
	if setup != nil {
		setup(h)
	}
	if h.sessions.failures > 0 {
		opts.PersistMaxElapsed = 50 * time.Millisecond
	}
	h.svc = service.NewFocusService(service.Deps{
		Clock:       h.clock,
		IDs:         &seqID{},
		Preferences: h.prefs,
		Active:      h.active,
		Sessions:    h.sessions,
		Engine:      h.engine,
		Metrics:     h.metrics,
	}, opts)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.svc.Run(ctx) }()
	t.Cleanup(h.shutdown)
	return h
}

func (h *harness) shutdown() {
	h.stopOnce.Do(func() {
		h.cancel()
		<-h.done
	})
}

func TestStartSavesActiveTimerAndStartsEngine(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.svc.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !res.Applied || !res.State.Running || res.State.RunID != "run-1" {
		t.Fatalf("unexpected start result %+v", res)
	}
	if res.State.SessionDurationMs != 25*60_000 || res.State.RemainingMs != 25*60_000 {
		t.Fatalf("expected default 25 minute session, got %+v", res.State)
	}
	timer := h.active.get()
	if timer == nil || timer.RunID != "run-1" || !timer.EndsAt.Equal(t0.Add(25*time.Minute)) {
		t.Fatalf("unexpected active timer %+v", timer)
	}
	starts := h.engine.starts()
	if len(starts) != 1 || starts[0].runID != "run-1" || !starts[0].endsAt.Equal(timer.EndsAt) {
		t.Fatalf("unexpected engine starts %+v", starts)
	}
	if got := testutil.ToFloat64(h.metrics.SessionRunning); got != 1 {
		t.Fatalf("running gauge = %v, want 1", got)
	}

	again, err := h.svc.Start(ctx)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if again.Applied {
		t.Fatalf("second start must be a no-op")
	}
}

func TestStartRollsBackWhenEngineFails(t *testing.T) {
	t.Parallel()
	engineDown := errors.New("engine down")
	h := newHarness(t, func(h *harness) { h.engine.fail = engineDown })
	ctx := context.Background()

	res, err := h.svc.Start(ctx)
	if !errors.Is(err, engineDown) {
		t.Fatalf("start error = %v, want engine failure", err)
	}
	if res.Applied || res.State.Running || res.State.RemainingMs != 0 {
		t.Fatalf("machine left running: %+v", res)
	}
	if h.svc.State().Running {
		t.Fatalf("published state still running")
	}
	if timer := h.active.get(); timer != nil {
		t.Fatalf("active timer kept after failed start: %+v", timer)
	}
	if got := testutil.ToFloat64(h.metrics.SessionRunning); got != 0 {
		t.Fatalf("running gauge = %v, want 0", got)
	}
	if res, err := h.svc.SetDuration(ctx, 40); err != nil || !res.Applied {
		t.Fatalf("duration should be editable again: %+v, %v", res, err)
	}
}

func TestResumeRollsBackWhenEngineFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(h *harness) {
		h.engine.fail = errors.New("engine down")
		h.active.timer = &domain.ActiveTimer{
			RunID:          "earlier",
			PlannedMinutes: 25,
			DurationMs:     25 * 60_000,
			StartedAt:      t0.Add(-5 * time.Minute),
			EndsAt:         t0.Add(20 * time.Minute),
		}
	})

	<-h.svc.Ready()
	if h.svc.State().Running {
		t.Fatalf("resumed without a countdown")
	}
	if timer := h.active.get(); timer != nil {
		t.Fatalf("active timer kept: %+v", timer)
	}
	select {
	case err := <-h.svc.Errors():
		if !errors.Is(err, h.engine.fail) {
			t.Fatalf("reported %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("resume failure was not reported")
	}
}

func TestStopResetsStateBeforeWriteIsConfirmed(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	h := newHarness(t, func(h *harness) { h.sessions.gate = gate })
	ctx := context.Background()

	if _, err := h.svc.SetDuration(ctx, 10); err != nil {
		t.Fatalf("set duration: %v", err)
	}
	if _, err := h.svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.engine.events <- domain.Tick("run-1", 300_000)
	waitFor(t, "tick applied", func() bool { return h.svc.State().Growth == 0.5 })

	res, err := h.svc.Stop(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !res.Applied {
		t.Fatalf("stop was not applied")
	}
	if want := (domain.State{DurationMinutes: 10}); res.State != want {
		t.Fatalf("state after stop = %+v, want %+v", res.State, want)
	}
	if len(h.sessions.stored()) != 0 {
		t.Fatalf("session written before the store was released")
	}
	if h.active.get() != nil {
		t.Fatalf("active timer must be cleared on stop")
	}

	close(gate)
	waitFor(t, "session stored", func() bool { return len(h.sessions.stored()) == 1 })
	got := h.sessions.stored()[0]
	if got.Success || got.ActualMinutes != 5 || got.PlannedMinutes != 10 {
		t.Fatalf("unexpected abandoned session %+v", got)
	}
	waitFor(t, "abandoned counter", func() bool {
		return testutil.ToFloat64(h.metrics.SessionsRecorded.WithLabelValues("abandoned")) == 1
	})
}

func TestFinishRecordsSuccessAndUnlocksDuration(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	locked, err := h.svc.SetDuration(ctx, 30)
	if err != nil {
		t.Fatalf("set duration while running: %v", err)
	}
	if locked.Applied || locked.State.DurationMinutes != 25 {
		t.Fatalf("duration must be locked while running, got %+v", locked)
	}

	h.engine.events <- domain.Tick("run-1", 42_000)
	h.engine.events <- domain.Finish("run-1")
	waitFor(t, "session stored", func() bool { return len(h.sessions.stored()) == 1 })
	got := h.sessions.stored()[0]
	if !got.Success || got.ActualMinutes != 25 || got.PlannedMinutes != 25 {
		t.Fatalf("unexpected completed session %+v", got)
	}

	unlocked, err := h.svc.SetDuration(ctx, 30)
	if err != nil {
		t.Fatalf("set duration after finish: %v", err)
	}
	if !unlocked.Applied || unlocked.State.DurationMinutes != 30 {
		t.Fatalf("duration must be accepted after finish, got %+v", unlocked)
	}
	h.prefs.mu.Lock()
	calls := append([]int(nil), h.prefs.setCalls...)
	h.prefs.mu.Unlock()
	if len(calls) != 1 || calls[0] != 30 {
		t.Fatalf("preference writes = %v, want [30]", calls)
	}
}

func TestStaleAndLateEventsAreIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.engine.events <- domain.Tick("stale", 1_000)
	h.engine.events <- domain.Finish("run-1")
	h.engine.events <- domain.Tick("run-1", 500)
	h.engine.events <- domain.Finish("run-1")

	waitFor(t, "ignored events counted", func() bool {
		return testutil.ToFloat64(h.metrics.IgnoredEvents.WithLabelValues("stale_run")) == 1 &&
			testutil.ToFloat64(h.metrics.IgnoredEvents.WithLabelValues("after_termination")) == 2
	})
	waitFor(t, "single session stored", func() bool { return len(h.sessions.stored()) == 1 })
	if h.svc.State().Running {
		t.Fatalf("late events must not restart the session")
	}
}

func TestResumesActiveTimerOnStartup(t *testing.T) {
	t.Parallel()
	timer := domain.ActiveTimer{
		RunID:          "previous",
		PlannedMinutes: 20,
		DurationMs:     20 * 60_000,
		StartedAt:      t0.Add(-5 * time.Minute),
		EndsAt:         t0.Add(15 * time.Minute),
	}
	h := newHarness(t, func(h *harness) { h.active.timer = &timer })

	waitFor(t, "resumed state", func() bool { return h.svc.State().Running })
	state := h.svc.State()
	if state.RunID != "previous" || state.RemainingMs != 15*60_000 || state.PlannedMinutes() != 20 {
		t.Fatalf("unexpected resumed state %+v", state)
	}
	starts := h.engine.starts()
	if len(starts) != 1 || starts[0].runID != "previous" || !starts[0].endsAt.Equal(timer.EndsAt) {
		t.Fatalf("engine not resumed: %+v", starts)
	}

	h.engine.events <- domain.Finish("previous")
	waitFor(t, "resumed session stored", func() bool { return len(h.sessions.stored()) == 1 })
	if got := h.sessions.stored()[0]; !got.Success || got.ActualMinutes != 20 {
		t.Fatalf("unexpected session %+v", got)
	}
}

func TestExpiredActiveTimerFinishesAsSuccess(t *testing.T) {
	t.Parallel()
	timer := domain.ActiveTimer{
		RunID:          "overnight",
		PlannedMinutes: 45,
		DurationMs:     45 * 60_000,
		StartedAt:      t0.Add(-10 * time.Hour),
		EndsAt:         t0.Add(-10*time.Hour + 45*time.Minute),
	}
	h := newHarness(t, func(h *harness) { h.active.timer = &timer })

	waitFor(t, "expired session stored", func() bool { return len(h.sessions.stored()) == 1 })
	got := h.sessions.stored()[0]
	if got.RunID != "overnight" || !got.Success || got.ActualMinutes != 45 || !got.RecordedAt.Equal(timer.EndsAt) {
		t.Fatalf("unexpected session %+v", got)
	}
	if h.active.get() != nil {
		t.Fatalf("active timer must be cleared")
	}
	if h.svc.State().Running {
		t.Fatalf("expired session must not keep running")
	}
	if len(h.engine.starts()) != 0 {
		t.Fatalf("engine must not start for an expired timer")
	}
}

func TestShutdownKeepsActiveTimerAndRejectsRequests(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.shutdown()
	if _, err := h.svc.Stop(ctx); !errors.Is(err, apperrors.ErrServiceStopped) {
		t.Fatalf("expected service stopped error, got %v", err)
	}
	if h.active.get() == nil {
		t.Fatalf("active timer must survive shutdown")
	}
	if len(h.sessions.stored()) != 0 {
		t.Fatalf("shutdown must not record the running session")
	}
}

func TestPersistFailureIsReported(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(h *harness) { h.sessions.failures = 1_000 })
	ctx := context.Background()

	if _, err := h.svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := h.svc.Stop(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if res.State.Running {
		t.Fatalf("state must reset even when the write later fails")
	}
	select {
	case err := <-h.svc.Errors():
		if err == nil {
			t.Fatalf("expected persistence error")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("persistence failure was not reported")
	}
	if got := testutil.ToFloat64(h.metrics.PersistFailures); got != 1 {
		t.Fatalf("persist failures = %v, want 1", got)
	}
}

func TestOnboardingFlag(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()

	done, err := h.svc.OnboardingStatus(ctx)
	if err != nil || done {
		t.Fatalf("initial onboarding = %v err=%v", done, err)
	}
	if _, err := h.svc.CompleteOnboarding(ctx); err != nil {
		t.Fatalf("complete onboarding: %v", err)
	}
	done, err = h.svc.OnboardingStatus(ctx)
	if err != nil || !done {
		t.Fatalf("onboarding after completion = %v err=%v", done, err)
	}
}

func TestStoredDurationPreferenceIsSnapped(t *testing.T) {
	t.Parallel()
	stored := 47.0
	h := newHarness(t, func(h *harness) { h.prefs.duration = &stored })

	res, err := h.svc.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.State.DurationMinutes != 45 || res.State.SessionDurationMs != 45*60_000 {
		t.Fatalf("unexpected state %+v", res.State)
	}
}

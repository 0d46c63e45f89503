package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"grove/internal/modules/focus/domain"
	focusout "grove/internal/modules/focus/port/out"
	"grove/internal/platform/broadcast"
	"grove/internal/platform/clock"
	apperrors "grove/internal/platform/errors"
	"grove/internal/platform/id"
	"grove/internal/platform/logging"
)

// Result is the state after a request together with whether the request
// changed anything.
type Result struct {
	State   domain.State
	Applied bool
}

type Deps struct {
	Clock       clock.Clock
	IDs         id.Generator
	Preferences focusout.PreferencesStore
	Active      focusout.ActiveTimerStore
	Sessions    focusout.SessionStore
	Engine      focusout.TimerEngine
	Logger      *slog.Logger
	Metrics     *Metrics
}

type Options struct {
	DefaultDurationMinutes int
	PersistMaxElapsed      time.Duration
	DrainTimeout           time.Duration
}

// FocusService owns the state machine. Every request and every timer event
// is handled on the goroutine running Run, one at a time.
type FocusService struct {
	clock    clock.Clock
	ids      id.Generator
	prefs    focusout.PreferencesStore
	active   focusout.ActiveTimerStore
	sessions focusout.SessionStore
	engine   focusout.TimerEngine
	logger   *slog.Logger
	metrics  *Metrics

	persister    *Persister
	drainTimeout time.Duration
	machine      *domain.Machine

	requests chan request
	hub      *broadcast.Hub[domain.State]
	errs     chan error
	running  atomic.Bool
	ready    chan struct{}
	stopped  chan struct{}
}

type requestKind int

const (
	requestSetDuration requestKind = iota
	requestStart
	requestStop
	requestCompleteOnboarding
	requestOnboardingStatus
)

func (k requestKind) String() string {
	switch k {
	case requestSetDuration:
		return "set_duration"
	case requestStart:
		return "start"
	case requestStop:
		return "stop"
	case requestCompleteOnboarding:
		return "complete_onboarding"
	case requestOnboardingStatus:
		return "onboarding_status"
	default:
		return "unknown"
	}
}

type request struct {
	kind    requestKind
	minutes float64
	reply   chan reply
}

type reply struct {
	result    Result
	onboarded bool
	err       error
}

func NewFocusService(deps Deps, opts Options) *FocusService {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	if opts.DefaultDurationMinutes == 0 {
		opts.DefaultDurationMinutes = domain.DefaultDurationMinutes
	}
	if opts.PersistMaxElapsed <= 0 {
		opts.PersistMaxElapsed = 30 * time.Second
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 5 * time.Second
	}
	s := &FocusService{
		clock:        deps.Clock,
		ids:          deps.IDs,
		prefs:        deps.Preferences,
		active:       deps.Active,
		sessions:     deps.Sessions,
		engine:       deps.Engine,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		drainTimeout: opts.DrainTimeout,
		machine:      domain.NewMachine(opts.DefaultDurationMinutes),
		requests:     make(chan request),
		hub:          broadcast.NewHub[domain.State](),
		errs:         make(chan error, 16),
		ready:        make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	s.persister = NewPersister(deps.Sessions, deps.Logger, deps.Metrics, opts.PersistMaxElapsed, s.report)
	s.hub.Publish(s.machine.State())
	return s
}

// Run restores any persisted countdown and then serves requests until ctx is
// done. An active timer is left on disk at shutdown so the next process can
// resume it.
func (s *FocusService) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("focus service already running")
	}
	defer close(s.stopped)
	defer s.hub.Close()

	persistCtx, cancelPersist := context.WithCancel(context.WithoutCancel(ctx))
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		s.persister.Run(persistCtx)
	}()
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
		defer cancel()
		if err := s.persister.Drain(drainCtx); err != nil {
			s.logger.Error("sessions left unwritten at shutdown", "pending", s.persister.Pending(), "error", err)
		}
		cancelPersist()
		<-workerDone
	}()

	s.loadDuration(ctx)
	s.restore(ctx)
	s.publish()
	close(s.ready)

	for {
		select {
		case <-ctx.Done():
			s.engine.Cancel()
			return nil
		case req := <-s.requests:
			req.reply <- s.handle(ctx, req)
		case event := <-s.engine.Events():
			s.handleEvent(ctx, event)
		}
	}
}

func (s *FocusService) SetDuration(ctx context.Context, minutes float64) (Result, error) {
	r, err := s.submit(ctx, request{kind: requestSetDuration, minutes: minutes})
	return r.result, err
}

func (s *FocusService) Start(ctx context.Context) (Result, error) {
	r, err := s.submit(ctx, request{kind: requestStart})
	if err != nil {
		return r.result, err
	}
	return r.result, r.err
}

func (s *FocusService) Stop(ctx context.Context) (Result, error) {
	r, err := s.submit(ctx, request{kind: requestStop})
	return r.result, err
}

func (s *FocusService) CompleteOnboarding(ctx context.Context) (bool, error) {
	r, err := s.submit(ctx, request{kind: requestCompleteOnboarding})
	if err != nil {
		return false, err
	}
	return r.onboarded, r.err
}

func (s *FocusService) OnboardingStatus(ctx context.Context) (bool, error) {
	r, err := s.submit(ctx, request{kind: requestOnboardingStatus})
	if err != nil {
		return false, err
	}
	return r.onboarded, r.err
}

// Ready is closed once Run has loaded preferences and restored any
// persisted countdown.
func (s *FocusService) Ready() <-chan struct{} {
	return s.ready
}

// State returns the most recently published snapshot.
func (s *FocusService) State() domain.State {
	state, _ := s.hub.Latest()
	return state
}

func (s *FocusService) Subscribe(ctx context.Context) <-chan domain.State {
	return s.hub.Subscribe(ctx)
}

func (s *FocusService) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return s.sessions.List(ctx)
}

func (s *FocusService) ObserveSessions(ctx context.Context) (<-chan []domain.Session, error) {
	return s.sessions.Observe(ctx)
}

// Errors carries persistence failures that happened after a request was
// already answered.
func (s *FocusService) Errors() <-chan error {
	return s.errs
}

func (s *FocusService) submit(ctx context.Context, req request) (reply, error) {
	req.reply = make(chan reply, 1)
	select {
	case s.requests <- req:
	case <-s.stopped:
		return reply{}, apperrors.ErrServiceStopped
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (s *FocusService) handle(ctx context.Context, req request) reply {
	switch req.kind {
	case requestSetDuration:
		minutes, applied := s.machine.SetDuration(req.minutes)
		if !applied {
			s.ignore(reasonInvalidTransition, req.kind.String())
			return reply{result: s.result(false)}
		}
		if err := s.prefs.SetDurationMinutes(ctx, minutes); err != nil {
			s.fail("save duration preference", err)
		}
		s.publish()
		return reply{result: s.result(true)}

	case requestStart:
		cmd, applied := s.machine.Start(s.ids.New())
		if !applied {
			s.ignore(reasonInvalidTransition, req.kind.String())
			return reply{result: s.result(false)}
		}
		if err := s.startCountdown(ctx, cmd); err != nil {
			s.publish()
			return reply{result: s.result(false), err: err}
		}
		s.publish()
		return reply{result: s.result(true)}

	case requestStop:
		session, cmd, applied := s.machine.Stop(s.clock.Now())
		if !applied {
			s.ignore(reasonInvalidTransition, req.kind.String())
			return reply{result: s.result(false)}
		}
		s.execute(ctx, cmd)
		s.terminated(ctx, session)
		s.publish()
		return reply{result: s.result(true)}

	case requestCompleteOnboarding:
		if err := s.prefs.SetOnboardingCompleted(ctx, true); err != nil {
			return reply{err: fmt.Errorf("complete onboarding: %w", err)}
		}
		return reply{onboarded: true}

	case requestOnboardingStatus:
		done, err := s.prefs.OnboardingCompleted(ctx)
		if err != nil {
			return reply{err: fmt.Errorf("read onboarding status: %w", err)}
		}
		return reply{onboarded: done}
	}
	return reply{err: fmt.Errorf("%w: unknown request %d", apperrors.ErrInvalidInput, req.kind)}
}

func (s *FocusService) handleEvent(ctx context.Context, event domain.TimerEvent) {
	switch event.Kind {
	case domain.EventTick:
		if !s.machine.Tick(event.RunID, event.RemainingMs) {
			s.ignore(s.eventReason(), event.Kind.String())
			return
		}
		s.publish()
	case domain.EventFinish:
		session, ok := s.machine.Finish(event.RunID, s.clock.Now())
		if !ok {
			s.ignore(s.eventReason(), event.Kind.String())
			return
		}
		s.terminated(ctx, session)
		s.publish()
	default:
		s.ignore(reasonInvalidTransition, event.Kind.String())
	}
}

func (s *FocusService) execute(ctx context.Context, cmd domain.Command) {
	switch cmd.Kind {
	case domain.CommandStartCountdown:
		_ = s.startCountdown(ctx, cmd)
	case domain.CommandCancelCountdown:
		s.engine.Cancel()
	}
}

// startCountdown persists the active timer and starts the engine. If the
// engine refuses, the machine goes back to Idle since no Finish would ever
// arrive for the run.
func (s *FocusService) startCountdown(ctx context.Context, cmd domain.Command) error {
	now := s.clock.Now()
	timer := domain.ActiveTimer{
		RunID:          cmd.RunID,
		PlannedMinutes: s.machine.State().PlannedMinutes(),
		DurationMs:     cmd.DurationMs,
		StartedAt:      now,
		EndsAt:         now.Add(time.Duration(cmd.DurationMs) * time.Millisecond),
	}
	if err := s.active.SaveActive(ctx, timer); err != nil {
		s.fail("save active timer", err)
	}
	if err := s.engine.Start(ctx, cmd.RunID, timer.EndsAt); err != nil {
		s.logger.Error("start countdown", "run_id", cmd.RunID, "error", err)
		s.abort(ctx, cmd.RunID)
		return fmt.Errorf("start countdown: %w", err)
	}
	s.metrics.SessionRunning.Set(1)
	s.logger.Info("session started", "run_id", cmd.RunID, "planned_minutes", timer.PlannedMinutes, "ends_at", timer.EndsAt)
	return nil
}

func (s *FocusService) abort(ctx context.Context, runID string) {
	s.machine.Abort(runID)
	if err := s.active.ClearActive(ctx); err != nil {
		s.fail("clear active timer", err)
	}
	s.metrics.SessionRunning.Set(0)
	s.logger.Warn("session aborted", "run_id", runID)
}

// terminated runs after the machine already reset, so the UI reflects the
// end of the session before the history write is confirmed.
func (s *FocusService) terminated(ctx context.Context, session domain.Session) {
	if err := s.active.ClearActive(ctx); err != nil {
		s.fail("clear active timer", err)
	}
	s.metrics.SessionRunning.Set(0)
	s.logger.Info("session ended",
		"run_id", session.RunID,
		"success", session.Success,
		"actual_minutes", session.ActualMinutes,
		"planned_minutes", session.PlannedMinutes,
	)
	s.persister.Enqueue(session)
}

func (s *FocusService) loadDuration(ctx context.Context) {
	minutes, ok, err := s.prefs.DurationMinutes(ctx)
	if err != nil {
		s.fail("load duration preference", err)
		return
	}
	if ok {
		s.machine.SetDuration(minutes)
	}
}

func (s *FocusService) restore(ctx context.Context) {
	timer, err := s.active.LoadActive(ctx)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNoActiveTimer) {
			s.fail("load active timer", err)
		}
		return
	}
	now := s.clock.Now()
	if !s.machine.Resume(timer, now) {
		s.logger.Warn("discarding unusable active timer", "run_id", timer.RunID)
		if err := s.active.ClearActive(ctx); err != nil {
			s.fail("clear active timer", err)
		}
		return
	}
	if timer.Expired(now) {
		session, _ := s.machine.Finish(timer.RunID, timer.EndsAt)
		s.logger.Info("countdown ended while grove was not running", "run_id", timer.RunID)
		s.terminated(ctx, session)
		return
	}
	if err := s.engine.Start(ctx, timer.RunID, timer.EndsAt); err != nil {
		s.fail("resume countdown", err)
		s.abort(ctx, timer.RunID)
		return
	}
	s.metrics.SessionRunning.Set(1)
	s.logger.Info("session resumed", "run_id", timer.RunID, "remaining_ms", s.machine.State().RemainingMs)
}

func (s *FocusService) eventReason() string {
	if s.machine.State().Running {
		return reasonStaleRun
	}
	return reasonAfterTermination
}

func (s *FocusService) ignore(reason, what string) {
	s.metrics.IgnoredEvents.WithLabelValues(reason).Inc()
	s.logger.Debug("ignored", "what", what, "reason", reason)
}

func (s *FocusService) fail(op string, err error) {
	s.logger.Error(op, "error", err)
	s.report(fmt.Errorf("%s: %w", op, err))
}

func (s *FocusService) report(err error) {
	select {
	case s.errs <- err:
	default:
		s.logger.Warn("error channel full", "error", err)
	}
}

func (s *FocusService) publish() {
	s.hub.Publish(s.machine.State())
}

func (s *FocusService) result(applied bool) Result {
	return Result{State: s.machine.State(), Applied: applied}
}

package domain

import "time"

// Machine is the focus session state machine. It is not safe for concurrent
// use; callers serialize every operation through a single owner.
//
// Operations invoked in a state that does not permit them are no-ops and
// report false, because timer events may be delivered twice or arrive after
// the session already ended.
type Machine struct {
	state State
}

func NewMachine(durationMinutes int) *Machine {
	return &Machine{state: State{DurationMinutes: SnapDuration(float64(durationMinutes))}}
}

func (m *Machine) State() State {
	return m.state
}

// SetDuration snaps minutes to the 5-minute grid and applies it while idle.
func (m *Machine) SetDuration(minutes float64) (int, bool) {
	if m.state.Running {
		return m.state.DurationMinutes, false
	}
	m.state.DurationMinutes = SnapDuration(minutes)
	return m.state.DurationMinutes, true
}

// Start locks in the selected duration and returns the countdown command.
func (m *Machine) Start(runID string) (Command, bool) {
	if m.state.Running || runID == "" {
		return Command{}, false
	}
	durationMs := int64(m.state.DurationMinutes) * msPerMinute
	m.state = State{
		DurationMinutes:   m.state.DurationMinutes,
		Running:           true,
		RunID:             runID,
		SessionDurationMs: durationMs,
		RemainingMs:       durationMs,
	}
	return Command{Kind: CommandStartCountdown, RunID: runID, DurationMs: durationMs}, true
}

// Resume restores a running session from a persisted timer.
func (m *Machine) Resume(timer ActiveTimer, now time.Time) bool {
	if m.state.Running || timer.RunID == "" || timer.DurationMs <= 0 {
		return false
	}
	remaining := timer.RemainingAt(now)
	m.state = State{
		DurationMinutes:   m.state.DurationMinutes,
		Running:           true,
		RunID:             timer.RunID,
		SessionDurationMs: timer.DurationMs,
		RemainingMs:       remaining,
		Growth:            growthFor(timer.DurationMs, remaining),
	}
	return true
}

// Tick records the remaining time reported by the engine. Remaining time
// never increases while running, and growth stays within [0,1].
func (m *Machine) Tick(runID string, remainingMs int64) bool {
	if !m.accepts(runID) {
		return false
	}
	if remainingMs < 0 {
		remainingMs = 0
	}
	if remainingMs > m.state.RemainingMs {
		remainingMs = m.state.RemainingMs
	}
	m.state.RemainingMs = remainingMs
	m.state.Growth = growthFor(m.state.SessionDurationMs, remainingMs)
	return true
}

// Finish ends the session as a success. The actual duration is the planned
// duration, independent of the last tick received.
func (m *Machine) Finish(runID string, at time.Time) (Session, bool) {
	if !m.accepts(runID) {
		return Session{}, false
	}
	planned := m.state.PlannedMinutes()
	session := Session{
		RunID:          m.state.RunID,
		RecordedAt:     at,
		PlannedMinutes: planned,
		ActualMinutes:  planned,
		Success:        true,
	}
	m.terminate()
	return session, true
}

// Stop abandons the running session and returns the cancel command. The
// actual duration is the whole minutes elapsed, kept below the planned
// duration since the countdown did not finish.
func (m *Machine) Stop(at time.Time) (Session, Command, bool) {
	if !m.state.Running {
		return Session{}, Command{}, false
	}
	planned := m.state.PlannedMinutes()
	elapsed := m.state.SessionDurationMs - m.state.RemainingMs
	if elapsed < 0 {
		elapsed = 0
	}
	actual := int(elapsed / msPerMinute)
	if actual >= planned {
		actual = planned - 1
	}
	if actual < 0 {
		actual = 0
	}
	session := Session{
		RunID:          m.state.RunID,
		RecordedAt:     at,
		PlannedMinutes: planned,
		ActualMinutes:  actual,
		Success:        false,
	}
	cmd := Command{Kind: CommandCancelCountdown, RunID: m.state.RunID}
	m.terminate()
	return session, cmd, true
}

func (m *Machine) accepts(runID string) bool {
	if !m.state.Running {
		return false
	}
	return runID == "" || runID == m.state.RunID
}

// Abort returns a running session to Idle without recording it. It is used
// when the countdown for runID could not be started.
func (m *Machine) Abort(runID string) bool {
	if !m.state.Running || !m.accepts(runID) {
		return false
	}
	m.terminate()
	return true
}

func (m *Machine) terminate() {
	m.state = State{DurationMinutes: m.state.DurationMinutes}
}

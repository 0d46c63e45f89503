package domain

// EventKind tags a TimerEvent emitted by the timer engine.
type EventKind int

const (
	EventTick EventKind = iota + 1
	EventFinish
)

func (k EventKind) String() string {
	switch k {
	case EventTick:
		return "tick"
	case EventFinish:
		return "finish"
	default:
		return "unknown"
	}
}

type TimerEvent struct {
	Kind        EventKind
	RunID       string
	RemainingMs int64
}

func Tick(runID string, remainingMs int64) TimerEvent {
	return TimerEvent{Kind: EventTick, RunID: runID, RemainingMs: remainingMs}
}

func Finish(runID string) TimerEvent {
	return TimerEvent{Kind: EventFinish, RunID: runID}
}

// CommandKind tags a Command addressed to the timer engine.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandStartCountdown
	CommandCancelCountdown
)

func (k CommandKind) String() string {
	switch k {
	case CommandStartCountdown:
		return "start_countdown"
	case CommandCancelCountdown:
		return "cancel_countdown"
	default:
		return "none"
	}
}

type Command struct {
	Kind       CommandKind
	RunID      string
	DurationMs int64
}

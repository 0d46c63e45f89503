package domain

import "time"

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
)

func (p Phase) String() string {
	if p == PhaseRunning {
		return "running"
	}
	return "idle"
}

// Stage names how far the tree has grown during a running session.
type Stage string

const (
	StageNone    Stage = ""
	StageSeed    Stage = "seed"
	StageSprout  Stage = "sprout"
	StageSapling Stage = "sapling"
	StageTree    Stage = "tree"
	StageGrown   Stage = "grown"
)

// State is an immutable snapshot of the focus state machine.
//
// When Running is false, SessionDurationMs, RemainingMs and Growth are zero.
type State struct {
	DurationMinutes   int
	Running           bool
	RunID             string
	SessionDurationMs int64
	RemainingMs       int64
	Growth            float64
}

func (s State) Phase() Phase {
	if s.Running {
		return PhaseRunning
	}
	return PhaseIdle
}

func (s State) Remaining() time.Duration {
	return time.Duration(s.RemainingMs) * time.Millisecond
}

// PlannedMinutes is the duration locked in when the running session started.
func (s State) PlannedMinutes() int {
	return int(s.SessionDurationMs / msPerMinute)
}

func (s State) Stage() Stage {
	if !s.Running {
		return StageNone
	}
	switch {
	case s.Growth >= 1:
		return StageGrown
	case s.Growth >= 0.75:
		return StageTree
	case s.Growth >= 0.5:
		return StageSapling
	case s.Growth >= 0.25:
		return StageSprout
	default:
		return StageSeed
	}
}

func growthFor(sessionMs, remainingMs int64) float64 {
	if sessionMs <= 0 {
		return 0
	}
	g := 1 - float64(remainingMs)/float64(sessionMs)
	if g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	return g
}

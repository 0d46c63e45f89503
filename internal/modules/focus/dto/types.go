package dto

import (
	"time"

	"grove/internal/modules/focus/domain"
)

const (
	MinDurationMinutes  = domain.MinDurationMinutes
	MaxDurationMinutes  = domain.MaxDurationMinutes
	DurationStepMinutes = domain.DurationStepMinutes
)

type StateOutput struct {
	DurationMinutes int
	PlannedMinutes  int
	Running         bool
	RunID           string
	RemainingMs     int64
	Growth          float64
	Stage           string
}

type SetDurationInput struct {
	Minutes float64
}

// CommandOutput reports the state after a request and whether the request
// changed it. Requests that arrive in the wrong state are not errors.
type CommandOutput struct {
	State   StateOutput
	Applied bool
}

type SessionOutput struct {
	ID             int64
	RunID          string
	RecordedAt     time.Time
	PlannedMinutes int
	ActualMinutes  int
	Success        bool
}

type OnboardingOutput struct {
	Completed bool
}

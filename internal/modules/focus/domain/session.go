package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "grove/internal/platform/errors"
)

const (
	MinDurationMinutes     = 5
	MaxDurationMinutes     = 120
	DurationStepMinutes    = 5
	DefaultDurationMinutes = 25

	msPerMinute = int64(60_000)
)

// Session is one recorded focus attempt. Rows are append-only.
type Session struct {
	ID             int64
	RunID          string
	RecordedAt     time.Time
	PlannedMinutes int
	ActualMinutes  int
	Success        bool
}

func (s Session) Validate() error {
	if strings.TrimSpace(s.RunID) == "" {
		return fmt.Errorf("%w: run id is required", apperrors.ErrInvalidSession)
	}
	if s.PlannedMinutes < MinDurationMinutes || s.PlannedMinutes > MaxDurationMinutes {
		return fmt.Errorf("%w: planned minutes %d out of range", apperrors.ErrInvalidSession, s.PlannedMinutes)
	}
	if s.ActualMinutes < 0 || s.ActualMinutes > s.PlannedMinutes {
		return fmt.Errorf("%w: actual minutes %d outside [0,%d]", apperrors.ErrInvalidSession, s.ActualMinutes, s.PlannedMinutes)
	}
	if s.Success && s.ActualMinutes != s.PlannedMinutes {
		return fmt.Errorf("%w: successful session must run the planned %d minutes", apperrors.ErrInvalidSession, s.PlannedMinutes)
	}
	if s.RecordedAt.IsZero() {
		return fmt.Errorf("%w: recorded time is required", apperrors.ErrInvalidSession)
	}
	return nil
}

// SnapDuration rounds minutes to the nearest step and clamps it to the allowed range.
func SnapDuration(minutes float64) int {
	switch {
	case math.IsNaN(minutes):
		return DefaultDurationMinutes
	case minutes <= MinDurationMinutes:
		return MinDurationMinutes
	case minutes >= MaxDurationMinutes:
		return MaxDurationMinutes
	}
	snapped := int(math.Round(minutes/DurationStepMinutes)) * DurationStepMinutes
	if snapped < MinDurationMinutes {
		return MinDurationMinutes
	}
	if snapped > MaxDurationMinutes {
		return MaxDurationMinutes
	}
	return snapped
}

// DurationOptions lists every selectable duration in ascending order.
func DurationOptions() []int {
	out := make([]int, 0, (MaxDurationMinutes-MinDurationMinutes)/DurationStepMinutes+1)
	for m := MinDurationMinutes; m <= MaxDurationMinutes; m += DurationStepMinutes {
		out = append(out, m)
	}
	return out
}

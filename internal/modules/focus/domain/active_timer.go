package domain

import "time"

// ActiveTimer is the durable record of a running session. It outlives the
// process so a restarted grove can resume the countdown.
type ActiveTimer struct {
	RunID          string    `json:"run_id"`
	PlannedMinutes int       `json:"planned_minutes"`
	DurationMs     int64     `json:"duration_ms"`
	StartedAt      time.Time `json:"started_at"`
	EndsAt         time.Time `json:"ends_at"`
}

// RemainingAt returns the countdown left at now, clamped to [0, DurationMs].
func (a ActiveTimer) RemainingAt(now time.Time) int64 {
	remaining := a.EndsAt.Sub(now).Milliseconds()
	if remaining < 0 {
		return 0
	}
	if remaining > a.DurationMs {
		return a.DurationMs
	}
	return remaining
}

func (a ActiveTimer) Expired(now time.Time) bool {
	return !now.Before(a.EndsAt)
}

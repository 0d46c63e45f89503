package out

import (
	"context"
	"time"

	"grove/internal/modules/focus/domain"
)

type PreferencesStore interface {
	// DurationMinutes reports the stored duration and whether one was ever saved.
	DurationMinutes(ctx context.Context) (float64, bool, error)
	SetDurationMinutes(ctx context.Context, minutes int) error
	OnboardingCompleted(ctx context.Context) (bool, error)
	SetOnboardingCompleted(ctx context.Context, completed bool) error
}

type SessionStore interface {
	// Insert stores session unless its RunID is already present, and returns
	// the stored row. inserted is false when an earlier row was kept.
	Insert(ctx context.Context, session domain.Session) (stored domain.Session, inserted bool, err error)
	List(ctx context.Context) ([]domain.Session, error)
	Observe(ctx context.Context) (<-chan []domain.Session, error)
}

type ActiveTimerStore interface {
	SaveActive(ctx context.Context, timer domain.ActiveTimer) error
	LoadActive(ctx context.Context) (domain.ActiveTimer, error)
	ClearActive(ctx context.Context) error
}

// TimerEngine counts down against an absolute end time and reports progress
// on Events. Starting a new countdown replaces the previous one.
type TimerEngine interface {
	Start(ctx context.Context, runID string, endsAt time.Time) error
	Cancel()
	Events() <-chan domain.TimerEvent
}

package in

import (
	"context"

	"grove/internal/modules/focus/dto"
)

type Usecase interface {
	SetDuration(ctx context.Context, input dto.SetDurationInput) (dto.CommandOutput, error)
	Start(ctx context.Context) (dto.CommandOutput, error)
	Stop(ctx context.Context) (dto.CommandOutput, error)
	State(ctx context.Context) (dto.StateOutput, error)
	WatchState(ctx context.Context) (<-chan dto.StateOutput, error)
	ListSessions(ctx context.Context) ([]dto.SessionOutput, error)
	WatchSessions(ctx context.Context) (<-chan []dto.SessionOutput, error)
	CompleteOnboarding(ctx context.Context) (dto.OnboardingOutput, error)
	OnboardingStatus(ctx context.Context) (dto.OnboardingOutput, error)
	Errors() <-chan error
}

package in

import (
	"context"

	"grove/internal/modules/focus/dto"
	focusin "grove/internal/modules/focus/port/in"
)

type CLIHandler struct {
	usecase focusin.Usecase
}

func NewCLIHandler(usecase focusin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Status(ctx context.Context) (dto.StateOutput, error) {
	return h.usecase.State(ctx)
}

func (h CLIHandler) SetDuration(ctx context.Context, minutes float64) (dto.CommandOutput, error) {
	return h.usecase.SetDuration(ctx, dto.SetDurationInput{Minutes: minutes})
}

func (h CLIHandler) Start(ctx context.Context) (dto.CommandOutput, error) {
	return h.usecase.Start(ctx)
}

func (h CLIHandler) Stop(ctx context.Context) (dto.CommandOutput, error) {
	return h.usecase.Stop(ctx)
}

func (h CLIHandler) WatchState(ctx context.Context) (<-chan dto.StateOutput, error) {
	return h.usecase.WatchState(ctx)
}

// History returns at most limit sessions, newest first. A non-positive limit
// returns all of them.
func (h CLIHandler) History(ctx context.Context, limit int) ([]dto.SessionOutput, error) {
	sessions, err := h.usecase.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (h CLIHandler) Onboarding(ctx context.Context) (dto.OnboardingOutput, error) {
	return h.usecase.OnboardingStatus(ctx)
}

func (h CLIHandler) CompleteOnboarding(ctx context.Context) (dto.OnboardingOutput, error) {
	return h.usecase.CompleteOnboarding(ctx)
}

func (h CLIHandler) Errors() <-chan error {
	return h.usecase.Errors()
}

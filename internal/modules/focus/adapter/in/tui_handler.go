package in

import (
	"context"

	"grove/internal/modules/focus/dto"
	focusin "grove/internal/modules/focus/port/in"
)

type TUIHandler struct {
	usecase focusin.Usecase
}

func NewTUIHandler(usecase focusin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

func (h TUIHandler) State(ctx context.Context) (dto.StateOutput, error) {
	return h.usecase.State(ctx)
}

func (h TUIHandler) WatchState(ctx context.Context) (<-chan dto.StateOutput, error) {
	return h.usecase.WatchState(ctx)
}

// Toggle starts an idle session or stops a running one.
func (h TUIHandler) Toggle(ctx context.Context, running bool) (dto.CommandOutput, error) {
	if running {
		return h.usecase.Stop(ctx)
	}
	return h.usecase.Start(ctx)
}

// StepDuration moves the selected duration by delta steps on the 5-minute grid.
func (h TUIHandler) StepDuration(ctx context.Context, current, delta int) (dto.CommandOutput, error) {
	next := current + delta*dto.DurationStepMinutes
	return h.usecase.SetDuration(ctx, dto.SetDurationInput{Minutes: float64(next)})
}

func (h TUIHandler) SetDuration(ctx context.Context, minutes float64) (dto.CommandOutput, error) {
	return h.usecase.SetDuration(ctx, dto.SetDurationInput{Minutes: minutes})
}

func (h TUIHandler) Onboarding(ctx context.Context) (dto.OnboardingOutput, error) {
	return h.usecase.OnboardingStatus(ctx)
}

func (h TUIHandler) CompleteOnboarding(ctx context.Context) (dto.OnboardingOutput, error) {
	return h.usecase.CompleteOnboarding(ctx)
}

func (h TUIHandler) Errors() <-chan error {
	return h.usecase.Errors()
}

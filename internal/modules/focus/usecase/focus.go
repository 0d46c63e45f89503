package usecase

import (
	"context"
	"fmt"
	"math"

	"grove/internal/modules/focus/domain"
	"grove/internal/modules/focus/dto"
	focusin "grove/internal/modules/focus/port/in"
	"grove/internal/modules/focus/service"
	apperrors "grove/internal/platform/errors"
)

type Interactor struct {
	svc *service.FocusService
}

func NewInteractor(svc *service.FocusService) focusin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) SetDuration(ctx context.Context, input dto.SetDurationInput) (dto.CommandOutput, error) {
	if math.IsNaN(input.Minutes) || math.IsInf(input.Minutes, 0) {
		return dto.CommandOutput{}, fmt.Errorf("%w: duration must be a finite number of minutes", apperrors.ErrInvalidInput)
	}
	res, err := i.svc.SetDuration(ctx, input.Minutes)
	if err != nil {
		return dto.CommandOutput{}, err
	}
	return toCommandOutput(res), nil
}

func (i *Interactor) Start(ctx context.Context) (dto.CommandOutput, error) {
	res, err := i.svc.Start(ctx)
	if err != nil {
		return dto.CommandOutput{}, err
	}
	return toCommandOutput(res), nil
}

func (i *Interactor) Stop(ctx context.Context) (dto.CommandOutput, error) {
	res, err := i.svc.Stop(ctx)
	if err != nil {
		return dto.CommandOutput{}, err
	}
	return toCommandOutput(res), nil
}

// State waits until the service has restored any persisted countdown so a
// fresh process reports a resumed session correctly.
func (i *Interactor) State(ctx context.Context) (dto.StateOutput, error) {
	select {
	case <-i.svc.Ready():
	case <-ctx.Done():
		return dto.StateOutput{}, ctx.Err()
	}
	return toStateOutput(i.svc.State()), nil
}

func (i *Interactor) WatchState(ctx context.Context) (<-chan dto.StateOutput, error) {
	return mapChannel(ctx, i.svc.Subscribe(ctx), toStateOutput), nil
}

func (i *Interactor) ListSessions(ctx context.Context) ([]dto.SessionOutput, error) {
	sessions, err := i.svc.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	return toSessionOutputs(sessions), nil
}

func (i *Interactor) WatchSessions(ctx context.Context) (<-chan []dto.SessionOutput, error) {
	ch, err := i.svc.ObserveSessions(ctx)
	if err != nil {
		return nil, err
	}
	return mapChannel(ctx, ch, toSessionOutputs), nil
}

func (i *Interactor) CompleteOnboarding(ctx context.Context) (dto.OnboardingOutput, error) {
	done, err := i.svc.CompleteOnboarding(ctx)
	if err != nil {
		return dto.OnboardingOutput{}, err
	}
	return dto.OnboardingOutput{Completed: done}, nil
}

func (i *Interactor) OnboardingStatus(ctx context.Context) (dto.OnboardingOutput, error) {
	done, err := i.svc.OnboardingStatus(ctx)
	if err != nil {
		return dto.OnboardingOutput{}, err
	}
	return dto.OnboardingOutput{Completed: done}, nil
}

func (i *Interactor) Errors() <-chan error {
	return i.svc.Errors()
}

func mapChannel[A, B any](ctx context.Context, in <-chan A, fn func(A) B) <-chan B {
	out := make(chan B, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- fn(v):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func toCommandOutput(res service.Result) dto.CommandOutput {
	return dto.CommandOutput{State: toStateOutput(res.State), Applied: res.Applied}
}

func toStateOutput(s domain.State) dto.StateOutput {
	return dto.StateOutput{
		DurationMinutes: s.DurationMinutes,
		PlannedMinutes:  s.PlannedMinutes(),
		Running:         s.Running,
		RunID:           s.RunID,
		RemainingMs:     s.RemainingMs,
		Growth:          s.Growth,
		Stage:           string(s.Stage()),
	}
}

func toSessionOutputs(sessions []domain.Session) []dto.SessionOutput {
	out := make([]dto.SessionOutput, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, dto.SessionOutput{
			ID:             s.ID,
			RunID:          s.RunID,
			RecordedAt:     s.RecordedAt,
			PlannedMinutes: s.PlannedMinutes,
			ActualMinutes:  s.ActualMinutes,
			Success:        s.Success,
		})
	}
	return out
}

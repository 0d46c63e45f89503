package usecase

import (
	"context"
	"fmt"

	"grove/internal/modules/history/domain"
	"grove/internal/modules/history/dto"
	historyin "grove/internal/modules/history/port/in"
	"grove/internal/modules/history/service"
	apperrors "grove/internal/platform/errors"
)

const maxWindowDays = 366

type Interactor struct {
	svc *service.HistoryService
}

func NewInteractor(svc *service.HistoryService) historyin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Report(ctx context.Context, input dto.ReportInput) (dto.ReportOutput, error) {
	if input.Days < 0 || input.Days > maxWindowDays {
		return dto.ReportOutput{}, fmt.Errorf("%w: days must be between 1 and %d", apperrors.ErrInvalidInput, maxWindowDays)
	}
	days := input.Days
	if days == 0 {
		days = dto.DefaultWindowDays
	}
	report, err := i.svc.Report(ctx, days)
	if err != nil {
		return dto.ReportOutput{}, err
	}
	return toReportOutput(report), nil
}

func (i *Interactor) Watch(ctx context.Context) (<-chan dto.ReportOutput, error) {
	in := i.svc.Subscribe(ctx)
	out := make(chan dto.ReportOutput, 1)
	go func() {
		defer close(out)
		for report := range in {
			select {
			case out <- toReportOutput(report):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func toReportOutput(r service.Report) dto.ReportOutput {
	return dto.ReportOutput{
		Daily:  toStatOutputs(r.Daily),
		Window: toStatOutputs(r.Window),
		Summary: dto.SummaryOutput{
			TotalMinutes:       r.Summary.TotalMinutes,
			FocusedDays:        r.Summary.FocusedDays,
			Sessions:           r.Summary.Sessions,
			SuccessMinutes:     r.Summary.SuccessMinutes,
			SuccessfulSessions: r.Summary.SuccessfulSessions,
		},
		GeneratedAt: r.GeneratedAt,
	}
}

func toStatOutputs(stats []domain.DailyStat) []dto.DailyStatOutput {
	out := make([]dto.DailyStatOutput, 0, len(stats))
	for _, s := range stats {
		out = append(out, dto.DailyStatOutput{
			Date:               s.Date,
			TotalMinutes:       s.TotalMinutes,
			Sessions:           s.Sessions,
			SuccessMinutes:     s.SuccessMinutes,
			SuccessfulSessions: s.SuccessfulSessions,
		})
	}
	return out
}

package in

import (
	"context"

	"grove/internal/modules/history/dto"
	historyin "grove/internal/modules/history/port/in"
)

type TUIHandler struct {
	usecase historyin.Usecase
}

func NewTUIHandler(usecase historyin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

// Report returns the report with the chart window the history tab shows.
func (h TUIHandler) Report(ctx context.Context) (dto.ReportOutput, error) {
	return h.usecase.Report(ctx, dto.ReportInput{Days: dto.DefaultWindowDays})
}

func (h TUIHandler) Watch(ctx context.Context) (<-chan dto.ReportOutput, error) {
	return h.usecase.Watch(ctx)
}

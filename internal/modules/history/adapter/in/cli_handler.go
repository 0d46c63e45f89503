package in

import (
	"context"

	"grove/internal/modules/history/dto"
	historyin "grove/internal/modules/history/port/in"
)

type CLIHandler struct {
	usecase historyin.Usecase
}

func NewCLIHandler(usecase historyin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Stats(ctx context.Context, days int) (dto.ReportOutput, error) {
	return h.usecase.Report(ctx, dto.ReportInput{Days: days})
}

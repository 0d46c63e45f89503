package in

import (
	"context"

	"grove/internal/modules/history/dto"
)

type Usecase interface {
	Report(ctx context.Context, input dto.ReportInput) (dto.ReportOutput, error)
	Watch(ctx context.Context) (<-chan dto.ReportOutput, error)
}

package out

import (
	"context"

	"grove/internal/modules/history/domain"
)

// SessionSource supplies the recorded sessions that history aggregates.
type SessionSource interface {
	List(ctx context.Context) ([]domain.Record, error)
	Observe(ctx context.Context) (<-chan []domain.Record, error)
}

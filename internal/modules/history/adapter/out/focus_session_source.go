package out

import (
	"context"

	focusdto "grove/internal/modules/focus/dto"
	focusin "grove/internal/modules/focus/port/in"
	"grove/internal/modules/history/domain"
	historyout "grove/internal/modules/history/port/out"
)

// FocusSessionSource reads recorded sessions through the focus module's
// public usecase.
type FocusSessionSource struct {
	focus focusin.Usecase
}

func NewFocusSessionSource(focus focusin.Usecase) historyout.SessionSource {
	return &FocusSessionSource{focus: focus}
}

func (s *FocusSessionSource) List(ctx context.Context) ([]domain.Record, error) {
	sessions, err := s.focus.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	return toRecords(sessions), nil
}

func (s *FocusSessionSource) Observe(ctx context.Context) (<-chan []domain.Record, error) {
	in, err := s.focus.WatchSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan []domain.Record, 1)
	go func() {
		defer close(out)
		for sessions := range in {
			select {
			case out <- toRecords(sessions):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func toRecords(sessions []focusdto.SessionOutput) []domain.Record {
	records := make([]domain.Record, 0, len(sessions))
	for _, s := range sessions {
		records = append(records, domain.Record{
			RecordedAt:    s.RecordedAt,
			ActualMinutes: s.ActualMinutes,
			Success:       s.Success,
		})
	}
	return records
}

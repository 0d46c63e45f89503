package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"grove/internal/modules/history/domain"
	historyout "grove/internal/modules/history/port/out"
	"grove/internal/platform/broadcast"
	"grove/internal/platform/clock"
	"grove/internal/platform/logging"
)

const defaultDayCheckInterval = time.Minute

type Report struct {
	Daily       []domain.DailyStat
	Window      []domain.DailyStat
	Summary     domain.Summary
	GeneratedAt time.Time
}

// HistoryService recomputes the report whenever the session list changes.
// It runs on its own goroutine and publishes through a conflating hub, so a
// slow reader never holds up the focus loop.
type HistoryService struct {
	source     historyout.SessionSource
	clock      clock.Clock
	loc        *time.Location
	windowDays int
	logger     *slog.Logger
	hub        *broadcast.Hub[Report]
	dayCheck   time.Duration
}

type Option func(*HistoryService)

// WithDayCheckInterval sets how often Run checks whether the local day has
// changed since the last report was built.
func WithDayCheckInterval(d time.Duration) Option {
	return func(s *HistoryService) {
		if d > 0 {
			s.dayCheck = d
		}
	}
}

func NewHistoryService(source historyout.SessionSource, clk clock.Clock, loc *time.Location, windowDays int, logger *slog.Logger, opts ...Option) *HistoryService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Discard()
	}
	s := &HistoryService{
		source:     source,
		clock:      clk,
		loc:        loc,
		windowDays: windowDays,
		logger:     logger,
		hub:        broadcast.NewHub[Report](),
		dayCheck:   defaultDayCheckInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HistoryService) Run(ctx context.Context) error {
	defer s.hub.Close()
	ch, err := s.source.Observe(ctx)
	if err != nil {
		return fmt.Errorf("observe sessions: %w", err)
	}
	ticker := time.NewTicker(s.dayCheck)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Nothing new was recorded, but the window has to end on today.
			if report, ok := s.hub.Latest(); ok && s.stale(report) {
				s.logger.Debug("history day rolled over")
				s.hub.Publish(s.reframe(report, len(report.Window)))
			}
		case records, ok := <-ch:
			if !ok {
				return nil
			}
			report := s.build(records, s.windowDays)
			s.logger.Debug("history recomputed", "days", len(report.Daily), "sessions", report.Summary.Sessions)
			s.hub.Publish(report)
		}
	}
}

// Report returns the latest report, reading the sessions directly when Run
// has not produced one yet. A positive days resizes the window.
func (s *HistoryService) Report(ctx context.Context, days int) (Report, error) {
	if days <= 0 {
		days = s.windowDays
	}
	report, ok := s.hub.Latest()
	if !ok {
		records, err := s.source.List(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("list sessions: %w", err)
		}
		return s.build(records, days), nil
	}
	if days != len(report.Window) || s.stale(report) {
		report = s.reframe(report, days)
	}
	return report, nil
}

// stale reports whether r was built on an earlier local day than today.
func (s *HistoryService) stale(r Report) bool {
	return !domain.Day(s.clock.Now(), s.loc).Equal(domain.Day(r.GeneratedAt, s.loc))
}

// reframe rebuilds the window of r so it ends today. Daily stats and the
// summary do not depend on the current day.
func (s *HistoryService) reframe(r Report, days int) Report {
	now := s.clock.Now().In(s.loc)
	r.Window = domain.Window(r.Daily, now, days)
	r.GeneratedAt = now
	return r
}

func (s *HistoryService) Subscribe(ctx context.Context) <-chan Report {
	return s.hub.Subscribe(ctx)
}

func (s *HistoryService) build(records []domain.Record, days int) Report {
	now := s.clock.Now().In(s.loc)
	daily := domain.Aggregate(records, s.loc)
	return Report{
		Daily:       daily,
		Window:      domain.Window(daily, now, days),
		Summary:     domain.Summarize(daily),
		GeneratedAt: now,
	}
}

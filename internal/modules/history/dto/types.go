package dto

import "time"

const DefaultWindowDays = 7

type ReportInput struct {
	Days int
}

type DailyStatOutput struct {
	Date               time.Time
	TotalMinutes       int
	Sessions           int
	SuccessMinutes     int
	SuccessfulSessions int
}

type SummaryOutput struct {
	TotalMinutes       int
	FocusedDays        int
	Sessions           int
	SuccessMinutes     int
	SuccessfulSessions int
}

// ReportOutput carries every day with sessions (oldest first), a zero-filled
// window ending today, and all-time totals.
type ReportOutput struct {
	Daily       []DailyStatOutput
	Window      []DailyStatOutput
	Summary     SummaryOutput
	GeneratedAt time.Time
}

package domain_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"grove/internal/modules/history/domain"
)

var berlin = mustLoad("Europe/Berlin")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, 3600)
	}
	return loc
}

func TestAggregateTwoSessionsSameDay(t *testing.T) {
	t.Parallel()
	records := []domain.Record{
		{RecordedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), ActualMinutes: 25, Success: true},
		{RecordedAt: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC), ActualMinutes: 10, Success: false},
	}
	got := domain.Aggregate(records, time.UTC)
	want := []domain.DailyStat{{
		Date:               time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		TotalMinutes:       35,
		Sessions:           2,
		SuccessMinutes:     25,
		SuccessfulSessions: 1,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("aggregate mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateGroupsByLocalDay(t *testing.T) {
	t.Parallel()
	// 23:30 UTC on March 1 is already March 2 in Berlin.
	records := []domain.Record{
		{RecordedAt: time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC), ActualMinutes: 20, Success: true},
		{RecordedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), ActualMinutes: 5},
	}
	got := domain.Aggregate(records, berlin)
	if len(got) != 2 {
		t.Fatalf("expected two days, got %d", len(got))
	}
	if got[0].Date.Day() != 1 || got[1].Date.Day() != 2 {
		t.Fatalf("unexpected days %v, %v", got[0].Date, got[1].Date)
	}
	if got[1].TotalMinutes != 20 || got[1].SuccessMinutes != 20 {
		t.Fatalf("unexpected stat %+v", got[1])
	}
}

func TestAggregateIsDeterministicAndOrderIndependent(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)
	records := make([]domain.Record, 0, 60)
	for i := range 60 {
		records = append(records, domain.Record{
			RecordedAt:    base.Add(time.Duration(i*7) * time.Hour),
			ActualMinutes: (i * 13) % 120,
			Success:       i%3 == 0,
		})
	}
	first := domain.Aggregate(records, berlin)
	second := domain.Aggregate(records, berlin)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("aggregate not idempotent:\n%s", diff)
	}

	shuffled := append([]domain.Record(nil), records...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if diff := cmp.Diff(first, domain.Aggregate(shuffled, berlin)); diff != "" {
		t.Fatalf("aggregate depends on input order:\n%s", diff)
	}

	for i := 1; i < len(first); i++ {
		if !first[i-1].Date.Before(first[i].Date) {
			t.Fatalf("stats not strictly ascending at %d", i)
		}
	}
	for _, s := range first {
		if s.SuccessMinutes > s.TotalMinutes {
			t.Fatalf("success minutes exceed total: %+v", s)
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	t.Parallel()
	if got := domain.Aggregate(nil, time.UTC); len(got) != 0 {
		t.Fatalf("expected no stats, got %+v", got)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	stats := []domain.DailyStat{
		{TotalMinutes: 35, Sessions: 2, SuccessMinutes: 25, SuccessfulSessions: 1},
		{TotalMinutes: 60, Sessions: 1, SuccessMinutes: 60, SuccessfulSessions: 1},
	}
	want := domain.Summary{TotalMinutes: 95, FocusedDays: 2, Sessions: 3, SuccessMinutes: 85, SuccessfulSessions: 2}
	if diff := cmp.Diff(want, domain.Summarize(stats)); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestLastDays(t *testing.T) {
	t.Parallel()
	stats := make([]domain.DailyStat, 10)
	for i := range stats {
		stats[i].TotalMinutes = i
	}
	last := domain.LastDays(stats, 7)
	if len(last) != 7 || last[0].TotalMinutes != 3 || last[6].TotalMinutes != 9 {
		t.Fatalf("unexpected trailing days %+v", last)
	}
	if got := domain.LastDays(stats[:3], 7); len(got) != 3 {
		t.Fatalf("expected all 3 days, got %d", len(got))
	}
}

func TestWindowZeroFillsMissingDays(t *testing.T) {
	t.Parallel()
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	stats := []domain.DailyStat{
		{Date: day(1), TotalMinutes: 50, Sessions: 2},
		{Date: day(4), TotalMinutes: 25, Sessions: 1, SuccessMinutes: 25, SuccessfulSessions: 1},
	}
	got := domain.Window(stats, time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC), 4)
	want := []domain.DailyStat{
		{Date: day(2)},
		{Date: day(3)},
		{Date: day(4), TotalMinutes: 25, Sessions: 1, SuccessMinutes: 25, SuccessfulSessions: 1},
		{Date: day(5)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("window mismatch (-want +got):\n%s", diff)
	}
}

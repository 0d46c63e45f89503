package domain

import (
	"sort"
	"time"
)

// Record is the part of a focus session that history needs.
type Record struct {
	RecordedAt    time.Time
	ActualMinutes int
	Success       bool
}

// DailyStat totals the sessions recorded on one local calendar day.
type DailyStat struct {
	Date               time.Time
	TotalMinutes       int
	Sessions           int
	SuccessMinutes     int
	SuccessfulSessions int
}

type Summary struct {
	TotalMinutes       int
	FocusedDays        int
	Sessions           int
	SuccessMinutes     int
	SuccessfulSessions int
}

// Aggregate groups records by calendar day in loc and returns one entry per
// day that has sessions, oldest first. The input order does not matter.
func Aggregate(records []Record, loc *time.Location) []DailyStat {
	if loc == nil {
		loc = time.Local
	}
	byDay := make(map[time.Time]*DailyStat)
	for _, r := range records {
		day := Day(r.RecordedAt, loc)
		stat, ok := byDay[day]
		if !ok {
			stat = &DailyStat{Date: day}
			byDay[day] = stat
		}
		stat.TotalMinutes += r.ActualMinutes
		stat.Sessions++
		if r.Success {
			stat.SuccessMinutes += r.ActualMinutes
			stat.SuccessfulSessions++
		}
	}

	out := make([]DailyStat, 0, len(byDay))
	for _, stat := range byDay {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func Summarize(stats []DailyStat) Summary {
	sum := Summary{}
	for _, s := range stats {
		sum.TotalMinutes += s.TotalMinutes
		sum.Sessions += s.Sessions
		sum.SuccessMinutes += s.SuccessMinutes
		sum.SuccessfulSessions += s.SuccessfulSessions
		if s.Sessions > 0 {
			sum.FocusedDays++
		}
	}
	return sum
}

// LastDays returns the trailing n entries of stats.
func LastDays(stats []DailyStat, n int) []DailyStat {
	if n <= 0 {
		return []DailyStat{}
	}
	if len(stats) <= n {
		return stats
	}
	return stats[len(stats)-n:]
}

// Window returns exactly days entries ending on the day of end, filling days
// without sessions with zero totals.
func Window(stats []DailyStat, end time.Time, days int) []DailyStat {
	if days <= 0 {
		return []DailyStat{}
	}
	loc := end.Location()
	byDay := make(map[time.Time]DailyStat, len(stats))
	for _, s := range stats {
		byDay[Day(s.Date, loc)] = s
	}
	last := Day(end, loc)
	out := make([]DailyStat, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := last.AddDate(0, 0, -i)
		if s, ok := byDay[day]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, DailyStat{Date: day})
	}
	return out
}

// Day truncates t to local midnight in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

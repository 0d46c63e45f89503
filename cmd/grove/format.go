package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	focusdto "grove/internal/modules/focus/dto"
	historydto "grove/internal/modules/history/dto"
)

func formatRemaining(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := (ms + 999) / 1000
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func printState(w io.Writer, s focusdto.StateOutput) {
	if !s.Running {
		_, _ = fmt.Fprintf(w, "idle  duration=%dm\n", s.DurationMinutes)
		return
	}
	_, _ = fmt.Fprintf(w, "running  run=%s  planned=%dm  remaining=%s  growth=%.0f%%  stage=%s\n",
		s.RunID, s.PlannedMinutes, formatRemaining(s.RemainingMs), s.Growth*100, s.Stage)
}

func printSessions(w io.Writer, sessions []focusdto.SessionOutput) {
	if len(sessions) == 0 {
		_, _ = fmt.Fprintln(w, "no sessions yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RECORDED\tPLANNED\tACTUAL\tOUTCOME")
	for _, s := range sessions {
		outcome := "abandoned"
		if s.Success {
			outcome = "grown"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%dm\t%dm\t%s\n", s.RecordedAt.Local().Format("2006-01-02 15:04"), s.PlannedMinutes, s.ActualMinutes, outcome)
	}
	_ = tw.Flush()
}

func printReport(w io.Writer, r historydto.ReportOutput) {
	peak := 0
	for _, d := range r.Window {
		peak = max(peak, d.TotalMinutes)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DAY\tMINUTES\tSESSIONS\tGROWN\t")
	for _, d := range r.Window {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", d.Date.Format("Mon 01-02"), d.TotalMinutes, d.Sessions, d.SuccessMinutes, bar(d.TotalMinutes, peak, 30))
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "\nall time: %d minutes over %d days, %d sessions (%d grown)\n",
		r.Summary.TotalMinutes, r.Summary.FocusedDays, r.Summary.Sessions, r.Summary.SuccessfulSessions)
}

func bar(value, peak, width int) string {
	if peak <= 0 || value <= 0 {
		return ""
	}
	n := max(value*width/peak, 1)
	return strings.Repeat("█", n)
}

package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	historydto "grove/internal/modules/history/dto"
	"grove/internal/ui/theme"
)

// ─── port ────────────────────────────────────────────────────────────────────

type HistoryPort interface {
	Report(ctx context.Context) (historydto.ReportOutput, error)
	Watch(ctx context.Context) (<-chan historydto.ReportOutput, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

// ReportMsg carries a watch emission. Closed is set once the stream ends.
type ReportMsg struct {
	Report historydto.ReportOutput
	Closed bool
}

type loadedMsg struct {
	report historydto.ReportOutput
	err    error
}

type subscribedMsg struct {
	ch  <-chan historydto.ReportOutput
	err error
}

// ─── model ───────────────────────────────────────────────────────────────────

const chartHeight = 8

type Model struct {
	ctx     context.Context
	port    HistoryPort
	updates <-chan historydto.ReportOutput
	report  historydto.ReportOutput
	loaded  bool
	days    viewport.Model
	err     error
	width   int
	height  int
}

func New(ctx context.Context, port HistoryPort) Model {
	return Model{ctx: ctx, port: port, days: viewport.New(0, 0)}
}

func (m Model) Init() tea.Cmd {
	if m.port == nil {
		return nil
	}
	return tea.Batch(m.loadCmd(), m.subscribeCmd())
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case subscribedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.updates = msg.ch
		return m, waitReport(m.updates)

	case loadedMsg:
		// A watch emission may already have arrived and is at least as fresh.
		if m.loaded {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.setReport(msg.report)
		return m, nil

	case ReportMsg:
		if msg.Closed {
			m.updates = nil
			return m, nil
		}
		m.setReport(msg.Report)
		return m, waitReport(m.updates)
	}

	var cmd tea.Cmd
	m.days, cmd = m.days.Update(msg)
	return m, cmd
}

func (m *Model) setReport(r historydto.ReportOutput) {
	m.err = nil
	m.report = r
	m.loaded = true
	m.days.SetContent(renderDays(r.Daily))
}

func (m *Model) resize() {
	w := m.width - 6
	if w < 20 {
		w = 20
	}
	h := m.height - chartHeight - 12
	if h < 3 {
		h = 3
	}
	m.days.Width = w
	m.days.Height = h
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("History") + "\n\n")
	switch {
	case m.err != nil:
		sb.WriteString(theme.Failed.Render(m.err.Error()))
	case !m.loaded:
		sb.WriteString(theme.Muted.Render("loading…"))
	default:
		sb.WriteString(renderSummary(m.report.Summary) + "\n\n")
		sb.WriteString(renderChart(m.report.Window) + "\n\n")
		sb.WriteString(theme.Muted.Render("days") + "\n")
		sb.WriteString(m.days.View())
	}
	return theme.Pane.Width(max(m.width-2, 0)).Render(sb.String())
}

func renderSummary(s historydto.SummaryOutput) string {
	return fmt.Sprintf("%s focused over %s  ·  %s grown of %d",
		theme.Big.Render(fmt.Sprintf("%d min", s.TotalMinutes)),
		theme.Big.Render(plural(s.FocusedDays, "day")),
		theme.Grown.Render(fmt.Sprintf("%d", s.SuccessfulSessions)),
		s.Sessions)
}

// renderChart draws one column per day, scaled to the busiest day in the
// window. Columns fill bottom-up with grown minutes drawn over the rest.
func renderChart(window []historydto.DailyStatOutput) string {
	if len(window) == 0 {
		return theme.Muted.Render("no data")
	}
	peak := 0
	for _, d := range window {
		peak = max(peak, d.TotalMinutes)
	}

	cols := make([]string, len(window))
	for i, d := range window {
		total, grown := scale(d.TotalMinutes, peak), scale(d.SuccessMinutes, peak)
		cells := make([]string, chartHeight)
		for row := 0; row < chartHeight; row++ {
			level := chartHeight - row
			switch {
			case level <= grown:
				cells[row] = theme.Grown.Render(" ██ ")
			case level <= total:
				cells[row] = theme.Bar.Render(" ██ ")
			default:
				cells[row] = "    "
			}
		}
		label := theme.Muted.Render(fmt.Sprintf("%-4s", d.Date.Format("Mon")))
		value := theme.Muted.Render(fmt.Sprintf("%-4d", d.TotalMinutes))
		cols[i] = lipgloss.JoinVertical(lipgloss.Left, value, strings.Join(cells, "\n"), label)
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, cols...)
}

func scale(v, peak int) int {
	if peak == 0 || v <= 0 {
		return 0
	}
	h := v * chartHeight / peak
	if h == 0 {
		h = 1
	}
	return h
}

// renderDays lists days newest first.
func renderDays(daily []historydto.DailyStatOutput) string {
	if len(daily) == 0 {
		return theme.Muted.Render("no sessions yet, plant your first tree")
	}
	var sb strings.Builder
	for i := len(daily) - 1; i >= 0; i-- {
		d := daily[i]
		fmt.Fprintf(&sb, "%s  %4d min  %s\n",
			d.Date.Format("2006-01-02 Mon"),
			d.TotalMinutes,
			theme.Muted.Render(fmt.Sprintf("%d/%d grown", d.SuccessfulSessions, d.Sessions)))
	}
	return sb.String()
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// ─── async commands ──────────────────────────────────────────────────────────

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		r, err := m.port.Report(m.ctx)
		return loadedMsg{report: r, err: err}
	}
}

func (m Model) subscribeCmd() tea.Cmd {
	return func() tea.Msg {
		ch, err := m.port.Watch(m.ctx)
		return subscribedMsg{ch: ch, err: err}
	}
}

func waitReport(ch <-chan historydto.ReportOutput) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return ReportMsg{Closed: true}
		}
		return ReportMsg{Report: r}
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	focusdto "grove/internal/modules/focus/dto"
	historydto "grove/internal/modules/history/dto"
	apperrors "grove/internal/platform/errors"
	"grove/internal/ui/components"
	"grove/internal/ui/theme"
	focusview "grove/internal/ui/views/focus"
	historyview "grove/internal/ui/views/history"
)

// ─── ports ───────────────────────────────────────────────────────────────────
// Each port is the minimal interface that this orchestration layer requires.
// Sub-view ports are defined in their own packages and narrowed further.

type focusPort interface {
	State(ctx context.Context) (focusdto.StateOutput, error)
	WatchState(ctx context.Context) (<-chan focusdto.StateOutput, error)
	Toggle(ctx context.Context, running bool) (focusdto.CommandOutput, error)
	StepDuration(ctx context.Context, current, delta int) (focusdto.CommandOutput, error)
	SetDuration(ctx context.Context, minutes float64) (focusdto.CommandOutput, error)
	Onboarding(ctx context.Context) (focusdto.OnboardingOutput, error)
	CompleteOnboarding(ctx context.Context) (focusdto.OnboardingOutput, error)
	Errors() <-chan error
}

type historyPort interface {
	Report(ctx context.Context) (historydto.ReportOutput, error)
	Watch(ctx context.Context) (<-chan historydto.ReportOutput, error)
}

// ─── tab index ───────────────────────────────────────────────────────────────

type tabID int

const (
	tabFocus tabID = iota
	tabHistory
	tabCount
)

var tabLabels = [tabCount]string{"Focus", "History"}

// ─── async messages ──────────────────────────────────────────────────────────

type serviceErrMsg struct{ err error }

type errorsClosedMsg struct{}

// ─── key bindings ────────────────────────────────────────────────────────────

type keyMap struct {
	Tab      key.Binding
	Toggle   key.Binding
	Duration key.Binding
	Help     key.Binding
	Palette  key.Binding
	Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		Toggle:   key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "plant / give up")),
		Duration: key.NewBinding(key.WithKeys("left", "right", "+", "-"), key.WithHelp("←/→", "duration")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette:  key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Help, k.Palette, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Duration},
		{k.Tab, k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model. It owns tab routing, the help overlay,
// the command palette and the status bar. Timer state lives in the focus
// service; the views only render what it publishes.
type Model struct {
	ctx   context.Context
	focus focusPort

	focusView   focusview.Model
	historyView historyview.Model

	activeTab tabID
	keys      keyMap
	help      help.Model
	showHelp  bool
	palette   components.Palette
	status    string
	width     int
	height    int
}

// ─── constructor ─────────────────────────────────────────────────────────────

// NewModel wires the views to the given ports. ctx bounds every port call and
// subscription the model makes.
func NewModel(ctx context.Context, focus focusPort, history historyPort) Model {
	return Model{
		ctx:         ctx,
		focus:       focus,
		focusView:   focusview.New(ctx, focusPortBridge{p: focus}),
		historyView: historyview.New(ctx, historyPortBridge{p: history}),
		activeTab:   tabFocus,
		keys:        defaultKeys(),
		help:        help.New(),
		palette:     components.NewPalette(),
		status:      "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.focusView.Init(),
		m.historyView.Init(),
		waitServiceErr(m.focus.Errors()),
	)
}

// ─── update ──────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The palette intercepts key input while open. Subscription messages
	// still flow so the views keep ticking underneath.
	if _, isKey := msg.(tea.KeyMsg); isKey && m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 60))
		m.help.Width = m.width
		m.propagateSize()
		return m, nil

	case serviceErrMsg:
		m.status = "save failed: " + msg.err.Error()
		return m, waitServiceErr(m.focus.Errors())

	case errorsClosedMsg:
		return m, nil

	case focusview.StateMsg, focusview.CommandMsg:
		if cm, ok := msg.(focusview.CommandMsg); ok {
			m.status = commandStatus(cm)
		}
		var cmd tea.Cmd
		m.focusView, cmd = m.focusView.Update(msg)
		return m, cmd

	case historyview.ReportMsg:
		var cmd tea.Cmd
		m.historyView, cmd = m.historyView.Update(msg)
		return m, cmd

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab + tabCount - 1) % tabCount
			return m, nil
		case "?":
			m.showHelp = true
			return m, nil
		case ":":
			return m, m.palette.Open()
		}
		return m.updateActive(msg)
	}

	// Anything else is an internal message of one of the views; both get it
	// since only the owner recognises it.
	var fcmd, hcmd, pcmd tea.Cmd
	m.focusView, fcmd = m.focusView.Update(msg)
	m.historyView, hcmd = m.historyView.Update(msg)
	if m.palette.Visible() {
		m.palette, pcmd = m.palette.Update(msg)
	}
	return m, tea.Batch(fcmd, hcmd, pcmd)
}

func (m Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.activeTab {
	case tabFocus:
		m.focusView, cmd = m.focusView.Update(msg)
	case tabHistory:
		m.historyView, cmd = m.historyView.Update(msg)
	}
	return m, cmd
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()
	contentH := m.height - lipgloss.Height(tabBar) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).
			Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.palette.View())
	case m.activeTab == tabHistory:
		content = m.historyView.View()
	default:
		content = m.focusView.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)
}

func (m Model) renderTabBar() string {
	parts := make([]string, tabCount)
	for i := tabID(0); i < tabCount; i++ {
		label := tabLabels[i]
		if i == m.activeTab {
			parts[i] = theme.Hot.Render(" " + label + " ")
		} else {
			parts[i] = theme.Muted.Render(" " + label + " ")
		}
	}
	bar := theme.Grown.Render("grove") + "  " + strings.Join(parts, theme.Muted.Render(" │ "))
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := m.status
	if st := m.focusView.State(); st.Running {
		left = theme.Hot.Render(fmt.Sprintf("● %s %s", st.Stage, focusview.FormatRemaining(st.RemainingMs))) + "  " + left
	}
	right := theme.Muted.Render("?:help  tab:switch  ::palette  q:quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ───────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	running := m.focusView.State().Running

	switch parts[0] {
	case "start":
		if running {
			m.status = "a tree is already growing"
			return m, nil
		}
		m.activeTab = tabFocus
		return m, m.focusView.Toggle()

	case "stop":
		if !running {
			m.status = "nothing is growing"
			return m, nil
		}
		return m, m.focusView.Toggle()

	case "duration":
		if len(parts) < 2 {
			m.status = "usage: duration <minutes>"
			return m, nil
		}
		minutes, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			m.status = "invalid minutes: " + parts[1]
			return m, nil
		}
		m.activeTab = tabFocus
		return m, m.setDurationCmd(minutes)

	case "history":
		m.activeTab = tabHistory
		m.status = "history"

	case "focus":
		m.activeTab = tabFocus
		m.status = "ready"

	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (m *Model) propagateSize() {
	sz := tea.WindowSizeMsg{Width: m.width, Height: m.height - 3}
	m.focusView, _ = m.focusView.Update(sz)
	m.historyView, _ = m.historyView.Update(sz)
}

func commandStatus(msg focusview.CommandMsg) string {
	if msg.Err != nil {
		if errors.Is(msg.Err, apperrors.ErrServiceStopped) {
			return "focus service stopped"
		}
		return msg.Action + " failed: " + msg.Err.Error()
	}
	if !msg.Out.Applied {
		if msg.Out.State.Running {
			return "locked while a tree is growing"
		}
		return msg.Action + ": nothing to do"
	}
	switch msg.Action {
	case "start":
		return fmt.Sprintf("planted a %d min tree", msg.Out.State.PlannedMinutes)
	case "stop":
		return "gave up, the tree withered"
	default:
		return fmt.Sprintf("duration %d min", msg.Out.State.DurationMinutes)
	}
}

// ─── async commands ──────────────────────────────────────────────────────────

func (m Model) setDurationCmd(minutes float64) tea.Cmd {
	return func() tea.Msg {
		out, err := m.focus.SetDuration(m.ctx, minutes)
		return focusview.CommandMsg{Action: "duration", Out: out, Err: err}
	}
}

func waitServiceErr(ch <-chan error) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		err, ok := <-ch
		if !ok {
			return errorsClosedMsg{}
		}
		return serviceErrMsg{err: err}
	}
}

// ─── port bridges ────────────────────────────────────────────────────────────
// Each bridge narrows a broad port interface to the minimal interface needed by
// a specific sub-view, keeping view packages free of knowledge about the wider
// port surface.

type focusPortBridge struct{ p focusPort }

func (b focusPortBridge) State(ctx context.Context) (focusdto.StateOutput, error) {
	return b.p.State(ctx)
}
func (b focusPortBridge) WatchState(ctx context.Context) (<-chan focusdto.StateOutput, error) {
	return b.p.WatchState(ctx)
}
func (b focusPortBridge) Toggle(ctx context.Context, running bool) (focusdto.CommandOutput, error) {
	return b.p.Toggle(ctx, running)
}
func (b focusPortBridge) StepDuration(ctx context.Context, current, delta int) (focusdto.CommandOutput, error) {
	return b.p.StepDuration(ctx, current, delta)
}
func (b focusPortBridge) Onboarding(ctx context.Context) (focusdto.OnboardingOutput, error) {
	return b.p.Onboarding(ctx)
}
func (b focusPortBridge) CompleteOnboarding(ctx context.Context) (focusdto.OnboardingOutput, error) {
	return b.p.CompleteOnboarding(ctx)
}

type historyPortBridge struct{ p historyPort }

func (b historyPortBridge) Report(ctx context.Context) (historydto.ReportOutput, error) {
	return b.p.Report(ctx)
}
func (b historyPortBridge) Watch(ctx context.Context) (<-chan historydto.ReportOutput, error) {
	return b.p.Watch(ctx)
}

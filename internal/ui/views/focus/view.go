package focus

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	focusdto "grove/internal/modules/focus/dto"
	"grove/internal/ui/theme"
)

// ─── port ────────────────────────────────────────────────────────────────────

type FocusPort interface {
	State(ctx context.Context) (focusdto.StateOutput, error)
	WatchState(ctx context.Context) (<-chan focusdto.StateOutput, error)
	Toggle(ctx context.Context, running bool) (focusdto.CommandOutput, error)
	StepDuration(ctx context.Context, current, delta int) (focusdto.CommandOutput, error)
	Onboarding(ctx context.Context) (focusdto.OnboardingOutput, error)
	CompleteOnboarding(ctx context.Context) (focusdto.OnboardingOutput, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

// StateMsg carries a state emission. Closed is set once the stream ends.
type StateMsg struct {
	State  focusdto.StateOutput
	Closed bool
}

type loadedMsg struct {
	state focusdto.StateOutput
	err   error
}

type subscribedMsg struct {
	ch  <-chan focusdto.StateOutput
	err error
}

// CommandMsg reports the outcome of a toggle or duration change.
type CommandMsg struct {
	Action string
	Out    focusdto.CommandOutput
	Err    error
}

type onboardingMsg struct {
	out focusdto.OnboardingOutput
	err error
}

// ─── model ───────────────────────────────────────────────────────────────────

type Model struct {
	ctx        context.Context
	port       FocusPort
	updates    <-chan focusdto.StateOutput
	state      focusdto.StateOutput
	loaded     bool
	onboarded  bool
	onboardErr error
	bar        progress.Model
	err        error
	width      int
	height     int
}

func New(ctx context.Context, port FocusPort) Model {
	bar := progress.New(
		progress.WithGradient(string(theme.Peach), string(theme.Green)),
		progress.WithoutPercentage(),
	)
	bar.Width = 40
	// Assume onboarded until the preference says otherwise so the intro
	// never flashes for returning users.
	return Model{ctx: ctx, port: port, bar: bar, onboarded: true}
}

func (m Model) Init() tea.Cmd {
	if m.port == nil {
		return nil
	}
	return tea.Batch(m.loadCmd(), m.subscribeCmd(), m.onboardingCmd())
}

// State returns the last state received from the focus service.
func (m Model) State() focusdto.StateOutput { return m.state }

// Toggle starts or stops the session depending on the last known state.
func (m Model) Toggle() tea.Cmd {
	if m.port == nil {
		return nil
	}
	running := m.state.Running
	action := "start"
	if running {
		action = "stop"
	}
	return func() tea.Msg {
		out, err := m.port.Toggle(m.ctx, running)
		return CommandMsg{Action: action, Out: out, Err: err}
	}
}

// Step moves the selected duration by delta grid steps.
func (m Model) Step(delta int) tea.Cmd {
	if m.port == nil || m.state.Running {
		return nil
	}
	current := m.state.DurationMinutes
	return func() tea.Msg {
		out, err := m.port.StepDuration(m.ctx, current, delta)
		return CommandMsg{Action: "duration", Out: out, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = clamp(msg.Width-16, 10, 60)

	case loadedMsg:
		if m.loaded {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.state = msg.state
		m.loaded = true

	case subscribedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.updates = msg.ch
		return m, waitState(m.updates)

	case StateMsg:
		if msg.Closed {
			m.updates = nil
			return m, nil
		}
		m.state = msg.State
		m.loaded = true
		m.err = nil
		return m, waitState(m.updates)

	case CommandMsg:
		// The reply snapshot may be older than what the stream already
		// delivered; the stream carries the resulting state.
		m.err = msg.Err

	case onboardingMsg:
		if msg.err != nil {
			m.onboardErr = msg.err
			return m, nil
		}
		m.onboarded = msg.out.Completed

	case tea.KeyMsg:
		if !m.onboarded {
			if msg.String() == "enter" || msg.String() == " " {
				return m, m.completeOnboardingCmd()
			}
			return m, nil
		}
		switch msg.String() {
		case " ", "enter":
			return m, m.Toggle()
		case "+", "=", "right", "l":
			return m, m.Step(1)
		case "-", "left", "h":
			return m, m.Step(-1)
		}
	}
	return m, nil
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	if !m.onboarded {
		return m.frame(m.renderIntro())
	}

	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Focus") + "\n\n")

	if !m.loaded {
		sb.WriteString(theme.Muted.Render("loading…"))
		return m.frame(sb.String())
	}

	st := m.state
	sb.WriteString(renderStage(st.Stage, st.Running) + "\n\n")

	if st.Running {
		sb.WriteString(theme.Big.Render(FormatRemaining(st.RemainingMs)))
		sb.WriteString(theme.Muted.Render(fmt.Sprintf("  of %d min", st.PlannedMinutes)) + "\n\n")
		sb.WriteString(m.bar.ViewAs(st.Growth) + "\n")
		sb.WriteString(theme.Muted.Render(fmt.Sprintf("%.0f%% grown", st.Growth*100)) + "\n\n")
		sb.WriteString(theme.Hot.Render("space") + theme.Muted.Render(" give up (the tree withers)"))
	} else {
		sb.WriteString(renderSelector(st.DurationMinutes) + "\n\n")
		sb.WriteString(theme.Hot.Render("space") + theme.Muted.Render(" plant  ") +
			theme.Hot.Render("←/→") + theme.Muted.Render(" duration"))
	}

	if m.err != nil {
		sb.WriteString("\n\n" + theme.Failed.Render(m.err.Error()))
	}
	return m.frame(sb.String())
}

func (m Model) renderIntro() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Welcome to grove") + "\n\n")
	sb.WriteString("Pick how long you want to focus and plant a seed.\n")
	sb.WriteString("It grows while you stay on task and becomes a tree\n")
	sb.WriteString("when the timer runs out. Giving up early withers it.\n\n")
	sb.WriteString(theme.Muted.Render("Every session lands in your history.") + "\n\n")
	sb.WriteString(theme.Hot.Render("enter") + theme.Muted.Render(" get started"))
	if m.onboardErr != nil {
		sb.WriteString("\n\n" + theme.Failed.Render(m.onboardErr.Error()))
	}
	return sb.String()
}

func (m Model) frame(body string) string {
	pane := theme.PaneActive.Render(body)
	if m.width == 0 || m.height == 0 {
		return pane
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, pane)
}

func renderSelector(minutes int) string {
	left, right := "◀", "▶"
	if minutes <= focusdto.MinDurationMinutes {
		left = " "
	}
	if minutes >= focusdto.MaxDurationMinutes {
		right = " "
	}
	return theme.Muted.Render(left+" ") + theme.Big.Render(fmt.Sprintf("%3d min", minutes)) + theme.Muted.Render(" "+right)
}

func renderStage(stage string, running bool) string {
	switch {
	case stage == "grown":
		return theme.Grown.Render("grown")
	case running && stage != "":
		return theme.Bar.Render(stage)
	default:
		return theme.Muted.Render("ready to plant")
	}
}

// FormatRemaining renders milliseconds as mm:ss, rounding partial seconds up
// so the display reaches 00:00 only when the session ends.
func FormatRemaining(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	secs := (ms + 999) / 1000
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// ─── async commands ──────────────────────────────────────────────────────────

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		st, err := m.port.State(m.ctx)
		return loadedMsg{state: st, err: err}
	}
}

func (m Model) subscribeCmd() tea.Cmd {
	return func() tea.Msg {
		ch, err := m.port.WatchState(m.ctx)
		return subscribedMsg{ch: ch, err: err}
	}
}

func (m Model) onboardingCmd() tea.Cmd {
	return func() tea.Msg {
		out, err := m.port.Onboarding(m.ctx)
		return onboardingMsg{out: out, err: err}
	}
}

func (m Model) completeOnboardingCmd() tea.Cmd {
	if m.port == nil {
		return nil
	}
	return func() tea.Msg {
		out, err := m.port.CompleteOnboarding(m.ctx)
		return onboardingMsg{out: out, err: err}
	}
}

func waitState(ch <-chan focusdto.StateOutput) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return StateMsg{Closed: true}
		}
		return StateMsg{State: st}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

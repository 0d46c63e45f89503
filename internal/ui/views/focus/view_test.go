package focus

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	focusdto "grove/internal/modules/focus/dto"
)

type fakePort struct {
	toggled  []bool
	steps    [][2]int
	complete int
}

func (f *fakePort) State(context.Context) (focusdto.StateOutput, error) {
	return focusdto.StateOutput{DurationMinutes: 25}, nil
}

func (f *fakePort) WatchState(context.Context) (<-chan focusdto.StateOutput, error) {
	return make(chan focusdto.StateOutput), nil
}

func (f *fakePort) Toggle(_ context.Context, running bool) (focusdto.CommandOutput, error) {
	f.toggled = append(f.toggled, running)
	return focusdto.CommandOutput{
		State:   focusdto.StateOutput{DurationMinutes: 25, PlannedMinutes: 25, Running: !running, RemainingMs: 25 * 60_000},
		Applied: true,
	}, nil
}

func (f *fakePort) StepDuration(_ context.Context, current, delta int) (focusdto.CommandOutput, error) {
	f.steps = append(f.steps, [2]int{current, delta})
	return focusdto.CommandOutput{State: focusdto.StateOutput{DurationMinutes: current + delta*5}, Applied: true}, nil
}

func (f *fakePort) Onboarding(context.Context) (focusdto.OnboardingOutput, error) {
	return focusdto.OnboardingOutput{Completed: f.complete > 0}, nil
}

func (f *fakePort) CompleteOnboarding(context.Context) (focusdto.OnboardingOutput, error) {
	f.complete++
	return focusdto.OnboardingOutput{Completed: true}, nil
}

func idle(minutes int) StateMsg {
	return StateMsg{State: focusdto.StateOutput{DurationMinutes: minutes}}
}

func TestFormatRemaining(t *testing.T) {
	t.Parallel()

	cases := map[int64]string{
		-5:        "00:00",
		0:         "00:00",
		1:         "00:01",
		59_001:    "01:00",
		1_500_000: "25:00",
		1_499_999: "25:00",
		7_200_000: "120:00",
	}
	for ms, want := range cases {
		if got := FormatRemaining(ms); got != want {
			t.Fatalf("FormatRemaining(%d) = %q, want %q", ms, got, want)
		}
	}
}

func TestStepKeysChangeDurationWhileIdle(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	m := New(context.Background(), port)
	m, _ = m.Update(idle(25))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if cmd == nil {
		t.Fatal("expected a command for right arrow")
	}
	msg := cmd().(CommandMsg)
	m, _ = m.Update(msg)
	m, _ = m.Update(StateMsg{State: msg.Out.State})

	if len(port.steps) != 1 || port.steps[0] != [2]int{25, 1} {
		t.Fatalf("steps = %v", port.steps)
	}
	if m.State().DurationMinutes != 30 {
		t.Fatalf("duration = %d, want 30", m.State().DurationMinutes)
	}
	if !strings.Contains(m.View(), "30 min") {
		t.Fatalf("view does not show the new duration:\n%s", m.View())
	}
}

func TestStepKeysIgnoredWhileRunning(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	m := New(context.Background(), port)
	m, _ = m.Update(StateMsg{State: focusdto.StateOutput{DurationMinutes: 25, Running: true, RemainingMs: 60_000}})

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyLeft}); cmd != nil {
		t.Fatal("duration keys must not issue commands while running")
	}
}

func TestEnterTogglesFromLastKnownState(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	m := New(context.Background(), port)
	m, _ = m.Update(idle(25))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	reply := cmd().(CommandMsg)
	m, _ = m.Update(reply)
	m, _ = m.Update(StateMsg{State: reply.Out.State})
	if len(port.toggled) != 1 || port.toggled[0] {
		t.Fatalf("toggled = %v, want one start", port.toggled)
	}
	if !m.State().Running {
		t.Fatal("state not running after start")
	}
	if !strings.Contains(m.View(), "25:00") {
		t.Fatalf("view missing countdown:\n%s", m.View())
	}
}

func TestLateReplyDoesNotRewindCountdown(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	m := New(context.Background(), port)
	m, _ = m.Update(idle(25))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	reply := cmd().(CommandMsg)

	// The stream has already moved past the start snapshot.
	ticked := reply.Out.State
	ticked.RemainingMs -= 1_000
	ticked.Growth = 1 - float64(ticked.RemainingMs)/float64(25*60_000)
	m, _ = m.Update(StateMsg{State: ticked})
	m, _ = m.Update(reply)

	if got := m.State().RemainingMs; got != ticked.RemainingMs {
		t.Fatalf("remaining = %d, want %d from the stream", got, ticked.RemainingMs)
	}
	if !strings.Contains(m.View(), "24:59") {
		t.Fatalf("view rewound the countdown:\n%s", m.View())
	}
}

func TestFailedCommandShowsError(t *testing.T) {
	t.Parallel()

	m := New(context.Background(), &fakePort{})
	m, _ = m.Update(idle(25))
	m, _ = m.Update(CommandMsg{Action: "start", Err: errors.New("service stopped")})
	if !strings.Contains(m.View(), "service stopped") {
		t.Fatalf("error not shown:\n%s", m.View())
	}
	if m.State().Running {
		t.Fatal("failed command changed the state")
	}
}

func TestIntroShownUntilOnboarded(t *testing.T) {
	t.Parallel()

	port := &fakePort{}
	m := New(context.Background(), port)
	m, _ = m.Update(onboardingMsg{out: focusdto.OnboardingOutput{Completed: false}})
	m, _ = m.Update(idle(25))

	if !strings.Contains(m.View(), "Welcome") {
		t.Fatalf("intro not shown:\n%s", m.View())
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(cmd())
	if port.complete != 1 || len(port.toggled) != 0 {
		t.Fatalf("complete = %d toggled = %v", port.complete, port.toggled)
	}
	if strings.Contains(m.View(), "Welcome") {
		t.Fatal("intro still shown after completing onboarding")
	}
}

func TestClosedStreamStopsWaiting(t *testing.T) {
	t.Parallel()

	ch := make(chan focusdto.StateOutput)
	close(ch)
	msg := waitState(ch)()
	if sm, ok := msg.(StateMsg); !ok || !sm.Closed {
		t.Fatalf("msg = %#v, want closed StateMsg", msg)
	}
	m := New(context.Background(), &fakePort{})
	if _, cmd := m.Update(msg); cmd != nil {
		t.Fatal("closed stream must not re-arm")
	}
}

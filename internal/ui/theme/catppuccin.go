package theme

import "github.com/charmbracelet/lipgloss"

var (
	Mantle   = lipgloss.Color("#181825")
	Surface1 = lipgloss.Color("#45475a")
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Sapphire = lipgloss.Color("#74c7ec")
	Green    = lipgloss.Color("#a6e3a1")
	Teal     = lipgloss.Color("#94e2d5")
	Peach    = lipgloss.Color("#fab387")
	Red      = lipgloss.Color("#f38ba8")

	Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Foreground(Text).
		Padding(1, 2)

	PaneActive = Pane.BorderForeground(Green)

	Title  = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted  = lipgloss.NewStyle().Foreground(Subtext0)
	Hot    = lipgloss.NewStyle().Foreground(Peach).Bold(true)
	Grown  = lipgloss.NewStyle().Foreground(Green).Bold(true)
	Failed = lipgloss.NewStyle().Foreground(Red)
	Big    = lipgloss.NewStyle().Foreground(Text).Bold(true)
	Bar    = lipgloss.NewStyle().Foreground(Teal)
)

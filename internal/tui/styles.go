package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/user/gridpulse/internal/model"
)

var (
	// Colors
	Primary   = lipgloss.Color("39")
	Secondary = lipgloss.Color("86")
	Subtle    = lipgloss.Color("241")
	Good      = lipgloss.Color("46")
	Caution   = lipgloss.Color("214")
	Bad       = lipgloss.Color("196")

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(Primary).
			Padding(0, 2).
			Align(lipgloss.Center)

	SectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Subtle).
			Padding(0, 2).
			MarginBottom(1)

	SectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Primary)

	LabelStyle = lipgloss.NewStyle().
			Foreground(Subtle).
			Width(13)

	ValueStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	ConnectedStyle = lipgloss.NewStyle().
			Foreground(Good).
			Bold(true)

	ConnectingStyle = lipgloss.NewStyle().
			Foreground(Caution).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Bad).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(Subtle).
			Italic(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Subtle).
			MarginTop(1)

	LoadingStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Padding(2, 4)
)

// RenderStatus returns a styled connection-status indicator.
func RenderStatus(s model.ConnectionStatus) string {
	switch s {
	case model.StatusConnected:
		return ConnectedStyle.Render("● " + string(s))
	case model.StatusConnecting:
		return ConnectingStyle.Render("◌ " + string(s))
	case model.StatusError:
		return ErrorStyle.Render("✗ " + string(s))
	default:
		return DimStyle.Render("○ " + string(s))
	}
}

// RenderBar renders a load percentage bar.
func RenderBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	filled := int(pct / 100 * float64(width))
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}

	color := Secondary
	if pct > 90 {
		color = Bad
	} else if pct > 75 {
		color = Caution
	}
	return lipgloss.NewStyle().Foreground(color).Render(bar)
}

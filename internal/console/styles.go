package console

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primary   = lipgloss.Color("#7C3AED") // Purple
	secondary = lipgloss.Color("#06B6D4") // Cyan
	success   = lipgloss.Color("#10B981") // Green
	warning   = lipgloss.Color("#F59E0B") // Amber
	errorRed  = lipgloss.Color("#EF4444") // Red

	colorTextBright = lipgloss.Color("#F8FAFC") // Slate 50
	colorTextNormal = lipgloss.Color("#CBD5E1") // Slate 300
	colorTextMuted  = lipgloss.Color("#64748B") // Slate 500
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorTextBright).
			Background(primary).
			Padding(0, 2).
			MarginBottom(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(primary)

	textNormal = lipgloss.NewStyle().Foreground(colorTextNormal)
	textMuted  = lipgloss.NewStyle().Foreground(colorTextMuted)

	errorStyle = lipgloss.NewStyle().Foreground(errorRed)

	helpStyle    = lipgloss.NewStyle().Foreground(colorTextMuted)
	helpKeyStyle = lipgloss.NewStyle().Foreground(secondary).Bold(true)

	statusOnline  = lipgloss.NewStyle().Foreground(success).SetString("●")
	statusOffline = lipgloss.NewStyle().Foreground(errorRed).SetString("●")
	statusPending = lipgloss.NewStyle().Foreground(warning).SetString("●")
)

func renderHelp(key, desc string) string {
	return helpKeyStyle.Render(key) + helpStyle.Render(" "+desc)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

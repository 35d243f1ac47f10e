package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Palette
	primaryColor = lipgloss.Color("39")  // blue
	accentColor  = lipgloss.Color("205") // pink
	mutedColor   = lipgloss.Color("241") // gray
	successColor = lipgloss.Color("76")  // green
	warningColor = lipgloss.Color("214") // orange
	errorColor   = lipgloss.Color("196") // red
	borderColor  = lipgloss.Color("63")  // purple

	// Text
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	subtitleStyle = lipgloss.NewStyle().Foreground(mutedColor)
	sectionStyle  = lipgloss.NewStyle().Bold(true)
	focusStyle    = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Background(primaryColor).Foreground(lipgloss.Color("0"))
	errorStyle    = lipgloss.NewStyle().Foreground(errorColor)
	successStyle  = lipgloss.NewStyle().Foreground(successColor)
	warningStyle  = lipgloss.NewStyle().Foreground(warningColor)
	mutedStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	barStyle      = lipgloss.NewStyle().Foreground(primaryColor)

	// Frame
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	appBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(1, 2)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)

	// Timers
	timerRunningStyle = lipgloss.NewStyle().Bold(true).Foreground(successColor)
	timerPausedStyle  = lipgloss.NewStyle().Bold(true).Foreground(warningColor)
	timerValueStyle   = lipgloss.NewStyle().Foreground(accentColor)
)

// errorLine renders err as an indented error message, or nothing
func errorLine(err error) string {
	if err == nil {
		return ""
	}
	return errorStyle.Render("  Error: "+err.Error()) + "\n"
}

// statusLine renders a confirmation message, or nothing
func statusLine(msg string) string {
	if msg == "" {
		return ""
	}
	return successStyle.Render("  "+msg) + "\n"
}

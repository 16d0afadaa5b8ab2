package tui

import "github.com/charmbracelet/lipgloss"

// Colors and styles follow the teacher's ai_coder_styles.go palette: plain
// ANSI numbers rather than hex, one role per constant.
var (
	connectedColor    = lipgloss.Color("2")  // Green
	disconnectedColor = lipgloss.Color("8")  // Gray
	warnColor         = lipgloss.Color("3")  // Yellow
	dimColor          = lipgloss.Color("240")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	dimStyle = lipgloss.NewStyle().Foreground(dimColor)

	connectedStyle    = lipgloss.NewStyle().Foreground(connectedColor)
	disconnectedStyle = lipgloss.NewStyle().Foreground(disconnectedColor)
	warnStyle         = lipgloss.NewStyle().Foreground(warnColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimColor).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

package dash

import "github.com/charmbracelet/lipgloss"

var (
	primary    = lipgloss.Color("#7C3AED")
	secondary  = lipgloss.Color("#10B981")
	warning    = lipgloss.Color("#F59E0B")
	errorColor = lipgloss.Color("#EF4444")
	mutedColor = lipgloss.Color("#6B7280")
	white      = lipgloss.Color("#FFFFFF")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	statusOK = lipgloss.NewStyle().
			Foreground(secondary).
			Bold(true)

	statusError = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	metricValue = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondary)

	metricLabel = lipgloss.NewStyle().
			Foreground(mutedColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	severityStyles = map[string]lipgloss.Style{
		"low":      lipgloss.NewStyle().Foreground(mutedColor),
		"medium":   lipgloss.NewStyle().Foreground(secondary),
		"high":     lipgloss.NewStyle().Foreground(warning).Bold(true),
		"critical": lipgloss.NewStyle().Foreground(errorColor).Bold(true),
	}

	rowStyle = lipgloss.NewStyle().Foreground(white)
)

// Package dash provides the terminal operations dashboard for CAD-Sentinel.
// It polls the monitoring service API and renders the security metrics
// rollup: totals, severity breakdown, top event types and recent events.
package dash

import (
	"fmt"
	"strings"
	"time"

	"cad-sentinel/internal/monitor"
	"cad-sentinel/internal/schema"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshInterval = 5 * time.Second

// Model is the dashboard TUI model.
type Model struct {
	client *Client

	rng        monitor.Range
	metrics    *monitor.SecurityMetrics
	healthy    bool
	err        error
	loading    bool
	lastUpdate time.Time

	width  int
	height int

	quitting bool
}

// metricsMsg carries a fetched rollup.
type metricsMsg struct {
	metrics *monitor.SecurityMetrics
	healthy bool
	err     error
}

// tickMsg triggers a refresh.
type tickMsg time.Time

// New creates a dashboard model polling the given service URL.
func New(baseURL string) *Model {
	return &Model{
		client:  NewClient(baseURL),
		rng:     monitor.RangeDay,
		loading: true,
	}
}

// Init fetches the initial rollup and starts the refresh ticker.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchMetrics(), tickCmd())
}

func (m *Model) fetchMetrics() tea.Cmd {
	rng := m.rng
	return func() tea.Msg {
		metrics, err := m.client.GetSecurityMetrics(rng)
		return metricsMsg{metrics: metrics, healthy: m.client.Healthy(), err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "d":
			return m.switchRange(monitor.RangeDay)
		case "w":
			return m.switchRange(monitor.RangeWeek)
		case "m":
			return m.switchRange(monitor.RangeMonth)
		case "r":
			m.loading = true
			return m, m.fetchMetrics()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case metricsMsg:
		m.loading = false
		m.err = msg.err
		m.healthy = msg.healthy
		if msg.err == nil {
			m.metrics = msg.metrics
			m.lastUpdate = time.Now()
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchMetrics(), tickCmd())
	}

	return m, nil
}

func (m *Model) switchRange(r monitor.Range) (tea.Model, tea.Cmd) {
	if m.rng == r {
		return m, nil
	}
	m.rng = r
	m.loading = true
	return m, m.fetchMetrics()
}

// View renders the dashboard.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("  CAD-Sentinel Security Dashboard"))
	b.WriteString("\n\n")

	status := statusError.Render("● OFFLINE")
	if m.healthy {
		status = statusOK.Render("● ONLINE")
	}
	b.WriteString(fmt.Sprintf("  Service: %s   Range: %s\n\n", status, subtitleStyle.Render(string(m.rng))))

	if m.loading && m.metrics == nil {
		b.WriteString(mutedStyle.Render("  Loading..."))
		return b.String()
	}

	if m.err != nil {
		b.WriteString(statusError.Render(fmt.Sprintf("  Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	if m.metrics != nil {
		b.WriteString(m.renderCards())
		b.WriteString("\n\n")
		b.WriteString(m.renderSeverities())
		b.WriteString("\n")
		b.WriteString(m.renderTopTypes())
		b.WriteString("\n")
		b.WriteString(m.renderRecent())
	}

	if !m.lastUpdate.IsZero() {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  Last updated: %s", m.lastUpdate.Format("15:04:05"))))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(" [d/w/m] Range  [r] Refresh  [q] Quit "))

	return b.String()
}

func (m *Model) renderCards() string {
	mt := m.metrics
	cards := []string{
		renderMetricCard("Total Events", formatCount(mt.TotalEvents)),
		renderMetricCard("Unresolved Critical", formatCount(mt.UnresolvedCritical)),
		renderMetricCard("Mean Resolution", fmt.Sprintf("%.1fm", mt.MeanResolutionMinutes)),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func renderMetricCard(label, value string) string {
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mutedColor).
		Padding(0, 2).
		Width(22).
		Align(lipgloss.Center)

	return card.Render(fmt.Sprintf("%s\n%s",
		metricValue.Render(value),
		metricLabel.Render(label),
	))
}

func (m *Model) renderSeverities() string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("  By Severity"))
	b.WriteString("\n")

	for _, sev := range schema.Severities() {
		count := m.metrics.EventsBySeverity[sev]
		style, ok := severityStyles[string(sev)]
		if !ok {
			style = mutedStyle
		}
		b.WriteString(fmt.Sprintf("  %s %s\n",
			style.Render(fmt.Sprintf("%-10s", sev)),
			rowStyle.Render(formatCount(count)),
		))
	}
	return b.String()
}

func (m *Model) renderTopTypes() string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("  Top Event Types"))
	b.WriteString("\n")

	if len(m.metrics.TopEventTypes) == 0 {
		b.WriteString(mutedStyle.Render("  (none)"))
		b.WriteString("\n")
		return b.String()
	}

	for _, tc := range m.metrics.TopEventTypes {
		b.WriteString(rowStyle.Render(fmt.Sprintf("  %-40s %s", tc.EventType, formatCount(tc.Count))))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderRecent() string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("  Recent Events"))
	b.WriteString("\n")

	events := m.metrics.RecentEvents
	if max := 8; len(events) > max {
		events = events[:max]
	}
	if len(events) == 0 {
		b.WriteString(mutedStyle.Render("  (none)"))
		b.WriteString("\n")
		return b.String()
	}

	for _, ev := range events {
		style, ok := severityStyles[string(ev.Severity)]
		if !ok {
			style = mutedStyle
		}
		resolved := " "
		if ev.IsResolved() {
			resolved = statusOK.Render("✓")
		}
		b.WriteString(fmt.Sprintf("  %s %s %s %s\n",
			mutedStyle.Render(ev.CreatedAt.Local().Format("15:04:05")),
			style.Render(fmt.Sprintf("%-8s", ev.Severity)),
			resolved,
			rowStyle.Render(ev.EventType),
		))
	}
	return b.String()
}

func formatCount(n uint64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

// Run starts the dashboard.
func Run(baseURL string) error {
	p := tea.NewProgram(New(baseURL), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

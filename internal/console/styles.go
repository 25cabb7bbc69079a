package console

import "github.com/charmbracelet/lipgloss"

var (
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	keyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
)

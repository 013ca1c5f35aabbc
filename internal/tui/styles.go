package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/larksync/larksync-console/internal/synclog"
)

var (
	red       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	yellow    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cyan      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	lightGray = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))

	titleStyle     = cyan.Bold(true)
	helpStyle      = gray
	errorStyle     = red
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("237"))
	activeTabStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Underline(true).Padding(0, 1)
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("248")).Padding(0, 1)
	dialogStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("11")).Padding(0, 2)
)

// toneStyle maps a label tone to a colour.
func toneStyle(t synclog.Tone) lipgloss.Style {
	switch t {
	case synclog.ToneSuccess:
		return green
	case synclog.ToneInfo:
		return cyan
	case synclog.ToneWarning:
		return yellow
	case synclog.ToneDanger:
		return red
	}
	return lightGray
}

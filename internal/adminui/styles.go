package adminui

import (
	"dtadmin/internal/actions"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	tabStyle     = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("246"))
	activeTab    = tabStyle.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Bold(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle   = lipgloss.NewStyle().Width(22).Foreground(lipgloss.Color("246"))
	dialogStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(1, 2)
	counterStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 2).Width(26)
)

func toastStyle(l actions.Level) lipgloss.Style {
	switch l {
	case actions.LevelSuccess:
		return okStyle
	case actions.LevelError:
		return errStyle
	default:
		return infoStyle
	}
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	return s
}

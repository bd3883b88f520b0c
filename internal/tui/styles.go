package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	status    lipgloss.Style
	muted     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	system    lipgloss.Style
	err       lipgloss.Style
	help      lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		status:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		system:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245")),
		err:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		help:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

package cmd

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")). // Pink
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // Cyan
			MarginLeft(2)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")). // Red
			MarginTop(1)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")). // Orange
			MarginLeft(2)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")). // Grey
			MarginLeft(2)

	checkStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")). // Green
			MarginTop(1)
)

// Package ui holds the terminal presentation layer: lipgloss styles shared
// by the commands and a turn sink that renders streamed replies.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	PromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	ActiveMarkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	RoleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Bold(true)
)

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Transcript entry styles
var (
	StyleUser = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	StyleAssistant = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	StyleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	StyleTool = lipgloss.NewStyle().
			Foreground(lipgloss.Color("136"))

	StyleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("red")).
			Bold(true)
)

// Status styles
var (
	StyleStatusConnected = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusDisconnected = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	StyleStatusBusy = lipgloss.NewStyle().
			Foreground(lipgloss.Color("yellow")).
			Bold(true)
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

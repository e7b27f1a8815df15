// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primary   = lipgloss.Color("#7C3AED") // Purple
	secondary = lipgloss.Color("#10B981") // Green
	muted     = lipgloss.Color("#6B7280") // Gray
	warning   = lipgloss.Color("#F59E0B") // Amber
	danger    = lipgloss.Color("#EF4444") // Red
	white     = lipgloss.Color("#FFFFFF")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(muted).
			Italic(true)

	fieldStyle = lipgloss.NewStyle().
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Background(primary).
			Foreground(white).
			Bold(true)

	resolvedStyle = lipgloss.NewStyle().
			Foreground(secondary)

	choiceStyle = lipgloss.NewStyle().
			Foreground(warning).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(muted)

	successStyle = lipgloss.NewStyle().
			Foreground(secondary).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(danger).
			Bold(true)
)

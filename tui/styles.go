// Package tui renders the live transfer display.
//
// The display is opt-out (--no-tui) and read-only: it consumes the same
// progress snapshots the plain renderer would, and nothing in the transfer
// path depends on it.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for display components.
var (
	// TitleStyle for the run header.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// StreamStyle for per-stream rows.
	StreamStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// DoneStyle for streams with nothing left to send.
	DoneStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// ActiveStyle for streams mid-transfer.
	ActiveStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// HelpStyle for the footer hint.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

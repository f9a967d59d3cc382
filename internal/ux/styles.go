package ux

import (
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used for text output.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Box     lipgloss.Style
}

// NewStyles returns colored styles, or unstyled ones when noColor is set.
func NewStyles(noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{
			Title:   plain,
			Label:   plain,
			Success: plain,
			Warning: plain,
			Error:   plain,
			Muted:   plain,
			Box:     plain,
		}
	}
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")),
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
	}
}

// Status picks the style for a health or session status word.
func (s Styles) Status(status string) lipgloss.Style {
	switch status {
	case "healthy", "authenticated", "UP", "APPROVED":
		return s.Success
	case "degraded", "loading", "SUBMITTED", "UNDER_REVIEW":
		return s.Warning
	case "unhealthy", "failed", "DOWN", "REJECTED":
		return s.Error
	default:
		return s.Muted
	}
}

// NewTable returns a tabwriter for aligned columns. Call Flush when done.
func NewTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
}

// Package theme provides the terminal styles used by the mcpstream CLI.
package theme

import (
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/Bigsy/mcpstream/internal/mcp"
)

var (
	primary = lipgloss.AdaptiveColor{Light: "#EA580C", Dark: "#FB923C"} // Orange
	success = lipgloss.AdaptiveColor{Light: "#0F7B0F", Dark: "#9ECE6A"}
	warn    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	danger  = lipgloss.AdaptiveColor{Light: "#B00020", Dark: "#F7768E"}
	border  = lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#3B4261"}
	muted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A9B1D6"}
	faint   = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#565F89"}
)

// Theme holds the styles used when printing to the terminal.
type Theme struct {
	Muted lipgloss.Style
	Faint lipgloss.Style
	Title lipgloss.Style

	Primary lipgloss.Style
	Success lipgloss.Style
	Warn    lipgloss.Style
	Danger  lipgloss.Style

	Pane lipgloss.Style
}

// New creates the default theme (orange accent).
func New() Theme {
	return Theme{
		Muted: lipgloss.NewStyle().Foreground(muted),
		Faint: lipgloss.NewStyle().Foreground(faint),
		Title: lipgloss.NewStyle().Bold(true),

		Primary: lipgloss.NewStyle().Foreground(primary),
		Success: lipgloss.NewStyle().Foreground(success),
		Warn:    lipgloss.NewStyle().Foreground(warn),
		Danger:  lipgloss.NewStyle().Foreground(danger),

		Pane: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
	}
}

// Element styles one streamed tool element by kind. Results are unstyled.
func (t Theme) Element(e mcp.Element) string {
	switch e.Kind {
	case mcp.ElementProgress:
		return t.Muted.Render(e.Text)
	case mcp.ElementResult:
		return e.Text
	case mcp.ElementNoResult:
		return t.Warn.Render(e.Text)
	default:
		return t.Danger.Render(e.Text)
	}
}

// ToolHeader renders the "tool name" line printed before a call's output.
func (t Theme) ToolHeader(name string) string {
	return t.Primary.Render("▸ ") + t.Title.Render(name)
}

// RenderPane renders content inside a rounded border titled with title.
func (t Theme) RenderPane(title, content string) string {
	header := t.Title.Foreground(primary).Render(title)
	return t.Pane.Render(header + "\n" + strings.TrimRight(content, "\n"))
}

// Form returns the huh theme used for interactive prompts.
func Form() *huh.Theme {
	formTheme := huh.ThemeBase16()
	formTheme.Focused.Title = formTheme.Focused.Title.Foreground(primary)
	formTheme.Blurred.Title = formTheme.Blurred.Title.Foreground(primary)
	return formTheme
}

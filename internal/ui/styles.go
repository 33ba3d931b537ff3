// Package ui renders CLI output with lipgloss, honoring NO_COLOR and
// CLICOLOR through termenv.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	colorPass   = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#8BC34A"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFC107"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E57373"}
	colorAccent = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#64B5F6"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

	passStyle   = lipgloss.NewStyle().Foreground(colorPass)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	failStyle   = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(colorAccent)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

func init() {
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}

// SetPlain turns styling off, e.g. for --no-color or tests.
func SetPlain(plain bool) {
	if plain {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}

// RenderPass renders success text.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders warning text.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail renders error text.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent renders headings and highlights.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted renders secondary text.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderBold renders emphasized text.
func RenderBold(s string) string { return boldStyle.Render(s) }

// RenderStatus colors a task status.
func RenderStatus(status string) string {
	switch status {
	case "done":
		return RenderPass(status)
	case "in_progress", "review":
		return RenderAccent(status)
	default:
		return RenderMuted(status)
	}
}

// RenderPriority colors a priority.
func RenderPriority(priority string) string {
	switch priority {
	case "urgent":
		return RenderFail(priority)
	case "high":
		return RenderWarn(priority)
	default:
		return RenderMuted(priority)
	}
}

// Package tui provides terminal user interface components.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for prompts and spinners.
type Theme struct {
	Primary lipgloss.AdaptiveColor
	Success lipgloss.AdaptiveColor
	Error   lipgloss.AdaptiveColor
	Muted   lipgloss.AdaptiveColor
}

// DefaultTheme returns the default staybook theme.
func DefaultTheme() Theme {
	return Theme{
		Primary: lipgloss.AdaptiveColor{Light: "#0b6e4f", Dark: "#5fd3a5"},
		Success: lipgloss.AdaptiveColor{Light: "#1e8e3e", Dark: "#81c995"},
		Error:   lipgloss.AdaptiveColor{Light: "#d93025", Dark: "#f28b82"},
		Muted:   lipgloss.AdaptiveColor{Light: "#80868b", Dark: "#6e7681"},
	}
}

// ResolveTheme honors NO_COLOR, falling back to the default theme.
func ResolveTheme() Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		empty := lipgloss.AdaptiveColor{}
		return Theme{Primary: empty, Success: empty, Error: empty, Muted: empty}
	}
	return DefaultTheme()
}

// Styles holds the styled components used by the spinner and notes.
type Styles struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Spinner lipgloss.Style
}

// NewStyles creates Styles from the resolved theme.
func NewStyles() *Styles {
	return NewStylesWithTheme(ResolveTheme())
}

// NewStylesWithTheme creates Styles with a custom theme.
func NewStylesWithTheme(theme Theme) *Styles {
	return &Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		Success: lipgloss.NewStyle().Foreground(theme.Success),
		Error:   lipgloss.NewStyle().Foreground(theme.Error),
		Spinner: lipgloss.NewStyle().Foreground(theme.Primary),
	}
}

// RenderStatus renders a status message with appropriate styling.
func (s *Styles) RenderStatus(ok bool, message string) string {
	if ok {
		return s.Success.Render("✓ " + message)
	}
	return s.Error.Render("✗ " + message)
}

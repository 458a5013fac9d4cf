package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color palette shared by every command and the interactive browser.
const (
	ColorPrimary   = lipgloss.Color("#7D56F4")
	ColorMuted     = lipgloss.Color("#666666")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#FF6B6B")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorHighlight = lipgloss.Color("#87CEEB")
	ColorFunc      = lipgloss.Color("#98FB98")
)

// styles are bound to the renderer of one output stream so that output
// written to a pipe or file carries no escape sequences.
type styles struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Type      lipgloss.Style
	Func      lipgloss.Style
	Module    lipgloss.Style
	Selected  lipgloss.Style
	Help      lipgloss.Style
	Enumerate lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	r := lipgloss.NewRenderer(w)
	return &styles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(ColorPrimary).
			Padding(0, 1),
		Subtitle: r.NewStyle().Foreground(ColorMuted),
		Success:  r.NewStyle().Foreground(ColorSuccess),
		Error:    r.NewStyle().Bold(true).Foreground(ColorError),
		Warning:  r.NewStyle().Foreground(ColorWarning),
		Type:     r.NewStyle().Bold(true).Foreground(ColorPrimary),
		Func:     r.NewStyle().Foreground(ColorFunc),
		Module:   r.NewStyle().Foreground(ColorHighlight),
		Selected: r.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(ColorPrimary),
		Help:      r.NewStyle().Foreground(ColorMuted),
		Enumerate: r.NewStyle().Foreground(ColorMuted).MarginRight(1),
	}
}

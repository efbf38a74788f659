package cmd

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#4fc1ff")
	okC    = lipgloss.Color("#22c55e")
	warnC  = lipgloss.Color("#f59e0b")
	errC   = lipgloss.Color("#ef4444")
	muted  = lipgloss.Color("#64748b")
	text   = lipgloss.Color("#e2e8f0")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Foreground(muted).Width(10)
	valueStyle = lipgloss.NewStyle().Foreground(text)
	cellStyle  = lipgloss.NewStyle().PaddingRight(2)
)

func green(s string) string { return lipgloss.NewStyle().Foreground(okC).Render(s) }
func gold(s string) string  { return lipgloss.NewStyle().Foreground(warnC).Render(s) }
func red(s string) string   { return lipgloss.NewStyle().Foreground(errC).Render(s) }
func dim(s string) string   { return lipgloss.NewStyle().Foreground(muted).Render(s) }

func field(label, value string) string {
	return labelStyle.Render(strings.ToUpper(label)) + valueStyle.Render(value)
}

// renderMarkdown falls back to the raw text when rendering fails.
func renderMarkdown(md string, width int) string {
	style := glamour.WithAutoStyle()
	if noColor {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

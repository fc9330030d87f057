package report

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	pass    lipgloss.Style
	absent  lipgloss.Style
	fail    lipgloss.Style
	skipped lipgloss.Style
	feature lipgloss.Style
	detail  lipgloss.Style
	section lipgloss.Style
	empty   lipgloss.Style
	summary lipgloss.Style
	verdict lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		pass:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		absent:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		fail:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		skipped: lipgloss.NewStyle().Faint(true),
		feature: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		detail:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		section: lipgloss.NewStyle().MarginTop(1),
		empty:   lipgloss.NewStyle().Faint(true),
		summary: lipgloss.NewStyle().Bold(true).MarginTop(1),
		verdict: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

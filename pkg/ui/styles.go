// Package ui renders CLI output for the local tester: styled result
// lines, batch summaries and the startup banner.
package ui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	Primary   = lipgloss.Color("#E94560")
	Secondary = lipgloss.Color("#00D4AA")

	// Severity colors
	Critical = lipgloss.Color("#FF0000")
	High     = lipgloss.Color("#FF6B6B")
	Medium   = lipgloss.Color("#FFD93D")
	Low      = lipgloss.Color("#6BCB77")
	Info     = lipgloss.Color("#4D96FF")

	// Outcome colors: a successful attack is the bad outcome here.
	AttackSuccess = lipgloss.Color("#FF3838")
	AttackFailed  = lipgloss.Color("#00D26A")
	Errored       = lipgloss.Color("#FFB800")
	Muted         = lipgloss.Color("#6B7280")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	CategoryStyle = lipgloss.NewStyle().
			Foreground(Secondary)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	LabelStyle = lipgloss.NewStyle().
			Foreground(Muted)
)

// SeverityStyle returns the style for a severity name.
func SeverityStyle(severity string) lipgloss.Style {
	switch severity {
	case "critical":
		return lipgloss.NewStyle().Foreground(Critical).Bold(true)
	case "high":
		return lipgloss.NewStyle().Foreground(High)
	case "medium":
		return lipgloss.NewStyle().Foreground(Medium)
	case "low":
		return lipgloss.NewStyle().Foreground(Low)
	default:
		return lipgloss.NewStyle().Foreground(Info)
	}
}

// OutcomeStyle returns the style for a result outcome.
func OutcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "success":
		return lipgloss.NewStyle().Foreground(AttackSuccess).Bold(true)
	case "error":
		return lipgloss.NewStyle().Foreground(Errored)
	default:
		return lipgloss.NewStyle().Foreground(AttackFailed)
	}
}

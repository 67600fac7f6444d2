package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/promptstrike/promptstrike/pkg/defaults"
	"github.com/promptstrike/promptstrike/pkg/finding"
	"github.com/promptstrike/promptstrike/pkg/local"
)

// Banner returns the startup banner.
func Banner() string {
	name := BannerStyle.Render(strings.ToUpper(defaults.ToolName))
	version := VersionStyle.Render("v" + defaults.Version)
	tagline := SubtitleStyle.Render("adversarial testing for AI systems")
	return fmt.Sprintf("%s %s\n%s\n", name, version, tagline)
}

// FormatResult renders one payload result as a single line:
// [severity] [category] [outcome] name [confidence] [latency].
func FormatResult(r local.Result) string {
	outcome := "failed"
	switch {
	case r.Err != nil:
		outcome = "error"
	case r.Success:
		outcome = "success"
	}

	parts := []string{
		bracket(SeverityStyle(r.Payload.Severity.String()).Render(r.Payload.Severity.String())),
		bracket(CategoryStyle.Render(r.Payload.Category.String())),
		bracket(OutcomeStyle(outcome).Render(outcome)),
		ValueStyle.Render(r.Payload.Name),
	}
	if r.Err != nil {
		parts = append(parts, SubtitleStyle.Render(r.Err.Error()))
	} else {
		parts = append(parts,
			bracket(LabelStyle.Render(fmt.Sprintf("conf %.2f", r.Confidence))),
			bracket(LabelStyle.Render(r.Duration.Round(time.Millisecond).String())))
	}
	return strings.Join(parts, " ")
}

// FormatSummary renders the batch summary table.
func FormatSummary(s local.Summary) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(" Summary "))
	b.WriteString("\n\n")

	rows := []struct {
		label string
		value string
	}{
		{"Payloads", fmt.Sprintf("%d", s.Total)},
		{"Successful attacks", OutcomeStyle(outcomeFor(s.Successful)).Render(fmt.Sprintf("%d", s.Successful))},
		{"Withstood", fmt.Sprintf("%d", s.Failed)},
		{"Errors", fmt.Sprintf("%d", s.Errors)},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate*100)},
		{"Avg confidence", fmt.Sprintf("%.2f", s.AvgConfidence)},
	}
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("  %s %s\n", LabelStyle.Render(padRight(row.label, 20)), row.value))
	}

	if len(s.ByCategory) > 0 {
		b.WriteString("\n")
		b.WriteString(SubtitleStyle.Render("by category"))
		b.WriteString("\n")
		for _, cat := range sortedCategories(s.ByCategory) {
			stats := s.ByCategory[cat]
			b.WriteString(fmt.Sprintf("  %s %d/%d successful\n",
				LabelStyle.Render(padRight(cat.String(), 20)), stats.Successful, stats.Total))
		}
	}
	return b.String()
}

func sortedCategories(m map[finding.Category]local.CategoryStats) []finding.Category {
	out := make([]finding.Category, 0, len(m))
	for cat := range m {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func outcomeFor(successful int) string {
	if successful > 0 {
		return "success"
	}
	return "failed"
}

func bracket(s string) string {
	return BracketStyle.Render("[") + s + BracketStyle.Render("]")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

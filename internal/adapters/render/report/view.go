package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/six502/emuctl/internal/domain"
)

type RenderOptions struct {
	Now     time.Time
	Verbose bool
}

func renderView(report *domain.Report, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Emulator Service Verification"),
		s.header.Render(headerLine(report, opts)),
	}

	if report == nil || len(report.Entries) == 0 {
		lines = append(lines, s.empty.Render("No checks were attempted."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, group := range groupEntries(report.Entries) {
		lines = append(lines, s.section.Render(renderGroup(group, opts, s)))
	}

	lines = append(lines, s.summary.Render(summaryLine(report, s)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func headerLine(report *domain.Report, opts RenderOptions) string {
	if report == nil {
		return "target: unknown"
	}

	target := report.BaseURL
	if target == "" {
		target = "unknown"
	}

	if report.StartedAt.IsZero() {
		return fmt.Sprintf("target: %s", target)
	}

	return fmt.Sprintf("target: %s  started: %s", target, report.StartedAt.Format(time.RFC3339))
}

type entryGroup struct {
	name    string
	entries []domain.ReportEntry
}

// groupEntries splits entries on their feature prefix (verify/, probe/,
// stress/) while preserving first-seen order inside and across groups.
func groupEntries(entries []domain.ReportEntry) []entryGroup {
	groups := make([]entryGroup, 0, 4)
	index := map[string]int{}

	for _, entry := range entries {
		name := groupName(entry.Feature)
		pos, ok := index[name]
		if !ok {
			pos = len(groups)
			index[name] = pos
			groups = append(groups, entryGroup{name: name})
		}
		groups[pos].entries = append(groups[pos].entries, entry)
	}

	return groups
}

func groupName(feature string) string {
	if i := strings.IndexByte(feature, '/'); i > 0 {
		return feature[:i]
	}
	return feature
}

func renderGroup(group entryGroup, opts RenderOptions, s styles) string {
	parts := []string{s.feature.Render(group.name)}

	for _, entry := range group.entries {
		parts = append(parts, entryLine(entry, opts, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func entryLine(entry domain.ReportEntry, opts RenderOptions, s styles) string {
	marker := verdictMarker(entry, s)
	name := strings.TrimPrefix(entry.Feature, groupName(entry.Feature)+"/")

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		"  ",
		marker,
		" ",
		s.detail.Render(name),
	)

	if detail := entryDetail(entry, opts); detail != "" {
		line += " " + s.verdict.Render(detail)
	}

	return line
}

// entryDetail always surfaces failure details; passing detail only shows
// up in verbose mode to keep the happy path scannable.
func entryDetail(entry domain.ReportEntry, opts RenderOptions) string {
	if entry.Detail == "" {
		return ""
	}
	if entry.Verdict == domain.VerdictFail || opts.Verbose {
		return fmt.Sprintf("(%s)", entry.Detail)
	}
	return ""
}

func verdictMarker(entry domain.ReportEntry, s styles) string {
	if !entry.Attempted {
		return s.skipped.Render("skip  ")
	}

	switch entry.Verdict {
	case domain.VerdictPass:
		return s.pass.Render("ok    ")
	case domain.VerdictExpectedAbsent:
		return s.absent.Render("absent")
	case domain.VerdictFail:
		return s.fail.Render("FAIL  ")
	default:
		return s.skipped.Render("?     ")
	}
}

func summaryLine(report *domain.Report, s styles) string {
	pass, absent, fail := report.Counts()

	verdict := s.pass.Render("PASS")
	if fail > 0 {
		verdict = s.fail.Render("FAIL")
	}

	return fmt.Sprintf("%s  pass=%d expected-absent=%d fail=%d", verdict, pass, absent, fail)
}

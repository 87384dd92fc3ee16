package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sofmeright/buildmatrix/src/build"
)

// ANSI sequences for terminal output.
const (
	ansiReset   = "\033[0m"
	ansiBold    = "\033[1m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	ansiGray    = "\033[90m"
	ansiDimCyan = "\033[2;36m"
)

func paint(text, ansi string, color bool) string {
	if !color {
		return text
	}
	return ansi + text + ansiReset
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}

// ResultsTable renders one row per target inside a section. Built targets
// with a timed step get a second line naming their slowest step.
func ResultsTable(sec *Section, results []build.BuildResult, color bool) {
	width := len("target")
	for _, r := range results {
		width = max(width, len(r.Target))
	}

	sec.Row("%-*s  %-2s %8s  %s", width, "target", "", "time", "image")
	for _, r := range results {
		sec.Row("%-*s  %s  %8s  %s", width, r.Target, OutcomeIcon(r.Outcome, color), FormatDuration(r.Duration), resultDetail(r, color))
		if slow, ok := r.Progress.Slowest(); ok && r.Outcome == build.Succeeded {
			sec.Row("%-*s  %s", width+13, "", Dimmed(fmt.Sprintf("slowest %s %s", FormatDuration(slow.Duration), slow), color))
		}
	}
}

func resultDetail(r build.BuildResult, color bool) string {
	switch {
	case r.Outcome != build.Succeeded && r.Reason != "":
		return r.Reason
	case r.Reason == build.ReasonDryRun:
		note := "(dry run)"
		if len(r.BaseImages) > 0 {
			note = fmt.Sprintf("(dry run, from %s)", strings.Join(r.BaseImages, ", "))
		}
		return r.Reference + " " + Dimmed(note, color)
	case len(r.Progress.Steps) > 0:
		return fmt.Sprintf("%s %s", r.Reference, Dimmed(fmt.Sprintf("(%d/%d cached)", r.Progress.Cached(), len(r.Progress.Steps)), color))
	}
	return r.Reference
}

// SummaryLine returns "N targets: X succeeded, Y failed, Z skipped",
// optionally colored.
func SummaryLine(s build.Summary, color bool) string {
	failed := fmt.Sprintf("%d failed", s.Failed)
	skipped := fmt.Sprintf("%d skipped", s.Skipped)
	if s.Failed > 0 {
		failed = paint(failed, ansiRed, color)
	}
	if s.Skipped > 0 {
		skipped = paint(skipped, ansiYellow, color)
	}
	total := paint(fmt.Sprint(s.Total), ansiBold, color)

	parts := []string{fmt.Sprintf("%d succeeded", s.Succeeded), failed, skipped}
	line := fmt.Sprintf("%s targets: %s", total, strings.Join(parts, ", "))
	if s.Cancelled {
		line += " (cancelled)"
	}
	return line
}

// BuildSummary writes the full results section: the table, then the totals.
func BuildSummary(w io.Writer, results []build.BuildResult, s build.Summary, elapsed time.Duration, color bool) {
	sec := NewSection(w, "Build", elapsed, color)
	ResultsTable(sec, results, color)
	sec.Separator()
	sec.Row("%s", SummaryLine(s, color))

	overall := build.Succeeded
	if !s.OK() {
		overall = build.Failed
	}
	sec.Row("%-12s%10s  %s", "total", FormatDuration(elapsed), OutcomeIcon(overall, color))
	sec.Close()
}

package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sofmeright/buildmatrix/src/build"
)

const frameWidth = 61

// Section is a titled block framed with box-drawing rules:
//
//	── Build ─────────────────────── 12.3s ──
//	│ row
//	├──────────────────────────────────────
//	└──────────────────────────────────────
type Section struct {
	w     io.Writer
	color bool
}

// NewSection writes the section title rule and returns the section. A
// non-zero elapsed is printed at the right end of the rule.
func NewSection(w io.Writer, title string, elapsed time.Duration, color bool) *Section {
	left := "── " + title + " "
	right := "──"
	if elapsed > 0 {
		right = " " + FormatDuration(elapsed) + " ──"
	}
	fill := max(frameWidth+4-len(left)-len(right), 1)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "    %s\n", paint(left+strings.Repeat("─", fill)+right, ansiDimCyan, color))
	return &Section{w: w, color: color}
}

// Row writes one framed line.
func (s *Section) Row(format string, args ...any) {
	fmt.Fprintf(s.w, "    │ %s\n", fmt.Sprintf(format, args...))
}

// Separator writes a divider inside the frame.
func (s *Section) Separator() { s.rule("├") }

// Close writes the bottom of the frame.
func (s *Section) Close() { s.rule("└") }

func (s *Section) rule(corner string) {
	fmt.Fprintf(s.w, "    %s%s\n", corner, strings.Repeat("─", frameWidth))
}

var outcomeIcons = map[build.Outcome]struct{ glyph, ansi string }{
	build.Succeeded: {"✓", ansiGreen},
	build.Failed:    {"✗", ansiRed},
	build.Skipped:   {"⊘", ansiYellow},
}

// OutcomeIcon returns the marker for an outcome. Unknown outcomes render
// like skipped ones.
func OutcomeIcon(o build.Outcome, color bool) string {
	icon, ok := outcomeIcons[o]
	if !ok {
		icon = outcomeIcons[build.Skipped]
	}
	return paint(icon.glyph, icon.ansi, color)
}

// Dimmed greys text out when color is enabled.
func Dimmed(text string, color bool) string {
	return paint(text, ansiGray, color)
}

// KV is one entry of a run header.
type KV struct {
	Key   string
	Value string
}

// RunHeader prints run settings as an aligned key/value list, two entries
// per line, sized to the longest key and value.
func RunHeader(w io.Writer, kv []KV) {
	if len(kv) == 0 {
		return
	}
	keyW, valW := 0, 0
	for _, e := range kv {
		keyW = max(keyW, len(e.Key))
		valW = max(valW, len(e.Value))
	}

	fmt.Fprintln(w)
	for i := 0; i < len(kv); i += 2 {
		line := fmt.Sprintf("%-*s  %-*s", keyW, kv[i].Key, valW, kv[i].Value)
		if i+1 < len(kv) {
			line += fmt.Sprintf("    %-*s  %s", keyW, kv[i+1].Key, kv[i+1].Value)
		}
		fmt.Fprintf(w, "    %s\n", strings.TrimRight(line, " "))
	}
}

// FormatDuration renders build timings: <1ms, 250ms, 1.5s, 2m3.0s.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "<1ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := d / time.Minute
	return fmt.Sprintf("%dm%.1fs", int64(m), (d - m*time.Minute).Seconds())
}

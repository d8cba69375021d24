package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ramkansal/phonegrabber/pkg/plugin"
)

// TextWriter renders a summary for a terminal: one phone per line followed by
// a short run report.
type TextWriter struct {
	w       io.Writer
	noColor bool
}

// NewTextWriter creates a text writer. Colors are ANSI escape codes and can
// be turned off with noColor.
func NewTextWriter(w io.Writer, noColor bool) *TextWriter {
	return &TextWriter{w: w, noColor: noColor}
}

func (t *TextWriter) Name() string { return "text" }

func (t *TextWriter) Write(summary *plugin.Summary) error {
	var b strings.Builder

	phones := summary.Phones.Sorted()
	for _, p := range phones {
		b.WriteString(p + "\n")
	}

	b.WriteString("\n  " + strings.Repeat("─", 50) + "\n")
	if len(phones) == 0 {
		b.WriteString(fmt.Sprintf("  %s No phones found\n", t.clr("yellow", "!")))
	} else {
		b.WriteString(fmt.Sprintf("  %s All done\n", t.clr("green", "✓")))
	}
	b.WriteString(fmt.Sprintf("    Pages:  %s fetched, %s errors\n",
		t.clr("cyan", fmt.Sprintf("%d", summary.PagesFetched)),
		t.clr("red", fmt.Sprintf("%d", summary.PagesFailed)),
	))
	b.WriteString(fmt.Sprintf("    Phones: %s found in %s\n",
		t.clr("yellow", fmt.Sprintf("%d", len(phones))),
		fmtDur(summary.Duration),
	))
	if len(summary.Rejected) > 0 {
		b.WriteString(fmt.Sprintf("    Skipped: %s\n", t.clr("dim", strings.Join(summary.Rejected, ", "))))
	}

	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TextWriter) clr(color, text string) string {
	if t.noColor {
		return text
	}
	codes := map[string]string{
		"red":    "\033[31m",
		"green":  "\033[32m",
		"yellow": "\033[33m",
		"cyan":   "\033[36m",
		"dim":    "\033[2m",
		"reset":  "\033[0m",
	}
	c, ok := codes[color]
	if !ok {
		return text
	}
	return c + text + codes["reset"]
}

func fmtDur(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}

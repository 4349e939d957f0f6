package tailor

import (
	"html"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffLine is one line of a line-level comparison.
type DiffLine struct {
	Op   byte // '-' removed, '+' added, ' ' unchanged
	Text string
}

// Diff compares two texts line by line.
func Diff(original, tailored string) []DiffLine {
	a := splitTrimmedLines(original)
	b := splitTrimmedLines(tailored)

	var out []DiffLine
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		switch op.Tag {
		case 'e':
			for _, l := range a[op.I1:op.I2] {
				out = append(out, DiffLine{Op: ' ', Text: l})
			}
		case 'd':
			for _, l := range a[op.I1:op.I2] {
				out = append(out, DiffLine{Op: '-', Text: l})
			}
		case 'i':
			for _, l := range b[op.J1:op.J2] {
				out = append(out, DiffLine{Op: '+', Text: l})
			}
		case 'r':
			for _, l := range a[op.I1:op.I2] {
				out = append(out, DiffLine{Op: '-', Text: l})
			}
			for _, l := range b[op.J1:op.J2] {
				out = append(out, DiffLine{Op: '+', Text: l})
			}
		}
	}
	return out
}

// DiffHTML renders Diff as highlighted HTML blocks.
func DiffHTML(original, tailored string) string {
	var b strings.Builder
	for _, line := range Diff(original, tailored) {
		text := html.EscapeString(line.Text)
		switch line.Op {
		case '-':
			b.WriteString("<div style='background-color:#ffe6e6;'>❌ " + text + "</div>")
		case '+':
			b.WriteString("<div style='background-color:#e6ffe6;'>✅ " + text + "</div>")
		default:
			b.WriteString("<div style='color:#666;'>" + text + "</div>")
		}
	}
	return b.String()
}

func splitTrimmedLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

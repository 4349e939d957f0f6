package tailor

import (
	"strings"
	"testing"
)

func TestDiffMarksChangedLines(t *testing.T) {
	original := "Jane Doe\nBuilt APIs\nSkills: Go"
	tailored := "Jane Doe\nBuilt Go APIs on Kubernetes\nSkills: Go"

	lines := Diff(original, tailored)
	var ops strings.Builder
	for _, l := range lines {
		ops.WriteByte(l.Op)
	}
	if ops.String() != " -+ " {
		t.Fatalf("unexpected ops %q (%+v)", ops.String(), lines)
	}
}

func TestDiffHTMLEscapesAndHighlights(t *testing.T) {
	out := DiffHTML("a <b>\nsame", "same\nnew & shiny")

	if !strings.Contains(out, "<div style='background-color:#ffe6e6;'>❌ a &lt;b&gt;</div>") {
		t.Fatalf("missing removed line: %s", out)
	}
	if !strings.Contains(out, "<div style='background-color:#e6ffe6;'>✅ new &amp; shiny</div>") {
		t.Fatalf("missing added line: %s", out)
	}
	if !strings.Contains(out, "<div style='color:#666;'>same</div>") {
		t.Fatalf("missing unchanged line: %s", out)
	}
}

func TestDiffEmptyInputs(t *testing.T) {
	if got := DiffHTML("", ""); got != "" {
		t.Fatalf("expected empty html, got %q", got)
	}
}

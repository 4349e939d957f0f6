package tailor

import (
	"strings"
	"testing"
)

func TestBuildPromptEmbedsInputsAndHeadersOnce(t *testing.T) {
	resume := "Jane Doe\nSkills: Go, SQL\n  indented line with {braces} and \"quotes\""
	job := "Senior Go Engineer\nMust know Docker & Kubernetes."

	prompt := BuildPrompt(resume, job)

	if !strings.Contains(prompt, resume) {
		t.Fatalf("prompt does not embed resume verbatim")
	}
	if !strings.Contains(prompt, job) {
		t.Fatalf("prompt does not embed job description verbatim")
	}
	for _, header := range []string{HeaderScore, HeaderKeywords, HeaderTailoredCV, HeaderCoverLetter} {
		if got := strings.Count(prompt, header); got != 1 {
			t.Fatalf("expected %q exactly once, got %d", header, got)
		}
	}
}

func TestBuildStructuredPromptNamesAllKeys(t *testing.T) {
	prompt := BuildStructuredPrompt("cv text", "job text")
	for _, key := range requiredKeys {
		if !strings.Contains(prompt, `"`+key+`"`) {
			t.Fatalf("expected key %q in structured prompt", key)
		}
	}
	if !strings.Contains(prompt, "cv text") || !strings.Contains(prompt, "job text") {
		t.Fatalf("structured prompt must embed inputs")
	}
}

func TestPromptSelectsByFormat(t *testing.T) {
	if got := Prompt(FormatHeaders, "a", "b"); got != BuildPrompt("a", "b") {
		t.Fatalf("headers format should use BuildPrompt")
	}
	if got := Prompt(FormatJSON, "a", "b"); got != BuildStructuredPrompt("a", "b") {
		t.Fatalf("json format should use BuildStructuredPrompt")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" HEADERS "); err != nil || f != FormatHeaders {
		t.Fatalf("unexpected %v %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Fatalf("unexpected %v %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

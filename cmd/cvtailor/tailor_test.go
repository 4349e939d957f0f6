package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"cv-tailor/internal/llm"
	"cv-tailor/internal/tailor"
	"cv-tailor/internal/tailorings"
)

func TestReadJob(t *testing.T) {
	dir := t.TempDir()
	jobPath := filepath.Join(dir, "job.txt")
	if err := os.WriteFile(jobPath, []byte("Go engineer"), 0o600); err != nil {
		t.Fatalf("write job: %v", err)
	}

	job, url, err := readJob(jobPath, "")
	if err != nil || job != "Go engineer" || url != "" {
		t.Fatalf("expected file contents, got job=%q url=%q err=%v", job, url, err)
	}

	job, url, err = readJob("", " https://example.com/job ")
	if err != nil || job != "" || url != "https://example.com/job" {
		t.Fatalf("expected url only, got job=%q url=%q err=%v", job, url, err)
	}

	if _, _, err := readJob("", ""); err == nil {
		t.Fatalf("expected error without job input")
	}
	if _, _, err := readJob(filepath.Join(dir, "missing.txt"), ""); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestPrintSummary(t *testing.T) {
	score := 72
	var buf bytes.Buffer
	printSummary(&buf, tailorings.Tailoring{
		Result: &tailor.Result{MatchingScore: &score, MissingKeywords: []string{"kubernetes", "grpc"}},
	})

	out := buf.String()
	for _, want := range []string{"72/100", "kubernetes", "grpc"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in summary, got %q", want, out)
		}
	}
}

func TestPrintSummaryWithoutResult(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, tailorings.Tailoring{})
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestTemperatureOverrideOnlyWhenGiven(t *testing.T) {
	cmd := &cobra.Command{Use: "tailor"}
	cmd.Flags().Float64("temperature", llm.DefaultTemperature, "")

	if got := temperatureOverride(cmd); got != nil {
		t.Fatalf("expected no override, got %v", *got)
	}
	if err := cmd.Flags().Set("temperature", "0.9"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	got := temperatureOverride(cmd)
	if got == nil || *got != 0.9 {
		t.Fatalf("expected 0.9 override, got %v", got)
	}
	if err := llm.ValidateTemperature(*got); err != nil {
		t.Fatalf("override out of range: %v", err)
	}
}

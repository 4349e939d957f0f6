package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cv-tailor/internal/bootstrap"
	"cv-tailor/internal/credits"
	"cv-tailor/internal/documents"
	"cv-tailor/internal/jobdesc"
	"cv-tailor/internal/llm"
	"cv-tailor/internal/render"
	"cv-tailor/internal/shared/config"
	localstore "cv-tailor/internal/shared/storage/object/local"
	"cv-tailor/internal/tailor"
	"cv-tailor/internal/tailorings"
)

const localAccount = "local"

var tailorCmd = &cobra.Command{
	Use:   "tailor",
	Short: "Tailor a local CV file to a job description",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runTailor(cmd.Context(), cmd.OutOrStdout(), temperatureOverride(cmd))
	},
}

func init() {
	rootCmd.AddCommand(tailorCmd)

	tailorCmd.Flags().StringP("resume", "r", "", "path to the CV (pdf, docx or txt)")
	tailorCmd.Flags().StringP("job", "j", "", "path to a job description text file")
	tailorCmd.Flags().String("job-url", "", "job posting URL to fetch instead of --job")
	tailorCmd.Flags().StringP("out", "o", ".", "directory for the generated PDFs")
	tailorCmd.Flags().Float64("temperature", llm.DefaultTemperature, "sampling temperature (0-1); LLM_TEMPERATURE when unset")
	tailorCmd.Flags().String("format", "", "reply format (json or headers)")
	tailorCmd.Flags().String("render-mode", "", "PDF layout (paginate or one_page)")

	for _, name := range []string{"resume", "job", "job-url", "out", "format", "render-mode"} {
		_ = viper.BindPFlag(name, tailorCmd.Flags().Lookup(name))
	}
}

// temperatureOverride returns the --temperature value only when the flag was given.
func temperatureOverride(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("temperature") {
		return nil
	}
	v, err := cmd.Flags().GetFloat64("temperature")
	if err != nil {
		return nil
	}
	return &v
}

func runTailor(ctx context.Context, out io.Writer, temperature *float64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig()

	resumePath := strings.TrimSpace(viper.GetString("resume"))
	if resumePath == "" {
		return fmt.Errorf("--resume is required")
	}
	job, jobURL, err := readJob(viper.GetString("job"), viper.GetString("job-url"))
	if err != nil {
		return err
	}

	if !viper.GetBool("yes") {
		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("Send %s to %s", filepath.Base(resumePath), cfg.LLMProvider),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			return fmt.Errorf("aborted")
		}
	}

	svc, docs, cleanup, err := localPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := os.Open(resumePath)
	if err != nil {
		return fmt.Errorf("open resume: %w", err)
	}
	doc, err := docs.Upload(ctx, localAccount, filepath.Base(resumePath), f)
	f.Close()
	if err != nil {
		return fmt.Errorf("load resume: %w", err)
	}

	t, err := svc.Create(ctx, tailorings.CreateInput{
		AccountID:      localAccount,
		DocumentID:     doc.ID,
		JobDescription: job,
		JobURL:         jobURL,
		Temperature:    temperature,
	})
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", color.RedString("✗"), err)
		return err
	}

	outDir := viper.GetString("out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, kind := range []tailorings.ArtifactKind{tailorings.ArtifactTailoredCV, tailorings.ArtifactCoverLetter} {
		path := filepath.Join(outDir, kind.FileName())
		if err := saveArtifact(ctx, svc, t.ID, kind, path); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", color.GreenString("✓"), path)
	}

	printSummary(out, t)
	return nil
}

func readJob(jobPath, jobURL string) (string, string, error) {
	jobPath = strings.TrimSpace(jobPath)
	jobURL = strings.TrimSpace(jobURL)
	switch {
	case jobPath != "":
		data, err := os.ReadFile(jobPath)
		if err != nil {
			return "", "", fmt.Errorf("read job description: %w", err)
		}
		return string(data), jobURL, nil
	case jobURL != "":
		return "", jobURL, nil
	default:
		return "", "", fmt.Errorf("--job or --job-url is required")
	}
}

// localPipeline wires the tailoring service over in-memory repositories and a
// temporary object store, funded with exactly the credits one run needs.
func localPipeline(ctx context.Context, cfg config.Config) (*tailorings.Service, *documents.Service, func(), error) {
	completer, err := bootstrap.BuildLLM(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	format := cfg.ResponseFormat
	if v := viper.GetString("format"); v != "" {
		format = v
	}
	parsedFormat, err := tailor.ParseFormat(format)
	if err != nil {
		return nil, nil, nil, err
	}
	renderOpts := render.DefaultOptions()
	renderOpts.Mode = render.ParseMode(cfg.RenderMode)
	if v := viper.GetString("render-mode"); v != "" {
		renderOpts.Mode = render.ParseMode(v)
	}

	dir, err := os.MkdirTemp("", "cvtailor-")
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	store := localstore.New(dir)
	docs := &documents.Service{Store: store, Repo: documents.NewMemoryRepo()}
	ledger := credits.NewService()
	cost := max(1, cfg.CreditCost)
	if _, err := ledger.AdjustCredits(ctx, localAccount, cost, credits.KindGrant, "cli"); err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	svc := &tailorings.Service{
		Repo:        tailorings.NewMemoryRepo(),
		Documents:   docs,
		Credits:     ledger,
		Store:       store,
		LLM:         completer,
		Provider:    cfg.LLMProvider,
		Model:       cfg.LLMModel,
		Format:      parsedFormat,
		Render:      renderOpts,
		CreditCost:  cost,
		Temperature: cfg.LLMTemperature,
		Jobs:        jobdesc.NewFetcher(nil),
	}
	return svc, docs, cleanup, nil
}

func saveArtifact(ctx context.Context, svc *tailorings.Service, id string, kind tailorings.ArtifactKind, path string) error {
	rc, _, err := svc.Artifact(ctx, localAccount, id, kind)
	if err != nil {
		return fmt.Errorf("read %s: %w", kind, err)
	}
	defer rc.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(out io.Writer, t tailorings.Tailoring) {
	if t.Result == nil {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, color.New(color.Bold, color.Underline).Sprint("Match Analysis"))
	if t.Result.MatchingScore != nil {
		score := *t.Result.MatchingScore
		scoreColor := color.RedString
		switch {
		case score >= 80:
			scoreColor = color.GreenString
		case score >= 60:
			scoreColor = color.YellowString
		}
		fmt.Fprintf(out, "Score: %s\n", scoreColor("%d/100", score))
	} else {
		fmt.Fprintf(out, "Score: %s\n", color.YellowString("not reported"))
	}
	if len(t.Result.MissingKeywords) > 0 {
		fmt.Fprintln(out, "Missing keywords:")
		for _, kw := range t.Result.MissingKeywords {
			fmt.Fprintf(out, "  %s %s\n", color.YellowString("•"), kw)
		}
	}
	if t.CVTruncated || t.CoverLetterTruncated {
		fmt.Fprintf(out, "%s output truncated to one page\n", color.YellowString("⚠"))
	}
}

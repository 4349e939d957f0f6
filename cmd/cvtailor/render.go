package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cv-tailor/internal/render"
)

var renderCmd = &cobra.Command{
	Use:   "render <text-file>",
	Short: "Render a plain-text CV or letter to PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".pdf"
		}

		text, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		opts := render.DefaultOptions()
		opts.Mode = render.ParseMode(mode)
		result, err := render.New(opts).Render(string(text))
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, result.PDF, 0o644); err != nil {
			return err
		}

		cmd.Printf("%s wrote %s (%d pages)\n", color.GreenString("✓"), out, result.Layout.Pages)
		if result.Layout.Truncated {
			cmd.Printf("%s dropped %d lines to fit one page\n", color.YellowString("⚠"), result.Layout.DroppedLines)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().String("mode", string(render.ModePaginate), "layout (paginate or one_page)")
	renderCmd.Flags().StringP("out", "o", "", "output path (default: input with .pdf)")
	rootCmd.AddCommand(renderCmd)
}

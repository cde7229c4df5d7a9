package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/factline/internal/model"
	"github.com/ppiankov/factline/internal/pipeline"
	"github.com/ppiankov/factline/internal/render"
	"github.com/ppiankov/factline/internal/source"
	"github.com/spf13/cobra"
)

// ErrManualReview is returned with --strict when a draft did not verify
var ErrManualReview = errors.New("draft needs manual review")

var (
	formatFlag string
	outDir     string
	originID   string
	runTimeout time.Duration
	strict     bool
	noCache    bool
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate <source>",
	Short: "Generate verified content from a source document",
	Long: `Generate reads a source document (plain text, Markdown or HTML; "-" for
stdin) and, for each requested format:
- Extracts quoted facts from the source
- Drafts content grounded in those facts
- Verifies the draft and repairs it until it passes or the limit is hit
- Scores the result and writes <slug>-<format>.json and .md

Example:
  factline generate article.md
  factline generate article.html --format short --out-dir ./out
  cat notes.txt | factline generate - --origin-id q3-update --format thread`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&formatFlag, "format", "f", "all", "output format (long, short, thread, all) or a comma-separated list")
	generateCmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "output directory (default: output.dir from config)")
	generateCmd.Flags().StringVar(&originID, "origin-id", "", "source identifier (default: file name)")
	generateCmd.Flags().DurationVar(&runTimeout, "timeout", 15*time.Minute, "overall timeout")
	generateCmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any draft needs manual review")
	generateCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the fact cache")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	formats, err := parseFormats(formatFlag)
	if err != nil {
		return err
	}

	src, err := loadSource(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	p, err := pipeline.NewFromConfig(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	results, err := p.GenerateAll(ctx, src, formats)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}

	dir := outDir
	if dir == "" {
		dir = cfg.Output.Dir
	}

	needsReview := 0
	for _, res := range results {
		paths, err := render.Write(dir, res)
		if err != nil {
			return err
		}
		render.Summary(os.Stderr, res)
		fmt.Fprintln(cmd.OutOrStdout(), paths.Markdown)
		if res.NeedsManualReview {
			needsReview++
		}
	}

	if strict && needsReview > 0 {
		return fmt.Errorf("%w: %d of %d", ErrManualReview, needsReview, len(results))
	}
	return nil
}

// parseFormats accepts "all" or a comma-separated list of format names
func parseFormats(raw string) ([]model.FormatKind, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "all" {
		return model.AllFormats(), nil
	}

	var formats []model.FormatKind
	seen := make(map[model.FormatKind]bool)
	for _, part := range strings.Split(raw, ",") {
		f, err := model.ParseFormat(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats, nil
}

func loadSource(path string) (model.SourceDocument, error) {
	src, err := source.Load(path)
	if err != nil {
		return model.SourceDocument{}, fmt.Errorf("load source: %w", err)
	}
	if originID != "" {
		src.OriginID = originID
	}
	return src, nil
}

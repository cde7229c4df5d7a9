package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/factline/internal/pipeline"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var extractTimeout time.Duration

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <source>",
	Short: "Extract the quoted fact set of a source document",
	Long: `Extract runs only the fact extraction stage and prints the fact set as
YAML. Facts whose quote does not appear in the source are dropped.

Example:
  factline extract article.md
  factline extract article.html --origin-id wind-2025 > facts.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if noCache {
			cfg.Cache.Enabled = false
		}

		src, err := loadSource(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), extractTimeout)
		defer cancel()

		p, err := pipeline.NewFromConfig(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}

		set, err := p.Extract(ctx, src)
		if err != nil {
			return fmt.Errorf("extract failed: %w", err)
		}
		if set.Degraded {
			logger.Warn("extraction failed, fact set is empty", "origin_id", set.OriginID)
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(set); err != nil {
			return fmt.Errorf("encode facts: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&originID, "origin-id", "", "source identifier (default: file name)")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 5*time.Minute, "overall timeout")
	extractCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the fact cache")
}

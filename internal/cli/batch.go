package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/ppiankov/factline/internal/metrics"
	"github.com/ppiankov/factline/internal/pipeline"
	"github.com/ppiankov/factline/internal/render"
	"github.com/ppiankov/factline/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	batchFormats string
	batchOutDir  string
	batchTimeout time.Duration
	metricsAddr  string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Generate content for many sources in parallel",
	Long: `Batch processes every source listed in a manifest file:
- One source path per line, relative to the manifest; # starts a comment
- Each (source, format) pair runs on a bounded worker pool
- Fact extraction is cached, so a source is extracted once for all formats
- Results are written as they finish

Example:
  factline batch sources.txt
  factline batch sources.txt --concurrency 8 --out-dir ./drafts
  factline batch sources.txt --format short,thread --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVarP(&batchFormats, "format", "f", "all", "output formats (long, short, thread, all) comma-separated")
	batchCmd.Flags().StringVarP(&batchOutDir, "out-dir", "o", "", "output directory (default: output.dir from config)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 60*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the batch runs")
}

func runBatch(cmd *cobra.Command, args []string) error {
	manifest := args[0]

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	formats, err := parseFormats(batchFormats)
	if err != nil {
		return err
	}
	paths, err := worker.ReadManifest(manifest)
	if err != nil {
		return err
	}

	dir := batchOutDir
	if dir == "" {
		dir = cfg.Output.Dir
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", metricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", metricsAddr)
	}

	p, err := pipeline.NewFromConfig(ctx, cfg, logger, m)
	if err != nil {
		return err
	}

	tasks := worker.Tasks(paths, formats)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Factline Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Manifest:     %s\n", manifest)
	fmt.Fprintf(os.Stderr, "  Sources:      %d\n", len(paths))
	fmt.Fprintf(os.Stderr, "  Tasks:        %d\n", len(tasks))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", dir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	var mu sync.Mutex
	var verified, review, failed int

	processor := worker.NewBatchProcessor(p, concurrency,
		worker.WithBatchLogger(logger),
		worker.OnResult(func(r *worker.TaskResult) {
			mu.Lock()
			defer mu.Unlock()

			if r.Error != nil {
				failed++
				fmt.Fprintf(os.Stderr, "✗ %s [%s]: %v\n", r.Path, r.Format, r.Error)
				return
			}
			if _, err := render.Write(dir, r.Result); err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "✗ %s [%s]: %v\n", r.Path, r.Format, err)
				return
			}
			if r.Result.NeedsManualReview {
				review++
				fmt.Fprintf(os.Stderr, "! %s [%s] needs review (score: %d/100)\n", r.Result.OriginID, r.Format, r.Result.ConfidenceScore)
				return
			}
			verified++
			fmt.Fprintf(os.Stderr, "✓ %s [%s] (score: %d/100)\n", r.Result.OriginID, r.Format, r.Result.ConfidenceScore)
		}))

	results := processor.Process(ctx, tasks)

	// Tasks that never started were not reported through OnResult
	notRun := len(results) - verified - review - failed

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d tasks\n", len(results))
	fmt.Fprintf(os.Stderr, "  Verified:  %d\n", verified)
	fmt.Fprintf(os.Stderr, "  Review:    %d\n", review)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failed)
	if notRun > 0 {
		fmt.Fprintf(os.Stderr, "  Not run:   %d\n", notRun)
	}
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", dir)
	fmt.Fprintf(os.Stderr, "\n")

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}
	return nil
}

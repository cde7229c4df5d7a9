package worker

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/factline/internal/logging"
	"github.com/ppiankov/factline/internal/model"
	"github.com/ppiankov/factline/internal/source"
)

// Generator runs one pipeline
type Generator interface {
	GenerateVerified(ctx context.Context, src model.SourceDocument, format model.FormatKind) (*model.PipelineResult, error)
}

// Loader reads a source document from a path
type Loader func(path string) (model.SourceDocument, error)

// Task is one (source, format) pair of a batch
type Task struct {
	Path   string
	Format model.FormatKind
}

// Tasks pairs every path with every format, paths outermost
func Tasks(paths []string, formats []model.FormatKind) []Task {
	tasks := make([]Task, 0, len(paths)*len(formats))
	for _, p := range paths {
		for _, f := range formats {
			tasks = append(tasks, Task{Path: p, Format: f})
		}
	}
	return tasks
}

// TaskResult is the outcome of one task
type TaskResult struct {
	Task
	Result *model.PipelineResult
	Error  error
}

// GetError returns the error from the task result
func (r *TaskResult) GetError() error {
	return r.Error
}

type pipelineJob struct {
	task     Task
	gen      Generator
	load     Loader
	onResult func(*TaskResult)
}

func (j *pipelineJob) Execute(ctx context.Context) Result {
	out := &TaskResult{Task: j.task}
	if err := ctx.Err(); err != nil {
		out.Error = err
		return out
	}

	src, err := j.load(j.task.Path)
	if err != nil {
		out.Error = fmt.Errorf("load %s: %w", j.task.Path, err)
	} else {
		out.Result, out.Error = j.gen.GenerateVerified(ctx, src, j.task.Format)
	}

	if j.onResult != nil {
		j.onResult(out)
	}
	return out
}

// BatchProcessor runs tasks concurrently
type BatchProcessor struct {
	gen         Generator
	concurrency int
	load        Loader
	onResult    func(*TaskResult)
	logger      *slog.Logger
}

// BatchOption customizes a BatchProcessor
type BatchOption func(*BatchProcessor)

// WithLoader replaces source.Load
func WithLoader(l Loader) BatchOption {
	return func(b *BatchProcessor) { b.load = l }
}

// OnResult is called from the worker goroutine as each task finishes
func OnResult(fn func(*TaskResult)) BatchOption {
	return func(b *BatchProcessor) { b.onResult = fn }
}

// WithBatchLogger sets the logger
func WithBatchLogger(l *slog.Logger) BatchOption {
	return func(b *BatchProcessor) { b.logger = l }
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(gen Generator, concurrency int, opts ...BatchOption) *BatchProcessor {
	b := &BatchProcessor{
		gen:         gen,
		concurrency: concurrency,
		load:        source.Load,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrDefault(b.logger).With("component", "batch")
	return b
}

// Process runs every task and returns results in task order. Tasks not
// started before ctx ended are reported with ctx's error.
func (b *BatchProcessor) Process(ctx context.Context, tasks []Task) []*TaskResult {
	if len(tasks) == 0 {
		return []*TaskResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, task := range tasks {
		pool.Submit(&pipelineJob{task: task, gen: b.gen, load: b.load, onResult: b.onResult})
	}
	results := pool.Wait()

	byTask := make(map[Task]*TaskResult, len(results))
	for _, r := range results {
		tr := r.(*TaskResult)
		byTask[tr.Task] = tr
	}

	out := make([]*TaskResult, len(tasks))
	failed := 0
	for i, task := range tasks {
		tr, ok := byTask[task]
		if !ok {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			tr = &TaskResult{Task: task, Error: err}
		}
		if tr.Error != nil {
			failed++
		}
		out[i] = tr
	}

	b.logger.Info("batch complete", "tasks", len(tasks), "failed", failed)
	return out
}

// ReadManifest reads source paths, one per line. Relative paths resolve
// against the manifest's directory. Blank lines and lines starting with "#"
// are skipped; repeated paths are kept once.
func ReadManifest(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(filepath.Dir(filePath), line)
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return paths, nil
}

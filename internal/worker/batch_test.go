package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/factline/internal/model"
)

// mockGenerator implements Generator
type mockGenerator struct {
	mu     sync.Mutex
	calls  int
	failOn string
}

func (m *mockGenerator) GenerateVerified(ctx context.Context, src model.SourceDocument, format model.FormatKind) (*model.PipelineResult, error) {
	time.Sleep(5 * time.Millisecond)
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if src.OriginID == m.failOn {
		return nil, errors.New("generation failed")
	}
	return &model.PipelineResult{
		OriginID: src.OriginID,
		Draft:    model.ContentDraft{Format: format, Text: "draft for " + src.OriginID},
	}, nil
}

func fakeLoader(path string) (model.SourceDocument, error) {
	if filepath.Base(path) == "missing.txt" {
		return model.SourceDocument{}, os.ErrNotExist
	}
	return model.SourceDocument{OriginID: filepath.Base(path), Text: "text of " + path}, nil
}

func TestTasks(t *testing.T) {
	tasks := Tasks([]string{"a.txt", "b.txt"}, []model.FormatKind{model.FormatShortPost, model.FormatMicroThread})

	expected := []Task{
		{Path: "a.txt", Format: model.FormatShortPost},
		{Path: "a.txt", Format: model.FormatMicroThread},
		{Path: "b.txt", Format: model.FormatShortPost},
		{Path: "b.txt", Format: model.FormatMicroThread},
	}
	if len(tasks) != len(expected) {
		t.Fatalf("expected %d tasks, got %d", len(expected), len(tasks))
	}
	for i := range expected {
		if tasks[i] != expected[i] {
			t.Errorf("task %d = %+v, want %+v", i, tasks[i], expected[i])
		}
	}
}

func TestBatchProcessor_Process(t *testing.T) {
	gen := &mockGenerator{}
	var mu sync.Mutex
	var seen []string

	processor := NewBatchProcessor(gen, 2,
		WithLoader(fakeLoader),
		OnResult(func(r *TaskResult) {
			mu.Lock()
			seen = append(seen, r.Path)
			mu.Unlock()
		}))

	tasks := Tasks([]string{"one.txt", "two.txt", "three.txt"}, []model.FormatKind{model.FormatShortPost})
	results := processor.Process(context.Background(), tasks)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Path, res.Error)
			continue
		}
		if res.Task != tasks[i] {
			t.Errorf("result %d is for %+v, want %+v", i, res.Task, tasks[i])
		}
		if res.Result == nil || res.Result.OriginID != filepath.Base(tasks[i].Path) {
			t.Errorf("result %d has wrong pipeline result: %+v", i, res.Result)
		}
	}

	if len(seen) != 3 {
		t.Errorf("expected OnResult for 3 tasks, got %d", len(seen))
	}
	if gen.calls != 3 {
		t.Errorf("expected 3 generator calls, got %d", gen.calls)
	}
}

func TestBatchProcessor_Process_Errors(t *testing.T) {
	gen := &mockGenerator{failOn: "bad.txt"}
	processor := NewBatchProcessor(gen, 2, WithLoader(fakeLoader))

	tasks := Tasks([]string{"good.txt", "bad.txt", "missing.txt"}, []model.FormatKind{model.FormatLongForm})
	results := processor.Process(context.Background(), tasks)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].GetError() != nil {
		t.Errorf("unexpected error for good.txt: %v", results[0].Error)
	}
	if results[1].GetError() == nil || results[1].Result != nil {
		t.Error("expected generation error and nil result for bad.txt")
	}
	if !errors.Is(results[2].GetError(), os.ErrNotExist) {
		t.Errorf("expected load error for missing.txt, got %v", results[2].Error)
	}
	if gen.calls != 2 {
		t.Errorf("expected 2 generator calls, got %d", gen.calls)
	}
}

func TestBatchProcessor_Process_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockGenerator{}, 2, WithLoader(fakeLoader))

	results := processor.Process(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_Process_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &mockGenerator{}
	processor := NewBatchProcessor(gen, 2, WithLoader(fakeLoader))
	tasks := Tasks([]string{"a.txt", "b.txt", "c.txt"}, []model.FormatKind{model.FormatShortPost})

	results := processor.Process(ctx, tasks)
	if len(results) != 3 {
		t.Fatalf("expected a result for every task, got %d", len(results))
	}
	for _, res := range results {
		if !errors.Is(res.Error, context.Canceled) {
			t.Errorf("expected context.Canceled for %s, got %v", res.Path, res.Error)
		}
	}
	if gen.calls != 0 {
		t.Errorf("expected no generator calls, got %d", gen.calls)
	}
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadManifest(t *testing.T) {
	path := writeManifest(t, `articles/solar.md
# comment
/abs/wind.html
   
articles/solar.md
articles/storage.txt   `)

	paths, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}

	dir := filepath.Dir(path)
	expected := []string{
		filepath.Join(dir, "articles/solar.md"),
		"/abs/wind.html",
		filepath.Join(dir, "articles/storage.txt"),
	}
	if len(paths) != len(expected) {
		t.Fatalf("expected %d paths, got %d: %v", len(expected), len(paths), paths)
	}
	for i, p := range paths {
		if p != expected[i] {
			t.Errorf("expected path %s at index %d, got %s", expected[i], i, p)
		}
	}
}

func TestReadManifest_Empty(t *testing.T) {
	paths, err := ReadManifest(writeManifest(t, "# nothing here\n\n"))
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected 0 paths, got %d", len(paths))
	}
}

func TestReadManifest_NonExistent(t *testing.T) {
	_, err := ReadManifest("no_such_manifest.txt")
	if err == nil {
		t.Error("expected error for non-existent manifest, got nil")
	}
}

func TestTaskResult_GetError(t *testing.T) {
	r1 := &TaskResult{Task: Task{Path: "a.txt"}}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("failed")
	r2 := &TaskResult{Task: Task{Path: "a.txt"}, Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

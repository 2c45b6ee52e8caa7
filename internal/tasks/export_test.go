package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/shared"
	tu "github.com/desertthunder/reelx/internal/testing"
)

// fakeLister serves count students split into pages of q.PageSize.
type fakeLister struct {
	count   int
	failOn  map[int]bool
	failAll bool

	mu      sync.Mutex
	queries []services.StudentQuery
}

func (f *fakeLister) ListStudents(_ context.Context, q services.StudentQuery) (models.Page[models.Student], error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.failAll || f.failOn[q.Page] {
		return models.Page[models.Student]{}, fmt.Errorf("%w: page %d", shared.ErrServiceUnavailable, q.Page)
	}

	start := (q.Page - 1) * q.PageSize
	end := min(start+q.PageSize, f.count)
	items := []models.Student{}
	for i := start; i < end; i++ {
		items = append(items, models.Student{ID: i + 1, StudentID: fmt.Sprintf("S%03d", i+1), Name: fmt.Sprintf("Student %d", i+1), Branch: "CSE"})
	}
	return models.Page[models.Student]{
		Items:      items,
		Page:       q.Page,
		TotalPages: services.TotalPages(f.count, q.PageSize),
		TotalCount: f.count,
	}, nil
}

func exportOpts(t *testing.T, format string) ExportOpts {
	return ExportOpts{Format: format, OutputDir: t.TempDir(), PageSize: 10, NumWorkers: 4, RateLimit: 1000}
}

func TestExportStudents(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful export", func(t *testing.T) {
		tests := []struct {
			name   string
			format string
			count  int
		}{
			{name: "single page json", format: formatter.FormatJSON, count: 7},
			{name: "multiple pages csv", format: formatter.FormatCSV, count: 43},
			{name: "empty json", format: formatter.FormatJSON, count: 0},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				lister := &fakeLister{count: tc.count}
				opts := exportOpts(t, tc.format)

				result, err := NewExportEngine(lister, nil).ExportStudents(ctx, nil, opts)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if len(result.Students) != tc.count {
					t.Errorf("expected %d students, got %d", tc.count, len(result.Students))
				}
				for i, s := range result.Students {
					if s.ID != i+1 {
						t.Fatalf("expected students in page order, got id %d at %d", s.ID, i)
					}
				}
				if result.File != filepath.Join(opts.OutputDir, "students."+tc.format) {
					t.Errorf("unexpected file %s", result.File)
				}
				tu.AssertFileExists(t, result.File)
				tu.AssertFileExists(t, result.ManifestPath)

				wantCalls := max(services.TotalPages(tc.count, 10), 1)
				if len(lister.queries) != wantCalls {
					t.Errorf("expected %d page requests, got %d", wantCalls, len(lister.queries))
				}
			})
		}
	})

	t.Run("Filters are forwarded", func(t *testing.T) {
		lister := &fakeLister{count: 25}
		opts := exportOpts(t, formatter.FormatJSON)
		opts.Search = "ada"
		opts.Branch = "CSE"

		if _, err := NewExportEngine(lister, nil).ExportStudents(ctx, nil, opts); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, q := range lister.queries {
			if q.Search != "ada" || q.Branch != "CSE" || q.PageSize != 10 {
				t.Errorf("unexpected query %+v", q)
			}
		}
	})

	t.Run("Failed pages are recorded", func(t *testing.T) {
		lister := &fakeLister{count: 35, failOn: map[int]bool{3: true}}
		opts := exportOpts(t, formatter.FormatCSV)

		result, err := NewExportEngine(lister, nil).ExportStudents(ctx, nil, opts)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.FailedPages) != 1 || result.FailedPages[0].Page != 3 {
			t.Fatalf("expected page 3 to fail, got %+v", result.FailedPages)
		}
		if len(result.Students) != 25 {
			t.Errorf("expected 25 students, got %d", len(result.Students))
		}

		var manifest formatter.ExportManifest
		if err := json.Unmarshal([]byte(tu.MustReadFile(t, result.ManifestPath)), &manifest); err != nil {
			t.Fatalf("invalid manifest: %v", err)
		}
		if manifest.Exported != 25 || manifest.TotalStudents != 35 || len(manifest.FailedPages) != 1 {
			t.Errorf("unexpected manifest %+v", manifest)
		}
	})

	t.Run("First page failure aborts", func(t *testing.T) {
		lister := &fakeLister{count: 10, failAll: true}
		_, err := NewExportEngine(lister, nil).ExportStudents(ctx, nil, exportOpts(t, formatter.FormatJSON))
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Unsupported format", func(t *testing.T) {
		_, err := NewExportEngine(&fakeLister{}, nil).ExportStudents(ctx, nil, exportOpts(t, "xml"))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Nil backend", func(t *testing.T) {
		_, err := NewExportEngine(nil, nil).ExportStudents(ctx, nil, exportOpts(t, formatter.FormatJSON))
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := NewExportEngine(&fakeLister{count: 30}, nil).ExportStudents(cctx, nil, exportOpts(t, formatter.FormatJSON))
		if !errors.Is(err, shared.ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	})

	t.Run("Output directory is created", func(t *testing.T) {
		opts := exportOpts(t, formatter.FormatJSON)
		opts.OutputDir = filepath.Join(opts.OutputDir, "nested", "dir")

		if _, err := NewExportEngine(&fakeLister{count: 1}, nil).ExportStudents(ctx, nil, opts); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := os.Stat(opts.OutputDir); err != nil {
			t.Errorf("expected output directory to exist: %v", err)
		}
	})
}

func TestProgress(t *testing.T) {
	t.Run("Reports every page", func(t *testing.T) {
		prog := make(chan ProgressUpdate, 100)
		_, err := NewExportEngine(&fakeLister{count: 30}, nil).ExportStudents(context.Background(), prog, exportOpts(t, formatter.FormatJSON))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(prog)

		phases := map[Phase]int{}
		var last ProgressUpdate
		for u := range prog {
			phases[u.Phase]++
			last = u
		}
		if phases[FetchPages] != 2 {
			t.Errorf("expected 2 page updates, got %d", phases[FetchPages])
		}
		if last.Phase != WriteExport || !strings.Contains(last.Message, "30 students as json") {
			t.Errorf("unexpected final update %+v", last)
		}
	})

	t.Run("Full channel does not block", func(t *testing.T) {
		prog := make(chan ProgressUpdate)
		opts := exportOpts(t, formatter.FormatJSON)
		done := make(chan struct{})
		go func() {
			NewExportEngine(&fakeLister{count: 30}, nil).ExportStudents(context.Background(), prog, opts)
			close(done)
		}()
		<-done
	})

	t.Run("Phase strings", func(t *testing.T) {
		for phase, want := range map[Phase]string{FetchFirstPage: "fetch_first_page", FetchPages: "fetch_pages", WriteExport: "write_export", Phase(99): ""} {
			if phase.String() != want {
				t.Errorf("expected %q, got %q", want, phase.String())
			}
		}
	})
}

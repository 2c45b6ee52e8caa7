package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/shared"
)

// ExportOpts contains configuration for student exports.
type ExportOpts struct {
	Format     string  // Export format: json, csv
	OutputDir  string  // Output directory (default: students_export_{epoch})
	Search     string  // Optional search filter
	Branch     string  // Optional branch filter
	PageSize   int     // Students per request (default: 10)
	NumWorkers int     // Concurrent page fetchers (default: 3, max: 8)
	RateLimit  float64 // Requests per second (default: 5)
}

// PageResult is the outcome of fetching one page.
type PageResult struct {
	Page     int
	Students []models.Student
	Error    error
}

// ExportResult summarizes a finished export.
type ExportResult struct {
	Students     []models.Student
	TotalCount   int
	TotalPages   int
	FailedPages  []PageResult
	File         string
	ManifestPath string
}

// ExportStudents walks every page of the user's students and writes them to a single file.
//
// The first page is fetched alone to learn the page count; the remaining pages are fetched by a
// rate-limited worker pool. Pages that fail are recorded in the result and the manifest instead of
// aborting the export. Students are written in page order.
func (e *ExportEngine) ExportStudents(ctx context.Context, prog chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error) {
	if e.students == nil {
		return nil, fmt.Errorf("%w: backend not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if !formatter.IsFormat(opts.Format) {
		return nil, fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidArgument, opts.Format)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("students_export_%d", time.Now().Unix())
	}
	if opts.PageSize <= 0 {
		opts.PageSize = services.DefaultStudentPageSize
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 8 {
		opts.NumWorkers = 8
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	query := func(page int) services.StudentQuery {
		return services.StudentQuery{Page: page, PageSize: opts.PageSize, Search: opts.Search, Branch: opts.Branch}
	}

	e.sendProgress(prog, fetchingFirstPageUpdate())
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCancelled, err)
	}
	first, err := e.students.ListStudents(ctx, query(1))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	result := &ExportResult{
		TotalCount: first.TotalCount,
		TotalPages: first.TotalPages,
	}
	e.sendProgress(prog, foundStudentsUpdate(first.TotalCount, first.TotalPages))

	pages := []PageResult{{Page: 1, Students: first.Items}}
	if first.TotalPages > 1 {
		rest, err := e.fetchPages(ctx, prog, limiter, query, first.TotalPages, opts.NumWorkers)
		if err != nil {
			return nil, err
		}
		pages = append(pages, rest...)
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })
	for _, p := range pages {
		if p.Error != nil {
			result.FailedPages = append(result.FailedPages, p)
			continue
		}
		result.Students = append(result.Students, p.Students...)
	}

	e.sendProgress(prog, writingExportUpdate(opts.Format, len(result.Students)))
	file, err := formatter.WriteStudentExport(result.Students, opts.Format, filepath.Join(opts.OutputDir, "students"))
	if err != nil {
		return result, fmt.Errorf("failed to write export: %w", err)
	}
	result.File = file

	manifest := &formatter.ExportManifest{
		ExportedAt:    time.Now().UTC(),
		Format:        opts.Format,
		Search:        opts.Search,
		Branch:        opts.Branch,
		TotalStudents: result.TotalCount,
		Exported:      len(result.Students),
		TotalPages:    result.TotalPages,
		Files:         []string{filepath.Base(file)},
	}
	for _, p := range result.FailedPages {
		manifest.FailedPages = append(manifest.FailedPages, formatter.PageError{Page: p.Page, Error: p.Error.Error()})
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteExportManifest(manifest, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	e.logger.Info("student export finished", "students", len(result.Students), "failed_pages", len(result.FailedPages), "file", file)
	return result, nil
}

// fetchPages fetches pages 2..totalPages with a worker pool sharing limiter.
func (e *ExportEngine) fetchPages(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	limiter *rate.Limiter,
	query func(page int) services.StudentQuery,
	totalPages, numWorkers int,
) ([]PageResult, error) {
	total := totalPages - 1
	jobs := make(chan int, total)
	results := make(chan PageResult, total)

	var wg sync.WaitGroup
	for range min(numWorkers, total) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					results <- PageResult{Page: page, Error: fmt.Errorf("%w: %w", shared.ErrCancelled, err)}
					continue
				}
				p, err := e.students.ListStudents(ctx, query(page))
				results <- PageResult{Page: page, Students: p.Items, Error: err}
			}
		}()
	}

	for page := 2; page <= totalPages; page++ {
		jobs <- page
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]PageResult, 0, total)
	completed := 0
	for res := range results {
		completed++
		out = append(out, res)
		if res.Error != nil {
			e.sendProgress(prog, pageFailedUpdate(completed, total, res.Page, res.Error))
			continue
		}
		e.sendProgress(prog, pageFetchedUpdate(completed, total, res.Page, len(res.Students)))
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: export interrupted: %w", shared.ErrCancelled, err)
	}
	return out, nil
}

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/shared"
	"github.com/desertthunder/reelx/internal/tasks"
)

func (r *Runner) studentQuery(cmd *cli.Command) services.StudentQuery {
	return services.StudentQuery{
		Page:     int(cmd.Int("page")),
		PageSize: r.config.Search.StudentPageSize,
		Search:   strings.TrimSpace(cmd.String("search")),
		Branch:   strings.ToUpper(strings.TrimSpace(cmd.String("branch"))),
		Ordering: cmd.String("ordering"),
	}
}

// StudentsList prints one page of the user's students.
func (r *Runner) StudentsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(ctx); err != nil {
		return err
	}
	backend, err := r.backendService(ctx)
	if err != nil {
		return err
	}

	page, err := backend.ListStudents(ctx, r.studentQuery(cmd))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(page, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", formatter.StudentsTable(page))
}

// StudentsAdd creates a student.
func (r *Runner) StudentsAdd(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(ctx); err != nil {
		return err
	}
	backend, err := r.backendService(ctx)
	if err != nil {
		return err
	}

	student, err := backend.CreateStudent(ctx, models.StudentInput{
		Name:      cmd.String("name"),
		StudentID: cmd.String("student-id"),
		Branch:    cmd.String("branch"),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", services.UserMessage(err, services.MsgCreateFailed), err)
	}

	return r.writePlain("✓ Added %s (%s, %s) with id %d\n", student.Name, student.StudentID, student.Branch, student.ID)
}

// StudentsDelete deletes a student, then lists the page to return to. Deleting the last student on a
// page past the first shows the previous page.
func (r *Runner) StudentsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := positiveArg(cmd, "id")
	if err != nil {
		return err
	}
	if err := r.requireAuth(ctx); err != nil {
		return err
	}
	backend, err := r.backendService(ctx)
	if err != nil {
		return err
	}

	q := r.studentQuery(cmd)
	q.Page = max(q.Page, 1)
	before, err := backend.ListStudents(ctx, q)
	if err != nil {
		return err
	}

	if err := backend.DeleteStudent(ctx, id); err != nil {
		return err
	}
	r.writePlain("✓ Deleted student %d\n\n", id)

	q.Page = services.PageAfterDelete(q.Page, len(before.Items))
	after, err := backend.ListStudents(ctx, q)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", formatter.StudentsTable(after))
}

// StudentsExport fetches every page of students concurrently and writes them to one file.
func (r *Runner) StudentsExport(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	if !formatter.IsFormat(format) {
		return fmt.Errorf("%w: unsupported format %q (use json or csv)", shared.ErrInvalidArgument, format)
	}
	if err := r.requireAuth(ctx); err != nil {
		return err
	}
	engine, err := r.exportEngine(ctx)
	if err != nil {
		return err
	}

	outputDir := cmd.String("output")
	if outputDir == "" {
		outputDir = fmt.Sprintf("students_export_%d", time.Now().Unix())
	}

	opts := tasks.ExportOpts{
		Format:     format,
		OutputDir:  outputDir,
		Search:     strings.TrimSpace(cmd.String("search")),
		Branch:     strings.ToUpper(strings.TrimSpace(cmd.String("branch"))),
		PageSize:   r.config.Search.StudentPageSize,
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate"),
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchFirstPage:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.FetchPages:
				r.writePlain("   %s\n", update.Message)
			case tasks.WriteExport:
				r.writePlain("\n📝 %s\n", update.Message)
			}
		}
	}()

	result, err := engine.ExportStudents(ctx, progressCh, opts)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Students: %d of %d\n", len(result.Students), result.TotalCount)
	r.writePlain("Pages: %d\n", result.TotalPages)
	r.writePlain("File: %s\n", result.File)
	r.writePlain("Manifest: %s\n", filepath.Clean(result.ManifestPath))

	if len(result.FailedPages) > 0 {
		r.writePlain("\nFailed to fetch %d pages:\n", len(result.FailedPages))
		for _, p := range result.FailedPages {
			r.writePlain("  - page %d: %v\n", p.Page, p.Error)
		}
	}
	return nil
}

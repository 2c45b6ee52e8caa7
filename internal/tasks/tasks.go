// package tasks implements long-running client operations that report progress while they work.
package tasks

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/services"
)

// StudentLister is the part of the backend an export needs.
type StudentLister interface {
	ListStudents(ctx context.Context, q services.StudentQuery) (models.Page[models.Student], error)
}

// ExportEngine runs student exports against the backend.
type ExportEngine struct {
	students StudentLister
	logger   *log.Logger
}

// NewExportEngine creates a new ExportEngine.
func NewExportEngine(students StudentLister, logger *log.Logger) *ExportEngine {
	if logger == nil {
		logger = log.Default()
	}
	return &ExportEngine{students: students, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *ExportEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

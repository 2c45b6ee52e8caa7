// package formatter renders reelx data for the terminal and exports student records to files (CSV, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

// Export formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// IsFormat reports whether f is a supported export format.
func IsFormat(f string) bool {
	return f == FormatJSON || f == FormatCSV
}

// StudentsToCSV converts students to CSV with columns: ID, Student ID, Name, Branch, Created At, Creator
func StudentsToCSV(students []models.Student) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Student ID", "Name", "Branch", "Created At", "Creator"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, s := range students {
		record := []string{
			strconv.Itoa(s.ID),
			s.StudentID,
			s.Name,
			s.Branch,
			formatTime(s.CreatedAt),
			s.CreatorUsername,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// StudentsToJSON converts students to an indented JSON array
func StudentsToJSON(students []models.Student) ([]byte, error) {
	if students == nil {
		students = []models.Student{}
	}
	return shared.MarshalJSON(students, true)
}

// WriteStudentExport writes students to baseFilepath with the extension for format.
//
// Returns the path of the written file.
func WriteStudentExport(students []models.Student, format, baseFilepath string) (string, error) {
	if baseFilepath == "" {
		baseFilepath = "students"
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = StudentsToCSV(students)
	case FormatJSON, "":
		format = FormatJSON
		data, err = StudentsToJSON(students)
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	path := baseFilepath + "." + format
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return path, nil
}

// ExportManifest summarizes a student export.
type ExportManifest struct {
	ExportedAt    time.Time   `json:"exported_at"`
	Format        string      `json:"format"`
	Search        string      `json:"search,omitempty"`
	Branch        string      `json:"branch,omitempty"`
	TotalStudents int         `json:"total_students"`
	Exported      int         `json:"exported"`
	TotalPages    int         `json:"total_pages"`
	FailedPages   []PageError `json:"failed_pages,omitempty"`
	Files         []string    `json:"files"`
}

// PageError records a page that could not be fetched.
type PageError struct {
	Page  int    `json:"page"`
	Error string `json:"error"`
}

// WriteExportManifest writes m as indented JSON to path.
func WriteExportManifest(m *ExportManifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// Package tasks runs long client operations with real-time progress reporting.
//
// # Student Export
//
// [ExportEngine.ExportStudents] walks every page of the user's students:
//   - Fetches page 1 to learn the total page count
//   - Fetches the remaining pages with a worker pool behind a shared rate limiter
//   - Writes all students, in page order, through the formatter package (JSON or CSV)
//   - Writes export_manifest.json listing the file and any pages that failed
//
// A failed page does not abort the export; cancelling the context does.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks

package ingestion

import "fmt"

// Cap on the error messages echoed inline in responses; the artifact
// files carry the full list.
const maxTopErrors = 10

// ErrorSummary aggregates an upload's problems for the response body
type ErrorSummary struct {
	CountsByKind map[string]int `json:"countsByKind"`
	TopErrors    []string       `json:"topErrors"`
}

// UploadResult is the outcome of one ingestion run, returned verbatim
// as the upload response body. ErrorFiles maps artifact kinds to the
// absolute paths written by the ErrorTracker.
type UploadResult struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	Messages     []string          `json:"messages,omitempty"`
	Errors       []string          `json:"errors,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
	RecordCount  int               `json:"recordCount"`
	ErrorCount   int               `json:"errorCount"`
	SkippedCount int               `json:"skippedCount"`
	ErrorSummary *ErrorSummary     `json:"errorSummary,omitempty"`
	ErrorFiles   map[string]string `json:"errorFiles,omitempty"`
}

// ErrValidationFailed marks an upload aborted by blocking row errors.
// The pipeline persists nothing and the task fails with this message.
type ErrValidationFailed struct {
	ErrorCount int
}

func (e *ErrValidationFailed) Error() string {
	return fmt.Sprintf("validation failed with %d row error(s)", e.ErrorCount)
}

// structuralFailure shapes the response for parse-time errors: bad
// header, empty file, too many rows.
func structuralFailure(err error) *UploadResult {
	return &UploadResult{
		Success: false,
		Message: err.Error(),
		Errors:  []string{err.Error()},
	}
}

// abortResult shapes the response for an upload rejected by row-level
// validation or duplicate errors. Nothing was persisted.
func abortResult(tracker *ErrorTracker, files map[string]string) *UploadResult {
	return &UploadResult{
		Success:      false,
		Message:      fmt.Sprintf("Upload rejected: %d row error(s)", tracker.ErrorCount()),
		Errors:       tracker.Messages(maxTopErrors),
		ErrorCount:   tracker.ErrorCount(),
		SkippedCount: tracker.Skipped(),
		ErrorSummary: tracker.Summary(maxTopErrors),
		ErrorFiles:   files,
	}
}

package ingestion

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrorKind classifies a recorded row problem
type ErrorKind string

const (
	// KindValidation - a cell failed its field rules; blocks the upload
	KindValidation ErrorKind = "VALIDATION_ERROR"

	// KindDependencySkipped - a foreign key was not found in master data;
	// the row is dropped but the upload may still succeed
	KindDependencySkipped ErrorKind = "DEPENDENCY_SKIPPED"

	// KindDuplicate - the natural key repeats within the file; blocks the upload
	KindDuplicate ErrorKind = "DUPLICATE_ERROR"

	// KindSystem - unexpected row-level failure
	KindSystem ErrorKind = "SYSTEM_ERROR"
)

// RowError is one recorded problem with the original row preserved for
// the artifact files.
type RowError struct {
	RowNumber int
	Row       map[string]string
	Kind      ErrorKind
	Message   string
}

// ErrorTracker accumulates per-row problems during one upload. Rows keep
// their file order; nothing is thrown away until the artifacts are
// written.
type ErrorTracker struct {
	headers []string
	entries []RowError
	counts  map[ErrorKind]int
}

func NewErrorTracker(headers []string) *ErrorTracker {
	return &ErrorTracker{
		headers: headers,
		counts:  make(map[ErrorKind]int),
	}
}

// Record appends one problem. The row map is kept by reference; callers
// do not mutate rows after recording.
func (t *ErrorTracker) Record(rowNumber int, row map[string]string, kind ErrorKind, message string) {
	t.entries = append(t.entries, RowError{
		RowNumber: rowNumber,
		Row:       row,
		Kind:      kind,
		Message:   message,
	})
	t.counts[kind]++
}

// HasBlocking reports whether the upload must abort: any validation or
// in-file duplicate error persists zero rows.
func (t *ErrorTracker) HasBlocking() bool {
	return t.counts[KindValidation] > 0 || t.counts[KindDuplicate] > 0
}

// ErrorCount is the number of failed rows excluding dependency skips
func (t *ErrorTracker) ErrorCount() int {
	return t.counts[KindValidation] + t.counts[KindDuplicate] + t.counts[KindSystem]
}

// Skipped is the number of rows dropped for missing dependencies
func (t *ErrorTracker) Skipped() int {
	return t.counts[KindDependencySkipped]
}

// Count returns the number of recorded entries of one kind
func (t *ErrorTracker) Count(kind ErrorKind) int {
	return t.counts[kind]
}

// Total returns the number of recorded entries across all kinds
func (t *ErrorTracker) Total() int {
	return len(t.entries)
}

// Entries returns the recorded problems in file order
func (t *ErrorTracker) Entries() []RowError {
	return t.entries
}

// Messages renders up to limit entries as "row N: message" lines, in
// file order. A limit <= 0 means no cap.
func (t *ErrorTracker) Messages(limit int) []string {
	return t.render(limit, func(RowError) bool { return true })
}

// MessagesOf renders up to limit entries of one kind
func (t *ErrorTracker) MessagesOf(kind ErrorKind, limit int) []string {
	return t.render(limit, func(e RowError) bool { return e.Kind == kind })
}

func (t *ErrorTracker) render(limit int, keep func(RowError) bool) []string {
	var out []string
	for _, e := range t.entries {
		if !keep(e) {
			continue
		}
		out = append(out, fmt.Sprintf("row %d: %s", e.RowNumber, e.Message))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Summary builds the response-facing aggregation: counts per kind plus
// the first topLimit messages.
func (t *ErrorTracker) Summary(topLimit int) *ErrorSummary {
	counts := make(map[string]int, len(t.counts))
	for kind, n := range t.counts {
		if n > 0 {
			counts[string(kind)] = n
		}
	}
	return &ErrorSummary{
		CountsByKind: counts,
		TopErrors:    t.Messages(topLimit),
	}
}

// Artifact kinds, used as keys of the errorFiles response map
const (
	ArtifactValidationErrors = "validationErrors"
	ArtifactSkippedRows      = "skippedRows"
	ArtifactAllFailedRows    = "allFailedRows"
	ArtifactErrorSummary     = "errorSummary"
)

// WriteArtifacts emits the per-upload error report files under dir and
// returns artifact-kind -> absolute path for the ones actually written.
// Empty categories produce no file, so a skip-only upload has no
// validation_errors artifact.
//
// Files are keyed {fileType}_{taskID}_{ts} to keep concurrent uploads
// from colliding:
//  1. ..._validation_errors.tsv - original rows that failed validation
//     or duplicated a key
//  2. ..._skipped_rows.tsv - original rows dropped for missing dependencies
//  3. ..._all_failed_rows_with_errors.tsv - every recorded row plus
//     Row_Number, Error_Type and Error_Reason columns
//  4. ..._error_summary.tsv - counts by error kind
func (t *ErrorTracker) WriteArtifacts(dir, fileType string, taskID int64, now time.Time) (map[string]string, error) {
	if len(t.entries) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	key := fmt.Sprintf("%s_%d_%s", fileType, taskID, now.UTC().Format("20060102150405"))
	path := func(suffix string) string {
		return filepath.Join(dir, fmt.Sprintf("%s_%s.tsv", key, suffix))
	}

	files := make(map[string]string)

	blocking := t.filter(func(e RowError) bool {
		return e.Kind == KindValidation || e.Kind == KindDuplicate
	})
	if len(blocking) > 0 {
		p := path("validation_errors")
		if err := t.writeRows(p, blocking, false); err != nil {
			return files, err
		}
		files[ArtifactValidationErrors] = p
	}

	skipped := t.filter(func(e RowError) bool { return e.Kind == KindDependencySkipped })
	if len(skipped) > 0 {
		p := path("skipped_rows")
		if err := t.writeRows(p, skipped, false); err != nil {
			return files, err
		}
		files[ArtifactSkippedRows] = p
	}

	allPath := path("all_failed_rows_with_errors")
	if err := t.writeRows(allPath, t.entries, true); err != nil {
		return files, err
	}
	files[ArtifactAllFailedRows] = allPath

	summaryPath := path("error_summary")
	if err := t.writeSummary(summaryPath); err != nil {
		return files, err
	}
	files[ArtifactErrorSummary] = summaryPath

	return files, nil
}

func (t *ErrorTracker) filter(keep func(RowError) bool) []RowError {
	var out []RowError
	for _, e := range t.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (t *ErrorTracker) writeRows(path string, entries []RowError, withReason bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'

	header := append([]string{}, t.headers...)
	if withReason {
		header = append(header, "Row_Number", "Error_Type", "Error_Reason")
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write artifact header: %w", err)
	}

	for _, e := range entries {
		record := make([]string, 0, len(header))
		for _, h := range t.headers {
			record = append(record, e.Row[h])
		}
		if withReason {
			record = append(record, strconv.Itoa(e.RowNumber), string(e.Kind), e.Message)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write artifact row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

func (t *ErrorTracker) writeSummary(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'

	if err := w.Write([]string{"Error_Type", "Count"}); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	for _, kind := range []ErrorKind{KindValidation, KindDependencySkipped, KindDuplicate, KindSystem} {
		if t.counts[kind] == 0 {
			continue
		}
		if err := w.Write([]string{string(kind), strconv.Itoa(t.counts[kind])}); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

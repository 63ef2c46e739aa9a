package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/audit"
	"github.com/assortlab/noos-go/internal/domain/catalog"
	"github.com/assortlab/noos-go/internal/domain/sales"
	"github.com/assortlab/noos-go/internal/domain/shared"
	"github.com/assortlab/noos-go/pkg/utils"
)

// Progress milestones shared by every pipeline. The scheduler's terminal
// write supplies the final 100.
const (
	progressValidating = 10
	progressParsing    = 20
	progressParsed     = 40
	progressProcessing = 50
	progressPersisting = 80
	progressFinalizing = 95
)

// Actor recorded on audit entries written by uploads
const auditActor = "system"

// Options carries the file-handling knobs shared by every pipeline
type Options struct {
	TempDir string // artifact and download directory
	MaxRows int    // hard cap on data rows per upload
}

// Pipelines bundles the four upload workloads behind one constructor
// so transports wire a single value.
type Pipelines struct {
	Styles *StylesPipeline
	Skus   *SkusPipeline
	Stores *StoresPipeline
	Sales  *SalesPipeline

	opts Options
}

func NewPipelines(
	styleRepo catalog.StyleRepository,
	skuRepo catalog.SkuRepository,
	storeRepo catalog.StoreRepository,
	salesRepo sales.Repository,
	auditRepo audit.Repository,
	clock shared.Clock,
	opts Options,
) *Pipelines {
	fields := NewFieldValidator()
	return &Pipelines{
		Styles: &StylesPipeline{repo: styleRepo, audits: auditRepo, fields: fields, clock: clock, opts: opts},
		Skus:   &SkusPipeline{repo: skuRepo, styles: styleRepo, audits: auditRepo, fields: fields, clock: clock, opts: opts},
		Stores: &StoresPipeline{repo: storeRepo, audits: auditRepo, fields: fields, clock: clock, opts: opts},
		Sales:  &SalesPipeline{repo: salesRepo, skus: skuRepo, stores: storeRepo, audits: auditRepo, fields: fields, clock: clock, opts: opts},
		opts:   opts,
	}
}

// Stage spools an upload body to disk so queued tasks do not pin their
// payloads in memory while waiting for a worker. Callers own the
// returned path and must remove it once the payload is consumed.
func (p *Pipelines) Stage(entity string, data []byte) (string, error) {
	dir := filepath.Join(p.opts.TempDir, "staging")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	path := filepath.Join(dir, utils.StagedFileName(entity))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to stage upload payload: %w", err)
	}
	return path, nil
}

func ensureNotCancelled(ctx context.Context, rep *scheduler.Reporter) error {
	if rep.Cancelled(ctx) {
		return scheduler.ErrCancelled
	}
	return nil
}

// parseUpload runs the shared head of every pipeline: the structure
// milestones, the cancellation checks around the parse, and the parse
// itself. A non-nil UploadResult means the parse failed structurally
// and carries the response body for synchronous callers.
func parseUpload(ctx context.Context, rep *scheduler.Reporter, data []byte, headers []string, maxRows int) (*ParsedFile, *UploadResult, error) {
	rep.Milestone(ctx, progressValidating, "validating", "Validating file structure")
	if err := ensureNotCancelled(ctx, rep); err != nil {
		return nil, nil, err
	}

	rep.Milestone(ctx, progressParsing, "parsing", "Parsing TSV content")
	parsed, err := ParseTSV(bytes.NewReader(data), headers, maxRows)
	if err != nil {
		return nil, structuralFailure(err), err
	}

	rep.SetTotalRecords(len(parsed.Rows))
	rep.Milestone(ctx, progressParsed, "parsed", fmt.Sprintf("Parsed %d data rows", len(parsed.Rows)))
	if err := ensureNotCancelled(ctx, rep); err != nil {
		return nil, nil, err
	}

	rep.Milestone(ctx, progressProcessing, "processing", "Validating and resolving rows")
	return parsed, nil, nil
}

// tickRows reports row-loop progress between the processing and
// persisting milestones. Write frequency is bounded by the reporter's
// throttle; this just spaces the attempts.
func tickRows(ctx context.Context, rep *scheduler.Reporter, done, total int) {
	if total == 0 || done%500 != 0 {
		return
	}
	pct := progressProcessing + float64(done)/float64(total)*(progressPersisting-progressProcessing)
	rep.Tick(ctx, pct, fmt.Sprintf("Processed %d/%d rows", done, total))
}

// writeArtifacts persists the error report files. Artifact IO failures
// are logged, not fatal: the upload outcome stands on its own.
func writeArtifacts(tracker *ErrorTracker, opts Options, fileType string, taskID int64, now time.Time) map[string]string {
	if tracker.Total() == 0 {
		return nil
	}
	files, err := tracker.WriteArtifacts(opts.TempDir, fileType, taskID, now)
	if err != nil {
		slog.Warn("failed to write upload error artifacts",
			"file_type", fileType, "task_id", taskID, "error", err)
	}
	return files
}

// recordAudit appends the batch, logging on failure: the data change is
// already committed, so a broken audit trail must not fail the upload.
func recordAudit(ctx context.Context, repo audit.Repository, entries []*audit.Entry) {
	if len(entries) == 0 {
		return
	}
	if err := repo.RecordBatch(ctx, entries); err != nil {
		slog.Warn("failed to record audit entries", "count", len(entries), "error", err)
	}
}

// masterResult shapes the success response for an upsert upload
func masterResult(label string, processed, inserted, updated, unchanged int, tracker *ErrorTracker, files map[string]string) *UploadResult {
	res := &UploadResult{
		Success: true,
		Message: fmt.Sprintf("%s upload complete: %d inserted, %d updated, %d unchanged", label, inserted, updated, unchanged),
		Messages: []string{
			fmt.Sprintf("Inserted: %d", inserted),
			fmt.Sprintf("Updated: %d", updated),
			fmt.Sprintf("Unchanged: %d", unchanged),
		},
		RecordCount:  processed,
		ErrorCount:   tracker.ErrorCount(),
		SkippedCount: tracker.Skipped(),
		ErrorFiles:   files,
	}
	if tracker.Skipped() > 0 {
		res.Warnings = tracker.MessagesOf(KindDependencySkipped, maxTopErrors)
		res.ErrorSummary = tracker.Summary(maxTopErrors)
	}
	return res
}

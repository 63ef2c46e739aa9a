package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/audit"
	"github.com/assortlab/noos-go/internal/domain/catalog"
	"github.com/assortlab/noos-go/internal/domain/sales"
	"github.com/assortlab/noos-go/internal/domain/shared"
)

// SalesPipeline ingests the sales file. Unlike the master pipelines it
// replaces the whole table: a successful run deletes every previous row
// and inserts the new ones in one transaction. Rows referencing unknown
// SKUs or branches are skipped rather than failing the upload.
type SalesPipeline struct {
	repo   sales.Repository
	skus   catalog.SkuRepository
	stores catalog.StoreRepository
	audits audit.Repository
	fields *FieldValidator
	clock  shared.Clock
	opts   Options
}

// Run executes one sales upload from raw bytes to the committed replacement
func (p *SalesPipeline) Run(ctx context.Context, rep *scheduler.Reporter, data []byte) (*UploadResult, error) {
	parsed, failed, err := parseUpload(ctx, rep, data, SalesHeaders, p.opts.MaxRows)
	if err != nil {
		return failed, err
	}

	skuIDs, err := p.skus.CodeToID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sku lookup: %w", err)
	}
	branchIDs, err := p.stores.BranchToID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load store lookup: %w", err)
	}

	tracker := NewErrorTracker(SalesHeaders)
	rows := make([]*sales.Sale, 0, len(parsed.Rows))

	for i, row := range parsed.Rows {
		if fes := p.fields.CheckRow(row, SalesHeaders); len(fes) > 0 {
			for _, fe := range fes {
				tracker.Record(row.Number, row.Cells, KindValidation, fe.Message)
			}
			continue
		}
		if row.Extra > 0 {
			tracker.Record(row.Number, row.Cells, KindValidation,
				fmt.Sprintf("row has %d unexpected extra column(s)", row.Extra))
			continue
		}

		skuID, ok := skuIDs[NormalizeKey(row.Value("sku"))]
		if !ok {
			tracker.Record(row.Number, row.Cells, KindDependencySkipped,
				fmt.Sprintf("sku '%s' not found in master data", row.Value("sku")))
			continue
		}
		storeID, ok := branchIDs[NormalizeKey(row.Value("channel"))]
		if !ok {
			tracker.Record(row.Number, row.Cells, KindDependencySkipped,
				fmt.Sprintf("channel '%s' does not match any store branch", row.Value("channel")))
			continue
		}

		day, _ := time.Parse("2006-01-02", row.Value("day"))
		quantity, _ := strconv.Atoi(row.Value("quantity"))
		discount, _ := decimal.NewFromString(row.Value("discount"))
		revenue, _ := decimal.NewFromString(row.Value("revenue"))

		rows = append(rows, &sales.Sale{
			Date:     day,
			SkuID:    skuID,
			StoreID:  storeID,
			Quantity: quantity,
			Discount: discount,
			Revenue:  revenue,
		})
		tickRows(ctx, rep, i+1, len(parsed.Rows))
	}

	rep.SetErrorCount(tracker.ErrorCount())
	files := writeArtifacts(tracker, p.opts, "sales", rep.Task().ID(), p.clock.Now())
	if tracker.HasBlocking() {
		return abortResult(tracker, files), &ErrValidationFailed{ErrorCount: tracker.ErrorCount()}
	}

	if err := ensureNotCancelled(ctx, rep); err != nil {
		return nil, err
	}
	rep.Milestone(ctx, progressPersisting, "persisting", "Replacing sales data")

	prior, err := p.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count existing sales: %w", err)
	}
	if err := p.repo.ReplaceAll(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to replace sales: %w", err)
	}

	now := p.clock.Now()
	recordAudit(ctx, p.audits, []*audit.Entry{
		{
			Timestamp:  now,
			EntityType: "sale",
			Action:     audit.ActionBulkDelete,
			Details:    fmt.Sprintf("Deleted %d sales rows", prior),
			ModifiedBy: auditActor,
		},
		{
			Timestamp:  now,
			EntityType: "sale",
			Action:     audit.ActionBulkInsert,
			Details:    fmt.Sprintf("Inserted %d sales rows", len(rows)),
			ModifiedBy: auditActor,
		},
	})

	rep.SetProcessedRecords(len(rows))
	result := &UploadResult{
		Success: true,
		Message: fmt.Sprintf("Sales upload complete: %d rows replaced the previous %d", len(rows), prior),
		Messages: []string{
			fmt.Sprintf("Inserted: %d", len(rows)),
			fmt.Sprintf("Replaced: %d", prior),
		},
		RecordCount:  len(rows),
		ErrorCount:   tracker.ErrorCount(),
		SkippedCount: tracker.Skipped(),
		ErrorFiles:   files,
	}
	if tracker.Skipped() > 0 {
		result.Warnings = tracker.MessagesOf(KindDependencySkipped, maxTopErrors)
		result.ErrorSummary = tracker.Summary(maxTopErrors)
	}
	rep.Milestone(ctx, progressFinalizing, "finalizing", result.Message)
	return result, nil
}

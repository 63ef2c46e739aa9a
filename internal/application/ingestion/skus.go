package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/audit"
	"github.com/assortlab/noos-go/internal/domain/catalog"
	"github.com/assortlab/noos-go/internal/domain/shared"
)

// SkusPipeline ingests the SKUs master file. Each row references a
// style by code; rows whose style is unknown are skipped, not fatal.
type SkusPipeline struct {
	repo   catalog.SkuRepository
	styles catalog.StyleRepository
	audits audit.Repository
	fields *FieldValidator
	clock  shared.Clock
	opts   Options
}

// Run executes one SKUs upload from raw bytes to committed upserts
func (p *SkusPipeline) Run(ctx context.Context, rep *scheduler.Reporter, data []byte) (*UploadResult, error) {
	parsed, failed, err := parseUpload(ctx, rep, data, SkusHeaders, p.opts.MaxRows)
	if err != nil {
		return failed, err
	}

	styleIDs, err := p.styles.CodeToID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load style lookup: %w", err)
	}

	tracker := NewErrorTracker(SkusHeaders)
	seen := make(map[string]int, len(parsed.Rows))
	incoming := make([]*catalog.SKU, 0, len(parsed.Rows))

	for i, row := range parsed.Rows {
		if fes := p.fields.CheckRow(row, SkusHeaders); len(fes) > 0 {
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

		styleID, ok := styleIDs[NormalizeKey(row.Value("style"))]
		if !ok {
			tracker.Record(row.Number, row.Cells, KindDependencySkipped,
				fmt.Sprintf("style '%s' not found in master data", row.Value("style")))
			continue
		}

		code := NormalizeKey(row.Value("sku"))
		if first, dup := seen[code]; dup {
			tracker.Record(row.Number, row.Cells, KindDuplicate,
				fmt.Sprintf("duplicate sku '%s', first seen at row %d", code, first))
			continue
		}
		seen[code] = row.Number

		incoming = append(incoming, &catalog.SKU{
			Code:    code,
			StyleID: styleID,
			Size:    row.Value("size"),
		})
		tickRows(ctx, rep, i+1, len(parsed.Rows))
	}

	rep.SetErrorCount(tracker.ErrorCount())
	files := writeArtifacts(tracker, p.opts, "skus", rep.Task().ID(), p.clock.Now())
	if tracker.HasBlocking() {
		return abortResult(tracker, files), &ErrValidationFailed{ErrorCount: tracker.ErrorCount()}
	}

	if err := ensureNotCancelled(ctx, rep); err != nil {
		return nil, err
	}
	rep.Milestone(ctx, progressPersisting, "persisting", "Persisting SKUs")

	existing, err := p.existingByCode(ctx)
	if err != nil {
		return nil, err
	}

	now := p.clock.Now()
	var inserts, updates []*catalog.SKU
	var entries []*audit.Entry
	unchanged := 0
	for _, in := range incoming {
		ex, ok := existing[in.Code]
		if !ok {
			inserts = append(inserts, in)
			continue
		}
		diff := ex.Diff(in)
		if len(diff) == 0 {
			unchanged++
			continue
		}
		ex.ApplyFrom(in)
		updates = append(updates, ex)
		entries = append(entries, &audit.Entry{
			Timestamp:  now,
			EntityType: "sku",
			EntityID:   ex.ID,
			Action:     audit.ActionUpdate,
			Details:    strings.Join(diff, "; "),
			ModifiedBy: auditActor,
		})
	}

	if err := p.repo.ApplyBatch(ctx, inserts, updates); err != nil {
		return nil, fmt.Errorf("failed to persist SKUs: %w", err)
	}
	for _, in := range inserts {
		entries = append(entries, &audit.Entry{
			Timestamp:  now,
			EntityType: "sku",
			EntityID:   in.ID,
			Action:     audit.ActionInsert,
			Details:    "New sku created: " + in.Code,
			ModifiedBy: auditActor,
		})
	}
	recordAudit(ctx, p.audits, entries)

	rep.SetProcessedRecords(len(incoming))
	result := masterResult("SKUs", len(incoming), len(inserts), len(updates), unchanged, tracker, files)
	rep.Milestone(ctx, progressFinalizing, "finalizing", result.Message)
	return result, nil
}

func (p *SkusPipeline) existingByCode(ctx context.Context) (map[string]*catalog.SKU, error) {
	all, err := p.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing SKUs: %w", err)
	}
	m := make(map[string]*catalog.SKU, len(all))
	for _, k := range all {
		m[k.Code] = k
	}
	return m, nil
}

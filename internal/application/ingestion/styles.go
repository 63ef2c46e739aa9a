package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/audit"
	"github.com/assortlab/noos-go/internal/domain/catalog"
	"github.com/assortlab/noos-go/internal/domain/shared"
)

// StylesPipeline ingests the styles master file. Styles carry no
// foreign keys, so rows either validate and upsert or fail.
type StylesPipeline struct {
	repo   catalog.StyleRepository
	audits audit.Repository
	fields *FieldValidator
	clock  shared.Clock
	opts   Options
}

// Run executes one styles upload from raw bytes to committed upserts
func (p *StylesPipeline) Run(ctx context.Context, rep *scheduler.Reporter, data []byte) (*UploadResult, error) {
	parsed, failed, err := parseUpload(ctx, rep, data, StylesHeaders, p.opts.MaxRows)
	if err != nil {
		return failed, err
	}

	tracker := NewErrorTracker(StylesHeaders)
	seen := make(map[string]int, len(parsed.Rows))
	incoming := make([]*catalog.Style, 0, len(parsed.Rows))

	for i, row := range parsed.Rows {
		if fes := p.fields.CheckRow(row, StylesHeaders); len(fes) > 0 {
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

		code := NormalizeKey(row.Value("style"))
		if first, dup := seen[code]; dup {
			tracker.Record(row.Number, row.Cells, KindDuplicate,
				fmt.Sprintf("duplicate style '%s', first seen at row %d", code, first))
			continue
		}
		seen[code] = row.Number

		mrp, _ := decimal.NewFromString(row.Value("mrp"))
		incoming = append(incoming, &catalog.Style{
			StyleCode:   code,
			Brand:       row.Value("brand"),
			Category:    row.Value("category"),
			SubCategory: row.Value("sub_category"),
			MRP:         mrp,
			Gender:      row.Value("gender"),
		})
		tickRows(ctx, rep, i+1, len(parsed.Rows))
	}

	rep.SetErrorCount(tracker.ErrorCount())
	files := writeArtifacts(tracker, p.opts, "styles", rep.Task().ID(), p.clock.Now())
	if tracker.HasBlocking() {
		return abortResult(tracker, files), &ErrValidationFailed{ErrorCount: tracker.ErrorCount()}
	}

	if err := ensureNotCancelled(ctx, rep); err != nil {
		return nil, err
	}
	rep.Milestone(ctx, progressPersisting, "persisting", "Persisting styles")

	existing, err := p.existingByCode(ctx)
	if err != nil {
		return nil, err
	}

	now := p.clock.Now()
	var inserts, updates []*catalog.Style
	var entries []*audit.Entry
	unchanged := 0
	for _, in := range incoming {
		ex, ok := existing[in.StyleCode]
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
			EntityType: "style",
			EntityID:   ex.ID,
			Action:     audit.ActionUpdate,
			Details:    strings.Join(diff, "; "),
			ModifiedBy: auditActor,
		})
	}

	if err := p.repo.ApplyBatch(ctx, inserts, updates); err != nil {
		return nil, fmt.Errorf("failed to persist styles: %w", err)
	}
	for _, in := range inserts {
		entries = append(entries, &audit.Entry{
			Timestamp:  now,
			EntityType: "style",
			EntityID:   in.ID,
			Action:     audit.ActionInsert,
			Details:    "New style created: " + in.StyleCode,
			ModifiedBy: auditActor,
		})
	}
	recordAudit(ctx, p.audits, entries)

	rep.SetProcessedRecords(len(incoming))
	result := masterResult("Styles", len(incoming), len(inserts), len(updates), unchanged, tracker, files)
	rep.Milestone(ctx, progressFinalizing, "finalizing", result.Message)
	return result, nil
}

func (p *StylesPipeline) existingByCode(ctx context.Context) (map[string]*catalog.Style, error) {
	all, err := p.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing styles: %w", err)
	}
	m := make(map[string]*catalog.Style, len(all))
	for _, s := range all {
		m[s.StyleCode] = s
	}
	return m, nil
}

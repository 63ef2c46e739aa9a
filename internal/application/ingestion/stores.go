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

// StoresPipeline ingests the stores master file, keyed by branch
type StoresPipeline struct {
	repo   catalog.StoreRepository
	audits audit.Repository
	fields *FieldValidator
	clock  shared.Clock
	opts   Options
}

// Run executes one stores upload from raw bytes to committed upserts
func (p *StoresPipeline) Run(ctx context.Context, rep *scheduler.Reporter, data []byte) (*UploadResult, error) {
	parsed, failed, err := parseUpload(ctx, rep, data, StoresHeaders, p.opts.MaxRows)
	if err != nil {
		return failed, err
	}

	tracker := NewErrorTracker(StoresHeaders)
	seen := make(map[string]int, len(parsed.Rows))
	incoming := make([]*catalog.Store, 0, len(parsed.Rows))

	for i, row := range parsed.Rows {
		if fes := p.fields.CheckRow(row, StoresHeaders); len(fes) > 0 {
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

		branch := NormalizeKey(row.Value("branch"))
		if first, dup := seen[branch]; dup {
			tracker.Record(row.Number, row.Cells, KindDuplicate,
				fmt.Sprintf("duplicate branch '%s', first seen at row %d", branch, first))
			continue
		}
		seen[branch] = row.Number

		incoming = append(incoming, &catalog.Store{
			Branch: branch,
			City:   row.Value("city"),
		})
		tickRows(ctx, rep, i+1, len(parsed.Rows))
	}

	rep.SetErrorCount(tracker.ErrorCount())
	files := writeArtifacts(tracker, p.opts, "stores", rep.Task().ID(), p.clock.Now())
	if tracker.HasBlocking() {
		return abortResult(tracker, files), &ErrValidationFailed{ErrorCount: tracker.ErrorCount()}
	}

	if err := ensureNotCancelled(ctx, rep); err != nil {
		return nil, err
	}
	rep.Milestone(ctx, progressPersisting, "persisting", "Persisting stores")

	existing, err := p.existingByBranch(ctx)
	if err != nil {
		return nil, err
	}

	now := p.clock.Now()
	var inserts, updates []*catalog.Store
	var entries []*audit.Entry
	unchanged := 0
	for _, in := range incoming {
		ex, ok := existing[in.Branch]
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
			EntityType: "store",
			EntityID:   ex.ID,
			Action:     audit.ActionUpdate,
			Details:    strings.Join(diff, "; "),
			ModifiedBy: auditActor,
		})
	}

	if err := p.repo.ApplyBatch(ctx, inserts, updates); err != nil {
		return nil, fmt.Errorf("failed to persist stores: %w", err)
	}
	for _, in := range inserts {
		entries = append(entries, &audit.Entry{
			Timestamp:  now,
			EntityType: "store",
			EntityID:   in.ID,
			Action:     audit.ActionInsert,
			Details:    "New store created: " + in.Branch,
			ModifiedBy: auditActor,
		})
	}
	recordAudit(ctx, p.audits, entries)

	rep.SetProcessedRecords(len(incoming))
	result := masterResult("Stores", len(incoming), len(inserts), len(updates), unchanged, tracker, files)
	rep.Milestone(ctx, progressFinalizing, "finalizing", result.Message)
	return result, nil
}

func (p *StoresPipeline) existingByBranch(ctx context.Context) (map[string]*catalog.Store, error) {
	all, err := p.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing stores: %w", err)
	}
	m := make(map[string]*catalog.Store, len(all))
	for _, st := range all {
		m[st.Branch] = st
	}
	return m, nil
}

// Package download materialises entity exports as TSV files. Uploads
// and downloads share one header set per entity, so a downloaded file
// can be re-uploaded as-is.
package download

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/assortlab/noos-go/internal/application/ingestion"
	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/catalog"
	"github.com/assortlab/noos-go/internal/domain/noos"
	"github.com/assortlab/noos-go/internal/domain/sales"
	"github.com/assortlab/noos-go/internal/domain/shared"
	"github.com/assortlab/noos-go/internal/domain/task"
)

// NoosHeaders is the extended header of the classification export
var NoosHeaders = []string{
	"Category", "Style Code", "Style ROS", "Type", "Style Rev Contri",
	"Total Quantity", "Total Revenue", "Days Available", "Days With Sales",
	"Avg Discount", "Calculated Date",
}

// Timestamp rendering of CalculatedAt in the NOOS export
const calculatedAtLayout = "2006-01-02 15:04:05"

// Builder writes one export file per invocation into its directory.
// File names embed the task id and a timestamp; the path lands in
// task.resultPath for the result endpoint to stream.
type Builder struct {
	styleRepo  catalog.StyleRepository
	skuRepo    catalog.SkuRepository
	storeRepo  catalog.StoreRepository
	salesRepo  sales.Repository
	resultRepo noos.ResultRepository
	clock      shared.Clock
	dir        string
}

func NewBuilder(
	styleRepo catalog.StyleRepository,
	skuRepo catalog.SkuRepository,
	storeRepo catalog.StoreRepository,
	salesRepo sales.Repository,
	resultRepo noos.ResultRepository,
	clock shared.Clock,
	dir string,
) *Builder {
	return &Builder{
		styleRepo:  styleRepo,
		skuRepo:    skuRepo,
		storeRepo:  storeRepo,
		salesRepo:  salesRepo,
		resultRepo: resultRepo,
		clock:      clock,
		dir:        dir,
	}
}

// Work returns the scheduler workload for one download kind. The runID
// only applies to the NOOS export; zero means latest run.
func (b *Builder) Work(kind task.Kind, runID int64) scheduler.Work {
	switch kind {
	case task.KindStylesDownload:
		return b.Styles
	case task.KindSkusDownload:
		return b.Skus
	case task.KindStoresDownload:
		return b.Stores
	case task.KindSalesDownload:
		return b.Sales
	case task.KindNoosDownload:
		return func(ctx context.Context, rep *scheduler.Reporter) error {
			return b.Noos(ctx, rep, runID)
		}
	default:
		return nil
	}
}

// Styles exports the styles master in upload format
func (b *Builder) Styles(ctx context.Context, rep *scheduler.Reporter) error {
	rep.Milestone(ctx, 10, "querying", "Loading styles")
	if rep.Cancelled(ctx) {
		return scheduler.ErrCancelled
	}
	styles, err := b.styleRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load styles: %w", err)
	}

	rows := make([][]string, 0, len(styles))
	for _, s := range styles {
		rows = append(rows, []string{s.StyleCode, s.Brand, s.Category, s.SubCategory, s.MRP.String(), s.Gender})
	}
	return b.write(ctx, rep, "styles", ingestion.StylesHeaders, rows)
}

// Skus exports the SKU master in upload format, resolving style ids
// back to codes.
func (b *Builder) Skus(ctx context.Context, rep *scheduler.Reporter) error {
	rep.Milestone(ctx, 10, "querying", "Loading SKUs")
	if rep.Cancelled(ctx) {
		return scheduler.ErrCancelled
	}
	skus, err := b.skuRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load SKUs: %w", err)
	}
	styleCodes, err := b.styleCodesByID(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(skus))
	for _, k := range skus {
		rows = append(rows, []string{k.Code, styleCodes[k.StyleID], k.Size})
	}
	return b.write(ctx, rep, "skus", ingestion.SkusHeaders, rows)
}

// Stores exports the store master in upload format
func (b *Builder) Stores(ctx context.Context, rep *scheduler.Reporter) error {
	rep.Milestone(ctx, 10, "querying", "Loading stores")
	if rep.Cancelled(ctx) {
		return scheduler.ErrCancelled
	}
	stores, err := b.storeRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stores: %w", err)
	}

	rows := make([][]string, 0, len(stores))
	for _, st := range stores {
		rows = append(rows, []string{st.Branch, st.City})
	}
	return b.write(ctx, rep, "stores", ingestion.StoresHeaders, rows)
}

// Sales exports the sales table in upload format, resolving sku and
// store ids back to their codes.
func (b *Builder) Sales(ctx context.Context, rep *scheduler.Reporter) error {
	rep.Milestone(ctx, 10, "querying", "Loading sales")
	if rep.Cancelled(ctx) {
		return scheduler.ErrCancelled
	}
	all, err := b.salesRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sales: %w", err)
	}

	skuCodes := make(map[int64]string)
	skus, err := b.skuRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load SKUs: %w", err)
	}
	for _, k := range skus {
		skuCodes[k.ID] = k.Code
	}

	branches := make(map[int64]string)
	stores, err := b.storeRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stores: %w", err)
	}
	for _, st := range stores {
		branches[st.ID] = st.Branch
	}

	rows := make([][]string, 0, len(all))
	for _, s := range all {
		rows = append(rows, []string{
			s.Date.Format("2006-01-02"),
			skuCodes[s.SkuID],
			branches[s.StoreID],
			strconv.Itoa(s.Quantity),
			s.Discount.String(),
			s.Revenue.String(),
		})
	}
	return b.write(ctx, rep, "sales", ingestion.SalesHeaders, rows)
}

// Noos exports one classification run with the extended header. A zero
// runID serves the latest run.
func (b *Builder) Noos(ctx context.Context, rep *scheduler.Reporter, runID int64) error {
	rep.Milestone(ctx, 10, "querying", "Loading classification results")
	if rep.Cancelled(ctx) {
		return scheduler.ErrCancelled
	}

	if runID == 0 {
		latest, err := b.resultRepo.LatestRunID(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve latest run: %w", err)
		}
		if latest == 0 {
			return fmt.Errorf("no classification results available")
		}
		runID = latest
	}

	results, err := b.resultRepo.FindByRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load results for run %d: %w", runID, err)
	}
	if len(results) == 0 {
		return fmt.Errorf("no results for run %d", runID)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Category,
			r.StyleCode,
			r.StyleROS.String(),
			string(r.Type),
			r.StyleRevContribution.String(),
			strconv.Itoa(r.TotalQuantitySold),
			r.TotalRevenue.String(),
			strconv.Itoa(r.DaysAvailable),
			strconv.Itoa(r.DaysWithSales),
			r.AvgDiscount.String(),
			r.CalculatedAt.Format(calculatedAtLayout),
		})
	}
	return b.write(ctx, rep, "noos", NoosHeaders, rows)
}

// write flushes rows to the export file and records the result path and
// row count on the task. The cancellation check before writing is the
// last one; a file already on disk when the flag flips stays there for
// the janitor.
func (b *Builder) write(ctx context.Context, rep *scheduler.Reporter, kind string, header []string, rows [][]string) error {
	rep.Milestone(ctx, 50, "writing", fmt.Sprintf("Writing %d rows", len(rows)))
	if rep.Cancelled(ctx) {
		return scheduler.ErrCancelled
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	path := filepath.Join(b.dir, fmt.Sprintf("%s_%d_%s.tsv",
		kind, rep.Task().ID(), b.clock.Now().UTC().Format("20060102150405")))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush export file: %w", err)
	}

	rep.Task().SetResult(path, len(rows))
	rep.Milestone(ctx, 95, "finalizing", fmt.Sprintf("Exported %d rows to %s", len(rows), filepath.Base(path)))
	return nil
}

func (b *Builder) styleCodesByID(ctx context.Context) (map[int64]string, error) {
	styles, err := b.styleRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load styles: %w", err)
	}
	m := make(map[int64]string, len(styles))
	for _, s := range styles {
		m[s.ID] = s.StyleCode
	}
	return m, nil
}

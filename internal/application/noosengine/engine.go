// Package noosengine implements the NOOS classification run: load
// sales, strip liquidation noise, aggregate per style, benchmark per
// category, classify, and replace the results table.
package noosengine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/catalog"
	"github.com/assortlab/noos-go/internal/domain/noos"
	"github.com/assortlab/noos-go/internal/domain/sales"
	"github.com/assortlab/noos-go/internal/domain/shared"
)

// ErrNoSales fails a run whose date range matches no sales rows.
// The message is surfaced verbatim as the task's errorMessage.
var ErrNoSales = errors.New("No sales data in range")

// Core styles must earn their revenue at full price; cap on the
// discount share of gross.
var coreDiscountCap = decimal.NewFromFloat(0.15)

// Metric precision on persisted results
const resultPlaces = 4

// Cancellation poll interval inside the classification loop
const classifyCheckEvery = 50

// Engine executes one classification run per invocation. Stateless
// between runs; safe to share across workers, though concurrent runs
// race on the results table and the last committed run wins.
type Engine struct {
	salesRepo  sales.Repository
	skuRepo    catalog.SkuRepository
	styleRepo  catalog.StyleRepository
	resultRepo noos.ResultRepository
	clock      shared.Clock
}

func NewEngine(
	salesRepo sales.Repository,
	skuRepo catalog.SkuRepository,
	styleRepo catalog.StyleRepository,
	resultRepo noos.ResultRepository,
	clock shared.Clock,
) *Engine {
	return &Engine{
		salesRepo:  salesRepo,
		skuRepo:    skuRepo,
		styleRepo:  styleRepo,
		resultRepo: resultRepo,
		clock:      clock,
	}
}

// RunStats summarises a completed run
type RunStats struct {
	SalesLoaded  int
	SalesDropped int
	Styles       int
	Core         int
	Bestseller   int
	Fashion      int
}

// Message renders the completion summary shown on the task
func (s *RunStats) Message() string {
	return fmt.Sprintf("NOOS classification complete: %d styles (%d core, %d bestseller, %d fashion)",
		s.Styles, s.Core, s.Bestseller, s.Fashion)
}

// styleAgg accumulates one style's sales during aggregation
type styleAgg struct {
	style    *catalog.Style
	quantity int
	revenue  decimal.Decimal
	discount decimal.Decimal
	days     map[string]struct{}
}

// benchmark holds one category's reference metrics
type benchmark struct {
	totalRevenue     decimal.Decimal
	avgRevenuePerDay decimal.Decimal
	avgConsistency   decimal.Decimal
}

// Run executes the six classification phases. Cancellation is honoured
// at every phase boundary and every 50 styles inside classification;
// once observed, nothing further is persisted.
func (e *Engine) Run(ctx context.Context, rep *scheduler.Reporter, params *noos.Parameters) (*RunStats, error) {
	// Phase 1: load
	rep.Milestone(ctx, 5, "loading", "Loading sales data")
	loaded, err := e.salesRepo.FindBetween(ctx, params.AnalysisStartDate, params.AnalysisEndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	if len(loaded) == 0 {
		return nil, ErrNoSales
	}
	rep.Milestone(ctx, 20, "loaded", fmt.Sprintf("Loaded %d sales rows", len(loaded)))
	if rep.Cancelled(ctx) {
		return nil, scheduler.ErrCancelled
	}

	// Phase 2: liquidation cleanup. Clearance rows distort per-day
	// revenue, so anything past the discount threshold is dropped
	// before style metrics are computed.
	threshold := decimal.NewFromFloat(params.LiquidationThreshold)
	kept := make([]*sales.Sale, 0, len(loaded))
	for _, s := range loaded {
		if s.Revenue.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if s.DiscountShare().GreaterThan(threshold) {
			continue
		}
		kept = append(kept, s)
	}
	dropped := len(loaded) - len(kept)
	rep.Milestone(ctx, 35, "cleanup", fmt.Sprintf("Dropped %d liquidation rows, %d remain", dropped, len(kept)))
	if rep.Cancelled(ctx) {
		return nil, scheduler.ErrCancelled
	}

	// Phase 3: aggregate per style via in-memory joins
	aggs, err := e.aggregate(ctx, kept)
	if err != nil {
		return nil, err
	}
	windowDays := e.windowDays(params, kept)
	rep.SetTotalRecords(len(aggs))
	rep.Milestone(ctx, 50, "aggregating", fmt.Sprintf("Aggregated sales into %d styles", len(aggs)))
	if rep.Cancelled(ctx) {
		return nil, scheduler.ErrCancelled
	}

	// Phase 4: category benchmarks
	benchmarks := e.benchmarks(aggs, params, windowDays)
	rep.Milestone(ctx, 55, "benchmarks", fmt.Sprintf("Computed benchmarks for %d categories", len(benchmarks)))
	if rep.Cancelled(ctx) {
		return nil, scheduler.ErrCancelled
	}

	// Phase 5: classify
	results, stats, err := e.classify(ctx, rep, aggs, benchmarks, params, windowDays)
	if err != nil {
		return nil, err
	}
	stats.SalesLoaded = len(loaded)
	stats.SalesDropped = dropped
	rep.Milestone(ctx, 85, "classified", fmt.Sprintf("Classified %d styles", len(results)))
	if rep.Cancelled(ctx) {
		return nil, scheduler.ErrCancelled
	}

	// Phase 6: persist, replacing the previous run atomically
	rep.Milestone(ctx, 90, "persisting", "Replacing classification results")
	if err := e.resultRepo.ReplaceAll(ctx, results); err != nil {
		return nil, fmt.Errorf("failed to persist results: %w", err)
	}

	rep.SetProcessedRecords(len(results))
	rep.Milestone(ctx, 95, "finalizing", stats.Message())
	return stats, nil
}

// aggregate joins sales to styles through the sku projection and sums
// quantity, revenue, discount and distinct sale days per style. Lookup
// maps are built once; the hot loop touches no storage.
func (e *Engine) aggregate(ctx context.Context, kept []*sales.Sale) (map[int64]*styleAgg, error) {
	styleBySku, err := e.skuRepo.StyleIDBySkuID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sku projection: %w", err)
	}
	styles, err := e.styleRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load styles: %w", err)
	}
	styleByID := make(map[int64]*catalog.Style, len(styles))
	for _, st := range styles {
		styleByID[st.ID] = st
	}

	aggs := make(map[int64]*styleAgg)
	for _, s := range kept {
		styleID, ok := styleBySku[s.SkuID]
		if !ok {
			continue
		}
		st, ok := styleByID[styleID]
		if !ok {
			continue
		}
		agg, ok := aggs[styleID]
		if !ok {
			agg = &styleAgg{style: st, days: make(map[string]struct{})}
			aggs[styleID] = agg
		}
		agg.quantity += s.Quantity
		agg.revenue = agg.revenue.Add(s.Revenue)
		agg.discount = agg.discount.Add(s.Discount)
		agg.days[s.Date.Format("2006-01-02")] = struct{}{}
	}
	return aggs, nil
}

// windowDays resolves the day count for the window availability policy.
// Missing bounds fall back to the span of the surviving sales, so an
// unbounded run still measures against real coverage.
func (e *Engine) windowDays(params *noos.Parameters, kept []*sales.Sale) int {
	if params.AvailabilityPolicy != noos.AvailabilityWindow || len(kept) == 0 {
		return 0
	}

	var start, end time.Time
	if params.AnalysisStartDate != nil {
		start = *params.AnalysisStartDate
	}
	if params.AnalysisEndDate != nil {
		end = *params.AnalysisEndDate
	}
	if start.IsZero() || end.IsZero() {
		minDate, maxDate := kept[0].Date, kept[0].Date
		for _, s := range kept[1:] {
			if s.Date.Before(minDate) {
				minDate = s.Date
			}
			if s.Date.After(maxDate) {
				maxDate = s.Date
			}
		}
		if start.IsZero() {
			start = minDate
		}
		if end.IsZero() {
			end = maxDate
		}
	}

	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return days
}

// daysAvailable applies the configured availability policy to one style
func daysAvailable(agg *styleAgg, params *noos.Parameters, windowDays int) int {
	if params.AvailabilityPolicy == noos.AvailabilityWindow && windowDays > 0 {
		return windowDays
	}
	if len(agg.days) < 1 {
		return 1
	}
	return len(agg.days)
}

func (e *Engine) benchmarks(aggs map[int64]*styleAgg, params *noos.Parameters, windowDays int) map[string]*benchmark {
	type accum struct {
		revenue        decimal.Decimal
		revenuePerDay  decimal.Decimal
		consistencySum decimal.Decimal
		styles         int64
	}

	byCategory := make(map[string]*accum)
	for _, agg := range aggs {
		acc, ok := byCategory[agg.style.Category]
		if !ok {
			acc = &accum{}
			byCategory[agg.style.Category] = acc
		}
		da := decimal.NewFromInt(int64(daysAvailable(agg, params, windowDays)))
		acc.revenue = acc.revenue.Add(agg.revenue)
		acc.revenuePerDay = acc.revenuePerDay.Add(agg.revenue.Div(da))
		acc.consistencySum = acc.consistencySum.Add(decimal.NewFromInt(int64(len(agg.days))).Div(da))
		acc.styles++
	}

	out := make(map[string]*benchmark, len(byCategory))
	for cat, acc := range byCategory {
		n := decimal.NewFromInt(acc.styles)
		out[cat] = &benchmark{
			totalRevenue:     acc.revenue,
			avgRevenuePerDay: acc.revenuePerDay.Div(n),
			avgConsistency:   acc.consistencySum.Div(n),
		}
	}
	return out
}

// classify evaluates the rules per style, in category/styleCode order so
// runs over identical data produce identical row sequences.
func (e *Engine) classify(
	ctx context.Context,
	rep *scheduler.Reporter,
	aggs map[int64]*styleAgg,
	benchmarks map[string]*benchmark,
	params *noos.Parameters,
	windowDays int,
) ([]*noos.Result, *RunStats, error) {
	ordered := make([]*styleAgg, 0, len(aggs))
	for _, agg := range aggs {
		ordered = append(ordered, agg)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].style.Category != ordered[j].style.Category {
			return ordered[i].style.Category < ordered[j].style.Category
		}
		return ordered[i].style.StyleCode < ordered[j].style.StyleCode
	})

	multiplier := decimal.NewFromFloat(params.BestsellerMultiplier)
	consistencyBar := decimal.NewFromFloat(params.ConsistencyThreshold)
	calculatedAt := e.clock.Now()
	runID := rep.Task().ID()

	stats := &RunStats{Styles: len(ordered)}
	results := make([]*noos.Result, 0, len(ordered))

	for i, agg := range ordered {
		if i > 0 && i%classifyCheckEvery == 0 {
			if rep.Cancelled(ctx) {
				return nil, nil, scheduler.ErrCancelled
			}
			pct := 55 + float64(i)/float64(len(ordered))*30
			rep.Tick(ctx, pct, fmt.Sprintf("Classified %d/%d styles", i, len(ordered)))
		}

		bench := benchmarks[agg.style.Category]
		da := daysAvailable(agg, params, windowDays)
		daDec := decimal.NewFromInt(int64(da))

		revenuePerDay := agg.revenue.Div(daDec)
		consistency := decimal.NewFromInt(int64(len(agg.days))).Div(daDec)
		discountRatio := decimal.Zero
		if denom := agg.discount.Add(agg.revenue); !denom.IsZero() {
			discountRatio = agg.discount.Div(denom)
		}

		contribution := decimal.Zero
		if !bench.totalRevenue.IsZero() {
			contribution = agg.revenue.Div(bench.totalRevenue).Mul(decimal.NewFromInt(100))
		}

		qty := float64(agg.quantity)
		var typ noos.Type
		switch {
		case revenuePerDay.GreaterThan(bench.avgRevenuePerDay.Mul(multiplier)) &&
			qty > params.MinVolumeThreshold:
			typ = noos.TypeBestseller
			stats.Bestseller++
		case consistency.GreaterThan(consistencyBar) &&
			discountRatio.LessThan(coreDiscountCap) &&
			qty > params.MinVolumeThreshold/2:
			typ = noos.TypeCore
			stats.Core++
		default:
			typ = noos.TypeFashion
			stats.Fashion++
		}

		results = append(results, &noos.Result{
			AlgorithmRunID:       runID,
			Category:             agg.style.Category,
			StyleCode:            agg.style.StyleCode,
			StyleROS:             decimal.NewFromInt(int64(agg.quantity)).Div(daDec).Round(resultPlaces),
			Type:                 typ,
			StyleRevContribution: contribution.Round(resultPlaces),
			TotalQuantitySold:    agg.quantity,
			TotalRevenue:         agg.revenue,
			DaysAvailable:        da,
			DaysWithSales:        len(agg.days),
			AvgDiscount:          discountRatio.Round(resultPlaces),
			CalculatedAt:         calculatedAt,
		})
	}

	return results, stats, nil
}

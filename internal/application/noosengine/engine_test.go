package noosengine_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assortlab/noos-go/internal/adapters/persistence"
	"github.com/assortlab/noos-go/internal/application/noosengine"
	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/catalog"
	"github.com/assortlab/noos-go/internal/domain/noos"
	"github.com/assortlab/noos-go/internal/domain/sales"
	"github.com/assortlab/noos-go/internal/domain/shared"
	"github.com/assortlab/noos-go/internal/domain/task"
	"github.com/assortlab/noos-go/test/helpers"
)

type engineEnv struct {
	tasks   *persistence.GormTaskRepository
	styles  *persistence.GormStyleRepository
	skus    *persistence.GormSkuRepository
	stores  *persistence.GormStoreRepository
	sales   *persistence.GormSalesRepository
	results *persistence.GormNoosResultRepository
	engine  *noosengine.Engine
	storeID int64
}

func newEngineEnv(t *testing.T) *engineEnv {
	t.Helper()
	db := helpers.NewTestDB(t)
	env := &engineEnv{
		tasks:   persistence.NewGormTaskRepository(db),
		styles:  persistence.NewGormStyleRepository(db),
		skus:    persistence.NewGormSkuRepository(db),
		stores:  persistence.NewGormStoreRepository(db),
		sales:   persistence.NewGormSalesRepository(db),
		results: persistence.NewGormNoosResultRepository(db),
	}
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	env.engine = noosengine.NewEngine(env.sales, env.skus, env.styles, env.results, clock)

	store := &catalog.Store{Branch: "BR001", City: "Mumbai"}
	require.NoError(t, env.stores.ApplyBatch(context.Background(), []*catalog.Store{store}, nil))
	env.storeID = store.ID
	return env
}

// seedStyle inserts one style plus a single sku and returns the sku id
// sales rows should reference.
func (env *engineEnv) seedStyle(t *testing.T, code, category string) int64 {
	t.Helper()
	ctx := context.Background()
	st := &catalog.Style{
		StyleCode:   code,
		Brand:       "Levis",
		Category:    category,
		SubCategory: "Casual",
		MRP:         decimal.NewFromInt(999),
		Gender:      "MEN",
	}
	require.NoError(t, env.styles.ApplyBatch(ctx, []*catalog.Style{st}, nil))

	sku := &catalog.SKU{Code: "K" + code, StyleID: st.ID, Size: "32"}
	require.NoError(t, env.skus.ApplyBatch(ctx, []*catalog.SKU{sku}, nil))
	return sku.ID
}

func (env *engineEnv) seedSales(t *testing.T, rows []*sales.Sale) {
	t.Helper()
	require.NoError(t, env.sales.ReplaceAll(context.Background(), rows))
}

func sale(skuID, storeID int64, day time.Time, qty int, revenue, discount string) *sales.Sale {
	return &sales.Sale{
		Date:     day,
		SkuID:    skuID,
		StoreID:  storeID,
		Quantity: qty,
		Revenue:  decimal.RequireFromString(revenue),
		Discount: decimal.RequireFromString(discount),
	}
}

func newRunReporter(t *testing.T, repo task.Repository) *scheduler.Reporter {
	t.Helper()
	tk := task.New(task.KindAlgorithmRun, "", "")
	require.NoError(t, repo.Create(context.Background(), tk))
	require.NoError(t, tk.Start())
	require.NoError(t, repo.Update(context.Background(), tk))
	return scheduler.NewReporter(repo, tk)
}

var day = func(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

// seedThreeBuckets builds one category with an obvious bestseller, an
// obvious core style and a low-volume fashion style.
func seedThreeBuckets(t *testing.T, env *engineEnv) {
	best := env.seedStyle(t, "BEST1", "Jeans")
	core := env.seedStyle(t, "CORE1", "Jeans")
	fash := env.seedStyle(t, "FASH1", "Jeans")
	env.seedSales(t, []*sales.Sale{
		// one huge day: revenue/day 3000, quantity 30
		sale(best, env.storeID, day(1), 30, "3000", "0"),
		// steady full-price seller: revenue/day 100, quantity 15
		sale(core, env.storeID, day(1), 5, "100", "0"),
		sale(core, env.storeID, day(2), 5, "100", "0"),
		sale(core, env.storeID, day(3), 5, "100", "0"),
		// barely sells: quantity 2 stays under half the volume floor
		sale(fash, env.storeID, day(1), 1, "45", "0"),
		sale(fash, env.storeID, day(2), 1, "45", "0"),
	})
}

func TestEngine_ClassifiesIntoThreeBuckets(t *testing.T) {
	// Arrange
	env := newEngineEnv(t)
	seedThreeBuckets(t, env)
	rep := newRunReporter(t, env.tasks)
	params := noos.DefaultParameters()

	// Act
	stats, err := env.engine.Run(context.Background(), rep, params)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 6, stats.SalesLoaded)
	assert.Zero(t, stats.SalesDropped)
	assert.Equal(t, 3, stats.Styles)
	assert.Equal(t, 1, stats.Bestseller)
	assert.Equal(t, 1, stats.Core)
	assert.Equal(t, 1, stats.Fashion)
	assert.Equal(t, "NOOS classification complete: 3 styles (1 core, 1 bestseller, 1 fashion)", stats.Message())

	results, err := env.results.FindByRun(context.Background(), rep.Task().ID())
	require.NoError(t, err)
	require.Len(t, results, 3)

	byCode := make(map[string]*noos.Result, len(results))
	for _, r := range results {
		byCode[r.StyleCode] = r
		assert.Equal(t, rep.Task().ID(), r.AlgorithmRunID)
	}

	best := byCode["BEST1"]
	require.NotNil(t, best)
	assert.Equal(t, noos.TypeBestseller, best.Type)
	assert.Equal(t, 30, best.TotalQuantitySold)
	assert.Equal(t, 1, best.DaysAvailable)
	assert.Equal(t, 1, best.DaysWithSales)
	assert.True(t, best.StyleROS.Equal(decimal.NewFromInt(30)), "ros %s", best.StyleROS)
	assert.Equal(t, "88.4956", best.StyleRevContribution.String())

	assert.Equal(t, noos.TypeCore, byCode["CORE1"].Type)
	assert.Equal(t, noos.TypeFashion, byCode["FASH1"].Type)

	// Revenue contributions cover the whole category
	sum := 0.0
	for _, r := range results {
		f, _ := r.StyleRevContribution.Float64()
		sum += f
	}
	assert.InDelta(t, 100.0, sum, 0.01)
}

func TestEngine_DropsLiquidationRows(t *testing.T) {
	// Arrange - style LIQD1 sells only on clearance, LIQK1 at full price
	env := newEngineEnv(t)
	liq := env.seedStyle(t, "LIQD1", "Jeans")
	keep := env.seedStyle(t, "LIQK1", "Jeans")
	env.seedSales(t, []*sales.Sale{
		// discount share 100/(100+100) = 0.5, above the 0.20 threshold
		sale(liq, env.storeID, day(1), 10, "100", "100"),
		// zero revenue rows are noise regardless of discount
		sale(liq, env.storeID, day(2), 1, "0", "0"),
		sale(keep, env.storeID, day(1), 5, "500", "0"),
	})
	rep := newRunReporter(t, env.tasks)

	// Act
	stats, err := env.engine.Run(context.Background(), rep, noos.DefaultParameters())

	// Assert - the clearance style never reaches classification
	require.NoError(t, err)
	assert.Equal(t, 3, stats.SalesLoaded)
	assert.Equal(t, 2, stats.SalesDropped)
	assert.Equal(t, 1, stats.Styles)

	results, err := env.results.FindByRun(context.Background(), rep.Task().ID())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "LIQK1", results[0].StyleCode)
}

func TestEngine_FailsWhenRangeHasNoSales(t *testing.T) {
	// Arrange
	env := newEngineEnv(t)
	st := env.seedStyle(t, "ONLY1", "Jeans")
	env.seedSales(t, []*sales.Sale{sale(st, env.storeID, day(1), 1, "100", "0")})

	params := noos.DefaultParameters()
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)
	params.AnalysisStartDate = &start
	params.AnalysisEndDate = &end
	rep := newRunReporter(t, env.tasks)

	// Act
	_, err := env.engine.Run(context.Background(), rep, params)

	// Assert
	require.ErrorIs(t, err, noosengine.ErrNoSales)
	assert.Equal(t, "No sales data in range", err.Error())

	count, cerr := env.results.Count(context.Background())
	require.NoError(t, cerr)
	assert.Zero(t, count)
}

func TestEngine_InfiniteVolumeFloorMakesEverythingFashion(t *testing.T) {
	// Arrange
	env := newEngineEnv(t)
	seedThreeBuckets(t, env)
	params := noos.DefaultParameters()
	params.MinVolumeThreshold = math.Inf(1)
	rep := newRunReporter(t, env.tasks)

	// Act
	stats, err := env.engine.Run(context.Background(), rep, params)

	// Assert - no volume can clear an unreachable floor
	require.NoError(t, err)
	assert.Zero(t, stats.Bestseller)
	assert.Zero(t, stats.Core)
	assert.Equal(t, 3, stats.Fashion)
}

func TestEngine_WindowPolicyMeasuresAgainstCalendarDays(t *testing.T) {
	// Arrange - two sale days inside a ten-day analysis window
	env := newEngineEnv(t)
	st := env.seedStyle(t, "WIND1", "Jeans")
	env.seedSales(t, []*sales.Sale{
		sale(st, env.storeID, day(1), 10, "100", "0"),
		sale(st, env.storeID, day(2), 10, "100", "0"),
	})

	observed := noos.DefaultParameters()
	repObserved := newRunReporter(t, env.tasks)
	_, err := env.engine.Run(context.Background(), repObserved, observed)
	require.NoError(t, err)

	fromObserved, err := env.results.FindByRun(context.Background(), repObserved.Task().ID())
	require.NoError(t, err)
	require.Len(t, fromObserved, 1)
	require.Equal(t, noos.TypeCore, fromObserved[0].Type)
	require.Equal(t, 2, fromObserved[0].DaysAvailable)

	windowed := noos.DefaultParameters()
	windowed.AvailabilityPolicy = noos.AvailabilityWindow
	start, end := day(1), day(10)
	windowed.AnalysisStartDate = &start
	windowed.AnalysisEndDate = &end
	rep := newRunReporter(t, env.tasks)

	// Act
	_, err = env.engine.Run(context.Background(), rep, windowed)

	// Assert - 2 selling days out of 10 no longer counts as consistent
	require.NoError(t, err)
	results, err := env.results.FindByRun(context.Background(), rep.Task().ID())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 10, results[0].DaysAvailable)
	assert.Equal(t, 2, results[0].DaysWithSales)
	assert.Equal(t, noos.TypeFashion, results[0].Type)
}

func TestEngine_RerunReplacesPreviousResults(t *testing.T) {
	// Arrange
	env := newEngineEnv(t)
	st := env.seedStyle(t, "RPLC1", "Jeans")
	env.seedSales(t, []*sales.Sale{sale(st, env.storeID, day(1), 5, "500", "0")})

	first := newRunReporter(t, env.tasks)
	_, err := env.engine.Run(context.Background(), first, noos.DefaultParameters())
	require.NoError(t, err)

	second := newRunReporter(t, env.tasks)

	// Act
	_, err = env.engine.Run(context.Background(), second, noos.DefaultParameters())

	// Assert - only the newest run's rows survive
	require.NoError(t, err)

	latest, err := env.results.LatestRunID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.Task().ID(), latest)

	gone, err := env.results.FindByRun(context.Background(), first.Task().ID())
	require.NoError(t, err)
	assert.Empty(t, gone)

	count, err := env.results.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestEngine_CancellationStopsBeforePersist(t *testing.T) {
	// Arrange
	env := newEngineEnv(t)
	seedThreeBuckets(t, env)
	rep := newRunReporter(t, env.tasks)
	_, err := env.tasks.RequestCancellation(context.Background(), rep.Task().ID())
	require.NoError(t, err)

	// Act
	_, err = env.engine.Run(context.Background(), rep, noos.DefaultParameters())

	// Assert
	require.ErrorIs(t, err, scheduler.ErrCancelled)

	count, cerr := env.results.Count(context.Background())
	require.NoError(t, cerr)
	assert.Zero(t, count)
}

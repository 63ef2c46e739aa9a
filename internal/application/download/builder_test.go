package download_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assortlab/noos-go/internal/adapters/persistence"
	"github.com/assortlab/noos-go/internal/application/download"
	"github.com/assortlab/noos-go/internal/application/ingestion"
	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/catalog"
	"github.com/assortlab/noos-go/internal/domain/noos"
	"github.com/assortlab/noos-go/internal/domain/sales"
	"github.com/assortlab/noos-go/internal/domain/shared"
	"github.com/assortlab/noos-go/internal/domain/task"
	"github.com/assortlab/noos-go/test/helpers"
)

type builderEnv struct {
	tasks   *persistence.GormTaskRepository
	styles  *persistence.GormStyleRepository
	skus    *persistence.GormSkuRepository
	stores  *persistence.GormStoreRepository
	sales   *persistence.GormSalesRepository
	results *persistence.GormNoosResultRepository
	builder *download.Builder
	dir     string
}

func newBuilderEnv(t *testing.T) *builderEnv {
	t.Helper()
	db := helpers.NewTestDB(t)
	env := &builderEnv{
		tasks:   persistence.NewGormTaskRepository(db),
		styles:  persistence.NewGormStyleRepository(db),
		skus:    persistence.NewGormSkuRepository(db),
		stores:  persistence.NewGormStoreRepository(db),
		sales:   persistence.NewGormSalesRepository(db),
		results: persistence.NewGormNoosResultRepository(db),
		dir:     t.TempDir(),
	}
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	env.builder = download.NewBuilder(
		env.styles, env.skus, env.stores, env.sales, env.results, clock, env.dir)
	return env
}

func newRunReporter(t *testing.T, repo task.Repository, kind task.Kind) *scheduler.Reporter {
	t.Helper()
	tk := task.New(kind, "", "")
	require.NoError(t, repo.Create(context.Background(), tk))
	require.NoError(t, tk.Start())
	require.NoError(t, repo.Update(context.Background(), tk))
	return scheduler.NewReporter(repo, tk)
}

func (env *builderEnv) seedCatalog(t *testing.T) (skuID, storeID int64) {
	t.Helper()
	ctx := context.Background()
	st := &catalog.Style{
		StyleCode:   "ST001",
		Brand:       "Levis",
		Category:    "Jeans",
		SubCategory: "Casual",
		MRP:         decimal.RequireFromString("999.00"),
		Gender:      "MEN",
	}
	require.NoError(t, env.styles.ApplyBatch(ctx, []*catalog.Style{st}, nil))
	sku := &catalog.SKU{Code: "SKU001", StyleID: st.ID, Size: "32"}
	require.NoError(t, env.skus.ApplyBatch(ctx, []*catalog.SKU{sku}, nil))
	store := &catalog.Store{Branch: "BR001", City: "Mumbai"}
	require.NoError(t, env.stores.ApplyBatch(ctx, []*catalog.Store{store}, nil))
	return sku.ID, store.ID
}

func exportLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestBuilder_StylesExportRoundTrips(t *testing.T) {
	// Arrange
	env := newBuilderEnv(t)
	env.seedCatalog(t)
	rep := newRunReporter(t, env.tasks, task.KindStylesDownload)

	// Act
	err := env.builder.Styles(context.Background(), rep)

	// Assert
	require.NoError(t, err)
	path := rep.Task().ResultPath()
	require.NotEmpty(t, path)
	assert.Equal(t,
		fmt.Sprintf("styles_%d_20240601120000.tsv", rep.Task().ID()),
		filepath.Base(path))
	assert.Equal(t, 1, rep.Task().ProcessedRecords())

	lines := exportLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "style\tbrand\tcategory\tsub_category\tmrp\tgender", lines[0])
	assert.Equal(t, "ST001\tLevis\tJeans\tCasual\t999\tMEN", lines[1])

	// The export must be ingestible as-is
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	parsed, err := ingestion.ParseTSV(bytes.NewReader(data), ingestion.StylesHeaders, 100)
	require.NoError(t, err)
	assert.Len(t, parsed.Rows, 1)
}

func TestBuilder_SkusExportResolvesStyleCodes(t *testing.T) {
	// Arrange
	env := newBuilderEnv(t)
	env.seedCatalog(t)
	rep := newRunReporter(t, env.tasks, task.KindSkusDownload)

	// Act
	err := env.builder.Skus(context.Background(), rep)

	// Assert - the style column carries the code, not the database id
	require.NoError(t, err)
	lines := exportLines(t, rep.Task().ResultPath())
	require.Len(t, lines, 2)
	assert.Equal(t, "sku\tstyle\tsize", lines[0])
	assert.Equal(t, "SKU001\tST001\t32", lines[1])
}

func TestBuilder_StoresExport(t *testing.T) {
	// Arrange
	env := newBuilderEnv(t)
	env.seedCatalog(t)
	rep := newRunReporter(t, env.tasks, task.KindStoresDownload)

	// Act
	err := env.builder.Stores(context.Background(), rep)

	// Assert
	require.NoError(t, err)
	lines := exportLines(t, rep.Task().ResultPath())
	require.Len(t, lines, 2)
	assert.Equal(t, "branch\tcity", lines[0])
	assert.Equal(t, "BR001\tMumbai", lines[1])
}

func TestBuilder_SalesExportResolvesCodes(t *testing.T) {
	// Arrange
	env := newBuilderEnv(t)
	skuID, storeID := env.seedCatalog(t)
	require.NoError(t, env.sales.ReplaceAll(context.Background(), []*sales.Sale{{
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		SkuID:    skuID,
		StoreID:  storeID,
		Quantity: 5,
		Discount: decimal.RequireFromString("100.00"),
		Revenue:  decimal.RequireFromString("4995.00"),
	}}))
	rep := newRunReporter(t, env.tasks, task.KindSalesDownload)

	// Act
	err := env.builder.Sales(context.Background(), rep)

	// Assert
	require.NoError(t, err)
	lines := exportLines(t, rep.Task().ResultPath())
	require.Len(t, lines, 2)
	assert.Equal(t, "day\tsku\tchannel\tquantity\tdiscount\trevenue", lines[0])
	assert.Equal(t, "2024-03-01\tSKU001\tBR001\t5\t100\t4995", lines[1])
}

func TestBuilder_NoosExportServesLatestRun(t *testing.T) {
	// Arrange
	env := newBuilderEnv(t)
	calculated := time.Date(2024, 5, 20, 8, 30, 0, 0, time.UTC)
	require.NoError(t, env.results.ReplaceAll(context.Background(), []*noos.Result{{
		AlgorithmRunID:       7,
		Category:             "Jeans",
		StyleCode:            "ST001",
		StyleROS:             decimal.RequireFromString("2.5"),
		Type:                 noos.TypeCore,
		StyleRevContribution: decimal.RequireFromString("100"),
		TotalQuantitySold:    50,
		TotalRevenue:         decimal.RequireFromString("4995"),
		DaysAvailable:        20,
		DaysWithSales:        18,
		AvgDiscount:          decimal.RequireFromString("0.02"),
		CalculatedAt:         calculated,
	}}))
	rep := newRunReporter(t, env.tasks, task.KindNoosDownload)

	// Act - zero run id means "latest"
	err := env.builder.Noos(context.Background(), rep, 0)

	// Assert
	require.NoError(t, err)
	path := rep.Task().ResultPath()
	assert.Equal(t,
		fmt.Sprintf("noos_%d_20240601120000.tsv", rep.Task().ID()),
		filepath.Base(path))

	lines := exportLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(download.NoosHeaders, "\t"), lines[0])
	assert.Equal(t, "Jeans\tST001\t2.5\tcore\t100\t50\t4995\t20\t18\t0.02\t2024-05-20 08:30:00", lines[1])
}

func TestBuilder_NoosExportUnknownRunFails(t *testing.T) {
	// Arrange
	env := newBuilderEnv(t)
	require.NoError(t, env.results.ReplaceAll(context.Background(), []*noos.Result{{
		AlgorithmRunID: 7,
		Category:       "Jeans",
		StyleCode:      "ST001",
		Type:           noos.TypeCore,
		CalculatedAt:   time.Now().UTC(),
	}}))
	rep := newRunReporter(t, env.tasks, task.KindNoosDownload)

	// Act
	err := env.builder.Noos(context.Background(), rep, 99)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no results for run 99")
}

func TestBuilder_NoosExportWithoutResultsFails(t *testing.T) {
	// Arrange
	env := newBuilderEnv(t)
	rep := newRunReporter(t, env.tasks, task.KindNoosDownload)

	// Act
	err := env.builder.Noos(context.Background(), rep, 0)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no classification results available")
}

func TestBuilder_WorkRoutesKinds(t *testing.T) {
	// Arrange
	env := newBuilderEnv(t)

	// Act / Assert
	assert.NotNil(t, env.builder.Work(task.KindStylesDownload, 0))
	assert.NotNil(t, env.builder.Work(task.KindSkusDownload, 0))
	assert.NotNil(t, env.builder.Work(task.KindStoresDownload, 0))
	assert.NotNil(t, env.builder.Work(task.KindSalesDownload, 0))
	assert.NotNil(t, env.builder.Work(task.KindNoosDownload, 42))
	assert.Nil(t, env.builder.Work(task.KindStylesUpload, 0))
}

func TestBuilder_CancellationSkipsFileWrite(t *testing.T) {
	// Arrange
	env := newBuilderEnv(t)
	env.seedCatalog(t)
	rep := newRunReporter(t, env.tasks, task.KindStylesDownload)
	_, err := env.tasks.RequestCancellation(context.Background(), rep.Task().ID())
	require.NoError(t, err)

	// Act
	err = env.builder.Styles(context.Background(), rep)

	// Assert
	require.ErrorIs(t, err, scheduler.ErrCancelled)
	assert.Empty(t, rep.Task().ResultPath())

	entries, err := os.ReadDir(env.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

package httpapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assortlab/noos-go/internal/domain/catalog"
	"github.com/assortlab/noos-go/internal/domain/sales"
	"github.com/assortlab/noos-go/internal/domain/task"
)

// seedClassifiableSales loads one style that lands in the core bucket:
// full price, selling every observed day, above half the volume floor.
func seedClassifiableSales(t *testing.T, env *apiEnv) {
	t.Helper()
	ctx := context.Background()

	st := seedStyle(t, env)
	sku := &catalog.SKU{Code: "SKU001", StyleID: st.ID, Size: "32"}
	require.NoError(t, env.skus.ApplyBatch(ctx, []*catalog.SKU{sku}, nil))
	store := &catalog.Store{Branch: "BR001", City: "Mumbai"}
	require.NoError(t, env.stores.ApplyBatch(ctx, []*catalog.Store{store}, nil))

	rows := make([]*sales.Sale, 0, 3)
	for d := 1; d <= 3; d++ {
		rows = append(rows, &sales.Sale{
			Date:     time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC),
			SkuID:    sku.ID,
			StoreID:  store.ID,
			Quantity: 5,
			Revenue:  decimal.NewFromInt(100),
			Discount: decimal.Zero,
		})
	}
	require.NoError(t, env.sales.ReplaceAll(ctx, rows))
}

func TestServer_RunNoosClassifiesAndServesResults(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)
	seedClassifiableSales(t, env)

	// Act - empty body runs with the active parameter set
	res := env.doJSON(t, http.MethodPost, "/api/run/noos/async", nil)

	// Assert
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	var run taskBody
	decodeInto(t, res, &run)
	assert.Equal(t, "ALGORITHM_RUN", run.Kind)
	assert.Contains(t, run.Parameters, "set=default")

	final := waitTerminal(t, env, run.ID)
	require.Equal(t, task.StatusCompleted, final.Status())
	assert.Equal(t, "NOOS classification complete: 1 styles (1 core, 0 bestseller, 0 fashion)", final.Message())

	// The run id keys the published results
	listRes := env.get(t, "/api/results/noos")
	assert.Equal(t, http.StatusOK, listRes.StatusCode)
	var rows []resultBody
	decodeInto(t, listRes, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, run.ID, rows[0].AlgorithmRunID)
	assert.Equal(t, "ST001", rows[0].StyleCode)
	assert.Equal(t, "Jeans", rows[0].Category)
	assert.Equal(t, "core", rows[0].Type)
	assert.Equal(t, 15, rows[0].TotalQuantitySold)
	assert.Equal(t, "300", rows[0].TotalRevenue)
	assert.Equal(t, "5", rows[0].StyleROS)
	assert.Equal(t, 3, rows[0].DaysAvailable)
	assert.Equal(t, 3, rows[0].DaysWithSales)

	sumRes := env.get(t, "/api/results/noos/summary")
	assert.Equal(t, http.StatusOK, sumRes.StatusCode)
	var summary summaryBody
	decodeInto(t, sumRes, &summary)
	assert.Equal(t, run.ID, summary.AlgorithmRunID)
	assert.Equal(t, int64(1), summary.TotalStyles)
	assert.Equal(t, int64(1), summary.ByType["core"])
	require.Len(t, summary.ByCategory, 1)
	assert.Equal(t, "Jeans", summary.ByCategory[0].Category)
	assert.Equal(t, "300", summary.ByCategory[0].Revenue)

	coreRes := env.get(t, "/api/results/noos/core")
	var coreRows []resultBody
	decodeInto(t, coreRes, &coreRows)
	assert.Len(t, coreRows, 1)

	fashionRes := env.get(t, "/api/results/noos/fashion")
	var fashionRows []resultBody
	decodeInto(t, fashionRes, &fashionRows)
	assert.Empty(t, fashionRows)
}

func TestServer_RunNoosWithoutSalesFailsTask(t *testing.T) {
	// Arrange - empty database, scheduling still succeeds
	env := newAPIEnv(t)

	// Act
	res := env.doJSON(t, http.MethodPost, "/api/run/noos/async", nil)

	// Assert
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	var run taskBody
	decodeInto(t, res, &run)

	final := waitTerminal(t, env, run.ID)
	assert.Equal(t, task.StatusFailed, final.Status())
	assert.Equal(t, "No sales data in range", final.ErrorMessage())
}

func TestServer_RunNoosRejectsOutOfRangeThreshold(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)

	// Act
	res := env.doJSON(t, http.MethodPost, "/api/run/noos/async", paramsBody{
		LiquidationThreshold: 5,
	})

	// Assert
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var body errBody
	decodeInto(t, res, &body)
	assert.Contains(t, body.Error, "liquidationThreshold must be within [0, 1]")
}

func TestServer_RunNoosRejectsMalformedDate(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)

	// Act
	res := env.doJSON(t, http.MethodPost, "/api/run/noos/async", map[string]string{
		"analysisStartDate": "2024-13-01",
	})

	// Assert
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var body errBody
	decodeInto(t, res, &body)
	assert.Contains(t, body.Error, "invalid analysisStartDate")
}

func TestServer_ResultsInvalidRunIDReturns400(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)

	// Act
	res := env.get(t, "/api/results/noos?runId=abc")

	// Assert
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var body errBody
	decodeInto(t, res, &body)
	assert.Equal(t, `invalid runId "abc"`, body.Error)
}

func TestServer_ResultsByRunFiltersRows(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)
	seedClassifiableSales(t, env)
	res := env.doJSON(t, http.MethodPost, "/api/run/noos/async", nil)
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	var run taskBody
	decodeInto(t, res, &run)
	require.Equal(t, task.StatusCompleted, waitTerminal(t, env, run.ID).Status())

	// Act
	matching := env.get(t, fmt.Sprintf("/api/results/noos?runId=%d", run.ID))
	other := env.get(t, fmt.Sprintf("/api/results/noos?runId=%d", run.ID+1))

	// Assert
	var matchingRows, otherRows []resultBody
	decodeInto(t, matching, &matchingRows)
	decodeInto(t, other, &otherRows)
	assert.Len(t, matchingRows, 1)
	assert.Empty(t, otherRows)
}

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assortlab/noos-go/internal/adapters/httpapi"
	"github.com/assortlab/noos-go/internal/adapters/persistence"
	"github.com/assortlab/noos-go/internal/application/download"
	"github.com/assortlab/noos-go/internal/application/ingestion"
	"github.com/assortlab/noos-go/internal/application/noosengine"
	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/shared"
	"github.com/assortlab/noos-go/internal/domain/task"
	"github.com/assortlab/noos-go/internal/infrastructure/config"
	"github.com/assortlab/noos-go/test/helpers"
)

// apiEnv runs a fully wired server over an in-memory database and an
// httptest listener. Repositories are exposed for seeding and for
// asserting side effects the API does not render.
type apiEnv struct {
	ts      *httptest.Server
	sched   *scheduler.Scheduler
	clock   *shared.MockClock
	dir     string
	tasks   *persistence.GormTaskRepository
	styles  *persistence.GormStyleRepository
	skus    *persistence.GormSkuRepository
	stores  *persistence.GormStoreRepository
	sales   *persistence.GormSalesRepository
	results *persistence.GormNoosResultRepository
	params  *persistence.GormParameterRepository
	audits  *persistence.GormAuditLogRepository
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	return newAPIEnvSized(t, 1, 2)
}

// newAPIEnvSized lets queue-pressure tests shrink the file pool
func newAPIEnvSized(t *testing.T, fileWorkers, fileQueue int) *apiEnv {
	t.Helper()
	db := helpers.NewTestDB(t)
	env := &apiEnv{
		dir:     t.TempDir(),
		clock:   shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
		tasks:   persistence.NewGormTaskRepository(db),
		styles:  persistence.NewGormStyleRepository(db),
		skus:    persistence.NewGormSkuRepository(db),
		stores:  persistence.NewGormStoreRepository(db),
		sales:   persistence.NewGormSalesRepository(db),
		results: persistence.NewGormNoosResultRepository(db),
		params:  persistence.NewGormParameterRepository(db),
		audits:  persistence.NewGormAuditLogRepository(db),
	}
	require.NoError(t, env.params.SeedDefault(context.Background()))

	env.sched = scheduler.New(env.tasks, scheduler.NewPools(fileWorkers, fileQueue, 1, 1, 1, 1))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.sched.Shutdown(ctx)
	})

	pipes := ingestion.NewPipelines(env.styles, env.skus, env.stores, env.sales, env.audits, env.clock,
		ingestion.Options{TempDir: env.dir, MaxRows: 1000})
	deps := httpapi.Deps{
		Tasks:     env.tasks,
		Scheduler: env.sched,
		Pipelines: pipes,
		Engine:    noosengine.NewEngine(env.sales, env.skus, env.styles, env.results, env.clock),
		Builder:   download.NewBuilder(env.styles, env.skus, env.stores, env.sales, env.results, env.clock, env.dir),
		Results:   env.results,
		Params:    env.params,
		Audits:    env.audits,
		Purger:    persistence.NewMaintenance(db),
		Clock:     env.clock,
	}
	cfg := config.ServerConfig{
		Address:        "127.0.0.1:0",
		ReadTimeout:    time.Minute,
		WriteTimeout:   time.Minute,
		MaxUploadBytes: 1 << 20,
	}
	env.ts = httptest.NewServer(httpapi.NewServer(cfg, deps).Handler())
	t.Cleanup(env.ts.Close)
	return env
}

func (env *apiEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	res, err := env.ts.Client().Get(env.ts.URL + path)
	require.NoError(t, err)
	return res
}

// doJSON sends a request with an optional JSON body. A nil payload
// sends an empty body.
func (env *apiEnv) doJSON(t *testing.T, method, path string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, env.ts.URL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	return res
}

// upload posts content as the multipart "file" field
func (env *apiEnv) upload(t *testing.T, path, fileName, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	res, err := env.ts.Client().Post(env.ts.URL+path, w.FormDataContentType(), &buf)
	require.NoError(t, err)
	return res
}

// decodeInto drains and closes the response body
func decodeInto(t *testing.T, res *http.Response, out any) {
	t.Helper()
	defer res.Body.Close()
	require.NoError(t, json.NewDecoder(res.Body).Decode(out))
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(raw)
}

// waitTerminal polls the store until the task reaches a terminal state
func waitTerminal(t *testing.T, env *apiEnv, id int64) *task.Task {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		tk, err := env.tasks.FindByID(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, tk)
		if tk.IsTerminal() {
			return tk
		}
		select {
		case <-deadline:
			t.Fatalf("task %d never reached a terminal state (status %s)", id, tk.Status())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Response body mirrors. The views are unexported, so tests decode into
// their own structs keyed by the published JSON field names.

type taskBody struct {
	ID                    int64   `json:"id"`
	Kind                  string  `json:"kind"`
	Status                string  `json:"status"`
	Progress              float64 `json:"progress"`
	Message               string  `json:"message"`
	FileName              string  `json:"fileName"`
	Parameters            string  `json:"parameters"`
	ErrorMessage          string  `json:"errorMessage"`
	CancellationRequested bool    `json:"cancellationRequested"`
}

type taskStatsBody struct {
	Total     int64 `json:"total"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

type kindStatsBody struct {
	Kind      string `json:"kind"`
	Days      int    `json:"days"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}

type resultBody struct {
	AlgorithmRunID    int64  `json:"algorithmRunId"`
	Category          string `json:"category"`
	StyleCode         string `json:"styleCode"`
	StyleROS          string `json:"styleROS"`
	Type              string `json:"type"`
	TotalQuantitySold int    `json:"totalQuantitySold"`
	TotalRevenue      string `json:"totalRevenue"`
	DaysAvailable     int    `json:"daysAvailable"`
	DaysWithSales     int    `json:"daysWithSales"`
}

type categoryRevBody struct {
	Category string `json:"category"`
	Revenue  string `json:"revenue"`
	Styles   int64  `json:"styles"`
}

type summaryBody struct {
	AlgorithmRunID int64             `json:"algorithmRunId"`
	TotalStyles    int64             `json:"totalStyles"`
	ByType         map[string]int64  `json:"byType"`
	ByCategory     []categoryRevBody `json:"byCategory"`
}

type paramsBody struct {
	ParameterSet         string  `json:"parameterSet"`
	LiquidationThreshold float64 `json:"liquidationThreshold"`
	BestsellerMultiplier float64 `json:"bestsellerMultiplier"`
	MinVolumeThreshold   float64 `json:"minVolumeThreshold"`
	ConsistencyThreshold float64 `json:"consistencyThreshold"`
	AnalysisStartDate    string  `json:"analysisStartDate,omitempty"`
	AnalysisEndDate      string  `json:"analysisEndDate,omitempty"`
	AvailabilityPolicy   string  `json:"availabilityPolicy,omitempty"`
	IsActive             bool    `json:"isActive"`
}

type errBody struct {
	Error string `json:"error"`
}

type msgBody struct {
	Message string `json:"message"`
}

func TestServer_HealthEndpoint(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)

	// Act
	res := env.get(t, "/health")

	// Assert
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var body map[string]string
	decodeInto(t, res, &body)
	assert.Equal(t, "ok", body["status"])
}

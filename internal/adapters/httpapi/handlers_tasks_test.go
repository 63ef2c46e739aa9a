package httpapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assortlab/noos-go/internal/domain/task"
)

// newStoredTask persists a PENDING task without submitting it to a pool
func newStoredTask(t *testing.T, env *apiEnv, kind task.Kind) *task.Task {
	t.Helper()
	tk := task.New(kind, "data.tsv", "")
	require.NoError(t, env.tasks.Create(context.Background(), tk))
	return tk
}

func completeStoredTask(t *testing.T, env *apiEnv, tk *task.Task) {
	t.Helper()
	require.NoError(t, tk.Start())
	require.NoError(t, tk.Complete("done"))
	require.NoError(t, env.tasks.Update(context.Background(), tk))
}

func failStoredTask(t *testing.T, env *apiEnv, tk *task.Task) {
	t.Helper()
	require.NoError(t, tk.Start())
	require.NoError(t, tk.Fail("boom"))
	require.NoError(t, env.tasks.Update(context.Background(), tk))
}

func TestServer_ListTasksNewestFirst(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)
	for i := 0; i < 3; i++ {
		newStoredTask(t, env, task.KindStylesUpload)
	}

	// Act
	res := env.get(t, "/api/tasks?limit=2")

	// Assert
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var body []taskBody
	decodeInto(t, res, &body)
	require.Len(t, body, 2)
	assert.Greater(t, body[0].ID, body[1].ID)
}

func TestServer_TaskStats(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)
	newStoredTask(t, env, task.KindStylesUpload)
	newStoredTask(t, env, task.KindSkusUpload)
	completeStoredTask(t, env, newStoredTask(t, env, task.KindSalesUpload))

	// Act
	res := env.get(t, "/api/tasks/stats")

	// Assert
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var body taskStatsBody
	decodeInto(t, res, &body)
	assert.Equal(t, int64(3), body.Total)
	assert.Equal(t, int64(1), body.Completed)
	assert.Equal(t, int64(0), body.Failed)
}

func TestServer_TaskStatsByKind(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)
	completeStoredTask(t, env, newStoredTask(t, env, task.KindStylesUpload))
	failStoredTask(t, env, newStoredTask(t, env, task.KindStylesUpload))
	completeStoredTask(t, env, newStoredTask(t, env, task.KindSkusUpload))

	// Act
	res := env.get(t, "/api/tasks/stats/STYLES_UPLOAD")

	// Assert
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var body kindStatsBody
	decodeInto(t, res, &body)
	assert.Equal(t, "STYLES_UPLOAD", body.Kind)
	assert.Equal(t, 30, body.Days)
	assert.Equal(t, int64(2), body.Total)
	assert.Equal(t, int64(1), body.Completed)
	assert.Equal(t, int64(1), body.Failed)
}

func TestServer_TaskStatsByUnknownKindReturns400(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)

	// Act
	res := env.get(t, "/api/tasks/stats/LAUNDRY")

	// Assert
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var body errBody
	decodeInto(t, res, &body)
	assert.Contains(t, body.Error, "unknown task kind")
}

func TestServer_TasksByStatus(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)
	pending := newStoredTask(t, env, task.KindStylesUpload)
	completeStoredTask(t, env, newStoredTask(t, env, task.KindSkusUpload))

	// Act
	res := env.get(t, "/api/tasks/status/PENDING")

	// Assert
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var body []taskBody
	decodeInto(t, res, &body)
	require.Len(t, body, 1)
	assert.Equal(t, pending.ID(), body[0].ID)
}

func TestServer_TasksByUnknownStatusReturns400(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)

	// Act
	res := env.get(t, "/api/tasks/status/SLEEPING")

	// Assert
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var body errBody
	decodeInto(t, res, &body)
	assert.Contains(t, body.Error, "unknown task status")
}

func TestServer_GetTask(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)
	tk := newStoredTask(t, env, task.KindSalesUpload)

	// Act
	res := env.get(t, fmt.Sprintf("/api/tasks/%d", tk.ID()))

	// Assert
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var body taskBody
	decodeInto(t, res, &body)
	assert.Equal(t, tk.ID(), body.ID)
	assert.Equal(t, "SALES_UPLOAD", body.Kind)
	assert.Equal(t, "data.tsv", body.FileName)
}

func TestServer_GetUnknownTaskReturns404(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)

	// Act
	res := env.get(t, "/api/tasks/999")

	// Assert
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	var body errBody
	decodeInto(t, res, &body)
	assert.Equal(t, "task 999 not found", body.Error)
}

func TestServer_CancelPendingTask(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)
	tk := newStoredTask(t, env, task.KindAlgorithmRun)

	// Act
	res := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/cancel", tk.ID()), nil)

	// Assert
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	var body msgBody
	decodeInto(t, res, &body)
	assert.Equal(t, fmt.Sprintf("cancellation requested for task %d", tk.ID()), body.Message)

	stored, err := env.tasks.FindByID(context.Background(), tk.ID())
	require.NoError(t, err)
	assert.True(t, stored.CancellationRequested())
	assert.Equal(t, task.StatusPending, stored.Status())
}

func TestServer_CancelTerminalTaskReturns400(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)
	tk := newStoredTask(t, env, task.KindStylesUpload)
	completeStoredTask(t, env, tk)

	// Act
	res := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/cancel", tk.ID()), nil)

	// Assert
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var body errBody
	decodeInto(t, res, &body)
	assert.Equal(t, fmt.Sprintf("task %d is already COMPLETED", tk.ID()), body.Error)
}

func TestServer_TaskResultRequiresCompletion(t *testing.T) {
	// Arrange
	env := newAPIEnv(t)
	tk := newStoredTask(t, env, task.KindNoosDownload)

	// Act
	res := env.get(t, fmt.Sprintf("/api/tasks/%d/result", tk.ID()))

	// Assert
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	var body errBody
	decodeInto(t, res, &body)
	assert.Contains(t, body.Error, "result available only for COMPLETED tasks")
}

func TestServer_TaskResultWithoutFileReturns404(t *testing.T) {
	// Arrange - completed task that produced no file
	env := newAPIEnv(t)
	tk := newStoredTask(t, env, task.KindStylesUpload)
	completeStoredTask(t, env, tk)

	// Act
	res := env.get(t, fmt.Sprintf("/api/tasks/%d/result", tk.ID()))

	// Assert
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	var body errBody
	decodeInto(t, res, &body)
	assert.Equal(t, fmt.Sprintf("task %d produced no result file", tk.ID()), body.Error)
}

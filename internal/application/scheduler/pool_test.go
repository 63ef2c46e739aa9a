package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/task"
)

func TestPool_ExecutesSubmittedWork(t *testing.T) {
	// Arrange
	pool := scheduler.NewPool("test", 1, 2)
	done := make(chan struct{})

	// Act
	err := pool.TrySubmit(func() { close(done) })

	// Assert
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("submitted work never ran")
	}
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPool_RejectsWhenQueueFull(t *testing.T) {
	// Arrange - one worker, one queue slot
	pool := scheduler.NewPool("test", 1, 1)
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	// Occupy the worker
	require.NoError(t, pool.TrySubmit(func() {
		close(started)
		<-release
	}))
	<-started

	// Fill the queue slot
	require.NoError(t, pool.TrySubmit(func() {}))

	// Act - queue is now at capacity
	err := pool.TrySubmit(func() {})

	// Assert
	assert.ErrorIs(t, err, task.ErrQueueFull)
}

func TestPool_ZeroCapacityNeedsIdleWorker(t *testing.T) {
	// Arrange
	pool := scheduler.NewPool("test", 1, 0)
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	// Act - first submission is handed straight to the idle worker
	require.NoError(t, pool.TrySubmit(func() {
		close(started)
		<-release
	}))
	<-started

	// The only worker is busy, so the next submission has nowhere to go
	err := pool.TrySubmit(func() {})

	// Assert
	assert.ErrorIs(t, err, task.ErrQueueFull)
}

func TestPool_RunsInSubmissionOrder(t *testing.T) {
	// Arrange - a single worker drains the queue strictly FIFO
	pool := scheduler.NewPool("test", 1, 8)
	started := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	var order []int

	require.NoError(t, pool.TrySubmit(func() {
		close(started)
		<-release
	}))
	<-started

	for i := 1; i <= 3; i++ {
		i := i
		require.NoError(t, pool.TrySubmit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}

	// Act
	close(release)
	require.NoError(t, pool.Shutdown(context.Background()))

	// Assert
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestPool_ShutdownDrainsQueuedWork(t *testing.T) {
	// Arrange
	pool := scheduler.NewPool("test", 2, 8)
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.TrySubmit(func() { ran.Add(1) }))
	}

	// Act
	err := pool.Shutdown(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int32(5), ran.Load())
}

func TestPool_SubmitAfterShutdownRejected(t *testing.T) {
	// Arrange
	pool := scheduler.NewPool("test", 1, 1)
	require.NoError(t, pool.Shutdown(context.Background()))

	// Act
	err := pool.TrySubmit(func() {})

	// Assert
	assert.ErrorIs(t, err, task.ErrQueueFull)
}

func TestPool_ShutdownHonoursDeadline(t *testing.T) {
	// Arrange - a worker stuck in a workload that outlives the deadline
	pool := scheduler.NewPool("test", 1, 0)
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	require.NoError(t, pool.TrySubmit(func() {
		close(started)
		<-release
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Act
	err := pool.Shutdown(ctx)

	// Assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPools_ByKind(t *testing.T) {
	// Arrange
	pools := scheduler.NewPools(1, 1, 1, 1, 1, 1)
	defer pools.Shutdown(context.Background())

	// Act / Assert
	assert.Same(t, pools.File, pools.ByKind(task.KindStylesUpload))
	assert.Same(t, pools.File, pools.ByKind(task.KindSalesUpload))
	assert.Same(t, pools.File, pools.ByKind(task.KindNoosDownload))
	assert.Same(t, pools.Noos, pools.ByKind(task.KindAlgorithmRun))
	assert.Same(t, pools.Default, pools.ByKind(task.Kind("SOMETHING_ELSE")))
}

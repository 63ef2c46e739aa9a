package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/assortlab/noos-go/internal/domain/task"
)

// Pool is a fixed set of long-lived workers draining a bounded FIFO
// queue. A full queue rejects submissions instead of blocking: callers
// surface the rejection to users rather than queueing unbounded work.
//
// A submitted function runs on exactly one worker from start to finish;
// there is no suspension or migration between workers.
type Pool struct {
	name  string
	queue chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool with the given parallelism and queue capacity
// and starts its workers. A capacity of 0 means submissions only succeed
// while a worker is idle and ready to take the work directly.
func NewPool(name string, workers, capacity int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if capacity < 0 {
		capacity = 0
	}

	p := &Pool{
		name:  name,
		queue: make(chan func(), capacity),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	slog.Info("worker pool started", "pool", name, "workers", workers, "queue", capacity)
	return p
}

// TrySubmit enqueues fn without blocking. Returns task.ErrQueueFull when
// the queue is at capacity and no worker is ready to take the work.
func (p *Pool) TrySubmit(fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return task.ErrQueueFull
	}

	select {
	case p.queue <- fn:
		return nil
	default:
		return task.ErrQueueFull
	}
}

// Shutdown closes the intake and waits for in-flight work to finish or
// the context to expire, whichever comes first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("worker pool stopped", "pool", p.name)
		return nil
	case <-ctx.Done():
		slog.Warn("worker pool shutdown timed out", "pool", p.name)
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for fn := range p.queue {
		fn()
	}
	slog.Debug("worker exiting", "pool", p.name, "worker", id)
}

// Pools groups the three workload classes the scheduler dispatches to
type Pools struct {
	File    *Pool
	Noos    *Pool
	Default *Pool
}

// NewPools builds the standard pool set from per-pool sizing
func NewPools(fileWorkers, fileQueue, noosWorkers, noosQueue, defaultWorkers, defaultQueue int) *Pools {
	return &Pools{
		File:    NewPool("file", fileWorkers, fileQueue),
		Noos:    NewPool("noos", noosWorkers, noosQueue),
		Default: NewPool("default", defaultWorkers, defaultQueue),
	}
}

// ByKind routes a task kind to its pool: uploads and downloads share the
// file pool, algorithm runs get their own, everything else falls through
// to the default pool.
func (p *Pools) ByKind(kind task.Kind) *Pool {
	switch kind {
	case task.KindStylesUpload, task.KindStoresUpload, task.KindSkusUpload, task.KindSalesUpload,
		task.KindStylesDownload, task.KindStoresDownload, task.KindSkusDownload, task.KindSalesDownload,
		task.KindNoosDownload:
		return p.File
	case task.KindAlgorithmRun:
		return p.Noos
	default:
		return p.Default
	}
}

// Shutdown stops every pool, sharing the context deadline
func (p *Pools) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, pool := range []*Pool{p.File, p.Noos, p.Default} {
		if err := pool.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

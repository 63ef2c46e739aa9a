package scheduler

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/assortlab/noos-go/internal/domain/task"
)

// Reporter is the workload's handle onto its own task row. It owns the
// in-memory entity between RUNNING and the terminal transition and
// mediates every write back to the store.
//
// Milestone writes (phase boundaries) always hit the store. Tick writes
// (inside row loops) are throttled so a tight loop cannot saturate the
// database with progress updates; skipped ticks still mutate the entity,
// and the next milestone flushes the accumulated state.
type Reporter struct {
	repo    task.Repository
	t       *task.Task
	limiter *rate.Limiter
}

// Writes per second allowed from row loops
const tickWriteRate = 2

func NewReporter(repo task.Repository, t *task.Task) *Reporter {
	return &Reporter{
		repo:    repo,
		t:       t,
		limiter: rate.NewLimiter(rate.Limit(tickWriteRate), 1),
	}
}

// Task exposes the underlying entity for counter and result updates
func (r *Reporter) Task() *task.Task {
	return r.t
}

// Milestone records a phase-boundary progress update and writes through
// to the store immediately.
func (r *Reporter) Milestone(ctx context.Context, progress float64, phase, message string) {
	r.t.SetProgress(progress, phase, message)
	r.flush(ctx)
}

// Tick records fine-grained progress from inside a row loop. The entity
// is always updated; the store write is dropped when over the rate limit.
func (r *Reporter) Tick(ctx context.Context, progress float64, message string) {
	r.t.SetProgress(progress, "", message)
	if !r.limiter.Allow() {
		return
	}
	r.flush(ctx)
}

// SetTotalRecords updates the counter on the entity; persisted by the
// next milestone or terminal write.
func (r *Reporter) SetTotalRecords(n int) {
	r.t.SetTotalRecords(n)
}

func (r *Reporter) SetProcessedRecords(n int) {
	r.t.SetProcessedRecords(n)
}

func (r *Reporter) SetErrorCount(n int) {
	r.t.SetErrorCount(n)
}

// Cancelled polls the store-side cancellation flag. Workloads call this
// at their checkpoints and abandon work when it reports true. The flag
// is monotonic, so a true result is remembered and later polls skip the
// round trip.
func (r *Reporter) Cancelled(ctx context.Context) bool {
	if r.t.CancellationRequested() {
		return true
	}
	requested, err := r.repo.IsCancellationRequested(ctx, r.t.ID())
	if err != nil {
		slog.Warn("cancellation poll failed", "task_id", r.t.ID(), "error", err)
		return false
	}
	if requested {
		r.t.RequestCancellation()
	}
	return requested
}

func (r *Reporter) flush(ctx context.Context) {
	if err := r.repo.Update(ctx, r.t); err != nil {
		slog.Warn("progress write failed", "task_id", r.t.ID(), "error", err)
	}
}

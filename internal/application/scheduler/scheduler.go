package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/assortlab/noos-go/internal/domain/task"
)

// ErrCancelled is returned by workloads that observed the cancellation
// flag at a checkpoint and abandoned their work. The scheduler maps it
// to the CANCELLED terminal state instead of FAILED.
var ErrCancelled = errors.New("task cancelled")

// BusyMessage is recorded on tasks rejected because their pool queue
// was full, and surfaced to callers alongside a 429.
const BusyMessage = "System is busy; try again later"

// Work is the unit a workload hands to the scheduler. It reports
// progress and polls cancellation through the reporter; a nil return
// completes the task, ErrCancelled cancels it, anything else fails it.
type Work func(ctx context.Context, rep *Reporter) error

// Scheduler owns the task lifecycle: it persists the PENDING row,
// routes the work to the right pool, and drives the status transitions
// around the workload's execution. Workloads never touch task status
// themselves.
type Scheduler struct {
	repo  task.Repository
	pools *Pools
}

func New(repo task.Repository, pools *Pools) *Scheduler {
	return &Scheduler{
		repo:  repo,
		pools: pools,
	}
}

// Schedule creates a task and submits its work for asynchronous
// execution. The returned task is in PENDING state on success. When the
// target pool's queue is full the task is persisted as FAILED with a
// busy message and task.ErrQueueFull is returned so transports can map
// it to a try-again-later response.
func (s *Scheduler) Schedule(ctx context.Context, kind task.Kind, fileName, parameters string, work Work) (*task.Task, error) {
	t := task.New(kind, fileName, parameters)
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	pool := s.pools.ByKind(kind)
	if err := pool.TrySubmit(func() { s.run(t.ID(), kind, work) }); err != nil {
		if failErr := t.Fail(BusyMessage); failErr == nil {
			if updErr := s.repo.Update(ctx, t); updErr != nil {
				slog.Error("failed to persist queue-full rejection", "task_id", t.ID(), "error", updErr)
			}
		}
		slog.Warn("task rejected, queue full", "task_id", t.ID(), "kind", kind)
		return t, err
	}

	slog.Info("task scheduled", "task_id", t.ID(), "kind", kind, "file", fileName)
	return t, nil
}

// RunInline creates a task and executes its work on the calling
// goroutine, returning once the task is terminal. Synchronous endpoints
// use this so direct operations leave the same audit trail as queued
// ones.
func (s *Scheduler) RunInline(ctx context.Context, kind task.Kind, fileName, parameters string, work Work) (*task.Task, error) {
	t := task.New(kind, fileName, parameters)
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.run(t.ID(), kind, work)

	done, err := s.repo.FindByID(ctx, t.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to reload task %d: %w", t.ID(), err)
	}
	if done == nil {
		return nil, &task.ErrNotFound{TaskID: t.ID()}
	}
	return done, nil
}

// RecoverInterrupted fails every task left PENDING or RUNNING by a
// previous process. Called once at startup, before the pools accept
// work: a task claiming to run with no worker attached is a lie the
// rest of the system would act on.
func (s *Scheduler) RecoverInterrupted(ctx context.Context) error {
	n, err := s.repo.FailInflight(ctx, "Interrupted by restart")
	if err != nil {
		return fmt.Errorf("failed to recover interrupted tasks: %w", err)
	}
	if n > 0 {
		slog.Warn("failed tasks interrupted by restart", "count", n)
	}
	return nil
}

// Shutdown drains the pools within the context deadline
func (s *Scheduler) Shutdown(ctx context.Context) error {
	return s.pools.Shutdown(ctx)
}

// run executes one task from claim to terminal state on the worker's
// goroutine. Uses a background context: the HTTP request that scheduled
// the task is long gone by the time a queued task runs.
func (s *Scheduler) run(taskID int64, kind task.Kind, work Work) {
	ctx := context.Background()

	t, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		slog.Error("failed to load scheduled task", "task_id", taskID, "error", err)
		return
	}
	if t == nil {
		slog.Error("scheduled task vanished", "task_id", taskID)
		return
	}
	if t.IsTerminal() {
		return
	}

	// Cancellation may arrive while the task is still queued
	if t.CancellationRequested() {
		if err := t.Cancel(); err == nil {
			s.persist(ctx, t)
		}
		slog.Info("task cancelled before start", "task_id", taskID, "kind", kind)
		return
	}

	if err := t.Start(); err != nil {
		slog.Error("failed to start task", "task_id", taskID, "error", err)
		return
	}
	s.persist(ctx, t)

	rep := NewReporter(s.repo, t)
	workErr := s.runWork(ctx, rep, work)

	switch {
	case workErr == nil:
		if err := t.Complete(""); err != nil {
			slog.Error("failed to complete task", "task_id", taskID, "error", err)
		}
	case errors.Is(workErr, ErrCancelled):
		if err := t.Cancel(); err != nil {
			slog.Error("failed to cancel task", "task_id", taskID, "error", err)
		}
	default:
		if err := t.Fail(workErr.Error()); err != nil {
			slog.Error("failed to fail task", "task_id", taskID, "error", err)
		}
	}
	s.persist(ctx, t)

	slog.Info("task finished",
		"task_id", taskID,
		"kind", kind,
		"status", t.Status(),
		"processed", t.ProcessedRecords(),
		"errors", t.ErrorCount(),
	)
}

// runWork isolates the workload so a panic fails one task instead of
// killing the worker goroutine.
func (s *Scheduler) runWork(ctx context.Context, rep *Reporter, work Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during execution: %v", r)
			slog.Error("task panicked", "task_id", rep.Task().ID(), "panic", r)
		}
	}()
	return work(ctx, rep)
}

func (s *Scheduler) persist(ctx context.Context, t *task.Task) {
	if err := s.repo.Update(ctx, t); err != nil {
		slog.Error("failed to persist task state", "task_id", t.ID(), "status", t.Status(), "error", err)
	}
}

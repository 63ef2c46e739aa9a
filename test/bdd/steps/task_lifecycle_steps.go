package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cucumber/godog"
	"gorm.io/gorm"

	"github.com/assortlab/noos-go/internal/adapters/persistence"
	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/task"
	"github.com/assortlab/noos-go/internal/infrastructure/database"
)

// taskLifecycleContext exercises the task state machine directly and,
// for the queueing scenarios, a live scheduler backed by a fresh
// database.
type taskLifecycleContext struct {
	db    *gorm.DB
	repo  *persistence.GormTaskRepository
	sched *scheduler.Scheduler

	current  *task.Task
	queued   *task.Task
	rejected *task.Task
	lastErr  error

	started   chan struct{}
	release   chan struct{}
	queuedRan atomic.Bool
}

func (tc *taskLifecycleContext) reset() {
	tc.cleanup()
	tc.current = nil
	tc.queued = nil
	tc.rejected = nil
	tc.lastErr = nil
	tc.started = nil
	tc.queuedRan.Store(false)
}

func (tc *taskLifecycleContext) cleanup() {
	if tc.release != nil {
		close(tc.release)
		tc.release = nil
	}
	if tc.sched != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = tc.sched.Shutdown(ctx)
		cancel()
		tc.sched = nil
	}
	if tc.db != nil {
		database.Close(tc.db)
		tc.db = nil
		tc.repo = nil
	}
}

// waitTerminal polls until the task leaves RUNNING or PENDING.
func waitTerminal(repo task.Repository, id int64) (*task.Task, error) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		t, err := repo.FindByID(context.Background(), id)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("task %d not found", id)
		}
		if t.IsTerminal() {
			return t, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("task %d never reached a terminal state, still %s", id, t.Status())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (tc *taskLifecycleContext) aNewTask(kind string) error {
	k, err := task.ParseKind(kind)
	if err != nil {
		return err
	}
	tc.current = task.New(k, "data.tsv", "")
	return nil
}

func (tc *taskLifecycleContext) theTaskStarts() error {
	return tc.current.Start()
}

func (tc *taskLifecycleContext) theTaskCompletes() error {
	return tc.current.Complete("")
}

func (tc *taskLifecycleContext) theTaskIsCancelled() error {
	tc.lastErr = tc.current.Cancel()
	return nil
}

func (tc *taskLifecycleContext) theTaskReportsProgress(progress int) error {
	tc.current.SetProgress(float64(progress), "", "")
	return nil
}

func (tc *taskLifecycleContext) theTaskStatusIs(status string) error {
	if got := string(tc.current.Status()); got != status {
		return fmt.Errorf("expected status %s, got %s", status, got)
	}
	return nil
}

func (tc *taskLifecycleContext) theTaskProgressIs(progress int) error {
	if got := tc.current.Progress(); got != float64(progress) {
		return fmt.Errorf("expected progress %d, got %v", progress, got)
	}
	return nil
}

func (tc *taskLifecycleContext) theOperationFailsWith(message string) error {
	if tc.lastErr == nil {
		return fmt.Errorf("expected the operation to fail")
	}
	if !strings.Contains(tc.lastErr.Error(), message) {
		return fmt.Errorf("expected error mentioning %q, got %q", message, tc.lastErr.Error())
	}
	return nil
}

func (tc *taskLifecycleContext) aSchedulerWithWorkersAndQueueSlots(workers, slots int) error {
	db, err := database.NewTestConnection()
	if err != nil {
		return fmt.Errorf("failed to create test database: %w", err)
	}
	tc.db = db
	tc.repo = persistence.NewGormTaskRepository(db)
	tc.sched = scheduler.New(tc.repo, scheduler.NewPools(workers, slots, 1, 1, 1, 1))
	return nil
}

func (tc *taskLifecycleContext) aLongRunningUploadOccupiesTheWorker() error {
	tc.started = make(chan struct{})
	tc.release = make(chan struct{})
	_, err := tc.sched.Schedule(context.Background(), task.KindStylesUpload, "big.tsv", "",
		func(ctx context.Context, rep *scheduler.Reporter) error {
			close(tc.started)
			<-tc.release
			return nil
		})
	if err != nil {
		return err
	}
	select {
	case <-tc.started:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("the blocking upload never started")
	}
}

func (tc *taskLifecycleContext) anUploadWaitsInTheQueue() error {
	queued, err := tc.sched.Schedule(context.Background(), task.KindSkusUpload, "skus.tsv", "",
		func(ctx context.Context, rep *scheduler.Reporter) error {
			tc.queuedRan.Store(true)
			return nil
		})
	if err != nil {
		return err
	}
	tc.queued = queued
	return nil
}

func (tc *taskLifecycleContext) anotherUploadIsScheduled() error {
	tc.rejected, tc.lastErr = tc.sched.Schedule(context.Background(), task.KindStoresUpload, "stores.tsv", "",
		func(ctx context.Context, rep *scheduler.Reporter) error { return nil })
	return nil
}

func (tc *taskLifecycleContext) theRequestIsRejectedAsBusy() error {
	if !errors.Is(tc.lastErr, task.ErrQueueFull) {
		return fmt.Errorf("expected a queue-full rejection, got %v", tc.lastErr)
	}
	return nil
}

func (tc *taskLifecycleContext) theRejectedTaskIsRecordedWith(status, message string) error {
	if tc.rejected == nil {
		return fmt.Errorf("no rejected task recorded")
	}
	stored, err := tc.repo.FindByID(context.Background(), tc.rejected.ID())
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("rejected task %d not persisted", tc.rejected.ID())
	}
	if got := string(stored.Status()); got != status {
		return fmt.Errorf("expected status %s, got %s", status, got)
	}
	if stored.ErrorMessage() != message {
		return fmt.Errorf("expected error message %q, got %q", message, stored.ErrorMessage())
	}
	return nil
}

func (tc *taskLifecycleContext) cancellationIsRequestedForTheQueuedTask() error {
	ok, err := tc.repo.RequestCancellation(context.Background(), tc.queued.ID())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cancellation request for task %d was not accepted", tc.queued.ID())
	}
	return nil
}

func (tc *taskLifecycleContext) theWorkerIsReleased() error {
	if tc.release == nil {
		return fmt.Errorf("no worker is blocked")
	}
	close(tc.release)
	tc.release = nil
	return nil
}

func (tc *taskLifecycleContext) theQueuedTaskEndsWithoutRunning(status string) error {
	stored, err := waitTerminal(tc.repo, tc.queued.ID())
	if err != nil {
		return err
	}
	if got := string(stored.Status()); got != status {
		return fmt.Errorf("expected status %s, got %s", status, got)
	}
	if tc.queuedRan.Load() {
		return fmt.Errorf("the queued work ran despite cancellation")
	}
	return nil
}

func InitializeTaskLifecycleScenario(ctx *godog.ScenarioContext) {
	tc := &taskLifecycleContext{}

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return c, nil
	})
	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.cleanup()
		return c, nil
	})

	ctx.Step(`^a new ([A-Z_]+) task$`, tc.aNewTask)
	ctx.Step(`^the task starts$`, tc.theTaskStarts)
	ctx.Step(`^the task completes$`, tc.theTaskCompletes)
	ctx.Step(`^the task is cancelled$`, tc.theTaskIsCancelled)
	ctx.Step(`^the task reports progress (\d+)$`, tc.theTaskReportsProgress)
	ctx.Step(`^the task status is "([^"]*)"$`, tc.theTaskStatusIs)
	ctx.Step(`^the task progress is (\d+)$`, tc.theTaskProgressIs)
	ctx.Step(`^the operation fails with "([^"]*)"$`, tc.theOperationFailsWith)
	ctx.Step(`^a scheduler with (\d+) file workers? and (\d+) queue slots?$`, tc.aSchedulerWithWorkersAndQueueSlots)
	ctx.Step(`^a long-running upload occupies the worker$`, tc.aLongRunningUploadOccupiesTheWorker)
	ctx.Step(`^an upload waits in the queue$`, tc.anUploadWaitsInTheQueue)
	ctx.Step(`^another upload is scheduled$`, tc.anotherUploadIsScheduled)
	ctx.Step(`^the request is rejected as busy$`, tc.theRequestIsRejectedAsBusy)
	ctx.Step(`^the rejected task is recorded as "([^"]*)" with message "([^"]*)"$`, tc.theRejectedTaskIsRecordedWith)
	ctx.Step(`^cancellation is requested for the queued task$`, tc.cancellationIsRequestedForTheQueuedTask)
	ctx.Step(`^the worker is released$`, tc.theWorkerIsReleased)
	ctx.Step(`^the queued task ends "([^"]*)" without ever running$`, tc.theQueuedTaskEndsWithoutRunning)
}

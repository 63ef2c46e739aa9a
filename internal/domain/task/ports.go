package task

import "context"

// KindStats aggregates outcomes for one task kind over a window
type KindStats struct {
	Total     int64
	Completed int64
	Failed    int64
}

// StatusCounts aggregates task counts per lifecycle state
type StatusCounts struct {
	Total     int64
	Running   int64
	Pending   int64
	Completed int64
	Failed    int64
	Cancelled int64
}

// Repository handles persistence of tasks
type Repository interface {
	// Create inserts a new task and binds the generated id. The insert
	// commits in its own transaction before Create returns, so the row
	// is visible to workers on other connections immediately.
	Create(ctx context.Context, t *Task) error

	// Update saves the full mutable state of an existing task.
	// Last-writer-wins at the row level; safe from any worker.
	Update(ctx context.Context, t *Task) error

	// FindByID retrieves a task by id. Returns nil, nil when unknown.
	FindByID(ctx context.Context, id int64) (*Task, error)

	// ListRecent retrieves the most recently created tasks
	ListRecent(ctx context.Context, limit int) ([]*Task, error)

	// ListByStatus retrieves tasks in a given state, newest first
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Task, error)

	// CountByStatus counts tasks per lifecycle state
	CountByStatus(ctx context.Context) (*StatusCounts, error)

	// RequestCancellation sets the cancellation flag on a non-terminal
	// task. Returns false when the task is unknown or already terminal.
	RequestCancellation(ctx context.Context, id int64) (bool, error)

	// IsCancellationRequested reads the current cancellation flag.
	// Workers poll this at their defined checkpoints.
	IsCancellationRequested(ctx context.Context, id int64) (bool, error)

	// StatsByKindSince aggregates outcomes for a kind over the last N days
	StatsByKindSince(ctx context.Context, kind Kind, days int) (*KindStats, error)

	// FailInflight marks every PENDING or RUNNING task as FAILED with the
	// given message. Called once on process start to clear zombies.
	FailInflight(ctx context.Context, message string) (int64, error)
}

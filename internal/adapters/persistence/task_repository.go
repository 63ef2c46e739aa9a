package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/assortlab/noos-go/internal/domain/task"
)

// GormTaskRepository implements task.Repository using GORM
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GORM task repository
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

// Create persists a new task and binds the generated id. The insert runs
// on the bare connection in autocommit mode, never inside a caller's
// transaction, so the row is visible to workers on other connections
// before Create returns.
func (r *GormTaskRepository) Create(ctx context.Context, t *task.Task) error {
	model := r.taskToModel(t)

	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return fmt.Errorf("failed to create task: %w", result.Error)
	}

	t.BindID(model.ID)
	return nil
}

// Update saves the full mutable state of an existing task.
// Last-writer-wins at the row level: a task is mutated by exactly one
// worker between RUNNING and terminal, and external actors only toggle
// the cancellation flag through RequestCancellation.
func (r *GormTaskRepository) Update(ctx context.Context, t *task.Task) error {
	model := r.taskToModel(t)

	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update task %d: %w", t.ID(), result.Error)
	}

	return nil
}

// FindByID retrieves a task by id. Returns nil, nil when unknown.
func (r *GormTaskRepository) FindByID(ctx context.Context, id int64) (*task.Task, error) {
	var model TaskModel
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&model)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find task %d: %w", id, result.Error)
	}

	return r.modelToTask(&model), nil
}

// ListRecent retrieves the most recently created tasks
func (r *GormTaskRepository) ListRecent(ctx context.Context, limit int) ([]*task.Task, error) {
	var models []TaskModel
	result := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", result.Error)
	}

	return r.modelsToTasks(models), nil
}

// ListByStatus retrieves tasks in a given state, newest first
func (r *GormTaskRepository) ListByStatus(ctx context.Context, status task.Status, limit int) ([]*task.Task, error) {
	var models []TaskModel
	result := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list tasks by status %s: %w", status, result.Error)
	}

	return r.modelsToTasks(models), nil
}

// CountByStatus counts tasks per lifecycle state
func (r *GormTaskRepository) CountByStatus(ctx context.Context) (*task.StatusCounts, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	result := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", result.Error)
	}

	counts := &task.StatusCounts{}
	for _, row := range rows {
		counts.Total += row.Count
		switch task.Status(row.Status) {
		case task.StatusPending:
			counts.Pending = row.Count
		case task.StatusRunning:
			counts.Running = row.Count
		case task.StatusCompleted:
			counts.Completed = row.Count
		case task.StatusFailed:
			counts.Failed = row.Count
		case task.StatusCancelled:
			counts.Cancelled = row.Count
		}
	}

	return counts, nil
}

// RequestCancellation sets the cancellation flag on a non-terminal task.
// The single UPDATE with a status guard keeps the flag monotonic without
// read-modify-write races against the owning worker.
func (r *GormTaskRepository) RequestCancellation(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ? AND status IN ?", id, []string{
			string(task.StatusPending),
			string(task.StatusRunning),
		}).
		Updates(map[string]interface{}{
			"cancellation_requested": true,
			"updated_at":             time.Now().UTC(),
		})

	if result.Error != nil {
		return false, fmt.Errorf("failed to request cancellation for task %d: %w", id, result.Error)
	}

	return result.RowsAffected > 0, nil
}

// IsCancellationRequested reads the current cancellation flag. Workers
// poll this at their checkpoints; a missing row reads as not requested.
func (r *GormTaskRepository) IsCancellationRequested(ctx context.Context, id int64) (bool, error) {
	var requested bool
	result := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ?", id).
		Pluck("cancellation_requested", &requested)

	if result.Error != nil {
		return false, fmt.Errorf("failed to read cancellation flag for task %d: %w", id, result.Error)
	}

	return requested, nil
}

// StatsByKindSince aggregates outcomes for a kind over the last N days
func (r *GormTaskRepository) StatsByKindSince(ctx context.Context, kind task.Kind, days int) (*task.KindStats, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	type outcomeCount struct {
		Status string
		Count  int64
	}

	var rows []outcomeCount
	result := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Select("status, COUNT(*) as count").
		Where("kind = ? AND created_at >= ?", string(kind), since).
		Group("status").
		Scan(&rows)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to aggregate task stats for %s: %w", kind, result.Error)
	}

	stats := &task.KindStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch task.Status(row.Status) {
		case task.StatusCompleted:
			stats.Completed = row.Count
		case task.StatusFailed:
			stats.Failed = row.Count
		}
	}

	return stats, nil
}

// FailInflight marks every PENDING or RUNNING task as FAILED with the
// given message. Runs once on process start so tasks interrupted by a
// crash or restart do not linger as zombies.
func (r *GormTaskRepository) FailInflight(ctx context.Context, message string) (int64, error) {
	now := time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("status IN ?", []string{
			string(task.StatusPending),
			string(task.StatusRunning),
		}).
		Updates(map[string]interface{}{
			"status":        string(task.StatusFailed),
			"message":       message,
			"error_message": message,
			"ended_at":      now,
			"updated_at":    now,
		})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to fail in-flight tasks: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (r *GormTaskRepository) modelsToTasks(models []TaskModel) []*task.Task {
	tasks := make([]*task.Task, len(models))
	for i := range models {
		tasks[i] = r.modelToTask(&models[i])
	}
	return tasks
}

// taskToModel converts domain entity to database model
func (r *GormTaskRepository) taskToModel(t *task.Task) *TaskModel {
	var errorMsg *string
	if t.ErrorMessage() != "" {
		msg := t.ErrorMessage()
		errorMsg = &msg
	}

	var resultPath *string
	if t.ResultPath() != "" {
		p := t.ResultPath()
		resultPath = &p
	}

	return &TaskModel{
		ID:                    t.ID(),
		Kind:                  string(t.Kind()),
		Status:                string(t.Status()),
		Progress:              t.Progress(),
		Phase:                 t.Phase(),
		Message:               t.Message(),
		FileName:              t.FileName(),
		Parameters:            t.Parameters(),
		TotalRecords:          t.TotalRecords(),
		ProcessedRecords:      t.ProcessedRecords(),
		ErrorCount:            t.ErrorCount(),
		ErrorMessage:          errorMsg,
		ResultPath:            resultPath,
		CancellationRequested: t.CancellationRequested(),
		CreatedAt:             t.CreatedAt(),
		StartedAt:             t.StartedAt(),
		EndedAt:               t.EndedAt(),
		UpdatedAt:             t.UpdatedAt(),
	}
}

// modelToTask converts database model to domain entity
func (r *GormTaskRepository) modelToTask(m *TaskModel) *task.Task {
	var errorMsg string
	if m.ErrorMessage != nil {
		errorMsg = *m.ErrorMessage
	}

	var resultPath string
	if m.ResultPath != nil {
		resultPath = *m.ResultPath
	}

	return task.Reconstitute(
		m.ID,
		task.Kind(m.Kind),
		task.Status(m.Status),
		m.Progress,
		m.Phase,
		m.Message,
		m.FileName,
		m.Parameters,
		m.TotalRecords,
		m.ProcessedRecords,
		m.ErrorCount,
		errorMsg,
		resultPath,
		m.CancellationRequested,
		m.CreatedAt,
		m.StartedAt,
		m.EndedAt,
		m.UpdatedAt,
	)
}

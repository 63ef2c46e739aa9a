package task

import (
	"fmt"
	"time"
)

// Kind identifies the workload a task carries
type Kind string

const (
	// KindStylesUpload - ingest a styles master-data TSV
	KindStylesUpload Kind = "STYLES_UPLOAD"

	// KindStoresUpload - ingest a stores master-data TSV
	KindStoresUpload Kind = "STORES_UPLOAD"

	// KindSkusUpload - ingest a SKUs master-data TSV
	KindSkusUpload Kind = "SKUS_UPLOAD"

	// KindSalesUpload - ingest a sales TSV (complete replacement)
	KindSalesUpload Kind = "SALES_UPLOAD"

	// KindStylesDownload - export styles to a TSV file
	KindStylesDownload Kind = "STYLES_DOWNLOAD"

	// KindStoresDownload - export stores to a TSV file
	KindStoresDownload Kind = "STORES_DOWNLOAD"

	// KindSkusDownload - export SKUs to a TSV file
	KindSkusDownload Kind = "SKUS_DOWNLOAD"

	// KindSalesDownload - export sales to a TSV file
	KindSalesDownload Kind = "SALES_DOWNLOAD"

	// KindNoosDownload - export NOOS classification results to a TSV file
	KindNoosDownload Kind = "NOOS_DOWNLOAD"

	// KindAlgorithmRun - execute the NOOS classification algorithm
	KindAlgorithmRun Kind = "ALGORITHM_RUN"
)

// Status represents the lifecycle state of a task
type Status string

const (
	// StatusPending - created and queued, not yet picked up by a worker
	StatusPending Status = "PENDING"

	// StatusRunning - executing on exactly one worker
	StatusRunning Status = "RUNNING"

	// StatusCompleted - finished successfully
	StatusCompleted Status = "COMPLETED"

	// StatusFailed - finished with an error
	StatusFailed Status = "FAILED"

	// StatusCancelled - terminated after observing a cancellation request
	StatusCancelled Status = "CANCELLED"
)

// Task is a persisted record of one asynchronous unit of work.
//
// State machine:
//
//	PENDING -> RUNNING -> COMPLETED
//	                  \-> FAILED
//	                  \-> CANCELLED
//
// The worker executing a task is its sole mutator between RUNNING and a
// terminal state. The cancellation flag is the only field another actor
// may set, and it is monotonic: once requested it stays requested.
type Task struct {
	id     int64
	kind   Kind
	status Status

	// Progress reporting
	progress float64 // 0.0 - 100.0, non-decreasing until terminal
	phase    string
	message  string

	// Workload descriptors
	fileName   string
	parameters string

	// Counters
	totalRecords     int
	processedRecords int
	errorCount       int

	// Outcome
	errorMessage string
	resultPath   string

	cancellationRequested bool

	// Timing
	createdAt time.Time
	startedAt *time.Time
	endedAt   *time.Time
	updatedAt time.Time
}

// New creates a task in PENDING state. The id is zero until the task
// is persisted; the repository assigns it on insert.
func New(kind Kind, fileName, parameters string) *Task {
	now := time.Now().UTC()
	return &Task{
		kind:       kind,
		status:     StatusPending,
		progress:   0,
		fileName:   fileName,
		parameters: parameters,
		createdAt:  now,
		updatedAt:  now,
	}
}

// Reconstitute rebuilds a task from persisted state (for repository use only)
func Reconstitute(
	id int64,
	kind Kind,
	status Status,
	progress float64,
	phase string,
	message string,
	fileName string,
	parameters string,
	totalRecords int,
	processedRecords int,
	errorCount int,
	errorMessage string,
	resultPath string,
	cancellationRequested bool,
	createdAt time.Time,
	startedAt *time.Time,
	endedAt *time.Time,
	updatedAt time.Time,
) *Task {
	return &Task{
		id:                    id,
		kind:                  kind,
		status:                status,
		progress:              progress,
		phase:                 phase,
		message:               message,
		fileName:              fileName,
		parameters:            parameters,
		totalRecords:          totalRecords,
		processedRecords:      processedRecords,
		errorCount:            errorCount,
		errorMessage:          errorMessage,
		resultPath:            resultPath,
		cancellationRequested: cancellationRequested,
		createdAt:             createdAt,
		startedAt:             startedAt,
		endedAt:               endedAt,
		updatedAt:             updatedAt,
	}
}

// Getters

func (t *Task) ID() int64                   { return t.id }
func (t *Task) Kind() Kind                  { return t.kind }
func (t *Task) Status() Status              { return t.status }
func (t *Task) Progress() float64           { return t.progress }
func (t *Task) Phase() string               { return t.phase }
func (t *Task) Message() string             { return t.message }
func (t *Task) FileName() string            { return t.fileName }
func (t *Task) Parameters() string          { return t.parameters }
func (t *Task) TotalRecords() int           { return t.totalRecords }
func (t *Task) ProcessedRecords() int       { return t.processedRecords }
func (t *Task) ErrorCount() int             { return t.errorCount }
func (t *Task) ErrorMessage() string        { return t.errorMessage }
func (t *Task) ResultPath() string          { return t.resultPath }
func (t *Task) CancellationRequested() bool { return t.cancellationRequested }
func (t *Task) CreatedAt() time.Time        { return t.createdAt }
func (t *Task) StartedAt() *time.Time       { return t.startedAt }
func (t *Task) EndedAt() *time.Time         { return t.endedAt }
func (t *Task) UpdatedAt() time.Time        { return t.updatedAt }

// BindID assigns the identifier generated on insert (for repository use only)
func (t *Task) BindID(id int64) {
	t.id = id
}

// State transitions

// Start transitions the task from PENDING to RUNNING
func (t *Task) Start() error {
	if t.status != StatusPending {
		return &ErrInvalidTransition{
			TaskID: t.id,
			From:   t.status,
			To:     StatusRunning,
		}
	}
	t.status = StatusRunning
	now := time.Now().UTC()
	t.startedAt = &now
	t.touch(now)
	return nil
}

// Complete marks the task as successfully finished. Progress is forced
// to 100 so the completed/100% pairing holds on every exit path.
func (t *Task) Complete(message string) error {
	if t.status != StatusRunning {
		return &ErrInvalidTransition{
			TaskID:      t.id,
			From:        t.status,
			To:          StatusCompleted,
			Description: "can only complete from RUNNING state",
		}
	}
	t.status = StatusCompleted
	t.progress = 100.0
	if message != "" {
		t.message = message
	}
	now := time.Now().UTC()
	t.endedAt = &now
	t.touch(now)
	return nil
}

// Fail marks the task as failed with an error message. Allowed from
// PENDING as well as RUNNING: a rejected submission fails the task
// before any worker picks it up.
func (t *Task) Fail(errorMsg string) error {
	if t.status != StatusPending && t.status != StatusRunning {
		return &ErrInvalidTransition{
			TaskID:      t.id,
			From:        t.status,
			To:          StatusFailed,
			Description: "can only fail from PENDING or RUNNING state",
		}
	}
	t.status = StatusFailed
	t.errorMessage = errorMsg
	t.message = errorMsg
	now := time.Now().UTC()
	t.endedAt = &now
	t.touch(now)
	return nil
}

// Cancel marks the task as cancelled after a worker observed the
// cancellation flag at a checkpoint.
func (t *Task) Cancel() error {
	if t.IsTerminal() {
		return &ErrInvalidTransition{
			TaskID:      t.id,
			From:        t.status,
			To:          StatusCancelled,
			Description: "task is already terminal",
		}
	}
	t.status = StatusCancelled
	t.message = "Task was cancelled by user"
	now := time.Now().UTC()
	t.endedAt = &now
	t.touch(now)
	return nil
}

// RequestCancellation sets the cooperative cancellation flag. The flag
// is monotonic and a no-op on terminal tasks.
func (t *Task) RequestCancellation() {
	if t.IsTerminal() {
		return
	}
	t.cancellationRequested = true
	t.touch(time.Now().UTC())
}

// SetProgress records a progress milestone with its phase tag and
// message. Progress never regresses: a lower value only updates the
// phase and message. Terminal tasks are left untouched.
func (t *Task) SetProgress(progress float64, phase, message string) {
	if t.IsTerminal() {
		return
	}
	if progress > t.progress && progress <= 100.0 {
		// 100 is reserved for Complete
		if progress >= 100.0 {
			progress = 99.0
		}
		t.progress = progress
	}
	if phase != "" {
		t.phase = phase
	}
	if message != "" {
		t.message = message
	}
	t.touch(time.Now().UTC())
}

// Counter and result setters

func (t *Task) SetTotalRecords(n int)     { t.totalRecords = n; t.touch(time.Now().UTC()) }
func (t *Task) SetProcessedRecords(n int) { t.processedRecords = n; t.touch(time.Now().UTC()) }
func (t *Task) SetErrorCount(n int)       { t.errorCount = n; t.touch(time.Now().UTC()) }

// SetResult records the file produced by a download task
func (t *Task) SetResult(path string, processedRecords int) {
	t.resultPath = path
	t.processedRecords = processedRecords
	t.touch(time.Now().UTC())
}

// IsTerminal returns true if the task reached COMPLETED, FAILED or CANCELLED
func (t *Task) IsTerminal() bool {
	return t.status == StatusCompleted || t.status == StatusFailed || t.status == StatusCancelled
}

// String provides a human-readable representation
func (t *Task) String() string {
	return fmt.Sprintf("Task[%d, kind=%s, status=%s, progress=%.1f%%]",
		t.id, t.kind, t.status, t.progress)
}

func (t *Task) touch(now time.Time) {
	t.updatedAt = now
}

// ParseKind validates a raw kind string
func ParseKind(raw string) (Kind, error) {
	k := Kind(raw)
	switch k {
	case KindStylesUpload, KindStoresUpload, KindSkusUpload, KindSalesUpload,
		KindStylesDownload, KindStoresDownload, KindSkusDownload, KindSalesDownload,
		KindNoosDownload, KindAlgorithmRun:
		return k, nil
	}
	return "", fmt.Errorf("unknown task kind: %q", raw)
}

// ParseStatus validates a raw status string
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("unknown task status: %q", raw)
}

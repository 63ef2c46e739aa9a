package task

import (
	"errors"
	"fmt"
)

// ErrQueueFull is returned by a worker pool when its bounded queue cannot
// accept another submission. Callers map it to a busy response.
var ErrQueueFull = errors.New("task queue full")

// ErrInvalidTransition indicates an invalid task state transition
type ErrInvalidTransition struct {
	TaskID      int64
	From        Status
	To          Status
	Description string
}

func (e *ErrInvalidTransition) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("invalid task transition for %d: %s -> %s: %s",
			e.TaskID, e.From, e.To, e.Description)
	}
	return fmt.Sprintf("invalid task transition for %d: %s -> %s",
		e.TaskID, e.From, e.To)
}

// ErrNotFound indicates a task could not be found
type ErrNotFound struct {
	TaskID int64
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("task not found: %d", e.TaskID)
}

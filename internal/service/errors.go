package service

import "fmt"

// ValidationError reports a malformed create or update payload. It names
// the offending field and is never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError covers both a missing task and a task the caller may not
// see. The two cases are deliberately indistinguishable so that existence
// is not leaked to unauthorized callers.
type NotFoundError struct {
	TaskID uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %d not found", e.TaskID)
}

// InvalidStateError reports an operation that is illegal for the task's
// current status, e.g. stopping a task that is not running.
type InvalidStateError struct {
	TaskID uint
	Status string
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s task %d in status %q", e.Op, e.TaskID, e.Status)
}

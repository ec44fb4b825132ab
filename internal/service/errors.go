package service

import "fmt"

// InvalidStateError indicates an operation was called in a session state
// that does not permit it, e.g. grading before the answer was revealed.
type InvalidStateError struct {
	UserID string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid session state for user %s: %s", e.UserID, e.Reason)
}

// NotFoundError indicates a referenced entity does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

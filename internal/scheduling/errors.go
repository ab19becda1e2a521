package scheduling

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maheshrc27/postflow/internal/models"
)

var (
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNotDragging         = errors.New("no drag in progress")
	ErrDragInProgress      = errors.New("a drag is already in progress")
	ErrPublicationNotFound = errors.New("publication not found")
	ErrInvalidSlot         = errors.New("slot index out of range")
)

// ValidationError carries the messages of a failed content or schedule check.
// It never implies that a publication was changed.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

type InvalidTransitionError struct {
	From models.PublicationStatus
	To   models.PublicationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move publication from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// DragRejectedError is returned when a drag starts on a publication that cannot move.
type DragRejectedError struct {
	PublicationID string
	Status        models.PublicationStatus
	Reason        string
}

func (e *DragRejectedError) Error() string {
	return fmt.Sprintf("publication %s cannot be moved: %s", e.PublicationID, e.Reason)
}

// CommitFailureError means the external store refused the new schedule and the
// local state was rolled back. The caller decides whether to retry.
type CommitFailureError struct {
	PublicationID string
	Err           error
}

func (e *CommitFailureError) Error() string {
	return fmt.Sprintf("failed to commit schedule for publication %s: %v", e.PublicationID, e.Err)
}

func (e *CommitFailureError) Unwrap() error {
	return e.Err
}

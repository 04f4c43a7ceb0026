package form

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/learnspace/client"
)

var (
	ErrNotLoaded       = errors.New("assignment not loaded")
	ErrReadOnly        = errors.New("submission already submitted and can no longer be changed")
	ErrSaveInProgress  = errors.New("a save is already in progress")
	ErrIndexOutOfRange = errors.New("task index out of range")
	ErrInvalidStatus   = errors.New("status must be one of: draft, submitted")
	errNoSubmissionID  = errors.New("server did not return a submission id")
)

// LoadError is returned by Load. The controller is then unusable.
type LoadError struct {
	AssignmentID string
	Err          error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading assignment %s: %v", e.AssignmentID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NotFound reports whether the assignment does not exist or is not visible.
func (e *LoadError) NotFound() bool { return errors.Is(e.Err, client.ErrNotFound) }

// SaveError is returned by Save when the gateway call failed. Local edits are kept.
type SaveError struct {
	Mode Mode
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("%s submission: %v", e.Mode, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Conflict reports a create rejected because a submission already exists.
// It means the controller lost track of the submission; retrying will not help.
func (e *SaveError) Conflict() bool { return errors.Is(e.Err, client.ErrConflict) }

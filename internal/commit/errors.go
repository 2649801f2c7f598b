package commit

import (
	"errors"
	"fmt"
)

var (
	// ErrDestinationLocked is returned when the destination stayed locked
	// through every retry and fallback name.
	ErrDestinationLocked = errors.New("destination is locked")

	// ErrTempVanished is returned when the temporary file disappeared again
	// after it had already been regenerated.
	ErrTempVanished = errors.New("temporary file disappeared")

	// ErrCommitFailed is returned for any other unrecoverable write failure.
	ErrCommitFailed = errors.New("commit failed")
)

// CommitError records which step failed for which path.
type CommitError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *CommitError) Error() string {
	return fmt.Sprintf("commit: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *CommitError) Unwrap() error {
	return e.Err
}

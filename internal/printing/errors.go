package printing

import (
	"errors"
	"fmt"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

var (
	// ErrNoLocalPrinter means no USB, serial or parallel printer is attached.
	// Network printers never satisfy a lookup.
	ErrNoLocalPrinter = errors.New("no local printer found")

	// ErrConnectionStale is returned when the backend cannot be reached
	// while re-establishing the connection.
	ErrConnectionStale = errors.New("printer connection stale")

	// ErrJobTimedOut means the job reached no terminal state in time. The
	// caller cancels the job.
	ErrJobTimedOut = errors.New("print job timed out")
)

// JobFailedError is a terminal failure reported by the backend.
type JobFailedError struct {
	JobID  model.JobID
	State  model.JobState
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %d failed: state=%s msg=%s", e.JobID, e.State, e.Reason)
}

package booth

import "fmt"

// CaptureError aborts the current cycle. It is never retried automatically.
type CaptureError struct {
	Index int
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %d failed: %v", e.Index+1, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

type CompositeError struct {
	Err error
}

func (e *CompositeError) Error() string {
	return fmt.Sprintf("composite failed: %v", e.Err)
}

func (e *CompositeError) Unwrap() error { return e.Err }

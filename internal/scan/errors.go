package scan

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by request methods after the arbitrator's Run
// loop has shut down.
var ErrStopped = errors.New("scan arbitrator stopped")

// HardwareError reports a mid-scan hardware failure: reader disconnect,
// decode fault, or the driver tearing down the session on its own.
//
// It travels on the arbitrator's fault side channel rather than the
// result stream, so consumers can tell "no result yet" apart from
// "result will never come".
type HardwareError struct {
	// Kind is the hardware source that failed.
	Kind Kind
	// Token is the session the failure terminated.
	Token string
	// Err is the underlying driver error.
	Err error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("%s scan failed: %v", e.Kind, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }

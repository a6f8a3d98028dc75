package mvswrapper

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFrame is returned by RequireNextImage when the queue is empty.
	// NextImage itself never returns it: an empty queue is the steady state.
	ErrNoFrame = errors.New("mvswrapper: no frame available")
	// ErrInvalidRotation reports a RotationDirection outside the four known values
	ErrInvalidRotation = errors.New("mvswrapper: invalid rotation direction")
	// ErrInvalidTransport reports a Transport a backend cannot enumerate
	ErrInvalidTransport = errors.New("mvswrapper: invalid transport")
	// ErrInvalidState reports an operation attempted from the wrong lifecycle state
	ErrInvalidState = errors.New("mvswrapper: invalid device state")
	// ErrReleased reports use of a device after Release
	ErrReleased = errors.New("mvswrapper: device released")
)

// SDKError wraps a vendor status code into one error domain per backend.
//
// Use errors.As to inspect the vendor and raw code regardless of which
// backend produced the failure.
type SDKError struct {
	// Vendor names the backend ("basler", "hikvision", "huaray", "aravis")
	Vendor string
	// Op is the SDK call that failed (e.g. "MV_CC_OpenDevice")
	Op string
	// Code is the raw vendor status code (zero when the SDK reports text only)
	Code int64
	// Detail carries the vendor message or exception text, if any
	Detail string
	// HexCode selects 0x%08X formatting for vendors that document codes in hex
	HexCode bool
}

func (e *SDKError) Error() string {
	var code string
	if e.HexCode {
		code = fmt.Sprintf("0x%08X", uint32(e.Code))
	} else {
		code = fmt.Sprintf("%d", e.Code)
	}

	msg := fmt.Sprintf("%s: %s failed (code %s)", e.Vendor, e.Op, code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// StateError reports an operation rejected by the lifecycle state machine.
// It matches ErrInvalidState with errors.Is.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("mvswrapper: cannot %s while %s", e.Op, e.State)
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

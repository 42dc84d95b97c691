package errors

import (
	"errors"
	"fmt"
)

// RPCStreamError is the base interface for all structured rpcstream errors.
type RPCStreamError interface {
	error
	IsRPCStreamError() bool
}

// Compile-time verification that all error types implement RPCStreamError.
var (
	_ RPCStreamError = (*MalformedFrameError)(nil)
	_ RPCStreamError = (*ProcessError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrClosed indicates the correlator has been closed and accepts no more calls.
	ErrClosed = errors.New("rpc stream closed")

	// ErrRequestTimeout indicates no response arrived within the configured window.
	ErrRequestTimeout = errors.New("response timeout")

	// ErrInvalidParams indicates params did not encode to a JSON array or object.
	ErrInvalidParams = errors.New("params must encode to a JSON array or object")

	// ErrInvalidArguments indicates Emit was called with an unusable argument list.
	ErrInvalidArguments = errors.New("invalid emit arguments")

	// ErrDuplicateID indicates a pending call was displaced by a later call with the same id.
	ErrDuplicateID = errors.New("request id reused while pending")

	// ErrTransportNotConnected indicates the process transport is not running.
	ErrTransportNotConnected = errors.New("transport not connected")
)

// MalformedFrameError indicates an inbound frame could not be decoded as JSON.
// This error preserves the original raw data that failed to parse.
type MalformedFrameError struct {
	RawData string
	Err     error
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.Err)
}

func (e *MalformedFrameError) Unwrap() error {
	return e.Err
}

// IsRPCStreamError implements RPCStreamError.
func (e *MalformedFrameError) IsRPCStreamError() bool { return true }

// ProcessError indicates the server process failed.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("server process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("server process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsRPCStreamError implements RPCStreamError.
func (e *ProcessError) IsRPCStreamError() bool { return true }

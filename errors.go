package rpcstream

import "github.com/wagiedev/rpcstream/internal/errors"

// Re-export error types from internal package

// MalformedFrameError indicates an inbound frame could not be decoded.
type MalformedFrameError = errors.MalformedFrameError

// ProcessError indicates the server process failed.
type ProcessError = errors.ProcessError

// RPCStreamError is the base interface for structured rpcstream errors.
type RPCStreamError = errors.RPCStreamError

// Re-export sentinel errors from internal package.
var (
	// ErrClosed indicates the correlator has been closed.
	ErrClosed = errors.ErrClosed

	// ErrRequestTimeout indicates a call received no response in time.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrInvalidParams indicates params did not encode to a JSON array or object.
	ErrInvalidParams = errors.ErrInvalidParams

	// ErrInvalidArguments indicates an unusable Emit argument list.
	ErrInvalidArguments = errors.ErrInvalidArguments

	// ErrDuplicateID indicates a pending call was displaced by a later call with the same id.
	ErrDuplicateID = errors.ErrDuplicateID

	// ErrTransportNotConnected indicates the process transport is not running.
	ErrTransportNotConnected = errors.ErrTransportNotConnected
)

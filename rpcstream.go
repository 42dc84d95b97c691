package rpcstream

import (
	"io"

	"github.com/wagiedev/rpcstream/internal/correlator"
	"github.com/wagiedev/rpcstream/internal/jsonrpc"
	"github.com/wagiedev/rpcstream/internal/subprocess"
)

// Correlator matches responses to calls over one duplex channel.
type Correlator = correlator.Correlator

// Completion receives the outcome of a call exactly once.
type Completion = jsonrpc.Completion

// Error is a JSON-RPC error object, remote or locally synthesized.
type Error = jsonrpc.Error

// Request is an outbound call.
type Request = jsonrpc.Request

// Notification is an outbound fire-and-forget message.
type Notification = jsonrpc.Notification

// Response is an inbound reply.
type Response = jsonrpc.Response

// IDGenerator produces request ids unique among outstanding calls.
type IDGenerator = jsonrpc.IDGenerator

// ProcessConfig describes a server process for WithProcess.
type ProcessConfig = subprocess.Config

// Error codes synthesized locally.
const (
	// CodeResponseTimeout marks a call that received no response in time.
	CodeResponseTimeout = jsonrpc.CodeResponseTimeout

	// CodeConnectionClosed marks a call still pending when the correlator closed.
	CodeConnectionClosed = jsonrpc.CodeConnectionClosed

	// CodeDuplicateID marks a call displaced by a later call with the same id.
	CodeDuplicateID = jsonrpc.CodeDuplicateID
)

// New creates a Correlator that writes outbound frames to out. Feed inbound
// frames to the returned Correlator with Serve or Write.
func New(out io.Writer, opts ...Option) *Correlator {
	return correlator.New(out, applyOptions(opts))
}

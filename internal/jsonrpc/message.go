package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/wagiedev/rpcstream/internal/errors"
)

// Version is the protocol version tag carried by every outbound message.
const Version = "2.0"

// Locally synthesized error codes. They sit outside the range reserved by
// JSON-RPC 2.0 so callers can tell them apart from remote failures.
const (
	// CodeResponseTimeout marks a call that received no response in time.
	CodeResponseTimeout = -3199

	// CodeConnectionClosed marks a call still pending when the correlator closed.
	CodeConnectionClosed = -3198

	// CodeDuplicateID marks a call displaced by a later call with the same id.
	CodeDuplicateID = -3197
)

// Outbound is a message queued for transmission: a Request or a Notification.
type Outbound interface {
	// MethodName returns the method being invoked.
	MethodName() string

	// IsCall reports whether the message expects a response.
	IsCall() bool
}

// Compile-time verification that both outbound shapes implement Outbound.
var (
	_ Outbound = (*Request)(nil)
	_ Outbound = (*Notification)(nil)
)

// Request is an outbound call that expects exactly one response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id"`
}

// MethodName implements Outbound.
func (r *Request) MethodName() string { return r.Method }

// IsCall implements Outbound.
func (r *Request) IsCall() bool { return true }

// Notification is a fire-and-forget outbound message. It carries no id.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MethodName implements Outbound.
func (n *Notification) MethodName() string { return n.Method }

// IsCall implements Outbound.
func (n *Notification) IsCall() bool { return false }

// Response is one inbound reply. Result and Error are mutually exclusive in
// well-formed input; when both are present Error wins.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object, either received from the remote side or
// synthesized locally for timeouts and shutdown.
type Error struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Is lets errors.Is match locally synthesized errors against the sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case errors.ErrRequestTimeout:
		return e.Code == CodeResponseTimeout
	case errors.ErrClosed:
		return e.Code == CodeConnectionClosed
	case errors.ErrDuplicateID:
		return e.Code == CodeDuplicateID
	default:
		return false
	}
}

// NewTimeoutError builds the error delivered to a call that was never answered.
// The original request is attached as error data.
func NewTimeoutError(req *Request) *Error {
	e := &Error{Code: CodeResponseTimeout, Message: "Response timeout"}

	if req != nil {
		if data, err := json.Marshal(req); err == nil {
			e.Data = data
		}
	}

	return e
}

// NewClosedError builds the error delivered to calls pending at shutdown.
func NewClosedError() *Error {
	return &Error{Code: CodeConnectionClosed, Message: "Connection closed"}
}

// NewDuplicateIDError builds the error delivered to a pending call whose id
// was reused by req before a response arrived.
func NewDuplicateIDError(req *Request) *Error {
	data, _ := json.Marshal(req)

	return &Error{Code: CodeDuplicateID, Message: "Duplicate request id", Data: data}
}

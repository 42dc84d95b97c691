package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wagiedev/rpcstream/internal/errors"
)

// Completion receives the outcome of a call exactly once. On failure err is
// the remote error object (or a synthesized timeout/closed error) and result
// is nil.
type Completion func(err *Error, result json.RawMessage)

// Build turns an emit argument list into an outbound message.
//
// args is [params] [completion]. When the first argument is itself a
// completion it is taken as the completion and params are absent. With a
// completion the result is a Request carrying next(); without one it is a
// Notification and the returned Completion is nil.
func Build(next IDGenerator, method string, args ...any) (Outbound, Completion, error) {
	var (
		params any
		done   Completion
	)

	switch len(args) {
	case 0:
	case 1:
		if fn, ok := asCompletion(args[0]); ok {
			done = fn
		} else {
			params = args[0]
		}
	case 2:
		params = args[0]

		fn, ok := asCompletion(args[1])
		if !ok && args[1] != nil {
			return nil, nil, fmt.Errorf("%w: last argument is %T, want a completion", errors.ErrInvalidArguments, args[1])
		}

		done = fn
	default:
		return nil, nil, fmt.Errorf("%w: got %d arguments, want at most 2", errors.ErrInvalidArguments, len(args))
	}

	raw, err := encodeParams(params)
	if err != nil {
		return nil, nil, err
	}

	if done == nil {
		return &Notification{JSONRPC: Version, Method: method, Params: raw}, nil, nil
	}

	if next == nil {
		return nil, nil, fmt.Errorf("%w: no id generator", errors.ErrInvalidArguments)
	}

	return &Request{JSONRPC: Version, Method: method, Params: raw, ID: next()}, done, nil
}

// asCompletion reports whether v has a completion type. A nil completion
// yields ok with a nil function so the caller treats the emit as a notification.
func asCompletion(v any) (Completion, bool) {
	switch fn := v.(type) {
	case Completion:
		return fn, true
	case func(*Error, json.RawMessage):
		return fn, true
	default:
		return nil, false
	}
}

// encodeParams marshals params, dropping absent values and rejecting scalars.
func encodeParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}

	var (
		data []byte
		err  error
	)

	if raw, ok := params.(json.RawMessage); ok {
		data = raw
	} else {
		data, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	if data[0] != '[' && data[0] != '{' {
		return nil, fmt.Errorf("%w: got %s", errors.ErrInvalidParams, data)
	}

	return json.RawMessage(data), nil
}

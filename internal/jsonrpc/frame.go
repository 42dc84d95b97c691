package jsonrpc

import (
	"bytes"
	"encoding/json"
	stderrors "errors"

	"github.com/wagiedev/rpcstream/internal/errors"
)

// FrameKind tells a single response apart from a batch.
type FrameKind int

const (
	// FrameSingle is one response object.
	FrameSingle FrameKind = iota
	// FrameBatch is a JSON array of responses.
	FrameBatch
)

func (k FrameKind) String() string {
	if k == FrameBatch {
		return "batch"
	}

	return "single"
}

// Frame is one decoded inbound JSON text.
type Frame struct {
	Kind      FrameKind
	Responses []*Response
}

// DecodeFrame decodes one JSON text into a single response or a batch.
//
// A text that is not valid JSON yields a *errors.MalformedFrameError and a
// nil frame. Valid values that are not objects decode to id-less responses,
// which dispatch drops. Batch elements whose fields have the wrong types are
// skipped; the frame still carries the other elements and the returned error
// joins one MalformedFrameError per skipped element.
func DecodeFrame(data []byte) (*Frame, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, &errors.MalformedFrameError{Err: stderrors.New("empty frame")}
	}

	if data[0] != '[' {
		resp, err := decodeResponse(data)
		if err != nil {
			return nil, err
		}

		return &Frame{Kind: FrameSingle, Responses: []*Response{resp}}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, &errors.MalformedFrameError{RawData: string(data), Err: err}
	}

	frame := &Frame{Kind: FrameBatch, Responses: make([]*Response, 0, len(elems))}

	var errs []error

	for _, elem := range elems {
		resp, err := decodeResponse(elem)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		frame.Responses = append(frame.Responses, resp)
	}

	return frame, stderrors.Join(errs...)
}

// decodeResponse decodes one response object. A valid JSON value that is not
// an object carries no id and decodes to an empty response.
func decodeResponse(data []byte) (*Response, error) {
	if len(data) > 0 && data[0] != '{' && json.Valid(data) {
		return &Response{}, nil
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &errors.MalformedFrameError{RawData: string(data), Err: err}
	}

	return &resp, nil
}

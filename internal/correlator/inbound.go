package correlator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/wagiedev/rpcstream/internal/jsonrpc"
)

// Compile-time verification that the inbound side accepts raw chunks.
var _ io.Writer = (*Correlator)(nil)

// Write accepts one inbound chunk from the channel.
//
// The chunk is split on newlines and each non-blank piece is decoded as a
// single response or a batch. Malformed pieces are reported to the error
// handler and skipped; they never stop the remaining pieces. Write always
// acknowledges the whole chunk.
func (c *Correlator) Write(p []byte) (int, error) {
	for piece := range bytes.SplitSeq(p, []byte{'\n'}) {
		piece = bytes.TrimSpace(piece)
		if len(piece) == 0 {
			continue
		}

		c.handleFrame(piece)
	}

	return len(p), nil
}

// Serve reads newline-delimited frames from r until EOF, the context ends,
// or the correlator is closed.
func (c *Correlator) Serve(ctx context.Context, r io.Reader) error {
	defer c.log.Debug("Inbound read loop stopped")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(64*1024, c.maxFrameSize)), c.maxFrameSize)

	frameCount := 0

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			c.log.Debug("Context cancelled during scan", "error", ctx.Err())

			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		frameCount++

		_, _ = c.Write(scanner.Bytes())
	}

	if err := scanner.Err(); err != nil {
		c.log.Error("Scanner error while reading frames", "error", err, "frames", frameCount)

		return fmt.Errorf("read frames: %w", err)
	}

	return nil
}

func (c *Correlator) handleFrame(data []byte) {
	frame, err := jsonrpc.DecodeFrame(data)
	if err != nil {
		c.log.Warn("Malformed inbound frame", "error", err)
		c.reportError(err)
	}

	if frame == nil {
		return
	}

	c.log.Debug("Received frame", "kind", frame.Kind.String(), "responses", len(frame.Responses))

	for _, resp := range frame.Responses {
		c.dispatch(resp)
	}
}

// dispatch routes one response to its pending call. Unknown ids, late
// responses and duplicates are dropped.
func (c *Correlator) dispatch(resp *jsonrpc.Response) {
	key := jsonrpc.RawKey(resp.ID)
	if key == "" {
		c.log.Debug("Dropping response without id")

		return
	}

	if !c.complete(key, nil, resp.Error, resp.Result) {
		c.log.Debug("No pending call for response", "id", key)
	}
}

// complete removes the call pending under key and fires its completion.
// When want is non-nil the call is only completed if it is still want.
// It reports whether a completion fired.
func (c *Correlator) complete(key string, want *call, rpcErr *jsonrpc.Error, result json.RawMessage) bool {
	c.mu.Lock()

	pc, ok := c.pending[key]
	if !ok || (want != nil && pc != want) {
		c.mu.Unlock()

		return false
	}

	delete(c.pending, key)
	c.disarmLocked(key)
	c.mu.Unlock()

	pc.done(rpcErr, result)

	return true
}

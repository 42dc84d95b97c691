package correlator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wagiedev/rpcstream/internal/jsonrpc"
)

// scheduleLocked arranges one flush for the current coalescing window.
// Emits made before that flush runs join the same write.
func (c *Correlator) scheduleLocked() {
	if c.holds > 0 || c.flushScheduled {
		return
	}

	c.flushScheduled = true

	time.AfterFunc(c.window, c.scheduledFlush)
}

func (c *Correlator) scheduledFlush() {
	_ = c.flush(true)
}

// Flush writes everything queued so far as one frame: a bare object for a
// single message, a JSON array otherwise. The queue is swapped out before
// encoding so emits made during the write start a fresh batch.
func (c *Correlator) Flush() error {
	return c.flush(false)
}

func (c *Correlator) flush(scheduled bool) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	c.flushScheduled = false

	if scheduled && c.holds > 0 {
		// The enclosing Batch flushes when it ends.
		c.mu.Unlock()

		return nil
	}

	queue := c.queue
	c.queue = nil
	c.mu.Unlock()

	if len(queue) == 0 {
		return nil
	}

	data, err := encodeQueue(queue)
	if err != nil {
		c.log.Error("Failed to marshal outbound frame", "error", err)
		c.reportError(err)

		return err
	}

	if _, err := c.out.Write(data); err != nil {
		c.log.Warn("Failed to write outbound frame", "error", err, "messages", len(queue))

		err = fmt.Errorf("write frame: %w", err)
		c.reportError(err)

		return err
	}

	c.log.Debug("Flushed outbound frame", "messages", len(queue), "bytes", len(data))

	return nil
}

// Batch runs fn with the coalescing window held open, then flushes.
// Every emit made inside fn, on any goroutine, lands in the same write.
// Batches nest; only the outermost one flushes.
func (c *Correlator) Batch(fn func() error) (err error) {
	c.mu.Lock()
	c.holds++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.holds--
		held := c.holds > 0
		c.mu.Unlock()

		if held {
			return
		}

		if flushErr := c.Flush(); err == nil {
			err = flushErr
		}
	}()

	return fn()
}

// encodeQueue serialises the queue and appends the frame delimiter.
func encodeQueue(queue []jsonrpc.Outbound) ([]byte, error) {
	var v any = queue
	if len(queue) == 1 {
		v = queue[0]
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}

	return append(data, '\n'), nil
}

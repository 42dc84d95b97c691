package correlator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wagiedev/rpcstream/internal/config"
	"github.com/wagiedev/rpcstream/internal/errors"
	"github.com/wagiedev/rpcstream/internal/jsonrpc"
)

// Correlator manages request/response correlation over one duplex channel.
//
// Outbound messages are written to the io.Writer given to New. Inbound
// frames are fed through Write (or Serve, which reads lines from a reader).
// Only one Correlator may write to a given channel.
type Correlator struct {
	log     *slog.Logger
	out     io.Writer
	nextID  jsonrpc.IDGenerator
	timeout time.Duration
	window  time.Duration
	onError func(error)

	maxFrameSize int

	// mu guards pending, timers, queue and the flush bookkeeping.
	// pending and timers always hold the same keys.
	mu             sync.Mutex
	pending        map[string]*call
	timers         map[string]*time.Timer
	queue          []jsonrpc.Outbound
	flushScheduled bool
	holds          int
	closed         bool

	// writeMu serialises flushes so batches reach the channel in queue order.
	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// call is one outstanding request.
type call struct {
	request *jsonrpc.Request
	done    jsonrpc.Completion
}

// New creates a correlator that writes outbound frames to out.
//
// opts may be nil. The logger will receive debug and warn messages for
// traffic and channel-level failures.
func New(out io.Writer, opts *config.Options) *Correlator {
	if opts == nil {
		opts = &config.Options{}
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	nextID := opts.NextID
	if nextID == nil {
		nextID = jsonrpc.NewCounter()
	}

	return &Correlator{
		log:          log.With("component", "correlator"),
		out:          out,
		nextID:       nextID,
		timeout:      opts.ResolveTimeout(),
		window:       opts.CoalesceWindow,
		onError:      opts.ErrorHandler,
		maxFrameSize: opts.ResolveMaxFrameSize(),
		pending:      make(map[string]*call, 16),
		timers:       make(map[string]*time.Timer, 16),
		done:         make(chan struct{}),
	}
}

// Emit queues a request or notification.
//
// args is [params] [completion]. If a completion is supplied (as the last
// argument, or as the only argument when there are no params) a request is
// sent and the completion fires exactly once with the response, a timeout
// error, a closed error, or a duplicate-id error if a later call reuses its
// id while it is pending. Otherwise a notification is sent.
//
// Emit does not write synchronously; the frame is written at the next flush.
func (c *Correlator) Emit(method string, args ...any) error {
	msg, done, err := jsonrpc.Build(c.nextID, method, args...)
	if err != nil {
		return fmt.Errorf("build %s: %w", method, err)
	}

	return c.enqueue(msg, done)
}

// Notify queues a notification. params may be nil.
func (c *Correlator) Notify(method string, params any) error {
	return c.Emit(method, params, nil)
}

// Go queues a request and returns immediately. done fires exactly once.
func (c *Correlator) Go(method string, params any, done jsonrpc.Completion) error {
	if done == nil {
		return fmt.Errorf("%w: nil completion for %s", errors.ErrInvalidArguments, method)
	}

	return c.Emit(method, params, done)
}

// Call sends a request and waits for its response.
//
// On success the result is decoded into result (unless result is nil).
// A remote error is returned as the *jsonrpc.Error sent by the server; a
// timeout returns an error matching errors.ErrRequestTimeout. If ctx ends
// first, ctx.Err() is returned and the call stays pending until its
// response or timeout arrives.
func (c *Correlator) Call(ctx context.Context, method string, params any, result any) error {
	type outcome struct {
		err  *jsonrpc.Error
		data json.RawMessage
	}

	// Buffered so the completion never blocks after the caller gave up.
	ch := make(chan outcome, 1)

	err := c.Go(method, params, func(err *jsonrpc.Error, data json.RawMessage) {
		ch <- outcome{err: err, data: data}
	})
	if err != nil {
		return err
	}

	decode := func(res outcome) error {
		if res.err != nil {
			return res.err
		}

		if result == nil || len(res.data) == 0 {
			return nil
		}

		if err := json.Unmarshal(res.data, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}

		return nil
	}

	select {
	case res := <-ch:
		return decode(res)

	case <-ctx.Done():
		// An outcome that already arrived wins over cancellation.
		select {
		case res := <-ch:
			return decode(res)
		default:
		}

		c.log.Debug("Call abandoned by caller", "method", method, "error", ctx.Err())

		return ctx.Err()
	}
}

// enqueue registers a call (if any), arms its timer and queues msg.
// A pending call displaced by a reused id is failed with a duplicate-id error.
func (c *Correlator) enqueue(msg jsonrpc.Outbound, done jsonrpc.Completion) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return errors.ErrClosed
	}

	var displaced *call

	req, isCall := msg.(*jsonrpc.Request)
	if isCall {
		key := jsonrpc.Key(req.ID)

		if prev, dup := c.pending[key]; dup {
			c.log.Warn("Request id reused while pending, failing earlier call", "id", key, "method", prev.request.Method)
			c.disarmLocked(key)

			displaced = prev
		}

		pc := &call{request: req, done: done}
		c.pending[key] = pc
		c.armLocked(key, pc)

		c.log.Debug("Registered call", "id", key, "method", req.Method)
	}

	c.queue = append(c.queue, msg)
	c.scheduleLocked()
	c.mu.Unlock()

	if displaced != nil {
		displaced.done(jsonrpc.NewDuplicateIDError(req), nil)
	}

	return nil
}

// Pending returns the number of calls awaiting a response.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

// Done returns a channel that is closed when the correlator is closed.
func (c *Correlator) Done() <-chan struct{} {
	return c.done
}

// Close flushes queued messages, stops every timer and completes every
// pending call with a connection-closed error. Later emits fail with
// errors.ErrClosed. It's safe to call Close multiple times.
func (c *Correlator) Close() error {
	var flushErr error

	c.closeOnce.Do(func() {
		c.log.Debug("Closing correlator")

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		flushErr = c.Flush()

		c.mu.Lock()

		abandoned := make([]*call, 0, len(c.pending))
		for key, pc := range c.pending {
			abandoned = append(abandoned, pc)
			c.disarmLocked(key)
			delete(c.pending, key)
		}

		c.mu.Unlock()

		for _, pc := range abandoned {
			pc.done(jsonrpc.NewClosedError(), nil)
		}

		close(c.done)
		c.log.Info("Correlator closed", "abandoned_calls", len(abandoned))
	})

	return flushErr
}

// reportError hands a channel-level error to the configured handler.
func (c *Correlator) reportError(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

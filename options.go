package rpcstream

import (
	"log/slog"
	"time"

	"github.com/wagiedev/rpcstream/internal/config"
	"github.com/wagiedev/rpcstream/internal/jsonrpc"
)

// Option configures a Correlator using the functional options pattern.
type Option func(*config.Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *config.Options {
	options := &config.Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *config.Options) {
		o.Logger = logger
	}
}

// WithNextID sets the request id generator.
// The generator must return values unique among outstanding calls.
func WithNextID(next IDGenerator) Option {
	return func(o *config.Options) {
		o.NextID = next
	}
}

// WithULIDs uses ULID strings as request ids instead of integers.
func WithULIDs() Option {
	return func(o *config.Options) {
		o.NextID = jsonrpc.ULIDGenerator()
	}
}

// WithTimeout sets how long a call may wait for its response.
// Default is 30s, or RPCSTREAM_TIMEOUT_MS when set.
func WithTimeout(timeout time.Duration) Option {
	return func(o *config.Options) {
		o.Timeout = &timeout
	}
}

// WithCoalesceWindow delays each flush by d so that more emits join the batch.
func WithCoalesceWindow(d time.Duration) Option {
	return func(o *config.Options) {
		o.CoalesceWindow = d
	}
}

// WithErrorHandler receives channel-level errors: malformed inbound frames
// and failed outbound writes.
func WithErrorHandler(fn func(error)) Option {
	return func(o *config.Options) {
		o.ErrorHandler = fn
	}
}

// WithMaxFrameSize caps the length of one inbound line read by Serve.
func WithMaxFrameSize(n int) Option {
	return func(o *config.Options) {
		o.MaxFrameSize = n
	}
}

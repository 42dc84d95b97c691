// Package config provides configuration types for the rpcstream correlator.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/wagiedev/rpcstream/internal/jsonrpc"
)

const (
	// DefaultTimeout is how long a call waits for its response before it is
	// failed with a timeout error.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxFrameSize is the maximum size of one inbound line read by Serve.
	DefaultMaxFrameSize = 1024 * 1024 // 1MB

	// TimeoutEnvVar overrides DefaultTimeout when no explicit timeout is set.
	// The value is a positive integer number of milliseconds.
	TimeoutEnvVar = "RPCSTREAM_TIMEOUT_MS"
)

// Options configures the behavior of a Correlator.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// NextID produces request ids. It must return values unique among
	// outstanding calls. If nil, a monotonically increasing counter is used.
	NextID jsonrpc.IDGenerator

	// Timeout bounds how long a call may stay unanswered.
	// If nil, ResolveTimeout falls back to the environment, then DefaultTimeout.
	Timeout *time.Duration

	// CoalesceWindow delays the flush scheduled by the first emit so that
	// later emits can join the same batch. Zero flushes on the next
	// scheduler turn.
	CoalesceWindow time.Duration

	// ErrorHandler receives channel-level errors such as malformed frames
	// and failed writes. It may be nil.
	ErrorHandler func(error)

	// MaxFrameSize caps the length of one line read by Serve.
	// Zero means DefaultMaxFrameSize.
	MaxFrameSize int
}

// ResolveTimeout returns the call timeout from options, env var, or default.
func (o *Options) ResolveTimeout() time.Duration {
	if o != nil && o.Timeout != nil && *o.Timeout > 0 {
		return *o.Timeout
	}

	if timeoutStr := os.Getenv(TimeoutEnvVar); timeoutStr != "" {
		if timeoutMs, err := strconv.Atoi(timeoutStr); err == nil && timeoutMs > 0 {
			return time.Duration(timeoutMs) * time.Millisecond
		}
	}

	return DefaultTimeout
}

// ResolveMaxFrameSize returns the configured frame size limit or the default.
func (o *Options) ResolveMaxFrameSize() int {
	if o != nil && o.MaxFrameSize > 0 {
		return o.MaxFrameSize
	}

	return DefaultMaxFrameSize
}

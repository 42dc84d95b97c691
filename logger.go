package rpcstream

import "log/slog"

// NopLogger returns a logger that discards all output.
// It is what a Correlator logs to when WithLogger is not given.
func NopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Package errors defines error types for the JSON-RPC stream correlator.
//
// This package provides sentinel errors for lifecycle and argument failures
// and structured error types for malformed inbound frames and failed server
// processes. All error types support unwrapping and can be checked using
// errors.Is, errors.As, and errors.AsType.
package errors

// Package subprocess provides a process-backed duplex channel for the correlator.
//
// This package spawns a JSON-RPC server as a child process and exposes its
// stdin as the outbound side and its stdout as the inbound side. It handles
// process lifecycle management, stderr buffering, and exit error reporting.
package subprocess

// Package correlator implements the client side of a JSON-RPC 2.0 stream.
//
// A Correlator sits between application code and a duplex byte channel. It
// correlates outbound calls with inbound responses by id and coalesces calls
// issued together into a single batch write.
//
// The Correlator handles:
//   - Building requests and notifications and queueing them for the next flush
//   - Writing one bare object, or a JSON array when two or more units are queued
//   - Decoding inbound frames, single or batch, and completing the matching calls
//   - Failing calls that receive no response within the configured timeout
//
// Example usage:
//
//	c := correlator.New(conn, &config.Options{Logger: log})
//	go c.Serve(ctx, conn)
//
//	var sum int
//	err := c.Call(ctx, "sum", []int{1, 2}, &sum)
package correlator

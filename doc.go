// Package rpcstream provides a bidirectional JSON-RPC 2.0 client transport.
//
// A Correlator turns a raw duplex byte channel into a typed request and
// notification emitter. It correlates responses with calls by id, enforces a
// per-call timeout, and coalesces calls issued together into one batch write.
// It is a client only: it never serves incoming requests.
//
// # Basic Usage
//
// Wire a Correlator to any duplex channel, such as a net.Conn:
//
//	conn, err := net.Dial("tcp", "localhost:4000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	c := rpcstream.New(conn, rpcstream.WithTimeout(5*time.Second))
//	defer c.Close()
//
//	go c.Serve(ctx, conn)
//
//	var sum int
//	if err := c.Call(ctx, "sum", []int{1, 2}, &sum); err != nil {
//	    log.Fatal(err)
//	}
//
// # Callbacks and Notifications
//
// Emit mirrors the classic "method [params] [callback]" form. With a trailing
// completion it sends a request; without one it sends a notification:
//
//	c.Emit("log", []string{"started"})
//	c.Emit("sum", []int{1, 2}, func(err *rpcstream.Error, result json.RawMessage) {
//	    // fires exactly once: result, remote error, timeout, or close
//	})
//
// # Batching
//
// Emits made within one coalescing window are written as a single JSON array.
// Batch makes the window explicit:
//
//	err := c.Batch(func() error {
//	    c.Go("a", nil, onA)
//	    c.Go("b", nil, onB)
//	    return nil
//	})
//
// # Error Handling
//
// Remote errors reach the caller as the *Error sent by the server. Calls that
// receive no answer fail with an *Error matching ErrRequestTimeout:
//
//	err := c.Call(ctx, "slow", nil, nil)
//	if errors.Is(err, rpcstream.ErrRequestTimeout) {
//	    // no answer within the timeout
//	}
//
// Malformed inbound frames have no call to report to; they go to the handler
// set with WithErrorHandler.
package rpcstream

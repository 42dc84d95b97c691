package rpcstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wireRequest is a request or notification as the fake server sees it.
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// fakeServer answers frames read from one end of a net.Pipe.
type fakeServer struct {
	conn net.Conn

	mu     sync.Mutex
	frames []string
}

func (s *fakeServer) serve() {
	scanner := bufio.NewScanner(s.conn)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())

		s.mu.Lock()
		s.frames = append(s.frames, string(line))
		s.mu.Unlock()

		reply := answerFrame(line)
		if reply == nil {
			continue
		}

		if _, err := s.conn.Write(append(reply, '\n')); err != nil {
			return
		}
	}
}

func (s *fakeServer) getFrames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.frames...)
}

// answerFrame builds the reply to one outbound frame. Batches are answered
// with a batch, notifications and the "silent" method get no answer.
func answerFrame(line []byte) []byte {
	if len(line) > 0 && line[0] == '[' {
		var reqs []wireRequest
		if err := json.Unmarshal(line, &reqs); err != nil {
			return nil
		}

		var resps []wireResponse

		for _, req := range reqs {
			if resp, ok := answer(req); ok {
				resps = append(resps, resp)
			}
		}

		if len(resps) == 0 {
			return nil
		}

		data, _ := json.Marshal(resps)

		return data
	}

	var req wireRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return nil
	}

	resp, ok := answer(req)
	if !ok {
		return nil
	}

	data, _ := json.Marshal(resp)

	return data
}

func answer(req wireRequest) (wireResponse, bool) {
	if len(req.ID) == 0 || req.Method == "silent" {
		return wireResponse{}, false
	}

	resp := wireResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "sum":
		var nums []float64
		_ = json.Unmarshal(req.Params, &nums)

		total := 0.0
		for _, n := range nums {
			total += n
		}

		resp.Result = total
	case "echo":
		resp.Result = req.Params
	default:
		resp.Error = &Error{Code: -32601, Message: "Method not found"}
	}

	return resp, true
}

func newPipeCorrelator(t *testing.T, opts ...Option) (*Correlator, *fakeServer) {
	t.Helper()

	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	srv := &fakeServer{conn: server}
	go srv.serve()

	c := New(client, opts...)
	t.Cleanup(func() { _ = c.Close() })

	go func() { _ = c.Serve(context.Background(), client) }()

	return c, srv
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func TestCorrelator_CallOverPipe(t *testing.T) {
	c, _ := newPipeCorrelator(t)

	var sum int
	require.NoError(t, c.Call(testContext(t), "sum", []int{1, 2, 3}, &sum))
	require.Equal(t, 6, sum)
	require.Zero(t, c.Pending())
}

func TestCorrelator_RemoteErrorOverPipe(t *testing.T) {
	c, _ := newPipeCorrelator(t)

	err := c.Call(testContext(t), "nope", nil, nil)

	rpcErr, ok := errors.AsType[*Error](err)
	require.True(t, ok, "expected *Error, got %T: %v", err, err)
	require.EqualValues(t, -32601, rpcErr.Code)
	require.Equal(t, "Method not found", rpcErr.Message)
}

func TestCorrelator_TimeoutOverPipe(t *testing.T) {
	c, _ := newPipeCorrelator(t, WithTimeout(50*time.Millisecond))

	err := c.Call(testContext(t), "silent", nil, nil)
	require.ErrorIs(t, err, ErrRequestTimeout)

	rpcErr, ok := errors.AsType[*Error](err)
	require.True(t, ok)
	require.EqualValues(t, CodeResponseTimeout, rpcErr.Code)
	require.Equal(t, "Response timeout", rpcErr.Message)
}

func TestCorrelator_BatchOverPipe(t *testing.T) {
	c, srv := newPipeCorrelator(t)

	type outcome struct {
		err    *Error
		result json.RawMessage
	}

	results := make(chan outcome, 3)
	record := func(err *Error, result json.RawMessage) {
		results <- outcome{err: err, result: result}
	}

	err := c.Batch(func() error {
		if err := c.Go("sum", []int{1, 1}, record); err != nil {
			return err
		}

		if err := c.Notify("log", []string{"between"}); err != nil {
			return err
		}

		return c.Go("echo", map[string]string{"k": "v"}, record)
	})
	require.NoError(t, err)

	got := make([]outcome, 0, 2)
	for range 2 {
		select {
		case o := <-results:
			got = append(got, o)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for batch results")
		}
	}

	for _, o := range got {
		assert.Nil(t, o.err)
	}

	frames := srv.getFrames()
	require.Len(t, frames, 1)

	var batch []wireRequest
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &batch))
	require.Len(t, batch, 3)
	require.Equal(t, "sum", batch[0].Method)
	require.Equal(t, "log", batch[1].Method)
	require.Empty(t, batch[1].ID)
	require.Equal(t, "echo", batch[2].Method)
}

func TestCorrelator_NotificationOverPipe(t *testing.T) {
	c, srv := newPipeCorrelator(t)

	require.NoError(t, c.Emit("log", []string{"hello"}))

	// A call after the notification proves the notification was written first.
	require.NoError(t, c.Call(testContext(t), "echo", []int{1}, nil))

	frames := srv.getFrames()
	require.Len(t, frames, 2)
	require.JSONEq(t, `{"jsonrpc":"2.0","method":"log","params":["hello"]}`, frames[0])
	require.Zero(t, c.Pending())
}

func TestCorrelator_ULIDsOverPipe(t *testing.T) {
	c, srv := newPipeCorrelator(t, WithULIDs())

	require.NoError(t, c.Call(testContext(t), "echo", []string{"x"}, nil))

	frames := srv.getFrames()
	require.Len(t, frames, 1)

	var req wireRequest
	require.NoError(t, json.Unmarshal([]byte(frames[0]), &req))

	var id string
	require.NoError(t, json.Unmarshal(req.ID, &id))
	require.Len(t, id, 26)
}

func TestCorrelator_MalformedInboundReported(t *testing.T) {
	var (
		mu   sync.Mutex
		errs []error
	)

	c := New(&bytes.Buffer{}, WithErrorHandler(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}))
	t.Cleanup(func() { _ = c.Close() })

	n, err := c.Write([]byte("not json\n"))
	require.NoError(t, err)
	require.Equal(t, len("not json\n"), n)

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, errs, 1)

	malformed, ok := errors.AsType[*MalformedFrameError](errs[0])
	require.True(t, ok, "expected MalformedFrameError, got %T", errs[0])
	require.Equal(t, "not json", malformed.RawData)
}

func TestCorrelator_CloseFailsPendingCalls(t *testing.T) {
	c, _ := newPipeCorrelator(t)

	done := make(chan *Error, 1)
	require.NoError(t, c.Go("silent", nil, func(err *Error, _ json.RawMessage) {
		done <- err
	}))
	require.NoError(t, c.Flush())
	require.Equal(t, 1, c.Pending())

	require.NoError(t, c.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("completion did not fire on close")
	}

	require.ErrorIs(t, c.Notify("late", nil), ErrClosed)
}

package correlator

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/rpcstream/internal/config"
	"github.com/wagiedev/rpcstream/internal/jsonrpc"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// mockChannel records outbound frames and optionally answers them.
type mockChannel struct {
	mu      sync.Mutex
	frames  [][]byte
	err     error
	onFrame func([]byte)
}

func (m *mockChannel) Write(p []byte) (int, error) {
	m.mu.Lock()

	if m.err != nil {
		err := m.err
		m.mu.Unlock()

		return 0, err
	}

	frame := append([]byte(nil), p...)
	m.frames = append(m.frames, frame)
	hook := m.onFrame
	m.mu.Unlock()

	if hook != nil {
		hook(frame)
	}

	return len(p), nil
}

func (m *mockChannel) getFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([][]byte, len(m.frames))
	copy(result, m.frames)

	return result
}

func (m *mockChannel) frameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.frames)
}

func (m *mockChannel) setOnFrame(fn func([]byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onFrame = fn
}

func newTestCorrelator(t *testing.T, out *mockChannel, configure ...func(*config.Options)) *Correlator {
	t.Helper()

	opts := &config.Options{Logger: slog.Default()}
	for _, fn := range configure {
		fn(opts)
	}

	c := New(out, opts)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func withTimeout(d time.Duration) func(*config.Options) {
	return func(o *config.Options) { o.Timeout = &d }
}

// waitFrames blocks until out has recorded n frames.
func waitFrames(t *testing.T, out *mockChannel, n int) [][]byte {
	t.Helper()

	require.Eventually(t, func() bool { return out.frameCount() >= n }, waitFor, tick)

	return out.getFrames()
}

// decodeFrame splits one outbound frame into its messages.
func decodeFrame(t *testing.T, frame []byte) ([]map[string]json.RawMessage, bool) {
	t.Helper()

	require.True(t, bytes.HasSuffix(frame, []byte("\n")), "frame must end with a newline")

	trimmed := bytes.TrimSpace(frame)
	if trimmed[0] == '[' {
		var msgs []map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(trimmed, &msgs))

		return msgs, true
	}

	var msg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(trimmed, &msg))

	return []map[string]json.RawMessage{msg}, false
}

// serveFrame answers a frame the way a small JSON-RPC server would:
// "sum" adds its integer params, "silent" never answers, anything else is
// "Method not found". Batches are answered with a batch.
func serveFrame(c *Correlator, frame []byte) {
	trimmed := bytes.TrimSpace(frame)
	batch := len(trimmed) > 0 && trimmed[0] == '['

	var reqs []map[string]json.RawMessage
	if batch {
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return
		}
	} else {
		var one map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return
		}

		reqs = append(reqs, one)
	}

	resps := make([]any, 0, len(reqs))

	for _, req := range reqs {
		id, ok := req["id"]
		if !ok {
			continue
		}

		var method string
		_ = json.Unmarshal(req["method"], &method)

		switch method {
		case "sum":
			var nums []int
			_ = json.Unmarshal(req["params"], &nums)

			total := 0
			for _, n := range nums {
				total += n
			}

			resps = append(resps, map[string]any{"jsonrpc": "2.0", "id": id, "result": total})
		case "silent":
		default:
			resps = append(resps, map[string]any{
				"jsonrpc": "2.0",
				"id":      id,
				"error":   map[string]any{"code": -32601, "message": "Method not found"},
			})
		}
	}

	if len(resps) == 0 {
		return
	}

	var payload any = resps
	if !batch {
		payload = resps[0]
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	go func() {
		_, _ = c.Write(append(data, '\n'))
	}()
}

// recorder collects completion invocations.
type recorder struct {
	mu      sync.Mutex
	calls   int
	err     *jsonrpc.Error
	result  json.RawMessage
	results chan struct{}
}

func newRecorder() *recorder {
	return &recorder{results: make(chan struct{}, 16)}
}

func (r *recorder) completion() jsonrpc.Completion {
	return func(err *jsonrpc.Error, result json.RawMessage) {
		r.mu.Lock()
		r.calls++
		r.err = err
		r.result = result
		r.mu.Unlock()

		r.results <- struct{}{}
	}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()

	select {
	case <-r.results:
	case <-time.After(waitFor):
		t.Fatal("completion did not fire in time")
	}
}

func (r *recorder) snapshot() (int, *jsonrpc.Error, json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls, r.err, r.result
}

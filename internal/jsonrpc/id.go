package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// IDGenerator produces request ids. Values must be unique among the calls
// outstanding on one correlator and must encode to a JSON string or number.
type IDGenerator func() any

// NewCounter returns a generator of increasing integers starting at 1.
// It is safe for concurrent use.
func NewCounter() IDGenerator {
	var n atomic.Int64

	return func() any {
		return n.Add(1)
	}
}

// ULIDGenerator returns a generator of lexicographically sortable ULID strings.
func ULIDGenerator() IDGenerator {
	return func() any {
		return ulid.Make().String()
	}
}

// Key returns the lookup key for an outbound id: its canonical JSON text.
// Numbers are keyed by value, so 1, 1.0 and 1e0 share a key.
func Key(id any) string {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Sprint(id)
	}

	if isNumber(data) {
		return numberKey(data)
	}

	return string(data)
}

// RawKey returns the lookup key for an inbound id, or "" when the id is
// missing or null.
func RawKey(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	if isNumber(raw) {
		return numberKey(raw)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}

	if buf.String() == "null" {
		return ""
	}

	return buf.String()
}

func isNumber(data []byte) bool {
	return data[0] == '-' || (data[0] >= '0' && data[0] <= '9')
}

// numberKey renders a JSON number canonically: integral values as plain
// integers, everything else in shortest float form.
func numberKey(data []byte) string {
	n := json.Number(data)

	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}

	f, err := n.Float64()
	if err != nil {
		return string(data)
	}

	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return strconv.FormatInt(int64(f), 10)
	}

	return strconv.FormatFloat(f, 'g', -1, 64)
}

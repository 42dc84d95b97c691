package correlator

import (
	"time"

	"github.com/wagiedev/rpcstream/internal/jsonrpc"
)

// armLocked starts the single-shot timer for a newly registered call.
func (c *Correlator) armLocked(key string, pc *call) {
	c.timers[key] = time.AfterFunc(c.timeout, func() {
		c.expire(key, pc)
	})
}

// disarmLocked stops and forgets the timer for key.
func (c *Correlator) disarmLocked(key string) {
	if timer, ok := c.timers[key]; ok {
		timer.Stop()
		delete(c.timers, key)
	}
}

// expire fails pc with a timeout error if it is still the call pending
// under key. A response that already won the race makes this a no-op.
func (c *Correlator) expire(key string, pc *call) {
	if c.complete(key, pc, jsonrpc.NewTimeoutError(pc.request), nil) {
		c.log.Warn("Call timed out", "id", key, "method", pc.request.Method, "timeout", c.timeout)
	}
}

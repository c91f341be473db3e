package collect

import "sync/atomic"

// ImmediateCollector evaluates every observation on its own. It is used
// when a monitor has no coalesce period. Observations arriving after Close
// are dropped, matching QuietCollector.
type ImmediateCollector struct {
	closed  atomic.Bool
	onFlush FlushFunc
}

func NewImmediateCollector(onFlush FlushFunc) *ImmediateCollector {
	return &ImmediateCollector{onFlush: onFlush}
}

// AddEvent flushes the observation as a batch of one.
func (c *ImmediateCollector) AddEvent(event map[string]any) {
	if c.closed.Load() {
		return
	}
	c.onFlush([]map[string]any{event})
}

func (c *ImmediateCollector) Close() {
	c.closed.Store(true)
}

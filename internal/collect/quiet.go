package collect

import (
	"sync"
	"time"
)

// QuietCollector flushes once no new event has arrived for the quiet period.
// Three channel sensors updating within the period produce one flush.
type QuietCollector struct {
	mu      sync.Mutex
	events  []map[string]any
	timer   *time.Timer
	quiet   time.Duration
	closed  bool
	onFlush FlushFunc
}

// NewQuietCollector creates a new QuietCollector
func NewQuietCollector(quiet time.Duration, onFlush FlushFunc) *QuietCollector {
	return &QuietCollector{
		quiet:   quiet,
		onFlush: onFlush,
	}
}

// AddEvent adds an event and restarts the quiet timer
func (c *QuietCollector) AddEvent(event map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.events = append(c.events, event)

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.quiet, c.flush)
}

func (c *QuietCollector) flush() {
	c.mu.Lock()
	events := c.events
	c.events = nil
	closed := c.closed
	c.mu.Unlock()

	if len(events) > 0 && !closed {
		c.onFlush(events)
	}
}

// Close stops the timer and discards pending events
func (c *QuietCollector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.events = nil
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Package collect coalesces bursts of observations before they are evaluated.
package collect

import "time"

// FlushFunc is called when a collector flushes events
type FlushFunc func(events []map[string]any)

// Collector accumulates events and flushes based on strategy
type Collector interface {
	AddEvent(event map[string]any)
	Close()
}

// New returns a quiet-period collector, or a pass-through one when quiet
// is zero.
func New(quiet time.Duration, onFlush FlushFunc) Collector {
	if quiet <= 0 {
		return NewImmediateCollector(onFlush)
	}
	return NewQuietCollector(quiet, onFlush)
}

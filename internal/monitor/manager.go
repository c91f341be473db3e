package monitor

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Manager owns the running monitors and swaps them on reconfiguration.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	monitors []*Monitor
}

// NewManager creates a manager with no monitors.
func NewManager(deps Deps) *Manager {
	return &Manager{deps: deps}
}

// Reconfigure stops every running monitor before starting the new set, so
// old and new monitors never run side by side. Entries that are not fully
// configured are skipped with a warning; other invalid entries are
// skipped with an error log. It returns the number of monitors started.
func (m *Manager) Reconfigure(entries []Options) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mon := range m.monitors {
		mon.Stop()
	}
	m.monitors = nil

	for _, opts := range entries {
		mon, err := New(opts, m.deps)
		if errors.Is(err, ErrNotConfigured) {
			log.Warn().Err(err).Str("monitor", opts.ID).Msg("Monitor not started")
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("monitor", opts.ID).Msg("Invalid monitor configuration")
			continue
		}
		mon.Start()
		m.monitors = append(m.monitors, mon)
	}

	log.Info().Int("monitors", len(m.monitors)).Int("configured", len(entries)).Msg("Monitors configured")
	return len(m.monitors)
}

// Stop stops all monitors.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mon := range m.monitors {
		mon.Stop()
	}
	m.monitors = nil
}

// Running returns the number of running monitors.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.monitors)
}

// Statuses returns the status of every running monitor in configuration
// order.
func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	monitors := append([]*Monitor(nil), m.monitors...)
	m.mu.Unlock()

	out := make([]Status, 0, len(monitors))
	for _, mon := range monitors {
		out = append(out, mon.Status())
	}
	return out
}

// Get returns the running monitor with the given id.
func (m *Manager) Get(id string) (*Monitor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mon := range m.monitors {
		if mon.ID() == id {
			return mon, true
		}
	}
	return nil, false
}

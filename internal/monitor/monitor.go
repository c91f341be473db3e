// Package monitor runs one sky-color sync per configuration entry. A
// monitor watches its source entities, extracts a color when any of them
// changes and offers it to its gate; accepted colors are queued for
// dispatch.
package monitor

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huerizon/internal/collect"
	"github.com/dokzlo13/huerizon/internal/color"
	"github.com/dokzlo13/huerizon/internal/dispatch"
	"github.com/dokzlo13/huerizon/internal/eventbus"
	"github.com/dokzlo13/huerizon/internal/extract"
	"github.com/dokzlo13/huerizon/internal/gate"
)

// ErrNotConfigured is returned when a monitor has no targets or lacks a
// source entity its input format needs.
var ErrNotConfigured = errors.New("monitor not configured")

// Subscriber is the part of the event bus a monitor uses.
type Subscriber interface {
	Subscribe(eventType eventbus.EventType, handler eventbus.Handler) *eventbus.Subscription
}

// StateReader returns the latest raw value of an entity, or nil.
type StateReader interface {
	Value(entityID string) any
}

// Enqueuer accepts dispatch commands without blocking.
type Enqueuer interface {
	Enqueue(cmd dispatch.Command) error
}

// Deps are the collaborators shared by all monitors.
type Deps struct {
	Bus      Subscriber
	States   StateReader
	Queue    Enqueuer
	Daylight gate.Daylight
	Now      func() time.Time
}

// Options configure one monitor.
type Options struct {
	ID         string
	Channels   map[extract.Channel]string
	Extract    extract.Config
	Schedule   gate.Schedule
	Mode       dispatch.ApplyMode
	Transition *time.Duration
	Targets    []string
	Coalesce   time.Duration
}

// Status is the externally visible state of a monitor.
type Status struct {
	ID          string         `json:"id"`
	Format      extract.Format `json:"input_format"`
	State       gate.State     `json:"state"`
	Targets     []string       `json:"targets"`
	Entities    []string       `json:"entities"`
	LastColor   map[string]any `json:"last_color,omitempty"`
	LastApplied *time.Time     `json:"last_applied,omitempty"`
}

// Monitor evaluates observations for one group of lights.
type Monitor struct {
	opts      Options
	deps      Deps
	extractor *extract.Extractor
	gate      *gate.Gate
	watched   map[string]bool

	// evalMu serializes read, extract and offer so that a newer
	// observation is never overtaken by an older one.
	evalMu sync.Mutex

	mu        sync.Mutex
	started   bool
	stopped   bool
	sub       *eventbus.Subscription
	collector collect.Collector
	inflight  sync.WaitGroup
}

// New validates opts and builds a monitor with fresh gate state.
func New(opts Options, deps Deps) (*Monitor, error) {
	if err := checkConfigured(opts); err != nil {
		return nil, err
	}
	ext, err := extract.New(opts.Extract)
	if err != nil {
		return nil, err
	}
	if err := opts.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("monitor %q: %w", opts.ID, err)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	watched := make(map[string]bool, len(opts.Channels))
	for _, id := range opts.Channels {
		watched[id] = true
	}

	return &Monitor{
		opts:      opts,
		deps:      deps,
		extractor: ext,
		gate:      gate.New(opts.ID, opts.Schedule, deps.Daylight),
		watched:   watched,
	}, nil
}

func checkConfigured(opts Options) error {
	if len(opts.Targets) == 0 {
		return fmt.Errorf("%w: no target lights", ErrNotConfigured)
	}
	required, err := extract.RequiredChannels(opts.Extract.Format)
	if err != nil {
		return err
	}

	if opts.Extract.Format == extract.FormatColorTemp {
		if opts.Channels[extract.ChannelMireds] == "" && opts.Channels[extract.ChannelKelvin] == "" {
			return fmt.Errorf("%w: no mireds or kelvin entity", ErrNotConfigured)
		}
		return nil
	}
	for _, ch := range required {
		if opts.Channels[ch] == "" {
			return fmt.Errorf("%w: no %s entity", ErrNotConfigured, ch)
		}
	}
	return nil
}

// ID returns the monitor id.
func (m *Monitor) ID() string {
	return m.opts.ID
}

// Start subscribes to state changes. Calling Start on a stopped monitor
// does nothing.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started || m.stopped {
		return
	}
	m.started = true
	m.collector = collect.New(m.opts.Coalesce, m.flush)
	m.sub = m.deps.Bus.Subscribe(eventbus.EventTypeStateChanged, m.handle)

	log.Info().
		Str("monitor", m.opts.ID).
		Str("format", string(m.opts.Extract.Format)).
		Strs("targets", m.opts.Targets).
		Int("entities", len(m.watched)).
		Msg("Monitor started")
}

// Stop unsubscribes, drops pending observations and waits for in-flight
// evaluations to finish. After Stop returns the monitor never enqueues
// another command.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	sub, collector := m.sub, m.collector
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if collector != nil {
		collector.Close()
	}
	m.inflight.Wait()

	log.Info().Str("monitor", m.opts.ID).Msg("Monitor stopped")
}

// Status returns a snapshot for the HTTP API.
func (m *Monitor) Status() Status {
	snap := m.gate.Snapshot()
	s := Status{
		ID:       m.opts.ID,
		Format:   m.opts.Extract.Format,
		State:    snap.State,
		Targets:  m.opts.Targets,
		Entities: make([]string, 0, len(m.watched)),
	}
	for id := range m.watched {
		s.Entities = append(s.Entities, id)
	}
	sort.Strings(s.Entities)
	if snap.LastColor != nil {
		s.LastColor = snap.LastColor.Fields()
		t := snap.LastApplied
		s.LastApplied = &t
	}
	return s
}

// enter registers an in-flight evaluation unless the monitor is stopped.
func (m *Monitor) enter() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return false
	}
	m.inflight.Add(1)
	return true
}

func (m *Monitor) handle(e eventbus.Event) {
	entityID, _ := e.Data["entity_id"].(string)
	if !m.watched[entityID] {
		return
	}
	if !m.enter() {
		return
	}
	defer m.inflight.Done()

	m.collector.AddEvent(e.Data)
}

func (m *Monitor) flush(events []map[string]any) {
	if !m.enter() {
		return
	}
	defer m.inflight.Done()

	log.Debug().Str("monitor", m.opts.ID).Int("events", len(events)).Msg("Evaluating observation")
	m.Evaluate()
}

// Evaluate reads the current values of all source entities and offers the
// extracted color to the gate. It returns the gate decision, or false when
// no color could be extracted.
func (m *Monitor) Evaluate() (gate.Decision, bool) {
	m.evalMu.Lock()
	defer m.evalMu.Unlock()

	values := make(extract.Values, len(m.opts.Channels))
	for ch, id := range m.opts.Channels {
		if v := m.deps.States.Value(id); v != nil {
			values[ch] = v
		}
	}

	reading, trail, ok := m.extractor.Extract(values)
	if !ok {
		log.Debug().
			Str("monitor", m.opts.ID).
			Str("trail", trail.String()).
			Msg("Observation incomplete, skipped")
		return gate.Decision{}, false
	}

	d := m.gate.Offer(m.deps.Now(), reading, m.dispatch)
	if d.Accepted {
		log.Debug().
			Str("monitor", m.opts.ID).
			Str("color", reading.String()).
			Str("trail", trail.String()).
			Msg("Update accepted")
	}
	return d, true
}

func (m *Monitor) dispatch(c color.Reading) {
	cmd := dispatch.NewCommand(m.opts.ID, m.opts.Targets, c, m.opts.Transition, m.opts.Mode)
	if err := m.deps.Queue.Enqueue(cmd); err != nil {
		log.Warn().Err(err).Str("monitor", m.opts.ID).Str("command_id", cmd.ID).Msg("Failed to enqueue color")
	}
}

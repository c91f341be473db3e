// Package gate decides whether a freshly extracted color is applied now.
package gate

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huerizon/internal/color"
)

// State is the gate's position in its Idle -> Applying -> Idle cycle.
type State string

const (
	StateIdle      State = "idle"
	StateThrottled State = "throttled"
	StateApplying  State = "applying"
)

// Reason names the check that produced a decision.
type Reason string

const (
	ReasonAccepted    Reason = "accepted"
	ReasonInvalid     Reason = "invalid_reading"
	ReasonRateLimited Reason = "rate_limited"
	ReasonDaytime     Reason = "daytime"
	ReasonOutOfWindow Reason = "outside_active_window"
	ReasonInactiveDay Reason = "inactive_day"
	ReasonBelowDelta  Reason = "below_min_delta"
)

// Decision is the outcome of one Offer.
type Decision struct {
	Accepted bool
	Reason   Reason
	Distance float64 // only set when the min-delta check ran
}

// Daylight reports whether it is currently daytime. An error means the
// state could not be determined.
type Daylight interface {
	IsDaytime(now time.Time) (bool, error)
}

// DaylightFunc adapts a function to Daylight.
type DaylightFunc func(now time.Time) (bool, error)

// IsDaytime calls f.
func (f DaylightFunc) IsDaytime(now time.Time) (bool, error) {
	return f(now)
}

// Snapshot is a read-only copy of the gate state.
type Snapshot struct {
	State       State
	LastColor   *color.Reading
	LastApplied time.Time
}

// Gate owns the last-applied state of one monitor. Offer is safe for
// concurrent use; overlapping offers are serialized.
type Gate struct {
	schedule Schedule
	daylight Daylight
	name     string

	mu          sync.Mutex
	state       State
	lastColor   *color.Reading
	lastApplied time.Time
}

// New creates a gate in the Idle state. daylight may be nil when the
// schedule does not restrict to night time.
func New(name string, schedule Schedule, daylight Daylight) *Gate {
	return &Gate{
		schedule: schedule,
		daylight: daylight,
		name:     name,
		state:    StateIdle,
	}
}

// Schedule returns the configured schedule.
func (g *Gate) Schedule() Schedule {
	return g.schedule
}

// Offer evaluates candidate at now. When every check passes, apply is
// called with the candidate while the gate is Applying, then the candidate
// and now are recorded as the last apply. A rejected offer leaves the
// last-applied state untouched.
func (g *Gate) Offer(now time.Time, candidate color.Reading, apply func(color.Reading)) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.evaluate(now, candidate)
	if !d.Accepted {
		log.Debug().
			Str("monitor", g.name).
			Str("reason", string(d.Reason)).
			Str("color", candidate.String()).
			Msg("Update rejected")
		return d
	}

	g.state = StateApplying
	if apply != nil {
		apply(candidate)
	}
	c := candidate
	g.lastColor = &c
	g.lastApplied = now
	g.state = StateIdle
	return d
}

func (g *Gate) evaluate(now time.Time, candidate color.Reading) Decision {
	if !candidate.Valid() {
		return Decision{Reason: ReasonInvalid}
	}

	s := g.schedule
	hasPrior := g.lastColor != nil

	if s.RateLimit > 0 && hasPrior && now.Sub(g.lastApplied) < s.RateLimit {
		g.state = StateThrottled
		return Decision{Reason: ReasonRateLimited}
	}
	if g.state == StateThrottled {
		g.state = StateIdle
	}

	if s.OnlyAtNight && g.isDaytime(now) {
		return Decision{Reason: ReasonDaytime}
	}

	if !s.inWindow(now) {
		return Decision{Reason: ReasonOutOfWindow}
	}

	if !s.onActiveDay(now) {
		return Decision{Reason: ReasonInactiveDay}
	}

	if s.MinDelta > 0 && hasPrior {
		dist := Distance(*g.lastColor, candidate)
		if dist < s.MinDelta {
			return Decision{Reason: ReasonBelowDelta, Distance: dist}
		}
		return Decision{Accepted: true, Reason: ReasonAccepted, Distance: dist}
	}

	return Decision{Accepted: true, Reason: ReasonAccepted}
}

// isDaytime fails open: an undeterminable day/night state allows the update.
func (g *Gate) isDaytime(now time.Time) bool {
	if g.daylight == nil {
		log.Warn().Str("monitor", g.name).Msg("Night-only schedule without day/night source, allowing update")
		return false
	}
	day, err := g.daylight.IsDaytime(now)
	if err != nil {
		log.Warn().Err(err).Str("monitor", g.name).Msg("Failed to determine day/night, allowing update")
		return false
	}
	return day
}

// Snapshot returns the current state.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{State: g.state, LastApplied: g.lastApplied}
	if g.lastColor != nil {
		c := *g.lastColor
		s.LastColor = &c
	}
	return s
}

// Reset forgets the last apply and returns to Idle.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = StateIdle
	g.lastColor = nil
	g.lastApplied = time.Time{}
}

// Package dispatch hands accepted colors to a light-control adapter through
// a queue, so gating never waits on the lights.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dokzlo13/huerizon/internal/color"
)

// ApplyMode records which representation a monitor prefers to send.
type ApplyMode string

const (
	PreferXY   ApplyMode = "prefer_xy"
	PreferHS   ApplyMode = "prefer_hs"
	PreferRGB  ApplyMode = "prefer_rgb"
	PreferTemp ApplyMode = "prefer_temp"
)

// ParseApplyMode validates a configured mode. Empty means prefer_xy.
func ParseApplyMode(s string) (ApplyMode, error) {
	switch m := ApplyMode(s); m {
	case "":
		return PreferXY, nil
	case PreferXY, PreferHS, PreferRGB, PreferTemp:
		return m, nil
	}
	return "", fmt.Errorf("unknown apply mode %q", s)
}

// SourceService marks commands created by the apply_sky service rather
// than by a monitor.
const SourceService = "service"

// Command is one request to set a color on a set of lights.
type Command struct {
	ID         string
	Source     string // monitor id or SourceService
	Targets    []string
	Color      color.Reading
	Transition *time.Duration
	Mode       ApplyMode
	CreatedAt  time.Time
}

// NewCommand builds a command with a fresh id. The color is converted
// according to mode before it is stored.
func NewCommand(source string, targets []string, c color.Reading, transition *time.Duration, mode ApplyMode) Command {
	return Command{
		ID:         uuid.NewString(),
		Source:     source,
		Targets:    targets,
		Color:      Prepare(c, mode),
		Transition: transition,
		Mode:       mode,
		CreatedAt:  time.Now(),
	}
}

// Fields renders the command for logs and the ledger.
func (c Command) Fields() map[string]any {
	m := c.Color.Fields()
	m["targets"] = c.Targets
	m["mode"] = string(c.Mode)
	if c.Transition != nil {
		m["transition_ms"] = c.Transition.Milliseconds()
	}
	return m
}

// Prepare applies the only two cross-representation conversions the apply
// modes call for: prefer_rgb turns an hs reading into RGB, prefer_hs turns
// an RGB reading into hs. Every other combination is sent as produced.
func Prepare(c color.Reading, mode ApplyMode) color.Reading {
	switch {
	case mode == PreferRGB && c.Kind == color.KindHS:
		b := color.MaxPercent
		if c.Brightness != nil {
			b = *c.Brightness
		}
		return color.NewRGB(color.HSBToRGB(c.HS[0], c.HS[1], b), c.Brightness)

	case mode == PreferHS && c.Kind == color.KindRGB:
		hsb := color.RGBToHSB(c.RGB)
		bri := c.Brightness
		if bri == nil {
			v := hsb.B
			bri = &v
		}
		return color.NewHS(hsb.H, hsb.S, bri)
	}
	return c
}

// Adapter turns a command into a light-control request.
type Adapter interface {
	Name() string
	Apply(ctx context.Context, cmd Command) error
}

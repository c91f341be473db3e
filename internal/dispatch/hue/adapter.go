// Package hue dispatches colors to lights on a Philips Hue bridge.
package hue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/amimof/huego"
	"github.com/gobwas/glob"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huerizon/internal/color"
	"github.com/dokzlo13/huerizon/internal/dispatch"
)

// Hue v1 API ranges.
const (
	maxHue = 65535
	maxSat = 254
	minBri = 1
	maxBri = 254
	minCt  = 153
	maxCt  = 500
)

const lightsKey = "lights"

// Bridge is the part of huego.Bridge the adapter uses.
type Bridge interface {
	GetLightsContext(ctx context.Context) ([]huego.Light, error)
	SetLightStateContext(ctx context.Context, id int, state huego.State) (*huego.Response, error)
}

// Adapter sets light state through the v1 API. Targets are glob patterns
// matched against light names and ids.
type Adapter struct {
	bridge Bridge
	lights *cache.Cache

	globs map[string]glob.Glob
}

// New connects to a bridge by address and application key.
func New(address, token string, lightCacheTTL time.Duration) *Adapter {
	return NewWithBridge(huego.New(address, token), lightCacheTTL)
}

// NewWithBridge wraps an existing bridge client.
func NewWithBridge(bridge Bridge, lightCacheTTL time.Duration) *Adapter {
	if lightCacheTTL <= 0 {
		lightCacheTTL = 5 * time.Minute
	}
	return &Adapter{
		bridge: bridge,
		lights: cache.New(lightCacheTTL, 0),
		globs:  make(map[string]glob.Glob),
	}
}

// Name implements dispatch.Adapter.
func (a *Adapter) Name() string { return "hue" }

// Apply implements dispatch.Adapter.
func (a *Adapter) Apply(ctx context.Context, cmd dispatch.Command) error {
	ids, err := a.resolve(ctx, cmd.Targets)
	if err != nil {
		return err
	}

	state := StateFor(cmd.Color, cmd.Transition)

	var errs []error
	for _, id := range ids {
		if _, err := a.bridge.SetLightStateContext(ctx, id, state); err != nil {
			errs = append(errs, fmt.Errorf("light %d: %w", id, err))
			continue
		}
		log.Debug().Int("light", id).Str("command_id", cmd.ID).Msg("Hue light state set")
	}
	return errors.Join(errs...)
}

// Invalidate drops the cached light list.
func (a *Adapter) Invalidate() {
	a.lights.Delete(lightsKey)
}

func (a *Adapter) resolve(ctx context.Context, targets []string) ([]int, error) {
	if len(targets) == 0 {
		return nil, errors.New("no target lights")
	}

	lights, err := a.listLights(ctx)
	if err != nil {
		return nil, err
	}

	var ids []int
	seen := make(map[int]bool)
	for _, pattern := range targets {
		g, err := a.compile(pattern)
		if err != nil {
			return nil, err
		}
		for _, l := range lights {
			if seen[l.ID] {
				continue
			}
			if g.Match(l.Name) || g.Match(strconv.Itoa(l.ID)) {
				seen[l.ID] = true
				ids = append(ids, l.ID)
			}
		}
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("no lights match %v", targets)
	}
	return ids, nil
}

func (a *Adapter) compile(pattern string) (glob.Glob, error) {
	if g, ok := a.globs[pattern]; ok {
		return g, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid target pattern %q: %w", pattern, err)
	}
	a.globs[pattern] = g
	return g, nil
}

func (a *Adapter) listLights(ctx context.Context) ([]huego.Light, error) {
	if v, ok := a.lights.Get(lightsKey); ok {
		return v.([]huego.Light), nil
	}
	lights, err := a.bridge.GetLightsContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lights: %w", err)
	}
	a.lights.SetDefault(lightsKey, lights)
	log.Debug().Int("lights", len(lights)).Msg("Hue light list refreshed")
	return lights, nil
}

// StateFor maps a reading onto a v1 light state. Zero brightness turns the
// light off.
func StateFor(c color.Reading, transition *time.Duration) huego.State {
	state := huego.State{On: true}

	bri := c.Brightness
	switch c.Kind {
	case color.KindXY:
		state.Xy = []float32{float32(c.XY[0]), float32(c.XY[1])}
	case color.KindHS:
		state.Hue, state.Sat = hueSat(c.HS[0], c.HS[1])
	case color.KindRGB:
		hsb := color.RGBToHSB(c.RGB)
		state.Hue, state.Sat = hueSat(hsb.H, hsb.S)
		if bri == nil {
			bri = &hsb.B
		}
	case color.KindKelvin:
		state.Ct = uint16(color.Clamp(math.Round(color.KelvinToMireds(c.Kelvin)), minCt, maxCt))
	}

	if bri != nil {
		if *bri <= 0 {
			state.On = false
		} else {
			state.Bri = uint8(color.Clamp(math.Round(*bri/color.MaxPercent*maxBri), minBri, maxBri))
		}
	}

	if transition != nil {
		state.TransitionTime = uint16(min(max(transition.Milliseconds()/100, 0), math.MaxUint16))
	}
	return state
}

func hueSat(h, s float64) (uint16, uint8) {
	hue := color.Clamp(math.Round(h/color.MaxHue*maxHue), 0, maxHue)
	sat := color.Clamp(math.Round(s/color.MaxPercent*maxSat), 0, maxSat)
	return uint16(hue), uint8(sat)
}

// Package geo computes sun events for the configured location and answers
// whether it is currently daytime.
package geo

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/soniakeys/meeus/v3/julian"
)

var (
	// ErrNoSunEvent is returned when the sun does not rise or set on a day
	// (polar day or polar night).
	ErrNoSunEvent = errors.New("no sunrise or sunset on this day")
	// ErrNoLocation is returned when neither coordinates nor a resolvable
	// place name are configured.
	ErrNoLocation = errors.New("no location configured")
)

// Sun altitudes for the events, in degrees.
const (
	altitudeSunrise = -0.833
	altitudeCivil   = -6.0
)

// SunTimes contains the sun events for one day. Dawn and Dusk are zero when
// the sun never reaches civil twilight depression that day.
type SunTimes struct {
	Dawn    time.Time `json:"dawn,omitzero"`
	Sunrise time.Time `json:"sunrise"`
	Noon    time.Time `json:"noon"`
	Sunset  time.Time `json:"sunset"`
	Dusk    time.Time `json:"dusk,omitzero"`
}

// Location represents a resolved position.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Options configures a Calculator. Coordinates take precedence over Place.
type Options struct {
	Place       string
	Latitude    *float64
	Longitude   *float64
	Timezone    string
	HTTPTimeout time.Duration
	GeocodeURL  string
	Cache       *Cache
}

// Calculator calculates sun events for one location.
type Calculator struct {
	opts Options
	tz   *time.Location

	mu       sync.RWMutex
	location *Location
	days     map[string]*SunTimes // by "2006-01-02"
}

// NewCalculator creates a calculator. The location is resolved lazily on
// first use when only a place name is configured.
func NewCalculator(opts Options) (*Calculator, error) {
	if opts.HTTPTimeout == 0 {
		opts.HTTPTimeout = 10 * time.Second
	}
	if opts.GeocodeURL == "" {
		opts.GeocodeURL = DefaultGeocodeURL
	}

	tz := time.Local
	if opts.Timezone != "" {
		loaded, err := time.LoadLocation(opts.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", opts.Timezone, err)
		}
		tz = loaded
	}

	c := &Calculator{
		opts: opts,
		tz:   tz,
		days: make(map[string]*SunTimes),
	}

	if opts.Latitude != nil && opts.Longitude != nil {
		c.location = &Location{Name: opts.Place, Latitude: *opts.Latitude, Longitude: *opts.Longitude}
		log.Info().
			Str("name", opts.Place).
			Float64("lat", *opts.Latitude).
			Float64("lon", *opts.Longitude).
			Msg("Geo calculator initialized with pre-configured coordinates")
	} else if opts.Place == "" {
		return nil, ErrNoLocation
	}

	return c, nil
}

// Timezone returns the zone sun events are reported in.
func (c *Calculator) Timezone() *time.Location {
	return c.tz
}

// Location returns the resolved location, geocoding it if necessary.
func (c *Calculator) Location() (*Location, error) {
	c.mu.RLock()
	loc := c.location
	c.mu.RUnlock()
	if loc != nil {
		return loc, nil
	}

	loc, err := c.resolve(c.opts.Place)
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}

	c.mu.Lock()
	c.location = loc
	c.mu.Unlock()
	return loc, nil
}

// Times returns the sun events of the calendar day containing date, in the
// calculator's timezone.
func (c *Calculator) Times(date time.Time) (*SunTimes, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	date = date.In(c.tz)
	key := date.Format("2006-01-02")

	c.mu.RLock()
	cached, ok := c.days[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	times, err := calculate(loc.Latitude, loc.Longitude, date, c.tz)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.days[key] = times
	c.mu.Unlock()
	return times, nil
}

// IsDaytime reports whether the next sunset comes before the next sunrise.
// Days without sun events yield ErrNoSunEvent.
func (c *Calculator) IsDaytime(now time.Time) (bool, error) {
	var nextRise, nextSet time.Time
	for offset := -1; offset <= 2 && (nextRise.IsZero() || nextSet.IsZero()); offset++ {
		t, err := c.Times(now.In(c.tz).AddDate(0, 0, offset))
		if err != nil {
			return false, err
		}
		if nextRise.IsZero() && t.Sunrise.After(now) {
			nextRise = t.Sunrise
		}
		if nextSet.IsZero() && t.Sunset.After(now) {
			nextSet = t.Sunset
		}
	}
	if nextRise.IsZero() || nextSet.IsZero() {
		return false, ErrNoSunEvent
	}
	return nextSet.Before(nextRise), nil
}

// calculate computes sun events with the NOAA sunrise equation.
func calculate(lat, lon float64, date time.Time, tz *time.Location) (*SunTimes, error) {
	noonUTC := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, time.UTC)
	n := math.Round(julian.TimeToJD(noonUTC)-2451545.0) + 0.0008
	transit, dec := solarTransit(n, lon)

	rise, set, ok := hourAngleEvents(transit, dec, lat, altitudeSunrise)
	if !ok {
		return nil, fmt.Errorf("%s: %w", date.Format("2006-01-02"), ErrNoSunEvent)
	}

	times := &SunTimes{
		Sunrise: julian.JDToTime(rise).In(tz),
		Noon:    julian.JDToTime(transit).In(tz),
		Sunset:  julian.JDToTime(set).In(tz),
	}
	if dawn, dusk, ok := hourAngleEvents(transit, dec, lat, altitudeCivil); ok {
		times.Dawn = julian.JDToTime(dawn).In(tz)
		times.Dusk = julian.JDToTime(dusk).In(tz)
	}
	return times, nil
}

// solarTransit returns the Julian date of solar noon and the sun's
// declination in radians for day number n since J2000.
func solarTransit(n, lon float64) (float64, float64) {
	jStar := n - lon/360.0

	m := math.Mod(357.5291+0.98560028*jStar, 360.0)
	mRad := m * math.Pi / 180.0

	c := 1.9148*math.Sin(mRad) + 0.02*math.Sin(2*mRad) + 0.0003*math.Sin(3*mRad)

	lambda := math.Mod(m+c+180+102.9372, 360.0)
	lambdaRad := lambda * math.Pi / 180.0

	transit := 2451545.0 + jStar + 0.0053*math.Sin(mRad) - 0.0069*math.Sin(2*lambdaRad)
	dec := math.Asin(math.Sin(lambdaRad) * math.Sin(23.44*math.Pi/180.0))
	return transit, dec
}

// hourAngleEvents returns the Julian dates at which the sun crosses altitude
// before and after transit. ok is false when it never does.
func hourAngleEvents(transit, dec, lat, altitude float64) (float64, float64, bool) {
	latRad := lat * math.Pi / 180.0
	altRad := altitude * math.Pi / 180.0

	cosOmega := (math.Sin(altRad) - math.Sin(latRad)*math.Sin(dec)) / (math.Cos(latRad) * math.Cos(dec))
	if cosOmega > 1 || cosOmega < -1 || math.IsNaN(cosOmega) {
		return 0, 0, false
	}

	omega := math.Acos(cosOmega) * 180.0 / math.Pi
	return transit - omega/360.0, transit + omega/360.0, true
}

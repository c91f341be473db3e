package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
)

// DefaultGeocodeURL is the Nominatim search endpoint.
const DefaultGeocodeURL = "https://nominatim.openstreetmap.org/search"

var httpClient = &http.Client{}

// resolve returns coordinates for a place name.
// Priority: persistent cache > geocode.
func (c *Calculator) resolve(name string) (*Location, error) {
	if name == "" {
		return nil, ErrNoLocation
	}

	if c.opts.Cache != nil {
		if loc, found := c.opts.Cache.Get(name); found {
			return loc, nil
		}
	}

	loc, err := c.geocode(name)
	if err != nil {
		return nil, err
	}

	if c.opts.Cache != nil {
		_ = c.opts.Cache.Put(name, loc)
	}
	return loc, nil
}

// geocode performs a Nominatim search with the configured timeout.
func (c *Calculator) geocode(name string) (*Location, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.HTTPTimeout)
	defer cancel()

	apiURL := c.opts.GeocodeURL + "?format=json&limit=1&q=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "huerizon/1.0")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding failed with status %d", resp.StatusCode)
	}

	var results []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("location not found: %s", name)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}

	loc := &Location{Name: results[0].DisplayName, Latitude: lat, Longitude: lon}

	log.Info().
		Str("query", name).
		Str("resolved", loc.Name).
		Float64("lat", lat).
		Float64("lon", lon).
		Msg("Location geocoded via Nominatim")

	return loc, nil
}

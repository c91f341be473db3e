// Package homeassistant dispatches colors through the Home Assistant REST
// API by calling light.turn_on.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dokzlo13/huerizon/internal/color"
	"github.com/dokzlo13/huerizon/internal/dispatch"
)

// Adapter calls light.turn_on for the command's target entities.
type Adapter struct {
	url        string
	token      string
	httpClient *http.Client
}

// New creates an adapter for a Home Assistant base URL and long-lived
// access token.
func New(url, token string, httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Adapter{
		url:        strings.TrimSuffix(url, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// Name implements dispatch.Adapter.
func (a *Adapter) Name() string { return "homeassistant" }

// Apply implements dispatch.Adapter.
func (a *Adapter) Apply(ctx context.Context, cmd dispatch.Command) error {
	if len(cmd.Targets) == 0 {
		return errors.New("no target entities")
	}

	body, err := json.Marshal(ServiceData(cmd))
	if err != nil {
		return fmt.Errorf("failed to encode service data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url+"/api/services/light/turn_on", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("light.turn_on request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HA API error: %d", resp.StatusCode)
	}
	return nil
}

// ServiceData builds the light.turn_on payload for a command.
func ServiceData(cmd dispatch.Command) map[string]any {
	data := map[string]any{"entity_id": cmd.Targets}

	c := cmd.Color
	switch c.Kind {
	case color.KindXY:
		data["xy_color"] = []float64{c.XY[0], c.XY[1]}
	case color.KindHS:
		data["hs_color"] = []float64{c.HS[0], c.HS[1]}
	case color.KindRGB:
		data["rgb_color"] = []int{int(c.RGB[0]), int(c.RGB[1]), int(c.RGB[2])}
	case color.KindKelvin:
		data["color_temp_kelvin"] = int(c.Kelvin + 0.5)
	}

	if c.Brightness != nil {
		data["brightness_pct"] = *c.Brightness
	}
	if cmd.Transition != nil {
		data["transition"] = cmd.Transition.Seconds()
	}
	return data
}

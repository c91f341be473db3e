package homeassistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dokzlo13/huerizon/internal/color"
	"github.com/dokzlo13/huerizon/internal/dispatch"
)

func TestAdapter_Apply(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	a := New(srv.URL+"/", "secret", nil)
	b := 40.0
	tr := 2 * time.Second
	cmd := dispatch.NewCommand("porch", []string{"light.porch", "light.hall"}, color.NewXY(0.31, 0.33, &b), &tr, dispatch.PreferXY)

	if err := a.Apply(context.Background(), cmd); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if gotPath != "/api/services/light/turn_on" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("authorization = %q", gotAuth)
	}

	want := map[string]any{
		"entity_id":      []any{"light.porch", "light.hall"},
		"xy_color":       []any{0.31, 0.33},
		"brightness_pct": 40.0,
		"transition":     2.0,
	}
	if diff := cmp.Diff(want, gotBody); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestAdapter_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := New(srv.URL, "bad", nil)
	cmd := dispatch.NewCommand("m", []string{"light.x"}, color.NewKelvin(3000, nil), nil, dispatch.PreferTemp)
	if err := a.Apply(context.Background(), cmd); err == nil {
		t.Error("expected error on 401")
	}
}

func TestAdapter_NoTargets(t *testing.T) {
	a := New("http://127.0.0.1:1", "t", nil)
	cmd := dispatch.NewCommand("m", nil, color.NewKelvin(3000, nil), nil, dispatch.PreferTemp)
	if err := a.Apply(context.Background(), cmd); err == nil {
		t.Error("expected error without targets")
	}
}

func TestServiceData(t *testing.T) {
	tests := []struct {
		name string
		in   color.Reading
		key  string
		want any
	}{
		{name: "hs", in: color.NewHS(120, 50, nil), key: "hs_color", want: []float64{120, 50}},
		{name: "rgb", in: color.NewRGB(color.RGB{1, 2, 3}, nil), key: "rgb_color", want: []int{1, 2, 3}},
		{name: "kelvin_rounded", in: color.NewKelvin(2699.6, nil), key: "color_temp_kelvin", want: 2700},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := ServiceData(dispatch.Command{Targets: []string{"light.x"}, Color: tt.in})
			if diff := cmp.Diff(tt.want, data[tt.key]); diff != "" {
				t.Errorf("%s mismatch (-want +got):\n%s", tt.key, diff)
			}
			if _, ok := data["brightness_pct"]; ok {
				t.Error("brightness_pct set without brightness")
			}
		})
	}
}

package extract

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dokzlo13/huerizon/internal/color"
)

func floatPtr(v float64) *float64 {
	return &v
}

var approxFloat = cmpopts.EquateApprox(0, 0.05)

func TestHSBFromJSON_SymbolScenario(t *testing.T) {
	got := HSBFromJSON(`{"hue": "120°", "saturation": "50%", "brightness": 75}`, DefaultKeys, AutoScales)
	c, ok := got.Canonical()
	if !ok {
		t.Fatalf("expected complete result, trail %q", got.Trail)
	}
	want := color.HSB{H: 120, S: 50, B: 75}
	if diff := cmp.Diff(want, c, approxFloat); diff != "" {
		t.Errorf("HSBFromJSON mismatch (-want +got):\n%s", diff)
	}
}

func TestHSBFromJSON_Malformed(t *testing.T) {
	for _, payload := range []string{
		`{"hue": 1`,
		`not json`,
		`42`,
		`["hue"]`,
		`{"hue":1} x`,
		`{"hue":120,"saturation":50,"brightness":75} garbage`,
		`{"hue":120,"saturation":50,"brightness":75}{"x":1}`,
	} {
		got := HSBFromJSON(payload, DefaultKeys, AutoScales)
		if got.Hue != nil || got.Saturation != nil || got.Brightness != nil {
			t.Errorf("payload %q: expected total failure, got %+v", payload, got)
		}
		if len(got.Trail) == 0 {
			t.Errorf("payload %q: expected diagnostic trail", payload)
		}
	}
}

func TestHSBFromJSON_TrailingWhitespace(t *testing.T) {
	got := HSBFromJSON("{\"hue\":120,\"saturation\":50,\"brightness\":75}\n ", DefaultKeys, AutoScales)
	if !got.Complete() {
		t.Errorf("payload with trailing newline: got %+v, want complete", got)
	}
}

func TestHSBFromJSON_PartialAndExtraKeys(t *testing.T) {
	got := HSBFromJSON(`{"hue": 200, "brightness": 0.5, "source": "camera"}`, DefaultKeys, AutoScales)
	if got.Hue == nil || *got.Hue != 200 {
		t.Errorf("hue = %v, want 200", got.Hue)
	}
	if got.Saturation != nil {
		t.Errorf("saturation = %v, want nil", *got.Saturation)
	}
	if got.Brightness == nil || *got.Brightness != 50 {
		t.Errorf("brightness = %v, want 50", got.Brightness)
	}
	if got.Complete() {
		t.Error("partial payload must not be complete")
	}
}

func TestHSBFromJSON_CustomKeys(t *testing.T) {
	keys := Keys{Hue: "h", Saturation: ".sky.sat", Brightness: ".sky.level"}
	payload := `{"h": 0.25, "sky": {"sat": "80%", "level": 255}}`
	got := HSBFromJSON(payload, keys, AutoScales)
	c, ok := got.Canonical()
	if !ok {
		t.Fatalf("expected complete result, got %+v", got)
	}
	want := color.HSB{H: 90, S: 80, B: 100}
	if diff := cmp.Diff(want, c, approxFloat); diff != "" {
		t.Errorf("custom keys mismatch (-want +got):\n%s", diff)
	}
}

func TestHSBFromStates_ExplicitScales(t *testing.T) {
	scales := Scales{Hue: color.ScaleUnit, Saturation: color.ScalePercent, Brightness: color.ScaleByte}
	got := HSBFromStates("0.5", "80", "200", scales)
	c, ok := got.Canonical()
	if !ok {
		t.Fatalf("expected complete result, trail %q", got.Trail)
	}
	if math.Abs(c.H-180) > 1e-9 || math.Abs(c.S-80) > 1e-9 || math.Abs(c.B-78.4) > 0.05 {
		t.Errorf("HSBFromStates = %+v, want (180, 80, ~78.4)", c)
	}
}

func TestExtractor_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		values Values
		want   color.Reading
		wantOK bool
	}{
		{
			name:   "hsb_json/complete",
			format: FormatHSBJSON,
			values: Values{ChannelJSON: `{"hue": 30, "saturation": 100, "brightness": 40}`},
			want:   color.NewHS(30, 100, floatPtr(40)),
			wantOK: true,
		},
		{
			name:   "hsb_json/bytes_payload",
			format: FormatHSBJSON,
			values: Values{ChannelJSON: []byte(`{"hue": 30, "saturation": 100, "brightness": 40}`)},
			want:   color.NewHS(30, 100, floatPtr(40)),
			wantOK: true,
		},
		{
			name:   "hsb_json/missing_field_skips",
			format: FormatHSBJSON,
			values: Values{ChannelJSON: `{"hue": 30, "saturation": 100}`},
			wantOK: false,
		},
		{
			name:   "hsb_json/no_payload",
			format: FormatHSBJSON,
			values: Values{},
			wantOK: false,
		},
		{
			name:   "hsb_states/complete",
			format: FormatHSBStates,
			values: Values{ChannelHue: "240", ChannelSaturation: "0.5", ChannelBrightness: "100%"},
			want:   color.NewHS(240, 50, floatPtr(100)),
			wantOK: true,
		},
		{
			name:   "hsb_states/unavailable",
			format: FormatHSBStates,
			values: Values{ChannelHue: "unavailable", ChannelSaturation: "50", ChannelBrightness: "50"},
			wantOK: false,
		},
		{
			name:   "xy/with_brightness",
			format: FormatXY,
			values: Values{ChannelX: "0.3127", ChannelY: 0.329, ChannelBrightness: 128},
			want:   color.NewXY(0.3127, 0.329, floatPtr(128.0/255*100)),
			wantOK: true,
		},
		{
			name:   "xy/clamped",
			format: FormatXY,
			values: Values{ChannelX: 1.5, ChannelY: -0.1},
			want:   color.NewXY(1, 0, nil),
			wantOK: true,
		},
		{
			name:   "xy/missing_y",
			format: FormatXY,
			values: Values{ChannelX: 0.4},
			wantOK: false,
		},
		{
			name:   "hs/no_brightness",
			format: FormatHS,
			values: Values{ChannelHue: "90°", ChannelSaturation: "45%"},
			want:   color.NewHS(90, 45, nil),
			wantOK: true,
		},
		{
			name:   "rgb/rounded_and_clamped",
			format: FormatRGB,
			values: Values{ChannelRed: "254.6", ChannelGreen: 300, ChannelBlue: -4},
			want:   color.NewRGB(color.RGB{255, 255, 0}, nil),
			wantOK: true,
		},
		{
			name:   "rgb/missing_channel",
			format: FormatRGB,
			values: Values{ChannelRed: 1, ChannelGreen: 2},
			wantOK: false,
		},
		{
			name:   "color_temp/kelvin_preferred",
			format: FormatColorTemp,
			values: Values{ChannelKelvin: "2700", ChannelMireds: "250"},
			want:   color.NewKelvin(2700, nil),
			wantOK: true,
		},
		{
			name:   "color_temp/mireds_only",
			format: FormatColorTemp,
			values: Values{ChannelMireds: 250, ChannelBrightness: "60%"},
			want:   color.NewKelvin(4000, floatPtr(60)),
			wantOK: true,
		},
		{
			name:   "color_temp/zero_mireds_floored",
			format: FormatColorTemp,
			values: Values{ChannelMireds: 0},
			want:   color.NewKelvin(1_000_000, nil),
			wantOK: true,
		},
		{
			name:   "color_temp/unreadable_kelvin_falls_back",
			format: FormatColorTemp,
			values: Values{ChannelKelvin: "unknown", ChannelMireds: "500"},
			want:   color.NewKelvin(2000, nil),
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(Config{Format: tt.format, Scales: AutoScales})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			got, trail, ok := e.Extract(tt.values)
			if ok != tt.wantOK {
				t.Fatalf("Extract() ok = %v, want %v (trail %q)", ok, tt.wantOK, trail)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.want, got, approxFloat); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractor_SingleRepresentation(t *testing.T) {
	e, _ := New(Config{Format: FormatColorTemp})
	got, _, ok := e.Extract(Values{ChannelKelvin: 3000})
	if !ok {
		t.Fatal("expected reading")
	}
	if got.Kind != color.KindKelvin || got.XY != (color.XY{}) || got.HS != [2]float64{} || got.RGB != (color.RGB{}) {
		t.Errorf("more than one representation populated: %+v", got)
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New(Config{Format: "cmyk"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

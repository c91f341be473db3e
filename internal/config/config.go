package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/go-playground/validator.v9"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Log             LogConfig           `yaml:"log"`
	Database        DatabaseConfig      `yaml:"database"`
	Geo             GeoConfig           `yaml:"geo"`
	EventBus        EventBusConfig      `yaml:"eventbus"`
	States          StatesConfig        `yaml:"states"`
	MQTT            MQTTConfig          `yaml:"mqtt"`
	Webhook         WebhookConfig       `yaml:"webhook"`
	Healthcheck     HealthcheckConfig   `yaml:"healthcheck"`
	Dispatch        DispatchConfig      `yaml:"dispatch"`
	Hue             HueConfig           `yaml:"hue"`
	HomeAssistant   HomeAssistantConfig `yaml:"homeassistant"`
	Ledger          LedgerConfig        `yaml:"ledger"`
	ShutdownTimeout Duration            `yaml:"shutdown_timeout" default:"5s"`
	Monitors        []MonitorConfig     `yaml:"monitors" validate:"dive"`
}

// Duration is a time.Duration that can be unmarshaled from YAML strings like "5s", "1m"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the time.Duration value
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Flag is a boolean that also accepts the string forms "yes", "on", "1"
// and their negatives.
type Flag bool

// UnmarshalYAML implements yaml.Unmarshaler
func (f *Flag) UnmarshalYAML(value *yaml.Node) error {
	var b bool
	if err := value.Decode(&b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		*f = true
	case "", "0", "false", "no", "n", "off":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}

// LogConfig configures logging output
type LogConfig struct {
	Level   string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `yaml:"path" default:"huerizon.db" validate:"required"`
}

// GeoConfig configures the location used for day/night decisions
type GeoConfig struct {
	Name        string   `yaml:"name"`
	Lat         *float64 `yaml:"lat" validate:"omitempty,min=-90,max=90"`
	Lon         *float64 `yaml:"lon" validate:"omitempty,min=-180,max=180"`
	Timezone    string   `yaml:"timezone" default:"Local"`
	HTTPTimeout Duration `yaml:"http_timeout" default:"10s"`
}

// Enabled reports whether a location is configured at all.
func (g GeoConfig) Enabled() bool {
	return g.Name != "" || (g.Lat != nil && g.Lon != nil)
}

// EventBusConfig configures the event bus worker pool
type EventBusConfig struct {
	Workers   int `yaml:"workers" default:"4" validate:"min=1"`
	QueueSize int `yaml:"queue_size" default:"100" validate:"min=1"`
}

// StatesConfig configures the entity state store
type StatesConfig struct {
	// TTL expires observations that are not refreshed. Zero keeps them.
	TTL Duration `yaml:"ttl"`
}

// MQTTConfig configures the MQTT observation source
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id" default:"huerizon"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos" validate:"max=2"`
	// Subscriptions maps a topic filter to the entity id its payloads update.
	Subscriptions map[string]string `yaml:"subscriptions"`
}

// Enabled reports whether an MQTT broker is configured.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// WebhookConfig configures the HTTP API
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host" default:"0.0.0.0"`
	Port    int    `yaml:"port" default:"8080" validate:"min=1,max=65535"`
}

// HealthcheckConfig configures the health check HTTP server
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host" default:"0.0.0.0"`
	Port    int    `yaml:"port" default:"9090" validate:"min=1,max=65535"`
}

// Dispatch backends.
const (
	BackendHue           = "hue"
	BackendHomeAssistant = "homeassistant"
	BackendLog           = "log"
)

// DispatchConfig configures the dispatch queue and backend
type DispatchConfig struct {
	Backend   string   `yaml:"backend" default:"log" validate:"oneof=hue homeassistant log"`
	QueueSize int      `yaml:"queue_size" default:"64" validate:"min=1"`
	RateLimit float64  `yaml:"rate_limit_rps" default:"10" validate:"gt=0"`
	Timeout   Duration `yaml:"timeout" default:"10s"`
}

// HueConfig configures the Hue bridge connection
type HueConfig struct {
	Bridge        string   `yaml:"bridge"`
	Token         string   `yaml:"token"`
	LightCacheTTL Duration `yaml:"light_cache_ttl" default:"5m"`
}

// HomeAssistantConfig configures the Home Assistant REST API connection
type HomeAssistantConfig struct {
	URL   string `yaml:"url" validate:"omitempty,url"`
	Token string `yaml:"token"`
}

// LedgerConfig configures ledger retention
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval" default:"24h"`
	RetentionDays   int      `yaml:"retention_days" default:"30" validate:"min=1"`
}

// Retention returns the retention period as a duration.
func (l LedgerConfig) Retention() time.Duration {
	return time.Duration(l.RetentionDays) * 24 * time.Hour
}

// MonitorConfig configures one sky-color monitor
type MonitorConfig struct {
	ID          string         `yaml:"id" validate:"required"`
	InputFormat string         `yaml:"input_format" default:"xy" validate:"oneof=hsb_json hsb_states xy hs rgb color_temp"`
	Entities    EntitiesConfig `yaml:"entities"`
	JSONKeys    JSONKeysConfig `yaml:"json_keys"`
	Scales      ScalesConfig   `yaml:"scales"`
	ApplyMode   string         `yaml:"apply_mode" default:"prefer_xy" validate:"oneof=prefer_xy prefer_hs prefer_rgb prefer_temp"`
	Transition  *Duration      `yaml:"transition"`
	Targets     []string       `yaml:"targets"`
	Coalesce    Duration       `yaml:"coalesce"`
	Schedule    ScheduleConfig `yaml:"schedule"`
}

// EntitiesConfig names the entity read for each input channel
type EntitiesConfig struct {
	JSON       string `yaml:"json"`
	Hue        string `yaml:"hue"`
	Saturation string `yaml:"saturation"`
	Brightness string `yaml:"brightness"`
	X          string `yaml:"x"`
	Y          string `yaml:"y"`
	Red        string `yaml:"red"`
	Green      string `yaml:"green"`
	Blue       string `yaml:"blue"`
	Mireds     string `yaml:"mireds"`
	Kelvin     string `yaml:"kelvin"`
}

// JSONKeysConfig names the fields of a JSON payload. Keys starting with "."
// are paths into nested objects.
type JSONKeysConfig struct {
	Hue        string `yaml:"hue"`
	Saturation string `yaml:"saturation"`
	Brightness string `yaml:"brightness"`
}

// ScalesConfig declares the unit of each channel. Percent applies to both
// saturation and brightness unless they are set individually. Unknown
// values fall back to the channel's native scale.
type ScalesConfig struct {
	Hue        string `yaml:"hue" default:"auto"`
	Saturation string `yaml:"saturation"`
	Brightness string `yaml:"brightness"`
	Percent    string `yaml:"percent"`
}

// ScheduleConfig restricts when a monitor applies colors
type ScheduleConfig struct {
	OnlyAtNight Flag    `yaml:"only_at_night"`
	ActiveStart string  `yaml:"active_start" validate:"omitempty,timeofday"`
	ActiveEnd   string  `yaml:"active_end" validate:"omitempty,timeofday"`
	ActiveDays  []int   `yaml:"active_days" validate:"dive,min=0,max=6"`
	MinDelta    float64 `yaml:"min_delta" validate:"min=0"`
	RateLimit   float64 `yaml:"rate_limit_sec" validate:"min=0"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it, applies defaults
// and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to set defaults: %w", err)
	}
	for i := range cfg.Monitors {
		if err := defaults.Set(&cfg.Monitors[i]); err != nil {
			return nil, fmt.Errorf("failed to set monitor defaults: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Dispatch.Backend {
	case BackendHue:
		if c.Hue.Bridge == "" || c.Hue.Token == "" {
			return fmt.Errorf("invalid config: hue backend requires hue.bridge and hue.token")
		}
	case BackendHomeAssistant:
		if c.HomeAssistant.URL == "" || c.HomeAssistant.Token == "" {
			return fmt.Errorf("invalid config: homeassistant backend requires homeassistant.url and homeassistant.token")
		}
	}

	if (c.Geo.Lat == nil) != (c.Geo.Lon == nil) {
		return fmt.Errorf("invalid config: geo.lat and geo.lon must be set together")
	}

	seen := make(map[string]bool)
	for _, m := range c.Monitors {
		if seen[m.ID] {
			return fmt.Errorf("invalid config: duplicate monitor id %q", m.ID)
		}
		seen[m.ID] = true
		if _, err := m.Schedule.Gate(); err != nil {
			return fmt.Errorf("invalid config: monitor %q: %w", m.ID, err)
		}
		if bool(m.Schedule.OnlyAtNight) && !c.Geo.Enabled() {
			return fmt.Errorf("invalid config: monitor %q uses only_at_night without a geo location", m.ID)
		}
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
		return timeOfDayPattern.MatchString(fl.Field().String())
	})
	return v
}

var timeOfDayPattern = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)

// envVarPattern matches ${VAR} or ${VAR:default}
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:default} patterns with environment variable values
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return defaultValue
	})
}

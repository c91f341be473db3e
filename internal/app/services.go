package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huerizon/internal/config"
	"github.com/dokzlo13/huerizon/internal/db"
	"github.com/dokzlo13/huerizon/internal/dispatch"
	"github.com/dokzlo13/huerizon/internal/dispatch/homeassistant"
	"github.com/dokzlo13/huerizon/internal/dispatch/hue"
	"github.com/dokzlo13/huerizon/internal/eventbus"
	"github.com/dokzlo13/huerizon/internal/geo"
	"github.com/dokzlo13/huerizon/internal/ledger"
	"github.com/dokzlo13/huerizon/internal/monitor"
	"github.com/dokzlo13/huerizon/internal/mqtt"
	"github.com/dokzlo13/huerizon/internal/states"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config
	tz  *time.Location

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus
	States *states.Store

	// Nil when no location is configured
	GeoCalc *geo.Calculator

	Queue    *dispatch.Queue
	Monitors *monitor.Manager

	// Optional sources and servers
	MQTT    *mqtt.Client
	Health  *HealthService
	Webhook *WebhookService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	tz, err := time.LoadLocation(cfg.Geo.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Geo.Timezone, err)
	}
	s.tz = tz

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Ledger = ledger.New(database.DB)
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.Workers, cfg.EventBus.QueueSize)
	s.States = states.New(s.Bus, cfg.States.TTL.Duration())

	if cfg.Geo.Enabled() {
		if cfg.Geo.Lat == nil {
			log.Warn().Str("name", cfg.Geo.Name).Msg("No lat/lon configured, will use Nominatim geocoding (cached in SQLite)")
		}
		s.GeoCalc, err = geo.NewCalculator(geo.Options{
			Place:       cfg.Geo.Name,
			Latitude:    cfg.Geo.Lat,
			Longitude:   cfg.Geo.Lon,
			Timezone:    cfg.Geo.Timezone,
			HTTPTimeout: cfg.Geo.HTTPTimeout.Duration(),
			Cache:       geo.NewCache(database.DB),
		})
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	adapter, err := newAdapter(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Queue = dispatch.NewQueue(adapter, dispatch.Options{
		Size:      cfg.Dispatch.QueueSize,
		RateLimit: cfg.Dispatch.RateLimit,
		Timeout:   cfg.Dispatch.Timeout.Duration(),
	}, s.Ledger, s.Bus)

	deps := monitor.Deps{
		Bus:    s.Bus,
		States: s.States,
		Queue:  s.Queue,
		Now:    func() time.Time { return time.Now().In(tz) },
	}
	if s.GeoCalc != nil {
		deps.Daylight = s.GeoCalc
	}
	s.Monitors = monitor.NewManager(deps)

	if cfg.MQTT.Enabled() {
		s.MQTT = mqtt.New(mqtt.Options{
			Broker:        cfg.MQTT.Broker,
			ClientID:      cfg.MQTT.ClientID,
			Username:      cfg.MQTT.Username,
			Password:      cfg.MQTT.Password,
			QoS:           cfg.MQTT.QoS,
			Subscriptions: cfg.MQTT.Subscriptions,
		}, s.States)
	}

	s.Health = NewHealthService(cfg, s.Monitors)
	s.Webhook = NewWebhookService(cfg, s.States, s.Queue, s.Monitors)

	return s, nil
}

func newAdapter(cfg *config.Config) (dispatch.Adapter, error) {
	switch cfg.Dispatch.Backend {
	case config.BackendHue:
		return hue.New(cfg.Hue.Bridge, cfg.Hue.Token, cfg.Hue.LightCacheTTL.Duration()), nil
	case config.BackendHomeAssistant:
		client := &http.Client{Timeout: cfg.Dispatch.Timeout.Duration()}
		return homeassistant.New(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, client), nil
	case config.BackendLog, "":
		return dispatch.LogAdapter{}, nil
	}
	return nil, fmt.Errorf("unknown dispatch backend %q", cfg.Dispatch.Backend)
}

// MonitorOptions converts configured monitor entries. Entries with an
// invalid schedule are logged and left out.
func MonitorOptions(entries []config.MonitorConfig) []monitor.Options {
	out := make([]monitor.Options, 0, len(entries))
	for _, m := range entries {
		sched, err := m.Schedule.Gate()
		if err != nil {
			log.Error().Err(err).Str("monitor", m.ID).Msg("Invalid monitor schedule")
			continue
		}
		out = append(out, monitor.Options{
			ID:         m.ID,
			Channels:   m.Channels(),
			Extract:    m.Extract(),
			Schedule:   sched,
			Mode:       m.Mode(),
			Transition: m.TransitionDuration(),
			Targets:    m.Targets,
			Coalesce:   m.Coalesce.Duration(),
		})
	}
	return out
}

// Start starts all services in the correct order: dispatch before the
// monitors that feed it, monitors before the sources that feed them.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	s.Queue.Start(ctx)
	s.Monitors.Reconfigure(MonitorOptions(s.cfg.Monitors))

	if s.MQTT != nil {
		if err := s.MQTT.Start(); err != nil {
			return err
		}
	}

	if interval := s.cfg.Ledger.CleanupInterval.Duration(); interval > 0 {
		go s.Ledger.RunRetention(ctx, interval, s.cfg.Ledger.Retention())
	}

	s.Health.Start(ctx)
	s.Webhook.Start(ctx, onFatalError)

	return nil
}

// Reconfigure swaps the running monitors for the ones in cfg. Other
// sections take effect on restart only.
func (s *Services) Reconfigure(cfg *config.Config) int {
	if cfg.Geo.Enabled() && s.GeoCalc == nil {
		log.Warn().Msg("Geo location added on reload, night-only schedules need a restart")
	}
	s.cfg.Monitors = cfg.Monitors
	return s.Monitors.Reconfigure(MonitorOptions(cfg.Monitors))
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
	defer cancel()

	if s.MQTT != nil {
		s.MQTT.Stop()
	}
	s.Monitors.Stop()
	s.Queue.Close(ctx)
	s.Bus.Close(ctx)
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bus != nil {
		s.Bus.Close(context.Background())
	}
	if s.DB != nil {
		s.DB.Close()
	}
}

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huerizon/internal/app"
	"github.com/dokzlo13/huerizon/internal/config"
)

// options are the command line flags.
type options struct {
	Config   string `short:"c" long:"config" default:"config.yaml" description:"Path to configuration file"`
	LogLevel string `long:"log-level" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Override log.level from the configuration"`
	Check    bool   `long:"check" description:"Validate the configuration and exit"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	setupLogging(level, cfg.Log.UseJSON, cfg.Log.Colors)

	if opts.Check {
		printSummary(cfg)
		return
	}

	log.Info().Str("config", opts.Config).Msg("Starting huerizon")

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	reload := app.ReloadSignals()
	for running := true; running; {
		select {
		case <-reload:
			log.Info().Msg("Received SIGHUP, reloading configuration")
			application.Reload(opts.Config)
		case <-application.Done():
			running = false
		}
	}

	// Graceful shutdown
	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func printSummary(cfg *config.Config) {
	fmt.Printf("configuration OK: backend=%s monitors=%d\n", cfg.Dispatch.Backend, len(cfg.Monitors))
	for _, m := range cfg.Monitors {
		sched, err := m.Schedule.Gate()
		if err != nil {
			fmt.Printf("  %s: %v\n", m.ID, err)
			continue
		}
		fmt.Printf("  %s: format=%s mode=%s targets=%v entities=%d night_only=%t min_delta=%g rate_limit=%s\n",
			m.ID, m.InputFormat, m.ApplyMode, m.Targets, len(m.Channels()), sched.OnlyAtNight, sched.MinDelta, sched.RateLimit)
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

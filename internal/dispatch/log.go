package dispatch

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogAdapter only logs commands. It is used when no light backend is
// configured, which makes it a dry run.
type LogAdapter struct{}

// Name implements Adapter.
func (LogAdapter) Name() string { return "log" }

// Apply implements Adapter.
func (LogAdapter) Apply(_ context.Context, cmd Command) error {
	log.Info().
		Str("command_id", cmd.ID).
		Str("source", cmd.Source).
		Fields(cmd.Fields()).
		Msg("Dry run: would set lights")
	return nil
}

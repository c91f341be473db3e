package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huerizon/internal/config"
	"github.com/dokzlo13/huerizon/internal/webhook"
)

// WebhookService wraps the HTTP API server.
type WebhookService struct {
	cfg    *config.Config
	server *webhook.Server
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(cfg *config.Config, states webhook.StateStore, queue webhook.Enqueuer, monitors webhook.StatusLister) *WebhookService {
	server := webhook.NewServer(cfg.Webhook.Host, cfg.Webhook.Port, states, queue, monitors)
	return &WebhookService{
		cfg:    cfg,
		server: server,
	}
}

// Start begins the API server if enabled. A listen failure is fatal, since
// the server is the only way states reach monitors without MQTT.
func (s *WebhookService) Start(ctx context.Context, onFatalError func(error)) {
	if !s.cfg.Webhook.Enabled {
		log.Debug().Msg("API server disabled")
		return
	}

	go func() {
		if err := s.server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Msg("API server error")
			if onFatalError != nil {
				onFatalError(err)
			}
		}
	}()
}

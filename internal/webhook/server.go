// Package webhook serves the HTTP API: state ingestion, the apply_sky
// service and monitor status.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huerizon/internal/dispatch"
	"github.com/dokzlo13/huerizon/internal/monitor"
	"github.com/dokzlo13/huerizon/internal/states"
)

// Source is the state source recorded for HTTP observations.
const Source = "webhook"

const maxBodySize = 1 << 20

// StateStore is the part of the state store the API uses.
type StateStore interface {
	Set(entityID string, value any, source string)
	All() map[string]states.State
}

// Enqueuer accepts dispatch commands without blocking.
type Enqueuer interface {
	Enqueue(cmd dispatch.Command) error
}

// StatusLister reports running monitors.
type StatusLister interface {
	Statuses() []monitor.Status
}

// Server is the HTTP API server.
type Server struct {
	addr       string
	states     StateStore
	queue      Enqueuer
	monitors   StatusLister
	router     *mux.Router
	httpServer *http.Server
}

// NewServer creates a new API server.
func NewServer(host string, port int, states StateStore, queue Enqueuer, monitors StatusLister) *Server {
	s := &Server{
		addr:     fmt.Sprintf("%s:%d", host, port),
		states:   states,
		queue:    queue,
		monitors: monitors,
		router:   mux.NewRouter(),
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/states", s.handleListStates).Methods(http.MethodGet)
	api.HandleFunc("/states/{entity_id}", s.handleSetState).Methods(http.MethodPost, http.MethodPut)
	api.HandleFunc("/services/apply_sky", s.handleApplySky).Methods(http.MethodPost)
	api.HandleFunc("/monitors", s.handleMonitors).Methods(http.MethodGet)
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleSetState records the request body as the entity's new state. A
// JSON object with a "state" member sets that member; any other body is
// stored as text.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entity_id"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read state request body")
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	value := stateValue(body)
	s.states.Set(entityID, value, Source)

	log.Debug().
		Str("entity_id", entityID).
		Int("body_len", len(body)).
		Msg("Received state update")

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func stateValue(body []byte) any {
	trimmed := bytes.TrimSpace(body)

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err == nil {
		if raw, ok := wrapper["state"]; ok {
			var v any
			if err := json.Unmarshal(raw, &v); err == nil {
				switch v.(type) {
				case map[string]any, []any:
					return string(raw)
				}
				return v
			}
		}
	}
	return strings.TrimSpace(string(trimmed))
}

func (s *Server) handleListStates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.states.All())
}

func (s *Server) handleApplySky(w http.ResponseWriter, r *http.Request) {
	var req ApplySkyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cmd, err := req.Command()
	if err != nil {
		log.Warn().Msg("apply_sky called without target lights")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.queue.Enqueue(cmd); err != nil {
		log.Warn().Err(err).Str("command_id", cmd.ID).Msg("Failed to enqueue apply_sky")
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "command_id": cmd.ID})
}

func (s *Server) handleMonitors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitors.Statuses())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

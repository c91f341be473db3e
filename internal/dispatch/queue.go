package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/huerizon/internal/eventbus"
	"github.com/dokzlo13/huerizon/internal/ledger"
)

var (
	ErrQueueClosed = errors.New("dispatch queue closed")
	ErrQueueFull   = errors.New("dispatch queue full")
)

// Recorder persists dispatch outcomes.
type Recorder interface {
	Append(eventType ledger.EventType, commandID, source string, payload map[string]any) error
}

// Publisher announces dispatch outcomes.
type Publisher interface {
	Publish(event eventbus.Event)
}

// Options configures a Queue.
type Options struct {
	Size      int
	RateLimit float64 // requests per second to the adapter
	Timeout   time.Duration
}

// Queue serializes commands to one adapter. Enqueue never blocks; a single
// worker performs the calls.
type Queue struct {
	adapter  Adapter
	recorder Recorder
	bus      Publisher
	limiter  *rate.Limiter
	timeout  time.Duration

	mu      sync.RWMutex
	closed  bool
	cmds    chan Command
	done    chan struct{}
	cancel  context.CancelFunc
	started bool
}

// NewQueue creates a queue. recorder and bus may be nil.
func NewQueue(adapter Adapter, opts Options, recorder Recorder, bus Publisher) *Queue {
	if opts.Size <= 0 {
		opts.Size = 64
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10.0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	burst := int(opts.RateLimit)
	if burst < 1 {
		burst = 1
	}

	return &Queue{
		adapter:  adapter,
		recorder: recorder,
		bus:      bus,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), burst),
		timeout:  opts.Timeout,
		cmds:     make(chan Command, opts.Size),
		done:     make(chan struct{}),
	}
}

// Start runs the worker until Close or ctx cancellation.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	go q.run(ctx)

	log.Info().Str("adapter", q.adapter.Name()).Msg("Dispatch worker started")
}

// Enqueue hands a command to the worker without waiting for it.
func (q *Queue) Enqueue(cmd Command) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.cmds <- cmd:
		return nil
	default:
		log.Warn().Str("command_id", cmd.ID).Str("source", cmd.Source).Msg("Dispatch queue full, dropping command")
		return ErrQueueFull
	}
}

// Close stops accepting commands, drains the queue and waits for the
// worker. When ctx expires first the remaining commands are abandoned.
func (q *Queue) Close(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.cmds)
	started := q.started
	q.mu.Unlock()

	if !started {
		return
	}

	select {
	case <-q.done:
		log.Debug().Msg("Dispatch worker stopped gracefully")
	case <-ctx.Done():
		q.cancel()
		<-q.done
		log.Warn().Msg("Dispatch shutdown timed out, pending commands dropped")
	}
	q.cancel()
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	for cmd := range q.cmds {
		if ctx.Err() != nil {
			continue
		}
		q.process(ctx, cmd)
	}
}

func (q *Queue) process(ctx context.Context, cmd Command) {
	if err := q.limiter.Wait(ctx); err != nil {
		q.record(cmd, err)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	start := time.Now()
	err := q.adapter.Apply(callCtx, cmd)

	logger := log.With().
		Str("command_id", cmd.ID).
		Str("source", cmd.Source).
		Str("adapter", q.adapter.Name()).
		Str("color", cmd.Color.String()).
		Strs("targets", cmd.Targets).
		Dur("took", time.Since(start)).
		Logger()
	if err != nil {
		logger.Error().Err(err).Msg("Dispatch failed")
	} else {
		logger.Info().Msg("Color dispatched")
	}

	q.record(cmd, err)
}

func (q *Queue) record(cmd Command, err error) {
	eventType := ledger.EventColorDispatched
	payload := cmd.Fields()
	if err != nil {
		eventType = ledger.EventDispatchFailed
		payload["error"] = err.Error()
	}

	if q.recorder != nil {
		if lerr := q.recorder.Append(eventType, cmd.ID, cmd.Source, payload); lerr != nil {
			log.Warn().Err(lerr).Str("command_id", cmd.ID).Msg("Failed to write ledger entry")
		}
	}

	if q.bus != nil {
		data := map[string]any{"monitor": cmd.Source, "command_id": cmd.ID, "error": nil}
		if err != nil {
			data["error"] = err.Error()
		}
		q.bus.Publish(eventbus.Event{Type: eventbus.EventTypeColorDispatched, Data: data})
	}
}

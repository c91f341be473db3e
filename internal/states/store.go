// Package states keeps the latest raw observation per entity and announces
// changes on the event bus.
package states

import (
	"reflect"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huerizon/internal/eventbus"
)

// State is the latest observation of one entity.
type State struct {
	EntityID  string    `json:"entity_id"`
	Value     any       `json:"state"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Publisher is the part of the event bus the store needs.
type Publisher interface {
	Publish(event eventbus.Event)
}

// Store holds entity states. With a TTL set, states that are not refreshed
// expire and read as absent.
type Store struct {
	cache *cache.Cache
	bus   Publisher
	now   func() time.Time
}

// New creates a store. A zero ttl keeps states until overwritten.
func New(bus Publisher, ttl time.Duration) *Store {
	var c *cache.Cache
	if ttl > 0 {
		c = cache.New(ttl, 2*ttl)
	} else {
		c = cache.New(cache.NoExpiration, 0)
	}
	return &Store{cache: c, bus: bus, now: time.Now}
}

// Set records a new observation. A state_changed event is published unless
// the value equals the current one.
func (s *Store) Set(entityID string, value any, source string) {
	prev, existed := s.Get(entityID)
	s.cache.Set(entityID, State{EntityID: entityID, Value: value, Source: source, UpdatedAt: s.now()}, cache.DefaultExpiration)
	if existed && reflect.DeepEqual(prev.Value, value) {
		return
	}

	log.Debug().
		Str("entity_id", entityID).
		Interface("state", value).
		Str("source", source).
		Msg("State changed")

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeStateChanged,
			Data: map[string]any{
				"entity_id": entityID,
				"state":     value,
				"source":    source,
			},
		})
	}
}

// Get returns the current state of an entity.
func (s *Store) Get(entityID string) (State, bool) {
	v, ok := s.cache.Get(entityID)
	if !ok {
		return State{}, false
	}
	return v.(State), true
}

// Value returns only the raw value, nil when absent.
func (s *Store) Value(entityID string) any {
	st, ok := s.Get(entityID)
	if !ok {
		return nil
	}
	return st.Value
}

// All returns every unexpired state keyed by entity id.
func (s *Store) All() map[string]State {
	items := s.cache.Items()
	out := make(map[string]State, len(items))
	for k, item := range items {
		out[k] = item.Object.(State)
	}
	return out
}

// Delete forgets an entity.
func (s *Store) Delete(entityID string) {
	s.cache.Delete(entityID)
}

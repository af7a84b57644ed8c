// Package events implements an in-process pub/sub broker used to decouple
// the fact ledger, consensus loop, and secondary indexes.
package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// EventType labels what happened.
type EventType string

const (
	EventFactIngested     EventType = "fact_ingested"
	EventFactCorroborated EventType = "fact_corroborated"
	EventFactDisputed     EventType = "fact_disputed"
	EventFactLinked       EventType = "fact_linked"
	EventFactSealed       EventType = "fact_sealed"
	EventBlockCommitted   EventType = "block_committed"
	EventPeerConnected    EventType = "peer_connected"
	EventPeerBlacklisted  EventType = "peer_blacklisted"
	EventValidatorStaked  EventType = "validator_staked"
)

// Event carries a typed payload emitted after a state change.
type Event struct {
	Type        EventType      `json:"type"`
	FactHash    string         `json:"fact_hash,omitempty"`
	BlockHeight int64          `json:"block_height,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      *logrus.Entry
}

// NewEmitter creates an Emitter with no subscribers. A nil log falls back
// to the standard logrus logger.
func NewEmitter(log *logrus.Entry) *Emitter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Emitter{handlers: make(map[EventType][]Handler), log: log}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the node or halt block production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		e.dispatch(h, ev)
	}
}

func (e *Emitter) dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("event", ev.Type).Errorf("handler panicked: %v", r)
		}
	}()
	h(ev)
}

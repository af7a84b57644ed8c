package ledger

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/axiomproject/axiom/events"
)

// OpType identifies a fact lifecycle operation.
type OpType string

const (
	OpIngest      OpType = "ingest"
	OpCorroborate OpType = "corroborate"
	OpDispute     OpType = "dispute"
	OpLink        OpType = "link"
)

// FactRepo is the persistence surface an Operation needs. storage.FactStore
// satisfies this without importing ledger into storage's signature.
type FactRepo interface {
	Get(hash string) (*Fact, error)
	GetByID(id int64) (*Fact, error)
	Put(f *Fact) error
}

// Context is passed to every Handler.
type Context struct {
	Facts   FactRepo
	Emitter *events.Emitter
}

// Handler applies one operation's payload against ctx.
type Handler func(ctx *Context, payload json.RawMessage) error

// Operations dispatches fact lifecycle operations to their handlers. It is
// the Axiom-domain analog of a transaction-type registry: instead of
// routing signed transactions to balance-mutating modules, it routes
// client-submitted operations to fact-mutating ones.
type Operations struct {
	mu       sync.RWMutex
	handlers map[OpType]Handler
}

// NewOperations returns a registry with the four built-in fact handlers
// already registered.
func NewOperations() *Operations {
	ops := &Operations{handlers: make(map[OpType]Handler)}
	ops.Register(OpIngest, handleIngest)
	ops.Register(OpCorroborate, handleCorroborate)
	ops.Register(OpDispute, handleDispute)
	ops.Register(OpLink, handleLink)
	return ops
}

// Register associates typ with h. Panics on duplicate registration, since a
// second registration for the same op type is always a programming error.
func (o *Operations) Register(typ OpType, h Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.handlers[typ]; exists {
		panic(fmt.Sprintf("ledger: handler already registered for op %q", typ))
	}
	o.handlers[typ] = h
}

// Execute dispatches payload to the handler registered for typ.
func (o *Operations) Execute(typ OpType, ctx *Context, payload json.RawMessage) error {
	o.mu.RLock()
	h, ok := o.handlers[typ]
	o.mu.RUnlock()
	if !ok {
		return fmt.Errorf("ledger: no handler registered for op %q", typ)
	}
	return h(ctx, payload)
}

type ingestPayload struct {
	ID        int64           `json:"id"`
	Content   string          `json:"content"`
	Semantics json.RawMessage `json:"semantics,omitempty"`
	Sources   []Source        `json:"sources,omitempty"`
}

func handleIngest(ctx *Context, payload json.RawMessage) error {
	var p ingestPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode ingest payload: %w", err)
	}
	f, err := NewFact(p.ID, p.Content, p.Semantics, p.Sources)
	if err != nil {
		return err
	}
	if existing, err := ctx.Facts.Get(f.Hash); err == nil && existing != nil {
		return fmt.Errorf("fact %s already ingested", f.Hash)
	}
	if err := ctx.Facts.Put(f); err != nil {
		return err
	}
	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{Type: events.EventFactIngested, FactHash: f.Hash})
	}
	return nil
}

type factHashPayload struct {
	FactHash string `json:"fact_hash"`
}

func handleCorroborate(ctx *Context, payload json.RawMessage) error {
	var p factHashPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode corroborate payload: %w", err)
	}
	f, err := ctx.Facts.Get(p.FactHash)
	if err != nil {
		return err
	}
	if f.Sealed() {
		return fmt.Errorf("fact %s already sealed, no longer mutable", f.Hash)
	}
	f.Score++ // monotonic: score never decreases (invariant 4)
	if err := ctx.Facts.Put(f); err != nil {
		return err
	}
	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{Type: events.EventFactCorroborated, FactHash: f.Hash})
	}
	return nil
}

func handleDispute(ctx *Context, payload json.RawMessage) error {
	var p factHashPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode dispute payload: %w", err)
	}
	f, err := ctx.Facts.Get(p.FactHash)
	if err != nil {
		return err
	}
	if f.Sealed() {
		return fmt.Errorf("fact %s already sealed, no longer mutable", f.Hash)
	}
	if f.Disputed {
		return nil // already disputed; disputed never reverts (invariant 4)
	}
	f.Disputed = true
	if err := ctx.Facts.Put(f); err != nil {
		return err
	}
	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{Type: events.EventFactDisputed, FactHash: f.Hash})
	}
	return nil
}

type linkPayload struct {
	FactHash   string   `json:"fact_hash"`
	TargetHash string   `json:"target_hash"`
	Kind       LinkKind `json:"kind"`
}

func handleLink(ctx *Context, payload json.RawMessage) error {
	var p linkPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode link payload: %w", err)
	}
	f, err := ctx.Facts.Get(p.FactHash)
	if err != nil {
		return err
	}
	if _, err := ctx.Facts.Get(p.TargetHash); err != nil {
		return fmt.Errorf("link target %s: %w", p.TargetHash, err)
	}
	for _, l := range f.Links {
		if l.TargetHash == p.TargetHash && l.Kind == p.Kind {
			return nil // idempotent
		}
	}
	f.Links = append(f.Links, Link{TargetHash: p.TargetHash, Kind: p.Kind})
	if err := ctx.Facts.Put(f); err != nil {
		return err
	}
	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:     events.EventFactLinked,
			FactHash: f.Hash,
			Data:     map[string]any{"target_hash": p.TargetHash, "kind": string(p.Kind)},
		})
	}
	return nil
}

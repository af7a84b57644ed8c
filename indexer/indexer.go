// Package indexer maintains secondary lookup tables over the fact graph so
// callers can query facts by source domain or by relationship kind without
// scanning the whole store.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/axiomproject/axiom/events"
	"github.com/axiomproject/axiom/ledger"
	"github.com/axiomproject/axiom/storage"
)

const (
	prefixDomainFacts = "idx:domain:fact:"
	prefixKindFacts   = "idx:kind:fact:"
)

// FactGetter is the read surface the indexer needs to look up a fact's
// sources once it only has a hash from an event payload. storage.FactStore
// satisfies this.
type FactGetter interface {
	Get(hash string) (*ledger.Fact, error)
}

// Indexer subscribes to ledger events and updates secondary lookup tables.
type Indexer struct {
	db      storage.DB
	facts   FactGetter
	emitter *events.Emitter
}

// New creates an Indexer backed by db, reading full fact bodies through
// facts, and subscribes to the events it needs to stay current.
func New(db storage.DB, facts FactGetter, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, facts: facts, emitter: emitter}
	emitter.Subscribe(events.EventFactIngested, idx.onFactIngested)
	emitter.Subscribe(events.EventFactLinked, idx.onFactLinked)
	return idx
}

// GetFactsByDomain returns all fact hashes sourced from the given domain.
func (idx *Indexer) GetFactsByDomain(domain string) ([]string, error) {
	return idx.getList(prefixDomainFacts + domain)
}

// GetFactsByKind returns all fact hashes that originate a link of the given kind.
func (idx *Indexer) GetFactsByKind(kind string) ([]string, error) {
	return idx.getList(prefixKindFacts + kind)
}

// ---- event handlers ----

func (idx *Indexer) onFactIngested(ev events.Event) {
	if ev.FactHash == "" {
		return
	}
	f, err := idx.facts.Get(ev.FactHash)
	if err != nil {
		log.Printf("[indexer] lookup failed for ingested fact %s: %v", ev.FactHash, err)
		return
	}
	for _, src := range f.Sources {
		if src.Domain == "" {
			continue
		}
		if err := idx.addToList(prefixDomainFacts+src.Domain, f.Hash); err != nil {
			log.Printf("[indexer] domain index write failed (domain=%s fact=%s): %v", src.Domain, f.Hash, err)
		}
	}
}

func (idx *Indexer) onFactLinked(ev events.Event) {
	if ev.FactHash == "" || ev.Data == nil {
		return
	}
	kind, _ := ev.Data["kind"].(string)
	if kind == "" {
		return
	}
	if err := idx.addToList(prefixKindFacts+kind, ev.FactHash); err != nil {
		log.Printf("[indexer] kind index write failed (kind=%s fact=%s): %v", kind, ev.FactHash, err)
	}
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return fmt.Errorf("read list: %w", err)
	}
	for _, id := range ids {
		if id == value {
			return nil // already present
		}
	}
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

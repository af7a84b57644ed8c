package p2p

import (
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/axiomproject/axiom/ledger"
)

// gossipCacheSize and gossipCacheTTL bound the duplicate-suppression cache
// (spec.md §4.D: 4096 entries, 10-minute TTL).
const (
	gossipCacheSize = 4096
	gossipCacheTTL  = 10 * time.Minute
)

// Gossiper flood-broadcasts blocks while suppressing duplicates already
// seen within the TTL window.
type Gossiper struct {
	node *Node
	seen *lru.LRU[string, struct{}]
}

// NewGossiper wraps node with flood-broadcast + dedup.
func NewGossiper(node *Node) *Gossiper {
	return &Gossiper{
		node: node,
		seen: lru.NewLRU[string, struct{}](gossipCacheSize, nil, gossipCacheTTL),
	}
}

func dedupKey(typ MsgType, hash string) string {
	return fmt.Sprintf("%s:%s", typ, hash)
}

// AnnounceBlock floods block to every peer except from, unless it was
// already seen. Only the block is sent; receivers pull missing facts with
// REQUEST_FACTS.
func (g *Gossiper) AnnounceBlock(block *ledger.Block, from string) error {
	key := dedupKey(MsgBlockAnnounce, block.Hash)
	if _, ok := g.seen.Get(key); ok {
		return nil
	}
	g.seen.Add(key, struct{}{})

	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	g.node.Broadcast(Envelope{Type: MsgBlockAnnounce, From: g.node.fingerprint, Body: data}, from)
	return nil
}

// HandleBlockAnnounce registers the handler that re-gossips BLOCK_ANNOUNCE
// frames to the rest of the mesh after the caller-supplied accept function
// has validated and (if valid) committed the block locally.
func (g *Gossiper) HandleBlockAnnounce(accept func(block *ledger.Block, from string) error) {
	g.node.Handle(MsgBlockAnnounce, func(peer *Peer, env Envelope) {
		var block ledger.Block
		if err := json.Unmarshal(env.Body, &block); err != nil {
			return
		}
		key := dedupKey(MsgBlockAnnounce, block.Hash)
		if _, ok := g.seen.Get(key); ok {
			return
		}
		g.seen.Add(key, struct{}{})

		if err := accept(&block, env.From); err != nil {
			return
		}
		g.node.Broadcast(env, peer.Fingerprint)
	})
}

// Seen reports whether a (type, hash) pair has already been gossiped within
// the current TTL window, without marking it seen.
func (g *Gossiper) Seen(typ MsgType, hash string) bool {
	_, ok := g.seen.Get(dedupKey(typ, hash))
	return ok
}

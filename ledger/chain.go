package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/axiomproject/axiom/events"
)

// ErrNotFound is returned when a requested object does not exist locally.
var ErrNotFound = errors.New("not found")

// BlockStore is the persistence interface used by Chain. Implementations
// live in the storage package.
type BlockStore interface {
	GetBlock(hash string) (*Block, error)
	GetBlockByHeight(height int64) (*Block, error)
	// GetTip returns the current tip hash, or ("", nil) for a fresh chain.
	GetTip() (string, error)
	// CommitBlock atomically writes the block, its height index entry, and
	// advances the tip pointer in a single batch operation. It also writes
	// every fact passed with it in the same batch, so the whole operation is
	// all-or-nothing (spec.md §4.A append_block).
	CommitBlock(block *Block, facts []*Fact) error
}

// Chain manages the canonical sequence of committed blocks: stores blocks
// and tracks the tip height/hash.
type Chain struct {
	mu      sync.RWMutex
	store   BlockStore
	tip     *Block
	height  int64
	emitter *events.Emitter
}

// NewChain returns a Chain backed by store. Call Init() to load an existing
// tip from storage. A nil emitter disables event emission.
func NewChain(store BlockStore, emitter *events.Emitter) *Chain {
	return &Chain{store: store, emitter: emitter}
}

// Init loads the persisted tip from the block store.
func (c *Chain) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tipHash, err := c.store.GetTip()
	if err != nil {
		return fmt.Errorf("get tip: %w", err)
	}
	if tipHash == "" {
		return nil // fresh chain
	}
	tip, err := c.store.GetBlock(tipHash)
	if err != nil {
		return fmt.Errorf("load tip block: %w", err)
	}
	c.tip = tip
	c.height = tip.Header.Height
	return nil
}

// AppendBlock validates height continuity and previous-hash linkage, then
// persists the block (with its facts) and advances the tip.
// Re-appending a block already at the tip is a no-op that returns success
// (spec.md §8 idempotence law).
func (c *Chain) AppendBlock(block *Block, facts []*Fact) error {
	c.mu.Lock()

	if c.tip != nil {
		if block.Hash == c.tip.Hash {
			c.mu.Unlock()
			return nil // idempotent re-application of the current tip
		}
		if block.Header.Height != c.height+1 {
			c.mu.Unlock()
			return fmt.Errorf("block height %d does not follow tip %d", block.Header.Height, c.height)
		}
		if block.Header.PreviousHash != c.tip.Hash {
			c.mu.Unlock()
			return fmt.Errorf("previous_hash mismatch: got %s want %s", block.Header.PreviousHash, c.tip.Hash)
		}
	} else if !block.IsGenesis() && !IsGenesisHash(block.Header.PreviousHash) {
		c.mu.Unlock()
		return errors.New("first block must reference genesis previous-hash")
	}

	if err := c.store.CommitBlock(block, facts); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("commit block: %w", err)
	}
	c.tip = block
	c.height = block.Header.Height
	c.mu.Unlock()

	// Events are emitted after the lock is released so subscribers can read the chain.
	if c.emitter != nil {
		for _, f := range facts {
			c.emitter.Emit(events.Event{Type: events.EventFactSealed, FactHash: f.Hash})
		}
		c.emitter.Emit(events.Event{
			Type:        events.EventBlockCommitted,
			BlockHeight: block.Header.Height,
			Data:        map[string]any{"hash": block.Hash, "facts": len(facts)},
		})
	}
	return nil
}

// GetBlock returns a block by its hash.
func (c *Chain) GetBlock(hash string) (*Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.GetBlock(hash)
}

// GetBlockByHeight returns the block at the given height.
func (c *Chain) GetBlockByHeight(height int64) (*Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.GetBlockByHeight(height)
}

// Tip returns the current chain tip, or nil for a fresh chain.
func (c *Chain) Tip() *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip
}

// Height returns the height of the current tip (0 for a fresh chain, i.e.
// genesis-only).
func (c *Chain) Height() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

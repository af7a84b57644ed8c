package p2p

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/axiomproject/axiom/errs"
	"github.com/axiomproject/axiom/ledger"
)

// maxBlocksPerReply bounds a BLOCKS response (spec.md §4.D: up to 100).
const maxBlocksPerReply = 100

// ChainReader is the read surface Sync needs to answer REQUEST_BLOCKS.
type ChainReader interface {
	GetBlockByHeight(height int64) (*ledger.Block, error)
}

// FactReader is the read surface Sync needs to answer REQUEST_FACTS.
type FactReader interface {
	Get(hash string) (*ledger.Fact, error)
}

// Sync answers REQUEST_BLOCKS/REQUEST_FACTS from peers and issues the same
// requests to catch up a lagging local chain.
type Sync struct {
	node  *Node
	chain ChainReader
	facts FactReader
	onFact func(*ledger.Fact) error

	mu      sync.Mutex
	pending map[string]chan []*ledger.Fact // keyed by request envelope id
}

// NewSync wires REQUEST_BLOCKS/REQUEST_FACTS/FACTS handlers onto node.
// No BLOCKS handler is registered: blocks sent in reply to RequestBlocks
// are not applied to the local chain.
func NewSync(node *Node, chain ChainReader, facts FactReader) *Sync {
	s := &Sync{node: node, chain: chain, facts: facts, pending: make(map[string]chan []*ledger.Fact)}
	node.Handle(MsgRequestBlocks, s.handleRequestBlocks)
	node.Handle(MsgRequestFacts, s.handleRequestFacts)
	node.Handle(MsgFacts, s.handleFacts)
	return s
}

// OnFact registers the callback used to persist facts received via a FACTS
// reply to FetchFacts.
func (s *Sync) OnFact(fn func(*ledger.Fact) error) { s.onFact = fn }

// RequestBlocks asks peer for every block after sinceHeight.
func (s *Sync) RequestBlocks(peer *Peer, sinceHeight int64) error {
	body, err := json.Marshal(RequestBlocksBody{SinceHeight: sinceHeight})
	if err != nil {
		return err
	}
	return peer.Send(Envelope{Type: MsgRequestBlocks, From: s.node.fingerprint, Body: body})
}

func (s *Sync) handleRequestBlocks(peer *Peer, env Envelope) {
	var req RequestBlocksBody
	if err := json.Unmarshal(env.Body, &req); err != nil {
		return
	}
	blocks := make([]*ledger.Block, 0, maxBlocksPerReply)
	for h := req.SinceHeight + 1; len(blocks) < maxBlocksPerReply; h++ {
		b, err := s.chain.GetBlockByHeight(h)
		if err != nil {
			break
		}
		blocks = append(blocks, b)
	}
	data, err := json.Marshal(BlocksBody{Blocks: blocks})
	if err != nil {
		return
	}
	_ = peer.Send(Envelope{Type: MsgBlocks, From: s.node.fingerprint, ID: env.ID, Body: data})
}

// FetchFacts implements ledger.FactFetcher: it requests the given hashes
// from "from" and blocks until a FACTS reply arrives or ctx is done.
func (s *Sync) FetchFacts(ctx context.Context, from string, hashes []string) error {
	peer := s.node.Peer(from)
	if peer == nil {
		return fmt.Errorf("no connected peer %s to pull facts from", from)
	}
	reqID := uuid.NewString()
	ch := make(chan []*ledger.Fact, 1)
	s.mu.Lock()
	s.pending[reqID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, reqID)
		s.mu.Unlock()
	}()

	body, err := json.Marshal(RequestFactsBody{Hashes: hashes})
	if err != nil {
		return err
	}
	if err := peer.Send(Envelope{Type: MsgRequestFacts, From: s.node.fingerprint, ID: reqID, Body: body}); err != nil {
		return err
	}

	select {
	case facts := <-ch:
		for _, f := range facts {
			if err := s.acceptFact(f); err != nil {
				return err
			}
		}
		return nil
	case <-ctx.Done():
		return errs.Timeout(fmt.Sprintf("fact pull from %s", from), ctx.Err())
	}
}

// acceptFact persists an incoming fact via the callback registered with
// OnFact, if any.
func (s *Sync) acceptFact(f *ledger.Fact) error {
	if s.onFact != nil {
		return s.onFact(f)
	}
	return nil
}

func (s *Sync) handleRequestFacts(peer *Peer, env Envelope) {
	var req RequestFactsBody
	if err := json.Unmarshal(env.Body, &req); err != nil {
		return
	}
	facts := make([]*ledger.Fact, 0, len(req.Hashes))
	for _, h := range req.Hashes {
		f, err := s.facts.Get(h)
		if err != nil {
			continue
		}
		facts = append(facts, f)
	}
	data, err := json.Marshal(FactsBody{Facts: facts})
	if err != nil {
		return
	}
	_ = peer.Send(Envelope{Type: MsgFacts, From: s.node.fingerprint, ID: env.ID, Body: data})
}

func (s *Sync) handleFacts(_ *Peer, env Envelope) {
	var body FactsBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return
	}
	s.mu.Lock()
	ch, ok := s.pending[env.ID]
	s.mu.Unlock()
	if ok {
		ch <- body.Facts
	}
}

package ledger

import (
	"fmt"
	"time"

	"github.com/axiomproject/axiom/identity"
)

// CandidateSource supplies the trusted, unsealed facts eligible for sealing.
type CandidateSource interface {
	ListUnsealedTrusted(limit int) ([]*Fact, error)
}

// Propose builds and signs the next block for the local validator: it pulls
// up to MaxFactsPerBlock trusted, unsealed facts ordered ascending by id,
// chains it to the current tip, and signs it with priv.
//
// A nil tip proposes height 1 off the well-known genesis previous-hash.
func Propose(chain *Chain, candidates CandidateSource, proposer string, priv identity.PrivateKey) (*Block, []*Fact, error) {
	facts, err := candidates.ListUnsealedTrusted(MaxFactsPerBlock)
	if err != nil {
		return nil, nil, fmt.Errorf("list candidate facts: %w", err)
	}

	tip := chain.Tip()
	var prevHash string
	var height int64
	if tip == nil {
		prevHash = GenesisHash
		height = 1
	} else {
		prevHash = tip.Hash
		height = tip.Header.Height + 1
	}

	hashes := make([]string, len(facts))
	for i, f := range facts {
		hashes[i] = f.Hash
	}

	block := NewBlock(height, prevHash, proposer, hashes, time.Now().Unix())
	if err := block.Sign(priv); err != nil {
		return nil, nil, fmt.Errorf("sign proposal: %w", err)
	}

	sealed := make([]*Fact, len(facts))
	for i, f := range facts {
		cp := *f
		cp.SealedIn = block.Hash
		sealed[i] = &cp
	}

	return block, sealed, nil
}

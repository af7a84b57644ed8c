package consensus

import (
	"fmt"

	"github.com/axiomproject/axiom/ledger"
)

// PeerHeighter reports the best-known peer chain height.
type PeerHeighter interface {
	MaxPeerHeight() (fingerprint string, height int64, ok bool)
}

// BlockRequester issues a REQUEST_BLOCKS to a specific peer.
type BlockRequester interface {
	RequestBlocks(fingerprint string, sinceHeight int64) error
}

// CatchUp reports whether the local chain is far enough behind the best
// known peer to warrant suspending proposal and requesting blocks
// (spec.md §4.E: chain_height < max_peer_height - 1).
func CatchUp(localHeight int64, peers PeerHeighter, requester BlockRequester) (bool, error) {
	fingerprint, maxHeight, ok := peers.MaxPeerHeight()
	if !ok || localHeight >= maxHeight-1 {
		return false, nil
	}
	if err := requester.RequestBlocks(fingerprint, localHeight); err != nil {
		return true, fmt.Errorf("request blocks from %s: %w", fingerprint, err)
	}
	return true, nil
}

// ApplyBlocks appends blocks in order through Chain.AppendBlock, stopping at
// the first one that fails (later blocks depend on it and would fail
// chain-linkage regardless). Only AppendBlock's height and previous-hash
// checks apply; signatures and proposer authority are not checked here.
func ApplyBlocks(chain *ledger.Chain, blocks []*ledger.Block, facts ledger.FactRepo, commitFacts func(block *ledger.Block) ([]*ledger.Fact, error)) (int, error) {
	applied := 0
	for _, b := range blocks {
		sealed, err := commitFacts(b)
		if err != nil {
			return applied, fmt.Errorf("resolve facts for block %d: %w", b.Header.Height, err)
		}
		if err := chain.AppendBlock(b, sealed); err != nil {
			return applied, fmt.Errorf("append block %d: %w", b.Header.Height, err)
		}
		applied++
	}
	return applied, nil
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/axiomproject/axiom/errs"
	"github.com/axiomproject/axiom/identity"
)

// FactPullTimeout bounds how long Validate waits for missing facts to
// arrive from the network before rejecting a block (spec.md §4.C step 4).
const FactPullTimeout = 30 * time.Second

// ErrNeedsSync is returned when block.Header.Height is more than one past
// the local tip: the caller must enter catch-up mode rather than reject.
var ErrNeedsSync = errors.New("block height ahead of tip, chain sync required")

// ErrAlreadyCommitted is returned for a block at or below the local tip
// that is not an exact match for an already-committed block.
var ErrAlreadyCommitted = errors.New("block height at or below tip and not already committed")

// ErrStaleDuplicate marks a block safe to silently discard: it is
// identical to one already committed (idempotent re-delivery).
var ErrStaleDuplicate = errors.New("block already committed")

// ExpectedProposer resolves the fingerprint of the validator allowed to
// propose at the given height, per the leader-selection rule (§4.E).
// Implemented by consensus.Engine to avoid a ledger->consensus import cycle.
type ExpectedProposer interface {
	LeaderAt(height int64) (string, error)
}

// KeyResolver maps a validator fingerprint to its public key, needed to
// verify a block's signature.
type KeyResolver interface {
	Resolve(fingerprint string) (identity.PublicKey, error)
}

// FactFetcher pulls missing facts from the block's sender, blocking until
// they arrive or ctx is done. Implemented by the p2p package.
type FactFetcher interface {
	FetchFacts(ctx context.Context, from string, hashes []string) error
}

// Validate runs the five-step acceptance pipeline from spec.md §4.C against
// the current chain tip. On success the block is ready for Chain.AppendBlock.
func Validate(
	ctx context.Context,
	block *Block,
	chain *Chain,
	leaders ExpectedProposer,
	keys KeyResolver,
	facts FactRepo,
	fetcher FactFetcher,
) error {
	// Step 1: structural.
	if block.Header.Proposer == "" || block.Hash == "" || block.Signature == "" {
		return errs.Protocol("malformed block: missing required field", nil)
	}
	if len(block.Header.FactHashes) > MaxFactsPerBlock {
		return errs.Protocol(fmt.Sprintf("block carries %d fact hashes, exceeds max %d", len(block.Header.FactHashes), MaxFactsPerBlock), nil)
	}
	pub, err := keys.Resolve(block.Header.Proposer)
	if err != nil {
		return errs.Crypto("resolve proposer key", err)
	}
	if err := block.Verify(pub); err != nil {
		return errs.Crypto("block hash/signature check", err)
	}

	// Step 2: chain linkage.
	tip := chain.Tip()
	tipHeight := chain.Height()
	switch {
	case tip == nil:
		if !block.IsGenesis() && !IsGenesisHash(block.Header.PreviousHash) {
			return errs.Consensus("first block must reference genesis previous-hash", nil)
		}
	case block.Header.Height > tipHeight+1:
		return ErrNeedsSync
	case block.Header.Height <= tipHeight:
		existing, err := chain.GetBlockByHeight(block.Header.Height)
		if err != nil || existing == nil || existing.Hash != block.Hash {
			return ErrAlreadyCommitted
		}
		return ErrStaleDuplicate
	case block.Header.PreviousHash != tip.Hash:
		return errs.Consensus(fmt.Sprintf("previous_hash mismatch: got %s want %s", block.Header.PreviousHash, tip.Hash), nil)
	}

	// Step 3: authority.
	if !block.IsGenesis() {
		expected, err := leaders.LeaderAt(block.Header.Height)
		if err != nil {
			return errs.Consensus("compute expected leader", err)
		}
		if expected != block.Header.Proposer {
			return errs.Consensus(fmt.Sprintf("wrong proposer: got %s want %s", block.Header.Proposer, expected), nil)
		}
	}

	// Step 4: content. Every fact_hash must resolve locally; pull what's missing.
	var missing []string
	for _, h := range block.Header.FactHashes {
		if _, err := facts.Get(h); err != nil {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		if fetcher == nil {
			return fmt.Errorf("%d fact(s) missing locally and no fetcher available", len(missing))
		}
		pullCtx, cancel := context.WithTimeout(ctx, FactPullTimeout)
		defer cancel()
		if err := fetcher.FetchFacts(pullCtx, block.Header.Proposer, missing); err != nil {
			return fmt.Errorf("fact pull: %w", err)
		}
		for _, h := range missing {
			if _, err := facts.Get(h); err != nil {
				return errs.Protocol(fmt.Sprintf("fact %s still missing after pull", h), nil)
			}
		}
	}

	// Step 5: invariants.
	if err := VerifyFactHashesUnique(block); err != nil {
		return errs.Consensus("duplicate fact hash in block", err)
	}
	for _, h := range block.Header.FactHashes {
		f, err := facts.Get(h)
		if err != nil {
			return fmt.Errorf("fact %s: %w", h, err)
		}
		if f.Sealed() {
			return errs.Consensus(fmt.Sprintf("fact %s already sealed in block %s", h, f.SealedIn), nil)
		}
	}

	return nil
}

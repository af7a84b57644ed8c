package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/axiomproject/axiom/identity"
)

// GenesisHash is the canonical all-zeros previous hash for the genesis block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// GenesisTimestamp is the fixed UNIX timestamp stamped on every node's
// genesis block. It must be identical network-wide: Block.Hash covers
// timestamp, so a node that minted its own genesis with time.Now() would
// never chain-link with peers that minted theirs a second earlier.
const GenesisTimestamp int64 = 1700000000

// MaxFactsPerBlock bounds how many facts a single block may seal.
const MaxFactsPerBlock = 512

// BlockHeader contains the block metadata that is hashed and signed.
type BlockHeader struct {
	Height       int64    `json:"height"`
	PreviousHash string   `json:"previous_hash"`
	FactHashes   []string `json:"fact_hashes"` // ascending lexicographic
	Proposer     string   `json:"proposer"`    // fingerprint of proposer's public key
	Timestamp    int64    `json:"timestamp"`   // UNIX seconds at proposal
	Nonce        uint64   `json:"nonce"`
}

// Block is a sealed batch of fact hashes chained to the prior block.
type Block struct {
	Header    BlockHeader `json:"header"`
	Hash      string      `json:"hash"`
	Signature string      `json:"signature"`
}

// headerSigningBody mirrors BlockHeader exactly; kept as a distinct type so
// a future header field addition must be a deliberate decision about
// whether it is covered by the hash, not an accident of struct reuse.
type headerSigningBody BlockHeader

// ComputeHash returns the canonical SHA-256 hash of the header:
// {height, previous_hash, fact_hashes_sorted_ascending, proposer, timestamp, nonce}.
func (b *Block) ComputeHash() string {
	sorted := make([]string, len(b.Header.FactHashes))
	copy(sorted, b.Header.FactHashes)
	sort.Strings(sorted)
	body := headerSigningBody(b.Header)
	body.FactHashes = sorted
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return identity.Hash(data)
}

// Sign sets Hash and signs the block with the proposer's private key.
func (b *Block) Sign(priv identity.PrivateKey) error {
	b.Hash = b.ComputeHash()
	sig, err := identity.Sign(priv, []byte(b.Hash))
	if err != nil {
		return fmt.Errorf("sign block: %w", err)
	}
	b.Signature = sig
	return nil
}

// Verify checks that b.Hash matches the recomputed header hash and that the
// signature is valid, preventing acceptance of a block whose header was
// tampered with after signing.
func (b *Block) Verify(pub identity.PublicKey) error {
	if computed := b.ComputeHash(); b.Hash != computed {
		return fmt.Errorf("block hash mismatch: stored %s computed %s", b.Hash, computed)
	}
	return identity.Verify(pub, []byte(b.Hash), b.Signature)
}

// IsGenesisHash reports whether h is the canonical genesis previous-hash.
func IsGenesisHash(h string) bool {
	if len(h) != 64 {
		return false
	}
	for _, c := range h {
		if c != '0' {
			return false
		}
	}
	return true
}

// NewBlock creates an unsigned block holding an ascending-sorted copy of
// factHashes; the caller's slice is left unchanged.
func NewBlock(height int64, previousHash string, proposer string, factHashes []string, timestamp int64) *Block {
	sorted := make([]string, len(factHashes))
	copy(sorted, factHashes)
	sort.Strings(sorted)
	return &Block{
		Header: BlockHeader{
			Height:       height,
			PreviousHash: previousHash,
			FactHashes:   sorted,
			Proposer:     proposer,
			Timestamp:    timestamp,
		},
	}
}

// GenesisBlock returns the well-known, unsigned genesis block (height 0,
// zero fact hashes, proposer "genesis", zero signature). It is only valid
// when absent locally (spec.md §8 Boundary behaviors).
func GenesisBlock(timestamp int64) *Block {
	b := NewBlock(0, GenesisHash, "genesis", nil, timestamp)
	b.Hash = b.ComputeHash()
	b.Signature = "00"
	return b
}

// IsGenesis reports whether b is the well-known genesis block.
func (b *Block) IsGenesis() bool {
	return b.Header.Height == 0 && b.Header.Proposer == "genesis" && IsGenesisHash(b.Header.PreviousHash)
}

// ErrDuplicateFactHash indicates the same fact hash appears twice in one block.
var ErrDuplicateFactHash = errors.New("duplicate fact hash in block")

// VerifyFactHashesUnique checks invariant 5 of spec.md §4.C: no fact hash
// appears twice within a single block.
func VerifyFactHashesUnique(b *Block) error {
	seen := make(map[string]struct{}, len(b.Header.FactHashes))
	for _, h := range b.Header.FactHashes {
		if _, ok := seen[h]; ok {
			return ErrDuplicateFactHash
		}
		seen[h] = struct{}{}
	}
	return nil
}

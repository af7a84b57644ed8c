package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/internal/testutil"
	"github.com/axiomproject/axiom/ledger"
	"github.com/axiomproject/axiom/storage"
)

func newChain(t *testing.T) (*ledger.Chain, *storage.FactStore) {
	t.Helper()
	db := testutil.NewMemDB()
	facts := storage.NewFactStore(db)
	blocks := storage.NewBlockStore(db, facts)
	chain := ledger.NewChain(blocks, nil)
	require.NoError(t, chain.Init())
	return chain, facts
}

func TestChainAppendBlockRequiresLinkage(t *testing.T) {
	chain, _ := newChain(t)

	b1 := ledger.NewBlock(1, ledger.GenesisHash, "node-a", nil, 100)
	b1.Hash = b1.ComputeHash()
	b1.Signature = "00"
	require.NoError(t, chain.AppendBlock(b1, nil))
	require.Equal(t, int64(1), chain.Height())

	bad := ledger.NewBlock(3, b1.Hash, "node-a", nil, 200)
	bad.Hash = bad.ComputeHash()
	require.Error(t, chain.AppendBlock(bad, nil), "height must follow tip by exactly one")

	wrongPrev := ledger.NewBlock(2, "not-the-tip", "node-a", nil, 200)
	wrongPrev.Hash = wrongPrev.ComputeHash()
	require.Error(t, chain.AppendBlock(wrongPrev, nil))
}

func TestChainAppendBlockIdempotentAtTip(t *testing.T) {
	chain, _ := newChain(t)

	b1 := ledger.NewBlock(1, ledger.GenesisHash, "node-a", nil, 100)
	b1.Hash = b1.ComputeHash()
	b1.Signature = "00"
	require.NoError(t, chain.AppendBlock(b1, nil))
	require.NoError(t, chain.AppendBlock(b1, nil), "re-appending the current tip is a no-op")
	require.Equal(t, int64(1), chain.Height())
}

func TestChainPersistsFactsWithBlock(t *testing.T) {
	chain, facts := newChain(t)

	f, err := ledger.NewFact(1, "water is wet", nil, nil)
	require.NoError(t, err)
	f.Score = 2

	b1 := ledger.NewBlock(1, ledger.GenesisHash, "node-a", []string{f.Hash}, 100)
	b1.Hash = b1.ComputeHash()
	b1.Signature = "00"
	require.NoError(t, chain.AppendBlock(b1, []*ledger.Fact{f}))

	stored, err := facts.Get(f.Hash)
	require.NoError(t, err)
	require.Equal(t, f.Content, stored.Content)

	fromChain, err := chain.GetBlockByHeight(1)
	require.NoError(t, err)
	require.Equal(t, b1.Hash, fromChain.Hash)
}

func TestChainAcceptsGenesisOnlyOnceWhenAbsent(t *testing.T) {
	chain, _ := newChain(t)
	require.Nil(t, chain.Tip(), "a fresh chain has no tip yet")

	genesis := ledger.GenesisBlock(ledger.GenesisTimestamp)
	require.NoError(t, chain.AppendBlock(genesis, nil))
	require.Equal(t, int64(0), chain.Height())

	fromChain, err := chain.GetBlockByHeight(0)
	require.NoError(t, err)
	require.Equal(t, genesis.Hash, fromChain.Hash)

	// A node that already has genesis committed must treat a second
	// identical commit as a no-op, not an error (spec.md §8: accepted only
	// if absent locally).
	require.NoError(t, chain.AppendBlock(ledger.GenesisBlock(ledger.GenesisTimestamp), nil))
	require.Equal(t, int64(0), chain.Height())

	b1 := ledger.NewBlock(1, genesis.Hash, "node-a", nil, 100)
	b1.Hash = b1.ComputeHash()
	b1.Signature = "00"
	require.NoError(t, chain.AppendBlock(b1, nil))
	require.Equal(t, int64(1), chain.Height())
}

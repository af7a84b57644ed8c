package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/internal/testutil"
	"github.com/axiomproject/axiom/ledger"
	"github.com/axiomproject/axiom/storage"
)

func TestBlockStoreCommitAndTip(t *testing.T) {
	db := testutil.NewMemDB()
	facts := storage.NewFactStore(db)
	blocks := storage.NewBlockStore(db, facts)

	tip, err := blocks.GetTip()
	require.NoError(t, err)
	require.Empty(t, tip, "fresh store has no tip")

	b := ledger.NewBlock(1, ledger.GenesisHash, "node-a", nil, 1000)
	b.Hash = b.ComputeHash()
	b.Signature = "00"
	require.NoError(t, blocks.CommitBlock(b, nil))

	tip, err = blocks.GetTip()
	require.NoError(t, err)
	require.Equal(t, b.Hash, tip)

	byHeight, err := blocks.GetBlockByHeight(1)
	require.NoError(t, err)
	require.Equal(t, b.Hash, byHeight.Hash)
}

func TestBlockStoreCommitIsAtomicWithFacts(t *testing.T) {
	db := testutil.NewMemDB()
	facts := storage.NewFactStore(db)
	blocks := storage.NewBlockStore(db, facts)

	f, err := ledger.NewFact(1, "committed alongside its block", nil, nil)
	require.NoError(t, err)

	b := ledger.NewBlock(1, ledger.GenesisHash, "node-a", []string{f.Hash}, 1000)
	b.Hash = b.ComputeHash()
	b.Signature = "00"
	require.NoError(t, blocks.CommitBlock(b, []*ledger.Fact{f}))

	stored, err := facts.Get(f.Hash)
	require.NoError(t, err)
	require.Equal(t, f.Content, stored.Content)
}

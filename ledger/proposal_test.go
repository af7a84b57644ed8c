package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/identity"
)

type fixedCandidates []*Fact

func (c fixedCandidates) ListUnsealedTrusted(limit int) ([]*Fact, error) {
	if limit > 0 && len(c) > limit {
		return c[:limit], nil
	}
	return c, nil
}

func TestProposeBuildsFirstBlockOffGenesis(t *testing.T) {
	priv, pub, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	chain := buildChain(t)
	f, err := NewFact(1, "proposed fact", nil, nil)
	require.NoError(t, err)
	f.Score = 2

	block, sealed, err := Propose(chain, fixedCandidates{f}, pub.Fingerprint(), priv)
	require.NoError(t, err)
	require.Equal(t, int64(1), block.Header.Height)
	require.Equal(t, GenesisHash, block.Header.PreviousHash)
	require.Equal(t, []string{f.Hash}, block.Header.FactHashes)
	require.NoError(t, block.Verify(pub))

	require.Len(t, sealed, 1)
	require.Equal(t, block.Hash, sealed[0].SealedIn)
	require.Empty(t, f.SealedIn, "Propose must not mutate the caller's fact in place")
}

func TestProposeChainsOffCurrentTip(t *testing.T) {
	priv, pub, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	chain := buildChain(t)
	b1 := NewBlock(1, GenesisHash, pub.Fingerprint(), nil, 100)
	require.NoError(t, b1.Sign(priv))
	require.NoError(t, chain.AppendBlock(b1, nil))

	block, _, err := Propose(chain, fixedCandidates{}, pub.Fingerprint(), priv)
	require.NoError(t, err)
	require.Equal(t, int64(2), block.Header.Height)
	require.Equal(t, b1.Hash, block.Header.PreviousHash)
}

package p2p_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/internal/testutil"
	"github.com/axiomproject/axiom/p2p"
	"github.com/axiomproject/axiom/storage"
)

func TestReputationAdjustAccumulates(t *testing.T) {
	peers := storage.NewPeerStore(testutil.NewMemDB())
	rep := p2p.NewReputationManager(peers, nil)

	require.NoError(t, rep.BlockValidated("fp-a"))
	require.NoError(t, rep.BlockValidated("fp-a"))

	rec, err := peers.Get("fp-a")
	require.NoError(t, err)
	require.Equal(t, 2, rec.ReputationScore)
}

func TestReputationBlacklistsOnNegativeScore(t *testing.T) {
	peers := storage.NewPeerStore(testutil.NewMemDB())
	rep := p2p.NewReputationManager(peers, nil)

	require.NoError(t, rep.AuthorityFailure("fp-b"))

	require.True(t, rep.Blacklisted("fp-b"))
	rec, err := peers.Get("fp-b")
	require.NoError(t, err)
	require.Equal(t, 0, rec.ReputationScore)
}

func TestReputationScoreClampedAtUpperBound(t *testing.T) {
	peers := storage.NewPeerStore(testutil.NewMemDB())
	rep := p2p.NewReputationManager(peers, nil)

	for i := 0; i < 2000; i++ {
		require.NoError(t, rep.BlockValidated("fp-c"))
	}

	rec, err := peers.Get("fp-c")
	require.NoError(t, err)
	require.Equal(t, 1000, rec.ReputationScore)
}

func TestReputationNotBlacklistedByDefault(t *testing.T) {
	peers := storage.NewPeerStore(testutil.NewMemDB())
	rep := p2p.NewReputationManager(peers, nil)

	require.False(t, rep.Blacklisted("fp-unknown"))
}

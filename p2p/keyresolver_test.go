package p2p_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/identity"
	"github.com/axiomproject/axiom/internal/testutil"
	"github.com/axiomproject/axiom/p2p"
	"github.com/axiomproject/axiom/storage"
)

func TestPeerKeyResolverResolvesRegisteredPeer(t *testing.T) {
	peers := storage.NewPeerStore(testutil.NewMemDB())
	_, pub, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	derHex, err := pub.DERHex()
	require.NoError(t, err)
	require.NoError(t, peers.Put(pub.Fingerprint(), &storage.PeerRecord{PublicKey: derHex}))

	resolver := p2p.NewPeerKeyResolver(peers)
	resolved, err := resolver.Resolve(pub.Fingerprint())
	require.NoError(t, err)
	require.Equal(t, pub.Fingerprint(), resolved.Fingerprint())
}

func TestPeerKeyResolverErrorsForUnknownFingerprint(t *testing.T) {
	peers := storage.NewPeerStore(testutil.NewMemDB())
	resolver := p2p.NewPeerKeyResolver(peers)

	_, err := resolver.Resolve("nobody")
	require.Error(t, err)
}

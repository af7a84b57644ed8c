package p2p

import (
	"fmt"

	"github.com/axiomproject/axiom/identity"
	"github.com/axiomproject/axiom/storage"
)

// PeerKeyResolver implements ledger.KeyResolver over the known-peer table:
// a block's proposer fingerprint is resolved to the public key stored for
// it in the peer store. Entries come from PEER_LIST replies and from the
// local node, which registers its own fingerprint/key at startup so it can
// verify and re-append its own proposals; the HELLO handshake does not
// write to the store.
type PeerKeyResolver struct {
	peers *storage.PeerStore
}

// NewPeerKeyResolver returns a resolver backed by peers.
func NewPeerKeyResolver(peers *storage.PeerStore) *PeerKeyResolver {
	return &PeerKeyResolver{peers: peers}
}

func (r *PeerKeyResolver) Resolve(fingerprint string) (identity.PublicKey, error) {
	rec, err := r.peers.Get(fingerprint)
	if err != nil {
		return identity.PublicKey{}, fmt.Errorf("unknown validator %s: %w", fingerprint, err)
	}
	pub, err := identity.PubKeyFromDERHex(rec.PublicKey)
	if err != nil {
		return identity.PublicKey{}, fmt.Errorf("decode key for %s: %w", fingerprint, err)
	}
	return pub, nil
}

package p2p

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/axiomproject/axiom/events"
	"github.com/axiomproject/axiom/storage"
)

// Reputation deltas and the blacklist window, per spec.md §4.D.
const (
	RepBlockValidated   = 1
	RepFactPullSuccess  = 1
	RepMalformed        = -5
	RepAuthorityFailure = -20
	RepTimeout          = -1

	BlacklistTTL = time.Hour
)

// ReputationManager tracks per-peer reputation and records blacklist
// entries. It does not close connections; Blacklisted only reports them.
type ReputationManager struct {
	peers     *storage.PeerStore
	blacklist *lru.LRU[string, struct{}]
	emitter   *events.Emitter
}

// NewReputationManager returns a manager backed by peers.
func NewReputationManager(peers *storage.PeerStore, emitter *events.Emitter) *ReputationManager {
	return &ReputationManager{
		peers:     peers,
		blacklist: lru.NewLRU[string, struct{}](4096, nil, BlacklistTTL),
		emitter:   emitter,
	}
}

// Blacklisted reports whether fingerprint is currently serving out its
// blacklist TTL.
func (r *ReputationManager) Blacklisted(fingerprint string) bool {
	_, ok := r.blacklist.Get(fingerprint)
	return ok
}

// Adjust applies delta to fingerprint's reputation, clamped to [0, 1000],
// blacklisting the peer the moment it drops below zero.
func (r *ReputationManager) Adjust(fingerprint string, delta int) error {
	rec, err := r.peers.Get(fingerprint)
	if err != nil {
		if err != storage.ErrNotFound {
			return err
		}
		rec = &storage.PeerRecord{ReputationScore: 0}
	}
	rec.ReputationScore += delta
	if rec.ReputationScore < 0 {
		r.blacklist.Add(fingerprint, struct{}{})
		if r.emitter != nil {
			r.emitter.Emit(events.Event{Type: events.EventPeerBlacklisted, Data: map[string]any{"fingerprint": fingerprint}})
		}
		rec.ReputationScore = 0
	}
	if rec.ReputationScore > 1000 {
		rec.ReputationScore = 1000
	}
	rec.LastSeen = time.Now().Unix()
	return r.peers.Put(fingerprint, rec)
}

func (r *ReputationManager) BlockValidated(fingerprint string) error   { return r.Adjust(fingerprint, RepBlockValidated) }
func (r *ReputationManager) FactPullSuccess(fingerprint string) error  { return r.Adjust(fingerprint, RepFactPullSuccess) }
func (r *ReputationManager) Malformed(fingerprint string) error        { return r.Adjust(fingerprint, RepMalformed) }
func (r *ReputationManager) AuthorityFailure(fingerprint string) error { return r.Adjust(fingerprint, RepAuthorityFailure) }
func (r *ReputationManager) Timeout(fingerprint string) error          { return r.Adjust(fingerprint, RepTimeout) }

package storage

import (
	"encoding/json"
	"fmt"
)

var prefixPeer = "peer:"

// PeerRecord describes a known remote node.
type PeerRecord struct {
	NetworkAddress  string `json:"network_address"`
	PublicKey       string `json:"public_key"` // DER hex
	FirstSeen       int64  `json:"first_seen"`
	LastSeen        int64  `json:"last_seen"`
	ReputationScore int    `json:"reputation_score"` // [0, 1000]
}

// PeerStore persists known peers keyed by public-key fingerprint.
type PeerStore struct {
	db DB
}

// NewPeerStore returns a PeerStore backed by db.
func NewPeerStore(db DB) *PeerStore {
	return &PeerStore{db: db}
}

func (s *PeerStore) Get(fingerprint string) (*PeerRecord, error) {
	data, err := s.db.Get([]byte(prefixPeer + fingerprint))
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var p PeerRecord
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode peer %s: %w", fingerprint, err)
	}
	return &p, nil
}

func (s *PeerStore) Put(fingerprint string, p *PeerRecord) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode peer %s: %w", fingerprint, err)
	}
	return s.db.Set([]byte(prefixPeer+fingerprint), data)
}

// List returns every known peer record, unordered.
func (s *PeerStore) List() ([]*PeerRecord, error) {
	it := s.db.NewIterator([]byte(prefixPeer))
	defer it.Release()

	var out []*PeerRecord
	for it.Next() {
		var p PeerRecord
		if err := json.Unmarshal(it.Value(), &p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, it.Error()
}

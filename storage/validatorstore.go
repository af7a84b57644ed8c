package storage

import (
	"encoding/json"
	"fmt"
	"sort"
)

var prefixValidator = "val:"

// ValidatorRecord tracks a staked identity's voting weight. Stake of 0 means
// the fingerprint is not an active validator.
type ValidatorRecord struct {
	PublicKeyFingerprint string `json:"public_key_fingerprint"`
	Stake                int64  `json:"stake"`
}

// ValidatorStore persists the validator stake table.
type ValidatorStore struct {
	db DB
}

// NewValidatorStore returns a ValidatorStore backed by db.
func NewValidatorStore(db DB) *ValidatorStore {
	return &ValidatorStore{db: db}
}

func (s *ValidatorStore) Get(fingerprint string) (*ValidatorRecord, error) {
	data, err := s.db.Get([]byte(prefixValidator + fingerprint))
	if err != nil {
		if err == ErrNotFound {
			return &ValidatorRecord{PublicKeyFingerprint: fingerprint, Stake: 0}, nil
		}
		return nil, err
	}
	var v ValidatorRecord
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode validator %s: %w", fingerprint, err)
	}
	return &v, nil
}

func (s *ValidatorStore) Put(v *ValidatorRecord) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode validator %s: %w", v.PublicKeyFingerprint, err)
	}
	return s.db.Set([]byte(prefixValidator+v.PublicKeyFingerprint), data)
}

// ListActive returns every validator with stake > 0, sorted ascending by
// fingerprint (the canonical order consensus.SelectLeader requires).
func (s *ValidatorStore) ListActive() ([]*ValidatorRecord, error) {
	it := s.db.NewIterator([]byte(prefixValidator))
	defer it.Release()

	var out []*ValidatorRecord
	for it.Next() {
		var v ValidatorRecord
		if err := json.Unmarshal(it.Value(), &v); err != nil {
			return nil, err
		}
		if v.Stake > 0 {
			out = append(out, &v)
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PublicKeyFingerprint < out[j].PublicKeyFingerprint
	})
	return out, nil
}

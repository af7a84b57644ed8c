package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/axiomproject/axiom/errs"
	"github.com/axiomproject/axiom/identity"
	"github.com/axiomproject/axiom/ledger"
)

var (
	prefixFactByHash   = "fact:h:"
	prefixFactByID     = "fact:i:"
	prefixFactUnsealed = "fact:u:" // secondary index: unsealed facts, keyed by id
	prefixFactContent  = "fact:c:" // secondary index: content hash -> fact hash, for corroboration lookup
	keyFactSeq         = []byte("fact:seq")
)

// contentKey normalizes content the same way ledger.NewFact does before
// computing its lookup hash, so two candidate facts that differ only in
// leading/trailing whitespace resolve to the same entry. Case is not folded.
func contentKey(content string) string {
	return identity.Hash([]byte(strings.TrimSpace(content)))
}

func idKey(prefix string, id int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return append([]byte(prefix), buf[:]...)
}

// FactStore persists facts and maintains the secondary indexes needed to
// answer get_fact_ids / list_unsealed_trusted_facts without a full scan.
type FactStore struct {
	db    DB
	seqMu sync.Mutex
}

// NewFactStore returns a FactStore backed by db.
func NewFactStore(db DB) *FactStore {
	return &FactStore{db: db}
}

func (s *FactStore) Get(hash string) (*ledger.Fact, error) {
	data, err := s.db.Get([]byte(prefixFactByHash + hash))
	if err != nil {
		if err == ErrNotFound {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	var f ledger.Fact
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fact %s: %w", hash, err)
	}
	return &f, nil
}

func (s *FactStore) GetByID(id int64) (*ledger.Fact, error) {
	hash, err := s.db.Get(idKey(prefixFactByID, id))
	if err != nil {
		if err == ErrNotFound {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return s.Get(string(hash))
}

// Put persists a single fact outside of a block commit (used for ingest,
// corroborate, dispute, and link operations, which mutate ledger state
// before the fact is ever sealed into a block).
func (s *FactStore) Put(f *ledger.Fact) error {
	batch := s.db.NewBatch()
	if err := s.stageInBatch(batch, []*ledger.Fact{f}); err != nil {
		return err
	}
	// Unlike a block commit, a single fact write has no dependent index
	// left dangling on failure, so it's non-fatal: the caller may retry.
	if err := batch.Write(); err != nil {
		return errs.Storage(fmt.Sprintf("put fact %s", f.Hash), err, false)
	}
	return nil
}

// stageInBatch writes facts and refreshes their unsealed-index membership
// into batch without executing it, so BlockStore.CommitBlock can fold fact
// writes into the same atomic write as the block itself.
func (s *FactStore) stageInBatch(batch Batch, facts []*ledger.Fact) error {
	for _, f := range facts {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("encode fact %s: %w", f.Hash, err)
		}
		batch.Set([]byte(prefixFactByHash+f.Hash), data)
		batch.Set(idKey(prefixFactByID, f.ID), []byte(f.Hash))
		batch.Set([]byte(prefixFactContent+contentKey(f.Content)), []byte(f.Hash))

		key := idKey(prefixFactUnsealed, f.ID)
		if f.Sealed() {
			batch.Delete(key)
		} else {
			batch.Set(key, []byte(f.Hash))
		}
	}
	return nil
}

// FindByContentHash returns the hash of the fact whose content normalizes to
// contentKey(content), or ledger.ErrNotFound if no such fact has been
// ingested yet. The ingestion task uses this to decide whether a freshly
// extracted candidate repeats an existing fact (corroborate) or is new
// (ingest).
func (s *FactStore) FindByContentHash(content string) (string, error) {
	hash, err := s.db.Get([]byte(prefixFactContent + contentKey(content)))
	if err != nil {
		if err == ErrNotFound {
			return "", ledger.ErrNotFound
		}
		return "", err
	}
	return string(hash), nil
}

// NextID returns a fresh, monotonically increasing fact ID.
func (s *FactStore) NextID() (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	data, err := s.db.Get(keyFactSeq)
	var next uint64
	if err != nil {
		if err != ErrNotFound {
			return 0, err
		}
		next = 1
	} else {
		next = binary.BigEndian.Uint64(data) + 1
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := s.db.Set(keyFactSeq, buf[:]); err != nil {
		return 0, err
	}
	return int64(next), nil
}

// ListUnsealedTrusted returns every unsealed fact that is currently
// corroborated and not disputed, ordered ascending by id (spec.md §4.C block
// proposal candidate selection).
func (s *FactStore) ListUnsealedTrusted(limit int) ([]*ledger.Fact, error) {
	it := s.db.NewIterator([]byte(prefixFactUnsealed))
	defer it.Release()

	var hashes []string
	for it.Next() {
		hashes = append(hashes, string(it.Value()))
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	var out []*ledger.Fact
	for _, h := range hashes {
		f, err := s.Get(h)
		if err != nil {
			return nil, err
		}
		if !f.Trusted() {
			continue
		}
		out = append(out, f)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListIDs returns every known fact ID, ascending.
func (s *FactStore) ListIDs() ([]int64, error) {
	it := s.db.NewIterator([]byte(prefixFactByID))
	defer it.Release()

	var ids []int64
	for it.Next() {
		key := it.Key()
		if len(key) < len(prefixFactByID)+8 {
			continue
		}
		ids = append(ids, int64(binary.BigEndian.Uint64(key[len(prefixFactByID):])))
	}
	return ids, it.Error()
}

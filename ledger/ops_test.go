package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeFactRepo is a minimal in-memory FactRepo for exercising Operations
// without pulling in the storage package.
type fakeFactRepo struct {
	byHash map[string]*Fact
	nextID int64
}

func newFakeFactRepo() *fakeFactRepo {
	return &fakeFactRepo{byHash: make(map[string]*Fact)}
}

func (r *fakeFactRepo) Get(hash string) (*Fact, error) {
	f, ok := r.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

func (r *fakeFactRepo) GetByID(id int64) (*Fact, error) {
	for _, f := range r.byHash {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeFactRepo) Put(f *Fact) error {
	r.byHash[f.Hash] = f
	return nil
}

func TestOperationsIngestThenCorroborate(t *testing.T) {
	repo := newFakeFactRepo()
	ctx := &Context{Facts: repo}
	ops := NewOperations()

	payload, err := json.Marshal(map[string]any{"id": 1, "content": "the tide is rising"})
	require.NoError(t, err)
	require.NoError(t, ops.Execute(OpIngest, ctx, payload))
	require.Len(t, repo.byHash, 1)

	var hash string
	for h := range repo.byHash {
		hash = h
	}
	corrPayload, err := json.Marshal(map[string]string{"fact_hash": hash})
	require.NoError(t, err)
	require.NoError(t, ops.Execute(OpCorroborate, ctx, corrPayload))
	require.Equal(t, 2, repo.byHash[hash].Score)
	require.True(t, repo.byHash[hash].Trusted())
}

func TestOperationsDisputeIsSticky(t *testing.T) {
	repo := newFakeFactRepo()
	ctx := &Context{Facts: repo}
	ops := NewOperations()

	payload, err := json.Marshal(map[string]any{"id": 1, "content": "the bridge collapsed"})
	require.NoError(t, err)
	require.NoError(t, ops.Execute(OpIngest, ctx, payload))

	var hash string
	for h := range repo.byHash {
		hash = h
	}
	disputePayload, err := json.Marshal(map[string]string{"fact_hash": hash})
	require.NoError(t, err)
	require.NoError(t, ops.Execute(OpDispute, ctx, disputePayload))
	require.True(t, repo.byHash[hash].Disputed)

	// disputing twice is idempotent, not an error
	require.NoError(t, ops.Execute(OpDispute, ctx, disputePayload))
}

func TestOperationsLinkRequiresExistingTarget(t *testing.T) {
	repo := newFakeFactRepo()
	ctx := &Context{Facts: repo}
	ops := NewOperations()

	f1, err := NewFact(1, "fact one", nil, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Put(f1))

	linkPayload, err := json.Marshal(map[string]any{
		"fact_hash": f1.Hash, "target_hash": "missing", "kind": LinkRelated,
	})
	require.NoError(t, err)
	require.Error(t, ops.Execute(OpLink, ctx, linkPayload))

	f2, err := NewFact(2, "fact two", nil, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Put(f2))

	validLink, err := json.Marshal(map[string]any{
		"fact_hash": f1.Hash, "target_hash": f2.Hash, "kind": LinkRelated,
	})
	require.NoError(t, err)
	require.NoError(t, ops.Execute(OpLink, ctx, validLink))
	require.Len(t, repo.byHash[f1.Hash].Links, 1)

	// repeating the same link is idempotent
	require.NoError(t, ops.Execute(OpLink, ctx, validLink))
	require.Len(t, repo.byHash[f1.Hash].Links, 1)
}

func TestOperationsRejectsMutationAfterSeal(t *testing.T) {
	repo := newFakeFactRepo()
	ctx := &Context{Facts: repo}
	ops := NewOperations()

	f, err := NewFact(1, "sealed fact", nil, nil)
	require.NoError(t, err)
	f.SealedIn = "block-hash"
	require.NoError(t, repo.Put(f))

	payload, err := json.Marshal(map[string]string{"fact_hash": f.Hash})
	require.NoError(t, err)
	require.Error(t, ops.Execute(OpCorroborate, ctx, payload))
	require.Error(t, ops.Execute(OpDispute, ctx, payload))
}

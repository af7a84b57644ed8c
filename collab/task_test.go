package collab

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/ledger"
)

type fakeFactRepo struct {
	byHash map[string]*ledger.Fact
}

func newFakeFactRepo() *fakeFactRepo { return &fakeFactRepo{byHash: map[string]*ledger.Fact{}} }

func (r *fakeFactRepo) Get(hash string) (*ledger.Fact, error) {
	f, ok := r.byHash[hash]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return f, nil
}

func (r *fakeFactRepo) GetByID(id int64) (*ledger.Fact, error) {
	for _, f := range r.byHash {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (r *fakeFactRepo) Put(f *ledger.Fact) error {
	r.byHash[f.Hash] = f
	return nil
}

type fakeContentIndex struct {
	repo   *fakeFactRepo
	nextID int64
}

func (c *fakeContentIndex) FindByContentHash(content string) (string, error) {
	for _, f := range c.repo.byHash {
		if f.Content == content {
			return f.Hash, nil
		}
	}
	return "", ledger.ErrNotFound
}

func (c *fakeContentIndex) NextID() (int64, error) {
	c.nextID++
	return c.nextID, nil
}

type staticDiscoverer struct {
	sources []Source
}

func (d *staticDiscoverer) NextSources(ctx context.Context, n int) ([]Source, error) {
	return d.sources, nil
}

type staticExtractor struct {
	byURL map[string][]CandidateFact
}

func (e *staticExtractor) Extract(ctx context.Context, doc Source) ([]CandidateFact, error) {
	facts, ok := e.byURL[doc.URL]
	if !ok {
		return nil, errors.New("no document at " + doc.URL)
	}
	return facts, nil
}

func TestIngestionTaskIngestsNewCandidateFact(t *testing.T) {
	repo := newFakeFactRepo()
	opsCtx := &ledger.Context{Facts: repo}
	ops := ledger.NewOperations()
	content := &fakeContentIndex{repo: repo}

	discover := &staticDiscoverer{sources: []Source{{Domain: "example.com", URL: "http://example.com/a"}}}
	extract := &staticExtractor{byURL: map[string][]CandidateFact{
		"http://example.com/a": {{Content: "the sky is blue", Sources: []Source{{Domain: "example.com"}}}},
	}}

	task := NewIngestionTask(discover, extract, ops, opsCtx, content, 0, 0, nil)
	task.pollOnce(context.Background())

	require.Len(t, repo.byHash, 1)
	for _, f := range repo.byHash {
		require.Equal(t, "the sky is blue", f.Content)
	}
}

func TestIngestionTaskCorroboratesExistingContent(t *testing.T) {
	repo := newFakeFactRepo()
	existing, err := ledger.NewFact(1, "the sky is blue", nil, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Put(existing))

	opsCtx := &ledger.Context{Facts: repo}
	ops := ledger.NewOperations()
	content := &fakeContentIndex{repo: repo, nextID: 1}

	discover := &staticDiscoverer{sources: []Source{{Domain: "example.com", URL: "http://example.com/a"}}}
	extract := &staticExtractor{byURL: map[string][]CandidateFact{
		"http://example.com/a": {{Content: "the sky is blue"}},
	}}

	task := NewIngestionTask(discover, extract, ops, opsCtx, content, 0, 0, nil)
	task.pollOnce(context.Background())

	require.Len(t, repo.byHash, 1)
	require.Equal(t, 2, repo.byHash[existing.Hash].Score)
}

func TestIngestionTaskSkipsSourceOnExtractError(t *testing.T) {
	repo := newFakeFactRepo()
	opsCtx := &ledger.Context{Facts: repo}
	ops := ledger.NewOperations()
	content := &fakeContentIndex{repo: repo}

	discover := &staticDiscoverer{sources: []Source{{Domain: "example.com", URL: "http://example.com/missing"}}}
	extract := &staticExtractor{byURL: map[string][]CandidateFact{}}

	task := NewIngestionTask(discover, extract, ops, opsCtx, content, 0, 0, nil)
	require.NotPanics(t, func() { task.pollOnce(context.Background()) })
	require.Empty(t, repo.byHash)
}

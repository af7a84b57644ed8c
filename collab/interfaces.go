// Package collab defines the interface boundary with the external
// components spec.md §1 scopes out of this repository: fact extraction,
// source discovery, and semantic search/answer synthesis. Each interface
// only fixes an input/output contract; the node wires a no-op stub.
// HTTPSynthesizer can proxy answers to a collaborator process over HTTP, but
// no node option selects it.
package collab

import (
	"context"
	"encoding/json"
)

// Source identifies where a candidate fact or discovered document came from.
type Source struct {
	Domain    string `json:"domain"`
	URL       string `json:"url,omitempty"`
	FetchedAt int64  `json:"fetched_at"`
}

// CandidateFact is the output of an Extractor: a unit of knowledge pulled
// from a document, not yet assigned an ID or hash.
type CandidateFact struct {
	Content   string          `json:"content"`
	Semantics json.RawMessage `json:"semantics,omitempty"`
	Sources   []Source        `json:"sources"`
}

// Extractor turns a fetched document into candidate facts. It is the NLP /
// entity / subjectivity / NLI pipeline, implemented outside this repository.
type Extractor interface {
	Extract(ctx context.Context, doc Source) ([]CandidateFact, error)
}

// Discoverer selects the next n sources worth fetching. It is the
// topic-selection / document-fetch engine, implemented outside this
// repository.
type Discoverer interface {
	NextSources(ctx context.Context, n int) ([]Source, error)
}

// Result is one answer Synthesizer returns for a query.
type Result struct {
	FactHash string  `json:"fact_hash"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
}

// Synthesizer answers a free-text query against the known fact graph. It is
// the semantic-search / answer façade backing POST /chat, implemented
// outside this repository.
type Synthesizer interface {
	Answer(ctx context.Context, query string) ([]Result, error)
}

// NoopExtractor, NoopDiscoverer, and NoopSynthesizer let a node run
// standalone without a real collaborator process wired in.

// NoopExtractor never produces candidate facts.
type NoopExtractor struct{}

func (NoopExtractor) Extract(context.Context, Source) ([]CandidateFact, error) { return nil, nil }

// NoopDiscoverer never produces new sources to fetch.
type NoopDiscoverer struct{}

func (NoopDiscoverer) NextSources(context.Context, int) ([]Source, error) { return nil, nil }

// NoopSynthesizer always returns an empty result set.
type NoopSynthesizer struct{}

func (NoopSynthesizer) Answer(context.Context, string) ([]Result, error) { return nil, nil }

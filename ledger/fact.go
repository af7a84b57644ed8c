// Package ledger implements the fact lifecycle (ingest, corroborate,
// dispute, seal), the relationship graph between facts, and the
// Merkle-style block chain that seals batches of facts together.
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/axiomproject/axiom/identity"
)

// LinkKind identifies the kind of relationship a Link expresses. The set is
// documented as closed in spec.md §3 but kept as an open string type: an
// unrecognized kind from a peer must round-trip rather than fail closed
// (spec.md §9 Open Questions).
type LinkKind string

const (
	LinkRelated     LinkKind = "related"
	LinkCausation   LinkKind = "causation"
	LinkChronology  LinkKind = "chronology"
	LinkContrast    LinkKind = "contrast"
	LinkElaboration LinkKind = "elaboration"
)

// Link is a relationship edge from one fact to another.
type Link struct {
	TargetHash string   `json:"target_hash"`
	Kind       LinkKind `json:"kind"`
}

// Source records where a fact's content was retrieved from.
type Source struct {
	Domain    string `json:"domain"`
	FetchedAt int64  `json:"fetched_at"` // UNIX seconds
}

// Fact is a unit of knowledge extracted from an external text source.
type Fact struct {
	ID        int64           `json:"id"`
	Hash      string          `json:"hash"`
	Content   string          `json:"content"`
	Semantics json.RawMessage `json:"semantics,omitempty"` // opaque analyzer blob, unused by consensus
	Disputed  bool            `json:"disputed"`
	Score     int             `json:"score"`
	Links     []Link          `json:"links,omitempty"`
	Sources   []Source        `json:"sources,omitempty"`
	CreatedAt int64           `json:"created_at"` // UNIX seconds
	SealedIn  string          `json:"sealed_in,omitempty"` // block hash once sealed
}

// factSigningBody is the canonical payload hashed to derive Fact.Hash:
// {content, id, creation timestamp}, exactly as spec.md §3 defines it.
type factSigningBody struct {
	Content   string `json:"content"`
	ID        int64  `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

// ComputeHash returns the canonical SHA-256 hash over {content, id, created_at}.
func (f *Fact) ComputeHash() string {
	body := factSigningBody{Content: f.Content, ID: f.ID, CreatedAt: f.CreatedAt}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return identity.Hash(data)
}

// NewFact creates an ingested fact (score=1, disputed=false) with a
// freshly computed, immutable hash. content is trimmed of surrounding
// whitespace here and rejected if that leaves it empty.
func NewFact(id int64, content string, semantics json.RawMessage, sources []Source) (*Fact, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("fact content must not be empty")
	}
	f := &Fact{
		ID:        id,
		Content:   content,
		Semantics: semantics,
		Score:     1,
		Sources:   sources,
		CreatedAt: time.Now().Unix(),
	}
	f.Hash = f.ComputeHash()
	return f, nil
}

// Corroborated reports whether an independent source has repeated the fact.
func (f *Fact) Corroborated() bool { return f.Score >= 2 }

// Trusted reports whether the fact is eligible for sealing: corroborated
// and not disputed.
func (f *Fact) Trusted() bool { return f.Corroborated() && !f.Disputed }

// Sealed reports whether the fact has already been included in a committed block.
func (f *Fact) Sealed() bool { return f.SealedIn != "" }

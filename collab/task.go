package collab

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/axiomproject/axiom/ledger"
)

// DefaultPollInterval is how often the ingestion task asks Discoverer for
// new sources when the caller does not override it.
const DefaultPollInterval = 15 * time.Second

// ContentIndex resolves whether a candidate fact's content already exists
// locally, and allocates IDs for genuinely new facts. storage.FactStore
// satisfies this.
type ContentIndex interface {
	FindByContentHash(content string) (string, error)
	NextID() (int64, error)
}

// IngestionTask is spec.md §5's "ingestion task driving the (external)
// fact-extraction collaborator": it periodically asks a Discoverer for
// sources, runs each through an Extractor, and routes the resulting
// candidate facts into the ledger — corroborating an existing fact when the
// content already exists, ingesting a new one otherwise.
type IngestionTask struct {
	discover Discoverer
	extract  Extractor
	ops      *ledger.Operations
	opsCtx   *ledger.Context
	content  ContentIndex
	interval time.Duration
	batch    int
	log      *logrus.Entry
}

// NewIngestionTask assembles a task polling discover/extract every interval
// (DefaultPollInterval if <= 0), fetching up to batch sources per round.
func NewIngestionTask(discover Discoverer, extract Extractor, ops *ledger.Operations, opsCtx *ledger.Context, content ContentIndex, interval time.Duration, batch int, log *logrus.Entry) *IngestionTask {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if batch <= 0 {
		batch = 5
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &IngestionTask{
		discover: discover, extract: extract, ops: ops, opsCtx: opsCtx,
		content: content, interval: interval, batch: batch, log: log,
	}
}

// Run polls until ctx is cancelled.
func (t *IngestionTask) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.pollOnce(ctx)
		}
	}
}

func (t *IngestionTask) pollOnce(ctx context.Context) {
	sources, err := t.discover.NextSources(ctx, t.batch)
	if err != nil {
		t.log.Warnf("discover sources: %v", err)
		return
	}
	for _, src := range sources {
		candidates, err := t.extract.Extract(ctx, src)
		if err != nil {
			t.log.Warnf("extract %s: %v", src.URL, err)
			continue
		}
		for _, c := range candidates {
			if err := t.ingestOrCorroborate(c); err != nil {
				t.log.Warnf("route candidate fact: %v", err)
			}
		}
	}
}

func (t *IngestionTask) ingestOrCorroborate(c CandidateFact) error {
	existing, err := t.content.FindByContentHash(c.Content)
	if err == nil {
		payload, _ := json.Marshal(map[string]string{"fact_hash": existing})
		return t.ops.Execute(ledger.OpCorroborate, t.opsCtx, payload)
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return err
	}

	id, err := t.content.NextID()
	if err != nil {
		return err
	}
	sources := make([]ledger.Source, len(c.Sources))
	for i, s := range c.Sources {
		sources[i] = ledger.Source{Domain: s.Domain, FetchedAt: s.FetchedAt}
	}
	payload, err := json.Marshal(map[string]any{
		"id":        id,
		"content":   c.Content,
		"semantics": c.Semantics,
		"sources":   sources,
	})
	if err != nil {
		return err
	}
	return t.ops.Execute(ledger.OpIngest, t.opsCtx, payload)
}

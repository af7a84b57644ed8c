package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/axiomproject/axiom/collab"
	"github.com/axiomproject/axiom/consensus"
	"github.com/axiomproject/axiom/errs"
	"github.com/axiomproject/axiom/ledger"
	"github.com/axiomproject/axiom/storage"
)

// writeStoreError maps a storage/ledger lookup failure to the HTTP status
// and errs.Kind a client should see: a benign miss surfaces as 404, anything
// else as a 500 storage failure.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ledger.ErrNotFound) || errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, errs.KindNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, errs.KindStorage, err.Error())
}

// PeerCounter reports the number of currently connected peers.
type PeerCounter interface {
	Count() int
}

// Handlers implements every route spec.md §6 names.
type Handlers struct {
	Version     string
	Fingerprint string

	Chain       *ledger.Chain
	Facts       *storage.FactStore
	Peers       *storage.PeerStore
	Validators  *storage.ValidatorStore
	Stake       *consensus.StakeLedger
	PeerCounter PeerCounter
	Synthesizer collab.Synthesizer

	// ProposeNow forces a block proposal attempt, wired only when the
	// server was built with debug=true.
	ProposeNow func() error
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	stake, _ := h.Stake.Stake(h.Fingerprint)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      h.Version,
		"chain_height": h.Chain.Height(),
		"peer_count":   h.PeerCounter.Count(),
		"validator": map[string]any{
			"stake":        stake,
			"is_validator": stake > 0,
		},
	})
}

func (h *Handlers) GetChainHeight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "height": h.Chain.Height()})
}

func (h *Handlers) GetBlocks(w http.ResponseWriter, r *http.Request) {
	since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil {
		since = 0
	}
	const limit = 100
	blocks := make([]*ledger.Block, 0, limit)
	for height := since + 1; len(blocks) < limit; height++ {
		b, err := h.Chain.GetBlockByHeight(height)
		if err != nil {
			break
		}
		blocks = append(blocks, b)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "blocks": blocks})
}

func (h *Handlers) GetPeers(w http.ResponseWriter, r *http.Request) {
	records, err := h.Peers.List()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]map[string]any, len(records))
	for i, p := range records {
		out[i] = map[string]any{
			"addr":       p.NetworkAddress,
			"pubkey":     p.PublicKey,
			"reputation": p.ReputationScore,
			"last_seen":  p.LastSeen,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "peers": out})
}

func (h *Handlers) GetFactIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Facts.ListIDs()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ids": ids})
}

type getFactsByIDRequest struct {
	FactIDs []int64 `json:"fact_ids"`
}

func (h *Handlers) GetFactsByID(w http.ResponseWriter, r *http.Request) {
	var req getFactsByIDRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errs.KindProtocol, err.Error())
		return
	}
	facts := make([]*ledger.Fact, 0, len(req.FactIDs))
	for _, id := range req.FactIDs {
		f, err := h.Facts.GetByID(id)
		if err != nil {
			// Unknown ids are filtered out of a batch lookup (spec.md §6);
			// anything other than NotFound is a real storage failure and
			// must not be swallowed along with it.
			if errors.Is(err, ledger.ErrNotFound) || errors.Is(err, storage.ErrNotFound) {
				continue
			}
			writeStoreError(w, err)
			return
		}
		facts = append(facts, f)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "facts": facts})
}

type stakeRequest struct {
	StakeAmount int64 `json:"stake_amount"`
}

func (h *Handlers) Stake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errs.KindProtocol, err.Error())
		return
	}
	rec, err := h.Stake.Deposit(h.Fingerprint, req.StakeAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, errs.KindConsensus, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ok": true, "total_stake": rec.Stake})
}

type chatRequest struct {
	Query string `json:"query"`
}

func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errs.KindProtocol, err.Error())
		return
	}
	results, err := h.Synthesizer.Answer(r.Context(), req.Query)
	if err != nil {
		writeError(w, http.StatusBadGateway, errs.KindProtocol, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "results": results})
}

func (h *Handlers) DebugProposeBlock(w http.ResponseWriter, r *http.Request) {
	if h.ProposeNow == nil {
		writeError(w, http.StatusNotImplemented, errs.KindConfiguration, "proposal hook not wired")
		return
	}
	if err := h.ProposeNow(); err != nil {
		writeError(w, http.StatusInternalServerError, errs.KindConsensus, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

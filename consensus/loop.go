package consensus

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/axiomproject/axiom/events"
	"github.com/axiomproject/axiom/identity"
	"github.com/axiomproject/axiom/ledger"
	"github.com/axiomproject/axiom/storage"
)

// Phase names the consensus loop's explicit state machine (spec.md §4.E).
type Phase string

const (
	PhaseInit      Phase = "INIT"
	PhaseSyncing   Phase = "SYNCING"
	PhaseReady     Phase = "READY"
	PhaseProposing Phase = "PROPOSING"
	PhaseAwaiting  Phase = "AWAITING"
)

// Broadcaster announces a locally proposed block to the network.
type Broadcaster interface {
	AnnounceBlock(block *ledger.Block, from string) error
}

// Engine drives the slotted leader-rotation loop: at the start of every
// slot it computes the leader for the next height and either proposes (if
// it is the local identity) or waits, falling back to catch-up mode when
// the local chain lags the network.
type Engine struct {
	chain      *ledger.Chain
	validators *storage.ValidatorStore
	candidates ledger.CandidateSource
	guard      *SigningGuard
	broadcast  Broadcaster
	peers      PeerHeighter
	requester  BlockRequester
	emitter    *events.Emitter
	log        *logrus.Entry

	priv        identity.PrivateKey
	fingerprint string

	phase        Phase
	awaitingHash string
	slotEnd      time.Time
}

// NewEngine assembles a consensus Engine for the local validator identity.
func NewEngine(
	chain *ledger.Chain,
	validators *storage.ValidatorStore,
	candidates ledger.CandidateSource,
	guard *SigningGuard,
	broadcast Broadcaster,
	peers PeerHeighter,
	requester BlockRequester,
	emitter *events.Emitter,
	priv identity.PrivateKey,
	fingerprint string,
	log *logrus.Entry,
) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &Engine{
		chain: chain, validators: validators, candidates: candidates,
		guard: guard, broadcast: broadcast, peers: peers, requester: requester,
		emitter: emitter, priv: priv, fingerprint: fingerprint, log: log,
		phase: PhaseInit,
	}
	if emitter != nil {
		emitter.Subscribe(events.EventBlockCommitted, e.onBlockCommitted)
	}
	return e
}

// Phase returns the engine's current state.
func (e *Engine) Phase() Phase { return e.phase }

// LeaderAt implements ledger.ExpectedProposer for the current slot.
func (e *Engine) LeaderAt(height int64) (string, error) {
	tip := e.chain.Tip()
	prevHash := ledger.GenesisHash
	if tip != nil {
		prevHash = tip.Hash
	}
	slot := Slot(time.Now().Unix())
	return SelectLeader(e.validators, prevHash, slot)
}

// Run drives one tick of the loop per second until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.phase = PhaseSyncing
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	switch e.phase {
	case PhaseInit, PhaseSyncing:
		behind, err := CatchUp(e.chain.Height(), e.peers, e.requester)
		if err != nil {
			e.log.Warnf("catch-up request failed: %v", err)
		}
		if !behind {
			e.phase = PhaseReady
		}
	case PhaseReady:
		e.maybePropose()
	case PhaseProposing:
		// Transitions to AWAITING happen synchronously inside maybePropose.
	case PhaseAwaiting:
		if time.Now().After(e.slotEnd) {
			e.phase = PhaseReady // slot expired without commit; next tick recomputes leader
		}
	}
}

func (e *Engine) maybePropose() {
	behind, err := CatchUp(e.chain.Height(), e.peers, e.requester)
	if err != nil {
		e.log.Warnf("catch-up request failed: %v", err)
	}
	if behind {
		e.phase = PhaseSyncing
		return
	}

	nextHeight := e.chain.Height() + 1
	leader, err := e.LeaderAt(nextHeight)
	if err != nil {
		e.log.Warnf("compute leader: %v", err)
		return
	}
	if leader != e.fingerprint {
		return
	}

	e.phase = PhaseProposing
	if err := e.guard.Reserve(nextHeight); err != nil {
		e.log.Warnf("signing guard refused height %d: %v", nextHeight, err)
		e.phase = PhaseReady
		return
	}
	block, facts, err := ledger.Propose(e.chain, e.candidates, e.fingerprint, e.priv)
	if err != nil {
		e.log.Warnf("propose block: %v", err)
		e.phase = PhaseReady
		return
	}
	if err := e.chain.AppendBlock(block, facts); err != nil {
		e.log.Warnf("append own proposal: %v", err)
		e.phase = PhaseReady
		return
	}
	if err := e.broadcast.AnnounceBlock(block, e.fingerprint); err != nil {
		e.log.Warnf("announce block %d: %v", block.Header.Height, err)
	}
	e.awaitingHash = block.Hash
	e.slotEnd = time.Now().Add(SlotDuration * time.Second)
	e.phase = PhaseAwaiting
}

// onBlockCommitted transitions AWAITING -> READY when the committed hash
// matches the block this engine proposed; otherwise a block more than one
// height past the local tip transitions straight back to SYNCING so a
// higher-than-expected block forces a resync.
func (e *Engine) onBlockCommitted(ev events.Event) {
	if e.phase == PhaseAwaiting && ev.Data != nil {
		if hash, _ := ev.Data["hash"].(string); hash == e.awaitingHash {
			e.phase = PhaseReady
			return
		}
	}
	if ev.BlockHeight > e.chain.Height()+1 {
		e.phase = PhaseSyncing
	}
}

package p2p

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/ledger"
)

func TestGossiperAnnounceBlockMarksSeen(t *testing.T) {
	n := newTestNode("fp-local")
	g := NewGossiper(n)
	block := &ledger.Block{Header: ledger.BlockHeader{Height: 1}, Hash: "block-hash-1"}

	require.False(t, g.Seen(MsgBlockAnnounce, block.Hash))
	require.NoError(t, g.AnnounceBlock(block, ""))
	require.True(t, g.Seen(MsgBlockAnnounce, block.Hash))
}

func TestGossiperAnnounceBlockSecondCallIsNoop(t *testing.T) {
	n := newTestNode("fp-local")
	g := NewGossiper(n)
	block := &ledger.Block{Header: ledger.BlockHeader{Height: 1}, Hash: "block-hash-2"}

	require.NoError(t, g.AnnounceBlock(block, ""))
	require.NoError(t, g.AnnounceBlock(block, ""))
}

func TestHandleBlockAnnounceSkipsAlreadySeenBlock(t *testing.T) {
	n := newTestNode("fp-local")
	g := NewGossiper(n)

	var acceptCalls int
	g.HandleBlockAnnounce(func(block *ledger.Block, from string) error {
		acceptCalls++
		return nil
	})

	block := &ledger.Block{Header: ledger.BlockHeader{Height: 2}, Hash: "block-hash-3"}
	g.seen.Add(dedupKey(MsgBlockAnnounce, block.Hash), struct{}{})

	n.mu.RLock()
	h := n.handlers[MsgBlockAnnounce]
	n.mu.RUnlock()

	data, err := json.Marshal(block)
	require.NoError(t, err)
	h(nil, Envelope{Type: MsgBlockAnnounce, Body: data})

	require.Equal(t, 0, acceptCalls)
}

func TestHandleBlockAnnounceCallsAcceptForNewBlock(t *testing.T) {
	n := newTestNode("fp-local")
	g := NewGossiper(n)

	var accepted *ledger.Block
	g.HandleBlockAnnounce(func(block *ledger.Block, from string) error {
		accepted = block
		return nil
	})

	block := &ledger.Block{Header: ledger.BlockHeader{Height: 3}, Hash: "block-hash-4"}
	data, err := json.Marshal(block)
	require.NoError(t, err)

	n.mu.RLock()
	h := n.handlers[MsgBlockAnnounce]
	n.mu.RUnlock()
	h(&Peer{Fingerprint: "fp-remote"}, Envelope{Type: MsgBlockAnnounce, Body: data, From: "fp-remote"})

	require.NotNil(t, accepted)
	require.Equal(t, "block-hash-4", accepted.Hash)
}

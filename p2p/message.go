// Package p2p implements the TLS-framed gossip transport nodes use to
// exchange blocks, facts, and peer information.
package p2p

import (
	"encoding/json"

	"github.com/axiomproject/axiom/ledger"
)

// MsgType labels an envelope; the set is closed per spec.md §4.D.
type MsgType string

const (
	MsgHello         MsgType = "HELLO"
	MsgHelloAck      MsgType = "HELLO_ACK"
	MsgPeerRequest   MsgType = "PEER_REQUEST"
	MsgPeerList      MsgType = "PEER_LIST"
	MsgBlockAnnounce MsgType = "BLOCK_ANNOUNCE"
	MsgRequestBlocks MsgType = "REQUEST_BLOCKS"
	MsgBlocks        MsgType = "BLOCKS"
	MsgRequestFacts  MsgType = "REQUEST_FACTS"
	MsgFacts         MsgType = "FACTS"
	MsgPing          MsgType = "PING"
	MsgPong          MsgType = "PONG"
)

// Envelope is the wire format for every message: {type, id, from, body}.
type Envelope struct {
	Type MsgType         `json:"type"`
	ID   string          `json:"id"`   // 128-bit request id (uuid), for correlating replies
	From string          `json:"from"` // sender's public key fingerprint
	Body json.RawMessage `json:"body"`
}

// HelloBody is carried by HELLO and HELLO_ACK.
type HelloBody struct {
	PubKey      string `json:"pubkey"` // DER hex
	ListenAddr  string `json:"listen_addr"`
	ChainHeight int64  `json:"chain_height"`
}

// PeerListEntry describes one peer in a PEER_LIST reply.
type PeerListEntry struct {
	Addr     string `json:"addr"`
	PubKey   string `json:"pubkey"`
	LastSeen int64  `json:"last_seen"`
}

// PeerListBody is carried by PEER_LIST. Up to 64 peers, descending reputation.
type PeerListBody struct {
	Peers []PeerListEntry `json:"peers"`
}

// RequestBlocksBody is carried by REQUEST_BLOCKS.
type RequestBlocksBody struct {
	SinceHeight int64 `json:"since_height"`
}

// RequestFactsBody is carried by REQUEST_FACTS.
type RequestFactsBody struct {
	Hashes []string `json:"hashes"`
}

// PingBody is carried by PING and PONG.
type PingBody struct {
	TS int64 `json:"ts"`
}

// BlocksBody is carried by BLOCKS. Up to 100 blocks, ascending height.
type BlocksBody struct {
	Blocks []*ledger.Block `json:"blocks"`
}

// FactsBody is carried by FACTS.
type FactsBody struct {
	Facts []*ledger.Fact `json:"facts"`
}

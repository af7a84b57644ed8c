package p2p

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/axiomproject/axiom/identity"
	"github.com/axiomproject/axiom/storage"
)

// PeerGossipInterval is how often a node samples a peer and exchanges
// PEER_REQUEST/PEER_LIST (spec.md §4.D).
const PeerGossipInterval = 60 * time.Second

// maxPeerListEntries bounds a PEER_LIST reply.
const maxPeerListEntries = 64

// Discovery maintains the known-peer table and periodically gossips it.
type Discovery struct {
	node  *Node
	peers *storage.PeerStore
}

// NewDiscovery wires PEER_REQUEST/PEER_LIST handlers onto node.
func NewDiscovery(node *Node, peers *storage.PeerStore) *Discovery {
	d := &Discovery{node: node, peers: peers}
	node.Handle(MsgPeerRequest, d.handlePeerRequest)
	node.Handle(MsgPeerList, d.handlePeerList)
	return d
}

// Bootstrap dials addr, if non-empty, and requests its peer list to seed
// the local peer table.
func (d *Discovery) Bootstrap(addr string) error {
	if addr == "" {
		return nil
	}
	peer, err := d.node.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial bootstrap %s: %w", addr, err)
	}
	return peer.Send(Envelope{Type: MsgPeerRequest, From: d.node.fingerprint})
}

// Run samples a random connected peer every PeerGossipInterval and requests
// its peer list. Blocks until done is closed.
func (d *Discovery) Run(done <-chan struct{}) {
	ticker := time.NewTicker(PeerGossipInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			d.gossipOnce()
		}
	}
}

func (d *Discovery) gossipOnce() {
	peers := d.node.Peers()
	if len(peers) == 0 {
		return
	}
	target := peers[rand.Intn(len(peers))]
	_ = target.Send(Envelope{Type: MsgPeerRequest, From: d.node.fingerprint})
}

func (d *Discovery) handlePeerRequest(peer *Peer, env Envelope) {
	records, err := d.peers.List()
	if err != nil {
		return
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ReputationScore > records[j].ReputationScore
	})
	if len(records) > maxPeerListEntries {
		records = records[:maxPeerListEntries]
	}
	entries := make([]PeerListEntry, len(records))
	for i, r := range records {
		entries[i] = PeerListEntry{Addr: r.NetworkAddress, PubKey: r.PublicKey, LastSeen: r.LastSeen}
	}
	body, err := json.Marshal(PeerListBody{Peers: entries})
	if err != nil {
		return
	}
	_ = peer.Send(Envelope{Type: MsgPeerList, From: d.node.fingerprint, ID: env.ID, Body: body})
}

func (d *Discovery) handlePeerList(_ *Peer, env Envelope) {
	var body PeerListBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return
	}
	now := time.Now().Unix()
	for _, p := range body.Peers {
		pub, err := identity.PubKeyFromDERHex(p.PubKey)
		if err != nil {
			continue
		}
		fingerprint := pub.Fingerprint()
		existing, err := d.peers.Get(fingerprint)
		if err != nil {
			existing = &storage.PeerRecord{FirstSeen: now}
		}
		existing.NetworkAddress = p.Addr
		existing.PublicKey = p.PubKey
		existing.LastSeen = now
		_ = d.peers.Put(fingerprint, existing)
	}
}

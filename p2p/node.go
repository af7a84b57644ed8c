package p2p

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/axiomproject/axiom/events"
)

// MaxPeers bounds simultaneous peer connections (spec.md §4.D).
const MaxPeers = 32

// Handler is called for each received envelope.
type Handler func(peer *Peer, env Envelope)

// HeightFunc reports the local chain height, advertised in HELLO/HELLO_ACK.
type HeightFunc func() int64

// Node listens for incoming peers, dials outgoing ones, and dispatches
// received envelopes to registered handlers.
type Node struct {
	fingerprint string
	pubKeyHex   string
	listenAddr  string
	tlsConfig   *tls.Config
	height      HeightFunc
	emitter     *events.Emitter
	log         *logrus.Entry

	mu          sync.RWMutex
	peers       map[string]*Peer // keyed by fingerprint
	peerHeights map[string]int64
	handlers    map[MsgType]Handler

	listener net.Listener
	stopCh   chan struct{}
}

// NewNode creates a Node identified by fingerprint/pubKeyHex that will
// listen on listenAddr using mandatory mTLS.
func NewNode(fingerprint, pubKeyHex, listenAddr string, tlsCfg *tls.Config, height HeightFunc, emitter *events.Emitter, log *logrus.Entry) *Node {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	n := &Node{
		fingerprint: fingerprint,
		pubKeyHex:   pubKeyHex,
		listenAddr:  listenAddr,
		tlsConfig:   tlsCfg,
		height:      height,
		emitter:     emitter,
		log:         log,
		peers:       make(map[string]*Peer),
		peerHeights: make(map[string]int64),
		handlers:    make(map[MsgType]Handler),
		stopCh:      make(chan struct{}),
	}
	n.Handle(MsgHello, n.handleHello)
	n.Handle(MsgHelloAck, n.handleHelloAck)
	n.Handle(MsgPing, n.handlePing)
	return n
}

// Handle registers h for typ, overwriting any previous handler.
func (n *Node) Handle(typ MsgType, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[typ] = h
}

// Start begins accepting connections.
func (n *Node) Start() error {
	ln, err := tls.Listen("tcp", n.listenAddr, n.tlsConfig)
	if err != nil {
		return fmt.Errorf("listen %s: %w", n.listenAddr, err)
	}
	n.listener = ln
	go n.acceptLoop()
	return nil
}

// Stop shuts the node down, closing every connection.
func (n *Node) Stop() {
	close(n.stopCh)
	if n.listener != nil {
		n.listener.Close()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.peers {
		p.Close()
	}
}

// Dial connects to addr and completes the HELLO handshake.
func (n *Node) Dial(addr string) (*Peer, error) {
	n.mu.RLock()
	full := len(n.peers) >= MaxPeers
	n.mu.RUnlock()
	if full {
		return nil, fmt.Errorf("at max peers (%d)", MaxPeers)
	}
	peer, err := Connect(addr, n.tlsConfig)
	if err != nil {
		return nil, err
	}
	go n.readLoop(peer)
	if err := n.sendHello(peer, MsgHello); err != nil {
		peer.Close()
		return nil, err
	}
	return peer, nil
}

func (n *Node) sendHello(peer *Peer, typ MsgType) error {
	body, err := json.Marshal(HelloBody{
		PubKey:      n.pubKeyHex,
		ListenAddr:  n.listenAddr,
		ChainHeight: n.height(),
	})
	if err != nil {
		return err
	}
	return peer.Send(Envelope{Type: typ, From: n.fingerprint, Body: body})
}

// Peer returns the connected peer for fingerprint, or nil.
func (n *Node) Peer(fingerprint string) *Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.peers[fingerprint]
}

// Peers returns a snapshot of all connected peers.
func (n *Node) Peers() []*Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, p)
	}
	return out
}

// Count reports the number of currently connected peers.
func (n *Node) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

// Send delivers env to a single peer by fingerprint.
func (n *Node) Send(fingerprint string, env Envelope) error {
	peer := n.Peer(fingerprint)
	if peer == nil {
		return fmt.Errorf("no connected peer %s", fingerprint)
	}
	return peer.Send(env)
}

// Broadcast sends env to every connected peer except skip (pass "" to
// exclude none).
func (n *Node) Broadcast(env Envelope, skip string) {
	for _, p := range n.Peers() {
		if p.Fingerprint == skip {
			continue
		}
		if err := p.Send(env); err != nil {
			n.log.WithField("peer", p.Fingerprint).Warnf("broadcast failed: %v", err)
		}
	}
}

func (n *Node) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.stopCh:
				return
			default:
				n.log.Errorf("accept error: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
		}
		n.mu.RLock()
		full := len(n.peers) >= MaxPeers
		n.mu.RUnlock()
		if full {
			n.log.Warnf("max peers (%d) reached, rejecting %s", MaxPeers, conn.RemoteAddr())
			conn.Close()
			continue
		}
		peer := NewPeer(conn.RemoteAddr().String(), conn)
		go n.readLoop(peer)
	}
}

func (n *Node) readLoop(peer *Peer) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Errorf("readLoop panic from %s: %v", peer.Addr, r)
		}
		peer.Close()
		if peer.Fingerprint != "" {
			n.mu.Lock()
			delete(n.peers, peer.Fingerprint)
			n.mu.Unlock()
		}
	}()
	for {
		env, err := peer.Receive()
		if err != nil {
			return
		}
		n.mu.RLock()
		h, ok := n.handlers[env.Type]
		n.mu.RUnlock()
		if ok {
			h(peer, env)
		}
	}
}

func (n *Node) handleHello(peer *Peer, env Envelope) {
	var body HelloBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		n.log.Warnf("malformed HELLO from %s: %v", peer.Addr, err)
		return
	}
	peer.Fingerprint = env.From
	n.mu.Lock()
	n.peers[env.From] = peer
	n.peerHeights[env.From] = body.ChainHeight
	n.mu.Unlock()
	if err := n.sendHello(peer, MsgHelloAck); err != nil {
		n.log.Warnf("send HELLO_ACK to %s: %v", env.From, err)
	}
	if n.emitter != nil {
		n.emitter.Emit(events.Event{Type: events.EventPeerConnected, Data: map[string]any{"fingerprint": env.From}})
	}
}

func (n *Node) handleHelloAck(peer *Peer, env Envelope) {
	var body HelloBody
	if err := json.Unmarshal(env.Body, &body); err != nil {
		n.log.Warnf("malformed HELLO_ACK from %s: %v", peer.Addr, err)
		return
	}
	peer.Fingerprint = env.From
	n.mu.Lock()
	n.peers[env.From] = peer
	n.peerHeights[env.From] = body.ChainHeight
	n.mu.Unlock()
	if n.emitter != nil {
		n.emitter.Emit(events.Event{Type: events.EventPeerConnected, Data: map[string]any{"fingerprint": env.From}})
	}
}

// MaxPeerHeight returns the highest chain height any connected peer has
// advertised, and that peer's fingerprint. ok is false with no peers.
func (n *Node) MaxPeerHeight() (fingerprint string, height int64, ok bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	best := int64(-1)
	for fp, h := range n.peerHeights {
		if _, connected := n.peers[fp]; !connected {
			continue
		}
		if h > best {
			best, fingerprint = h, fp
		}
	}
	return fingerprint, best, best >= 0
}

func (n *Node) handlePing(peer *Peer, env Envelope) {
	body, err := json.Marshal(PingBody{TS: time.Now().Unix()})
	if err != nil {
		return
	}
	_ = peer.Send(Envelope{Type: MsgPong, From: n.fingerprint, ID: env.ID, Body: body})
}

package p2p

import (
	"crypto/tls"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/axiomproject/axiom/errs"
)

// MaxFrameSize bounds a single envelope's payload, tightened from the
// teacher's 32 MiB ceiling to spec.md §4.D's 16 MiB.
const MaxFrameSize = 16 * 1024 * 1024

// Peer represents a connected remote node.
type Peer struct {
	Fingerprint string // empty until HELLO/HELLO_ACK completes
	Addr        string

	conn   net.Conn
	mu     sync.Mutex
	closed bool
}

// NewPeer wraps an established connection as a Peer.
func NewPeer(addr string, conn net.Conn) *Peer {
	return &Peer{Addr: addr, conn: conn}
}

// Connect dials addr over TLS using tlsCfg.
func Connect(addr string, tlsCfg *tls.Config) (*Peer, error) {
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return NewPeer(addr, conn), nil
}

// Send writes a length-prefixed JSON envelope to the peer. An empty ID is
// filled with a fresh uuid so every outbound frame can be correlated.
func (p *Peer) Send(env Envelope) error {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("peer %s closed", p.Addr)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := p.conn.Write(header[:]); err != nil {
		return err
	}
	_, err = p.conn.Write(data)
	return err
}

// Receive reads the next length-prefixed envelope. A 30-second read
// deadline prevents a stalled peer from blocking a reader goroutine forever.
func (p *Peer) Receive() (Envelope, error) {
	_ = p.conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	var header [4]byte
	if _, err := io.ReadFull(p.conn, header[:]); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return Envelope{}, errs.Timeout("read frame header", err)
		}
		return Envelope{}, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return Envelope{}, errs.Protocol(fmt.Sprintf("frame too large: %d bytes", length), nil)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(p.conn, buf); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return Envelope{}, errs.Timeout("read frame body", err)
		}
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return Envelope{}, errs.Protocol("malformed envelope json", err)
	}
	return env, nil
}

// Close terminates the peer connection.
func (p *Peer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.conn.Close()
	}
}

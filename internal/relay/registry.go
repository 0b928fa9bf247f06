// Package relay fans a producer's snapshot frames out to a bounded set of WebSocket peers,
// and provides the reconnecting client both producers and consumers use.
package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrCapacity is returned when the registry already holds its maximum number of peers.
var ErrCapacity = errors.New("relay at capacity")

// Conn is the write side of a peer connection. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Peer is one registered connection.
type Peer struct {
	ID          uuid.UUID
	RemoteAddr  string
	ConnectedAt time.Time

	conn    Conn
	writeMu sync.Mutex // gorilla connections allow one concurrent writer
	limiter *rate.Limiter
}

// NewPeer wraps conn with a fresh id and an inbound limiter.
func NewPeer(conn Conn, remoteAddr string, limiter *rate.Limiter) *Peer {
	return &Peer{
		ID:          uuid.New(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		conn:        conn,
		limiter:     limiter,
	}
}

// Send writes one frame within timeout.
func (p *Peer) Send(messageType int, data []byte, timeout time.Duration) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if timeout > 0 {
		if err := p.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return errors.Wrap(err, "set write deadline")
		}
	}
	return p.conn.WriteMessage(messageType, data)
}

// Allow reports whether an inbound message fits the peer's rate.
func (p *Peer) Allow() bool {
	if p.limiter == nil {
		return true
	}
	return p.limiter.Allow()
}

// PeerInfo is a display copy of a peer.
type PeerInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Registry maps peer ids to open connections, bounded at max entries.
type Registry struct {
	mu    sync.RWMutex
	peers map[uuid.UUID]*Peer
	max   int
}

// NewRegistry creates a registry holding at most max peers.
func NewRegistry(max int) *Registry {
	return &Registry{
		peers: make(map[uuid.UUID]*Peer),
		max:   max,
	}
}

// Add registers p, or returns ErrCapacity when full.
func (r *Registry) Add(p *Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.peers) >= r.max {
		return ErrCapacity
	}
	r.peers[p.ID] = p
	return nil
}

// Remove unregisters a peer. Returns false when it was not registered.
func (r *Registry) Remove(id uuid.UUID) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[id]
	if ok {
		delete(r.peers, id)
	}
	return p, ok
}

// Snapshot copies the registered peers so sends happen without the lock.
func (r *Registry) Snapshot() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Cap returns the registry bound.
func (r *Registry) Cap() int {
	return r.max
}

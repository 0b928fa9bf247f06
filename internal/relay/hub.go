package relay

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"spike-overlay/internal/config"
	"spike-overlay/internal/observability"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// MaxMessageSize bounds a single inbound frame (a full snapshot is a few KB)
	MaxMessageSize = 1 << 20

	// CloseReasonFull is sent to a connection rejected at capacity
	CloseReasonFull = "relay full"

	closeGrace = time.Second
)

// Hub accepts WebSocket connections and fans every inbound message out to the other peers.
type Hub struct {
	cfg      config.RelayConfig
	registry *Registry
	upgrader websocket.Upgrader
}

// NewHub creates a hub bounded at cfg.MaxPeers.
func NewHub(cfg config.RelayConfig) *Hub {
	h := &Hub{
		cfg:      cfg,
		registry: NewRegistry(cfg.MaxPeers),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Registry exposes the peer registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// checkOrigin admits non-browser clients (no Origin), localhost, and configured origins
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if IsAllowedOrigin(origin, h.cfg.AllowedOrigins) {
		return true
	}

	log.Warn().Msgf("⚠️ WebSocket connection rejected from origin: %s", origin)
	observability.RecordConnectionRejected("origin")
	return false
}

// IsAllowedOrigin reports whether a browser origin may connect.
func IsAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(origin, a) {
			return true
		}
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// HandleWebSocket upgrades the request and registers the peer, or rejects it when the
// registry is full.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		log.Warn().Err(err).Msgf("⚠️ WebSocket upgrade failed from %s", r.RemoteAddr)
		observability.RecordConnectionRejected("upgrade")
		return
	}

	var limiter *rate.Limiter
	if h.cfg.PeerRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.cfg.PeerRate), h.cfg.PeerBurst)
	}
	peer := NewPeer(conn, r.RemoteAddr, limiter)

	if err := h.registry.Add(peer); err != nil {
		log.Warn().Msgf("⚠️ Connection from %s rejected: %v (%d peers)", r.RemoteAddr, err, h.registry.Len())
		observability.RecordConnectionRejected("capacity")
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, CloseReasonFull)
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		conn.Close()
		return
	}

	count := h.registry.Len()
	observability.UpdatePeers(count)
	log.Info().Msgf("🔗 Peer %s connected from %s (%d/%d)", peer.ID, peer.RemoteAddr, count, h.registry.Cap())

	h.readLoop(peer, conn)
}

// readLoop forwards every message from peer to all other peers until the connection fails
func (h *Hub) readLoop(peer *Peer, conn *websocket.Conn) {
	defer h.evict(peer)

	conn.SetReadLimit(MaxMessageSize)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msgf("⚠️ Peer %s read error", peer.ID)
			}
			return
		}

		if !peer.Allow() {
			observability.RecordThrottled()
			log.Debug().Msgf("🐢 Peer %s throttled, message dropped", peer.ID)
			continue
		}

		h.BroadcastFrom(peer, msgType, data)
	}
}

// Broadcast sends a text message to every registered peer.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast(nil, websocket.TextMessage, data)
}

// BroadcastFrom sends a message to every registered peer except sender, preserving its frame type.
func (h *Hub) BroadcastFrom(sender *Peer, msgType int, data []byte) {
	h.broadcast(sender, msgType, data)
}

func (h *Hub) broadcast(sender *Peer, msgType int, data []byte) {
	for _, p := range h.registry.Snapshot() {
		if p == sender {
			continue
		}
		if err := p.Send(msgType, data, h.cfg.WriteTimeout); err != nil {
			observability.RecordSendFailure()
			log.Warn().Err(err).Msgf("⚠️ Send to peer %s failed, evicting", p.ID)
			h.evict(p)
		}
	}
	observability.RecordBroadcast()
}

// evict removes a peer and closes its connection. Safe to call more than once.
func (h *Hub) evict(p *Peer) {
	if _, ok := h.registry.Remove(p.ID); !ok {
		return
	}
	p.conn.Close()

	count := h.registry.Len()
	observability.UpdatePeers(count)
	log.Info().Msgf("🔌 Peer %s disconnected (%d remaining)", p.ID, count)
}

// Peers returns display info for every registered peer.
func (h *Hub) Peers() []PeerInfo {
	peers := h.registry.Snapshot()
	infos := make([]PeerInfo, 0, len(peers))
	for _, p := range peers {
		infos = append(infos, PeerInfo{
			ID:          p.ID.String(),
			RemoteAddr:  p.RemoteAddr,
			ConnectedAt: p.ConnectedAt,
		})
	}
	return infos
}

// Close disconnects every peer.
func (h *Hub) Close() {
	for _, p := range h.registry.Snapshot() {
		h.evict(p)
	}
}

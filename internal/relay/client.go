package relay

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"spike-overlay/internal/observability"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	DialTimeout           = 5 * time.Second
	ClientWriteTimeout    = 2 * time.Second
)

// ErrNotConnected is returned by Send while the client has no open connection.
var ErrNotConnected = errors.New("relay client not connected")

// TransportError reports a dial, read or write failure against the relay.
type TransportError struct {
	Op  string // "dial", "read" or "write"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("relay %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Handler receives every frame read from the relay.
type Handler func(msgType int, data []byte)

// Client keeps a connection to the relay open, reconnecting with a fixed delay.
type Client struct {
	url            string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer

	conn   *websocket.Conn
	connMu sync.Mutex
	sendMu sync.Mutex

	// Stats
	received   int64 // atomic
	reconnects int64 // atomic

	// Control
	running int32 // atomic
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Callbacks
	onMessage    Handler
	onConnect    func()
	onDisconnect func()
}

// NewClient creates a client for url. A zero delay uses DefaultReconnectDelay.
func NewClient(url string, reconnectDelay time.Duration) *Client {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Client{
		url:            url,
		reconnectDelay: reconnectDelay,
		dialer: &websocket.Dialer{
			HandshakeTimeout: DialTimeout,
		},
		stopCh: make(chan struct{}),
	}
}

// OnMessage sets the frame handler. Called on the client's read goroutine.
func (c *Client) OnMessage(fn Handler) {
	c.onMessage = fn
}

// OnConnect sets a callback for when a connection is established
func (c *Client) OnConnect(fn func()) {
	c.onConnect = fn
}

// OnDisconnect sets a callback for when the connection is lost
func (c *Client) OnDisconnect(fn func()) {
	c.onDisconnect = fn
}

// Start begins connecting in the background.
func (c *Client) Start() {
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return
	}

	c.wg.Add(1)
	go c.connectionLoop()

	log.Info().Msgf("📡 Relay client started, connecting to %s", c.url)
}

// Stop closes the connection and waits for the background loop to exit.
func (c *Client) Stop() {
	if !atomic.CompareAndSwapInt32(&c.running, 1, 0) {
		return
	}

	close(c.stopCh)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	log.Info().Msg("📡 Relay client stopped")
}

// IsConnected returns whether the client currently holds a connection.
func (c *Client) IsConnected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// Stats returns received frames and reconnect attempts.
func (c *Client) Stats() (received, reconnects int64) {
	return atomic.LoadInt64(&c.received), atomic.LoadInt64(&c.reconnects)
}

// Send writes one frame to the relay.
func (c *Client) Send(msgType int, data []byte) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(ClientWriteTimeout))
	if err := conn.WriteMessage(msgType, data); err != nil {
		// Closing unblocks the read loop, which triggers the reconnect
		conn.Close()
		return &TransportError{Op: "write", URL: c.url, Err: err}
	}
	return nil
}

// connectionLoop maintains the connection to the relay
func (c *Client) connectionLoop() {
	defer c.wg.Done()

	for atomic.LoadInt32(&c.running) == 1 {
		conn, err := c.connect()
		if err != nil {
			log.Warn().Err(err).Msgf("⚠️ Relay unavailable, retrying in %s", c.reconnectDelay)
			if !c.wait() {
				return
			}
			continue
		}

		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()

		if c.onConnect != nil {
			c.onConnect()
		}

		c.readLoop(conn)

		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		conn.Close()

		if c.onDisconnect != nil {
			c.onDisconnect()
		}

		if !c.wait() {
			return
		}
	}
}

// wait sleeps for the reconnect delay. Returns false when stopped.
func (c *Client) wait() bool {
	select {
	case <-c.stopCh:
		return false
	case <-time.After(c.reconnectDelay):
		atomic.AddInt64(&c.reconnects, 1)
		observability.RecordReconnect()
		return true
	}
}

func (c *Client) connect() (*websocket.Conn, error) {
	conn, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		return nil, &TransportError{Op: "dial", URL: c.url, Err: err}
	}

	log.Info().Msgf("✅ Connected to relay at %s", c.url)
	return conn, nil
}

// readLoop delivers frames until the connection fails. No read deadline is set:
// gorilla connections are unusable after a read timeout.
func (c *Client) readLoop(conn *websocket.Conn) {
	for atomic.LoadInt32(&c.running) == 1 {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if atomic.LoadInt32(&c.running) == 0 {
				return
			}
			if ce, ok := err.(*websocket.CloseError); ok {
				log.Warn().Msgf("🔌 Relay closed connection: %d %s", ce.Code, ce.Text)
				return
			}
			log.Warn().Err(&TransportError{Op: "read", URL: c.url, Err: err}).Msg("⚠️ Relay read error")
			return
		}

		atomic.AddInt64(&c.received, 1)
		if c.onMessage != nil {
			c.onMessage(msgType, data)
		}
	}
}

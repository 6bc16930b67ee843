package connection

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket connection to the dashboard backend.
type Client interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection with a normal closure.
	Close() error

	// Send writes a text frame to the connection.
	Send(data []byte) error

	// Messages returns a channel of inbound frames. Each message includes
	// a local timestamp for when it was received.
	Messages() <-chan TimestampedMessage

	// Errors returns a channel carrying the error that ended the read loop.
	// A close frame from the server arrives as *websocket.CloseError.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// ClientFactory creates a Client for one connection attempt.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

// client is the gorilla/websocket implementation of Client. One client
// serves a single connection attempt; the manager builds a new one per dial.
type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{} // closed by Close
	readDone chan struct{} // closed when readLoop returns

	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu        sync.RWMutex
	connected bool
	closed    bool
	lastSeen  time.Time // last ping or pong from the server
}

// NewClient creates an unconnected client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultClientConfig().PingInterval
	}

	return &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
}

// Connect dials the backend and starts the read and keepalive loops.
func (c *client) Connect(ctx context.Context) error {
	if c.isClosed() {
		return ErrAlreadyClosed
	}

	header := http.Header{}
	header.Set("Accept", "application/json")

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		// Close won the race with the dial.
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.connected = true
	c.lastSeen = time.Now()
	c.mu.Unlock()

	conn.SetPingHandler(func(data string) error {
		c.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop(conn)
	go c.heartbeatLoop(conn)

	c.logger.Debug("websocket connected", "url", c.cfg.URL)
	return nil
}

// Close stops both loops and ends the socket with a 1000 close frame.
// Calling it again, or on a client that never connected, is harmless.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	close(c.done)

	if conn == nil {
		return nil
	}

	bye := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.writeMu.Lock()
	// Fails with ErrCloseSent when the server closed first; that is fine.
	_ = conn.WriteControl(websocket.CloseMessage, bye, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	return conn.Close()
}

// Send writes one text frame.
func (c *client) Send(data []byte) error {
	c.mu.RLock()
	conn, ok := c.conn, c.connected
	c.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) Messages() <-chan TimestampedMessage { return c.messages }

func (c *client) Errors() <-chan error { return c.errors }

func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// readLoop forwards frames until the socket fails. A full buffer blocks the
// loop so frames are never dropped. The terminal error is reported unless
// Close caused it.
func (c *client) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.readDone)
	}()

	for {
		_, data, err := conn.ReadMessage()
		at := time.Now()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.report(err)
			}
			return
		}

		select {
		case c.messages <- TimestampedMessage{Data: data, ReceivedAt: at}:
		case <-c.done:
			return
		}
	}
}

// heartbeatLoop pings every PingInterval. With a PingTimeout set, a server
// that stays silent longer than that is reported as ErrStaleConnection and
// the socket is torn down. The loop ends with the read loop or with Close.
func (c *client) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.readDone:
			return
		case <-ticker.C:
		}

		c.writeMu.Lock()
		err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(c.cfg.WriteTimeout))
		c.writeMu.Unlock()
		if err != nil {
			c.logger.Debug("ping failed", "error", err)
		}

		if c.cfg.PingTimeout <= 0 {
			continue
		}

		c.mu.RLock()
		lastSeen := c.lastSeen
		c.mu.RUnlock()

		if silent := time.Since(lastSeen); silent > c.cfg.PingTimeout {
			c.logger.Warn("server silent, dropping connection",
				"silent_for", silent,
				"timeout", c.cfg.PingTimeout,
			)
			// Reported first so the read error that follows is discarded.
			c.report(ErrStaleConnection)
			conn.Close()
			return
		}
	}
}

func (c *client) report(err error) {
	select {
	case c.errors <- err:
	default:
	}
}

// CloseCode extracts the close code and reason carried by a read error.
// Errors that are not close frames map to 1006 (abnormal closure).
func CloseCode(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	if err == nil {
		return websocket.CloseNormalClosure, ""
	}
	return websocket.CloseAbnormalClosure, err.Error()
}

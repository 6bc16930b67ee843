package connection

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/aios-edge/fleet-realtime/internal/reconnect"
)

// Errors
var (
	ErrNotAuthenticated = errors.New("no client identity")
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
	ErrAlreadyClosed    = errors.New("already closed")
)

// State is the lifecycle state of a Manager.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is a message from Connection Manager to Message Router.
type RawMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when WS Client received message
	Generation uint64    // Socket generation that delivered the frame
}

// Dispatcher consumes inbound frames. Dispatch is called synchronously
// from the socket's pump goroutine, one frame at a time.
type Dispatcher interface {
	Dispatch(msg RawMessage)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(RawMessage)

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(msg RawMessage) { f(msg) }

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full socket address including the client id segment
	PingInterval     time.Duration // Interval between keepalive pings
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration // Dial and upgrade timeout
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	WSURL     string // Base socket address, e.g. ws://host:8000/ws
	Client    ClientConfig
	Reconnect reconnect.Config
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client: DefaultClientConfig(),
		Reconnect: reconnect.Config{
			BaseDelay:   reconnect.DefaultBaseDelay,
			MaxAttempts: reconnect.DefaultMaxAttempts,
		},
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State            State
	Generation       uint64
	Connects         int64 // Dials started
	Opens            int64
	Closes           int64
	Errors           int64
	RetriesScheduled int64
	HandshakesSent   int64
	LastCloseCode    int
}

// BuildURL appends the escaped client id to the base socket address.
func BuildURL(base, clientID string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(clientID)
}

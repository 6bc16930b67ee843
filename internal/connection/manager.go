package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aios-edge/fleet-realtime/internal/auth"
	"github.com/aios-edge/fleet-realtime/internal/clock"
	"github.com/aios-edge/fleet-realtime/internal/message"
	"github.com/aios-edge/fleet-realtime/internal/notify"
	"github.com/aios-edge/fleet-realtime/internal/reconnect"
)

// Manager owns the realtime socket and its reconnect loop.
type Manager struct {
	cfg        ManagerConfig
	provider   auth.Provider
	dispatcher Dispatcher
	sink       notify.Sink
	clock      clock.Clock
	newClient  ClientFactory
	logger     *slog.Logger

	policy *reconnect.Policy

	mu         sync.Mutex
	state      State
	gen        uint64
	client     Client
	cancelSock context.CancelFunc
	baseCtx    context.Context
	stats      ManagerStats
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock sets the clock used for reconnect timers.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// WithClientFactory replaces the gorilla/websocket client.
func WithClientFactory(f ClientFactory) ManagerOption {
	return func(m *Manager) { m.newClient = f }
}

// WithNotifier sets the sink for user-facing notifications.
func WithNotifier(s notify.Sink) ManagerOption {
	return func(m *Manager) { m.sink = s }
}

// NewManager creates a Connection Manager in the Idle state.
func NewManager(cfg ManagerConfig, provider auth.Provider, dispatcher Dispatcher, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:        cfg,
		provider:   provider,
		dispatcher: dispatcher,
		sink:       notify.Discard,
		clock:      clock.Real(),
		newClient:  NewClient,
		logger:     logger.With("component", "connection"),
		state:      StateIdle,
		baseCtx:    context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.policy = reconnect.New(cfg.Reconnect, m.clock)

	return m
}

// Connect opens the socket for the current identity. It returns
// immediately; the dial runs in the background. Connect is a no-op while
// a socket is connecting or open, and cancels any pending retry otherwise.
func (m *Manager) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateConnecting || m.state == StateOpen {
		return nil
	}

	id, ok := m.provider.Current()
	if !ok {
		m.logger.Warn("connect skipped, no client identity")
		return ErrNotAuthenticated
	}

	m.policy.Reset()
	m.baseCtx = context.WithoutCancel(ctx)
	m.dialLocked(id)
	return nil
}

// Disconnect cancels any pending retry and closes the socket with a
// normal closure. It is safe to call in any state and more than once.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.policy.Reset()

	cl := m.client
	m.client = nil
	if m.cancelSock != nil {
		m.cancelSock()
		m.cancelSock = nil
	}

	if cl == nil {
		if m.state != StateClosed {
			m.logger.Info("realtime channel disconnected", "from", m.state.String())
		}
		m.gen++
		m.state = StateClosed
		m.mu.Unlock()
		return
	}

	m.gen++
	gen := m.gen
	m.state = StateClosing
	m.mu.Unlock()

	if err := cl.Close(); err != nil {
		m.logger.Debug("close socket", "error", err)
	}

	m.mu.Lock()
	if m.gen == gen {
		m.state = StateClosed
		m.stats.Closes++
		m.stats.LastCloseCode = websocket.CloseNormalClosure
	}
	m.mu.Unlock()

	m.logger.Info("realtime channel disconnected")
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reconnect returns the reconnect policy state.
func (m *Manager) Reconnect() reconnect.State {
	return m.policy.State()
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.State = m.state
	s.Generation = m.gen
	return s
}

// dialLocked starts a new socket generation. m.mu must be held.
func (m *Manager) dialLocked(id auth.Identity) {
	if m.cancelSock != nil {
		m.cancelSock()
	}
	if m.client != nil {
		go m.client.Close()
	}

	m.gen++
	gen := m.gen

	clientCfg := m.cfg.Client
	clientCfg.URL = BuildURL(m.cfg.WSURL, id.ClientID)

	cl := m.newClient(clientCfg, m.logger.With("generation", gen))
	ctx, cancel := context.WithCancel(m.baseCtx)

	m.client = cl
	m.cancelSock = cancel
	m.state = StateConnecting
	m.stats.Connects++

	m.logger.Info("realtime channel connecting",
		"url", clientCfg.URL,
		"generation", gen,
	)

	go m.run(ctx, gen, cl)
}

// run drives one socket from dial to close.
func (m *Manager) run(ctx context.Context, gen uint64, cl Client) {
	if err := cl.Connect(ctx); err != nil {
		cl.Close()
		m.onError(gen, err)
		m.onClose(gen, websocket.CloseAbnormalClosure, err.Error())
		return
	}

	if !m.onOpen(gen) {
		cl.Close()
		return
	}

	m.sendHandshake(gen, cl)
	m.pump(ctx, gen, cl)
}

// pump forwards frames to the dispatcher until the socket ends or the
// generation is replaced. Dispatch happens without m.mu held.
func (m *Manager) pump(ctx context.Context, gen uint64, cl Client) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-cl.Messages():
			if !m.current(gen) {
				return
			}
			m.dispatch(gen, msg)

		case err := <-cl.Errors():
			m.drain(gen, cl)
			// The socket is already dead; Close releases the keepalive
			// loop and the underlying conn.
			cl.Close()

			code, reason := CloseCode(err)
			var ce *websocket.CloseError
			if !errors.As(err, &ce) {
				m.onError(gen, err)
			}
			m.onClose(gen, code, reason)
			return
		}
	}
}

// drain delivers frames that were buffered before the read loop ended.
func (m *Manager) drain(gen uint64, cl Client) {
	for {
		select {
		case msg := <-cl.Messages():
			if !m.current(gen) {
				return
			}
			m.dispatch(gen, msg)
		default:
			return
		}
	}
}

func (m *Manager) dispatch(gen uint64, msg TimestampedMessage) {
	m.dispatcher.Dispatch(RawMessage{
		Data:       msg.Data,
		ReceivedAt: msg.ReceivedAt,
		Generation: gen,
	})
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

func (m *Manager) onOpen(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		return false
	}

	m.state = StateOpen
	m.stats.Opens++
	m.policy.Reset()

	m.logger.Info("realtime channel open", "generation", gen)
	return true
}

func (m *Manager) sendHandshake(gen uint64, cl Client) {
	id, ok := m.provider.Current()
	if !ok || id.Token == "" {
		m.logger.Debug("no token, handshake skipped", "generation", gen)
		return
	}

	data, err := json.Marshal(message.NewHandshake(id.Token, id.OrganizationID))
	if err != nil {
		m.logger.Error("marshal handshake", "error", err)
		return
	}

	if err := cl.Send(data); err != nil {
		m.logger.Warn("send handshake", "error", err, "generation", gen)
		return
	}

	m.mu.Lock()
	m.stats.HandshakesSent++
	m.mu.Unlock()
}

func (m *Manager) onError(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		return
	}

	m.state = StateFailed
	m.stats.Errors++
	m.logger.Warn("realtime channel error", "error", err, "generation", gen)
}

func (m *Manager) onClose(gen uint64, code int, reason string) {
	m.mu.Lock()

	if m.gen != gen {
		m.mu.Unlock()
		return
	}

	m.state = StateClosed
	m.stats.Closes++
	m.stats.LastCloseCode = code
	m.client = nil
	if m.cancelSock != nil {
		m.cancelSock()
		m.cancelSock = nil
	}

	if code == websocket.CloseNormalClosure {
		m.logger.Info("realtime channel closed", "code", code, "reason", reason)
		m.mu.Unlock()
		return
	}

	delay, ok := m.policy.Schedule(func() { m.retry(gen) })
	if ok {
		m.stats.RetriesScheduled++
		m.logger.Info("realtime channel closed, reconnect scheduled",
			"code", code,
			"reason", reason,
			"delay", delay,
			"attempt", m.policy.State().Attempt,
		)
		m.mu.Unlock()
		return
	}

	m.state = StateFailed
	attempts := m.policy.MaxAttempts()
	m.logger.Error("realtime channel lost, giving up",
		"code", code,
		"reason", reason,
		"attempts", attempts,
	)
	m.mu.Unlock()

	m.sink.Notify(notify.Notification{
		Level:      notify.LevelError,
		Title:      "Connection lost",
		Message:    fmt.Sprintf("Realtime updates stopped after %d reconnect attempts", attempts),
		Persistent: true,
	})
}

// retry fires from the reconnect timer armed by generation gen.
func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen || m.state != StateClosed {
		return
	}

	id, ok := m.provider.Current()
	if !ok {
		m.logger.Warn("reconnect skipped, no client identity")
		return
	}

	m.dialLocked(id)
}

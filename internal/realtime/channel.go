// Package realtime assembles the realtime update channel: a subscription
// registry, the router that feeds it and the connection manager that
// feeds the router.
//
//	ch := realtime.New(cfg, session, realtime.WithLogger(logger))
//	sub := subscription.On(ch.Registry(), func(u message.PipelineFrameUpdate) { ... })
//	defer sub.Unsubscribe()
//	go ch.FollowAuth(ctx, session)
package realtime

import (
	"context"
	"log/slog"

	"github.com/aios-edge/fleet-realtime/internal/auth"
	"github.com/aios-edge/fleet-realtime/internal/clock"
	"github.com/aios-edge/fleet-realtime/internal/connection"
	"github.com/aios-edge/fleet-realtime/internal/message"
	"github.com/aios-edge/fleet-realtime/internal/notify"
	"github.com/aios-edge/fleet-realtime/internal/reconnect"
	"github.com/aios-edge/fleet-realtime/internal/router"
	"github.com/aios-edge/fleet-realtime/internal/subscription"
)

// Stats combines the component statistics.
type Stats struct {
	Connection connection.ManagerStats
	Router     router.RouterStats
	Reconnect  reconnect.State
}

type options struct {
	logger        *slog.Logger
	sink          notify.Sink
	clock         clock.Clock
	clientFactory connection.ClientFactory
}

// Option customizes a Channel.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithNotifier sets the user notification sink. The default logs them.
func WithNotifier(s notify.Sink) Option { return func(o *options) { o.sink = s } }

// WithClock sets the clock used for reconnect timers.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithClientFactory replaces the WebSocket client implementation.
func WithClientFactory(f connection.ClientFactory) Option {
	return func(o *options) { o.clientFactory = f }
}

// Channel is the realtime update channel.
type Channel struct {
	registry *subscription.Registry
	router   *router.Router
	manager  *connection.Manager
	logger   *slog.Logger
}

// New wires a Channel. It does not connect.
func New(cfg connection.ManagerConfig, provider auth.Provider, opts ...Option) *Channel {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.sink == nil {
		o.sink = notify.NewLogSink(o.logger)
	}

	mgrOpts := []connection.ManagerOption{connection.WithNotifier(o.sink)}
	if o.clock != nil {
		mgrOpts = append(mgrOpts, connection.WithClock(o.clock))
	}
	if o.clientFactory != nil {
		mgrOpts = append(mgrOpts, connection.WithClientFactory(o.clientFactory))
	}

	reg := subscription.NewRegistry()
	rt := router.NewRouter(reg, o.sink, o.logger)

	return &Channel{
		registry: reg,
		router:   rt,
		manager:  connection.NewManager(cfg, provider, rt, o.logger, mgrOpts...),
		logger:   o.logger.With("component", "realtime"),
	}
}

// Registry returns the subscription registry, for use with subscription.On.
func (c *Channel) Registry() *subscription.Registry { return c.registry }

// Subscribe registers h for kind.
func (c *Channel) Subscribe(kind message.Kind, h subscription.Handler) *subscription.Subscription {
	return c.registry.Subscribe(kind, h)
}

// Connect opens the channel for the provider's current identity.
func (c *Channel) Connect(ctx context.Context) error { return c.manager.Connect(ctx) }

// Disconnect closes the channel and cancels any pending retry.
func (c *Channel) Disconnect() { c.manager.Disconnect() }

// State returns the connection state.
func (c *Channel) State() connection.State { return c.manager.State() }

// Stats returns the component statistics.
func (c *Channel) Stats() Stats {
	return Stats{
		Connection: c.manager.Stats(),
		Router:     c.router.Stats(),
		Reconnect:  c.manager.Reconnect(),
	}
}

// FollowAuth keeps the channel in step with the session: it connects
// while the session is logged in, reconnects when the identity changes,
// and disconnects on logout. It returns when ctx is done, after
// disconnecting.
func (c *Channel) FollowAuth(ctx context.Context, s *auth.Session) error {
	changes := s.Changes()

	var last auth.Identity
	apply := func() {
		id, ok := s.Current()
		if !ok {
			last = auth.Identity{}
			if c.manager.State() != connection.StateIdle {
				c.manager.Disconnect()
			}
			return
		}
		if last != (auth.Identity{}) && id != last {
			c.logger.Info("identity changed, reconnecting", "client_id", id.ClientID)
			c.manager.Disconnect()
		}
		last = id
		if err := c.manager.Connect(ctx); err != nil {
			c.logger.Warn("connect failed", "error", err)
		}
	}

	apply()
	for {
		select {
		case <-ctx.Done():
			c.manager.Disconnect()
			return ctx.Err()
		case <-changes:
			apply()
		}
	}
}

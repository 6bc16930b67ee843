package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aios-edge/fleet-realtime/internal/auth"
	"github.com/aios-edge/fleet-realtime/internal/connection"
	"github.com/aios-edge/fleet-realtime/internal/reconnect"
)

// Config is the root configuration.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Connection ConnectionConfig `yaml:"connection"`
	Reconnect  ReconnectConfig  `yaml:"reconnect"`
	Database   DatabaseConfig   `yaml:"database"`
	Writer     WriterConfig     `yaml:"writer"`
	Health     HealthConfig     `yaml:"health"`
	Log        LogConfig        `yaml:"log"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the dashboard backend address.
type ServerConfig struct {
	WSURL string `yaml:"ws_url"` // Base socket address; the client id is appended
}

// AuthConfig holds the client identity.
type AuthConfig struct {
	ClientID       string `yaml:"client_id"`
	Token          string `yaml:"token"`
	TokenFile      string `yaml:"token_file"` // Read when token is empty
	OrganizationID string `yaml:"organization_id"`
}

// ConnectionConfig holds WebSocket client settings.
type ConnectionConfig struct {
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
}

// ReconnectConfig holds the retry policy.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// DatabaseConfig holds the TimescaleDB connection for aggregate snapshots.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WriterConfig holds the stats writer settings.
type WriterConfig struct {
	Enabled       bool          `yaml:"enabled"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Table         string        `yaml:"table"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ManagerConfig converts the connection sections for connection.NewManager.
func (c *Config) ManagerConfig() connection.ManagerConfig {
	return connection.ManagerConfig{
		WSURL: c.Server.WSURL,
		Client: connection.ClientConfig{
			PingInterval:     c.Connection.PingInterval,
			PingTimeout:      c.Connection.PingTimeout,
			WriteTimeout:     c.Connection.WriteTimeout,
			HandshakeTimeout: c.Connection.HandshakeTimeout,
			BufferSize:       c.Connection.BufferSize,
		},
		Reconnect: reconnect.Config{
			BaseDelay:   c.Reconnect.BaseDelay,
			MaxAttempts: c.Reconnect.MaxAttempts,
		},
	}
}

// Identity builds the client identity, reading the token file if needed.
func (c *Config) Identity() (auth.Identity, error) {
	return auth.LoadIdentity(c.Auth.ClientID, c.Auth.Token, c.Auth.TokenFile, c.Auth.OrganizationID)
}

// NewLogger builds a logger writing to w. A nil w writes to stdout.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: l.level()}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (l LogConfig) level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

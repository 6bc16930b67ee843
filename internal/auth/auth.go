// Package auth provides the client identity and bearer token used by the
// realtime channel.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrNoIdentity is returned when no client identity is available.
var ErrNoIdentity = errors.New("no client identity")

// Identity is what the channel needs to connect and authenticate.
type Identity struct {
	ClientID       string // path segment of the socket address
	Token          string // bearer token sent in the handshake; may be empty
	OrganizationID string
}

// Valid reports whether the identity can be used to connect.
func (id Identity) Valid() bool { return id.ClientID != "" }

// Provider yields the current identity.
type Provider interface {
	Current() (Identity, bool)
}

// Static is a Provider with a fixed identity.
type Static Identity

// Current implements Provider.
func (s Static) Current() (Identity, bool) {
	id := Identity(s)
	return id, id.Valid()
}

// LoadIdentity builds an identity from configuration values. When token
// is empty and tokenFile is set, the token is read from the file.
func LoadIdentity(clientID, token, tokenFile, organizationID string) (Identity, error) {
	if clientID == "" {
		return Identity{}, fmt.Errorf("client ID is required")
	}

	if token == "" && tokenFile != "" {
		var err error
		token, err = LoadToken(tokenFile)
		if err != nil {
			return Identity{}, fmt.Errorf("load token: %w", err)
		}
	}

	return Identity{
		ClientID:       clientID,
		Token:          token,
		OrganizationID: organizationID,
	}, nil
}

// LoadToken reads a bearer token from a file. Surrounding whitespace and
// an optional "Bearer " prefix are removed.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return token, nil
}

// Session is a Provider whose identity changes on login and logout.
type Session struct {
	mu        sync.RWMutex
	identity  Identity
	loggedIn  bool
	listeners []chan struct{}
}

// NewSession creates a logged-out session.
func NewSession() *Session {
	return &Session{}
}

// Current implements Provider.
func (s *Session) Current() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.loggedIn
}

// Login replaces the identity and signals listeners.
func (s *Session) Login(id Identity) error {
	if !id.Valid() {
		return ErrNoIdentity
	}

	s.mu.Lock()
	s.identity = id
	s.loggedIn = true
	s.mu.Unlock()

	s.signal()
	return nil
}

// Logout clears the identity and signals listeners. Logging out of a
// logged-out session does nothing.
func (s *Session) Logout() {
	s.mu.Lock()
	if !s.loggedIn {
		s.mu.Unlock()
		return
	}
	s.identity = Identity{}
	s.loggedIn = false
	s.mu.Unlock()

	s.signal()
}

// Changes returns a channel that receives a value after every login or
// logout. Signals are coalesced: a slow reader sees at least one signal
// after the latest change and should call Current to read the state.
func (s *Session) Changes() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.listeners = append(s.listeners, ch)
	s.mu.Unlock()
	return ch
}

func (s *Session) signal() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

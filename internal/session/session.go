// Package session owns the authenticated session lifecycle: login probes the
// backend with the supplied admin secret, a successful probe spins up a panel
// with its poller, and logout (or a superseding login) tears the poller down.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"dispen-agua-admin/internal/backend"
	"dispen-agua-admin/internal/panel"
)

// Session is one authenticated panel instance. The cancel func releases the
// poller, the only long-lived resource a session owns.
type Session struct {
	Token  string
	Panel  *panel.Panel
	cancel context.CancelFunc
}

// Manager holds at most one active session. Logging in again replaces (and
// tears down) the previous session; this is a single-operator tool.
type Manager struct {
	baseURL       string
	timeout       time.Duration
	paymentsLimit int
	pollInterval  time.Duration

	// OnPayments is handed to every session's poller.
	OnPayments func(ctx context.Context, payments []backend.Payment)

	mu      sync.Mutex
	current *Session
}

// NewManager creates a session manager for the given backend.
func NewManager(baseURL string, timeout time.Duration, paymentsLimit int, pollInterval time.Duration) *Manager {
	return &Manager{
		baseURL:       baseURL,
		timeout:       timeout,
		paymentsLimit: paymentsLimit,
		pollInterval:  pollInterval,
	}
}

// Login validates the admin secret by listing dispensers. An invalid secret
// or unreachable backend fails the login and leaves no session behind. On
// success the panel poller starts immediately, bound to the session's
// lifetime, and the session token is returned.
func (m *Manager) Login(ctx context.Context, secret string) (string, error) {
	client := backend.New(m.baseURL, secret, m.timeout)
	if _, err := client.ListDispensers(ctx); err != nil {
		return "", err
	}

	p := panel.New(client, m.paymentsLimit)
	poller := panel.NewPoller(p, m.pollInterval)
	poller.OnPayments = m.OnPayments

	pollCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		Token:  uuid.NewString(),
		Panel:  p,
		cancel: cancel,
	}

	m.mu.Lock()
	if m.current != nil {
		log.Printf("superseding active session %s", m.current.Token)
		m.current.cancel()
	}
	m.current = s
	m.mu.Unlock()

	go poller.Run(pollCtx)
	return s.Token, nil
}

// Get returns the active session when the token matches.
func (m *Manager) Get(token string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || token == "" || m.current.Token != token {
		return nil, false
	}
	return m.current, true
}

// Logout tears down the session identified by token. Unknown tokens are a
// no-op.
func (m *Manager) Logout(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.Token != token {
		return false
	}
	m.current.cancel()
	m.current = nil
	return true
}

// Shutdown tears down whatever session is active.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.cancel()
		m.current = nil
	}
}

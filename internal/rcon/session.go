// Package rcon manages the optional remote-console session of a running
// instance. Connection failures are never fatal to the instance: RCON is an
// extra capability, not a startup requirement.
package rcon

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	gorcon "github.com/gorcon/rcon"
)

// DefaultMaxAttempts is the connection retry budget.
const DefaultMaxAttempts = 3

// DefaultBaseDelay is the first backoff interval; it doubles on each retry.
const DefaultBaseDelay = time.Second

// Config describes how to reach a server's remote console.
type Config struct {
	Address     string
	Password    string
	MaxAttempts uint64
	BaseDelay   time.Duration
	DialTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	return c
}

// Manager owns at most one live session. It is safe for concurrent use; the
// log pump establishes the session while API handlers may execute commands.
type Manager struct {
	mu   sync.Mutex
	conn *gorcon.Conn
}

// NewManager returns a manager with no session.
func NewManager() *Manager {
	return &Manager{}
}

// Establish dials the remote console, retrying up to the configured budget
// with exponential backoff. On success the session replaces any previous one.
// On exhaustion the manager is left without a session and the error describes
// the last attempt.
func (m *Manager) Establish(cfg Config) error {
	cfg = cfg.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = cfg.BaseDelay * time.Duration(1<<cfg.MaxAttempts)
	bo.MaxElapsedTime = 0

	attempt := 0
	var conn *gorcon.Conn
	operation := func() error {
		attempt++
		c, err := gorcon.Dial(cfg.Address, cfg.Password,
			gorcon.SetDialTimeout(cfg.DialTimeout))
		if err != nil {
			slog.Warn("rcon connection attempt failed",
				"address", cfg.Address, "attempt", attempt, "max", cfg.MaxAttempts, "error", err)
			return err
		}
		conn = c
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithMaxRetries(bo, cfg.MaxAttempts-1)); err != nil {
		return fmt.Errorf("rcon unreachable after %d attempts: %w", cfg.MaxAttempts, err)
	}

	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
	}
	m.conn = conn
	m.mu.Unlock()

	slog.Info("rcon session established", "address", cfg.Address)
	return nil
}

// Active reports whether a session is currently held.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Execute runs a command over the session.
func (m *Manager) Execute(command string) (string, error) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return "", fmt.Errorf("no active rcon session")
	}
	return conn.Execute(command)
}

// Discard tears the session down, ignoring close errors. Safe to call when
// no session exists.
func (m *Manager) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

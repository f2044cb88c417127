package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coinnovac/hazelnut/internal/platform/notify"
	"github.com/coinnovac/hazelnut/pkg/logger"
)

// Config holds configuration for the connection session
type Config struct {
	// ProviderWaitTimeout bounds how long Restore waits for the provider
	// to become reachable
	ProviderWaitTimeout time.Duration

	// ProviderPollInterval is the readiness probe spacing within that window
	ProviderPollInterval time.Duration

	// MaxReconnectAttempts is the automatic retry ceiling per error episode
	MaxReconnectAttempts int

	// ReconnectBaseDelay is multiplied by the attempt number (linear backoff)
	ReconnectBaseDelay time.Duration
}

// DefaultConfig returns the default session configuration
func DefaultConfig() *Config {
	return &Config{
		ProviderWaitTimeout:  5 * time.Second,
		ProviderPollInterval: 100 * time.Millisecond,
		MaxReconnectAttempts: 3,
		ReconnectBaseDelay:   time.Second,
	}
}

// Validate normalizes invalid values to defaults
func (c *Config) Validate() error {
	if c.ProviderWaitTimeout <= 0 {
		c.ProviderWaitTimeout = 5 * time.Second
	}
	if c.ProviderPollInterval <= 0 {
		c.ProviderPollInterval = 100 * time.Millisecond
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 3
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = time.Second
	}
	return nil
}

// Manager owns the lifecycle of a single logical wallet connection. All
// state transitions are serialized: listeners see every transition exactly
// once, in registration order, never concurrently.
//
// A generation counter tracks which logical session is current; results
// that arrive for a superseded generation (after disconnect or a fresh
// connect) are discarded instead of being applied.
type Manager struct {
	config   *Config
	provider Provider
	notifier notify.Notifier
	logger   *logger.Logger

	mu        sync.Mutex
	state     State
	listeners []Listener
	gen       uint64
	rec       reconnector
}

// NewManager creates a connection session manager and attaches itself to
// the provider's status/error callbacks.
func NewManager(config *Config, provider Provider, notifier notify.Notifier, log *logger.Logger) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	_ = config.Validate()

	m := &Manager{
		config:   config,
		provider: provider,
		notifier: notifier,
		logger:   log.WithField("component", "session"),
		state:    State{Status: StatusDisconnected},
	}
	provider.SetHandlers(m.handleProviderStatus, m.handleProviderError)
	return m
}

// State returns a snapshot of the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStatusChange registers a listener for state transitions. Listeners are
// invoked in registration order on the transition path.
func (m *Manager) OnStatusChange(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Generation identifies the current logical session. It changes on every
// connect/disconnect; callers use it to detect superseded results.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Restore attempts to resume a previously authorized session without user
// interaction. It waits for the provider to become reachable, bounded by
// ProviderWaitTimeout, then asks it for an existing authorization. The
// session stays Disconnected when there is none. A restore result arriving
// after a disconnect or a fresh connect is discarded, like any other
// superseded result.
func (m *Manager) Restore(ctx context.Context) error {
	if err := m.awaitProvider(ctx); err != nil {
		m.logger.Warn("provider not reachable, skipping session restore", "error", err)
		return err
	}

	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	info, err := m.provider.RestoreConnection(ctx)
	if err != nil {
		m.logger.Warn("session restore failed", "error", err)
		return fmt.Errorf("restore connection: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		m.logger.Warn("discarding restore result for superseded session")
		return ErrSessionSuperseded
	}
	if info == nil {
		m.logger.Debug("no prior wallet authorization to restore")
		return nil
	}
	m.rec.reset()
	m.setStateLocked(State{Status: StatusConnected, WalletAddress: info.Address, Chain: info.Chain})
	m.logger.Info("wallet session restored", "wallet_address", info.Address, "chain", info.Chain)
	return nil
}

// Connect triggers the provider's connection handshake. User cancellation
// returns the session to Disconnected without scheduling retries; other
// failures enter the Error state and arm the reconnection policy.
func (m *Manager) Connect(ctx context.Context) (State, error) {
	m.mu.Lock()
	if m.state.Status == StatusConnecting {
		st := m.state
		m.mu.Unlock()
		return st, ErrAlreadyConnecting
	}
	m.rec.cancel()
	m.gen++
	gen := m.gen
	m.setStateLocked(State{Status: StatusConnecting})
	m.mu.Unlock()

	info, err := m.provider.Connect(ctx)
	return m.completeConnect(ctx, gen, info, err)
}

// completeConnect applies a handshake result, unless the session moved on
// while the provider call was in flight.
func (m *Manager) completeConnect(ctx context.Context, gen uint64, info *WalletInfo, err error) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		return m.state, ErrSessionSuperseded
	}

	switch {
	case err == nil:
		m.rec.reset()
		m.setStateLocked(State{Status: StatusConnected, WalletAddress: info.Address, Chain: info.Chain})
		m.logger.Info("wallet connected", "wallet_address", info.Address, "chain", info.Chain)
		m.notifier.Notify(ctx, notify.LevelSuccess, "Wallet connected successfully!")
		return m.state, nil

	case errors.Is(err, ErrUserCancelled):
		// Not an error eligible for automatic retry
		m.setStateLocked(State{Status: StatusDisconnected, Reason: "cancelled"})
		m.logger.Info("wallet connection cancelled by user")
		m.notifier.Notify(ctx, notify.LevelInfo, "Wallet connection cancelled")
		return m.state, ErrUserCancelled

	default:
		m.setStateLocked(State{Status: StatusError, Reason: err.Error()})
		m.logger.Warn("wallet connection failed", "error", err)
		m.scheduleRetryLocked(gen)
		return m.state, fmt.Errorf("connect: %w", err)
	}
}

// Disconnect tears down the session unconditionally and clears the cached
// wallet address. Calling it while already Disconnected is a no-op.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	m.rec.cancel()
	m.gen++
	if m.state.Status == StatusDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.setStateLocked(State{Status: StatusDisconnected})
	m.mu.Unlock()

	// Best-effort provider teardown; the local session is already gone
	if err := m.provider.Disconnect(ctx); err != nil {
		m.logger.Warn("provider disconnect failed", "error", err)
	}
	m.logger.Info("wallet disconnected")
	return nil
}

// Wallets lists the wallet applications the provider knows about
func (m *Manager) Wallets(ctx context.Context) ([]WalletDescriptor, error) {
	return m.provider.Wallets(ctx)
}

// SendTransaction forwards a transfer request through the active session.
// A result arriving after the session was replaced is discarded with
// ErrSessionSuperseded so it can never reach the ledger.
func (m *Manager) SendTransaction(ctx context.Context, req TransactionRequest) (*TransactionResponse, error) {
	m.mu.Lock()
	if !m.state.Connected() {
		m.mu.Unlock()
		return nil, ErrNotConnected
	}
	gen := m.gen
	m.mu.Unlock()

	resp, err := m.provider.SendTransaction(ctx, req)

	m.mu.Lock()
	superseded := m.gen != gen
	m.mu.Unlock()
	if superseded {
		return nil, ErrSessionSuperseded
	}
	return resp, err
}

// awaitProvider polls the provider's readiness probe until it answers or
// the bounded wait expires.
func (m *Manager) awaitProvider(ctx context.Context) error {
	deadline := time.NewTimer(m.config.ProviderWaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(m.config.ProviderPollInterval)
	defer ticker.Stop()

	for {
		if err := m.provider.Ready(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrProviderUnavailable
		case <-ticker.C:
		}
	}
}

// setStateLocked records a transition and delivers it to every listener.
// Callers must hold m.mu, which is what serializes delivery.
func (m *Manager) setStateLocked(next State) {
	m.state = next
	for _, l := range m.listeners {
		l(next)
	}
}

// handleProviderStatus processes unsolicited status events from the
// provider: a wallet switch, or a drop (info == nil).
func (m *Manager) handleProviderStatus(info *WalletInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if info == nil {
		if m.state.Status == StatusConnected {
			m.gen++
			m.setStateLocked(State{Status: StatusDisconnected, Reason: "provider drop"})
			m.logger.Info("wallet session dropped by provider")
		}
		return
	}

	m.rec.reset()
	m.setStateLocked(State{Status: StatusConnected, WalletAddress: info.Address, Chain: info.Chain})
	m.logger.Info("wallet session updated by provider", "wallet_address", info.Address)
}

// handleProviderError treats a provider-side failure of an established
// session as a transient error and arms the reconnection policy.
func (m *Manager) handleProviderError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Status != StatusConnected {
		return
	}
	m.setStateLocked(State{Status: StatusError, Reason: err.Error()})
	m.logger.Warn("provider reported session error", "error", err)
	m.scheduleRetryLocked(m.gen)
}

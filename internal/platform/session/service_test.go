package session_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinnovac/hazelnut/internal/platform/notify"
	"github.com/coinnovac/hazelnut/internal/platform/session"
	"github.com/coinnovac/hazelnut/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New("development", io.Discard)
}

// =============================================================================
// Fakes
// =============================================================================

// fakeProvider implements session.Provider with programmable behavior
type fakeProvider struct {
	mu sync.Mutex

	readyErr   error
	restore    *session.WalletInfo
	restoreErr error
	restoreFn  func(ctx context.Context) (*session.WalletInfo, error)
	connectFn  func(ctx context.Context) (*session.WalletInfo, error)

	connectCalls    int
	restoreCalls    int
	disconnectCalls int

	onStatus func(*session.WalletInfo)
	onError  func(error)
}

func (p *fakeProvider) Ready(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readyErr
}

func (p *fakeProvider) RestoreConnection(ctx context.Context) (*session.WalletInfo, error) {
	p.mu.Lock()
	p.restoreCalls++
	fn := p.restoreFn
	info, err := p.restore, p.restoreErr
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return info, err
}

func (p *fakeProvider) Connect(ctx context.Context) (*session.WalletInfo, error) {
	p.mu.Lock()
	p.connectCalls++
	fn := p.connectFn
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return &session.WalletInfo{Address: "EQwallet", Chain: "-239"}, nil
}

func (p *fakeProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnectCalls++
	return nil
}

func (p *fakeProvider) Wallets(ctx context.Context) ([]session.WalletDescriptor, error) {
	return nil, nil
}

func (p *fakeProvider) SendTransaction(ctx context.Context, req session.TransactionRequest) (*session.TransactionResponse, error) {
	return &session.TransactionResponse{BOC: "dGVzdA=="}, nil
}

func (p *fakeProvider) SetHandlers(onStatus func(*session.WalletInfo), onError func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStatus = onStatus
	p.onError = onError
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectCalls
}

var _ session.Provider = (*fakeProvider)(nil)

// recordingNotifier captures every notification it receives
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	levels   []notify.Level
}

func (n *recordingNotifier) Notify(ctx context.Context, level notify.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levels = append(n.levels, level)
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) count(level notify.Level) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, l := range n.levels {
		if l == level {
			c++
		}
	}
	return c
}

// stateRecorder captures every transition a listener sees
type stateRecorder struct {
	mu     sync.Mutex
	states []session.State
}

func (r *stateRecorder) listen(st session.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *stateRecorder) statuses() []session.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Status, len(r.states))
	for i, st := range r.states {
		out[i] = st.Status
	}
	return out
}

func newTestManager(p *fakeProvider, n notify.Notifier, cfg *session.Config) *session.Manager {
	if cfg == nil {
		cfg = &session.Config{
			ProviderWaitTimeout:  100 * time.Millisecond,
			ProviderPollInterval: 10 * time.Millisecond,
			MaxReconnectAttempts: 3,
			ReconnectBaseDelay:   10 * time.Millisecond,
		}
	}
	return session.NewManager(cfg, p, n, testLogger())
}

// =============================================================================
// Connect
// =============================================================================

func TestConnect_Success(t *testing.T) {
	provider := &fakeProvider{}
	notifier := &recordingNotifier{}
	m := newTestManager(provider, notifier, nil)

	rec := &stateRecorder{}
	m.OnStatusChange(rec.listen)

	st, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.StatusConnected, st.Status)
	assert.Equal(t, "EQwallet", st.WalletAddress)
	assert.Equal(t, "-239", st.Chain)

	assert.Equal(t, []session.Status{session.StatusConnecting, session.StatusConnected}, rec.statuses())
	assert.Equal(t, 1, notifier.count(notify.LevelSuccess))
}

func TestConnect_WhileConnecting(t *testing.T) {
	release := make(chan struct{})
	provider := &fakeProvider{
		connectFn: func(ctx context.Context) (*session.WalletInfo, error) {
			<-release
			return &session.WalletInfo{Address: "EQwallet"}, nil
		},
	}
	m := newTestManager(provider, &recordingNotifier{}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Connect(context.Background())
	}()

	// Wait until the first attempt is in flight
	require.Eventually(t, func() bool {
		return m.State().Status == session.StatusConnecting
	}, time.Second, time.Millisecond)

	_, err := m.Connect(context.Background())
	assert.ErrorIs(t, err, session.ErrAlreadyConnecting)

	close(release)
	<-done
}

func TestConnect_UserCancelled_NoRetry(t *testing.T) {
	provider := &fakeProvider{
		connectFn: func(ctx context.Context) (*session.WalletInfo, error) {
			return nil, session.ErrUserCancelled
		},
	}
	notifier := &recordingNotifier{}
	m := newTestManager(provider, notifier, nil)

	st, err := m.Connect(context.Background())
	assert.ErrorIs(t, err, session.ErrUserCancelled)
	assert.Equal(t, session.StatusDisconnected, st.Status)
	assert.Equal(t, "cancelled", st.Reason)

	// Cancellation never arms the retry timer
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, provider.calls())
	assert.Equal(t, 0, notifier.count(notify.LevelError))
}

func TestConnect_Superseded(t *testing.T) {
	release := make(chan struct{})
	provider := &fakeProvider{
		connectFn: func(ctx context.Context) (*session.WalletInfo, error) {
			<-release
			return &session.WalletInfo{Address: "EQwallet"}, nil
		},
	}
	m := newTestManager(provider, &recordingNotifier{}, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Connect(context.Background())
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		return m.State().Status == session.StatusConnecting
	}, time.Second, time.Millisecond)

	// The user disconnects while the handshake is still in flight
	require.NoError(t, m.Disconnect(context.Background()))
	close(release)

	assert.ErrorIs(t, <-errCh, session.ErrSessionSuperseded)
	assert.Equal(t, session.StatusDisconnected, m.State().Status)
}

// =============================================================================
// Reconnection policy
// =============================================================================

func TestConnect_FailureRetriesUntilCeiling(t *testing.T) {
	provider := &fakeProvider{
		connectFn: func(ctx context.Context) (*session.WalletInfo, error) {
			return nil, errors.New("bridge unreachable")
		},
	}
	notifier := &recordingNotifier{}
	m := newTestManager(provider, notifier, nil)

	_, err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, session.StatusError, m.State().Status)

	// 3 automatic retries at 10ms, 20ms, 30ms, then give up
	require.Eventually(t, func() bool {
		return m.State().Status == session.StatusDisconnected
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 4, provider.calls()) // initial attempt + 3 retries
	assert.Equal(t, session.ErrConnectionLost.Error(), m.State().Reason)
	assert.Equal(t, 1, notifier.count(notify.LevelError), "give-up notifies exactly once")

	// No further attempts after the ceiling
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 4, provider.calls())
}

func TestConnect_RetrySucceeds(t *testing.T) {
	provider := &fakeProvider{}
	attempt := 0
	provider.connectFn = func(ctx context.Context) (*session.WalletInfo, error) {
		attempt++
		if attempt < 3 {
			return nil, errors.New("bridge unreachable")
		}
		return &session.WalletInfo{Address: "EQwallet", Chain: "-239"}, nil
	}
	m := newTestManager(provider, &recordingNotifier{}, nil)

	_, err := m.Connect(context.Background())
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return m.State().Status == session.StatusConnected
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "EQwallet", m.State().WalletAddress)
}

func TestConnect_RetryDelaysAreLinear(t *testing.T) {
	var stamps []time.Time
	var mu sync.Mutex
	provider := &fakeProvider{
		connectFn: func(ctx context.Context) (*session.WalletInfo, error) {
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
			return nil, errors.New("bridge unreachable")
		},
	}
	base := 40 * time.Millisecond
	m := newTestManager(provider, &recordingNotifier{}, &session.Config{
		ProviderWaitTimeout:  100 * time.Millisecond,
		ProviderPollInterval: 10 * time.Millisecond,
		MaxReconnectAttempts: 2,
		ReconnectBaseDelay:   base,
	})

	_, _ = m.Connect(context.Background())

	require.Eventually(t, func() bool {
		return m.State().Status == session.StatusDisconnected
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamps, 3) // initial + 2 retries

	// First retry after ~1x base, second after ~2x base
	gap1 := stamps[1].Sub(stamps[0])
	gap2 := stamps[2].Sub(stamps[1])
	assert.GreaterOrEqual(t, gap1, base)
	assert.GreaterOrEqual(t, gap2, 2*base)
	assert.Less(t, gap1, 2*base)
}

// =============================================================================
// Disconnect
// =============================================================================

func TestDisconnect_Idempotent(t *testing.T) {
	provider := &fakeProvider{}
	m := newTestManager(provider, &recordingNotifier{}, nil)

	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	rec := &stateRecorder{}
	m.OnStatusChange(rec.listen)

	require.NoError(t, m.Disconnect(context.Background()))
	require.NoError(t, m.Disconnect(context.Background()))
	require.NoError(t, m.Disconnect(context.Background()))

	// Only the first call transitions and reaches the provider
	assert.Equal(t, []session.Status{session.StatusDisconnected}, rec.statuses())
	provider.mu.Lock()
	assert.Equal(t, 1, provider.disconnectCalls)
	provider.mu.Unlock()
}

// =============================================================================
// Restore
// =============================================================================

func TestRestore_ProviderNeverReady(t *testing.T) {
	provider := &fakeProvider{readyErr: session.ErrProviderUnavailable}
	m := newTestManager(provider, &recordingNotifier{}, nil)

	err := m.Restore(context.Background())
	assert.ErrorIs(t, err, session.ErrProviderUnavailable)
	assert.Equal(t, session.StatusDisconnected, m.State().Status)
}

func TestRestore_NoPriorSession(t *testing.T) {
	provider := &fakeProvider{}
	m := newTestManager(provider, &recordingNotifier{}, nil)

	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, session.StatusDisconnected, m.State().Status)
}

func TestRestore_SupersededByDisconnect(t *testing.T) {
	release := make(chan struct{})
	provider := &fakeProvider{
		restoreFn: func(ctx context.Context) (*session.WalletInfo, error) {
			<-release
			return &session.WalletInfo{Address: "EQstale", Chain: "-239"}, nil
		},
	}
	m := newTestManager(provider, &recordingNotifier{}, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Restore(context.Background())
	}()

	require.Eventually(t, func() bool {
		provider.mu.Lock()
		defer provider.mu.Unlock()
		return provider.restoreCalls == 1
	}, time.Second, time.Millisecond)

	// The user disconnects while the provider call is still in flight;
	// the stale authorization must not resurrect the session
	require.NoError(t, m.Disconnect(context.Background()))
	close(release)

	assert.ErrorIs(t, <-errCh, session.ErrSessionSuperseded)
	st := m.State()
	assert.Equal(t, session.StatusDisconnected, st.Status)
	assert.Empty(t, st.WalletAddress)
}

func TestRestore_ResumesSession(t *testing.T) {
	provider := &fakeProvider{
		restore: &session.WalletInfo{Address: "EQrestored", Chain: "-239"},
	}
	m := newTestManager(provider, &recordingNotifier{}, nil)

	require.NoError(t, m.Restore(context.Background()))
	st := m.State()
	assert.Equal(t, session.StatusConnected, st.Status)
	assert.Equal(t, "EQrestored", st.WalletAddress)
}

// =============================================================================
// Provider events
// =============================================================================

func TestProviderDrop_DisconnectsSession(t *testing.T) {
	provider := &fakeProvider{}
	m := newTestManager(provider, &recordingNotifier{}, nil)

	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	provider.onStatus(nil)
	st := m.State()
	assert.Equal(t, session.StatusDisconnected, st.Status)
	assert.Empty(t, st.WalletAddress)
}

func TestProviderDrop_IgnoredWhenDisconnected(t *testing.T) {
	provider := &fakeProvider{}
	m := newTestManager(provider, &recordingNotifier{}, nil)

	rec := &stateRecorder{}
	m.OnStatusChange(rec.listen)

	provider.onStatus(nil)
	assert.Empty(t, rec.statuses())
}

func TestProviderError_ArmsReconnect(t *testing.T) {
	provider := &fakeProvider{}
	m := newTestManager(provider, &recordingNotifier{}, nil)

	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	provider.onError(errors.New("bridge closed the stream"))

	// The session recovers automatically: the fake reconnects first try
	require.Eventually(t, func() bool {
		return m.State().Status == session.StatusConnected
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, provider.calls())
}

// =============================================================================
// SendTransaction
// =============================================================================

func TestSendTransaction_NotConnected(t *testing.T) {
	m := newTestManager(&fakeProvider{}, &recordingNotifier{}, nil)

	_, err := m.SendTransaction(context.Background(), session.TransactionRequest{})
	assert.ErrorIs(t, err, session.ErrNotConnected)
}

func TestSendTransaction_Connected(t *testing.T) {
	m := newTestManager(&fakeProvider{}, &recordingNotifier{}, nil)

	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	resp, err := m.SendTransaction(context.Background(), session.TransactionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "dGVzdA==", resp.BOC)
}

package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinnovac/hazelnut/internal/platform/session"
	"github.com/coinnovac/hazelnut/internal/platform/user"
	"github.com/coinnovac/hazelnut/internal/transport/httpapi/handler"
)

// fakeWalletSession implements handler.SessionInterface
type fakeWalletSession struct {
	state      session.State
	connectErr error
	wallets    []session.WalletDescriptor
}

func (f *fakeWalletSession) State() session.State {
	return f.state
}

func (f *fakeWalletSession) Connect(ctx context.Context) (session.State, error) {
	if f.connectErr != nil {
		return f.state, f.connectErr
	}
	f.state = session.State{Status: session.StatusConnected, WalletAddress: "EQwallet", Chain: "-239"}
	return f.state, nil
}

func (f *fakeWalletSession) Disconnect(ctx context.Context) error {
	f.state = session.State{Status: session.StatusDisconnected}
	return nil
}

func (f *fakeWalletSession) Restore(ctx context.Context) error {
	return nil
}

func (f *fakeWalletSession) Wallets(ctx context.Context) ([]session.WalletDescriptor, error) {
	return f.wallets, nil
}

// fakeLinker records LinkWallet calls
type fakeLinker struct {
	mu      sync.Mutex
	calls   int
	lastID  uuid.UUID
	address string
	err     error
}

func (f *fakeLinker) LinkWallet(ctx context.Context, id uuid.UUID, address string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastID = id
	f.address = address
	if f.err != nil {
		return nil, f.err
	}
	return &user.User{ID: id, WalletAddress: address}, nil
}

func decodeState(t *testing.T, body *httptest.ResponseRecorder) handler.SessionStateResponse {
	t.Helper()
	var st handler.SessionStateResponse
	require.NoError(t, json.NewDecoder(body.Body).Decode(&st))
	return st
}

func TestWalletGetState(t *testing.T) {
	sess := &fakeWalletSession{state: session.State{
		Status:        session.StatusConnected,
		WalletAddress: "EQwallet",
		Chain:         "-239",
	}}
	h := handler.NewWalletHandler(sess, &fakeLinker{})

	w := httptest.NewRecorder()
	h.GetState(w, authedRequest(http.MethodGet, "/api/v1/wallet", ""))

	assert.Equal(t, http.StatusOK, w.Code)
	st := decodeState(t, w)
	assert.Equal(t, "connected", st.Status)
	assert.Equal(t, "EQwallet", st.WalletAddress)
}

func TestWalletConnect_LinksAddress(t *testing.T) {
	sess := &fakeWalletSession{}
	linker := &fakeLinker{}
	h := handler.NewWalletHandler(sess, linker)

	w := httptest.NewRecorder()
	h.Connect(w, authedRequest(http.MethodPost, "/api/v1/wallet/connect", ""))

	assert.Equal(t, http.StatusOK, w.Code)
	st := decodeState(t, w)
	assert.Equal(t, "connected", st.Status)

	assert.Equal(t, 1, linker.calls)
	assert.Equal(t, "EQwallet", linker.address)
}

func TestWalletConnect_LinkFailureStillSucceeds(t *testing.T) {
	sess := &fakeWalletSession{}
	linker := &fakeLinker{err: errors.New("repo down")}
	h := handler.NewWalletHandler(sess, linker)

	w := httptest.NewRecorder()
	h.Connect(w, authedRequest(http.MethodPost, "/api/v1/wallet/connect", ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "connected", decodeState(t, w).Status)
}

func TestWalletConnect_UserCancelled(t *testing.T) {
	sess := &fakeWalletSession{
		state:      session.State{Status: session.StatusDisconnected, Reason: "cancelled"},
		connectErr: session.ErrUserCancelled,
	}
	linker := &fakeLinker{}
	h := handler.NewWalletHandler(sess, linker)

	w := httptest.NewRecorder()
	h.Connect(w, authedRequest(http.MethodPost, "/api/v1/wallet/connect", ""))

	// Cancellation is a normal outcome, not an API failure
	assert.Equal(t, http.StatusOK, w.Code)
	st := decodeState(t, w)
	assert.Equal(t, "disconnected", st.Status)
	assert.Equal(t, "cancelled", st.Reason)
	assert.Equal(t, 0, linker.calls)
}

func TestWalletConnect_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"already connecting", session.ErrAlreadyConnecting, http.StatusConflict},
		{"superseded", session.ErrSessionSuperseded, http.StatusConflict},
		{"provider unavailable", session.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{"other failure", errors.New("bridge exploded"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeWalletSession{connectErr: tt.err}
			h := handler.NewWalletHandler(sess, &fakeLinker{})

			w := httptest.NewRecorder()
			h.Connect(w, authedRequest(http.MethodPost, "/api/v1/wallet/connect", ""))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestWalletDisconnect(t *testing.T) {
	sess := &fakeWalletSession{state: session.State{
		Status:        session.StatusConnected,
		WalletAddress: "EQwallet",
	}}
	h := handler.NewWalletHandler(sess, &fakeLinker{})

	w := httptest.NewRecorder()
	h.Disconnect(w, authedRequest(http.MethodPost, "/api/v1/wallet/disconnect", ""))

	assert.Equal(t, http.StatusOK, w.Code)
	st := decodeState(t, w)
	assert.Equal(t, "disconnected", st.Status)
	assert.Empty(t, st.WalletAddress)
}

func TestWalletCatalog(t *testing.T) {
	sess := &fakeWalletSession{wallets: []session.WalletDescriptor{
		{Name: "Wallet", AppName: "telegram-wallet"},
		{Name: "Tonkeeper", AppName: "tonkeeper"},
	}}
	h := handler.NewWalletHandler(sess, &fakeLinker{})

	w := httptest.NewRecorder()
	h.ListWallets(w, authedRequest(http.MethodGet, "/api/v1/wallet/catalog", ""))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Wallets []session.WalletDescriptor `json:"wallets"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Wallets, 2)
}

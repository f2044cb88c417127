package tonbridge_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinnovac/hazelnut/internal/infra/gateway/tonbridge"
	"github.com/coinnovac/hazelnut/internal/platform/session"
	"github.com/coinnovac/hazelnut/pkg/logger"
	"github.com/coinnovac/hazelnut/pkg/money"
)

func testLogger() *logger.Logger {
	return logger.New("development", io.Discard)
}

func newClient(baseURL string) *tonbridge.Client {
	c := tonbridge.NewClient(baseURL, testLogger())
	c.SetBaseURL(baseURL)
	return c
}

// =============================================================================
// RestoreConnection
// =============================================================================

func TestRestoreConnection_ExistingSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/session", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"connected":true,"wallet":{"address":"EQabc","chain":"-239","app_name":"tonkeeper"}}`))
	}))
	defer server.Close()

	info, err := newClient(server.URL).RestoreConnection(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "EQabc", info.Address)
	assert.Equal(t, "-239", info.Chain)
}

func TestRestoreConnection_NoSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"connected":false}`))
	}))
	defer server.Close()

	info, err := newClient(server.URL).RestoreConnection(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestRestoreConnection_BridgeDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	server.Close() // refuse connections

	_, err := newClient(server.URL).RestoreConnection(context.Background())
	assert.ErrorIs(t, err, session.ErrProviderUnavailable)
}

// =============================================================================
// Connect
// =============================================================================

func TestConnect_Approved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/session/connect", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"connected":true,"wallet":{"address":"EQabc","chain":"-239"}}`))
	}))
	defer server.Close()

	info, err := newClient(server.URL).Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EQabc", info.Address)
}

func TestConnect_UserDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":300,"message":"user declined the connection"}`))
	}))
	defer server.Close()

	_, err := newClient(server.URL).Connect(context.Background())
	assert.ErrorIs(t, err, session.ErrUserCancelled)
}

func TestConnect_BridgeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`boom`))
	}))
	defer server.Close()

	_, err := newClient(server.URL).Connect(context.Background())
	assert.ErrorIs(t, err, session.ErrProviderUnavailable)
}

// =============================================================================
// SendTransaction
// =============================================================================

func TestSendTransaction_Signed(t *testing.T) {
	var received session.TransactionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/transaction", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"boc":"dGVzdC1ib2M="}`))
	}))
	defer server.Close()

	req := session.TransactionRequest{
		Messages: []session.TransferMessage{{
			Address: "EQtreasury",
			Amount:  money.NewBigIntFromInt64(1_500_000_000),
		}},
		ValidUntil: 1900000000,
	}

	resp, err := newClient(server.URL).SendTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "dGVzdC1ib2M=", resp.BOC)

	// Amounts cross the wire as decimal strings
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "1500000000", received.Messages[0].Amount.String())
	assert.Equal(t, int64(1900000000), received.ValidUntil)
}

func TestSendTransaction_UserRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":300,"message":"user rejected the transaction"}`))
	}))
	defer server.Close()

	_, err := newClient(server.URL).SendTransaction(context.Background(), session.TransactionRequest{})
	assert.ErrorIs(t, err, session.ErrUserRejected)
}

// =============================================================================
// Events
// =============================================================================

func TestPollEvents_DispatchesStatusAndError(t *testing.T) {
	first := true
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if first {
			first = false
			w.Write([]byte(`{"events":[` +
				`{"type":"status","wallet":{"address":"EQabc","chain":"-239"}},` +
				`{"type":"status"},` +
				`{"type":"error","message":"bridge restarting"}]}`))
			return
		}
		<-block // hold subsequent polls open
		w.Write([]byte(`{"events":[]}`))
	}))
	defer server.Close()
	defer close(block)

	var mu sync.Mutex
	var statuses []*session.WalletInfo
	var errs []error

	client := newClient(server.URL)
	client.SetHandlers(
		func(info *session.WalletInfo) {
			mu.Lock()
			statuses = append(statuses, info)
			mu.Unlock()
		},
		func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	go client.PollEvents(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == 2 && len(errs) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "EQabc", statuses[0].Address)
	assert.Nil(t, statuses[1], "a drop event carries no wallet")
	assert.ErrorIs(t, errs[0], session.ErrConnectionLost)
}

// =============================================================================
// Ready
// =============================================================================

func TestReady_CachesPositiveProbe(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		hits++
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newClient(server.URL)
	require.NoError(t, client.Ready(context.Background()))
	require.NoError(t, client.Ready(context.Background()))
	assert.Equal(t, 1, hits)
}

func TestReady_BridgeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	err := newClient(server.URL).Ready(context.Background())
	assert.ErrorIs(t, err, session.ErrProviderUnavailable)
}

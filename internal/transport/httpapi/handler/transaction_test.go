package handler_test

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinnovac/hazelnut/internal/platform/ledger"
	"github.com/coinnovac/hazelnut/internal/platform/session"
	"github.com/coinnovac/hazelnut/internal/platform/submit"
	"github.com/coinnovac/hazelnut/internal/transport/httpapi/handler"
	"github.com/coinnovac/hazelnut/internal/transport/httpapi/middleware"
)

func connectedWalletState() *fakeWalletSession {
	return &fakeWalletSession{state: session.State{
		Status:        session.StatusConnected,
		WalletAddress: "EQuserwallet",
	}}
}

type fakeSubmitter struct {
	receipt *submit.Receipt
	err     error
	last    submit.Intent
	calls   int
}

func (f *fakeSubmitter) Submit(ctx context.Context, owner string, intent submit.Intent) (*submit.Receipt, error) {
	f.calls++
	f.last = intent
	return f.receipt, f.err
}

type fakeTxLedger struct {
	portfolio *ledger.Portfolio
	unclaimed *big.Int
}

func (f *fakeTxLedger) Portfolio(ctx context.Context, owner string) (*ledger.Portfolio, error) {
	if f.portfolio != nil {
		return f.portfolio, nil
	}
	return ledger.NewPortfolio(), nil
}

func (f *fakeTxLedger) UnclaimedProfit(ctx context.Context, owner string) (*big.Int, error) {
	if f.unclaimed != nil {
		return f.unclaimed, nil
	}
	return big.NewInt(0), nil
}

func authedRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(r.Context(), middleware.UserIDKey, uuid.New())
	return r.WithContext(ctx)
}

func TestBuy_ConvertsDecimalTONToNano(t *testing.T) {
	sub := &fakeSubmitter{receipt: &submit.Receipt{RecordID: uuid.New(), TxHash: "hash"}}
	h := handler.NewTransactionHandler(sub, &fakeTxLedger{}, connectedWalletState(), "EQtreasury")

	rr := httptest.NewRecorder()
	h.Buy(rr, authedRequest(http.MethodPost, "/transactions/buy", `{"amount":"1.5"}`))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, ledger.RecordTypeBuy, sub.last.Kind)
	assert.Equal(t, "1500000000", sub.last.AmountNano.String())
	assert.Equal(t, "EQtreasury", sub.last.TargetAddress)
}

func TestBuy_RejectsBadAmounts(t *testing.T) {
	cases := []string{
		`{"amount":""}`,
		`{"amount":"abc"}`,
		`{}`,
		`not json`,
	}
	for _, body := range cases {
		sub := &fakeSubmitter{}
		h := handler.NewTransactionHandler(sub, &fakeTxLedger{}, connectedWalletState(), "EQtreasury")

		rr := httptest.NewRecorder()
		h.Buy(rr, authedRequest(http.MethodPost, "/transactions/buy", body))

		assert.Equal(t, http.StatusBadRequest, rr.Code, "body: %s", body)
		assert.Equal(t, 0, sub.calls)
	}
}

func TestBuy_RequiresAuth(t *testing.T) {
	h := handler.NewTransactionHandler(&fakeSubmitter{}, &fakeTxLedger{}, connectedWalletState(), "EQtreasury")

	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/transactions/buy", strings.NewReader(`{"amount":"1"}`))
	h.Buy(rr, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBuy_SubmitErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{submit.ErrNotConnected, http.StatusConflict},
		{submit.ErrAlreadyPending, http.StatusConflict},
		{submit.ErrTimeout, http.StatusGatewayTimeout},
		{submit.ErrProviderFailure, http.StatusBadGateway},
	}
	for _, tc := range cases {
		h := handler.NewTransactionHandler(&fakeSubmitter{err: tc.err}, &fakeTxLedger{}, connectedWalletState(), "EQtreasury")

		rr := httptest.NewRecorder()
		h.Buy(rr, authedRequest(http.MethodPost, "/transactions/buy", `{"amount":"1"}`))
		assert.Equal(t, tc.code, rr.Code, "error: %v", tc.err)
	}
}

func TestClaim_UsesUnclaimedTotal(t *testing.T) {
	sub := &fakeSubmitter{receipt: &submit.Receipt{RecordID: uuid.New(), TxHash: "hash"}}
	ldg := &fakeTxLedger{unclaimed: big.NewInt(750_000_000)}
	h := handler.NewTransactionHandler(sub, ldg, connectedWalletState(), "EQtreasury")

	rr := httptest.NewRecorder()
	h.Claim(rr, authedRequest(http.MethodPost, "/transactions/claim", ""))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, ledger.RecordTypeClaim, sub.last.Kind)
	assert.Equal(t, "750000000", sub.last.AmountNano.String())
	assert.Equal(t, "EQuserwallet", sub.last.TargetAddress)
}

func TestClaim_RequiresConnectedWallet(t *testing.T) {
	sub := &fakeSubmitter{}
	ldg := &fakeTxLedger{unclaimed: big.NewInt(750_000_000)}
	h := handler.NewTransactionHandler(sub, ldg, &fakeWalletSession{}, "EQtreasury")

	rr := httptest.NewRecorder()
	h.Claim(rr, authedRequest(http.MethodPost, "/transactions/claim", ""))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 0, sub.calls)
}

func TestClaim_NothingToClaim(t *testing.T) {
	sub := &fakeSubmitter{}
	h := handler.NewTransactionHandler(sub, &fakeTxLedger{}, connectedWalletState(), "EQtreasury")

	rr := httptest.NewRecorder()
	h.Claim(rr, authedRequest(http.MethodPost, "/transactions/claim", ""))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 0, sub.calls)
}

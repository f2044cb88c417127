package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/coinnovac/hazelnut/internal/platform/ledger"
	"github.com/coinnovac/hazelnut/internal/platform/session"
	"github.com/coinnovac/hazelnut/internal/platform/submit"
	"github.com/coinnovac/hazelnut/internal/transport/httpapi/middleware"
	"github.com/coinnovac/hazelnut/pkg/money"
)

// SubmitterInterface defines the transaction submission operations
type SubmitterInterface interface {
	Submit(ctx context.Context, owner string, intent submit.Intent) (*submit.Receipt, error)
}

// TransactionLedgerInterface defines the ledger reads needed by TransactionHandler
type TransactionLedgerInterface interface {
	Portfolio(ctx context.Context, owner string) (*ledger.Portfolio, error)
	UnclaimedProfit(ctx context.Context, owner string) (*big.Int, error)
}

// SessionStateInterface reports the current wallet session state
type SessionStateInterface interface {
	State() session.State
}

// TransactionHandler handles transaction HTTP requests
type TransactionHandler struct {
	submitter SubmitterInterface
	ledger    TransactionLedgerInterface
	session   SessionStateInterface
	treasury  string
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(submitter SubmitterInterface, ldg TransactionLedgerInterface, sess SessionStateInterface, treasuryAddress string) *TransactionHandler {
	return &TransactionHandler{
		submitter: submitter,
		ledger:    ldg,
		session:   sess,
		treasury:  treasuryAddress,
	}
}

// BuyRequest represents the buy request body. Amount is a decimal TON
// string, e.g. "1.5".
type BuyRequest struct {
	Amount string `json:"amount"`
}

// ReceiptResponse represents a resolved transaction submission
type ReceiptResponse struct {
	RecordID string `json:"record_id"`
	TxHash   string `json:"tx_hash"`
}

// Buy handles POST /transactions/buy
func (h *TransactionHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount == "" {
		respondError(w, "amount is required", http.StatusBadRequest)
		return
	}

	amountNano, err := money.ToNano(req.Amount)
	if err != nil {
		respondError(w, "invalid amount", http.StatusBadRequest)
		return
	}

	owner, ok := ownerFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	receipt, err := h.submitter.Submit(r.Context(), owner, submit.Intent{
		Kind:          ledger.RecordTypeBuy,
		AmountNano:    amountNano,
		TargetAddress: h.treasury,
	})
	if err != nil {
		respondSubmitError(w, err)
		return
	}

	respondJSON(w, ReceiptResponse{
		RecordID: receipt.RecordID.String(),
		TxHash:   receipt.TxHash,
	}, http.StatusCreated)
}

// Claim handles POST /transactions/claim. The claim amount is the sum of
// the owner's unclaimed profit distributions, paid out to the connected
// wallet.
func (h *TransactionHandler) Claim(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	wallet := h.session.State().WalletAddress
	if wallet == "" {
		respondError(w, "wallet not connected", http.StatusConflict)
		return
	}

	unclaimed, err := h.ledger.UnclaimedProfit(r.Context(), owner)
	if err != nil {
		respondError(w, "failed to read profits", http.StatusInternalServerError)
		return
	}
	if unclaimed.Sign() <= 0 {
		respondError(w, "no profit to claim", http.StatusConflict)
		return
	}

	receipt, err := h.submitter.Submit(r.Context(), owner, submit.Intent{
		Kind:          ledger.RecordTypeClaim,
		AmountNano:    unclaimed,
		TargetAddress: wallet,
	})
	if err != nil {
		respondSubmitError(w, err)
		return
	}

	respondJSON(w, ReceiptResponse{
		RecordID: receipt.RecordID.String(),
		TxHash:   receipt.TxHash,
	}, http.StatusCreated)
}

// List handles GET /transactions
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	p, err := h.ledger.Portfolio(r.Context(), owner)
	if err != nil {
		respondError(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}

	txs := p.Transactions
	if txs == nil {
		txs = []*ledger.TransactionRecord{}
	}
	respondJSON(w, map[string]any{"transactions": txs}, http.StatusOK)
}

// respondSubmitError maps submission failures to HTTP statuses
func respondSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, submit.ErrNotConnected):
		respondError(w, "wallet not connected", http.StatusConflict)
	case errors.Is(err, submit.ErrInvalidAmount):
		respondError(w, "invalid amount", http.StatusBadRequest)
	case errors.Is(err, submit.ErrAlreadyPending):
		respondError(w, "an identical transaction is already pending", http.StatusConflict)
	case errors.Is(err, submit.ErrTimeout):
		respondError(w, "transaction timed out", http.StatusGatewayTimeout)
	case errors.Is(err, session.ErrUserRejected):
		respondError(w, "transaction rejected in wallet", http.StatusConflict)
	case errors.Is(err, session.ErrSessionSuperseded):
		respondError(w, "wallet session changed during submission", http.StatusConflict)
	default:
		respondError(w, "transaction failed", http.StatusBadGateway)
	}
}

// ownerFromContext derives the ledger owner key from the authenticated user
func ownerFromContext(ctx context.Context) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return "", false
	}
	return userID.String(), true
}

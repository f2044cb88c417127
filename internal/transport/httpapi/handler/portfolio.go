package handler

import (
	"context"
	"math/big"
	"net/http"

	"github.com/coinnovac/hazelnut/internal/platform/ledger"
	"github.com/coinnovac/hazelnut/pkg/money"
)

// PortfolioLedgerInterface defines the ledger reads needed by PortfolioHandler
type PortfolioLedgerInterface interface {
	Portfolio(ctx context.Context, owner string) (*ledger.Portfolio, error)
	UnclaimedProfit(ctx context.Context, owner string) (*big.Int, error)
}

// PortfolioHandler handles portfolio HTTP requests
type PortfolioHandler struct {
	ledger PortfolioLedgerInterface
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(ldg PortfolioLedgerInterface) *PortfolioHandler {
	return &PortfolioHandler{ledger: ldg}
}

// PortfolioResponse represents the portfolio summary. Balances carry both
// raw nano units and a human decimal rendering.
type PortfolioResponse struct {
	TokenBalanceNano    string `json:"token_balance_nano"`
	TokenBalance        string `json:"token_balance"`
	TotalInvestedNano   string `json:"total_invested_nano"`
	TotalInvested       string `json:"total_invested"`
	UnclaimedProfitNano string `json:"unclaimed_profit_nano"`
	UnclaimedProfit     string `json:"unclaimed_profit"`
	TransactionCount    int    `json:"transaction_count"`
}

// GetSummary handles GET /portfolio
func (h *PortfolioHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	p, err := h.ledger.Portfolio(r.Context(), owner)
	if err != nil {
		respondError(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}
	unclaimed, err := h.ledger.UnclaimedProfit(r.Context(), owner)
	if err != nil {
		respondError(w, "failed to load profits", http.StatusInternalServerError)
		return
	}

	balance := bigOrZero(p.TokenBalance)
	invested := bigOrZero(p.TotalInvested)

	respondJSON(w, PortfolioResponse{
		TokenBalanceNano:    balance.String(),
		TokenBalance:        money.FromNano(balance),
		TotalInvestedNano:   invested.String(),
		TotalInvested:       money.FromNano(invested),
		UnclaimedProfitNano: unclaimed.String(),
		UnclaimedProfit:     money.FromNano(unclaimed),
		TransactionCount:    len(p.Transactions),
	}, http.StatusOK)
}

func bigOrZero(b *money.BigInt) *big.Int {
	if b == nil || b.Int == nil {
		return big.NewInt(0)
	}
	return b.Int
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/coinnovac/hazelnut/internal/platform/ledger"
)

// ProfitLedgerInterface defines the profit operations needed by ProfitHandler
type ProfitLedgerInterface interface {
	Profits(ctx context.Context, owner string) ([]*ledger.ProfitRecord, error)
	Distribute(ctx context.Context, owner string) (*ledger.ProfitRecord, error)
}

// ProfitHandler handles profit distribution HTTP requests
type ProfitHandler struct {
	ledger ProfitLedgerInterface
}

// NewProfitHandler creates a new profit handler
func NewProfitHandler(ldg ProfitLedgerInterface) *ProfitHandler {
	return &ProfitHandler{ledger: ldg}
}

// List handles GET /profits
func (h *ProfitHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	profits, err := h.ledger.Profits(r.Context(), owner)
	if err != nil {
		respondError(w, "failed to load profits", http.StatusInternalServerError)
		return
	}
	if profits == nil {
		profits = []*ledger.ProfitRecord{}
	}
	respondJSON(w, map[string]any{"profits": profits}, http.StatusOK)
}

// Distribute handles POST /profits/distribute
func (h *ProfitHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	rec, err := h.ledger.Distribute(r.Context(), owner)
	if err != nil {
		if errors.Is(err, ledger.ErrNoProfitToClaim) {
			respondError(w, "no holdings to distribute profit for", http.StatusConflict)
			return
		}
		respondError(w, "failed to distribute profit", http.StatusInternalServerError)
		return
	}
	respondJSON(w, rec, http.StatusCreated)
}

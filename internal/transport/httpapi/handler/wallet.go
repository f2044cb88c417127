package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/coinnovac/hazelnut/internal/platform/session"
	"github.com/coinnovac/hazelnut/internal/platform/user"
	"github.com/coinnovac/hazelnut/internal/transport/httpapi/middleware"
)

// SessionInterface defines the wallet session operations needed by WalletHandler
type SessionInterface interface {
	State() session.State
	Connect(ctx context.Context) (session.State, error)
	Disconnect(ctx context.Context) error
	Restore(ctx context.Context) error
	Wallets(ctx context.Context) ([]session.WalletDescriptor, error)
}

// WalletLinker records the connected wallet address on the user account
type WalletLinker interface {
	LinkWallet(ctx context.Context, id uuid.UUID, address string) (*user.User, error)
}

// WalletHandler handles wallet session HTTP requests
type WalletHandler struct {
	session SessionInterface
	users   WalletLinker
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(sess SessionInterface, users WalletLinker) *WalletHandler {
	return &WalletHandler{
		session: sess,
		users:   users,
	}
}

// SessionStateResponse represents the wallet session state
type SessionStateResponse struct {
	Status        string `json:"status"`
	WalletAddress string `json:"wallet_address,omitempty"`
	Chain         string `json:"chain,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func stateResponse(st session.State) SessionStateResponse {
	return SessionStateResponse{
		Status:        string(st.Status),
		WalletAddress: st.WalletAddress,
		Chain:         st.Chain,
		Reason:        st.Reason,
	}
}

// GetState handles GET /wallet
func (h *WalletHandler) GetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, stateResponse(h.session.State()), http.StatusOK)
}

// Connect handles POST /wallet/connect
func (h *WalletHandler) Connect(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.Connect(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUserCancelled):
			// The user backing out is not an API failure
			respondJSON(w, stateResponse(st), http.StatusOK)
		case errors.Is(err, session.ErrAlreadyConnecting):
			respondError(w, "connection already in progress", http.StatusConflict)
		case errors.Is(err, session.ErrSessionSuperseded):
			respondError(w, "connection attempt superseded", http.StatusConflict)
		case errors.Is(err, session.ErrProviderUnavailable):
			respondError(w, "wallet provider unavailable", http.StatusServiceUnavailable)
		default:
			respondError(w, "failed to connect wallet", http.StatusBadGateway)
		}
		return
	}

	if userID, ok := middleware.GetUserIDFromContext(r.Context()); ok && st.WalletAddress != "" {
		// Best effort: a link failure must not fail the connect
		if _, err := h.users.LinkWallet(r.Context(), userID, st.WalletAddress); err != nil {
			respondJSON(w, stateResponse(st), http.StatusOK)
			return
		}
	}

	respondJSON(w, stateResponse(st), http.StatusOK)
}

// Disconnect handles POST /wallet/disconnect
func (h *WalletHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Disconnect(r.Context()); err != nil {
		respondError(w, "failed to disconnect wallet", http.StatusInternalServerError)
		return
	}
	respondJSON(w, stateResponse(h.session.State()), http.StatusOK)
}

// Restore handles POST /wallet/restore
func (h *WalletHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Restore(r.Context()); err != nil {
		if errors.Is(err, session.ErrProviderUnavailable) {
			respondError(w, "wallet provider unavailable", http.StatusServiceUnavailable)
			return
		}
		respondError(w, "failed to restore wallet session", http.StatusBadGateway)
		return
	}
	respondJSON(w, stateResponse(h.session.State()), http.StatusOK)
}

// ListWallets handles GET /wallet/catalog
func (h *WalletHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.session.Wallets(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrProviderUnavailable) {
			respondError(w, "wallet provider unavailable", http.StatusServiceUnavailable)
			return
		}
		respondError(w, "failed to list wallets", http.StatusBadGateway)
		return
	}
	respondJSON(w, map[string]any{"wallets": wallets}, http.StatusOK)
}

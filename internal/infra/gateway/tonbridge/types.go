package tonbridge

import (
	"fmt"

	"github.com/coinnovac/hazelnut/internal/platform/session"
)

// Provider-side error codes, as defined by the TON Connect protocol
const (
	codeBadRequest    = 1
	codeAppUnknown    = 100
	codeUserDeclined  = 300
	codeMethodUnknown = 400
	codeInternalError = 500
)

// apiError is the bridge's JSON error envelope
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("bridge error %d: %s", e.Code, e.Message)
}

// sessionResponse is returned by session lookup and connect calls
type sessionResponse struct {
	Connected bool                `json:"connected"`
	Wallet    *session.WalletInfo `json:"wallet,omitempty"`
}

// walletsResponse wraps the provider's wallet catalog
type walletsResponse struct {
	Wallets []session.WalletDescriptor `json:"wallets"`
}

// bridgeEvent is one entry from the event long-poll. Type is "status"
// (wallet may be nil for a drop) or "error".
type bridgeEvent struct {
	Type    string              `json:"type"`
	Wallet  *session.WalletInfo `json:"wallet,omitempty"`
	Message string              `json:"message,omitempty"`
}

type eventsResponse struct {
	Events []bridgeEvent `json:"events"`
}

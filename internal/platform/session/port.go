package session

import (
	"context"

	"github.com/coinnovac/hazelnut/pkg/money"
)

// TransferMessage is one transfer inside a transaction request. Amount is a
// decimal string of nano units on the wire.
type TransferMessage struct {
	Address string        `json:"address"`
	Amount  *money.BigInt `json:"amount"`
	Payload *string       `json:"payload"`
}

// TransactionRequest is the provider-level transfer request
type TransactionRequest struct {
	Messages   []TransferMessage `json:"messages"`
	ValidUntil int64             `json:"validUntil"` // epoch seconds
}

// TransactionResponse carries the signed bag-of-cells returned by the wallet
type TransactionResponse struct {
	BOC string `json:"boc"`
}

// Provider is the wallet-provider session API this system consumes. The
// provider holds the keys and signs; this system never sees private key
// material.
//
// RestoreConnection and Connect return the authorized wallet, or
// ErrUserCancelled / ErrProviderUnavailable. RestoreConnection returns
// (nil, nil) when no prior authorization exists. SetHandlers registers
// callbacks for unsolicited status changes (wallet switched, provider drop:
// info == nil) and provider-side errors; implementations must deliver them
// sequentially.
type Provider interface {
	Ready(ctx context.Context) error
	RestoreConnection(ctx context.Context) (*WalletInfo, error)
	Connect(ctx context.Context) (*WalletInfo, error)
	Disconnect(ctx context.Context) error
	Wallets(ctx context.Context) ([]WalletDescriptor, error)
	SendTransaction(ctx context.Context, req TransactionRequest) (*TransactionResponse, error)
	SetHandlers(onStatus func(info *WalletInfo), onError func(err error))
}

// Listener receives every state transition exactly once, in registration
// order. Listeners run on the transition path and must not call back into
// the Manager.
type Listener func(State)

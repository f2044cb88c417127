package submit

import "errors"

var (
	// Precondition failures; the provider is never contacted
	ErrNotConnected   = errors.New("wallet must be connected before submitting")
	ErrInvalidAmount  = errors.New("transaction amount must be positive")
	ErrAlreadyPending = errors.New("an identical transaction is already pending")

	// Provider-side resolutions; none are retried automatically
	ErrTimeout         = errors.New("transaction validity window elapsed without a response")
	ErrProviderFailure = errors.New("wallet provider failed to process the transaction")
)

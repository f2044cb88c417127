package session

import "errors"

var (
	// Connection errors
	ErrUserCancelled       = errors.New("wallet connection cancelled by user")
	ErrProviderUnavailable = errors.New("wallet provider is unavailable")
	ErrConnectionLost      = errors.New("wallet connection lost after retries")
	ErrAlreadyConnecting   = errors.New("a connection attempt is already in progress")

	// Session errors
	ErrNotConnected      = errors.New("no wallet is connected")
	ErrSessionSuperseded = errors.New("session was replaced before the result arrived")

	// Transaction errors raised by the provider
	ErrUserRejected = errors.New("transaction rejected by user in wallet")
)

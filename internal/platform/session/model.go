package session

// Status represents the connection lifecycle phase
type Status string

const (
	StatusDisconnected Status = "disconnected" // No active session
	StatusConnecting   Status = "connecting"   // Handshake in progress
	StatusConnected    Status = "connected"    // Provider authorized a wallet
	StatusError        Status = "error"        // Last attempt failed; reconnection may be pending
)

// IsValid checks if the status is a known lifecycle phase
func (s Status) IsValid() bool {
	switch s {
	case StatusDisconnected, StatusConnecting, StatusConnected, StatusError:
		return true
	}
	return false
}

// State is the full observable connection state. Exactly one live instance
// exists per Manager; only the Manager mutates it.
type State struct {
	Status        Status `json:"status"`
	WalletAddress string `json:"wallet_address,omitempty"` // set only when Connected
	Chain         string `json:"chain,omitempty"`          // set only when Connected
	Reason        string `json:"reason,omitempty"`         // set only when Error or cancelled
}

// Connected reports whether a wallet is currently authorized
func (s State) Connected() bool {
	return s.Status == StatusConnected
}

// WalletInfo describes the wallet account the provider authorized
type WalletInfo struct {
	Address string `json:"address"`
	Chain   string `json:"chain"`
	AppName string `json:"app_name,omitempty"` // wallet application, e.g. "telegram-wallet"
}

// WalletDescriptor is an entry from the provider's wallet catalog
type WalletDescriptor struct {
	Name         string `json:"name"`
	AppName      string `json:"app_name"`
	ImageURL     string `json:"image_url,omitempty"`
	UniversalURL string `json:"universal_url,omitempty"`
	BridgeURL    string `json:"bridge_url,omitempty"`
}

package tonbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coinnovac/hazelnut/internal/platform/session"
	"github.com/coinnovac/hazelnut/pkg/logger"
)

const (
	requestTimeout = 30 * time.Second
	eventPollPause = time.Second
	readyCheckSpan = 2 * time.Second
)

// Client talks to a TON Connect bridge sidecar over HTTP JSON and
// implements the wallet session Provider port.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger

	ready atomic.Bool

	handlerMu sync.RWMutex
	onStatus  func(*session.WalletInfo)
	onError   func(error)
}

// NewClient creates a bridge client pointed at baseURL
func NewClient(baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		baseURL: baseURL,
		logger:  log.WithField("component", "tonbridge"),
	}
}

// SetBaseURL overrides the base URL (useful for testing)
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// SetHandlers registers callbacks for unsolicited session events.
// Events are delivered sequentially from the polling loop.
func (c *Client) SetHandlers(onStatus func(*session.WalletInfo), onError func(error)) {
	c.handlerMu.Lock()
	c.onStatus = onStatus
	c.onError = onError
	c.handlerMu.Unlock()
}

// Ready reports whether the bridge answers its health probe. A positive
// answer is cached until the polling loop marks the bridge unreachable.
func (c *Client) Ready(ctx context.Context) error {
	if c.ready.Load() {
		return nil
	}
	probeCtx, cancel := context.WithTimeout(ctx, readyCheckSpan)
	defer cancel()
	if _, err := c.doRequest(probeCtx, http.MethodGet, "/healthz", nil); err != nil {
		return fmt.Errorf("%w: %v", session.ErrProviderUnavailable, err)
	}
	c.ready.Store(true)
	return nil
}

// RestoreConnection asks the bridge for a previously stored session.
// Returns (nil, nil) when no session exists.
func (c *Client) RestoreConnection(ctx context.Context) (*session.WalletInfo, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/session", nil)
	if err != nil {
		return nil, mapError(err)
	}
	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	if !resp.Connected || resp.Wallet == nil {
		return nil, nil
	}
	return resp.Wallet, nil
}

// Connect initiates a new wallet connection through the bridge and
// blocks until the user approves, declines, or ctx expires.
func (c *Client) Connect(ctx context.Context) (*session.WalletInfo, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/session/connect", nil)
	if err != nil {
		return nil, mapConnectError(err)
	}
	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode connect response: %w", err)
	}
	if resp.Wallet == nil {
		return nil, session.ErrProviderUnavailable
	}
	c.logger.Info("wallet connected", "address", resp.Wallet.Address, "chain", resp.Wallet.Chain)
	return resp.Wallet, nil
}

// Disconnect tears down the bridge-side session
func (c *Client) Disconnect(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodDelete, "/session", nil); err != nil {
		return mapError(err)
	}
	return nil
}

// Wallets returns the provider's wallet catalog
func (c *Client) Wallets(ctx context.Context) ([]session.WalletDescriptor, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/wallets", nil)
	if err != nil {
		return nil, mapError(err)
	}
	var resp walletsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode wallets response: %w", err)
	}
	return resp.Wallets, nil
}

// SendTransaction forwards a transaction request to the connected
// wallet and blocks until it is signed, rejected, or ctx expires.
func (c *Client) SendTransaction(ctx context.Context, req session.TransactionRequest) (*session.TransactionResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction request: %w", err)
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/session/transaction", payload)
	if err != nil {
		return nil, mapTransactionError(err)
	}
	var resp session.TransactionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode transaction response: %w", err)
	}
	return &resp, nil
}

// PollEvents long-polls the bridge for unsolicited session events and
// dispatches them to the registered handlers. It returns when ctx is
// cancelled. Intended to run on its own goroutine from the composition
// root.
func (c *Client) PollEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		body, err := c.doRequest(ctx, http.MethodGet, "/session/events", nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.ready.Store(false)
			c.logger.Warn("event poll failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(eventPollPause):
			}
			continue
		}
		c.ready.Store(true)

		var resp eventsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			c.logger.Error("failed to decode events", "error", err)
			continue
		}
		for _, ev := range resp.Events {
			c.dispatch(ev)
		}
	}
}

func (c *Client) dispatch(ev bridgeEvent) {
	c.handlerMu.RLock()
	onStatus, onError := c.onStatus, c.onError
	c.handlerMu.RUnlock()

	switch ev.Type {
	case "status":
		if onStatus != nil {
			onStatus(ev.Wallet)
		}
	case "error":
		if onError != nil {
			onError(fmt.Errorf("%w: %s", session.ErrConnectionLost, ev.Message))
		}
	default:
		c.logger.Warn("unknown bridge event", "type", ev.Type)
	}
}

// doRequest performs an HTTP request against the bridge. A non-2xx
// response with a JSON error envelope is returned as *apiError so
// callers can map protocol codes to domain errors.
func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read response body: %w", readErr)
	}

	c.logger.Debug("bridge request", "method", method, "path", path, "status_code", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return nil, &apiErr
	}
	return nil, fmt.Errorf("bridge error: status %d, body: %s", resp.StatusCode, string(body))
}

// mapError translates transport failures into the provider sentinel
func mapError(err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", session.ErrProviderUnavailable, err)
}

// mapConnectError additionally maps a user decline during connect
func mapConnectError(err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Code == codeUserDeclined {
		return session.ErrUserCancelled
	}
	return mapError(err)
}

// mapTransactionError additionally maps a user rejection during signing
func mapTransactionError(err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Code == codeUserDeclined {
		return session.ErrUserRejected
	}
	return mapError(err)
}

// Package manifest verifies the externally hosted TON Connect manifest
// before any connection attempt is made. Wallet providers fetch the same
// document to identify the application, so a broken manifest means every
// handshake will fail with an opaque provider error.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coinnovac/hazelnut/internal/platform/notify"
	"github.com/coinnovac/hazelnut/pkg/logger"
)

// Manifest is the application descriptor published for wallet providers.
// url, name and iconUrl are mandatory; anything else is ignored.
type Manifest struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

// Validator checks that a manifest URL serves a well-formed document.
type Validator struct {
	httpClient *http.Client
	notifier   notify.Notifier
	logger     *logger.Logger
}

// NewValidator creates a manifest validator. fetchTimeout bounds the whole
// HTTP round trip.
func NewValidator(fetchTimeout time.Duration, notifier notify.Notifier, log *logger.Logger) *Validator {
	return &Validator{
		httpClient: &http.Client{Timeout: fetchTimeout},
		notifier:   notifier,
		logger:     log.WithField("component", "manifest"),
	}
}

// Validate fetches the manifest and reports whether it is usable. It fails
// closed: network errors, non-2xx statuses, unparsable bodies and missing
// required fields all yield false. It never panics and never returns an
// error; the failure reason goes to the log and the notification sink.
func (v *Validator) Validate(ctx context.Context, url string) bool {
	if err := v.check(ctx, url); err != nil {
		v.logger.Warn("manifest verification failed", "url", url, "error", err)
		v.notifier.Notify(ctx, notify.LevelError, "App manifest could not be verified. Wallet connection may fail.")
		return false
	}

	v.logger.Info("manifest verified", "url", url)
	return true
}

func (v *Validator) check(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("invalid manifest URL: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("manifest fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("manifest fetch failed: HTTP %d", resp.StatusCode)
	}

	var m Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return fmt.Errorf("manifest is not valid JSON: %w", err)
	}

	switch {
	case m.URL == "":
		return fmt.Errorf("manifest missing required field %q", "url")
	case m.Name == "":
		return fmt.Errorf("manifest missing required field %q", "name")
	case m.IconURL == "":
		return fmt.Errorf("manifest missing required field %q", "iconUrl")
	}

	return nil
}

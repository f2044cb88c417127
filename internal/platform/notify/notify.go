// Package notify defines the user-facing notification port. The actual
// surface (Telegram alert, toast, etc.) lives in the UI layer; server-side
// components only emit through the Notifier interface.
package notify

import (
	"context"

	"github.com/coinnovac/hazelnut/pkg/logger"
)

// Level classifies a notification for the UI layer.
type Level string

const (
	// LevelInfo is a neutral progress message
	LevelInfo Level = "info"
	// LevelSuccess reports a completed operation
	LevelSuccess Level = "success"
	// LevelError reports a terminal failure that needs user attention
	LevelError Level = "error"
)

// Notifier surfaces user-visible status messages. Implementations must
// tolerate being called from multiple goroutines.
type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

// LogNotifier writes notifications to the structured log. It is the default
// sink when no UI transport is attached.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log-backed notification sink
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log.WithField("component", "notify")}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(ctx context.Context, level Level, message string) {
	log := n.logger.WithContext(ctx)
	switch level {
	case LevelError:
		log.Warn("user notification", "level", string(level), "message", message)
	default:
		log.Info("user notification", "level", string(level), "message", message)
	}
}

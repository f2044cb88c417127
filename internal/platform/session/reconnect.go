package session

import (
	"context"
	"time"

	"github.com/coinnovac/hazelnut/internal/platform/notify"
)

// reconnector tracks the automatic retry state for one error episode.
// attempts is scoped to the episode: it resets whenever the session reaches
// Connected and is never persisted. At most one timer is armed at a time.
type reconnector struct {
	attempts int
	pending  bool
	timer    *time.Timer
	seq      uint64 // identifies the armed timer so stale callbacks are ignored
}

// reset clears the episode, leaving any armed timer to be ignored via the
// generation check when it fires.
func (r *reconnector) reset() {
	r.cancel()
	r.attempts = 0
}

// cancel disarms a pending retry timer, if any
func (r *reconnector) cancel() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = false
}

// scheduleRetryLocked decides whether the current Error state earns another
// automatic attempt. Retry happens iff attempts < MaxReconnectAttempts,
// after a linear backoff of attemptNumber * ReconnectBaseDelay. Past the
// ceiling the session gives up until the user connects explicitly.
// Callers must hold m.mu.
func (m *Manager) scheduleRetryLocked(gen uint64) {
	if m.rec.pending {
		// An earlier error already armed a timer; never two at once
		return
	}

	if m.rec.attempts >= m.config.MaxReconnectAttempts {
		m.giveUpLocked()
		return
	}

	m.rec.attempts++
	attempt := m.rec.attempts
	delay := time.Duration(attempt) * m.config.ReconnectBaseDelay

	m.logger.Info("scheduling reconnect",
		"attempt", attempt,
		"max_attempts", m.config.MaxReconnectAttempts,
		"delay_ms", delay.Milliseconds())

	m.rec.pending = true
	m.rec.seq++
	seq := m.rec.seq
	m.rec.timer = time.AfterFunc(delay, func() {
		m.retry(gen, seq)
	})
}

// retry runs when a backoff timer fires. It abandons silently if the
// session moved on (disconnect or a fresh user connect) in the meantime,
// or if this timer was already superseded by a newer one.
func (m *Manager) retry(gen, seq uint64) {
	m.mu.Lock()
	if m.rec.seq != seq {
		m.mu.Unlock()
		return
	}
	m.rec.pending = false
	m.rec.timer = nil
	if m.gen != gen || m.state.Status != StatusError {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(State{Status: StatusConnecting})
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.config.ProviderWaitTimeout)
	defer cancel()

	info, err := m.provider.Connect(ctx)
	_, _ = m.completeConnect(ctx, gen, info, err)
}

// giveUpLocked ends the error episode: one terminal notification, then back
// to Disconnected until the user retries. Callers must hold m.mu.
func (m *Manager) giveUpLocked() {
	m.rec.reset()
	m.logger.Warn("reconnect attempts exhausted", "max_attempts", m.config.MaxReconnectAttempts)
	m.notifier.Notify(context.Background(), notify.LevelError, "Connection lost. Tap Connect to reconnect your wallet.")
	m.setStateLocked(State{Status: StatusDisconnected, Reason: ErrConnectionLost.Error()})
}

package submit

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coinnovac/hazelnut/internal/platform/ledger"
	"github.com/coinnovac/hazelnut/internal/platform/notify"
	"github.com/coinnovac/hazelnut/internal/platform/session"
	"github.com/coinnovac/hazelnut/pkg/logger"
	"github.com/coinnovac/hazelnut/pkg/money"
)

// Session is the slice of the connection session the submitter depends on
type Session interface {
	State() session.State
	SendTransaction(ctx context.Context, req session.TransactionRequest) (*session.TransactionResponse, error)
}

// Ledger is the slice of the reconciler the submitter hands results to
type Ledger interface {
	AddPending(ctx context.Context, owner string, rec *ledger.TransactionRecord) error
	Reconcile(ctx context.Context, owner string, recordID uuid.UUID, outcome ledger.Outcome) error
}

// Config holds configuration for the transaction submitter
type Config struct {
	// ValidityWindow is applied when an intent carries no explicit deadline
	ValidityWindow time.Duration
}

// DefaultConfig returns the default submitter configuration
func DefaultConfig() *Config {
	return &Config{ValidityWindow: 300 * time.Second}
}

// Submitter builds provider-level transfer requests from intents, pushes
// them through the active session and routes the resolution to the ledger
// reconciler. One request may be in flight per logical intent.
type Submitter struct {
	config   *Config
	session  Session
	ledger   Ledger
	notifier notify.Notifier
	logger   *logger.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewSubmitter creates a transaction submitter
func NewSubmitter(config *Config, sess Session, ldg Ledger, notifier notify.Notifier, log *logger.Logger) *Submitter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ValidityWindow <= 0 {
		config.ValidityWindow = 300 * time.Second
	}
	return &Submitter{
		config:   config,
		session:  sess,
		ledger:   ldg,
		notifier: notifier,
		logger:   log.WithField("component", "submit"),
		inFlight: make(map[string]struct{}),
	}
}

// Submit sends an intent through the connected wallet session and resolves
// it against the owner's ledger. Precondition failures (no session, bad
// amount, duplicate) return before the provider is ever contacted.
func (s *Submitter) Submit(ctx context.Context, owner string, intent Intent) (*Receipt, error) {
	if !s.session.State().Connected() {
		return nil, ErrNotConnected
	}
	if intent.AmountNano == nil || intent.AmountNano.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	key := owner + ":" + intent.key()
	s.mu.Lock()
	if _, pending := s.inFlight[key]; pending {
		s.mu.Unlock()
		return nil, ErrAlreadyPending
	}
	s.inFlight[key] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}()

	validUntil := intent.ValidUntil
	if validUntil.IsZero() {
		validUntil = time.Now().Add(s.config.ValidityWindow)
	}

	rec := &ledger.TransactionRecord{
		ID:           uuid.New(),
		Type:         intent.Kind,
		AmountNano:   money.NewBigInt(intent.AmountNano),
		Counterparty: intent.TargetAddress,
		Timestamp:    time.Now().UTC(),
	}
	if err := s.ledger.AddPending(ctx, owner, rec); err != nil {
		return nil, fmt.Errorf("record pending transaction: %w", err)
	}

	req := session.TransactionRequest{
		Messages: []session.TransferMessage{{
			Address: intent.TargetAddress,
			Amount:  money.NewBigInt(intent.AmountNano),
			Payload: nil,
		}},
		ValidUntil: validUntil.Unix(),
	}

	s.logger.Info("submitting transaction",
		"type", string(intent.Kind),
		"amount_nano", intent.AmountNano.String(),
		"target", intent.TargetAddress,
		"valid_until", validUntil.Unix())

	txCtx, cancel := context.WithDeadline(ctx, validUntil)
	defer cancel()

	resp, err := s.session.SendTransaction(txCtx, req)
	return s.resolve(ctx, owner, rec, resp, err)
}

// resolve classifies the provider's answer and applies it exactly once.
func (s *Submitter) resolve(ctx context.Context, owner string, rec *ledger.TransactionRecord, resp *session.TransactionResponse, err error) (*Receipt, error) {
	switch {
	case err == nil:
		txHash := hashBOC(resp.BOC)
		if rerr := s.ledger.Reconcile(ctx, owner, rec.ID, ledger.Completed(txHash)); rerr != nil {
			s.logger.Error("failed to reconcile completed transaction", "record_id", rec.ID, "error", rerr)
		}
		s.notifier.Notify(ctx, notify.LevelSuccess, "Transaction confirmed!")
		return &Receipt{RecordID: rec.ID, TxHash: txHash}, nil

	case errors.Is(err, session.ErrSessionSuperseded):
		// The session was replaced while the request was in flight; the
		// result no longer belongs to anyone and must not touch the ledger
		s.logger.Warn("discarding transaction result for superseded session", "record_id", rec.ID)
		return nil, err

	case errors.Is(err, session.ErrUserRejected):
		s.fail(ctx, owner, rec, err)
		s.notifier.Notify(ctx, notify.LevelInfo, "Transaction cancelled in your wallet")
		return nil, err

	case errors.Is(err, context.DeadlineExceeded):
		s.fail(ctx, owner, rec, ErrTimeout)
		s.notifier.Notify(ctx, notify.LevelError, "Transaction timed out. Please try again.")
		return nil, ErrTimeout

	case errors.Is(err, session.ErrNotConnected):
		s.fail(ctx, owner, rec, err)
		return nil, ErrNotConnected

	default:
		s.fail(ctx, owner, rec, err)
		s.notifier.Notify(ctx, notify.LevelError, "Transaction failed. Please try again.")
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
}

func (s *Submitter) fail(ctx context.Context, owner string, rec *ledger.TransactionRecord, cause error) {
	if rerr := s.ledger.Reconcile(ctx, owner, rec.ID, ledger.Failed(cause.Error())); rerr != nil {
		s.logger.Error("failed to reconcile failed transaction", "record_id", rec.ID, "error", rerr)
	}
}

// hashBOC derives a stable transaction identifier from the signed
// bag-of-cells the wallet returned.
func hashBOC(boc string) string {
	raw, err := base64.StdEncoding.DecodeString(boc)
	if err != nil {
		raw = []byte(boc)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coinnovac/hazelnut/internal/platform/notify"
	"github.com/coinnovac/hazelnut/pkg/logger"
	"github.com/coinnovac/hazelnut/pkg/money"
)

// DefaultDistributionRateBps is the profit distribution rate in basis
// points of the token balance: 1% per distribution event.
const DefaultDistributionRateBps = 100

// Outcome is the resolution of a pending transaction record
type Outcome struct {
	Status RecordStatus
	TxHash string
	Reason string
}

// Completed builds a successful outcome carrying the transaction hash
func Completed(txHash string) Outcome {
	return Outcome{Status: RecordStatusCompleted, TxHash: txHash}
}

// Failed builds a failed outcome carrying the failure reason
func Failed(reason string) Outcome {
	return Outcome{Status: RecordStatusFailed, Reason: reason}
}

// ownerLedger is the in-memory ledger for one owner. reconciled tracks
// record IDs that already reached a terminal status, which is what makes
// Reconcile idempotent.
type ownerLedger struct {
	portfolio  *Portfolio
	profits    []*ProfitRecord
	reconciled map[uuid.UUID]bool
}

// Service is the ledger reconciler. It owns every Portfolio and all profit
// records; no other component writes them. The in-memory state is the
// source of truth for the current session, the store a best-effort mirror.
type Service struct {
	store    Store
	pricing  Pricing
	rateBps  int64
	notifier notify.Notifier
	logger   *logger.Logger

	mu      sync.Mutex
	ledgers map[string]*ownerLedger
}

// NewService creates a ledger service
func NewService(store Store, pricing Pricing, notifier notify.Notifier, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		pricing:  pricing,
		rateBps:  DefaultDistributionRateBps,
		notifier: notifier,
		logger:   log.WithField("component", "ledger"),
		ledgers:  make(map[string]*ownerLedger),
	}
}

// AddPending appends a speculative Pending record for a just-submitted
// transaction. The record is not persisted until it resolves.
func (s *Service) AddPending(ctx context.Context, owner string, rec *TransactionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.Status = RecordStatusPending
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.ownerLocked(ctx, owner)
	l.portfolio.Transactions = append(l.portfolio.Transactions, rec)
	return nil
}

// Reconcile applies the resolution of a pending record exactly once. A
// second call for the same record ID is a no-op. On Completed the balances
// and history are updated atomically and the portfolio is persisted; on
// Failed the record is kept for audit with balances untouched. A store
// failure is surfaced through the notifier but does not undo the applied
// in-memory state.
func (s *Service) Reconcile(ctx context.Context, owner string, recordID uuid.UUID, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.ownerLocked(ctx, owner)
	if l.reconciled[recordID] {
		s.logger.Debug("record already reconciled, ignoring", "record_id", recordID)
		return nil
	}

	rec := l.portfolio.Record(recordID)
	if rec == nil {
		return ErrRecordNotFound
	}

	switch outcome.Status {
	case RecordStatusCompleted:
		rec.Status = RecordStatusCompleted
		rec.TxHash = outcome.TxHash
		s.applyCompletedLocked(l, rec)
	case RecordStatusFailed:
		rec.Status = RecordStatusFailed
		rec.FailureReason = outcome.Reason
	default:
		return fmt.Errorf("outcome status %q is not terminal", outcome.Status)
	}

	l.reconciled[recordID] = true

	s.persistLocked(ctx, owner, l, rec.Type == RecordTypeClaim && outcome.Status == RecordStatusCompleted)
	s.logger.Info("transaction reconciled",
		"record_id", recordID,
		"type", string(rec.Type),
		"status", string(rec.Status))
	return nil
}

// applyCompletedLocked applies the economic effect of a completed record
func (s *Service) applyCompletedLocked(l *ownerLedger, rec *TransactionRecord) {
	switch rec.Type {
	case RecordTypeBuy:
		tokens := s.pricing.TokensForTON(intOf(rec.AmountNano))
		rec.TokenAmountNano = money.NewBigInt(tokens)
		l.portfolio.TokenBalance = money.NewBigInt(
			new(big.Int).Add(intOf(l.portfolio.TokenBalance), tokens))
		l.portfolio.TotalInvested = money.NewBigInt(
			new(big.Int).Add(intOf(l.portfolio.TotalInvested), intOf(rec.AmountNano)))
	case RecordTypeClaim:
		now := time.Now().UTC()
		for _, p := range l.profits {
			if !p.Claimed() {
				at := now
				p.ClaimedAt = &at
			}
		}
	}
}

// Portfolio returns a snapshot of the owner's portfolio
func (s *Service) Portfolio(ctx context.Context, owner string) (*Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.ownerLocked(ctx, owner)
	return clonePortfolio(l.portfolio), nil
}

// Profits returns a snapshot of the owner's profit records
func (s *Service) Profits(ctx context.Context, owner string) ([]*ProfitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.ownerLocked(ctx, owner)
	out := make([]*ProfitRecord, len(l.profits))
	for i, p := range l.profits {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

// UnclaimedProfit sums the unclaimed profit records in nanoTON
func (s *Service) UnclaimedProfit(ctx context.Context, owner string) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.ownerLocked(ctx, owner)
	total := big.NewInt(0)
	for _, p := range l.profits {
		if !p.Claimed() {
			total.Add(total, intOf(p.AmountNano))
		}
	}
	return total, nil
}

// Distribute records a profit distribution event for the owner: a share of
// the current token balance, expressed in nanoTON. Owners with no holdings
// receive nothing.
func (s *Service) Distribute(ctx context.Context, owner string) (*ProfitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.ownerLocked(ctx, owner)
	balance := intOf(l.portfolio.TokenBalance)
	if balance.Sign() <= 0 {
		return nil, ErrNoProfitToClaim
	}

	amount := new(big.Int).Mul(balance, big.NewInt(s.rateBps))
	amount.Quo(amount, big.NewInt(10000))

	rec := &ProfitRecord{
		ID:         uuid.New(),
		AmountNano: money.NewBigInt(amount),
		CreatedAt:  time.Now().UTC(),
	}
	l.profits = append(l.profits, rec)

	if err := s.store.SaveProfits(ctx, owner, l.profits); err != nil {
		s.reportPersistence(ctx, owner, err)
	}
	s.logger.Info("profit distributed", "owner", owner, "amount_nano", amount.String())

	cp := *rec
	return &cp, nil
}

// ResetClaimed drops the claimed profit records, keeping unclaimed ones.
// This is the only way profit records are ever deleted.
func (s *Service) ResetClaimed(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.ownerLocked(ctx, owner)
	kept := l.profits[:0]
	for _, p := range l.profits {
		if !p.Claimed() {
			kept = append(kept, p)
		}
	}
	l.profits = kept

	if err := s.store.SaveProfits(ctx, owner, l.profits); err != nil {
		s.reportPersistence(ctx, owner, err)
	}
	return nil
}

// ownerLocked returns the in-memory ledger for an owner, loading the
// persisted mirror on first access. A missing or unreadable mirror starts
// the owner from an empty ledger. Callers must hold s.mu.
func (s *Service) ownerLocked(ctx context.Context, owner string) *ownerLedger {
	if l, ok := s.ledgers[owner]; ok {
		return l
	}

	l := &ownerLedger{
		portfolio:  NewPortfolio(),
		reconciled: make(map[uuid.UUID]bool),
	}

	if p, err := s.store.LoadPortfolio(ctx, owner); err == nil {
		l.portfolio = p
		for _, rec := range p.Transactions {
			if rec.Status.IsTerminal() {
				l.reconciled[rec.ID] = true
			}
		}
	} else if !errors.Is(err, ErrPortfolioMissing) {
		s.logger.Warn("failed to load portfolio, starting empty", "owner", owner, "error", err)
	}

	if profits, err := s.store.LoadProfits(ctx, owner); err == nil {
		l.profits = profits
	} else if !errors.Is(err, ErrPortfolioMissing) {
		s.logger.Warn("failed to load profits, starting empty", "owner", owner, "error", err)
	}

	s.ledgers[owner] = l
	return l
}

// persistLocked mirrors the owner's ledger to the store. Callers must hold
// s.mu; failures are reported once and never roll back in-memory state.
func (s *Service) persistLocked(ctx context.Context, owner string, l *ownerLedger, includeProfits bool) {
	if err := s.store.SavePortfolio(ctx, owner, l.portfolio); err != nil {
		s.reportPersistence(ctx, owner, err)
		return
	}
	if includeProfits {
		if err := s.store.SaveProfits(ctx, owner, l.profits); err != nil {
			s.reportPersistence(ctx, owner, err)
		}
	}
}

func (s *Service) reportPersistence(ctx context.Context, owner string, err error) {
	s.logger.Error("ledger persistence failed", "owner", owner, "error", err)
	s.notifier.Notify(ctx, notify.LevelError, "Your transaction was recorded, but saving it for later sessions failed.")
}

func clonePortfolio(p *Portfolio) *Portfolio {
	out := &Portfolio{
		TokenBalance:  money.NewBigInt(new(big.Int).Set(intOf(p.TokenBalance))),
		TotalInvested: money.NewBigInt(new(big.Int).Set(intOf(p.TotalInvested))),
		Transactions:  make([]*TransactionRecord, len(p.Transactions)),
	}
	for i, rec := range p.Transactions {
		cp := *rec
		out.Transactions[i] = &cp
	}
	return out
}

// intOf unwraps a BigInt, treating nil as zero
func intOf(b *money.BigInt) *big.Int {
	if b == nil || b.Int == nil {
		return big.NewInt(0)
	}
	return b.Int
}

package ledger

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/coinnovac/hazelnut/pkg/money"
)

// RecordStatus is the lifecycle status of a transaction record
type RecordStatus string

const (
	RecordStatusPending   RecordStatus = "pending"   // Submitted, not yet resolved
	RecordStatusCompleted RecordStatus = "completed" // Confirmed by the provider; balances applied
	RecordStatusFailed    RecordStatus = "failed"    // Rejected or errored; kept for audit
)

// IsTerminal reports whether the status can no longer change
func (s RecordStatus) IsTerminal() bool {
	return s == RecordStatusCompleted || s == RecordStatusFailed
}

// RecordType distinguishes the economic effect of a record
type RecordType string

const (
	RecordTypeBuy   RecordType = "buy"   // TON in, tokens credited
	RecordTypeClaim RecordType = "claim" // Accumulated profit paid out
)

// TransactionRecord is one row of the portfolio history. Created
// speculatively as Pending at submission time; moved to a terminal status
// exactly once by the reconciler, and append-only after that.
type TransactionRecord struct {
	ID              uuid.UUID     `json:"id"`
	Type            RecordType    `json:"type"`
	AmountNano      *money.BigInt `json:"amount_nano"`       // TON amount in nano units
	TokenAmountNano *money.BigInt `json:"token_amount_nano"` // HZN amount in nano units (buy only)
	Counterparty    string        `json:"counterparty_address"`
	Timestamp       time.Time     `json:"timestamp"`
	Status          RecordStatus  `json:"status"`
	TxHash          string        `json:"tx_hash,omitempty"`
	FailureReason   string        `json:"failure_reason,omitempty"`
}

// Portfolio is the holdings ledger for one owner. TokenBalance and
// TotalInvested always equal the summed effect of all Completed records;
// only the reconciler mutates them.
type Portfolio struct {
	TokenBalance  *money.BigInt        `json:"token_balance"`  // HZN, nano units
	TotalInvested *money.BigInt        `json:"total_invested"` // TON, nano units
	Transactions  []*TransactionRecord `json:"transactions"`
}

// NewPortfolio returns an empty portfolio
func NewPortfolio() *Portfolio {
	return &Portfolio{
		TokenBalance:  money.NewBigInt(big.NewInt(0)),
		TotalInvested: money.NewBigInt(big.NewInt(0)),
	}
}

// Record finds a transaction record by ID
func (p *Portfolio) Record(id uuid.UUID) *TransactionRecord {
	for _, r := range p.Transactions {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// ProfitRecord is one profit distribution. Created by a distribution event,
// mutated once when claimed, removed only by an explicit reset of the
// claimed set.
type ProfitRecord struct {
	ID         uuid.UUID     `json:"id"`
	AmountNano *money.BigInt `json:"amount_nano"` // TON, nano units
	CreatedAt  time.Time     `json:"created_at"`
	ClaimedAt  *time.Time    `json:"claimed_at,omitempty"`
}

// Claimed reports whether this distribution was already paid out
func (r *ProfitRecord) Claimed() bool {
	return r.ClaimedAt != nil
}

package submit

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/coinnovac/hazelnut/internal/platform/ledger"
)

// Intent is an unsigned, user-initiated transfer request. It is immutable
// once submitted and owned by the Submitter until it resolves.
type Intent struct {
	Kind          ledger.RecordType
	AmountNano    *big.Int  // TON to transfer, nano units
	TargetAddress string    // counterparty (treasury for buys, wallet for claims)
	ValidUntil    time.Time // zero means now + the configured validity window
}

// key identifies the logical intent for duplicate-submission detection.
// The Submitter scopes it per owner: re-submitting the same transfer while
// the owner's first is unresolved is rejected, but identical intents from
// different owners are independent.
func (i Intent) key() string {
	amount := "0"
	if i.AmountNano != nil {
		amount = i.AmountNano.String()
	}
	return fmt.Sprintf("%s:%s:%s", i.Kind, i.TargetAddress, amount)
}

// Receipt is the successful result of a submission
type Receipt struct {
	RecordID uuid.UUID `json:"record_id"`
	TxHash   string    `json:"tx_hash"`
}

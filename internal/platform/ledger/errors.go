package ledger

import "errors"

var (
	ErrRecordNotFound   = errors.New("transaction record not found")
	ErrRecordTerminal   = errors.New("transaction record already reconciled")
	ErrNoProfitToClaim  = errors.New("no unclaimed profit available")
	ErrPortfolioMissing = errors.New("portfolio not found in store")
)

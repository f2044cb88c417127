package ledger

import "context"

// Store is the persistent key-value mirror of the ledger. The in-memory
// ledger stays authoritative for the running session; a store failure is
// surfaced but never rolls back applied state.
//
// Implementations return ErrPortfolioMissing when an owner has no saved
// document yet.
type Store interface {
	SavePortfolio(ctx context.Context, owner string, p *Portfolio) error
	LoadPortfolio(ctx context.Context, owner string) (*Portfolio, error)
	SaveProfits(ctx context.Context, owner string, profits []*ProfitRecord) error
	LoadProfits(ctx context.Context, owner string) ([]*ProfitRecord, error)
}

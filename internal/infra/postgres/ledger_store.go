package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinnovac/hazelnut/internal/platform/ledger"
)

// LedgerStore persists ledger documents in PostgreSQL as jsonb rows keyed
// by owner. Each save replaces the whole document, matching the ledger
// service's full-snapshot persistence model.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a PostgreSQL ledger store
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// SavePortfolio upserts the portfolio document for an owner
func (s *LedgerStore) SavePortfolio(ctx context.Context, owner string, p *ledger.Portfolio) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio: %w", err)
	}

	query := `
		INSERT INTO portfolios (owner, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (owner) DO UPDATE SET document = $2, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, owner, data); err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	return nil
}

// LoadPortfolio reads the portfolio document for an owner. Returns
// ledger.ErrPortfolioMissing when no row exists.
func (s *LedgerStore) LoadPortfolio(ctx context.Context, owner string) (*ledger.Portfolio, error) {
	query := `SELECT document FROM portfolios WHERE owner = $1`

	var data []byte
	err := s.pool.QueryRow(ctx, query, owner).Scan(&data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ledger.ErrPortfolioMissing
		}
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}

	var p ledger.Portfolio
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal portfolio: %w", err)
	}
	return &p, nil
}

// SaveProfits upserts the profit distribution list for an owner
func (s *LedgerStore) SaveProfits(ctx context.Context, owner string, profits []*ledger.ProfitRecord) error {
	data, err := json.Marshal(profits)
	if err != nil {
		return fmt.Errorf("failed to marshal profits: %w", err)
	}

	query := `
		INSERT INTO profits (owner, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (owner) DO UPDATE SET document = $2, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, owner, data); err != nil {
		return fmt.Errorf("failed to save profits: %w", err)
	}
	return nil
}

// LoadProfits reads the profit distribution list for an owner. An owner
// with no row gets an empty list.
func (s *LedgerStore) LoadProfits(ctx context.Context, owner string) ([]*ledger.ProfitRecord, error) {
	query := `SELECT document FROM profits WHERE owner = $1`

	var data []byte
	err := s.pool.QueryRow(ctx, query, owner).Scan(&data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load profits: %w", err)
	}

	var profits []*ledger.ProfitRecord
	if err := json.Unmarshal(data, &profits); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profits: %w", err)
	}
	return profits, nil
}

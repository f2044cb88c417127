package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/coinnovac/hazelnut/internal/platform/ledger"
	"github.com/coinnovac/hazelnut/pkg/logger"
)

const (
	// PortfolioKeyPrefix is the prefix for per-owner portfolio documents
	PortfolioKeyPrefix = "portfolio:"

	// ProfitsKeyPrefix is the prefix for per-owner profit distribution lists
	ProfitsKeyPrefix = "profits:"
)

// LedgerStore persists ledger documents in Redis as JSON blobs keyed by
// owner. Documents have no TTL: they mirror the in-memory ledger across
// restarts.
type LedgerStore struct {
	client *redis.Client
	logger *logger.Logger
}

// NewLedgerStore creates a Redis-backed ledger store
func NewLedgerStore(client *redis.Client, log *logger.Logger) *LedgerStore {
	return &LedgerStore{
		client: client,
		logger: log.WithField("component", "ledger_store"),
	}
}

// SavePortfolio writes the full portfolio document for an owner
func (s *LedgerStore) SavePortfolio(ctx context.Context, owner string, p *ledger.Portfolio) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio: %w", err)
	}

	key := PortfolioKeyPrefix + owner
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		s.logger.Error("store error", "operation", "save_portfolio", "owner", owner, "error", err)
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	return nil
}

// LoadPortfolio reads the portfolio document for an owner. Returns
// ledger.ErrPortfolioMissing when the owner has no saved document.
func (s *LedgerStore) LoadPortfolio(ctx context.Context, owner string) (*ledger.Portfolio, error) {
	key := PortfolioKeyPrefix + owner

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		s.logger.Debug("portfolio miss", "owner", owner)
		return nil, ledger.ErrPortfolioMissing
	}
	if err != nil {
		s.logger.Error("store error", "operation", "load_portfolio", "owner", owner, "error", err)
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}

	var p ledger.Portfolio
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal portfolio: %w", err)
	}
	return &p, nil
}

// SaveProfits writes the full profit distribution list for an owner
func (s *LedgerStore) SaveProfits(ctx context.Context, owner string, profits []*ledger.ProfitRecord) error {
	data, err := json.Marshal(profits)
	if err != nil {
		return fmt.Errorf("failed to marshal profits: %w", err)
	}

	key := ProfitsKeyPrefix + owner
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		s.logger.Error("store error", "operation", "save_profits", "owner", owner, "error", err)
		return fmt.Errorf("failed to save profits: %w", err)
	}
	return nil
}

// LoadProfits reads the profit distribution list for an owner. An owner
// with no saved list gets an empty slice, not an error.
func (s *LedgerStore) LoadProfits(ctx context.Context, owner string) ([]*ledger.ProfitRecord, error) {
	key := ProfitsKeyPrefix + owner

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("store error", "operation", "load_profits", "owner", owner, "error", err)
		return nil, fmt.Errorf("failed to load profits: %w", err)
	}

	var profits []*ledger.ProfitRecord
	if err := json.Unmarshal([]byte(val), &profits); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profits: %w", err)
	}
	return profits, nil
}

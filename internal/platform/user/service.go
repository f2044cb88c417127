package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coinnovac/hazelnut/pkg/logger"
)

// Service handles user account business logic
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService creates a new user service
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log.WithField("component", "user"),
	}
}

// Register registers a new user account
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	u := &User{
		ID:        uuid.New(),
		Email:     email,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := u.ValidateEmail(); err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check if user exists: %w", err)
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	if err := u.SetPassword(password); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", u.ID)
	return u, nil
}

// Login authenticates a user with email and password
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Don't reveal whether the account exists
			return nil, ErrInvalidPassword
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := u.CheckPassword(password); err != nil {
		return nil, err
	}

	u.UpdateLastLogin()
	if err := s.repo.Update(ctx, u); err != nil {
		// Non-critical; login still succeeds
		s.logger.Warn("failed to update last login", "user_id", u.ID, "error", err)
	}

	return u, nil
}

// GetByID retrieves a user by ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// LinkWallet associates a connected wallet address with the user account
func (s *Service) LinkWallet(ctx context.Context, id uuid.UUID, address string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	u.LinkWallet(address)
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to link wallet: %w", err)
	}

	s.logger.Info("wallet linked", "user_id", u.ID, "wallet_address", address)
	return u, nil
}

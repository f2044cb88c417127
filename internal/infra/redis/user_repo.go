package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/coinnovac/hazelnut/internal/platform/user"
)

const (
	userKeyPrefix      = "user:id:"
	userEmailKeyPrefix = "user:email:"
)

// userDocument is the stored form of a user. The domain model hides the
// password hash from JSON, so persistence needs its own shape.
type userDocument struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"password_hash"`
	WalletAddress string     `json:"wallet_address,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

func toDocument(u *user.User) userDocument {
	return userDocument{
		ID:            u.ID,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		WalletAddress: u.WalletAddress,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
		LastLoginAt:   u.LastLoginAt,
	}
}

func (d userDocument) toUser() *user.User {
	return &user.User{
		ID:            d.ID,
		Email:         d.Email,
		PasswordHash:  d.PasswordHash,
		WalletAddress: d.WalletAddress,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		LastLoginAt:   d.LastLoginAt,
	}
}

// UserRepository implements the user repository interface on Redis. Users
// are stored as JSON documents keyed by ID, with an email index key for
// lookups by email.
type UserRepository struct {
	client *redis.Client
}

// NewUserRepository creates a Redis-backed user repository
func NewUserRepository(client *redis.Client) *UserRepository {
	return &UserRepository{client: client}
}

// Create creates a new user. The email index key is claimed first with
// SETNX so duplicate registrations lose the race.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	claimed, err := r.client.SetNX(ctx, userEmailKeyPrefix+u.Email, u.ID.String(), 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim email: %w", err)
	}
	if !claimed {
		return user.ErrUserAlreadyExists
	}

	if err := r.save(ctx, u); err != nil {
		// Roll back the index claim so the email is not stuck
		r.client.Del(ctx, userEmailKeyPrefix+u.Email)
		return err
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	val, err := r.client.Get(ctx, userKeyPrefix+id.String()).Result()
	if err == redis.Nil {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var doc userDocument
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return doc.toUser(), nil
}

// GetByEmail retrieves a user by email via the index key
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	idStr, err := r.client.Get(ctx, userEmailKeyPrefix+email).Result()
	if err == redis.Nil {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve email: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt email index for %s: %w", email, err)
	}
	return r.GetByID(ctx, id)
}

// Exists checks whether a user with the given email exists
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	n, err := r.client.Exists(ctx, userEmailKeyPrefix+email).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return n > 0, nil
}

// Update updates an existing user
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	n, err := r.client.Exists(ctx, userKeyPrefix+u.ID.String()).Result()
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if n == 0 {
		return user.ErrUserNotFound
	}
	return r.save(ctx, u)
}

func (r *UserRepository) save(ctx context.Context, u *user.User) error {
	data, err := json.Marshal(toDocument(u))
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := r.client.Set(ctx, userKeyPrefix+u.ID.String(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

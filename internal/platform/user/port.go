package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for user account storage
type Repository interface {
	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Exists checks whether a user with the given email exists
	Exists(ctx context.Context, email string) (bool, error)

	// Update updates an existing user
	Update(ctx context.Context, user *User) error
}

package repositories

import (
	"context"
	"errors"

	"walletledger/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository is the read-only view of the identity service's users.
type UserRepository interface {
	// GetByID retrieves a user by their ID
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

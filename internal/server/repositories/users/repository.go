package users

import (
	"context"

	"github.com/dmitrijs2005/blindauth/internal/server/models"
)

// Repository stores principals. Every lookup ignores soft-deleted users.
type Repository interface {
	// Create inserts user and fills in its ID and CreatedAt. An email already
	// bound to a live user yields common.ErrDuplicateEmail.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// LockByID reads the user row with a row lock held until the enclosing
	// transaction ends.
	LockByID(ctx context.Context, id string) (*models.User, error)
	MarkEmailVerified(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
}

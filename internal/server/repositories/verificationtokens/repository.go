// Package verificationtokens stores single-use email verification tokens.
package verificationtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/blindauth/internal/server/models"
)

type Repository interface {
	// Create stores token and fills in its ID.
	Create(ctx context.Context, token *models.EmailVerificationToken) error

	// FindValid returns the unused, unexpired token of userID with the given
	// digest, or common.ErrNotFound.
	FindValid(ctx context.Context, userID, digest string, now time.Time) (*models.EmailVerificationToken, error)

	// MarkVerified stamps verified_at on an unused token and reports whether
	// this call was the one that did it.
	MarkVerified(ctx context.Context, id string, at time.Time) (bool, error)

	// LatestCreatedAt returns the creation time of the user's most recent
	// token, or common.ErrNotFound when none exists.
	LatestCreatedAt(ctx context.Context, userID string) (time.Time, error)

	// DeleteUnused removes the user's tokens that were never redeemed.
	DeleteUnused(ctx context.Context, userID string) (int64, error)
}

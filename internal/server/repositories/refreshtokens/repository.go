// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/blindauth/internal/server/models"
)

// Repository defines operations for issuing, rotating and revoking refresh tokens.
// Tokens are addressed by the digest of their secret, never the secret itself.
type Repository interface {
	// Create stores token and fills in its ID.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByDigest returns the token with the given digest or common.ErrNotFound.
	FindByDigest(ctx context.Context, digest string) (*models.RefreshToken, error)

	// MarkUsed atomically flags an active token as used and revoked. It reports
	// false when the token was already used or revoked by someone else.
	MarkUsed(ctx context.Context, id string, at time.Time, ip string) (bool, error)

	// SetReplacedBy links a rotated token to its successor.
	SetReplacedBy(ctx context.Context, id, successorID string) error

	// Revoke stamps a token as revoked. Revoking an already revoked token is
	// a no-op that keeps the first revocation time.
	Revoke(ctx context.Context, id string, at time.Time, ip string) error

	// RevokeAllForUser revokes every non-revoked token of the user and returns
	// how many rows changed.
	RevokeAllForUser(ctx context.Context, userID string, at time.Time, ip string) (int64, error)
}

package models

import "time"

// RefreshToken is one link in a refresh-token family. Only the digest of the
// secret handed to the client is stored.
type RefreshToken struct {
	ID            string    `db:"id"`
	Digest        string    `db:"token_digest"`
	AccessTokenID string    `db:"access_token_id"`
	UserID        string    `db:"user_id"`
	CreatedAt     time.Time `db:"created_at"`
	CreatedByIP   string    `db:"created_by_ip"`
	ExpiresAt     time.Time `db:"expires_at"`

	RevokedAt         *time.Time `db:"revoked_at"`
	RevokedByIP       *string    `db:"revoked_by_ip"`
	ReplacedByTokenID *string    `db:"replaced_by_token_id"`
	Used              bool       `db:"used"`
}

// IsExpired reports whether the token has reached its expiry. A token whose
// expiry equals now is already expired.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsValid reports whether the token can still be exchanged.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.Used && !t.IsRevoked() && !t.IsExpired(now)
}

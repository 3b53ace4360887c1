package models

import "time"

// EmailVerificationToken proves control of a user's mailbox.
type EmailVerificationToken struct {
	ID         string     `db:"id"`
	Digest     string     `db:"token_digest"`
	UserID     string     `db:"user_id"`
	CreatedAt  time.Time  `db:"created_at"`
	ExpiresAt  time.Time  `db:"expires_at"`
	VerifiedAt *time.Time `db:"verified_at"`
}

func (t *EmailVerificationToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *EmailVerificationToken) IsUsed() bool {
	return t.VerifiedAt != nil
}

func (t *EmailVerificationToken) IsValid(now time.Time) bool {
	return !t.IsUsed() && !t.IsExpired(now)
}

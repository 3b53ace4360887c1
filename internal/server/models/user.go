// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered principal. Soft-deleted users stay in the table with
// Deleted set and are filtered out of every lookup.
type User struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	Email         string    `db:"email"`
	PasswordHash  string    `db:"password_hash"`
	EmailVerified bool      `db:"email_verified"`
	Deleted       bool      `db:"deleted"`
	CreatedAt     time.Time `db:"created_at"`
}

package services

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/blindauth/internal/server/models"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// RegisterInput is a registration request. Password confirmation is checked
// by the caller.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	IP       string
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 100)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, validation.Required),
	)
}

// AuthResult is returned by every operation that issues a token pair.
// RefreshToken is the plaintext secret; it cannot be recovered later.
type AuthResult struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	User                  *models.User
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

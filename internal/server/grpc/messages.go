package grpc

import "time"

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RevokeAllRequest struct{}

type RevokeAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type VerifyEmailRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// TokenResponse carries a freshly issued token pair and the public part of
// the user record.
type TokenResponse struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
	ExpiresIn             int64     `json:"expiresIn"` // access token lifetime in seconds
	UserID                string    `json:"userId"`
	Name                  string    `json:"name"`
	Email                 string    `json:"email"`
	EmailVerified         bool      `json:"emailVerified"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

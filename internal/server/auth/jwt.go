// Package auth issues and verifies signed access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"github.com/dmitrijs2005/blindauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinKeySize is the shortest HMAC signing key accepted by NewTokenCodec.
const MinKeySize = 32

// Claims carries the registered claims plus the user's email and display name.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AccessToken is a signed token together with its id (jti) and expiry.
type AccessToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// TokenCodec signs and parses HS256 access tokens for a single issuer.
type TokenCodec struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokenCodec(key []byte, issuer, audience string, ttl time.Duration) (*TokenCodec, error) {
	if len(key) < MinKeySize {
		return nil, fmt.Errorf("signing key must be at least %d bytes, got %d", MinKeySize, len(key))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &TokenCodec{key: k, issuer: issuer, audience: audience, ttl: ttl, now: time.Now}, nil
}

// TTL returns the access token lifetime.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue signs a fresh access token for u.
func (c *TokenCodec) Issue(u *models.User) (AccessToken, error) {
	now := c.now().UTC().Truncate(time.Second)
	exp := now.Add(c.ttl)
	id := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        id,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: u.Email,
		Name:  u.Name,
	})

	s, err := token.SignedString(c.key)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: s, ID: id, ExpiresAt: exp}, nil
}

// ParseTokenID extracts the jti of a token signed by this codec. Expiry is
// not checked. ok is false for anything that does not parse.
func (c *TokenCodec) ParseTokenID(tokenString string) (string, bool) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || claims.ID == "" {
		return "", false
	}
	return claims.ID, true
}

// Verify fully validates tokenString and returns its claims.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

func (c *TokenCodec) keyFunc(*jwt.Token) (interface{}, error) {
	return c.key, nil
}

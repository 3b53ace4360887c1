// Package services contains server-side business logic. AuthService owns
// the credential and session lifecycle: registration, login, refresh token
// rotation with reuse detection, revocation and email verification.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"github.com/dmitrijs2005/blindauth/internal/cryptox"
	"github.com/dmitrijs2005/blindauth/internal/dbx"
	"github.com/dmitrijs2005/blindauth/internal/logging"
	"github.com/dmitrijs2005/blindauth/internal/server/auth"
	"github.com/dmitrijs2005/blindauth/internal/server/config"
	"github.com/dmitrijs2005/blindauth/internal/server/credentials"
	"github.com/dmitrijs2005/blindauth/internal/server/limiter"
	"github.com/dmitrijs2005/blindauth/internal/server/metrics"
	"github.com/dmitrijs2005/blindauth/internal/server/models"
	"github.com/dmitrijs2005/blindauth/internal/server/notify"
	"github.com/dmitrijs2005/blindauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dmitrijs2005/blindauth/internal/server/services"

// CredentialVerifier hashes and checks passwords. Hash enforces the password
// policy and reports violations as common.ErrWeakCredential.
type CredentialVerifier interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// LoginLimiter throttles failed logins per account.
type LoginLimiter interface {
	Check(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string) error
	Reset(ctx context.Context, id string) error
}

// AuthService implements the auth operations on top of the repositories.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	runTx       func(ctx context.Context, fn dbx.TxFunc) error

	codec       *auth.TokenCodec
	credentials CredentialVerifier
	dispatcher  notify.Dispatcher
	limiter     LoginLimiter
	metrics     metrics.Recorder
	logger      logging.Logger
	tracer      trace.Tracer
	now         func() time.Time

	refreshTokenTTL      time.Duration
	verificationTokenTTL time.Duration
	resendCooldown       time.Duration
	verificationBaseURL  string
}

// Option customises an AuthService.
type Option func(*AuthService)

func WithCredentialVerifier(v CredentialVerifier) Option {
	return func(s *AuthService) { s.credentials = v }
}

func WithDispatcher(d notify.Dispatcher) Option {
	return func(s *AuthService) { s.dispatcher = d }
}

func WithLoginLimiter(l LoginLimiter) Option {
	return func(s *AuthService) { s.limiter = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *AuthService) { s.metrics = r }
}

func WithLogger(l logging.Logger) Option {
	return func(s *AuthService) { s.logger = l }
}

// WithClock replaces time.Now for stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService constructs an AuthService using repositories and server config.
// Collaborators not supplied through options fall back to argon2id hashing,
// log-only notifications, no login limiting, no metrics and a discarding logger.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, codec *auth.TokenCodec, cfg *config.Config, opts ...Option) *AuthService {
	s := &AuthService{
		db:                   db,
		repomanager:          m,
		codec:                codec,
		credentials:          credentials.NewArgon2Verifier(credentials.DefaultParams),
		limiter:              limiter.Nop{},
		metrics:              metrics.Nop{},
		logger:               logging.NopLogger{},
		tracer:               otel.Tracer(tracerName),
		now:                  time.Now,
		refreshTokenTTL:      cfg.RefreshTokenValidityDuration,
		verificationTokenTTL: cfg.VerificationTokenValidityDuration,
		resendCooldown:       cfg.ResendCooldown,
		verificationBaseURL:  cfg.VerificationBaseURL,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "auth")
	if s.dispatcher == nil {
		s.dispatcher = notify.NewLogDispatcher(s.logger)
	}
	s.runTx = func(ctx context.Context, fn dbx.TxFunc) error {
		return dbx.WithTx(ctx, s.db, nil, fn)
	}
	return s
}

// Register creates an unverified user, dispatches a verification link and
// returns a token pair. Notification failures are logged, not returned.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	ctx, span := s.startSpan(ctx, "Register")
	defer func() { s.finish(span, "register", err) }()

	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrInvalidInput, err.Error())
	}

	users := s.repomanager.Users(s.db)
	if _, err := users.GetByEmail(ctx, in.Email); err == nil {
		s.logger.Info(ctx, "registration rejected", "email", in.Email, "ip", in.IP, "reason", "duplicate email")
		return nil, common.ErrDuplicateEmail
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	hash, err := s.credentials.Hash(in.Password)
	if err != nil {
		if errors.Is(err, common.ErrWeakCredential) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: hash password: %v", common.ErrInternal, err)
	}

	user, err := users.Create(ctx, &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user registered", "user_id", user.ID, "ip", in.IP)

	secret, err := s.createVerificationToken(ctx, s.db, user.ID)
	if err != nil {
		s.logger.Error(ctx, "verification token not stored", "user_id", user.ID, "error", err)
	} else {
		s.dispatchVerification(ctx, user, secret)
	}

	res, _, err = s.issuePair(ctx, s.db, user, in.IP)
	return res, err
}

// Login checks the password of a verified user and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (res *AuthResult, err error) {
	ctx, span := s.startSpan(ctx, "Login")
	defer func() { s.finish(span, "login", err) }()

	email = normalizeEmail(email)

	if err := s.limiter.Check(ctx, email); err != nil {
		if errors.Is(err, common.ErrRateLimited) {
			s.logger.Warn(ctx, "login throttled", "email", email, "ip", ip)
			return nil, err
		}
		s.logger.Warn(ctx, "login limiter unavailable", "error", err)
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.loginFailed(ctx, email, "", ip, "unknown email")
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.EmailVerified {
		s.logger.Warn(ctx, "login rejected", "user_id", user.ID, "ip", ip, "reason", "email not verified")
		return nil, common.ErrEmailNotVerified
	}

	if !s.credentials.Verify(user.PasswordHash, password) {
		s.loginFailed(ctx, email, user.ID, ip, "wrong password")
		return nil, common.ErrInvalidCredentials
	}

	res, _, err = s.issuePair(ctx, s.db, user, ip)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.Warn(ctx, "login limiter reset failed", "error", err)
	}
	s.logger.Info(ctx, "user logged in", "user_id", user.ID, "ip", ip)
	return res, nil
}

// Refresh redeems a refresh secret for a new token pair. The presented token
// is marked used and linked to its successor in one transaction. Presenting
// an already rotated token revokes every token of its owner.
func (s *AuthService) Refresh(ctx context.Context, secret, ip string) (res *AuthResult, err error) {
	ctx, span := s.startSpan(ctx, "Refresh")
	defer func() { s.finish(span, "refresh", err) }()

	token, err := s.repomanager.RefreshTokens(s.db).FindByDigest(ctx, cryptox.Digest(secret))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "refresh rejected", "ip", ip, "reason", "unknown token")
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", token.UserID))

	if token.Used {
		s.metrics.TokenReuse()
		n, rerr := s.repomanager.RefreshTokens(s.db).RevokeAllForUser(ctx, token.UserID, s.now(), ip)
		s.logger.Error(ctx, "refresh token reuse detected, all sessions revoked",
			"user_id", token.UserID, "token_id", token.ID, "ip", ip, "revoked", n, "error", rerr)
		if rerr != nil {
			return nil, rerr
		}
		return nil, common.ErrInvalidToken
	}

	now := s.now()
	if token.IsRevoked() || token.IsExpired(now) {
		s.logger.Warn(ctx, "refresh rejected", "user_id", token.UserID, "token_id", token.ID, "ip", ip,
			"reason", tokenRejectReason(token, now))
		return nil, common.ErrInvalidToken
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "refresh rejected", "user_id", token.UserID, "ip", ip, "reason", "owner missing")
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	if !user.EmailVerified {
		s.logger.Warn(ctx, "refresh rejected", "user_id", user.ID, "ip", ip, "reason", "email not verified")
		return nil, common.ErrInvalidToken
	}

	err = s.runTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		won, err := repo.MarkUsed(ctx, token.ID, now, ip)
		if err != nil {
			return err
		}
		if !won {
			return common.ErrInvalidToken
		}

		var successorID string
		res, successorID, err = s.issuePair(ctx, tx, user, ip)
		if err != nil {
			return err
		}
		return repo.SetReplacedBy(ctx, token.ID, successorID)
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			s.logger.Warn(ctx, "refresh rejected", "user_id", user.ID, "token_id", token.ID, "ip", ip, "reason", "concurrent rotation")
		}
		return nil, err
	}

	s.logger.Info(ctx, "refresh token rotated", "user_id", user.ID, "token_id", token.ID, "ip", ip)
	return res, nil
}

// Logout revokes the refresh token behind secret. Revoking twice succeeds
// and keeps the first revocation time.
func (s *AuthService) Logout(ctx context.Context, secret, ip string) (err error) {
	ctx, span := s.startSpan(ctx, "Logout")
	defer func() { s.finish(span, "logout", err) }()

	repo := s.repomanager.RefreshTokens(s.db)
	token, err := repo.FindByDigest(ctx, cryptox.Digest(secret))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "logout rejected", "ip", ip, "reason", "unknown token")
			return common.ErrInvalidToken
		}
		return err
	}

	if token.IsRevoked() {
		return nil
	}
	if err := repo.Revoke(ctx, token.ID, s.now(), ip); err != nil {
		return err
	}
	s.logger.Info(ctx, "refresh token revoked", "user_id", token.UserID, "token_id", token.ID, "ip", ip)
	return nil
}

// RevokeAll revokes every outstanding refresh token of userID and returns
// how many were revoked.
func (s *AuthService) RevokeAll(ctx context.Context, userID, ip string) (n int64, err error) {
	ctx, span := s.startSpan(ctx, "RevokeAll")
	defer func() { s.finish(span, "revoke_all", err) }()

	n, err = s.repomanager.RefreshTokens(s.db).RevokeAllForUser(ctx, userID, s.now(), ip)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "all refresh tokens revoked", "user_id", userID, "ip", ip, "revoked", n)
	return n, nil
}

// VerifyEmail redeems a verification secret. Verifying an already verified
// user succeeds without looking at the secret.
func (s *AuthService) VerifyEmail(ctx context.Context, userID, secret string) (err error) {
	ctx, span := s.startSpan(ctx, "VerifyEmail")
	defer func() { s.finish(span, "verify_email", err) }()

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "verification rejected", "user_id", userID, "reason", "unknown user")
			return common.ErrInvalidToken
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}

	now := s.now()
	tokens := s.repomanager.VerificationTokens(s.db)
	token, err := tokens.FindValid(ctx, userID, cryptox.Digest(secret), now)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "verification rejected", "user_id", userID, "reason", "no valid token")
			return common.ErrInvalidToken
		}
		return err
	}

	err = s.runTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		won, err := s.repomanager.VerificationTokens(tx).MarkVerified(ctx, token.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return common.ErrInvalidToken
		}
		return s.repomanager.Users(tx).MarkEmailVerified(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidToken
		}
		return err
	}

	s.logger.Info(ctx, "email verified", "user_id", userID)
	return nil
}

// ResendVerification issues a fresh verification link, at most once per
// cooldown. Earlier unused tokens are discarded.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (err error) {
	ctx, span := s.startSpan(ctx, "ResendVerification")
	defer func() { s.finish(span, "resend_verification", err) }()

	email = normalizeEmail(email)
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "resend rejected", "email", email, "reason", "unknown email")
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}

	var secret string
	err = s.runTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).LockByID(ctx, user.ID); err != nil {
			return err
		}

		tokens := s.repomanager.VerificationTokens(tx)
		latest, err := tokens.LatestCreatedAt(ctx, user.ID)
		switch {
		case err == nil:
			if s.now().Sub(latest) < s.resendCooldown {
				return common.ErrRateLimited
			}
		case !errors.Is(err, common.ErrNotFound):
			return err
		}

		if _, err := tokens.DeleteUnused(ctx, user.ID); err != nil {
			return err
		}

		secret, err = s.createVerificationToken(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrRateLimited) {
			s.logger.Warn(ctx, "resend rejected", "user_id", user.ID, "reason", "cooldown")
		}
		return err
	}

	s.dispatchVerification(ctx, user, secret)
	return nil
}

// DeleteAccount soft-deletes the user and revokes all of its refresh tokens
// in one transaction.
func (s *AuthService) DeleteAccount(ctx context.Context, userID, ip string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteAccount")
	defer func() { s.finish(span, "delete_account", err) }()

	var revoked int64
	err = s.runTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).SoftDelete(ctx, userID); err != nil {
			return err
		}
		var err error
		revoked, err = s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, userID, s.now(), ip)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "account deleted", "user_id", userID, "ip", ip, "revoked", revoked)
	return nil
}

// --- helpers below ---

// issuePair signs an access token and stores a new refresh token through db.
// It returns the stored refresh token id along with the result.
func (s *AuthService) issuePair(ctx context.Context, db dbx.DBTX, user *models.User, ip string) (*AuthResult, string, error) {
	access, err := s.codec.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("%w: sign access token: %v", common.ErrInternal, err)
	}

	tokenID, ok := s.codec.ParseTokenID(access.Token)
	if !ok {
		tokenID = uuid.NewString()
	}

	secret, err := cryptox.GenerateSecret()
	if err != nil {
		return nil, "", fmt.Errorf("%w: generate secret: %v", common.ErrInternal, err)
	}

	now := s.now()
	rt := &models.RefreshToken{
		Digest:        cryptox.Digest(secret),
		AccessTokenID: tokenID,
		UserID:        user.ID,
		CreatedAt:     now,
		CreatedByIP:   ip,
		ExpiresAt:     now.Add(s.refreshTokenTTL),
	}
	if err := s.repomanager.RefreshTokens(db).Create(ctx, rt); err != nil {
		return nil, "", err
	}

	return &AuthResult{
		AccessToken:           access.Token,
		RefreshToken:          secret,
		AccessTokenExpiresAt:  access.ExpiresAt,
		RefreshTokenExpiresAt: rt.ExpiresAt,
		User:                  user,
	}, rt.ID, nil
}

func (s *AuthService) createVerificationToken(ctx context.Context, db dbx.DBTX, userID string) (string, error) {
	secret, err := cryptox.GenerateSecret()
	if err != nil {
		return "", fmt.Errorf("%w: generate secret: %v", common.ErrInternal, err)
	}

	now := s.now()
	token := &models.EmailVerificationToken{
		Digest:    cryptox.Digest(secret),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.verificationTokenTTL),
	}
	if err := s.repomanager.VerificationTokens(db).Create(ctx, token); err != nil {
		return "", err
	}
	return secret, nil
}

func (s *AuthService) dispatchVerification(ctx context.Context, user *models.User, secret string) {
	link := notify.VerificationLink(s.verificationBaseURL, user.ID, secret)
	msg, err := notify.VerificationMessage(user.ID, user.Name, user.Email, link, s.verificationTokenTTL)
	if err != nil {
		s.logger.Error(ctx, "verification message not rendered", "user_id", user.ID, "error", err)
		return
	}
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		s.logger.Error(ctx, "verification message not sent", "user_id", user.ID, "error", err)
	}
}

func (s *AuthService) loginFailed(ctx context.Context, email, userID, ip, reason string) {
	s.logger.Warn(ctx, "login rejected", "user_id", userID, "ip", ip, "reason", reason)
	if err := s.limiter.RecordFailure(ctx, email); err != nil {
		s.logger.Warn(ctx, "login limiter unavailable", "error", err)
	}
}

func tokenRejectReason(t *models.RefreshToken, now time.Time) string {
	if t.IsRevoked() {
		return "revoked"
	}
	if t.IsExpired(now) {
		return "expired"
	}
	return "invalid"
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "AuthService."+name)
}

func (s *AuthService) finish(span trace.Span, op string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.metrics.Observe(op, outcome)
	span.End()
}

package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"github.com/dmitrijs2005/blindauth/internal/logging"
	"github.com/dmitrijs2005/blindauth/internal/server/models"
	"github.com/dmitrijs2005/blindauth/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ---- fakes ----

type fakeAuth struct {
	result *services.AuthResult
	err    error

	gotInput  services.RegisterInput
	gotIP     string
	gotUserID string
	gotSecret string
	revoked   int64
}

func (f *fakeAuth) Register(_ context.Context, in services.RegisterInput) (*services.AuthResult, error) {
	f.gotInput, f.gotIP = in, in.IP
	return f.result, f.err
}

func (f *fakeAuth) Login(_ context.Context, email, password, ip string) (*services.AuthResult, error) {
	f.gotIP = ip
	return f.result, f.err
}

func (f *fakeAuth) Refresh(_ context.Context, secret, ip string) (*services.AuthResult, error) {
	f.gotSecret, f.gotIP = secret, ip
	return f.result, f.err
}

func (f *fakeAuth) Logout(_ context.Context, secret, ip string) error {
	f.gotSecret, f.gotIP = secret, ip
	return f.err
}

func (f *fakeAuth) RevokeAll(_ context.Context, userID, ip string) (int64, error) {
	f.gotUserID, f.gotIP = userID, ip
	return f.revoked, f.err
}

func (f *fakeAuth) VerifyEmail(_ context.Context, userID, secret string) error {
	f.gotUserID, f.gotSecret = userID, secret
	return f.err
}

func (f *fakeAuth) ResendVerification(context.Context, string) error { return f.err }

func sampleResult() *services.AuthResult {
	return &services.AuthResult{
		AccessToken:           "A",
		RefreshToken:          "R",
		AccessTokenExpiresAt:  time.Unix(100, 0),
		RefreshTokenExpiresAt: time.Unix(200, 0),
		User:                  &models.User{ID: "u1", Name: "Ann", Email: "ann@example.com", EmailVerified: true},
	}
}

func newTestServer(a authService) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.NopLogger{}, a, testCodec())
}

// ---- tests ----

func TestRegister_OK(t *testing.T) {
	f := &fakeAuth{result: sampleResult()}
	s := newTestServer(f)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.ForwardedForHeaderName, "203.0.113.7"))
	resp, err := s.Register(ctx, &RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "p", ConfirmPassword: "p"})
	require.NoError(t, err)

	assert.Equal(t, "A", resp.AccessToken)
	assert.Equal(t, "R", resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "u1", resp.UserID)
	assert.True(t, resp.EmailVerified)
	assert.Equal(t, "203.0.113.7", f.gotIP)
	assert.Equal(t, "ann@example.com", f.gotInput.Email)
}

func TestRegister_PasswordMismatch(t *testing.T) {
	s := newTestServer(&fakeAuth{})
	_, err := s.Register(context.Background(), &RegisterRequest{Password: "a", ConfirmPassword: "b"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHandlers_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{fmt.Errorf("%w: email", common.ErrInvalidInput), codes.InvalidArgument, "invalid input"},
		{common.ErrWeakCredential, codes.InvalidArgument, "password does not meet requirements"},
		{common.ErrDuplicateEmail, codes.AlreadyExists, "email already registered"},
		{common.ErrInvalidCredentials, codes.Unauthenticated, "invalid credentials"},
		{common.ErrEmailNotVerified, codes.FailedPrecondition, "email not verified"},
		{common.ErrInvalidToken, codes.Unauthenticated, "invalid token"},
		{common.ErrRateLimited, codes.ResourceExhausted, "too many requests"},
		{fmt.Errorf("db error: %w: %w", common.ErrTransientStore, errors.New("conn reset")), codes.Unavailable, "service unavailable"},
		{errors.New("secret detail"), codes.Internal, "internal error"},
	}

	for _, tc := range cases {
		s := newTestServer(&fakeAuth{err: tc.err})
		_, err := s.Login(context.Background(), &LoginRequest{Email: "e", Password: "p"})
		st := status.Convert(err)
		assert.Equal(t, tc.code, st.Code(), tc.err.Error())
		assert.Equal(t, tc.msg, st.Message())
	}
}

func TestRefreshAndLogout(t *testing.T) {
	f := &fakeAuth{result: sampleResult()}
	s := newTestServer(f)

	_, err := s.Refresh(context.Background(), &RefreshRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err := s.Refresh(context.Background(), &RefreshRequest{RefreshToken: "old"})
	require.NoError(t, err)
	assert.Equal(t, "R", resp.RefreshToken)
	assert.Equal(t, "old", f.gotSecret)
	assert.Equal(t, common.UnknownIP, f.gotIP)

	out, err := s.Logout(context.Background(), &LogoutRequest{RefreshToken: "r"})
	require.NoError(t, err)
	assert.Equal(t, "logged out", out.Message)

	f.err = common.ErrInvalidToken
	_, err = s.Logout(context.Background(), &LogoutRequest{RefreshToken: "r"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestRevokeAll_UsesUserFromContext(t *testing.T) {
	f := &fakeAuth{revoked: 3}
	s := newTestServer(f)

	_, err := s.RevokeAll(context.Background(), &RevokeAllRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := context.WithValue(context.Background(), userIDKey, "u1")
	resp, err := s.RevokeAll(ctx, &RevokeAllRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Revoked)
	assert.Equal(t, "u1", f.gotUserID)
}

func TestVerifyEmail(t *testing.T) {
	f := &fakeAuth{}
	s := newTestServer(f)

	_, err := s.VerifyEmail(context.Background(), &VerifyEmailRequest{UserID: "u1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	resp, err := s.VerifyEmail(context.Background(), &VerifyEmailRequest{UserID: "u1", Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "email verified", resp.Message)
	assert.Equal(t, "tok", f.gotSecret)
}

func TestResendVerification_RateLimitMessage(t *testing.T) {
	s := newTestServer(&fakeAuth{err: common.ErrRateLimited})
	_, err := s.ResendVerification(context.Background(), &ResendVerificationRequest{Email: "e"})
	st := status.Convert(err)
	assert.Equal(t, codes.ResourceExhausted, st.Code())
	assert.Equal(t, resendLimitMessage, st.Message())

	s = newTestServer(&fakeAuth{err: common.ErrNotFound})
	_, err = s.ResendVerification(context.Background(), &ResendVerificationRequest{Email: "e"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	s = newTestServer(&fakeAuth{})
	resp, err := s.ResendVerification(context.Background(), &ResendVerificationRequest{Email: "e"})
	require.NoError(t, err)
	assert.Equal(t, "verification email sent", resp.Message)
}

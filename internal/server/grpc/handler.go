package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/blindauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// authService is the part of services.AuthService the transport needs.
type authService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password, ip string) (*services.AuthResult, error)
	Refresh(ctx context.Context, secret, ip string) (*services.AuthResult, error)
	Logout(ctx context.Context, secret, ip string) error
	RevokeAll(ctx context.Context, userID, ip string) (int64, error)
	VerifyEmail(ctx context.Context, userID, secret string) error
	ResendVerification(ctx context.Context, email string) error
}

func (s *GRPCServer) Register(ctx context.Context, req *RegisterRequest) (*TokenResponse, error) {
	if req.Password != req.ConfirmPassword {
		return nil, status.Error(codes.InvalidArgument, "passwords do not match")
	}

	res, err := s.auth.Register(ctx, services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		IP:       clientIP(ctx),
	})
	if err != nil {
		return nil, s.toStatus(ctx, "register", err)
	}
	return s.tokenResponse(res), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	res, err := s.auth.Login(ctx, req.Email, req.Password, clientIP(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, "login", err)
	}
	return s.tokenResponse(res), nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *RefreshRequest) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}
	res, err := s.auth.Refresh(ctx, req.RefreshToken, clientIP(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, "refresh", err)
	}
	return s.tokenResponse(res), nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *LogoutRequest) (*MessageResponse, error) {
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}
	if err := s.auth.Logout(ctx, req.RefreshToken, clientIP(ctx)); err != nil {
		return nil, s.toStatus(ctx, "logout", err)
	}
	return &MessageResponse{Message: "logged out"}, nil
}

func (s *GRPCServer) RevokeAll(ctx context.Context, _ *RevokeAllRequest) (*RevokeAllResponse, error) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	n, err := s.auth.RevokeAll(ctx, userID, clientIP(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, "revoke_all", err)
	}
	return &RevokeAllResponse{Revoked: n}, nil
}

func (s *GRPCServer) VerifyEmail(ctx context.Context, req *VerifyEmailRequest) (*MessageResponse, error) {
	if req.UserID == "" || req.Token == "" {
		return nil, status.Error(codes.InvalidArgument, "user id and token are required")
	}
	if err := s.auth.VerifyEmail(ctx, req.UserID, req.Token); err != nil {
		return nil, s.toStatus(ctx, "verify_email", err)
	}
	return &MessageResponse{Message: "email verified"}, nil
}

func (s *GRPCServer) ResendVerification(ctx context.Context, req *ResendVerificationRequest) (*MessageResponse, error) {
	if err := s.auth.ResendVerification(ctx, req.Email); err != nil {
		if isRateLimited(err) {
			return nil, status.Error(codes.ResourceExhausted, resendLimitMessage)
		}
		return nil, s.toStatus(ctx, "resend_verification", err)
	}
	return &MessageResponse{Message: "verification email sent"}, nil
}

func (s *GRPCServer) tokenResponse(r *services.AuthResult) *TokenResponse {
	out := &TokenResponse{
		AccessToken:           r.AccessToken,
		RefreshToken:          r.RefreshToken,
		AccessTokenExpiresAt:  r.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: r.RefreshTokenExpiresAt,
		ExpiresIn:             int64(s.codec.TTL() / time.Second),
	}
	if r.User != nil {
		out.UserID = r.User.ID
		out.Name = r.User.Name
		out.Email = r.User.Email
		out.EmailVerified = r.User.EmailVerified
	}
	return out
}

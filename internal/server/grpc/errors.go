package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const resendLimitMessage = "verification email can be requested at most once per 2 minutes"

// statusFor maps service errors to a code and a stable public message.
// Anything unrecognised is Internal.
func statusFor(err error) (codes.Code, string) {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return codes.InvalidArgument, "invalid input"
	case errors.Is(err, common.ErrWeakCredential):
		return codes.InvalidArgument, "password does not meet requirements"
	case errors.Is(err, common.ErrDuplicateEmail):
		return codes.AlreadyExists, "email already registered"
	case errors.Is(err, common.ErrInvalidCredentials):
		return codes.Unauthenticated, "invalid credentials"
	case errors.Is(err, common.ErrEmailNotVerified):
		return codes.FailedPrecondition, "email not verified"
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return codes.Unauthenticated, "invalid token"
	case errors.Is(err, common.ErrUnauthorized):
		return codes.Unauthenticated, "unauthorized"
	case errors.Is(err, common.ErrRateLimited):
		return codes.ResourceExhausted, "too many requests"
	case errors.Is(err, common.ErrNotFound):
		return codes.NotFound, "not found"
	case errors.Is(err, common.ErrTransientStore):
		return codes.Unavailable, "service unavailable"
	case errors.Is(err, context.Canceled):
		return codes.Canceled, "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded, "deadline exceeded"
	default:
		return codes.Internal, "internal error"
	}
}

func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	code, msg := statusFor(err)
	if code == codes.Internal || code == codes.Unavailable {
		s.logger.Error(ctx, "request failed", "op", op, "error", err)
	}
	return status.Error(code, msg)
}

func isRateLimited(err error) bool {
	return errors.Is(err, common.ErrRateLimited)
}

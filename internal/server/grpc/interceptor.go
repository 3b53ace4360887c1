package grpc

import (
	"context"
	"net"
	"strings"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// protectedMethods need a valid access token.
var protectedMethods = map[string]bool{
	fullMethod("RevokeAll"): true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if protectedMethods[info.FullMethod] {
		accessToken := firstMetadata(ctx, common.AccessTokenHeaderName)
		if accessToken == "" {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		claims, err := s.codec.Verify(accessToken)
		if err != nil {
			s.logger.Warn(ctx, "access token rejected", "method", info.FullMethod, "ip", clientIP(ctx), "error", err)
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		ctx = context.WithValue(ctx, userIDKey, claims.Subject)
	}

	return handler(ctx, req)
}

func userIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// clientIP prefers the first x-forwarded-for entry, then the peer address.
func clientIP(ctx context.Context) string {
	if fwd := firstMetadata(ctx, common.ForwardedForHeaderName); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			return host
		}
		if addr != "" {
			return addr
		}
	}
	return common.UnknownIP
}

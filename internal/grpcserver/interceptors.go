package grpcserver

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"gamevault/internal/auth"
)

type principalKey struct{}

// PrincipalFrom returns the user AuthInterceptor attached to ctx.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok && p.UserID != ""
}

// LoggingInterceptor logs method, duration and error of every unary call.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			log.Warn("rpc failed", append(fields, zap.Stringer("code", status.Code(err)), zap.Error(err))...)
		} else {
			log.Info("rpc completed", fields...)
		}
		return resp, err
	}
}

// RecoveryInterceptor turns a handler panic into codes.Internal.
func RecoveryInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered in gRPC handler",
					zap.String("method", info.FullMethod),
					zap.String("panic", fmt.Sprintf("%v", r)),
					zap.ByteString("stack", debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// AuthInterceptor requires an "authorization: Bearer <jwt>" header issued by
// tokens. With a users repo, revoked tokens are rejected as well.
func AuthInterceptor(tokens auth.TokenService, users *auth.Repo) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		vals := md.Get("authorization")
		if len(vals) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}
		raw, ok := auth.BearerToken(vals[0])
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization scheme")
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		if users != nil {
			current, err := users.GetTokenVersion(ctx, claims.UserID)
			if err != nil || current != claims.TokenVersion {
				return nil, status.Error(codes.Unauthenticated, "invalid token")
			}
		}

		return handler(context.WithValue(ctx, principalKey{}, claims.Principal(raw)), req)
	}
}

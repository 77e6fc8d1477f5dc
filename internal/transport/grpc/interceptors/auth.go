package interceptors

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/arklim/social-login-auth/internal/infra/logger"
	"github.com/arklim/social-login-auth/internal/infra/security"
	"github.com/arklim/social-login-auth/internal/usecase"
)

// Authenticator validates a raw Authorization value the same way the HTTP gate does.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (*security.Claims, error)
}

// Credential failures surface as Unauthenticated with a fixed message; anything
// else is an Internal error whose cause only reaches the log.
var credentialStatuses = []struct {
	err     error
	message string
}{
	{usecase.ErrExpiredCredential, "access token expired"},
	{usecase.ErrLoggedOutCredential, "access token has been logged out"},
	{usecase.ErrMalformedCredential, "credential is malformed or invalid"},
}

// UnaryAuth authenticates every unary call except the public methods and stores
// the claims on the context. The caller id is also recorded on the RPC span.
func UnaryAuth(auth Authenticator, log *zap.Logger, public ...string) grpc.UnaryServerInterceptor {
	if log == nil {
		log = zap.NewNop()
	}
	open := make(map[string]bool, len(public))
	for _, method := range public {
		open[method] = true
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if auth == nil || open[info.FullMethod] {
			return handler(ctx, req)
		}

		claims, err := auth.Authenticate(ctx, bearerFromMetadata(ctx))
		if err != nil {
			return nil, credentialStatus(ctx, log, info.FullMethod, err)
		}

		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("enduser.id", claims.UserID()),
			attribute.String("auth.token_id", claims.ID),
		)
		return handler(WithClaims(ctx, claims), req)
	}
}

func credentialStatus(ctx context.Context, log *zap.Logger, method string, err error) error {
	for _, c := range credentialStatuses {
		if errors.Is(err, c.err) {
			return status.Error(codes.Unauthenticated, c.message)
		}
	}
	if usecase.IsCredentialError(err) {
		return status.Error(codes.Unauthenticated, "credential rejected")
	}
	logger.FromContext(ctx, log).Error("grpc authentication failed", zap.String("method", method), zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

type claimsContextKey struct{}

// WithClaims returns a derived context containing token claims.
func WithClaims(ctx context.Context, claims *security.Claims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts token claims set by UnaryAuth.
func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*security.Claims)
	return claims, ok && claims != nil
}

// bearerFromMetadata returns the first non-empty authorization value as sent.
// grpc lower-cases keys only, so the Bearer prefix is checked exactly as over HTTP.
func bearerFromMetadata(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	for _, value := range md.Get("authorization") {
		if value != "" {
			return value
		}
	}
	return ""
}

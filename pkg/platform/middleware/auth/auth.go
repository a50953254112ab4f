// Package auth authenticates API callers from a bearer JWT and stores the
// token subject in the request context.
package auth

//go:generate mockgen -source=auth.go -destination=mocks/mocks.go -package=mocks JWTValidator,TokenRevocationChecker

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "docbridge/pkg/domain-errors"
	"docbridge/pkg/platform/httputil"
	"docbridge/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// TokenRevocationChecker defines the interface for checking if tokens are revoked
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// Claims are the token claims the API relies on.
type Claims struct {
	Subject string
	JTI     string
}

// RequireAuth rejects requests without a valid bearer token. revocationChecker
// may be nil, in which case revocation is not checked.
func RequireAuth(validator JWTValidator, revocationChecker TokenRevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			if revocationChecker != nil {
				if claims.JTI == "" {
					logger.WarnContext(ctx, "unauthorized access - missing token jti",
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
					return
				}
				revoked, err := revocationChecker.IsTokenRevoked(ctx, claims.JTI)
				if err != nil {
					logger.ErrorContext(ctx, "failed to check token revocation",
						"error", err,
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate token"))
					return
				}
				if revoked {
					logger.WarnContext(ctx, "unauthorized access - token revoked",
						"jti", claims.JTI,
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token has been revoked"))
					return
				}
			}

			ctx = requestcontext.WithSubject(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

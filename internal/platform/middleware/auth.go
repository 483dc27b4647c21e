package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"agendahub/pkg/platform/httputil"

	dErrors "agendahub/pkg/domain-errors"
)

// TokenValidator validates bearer tokens issued at login.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims is the subset of claims the middleware cares about.
type TokenClaims struct {
	MemberID string
	Role     string
}

type contextKeyMemberID struct{}
type contextKeyMemberRole struct{}

// GetMemberID retrieves the authenticated member id from the context.
// Empty string means the request is anonymous.
func GetMemberID(ctx context.Context) string {
	id, ok := ctx.Value(contextKeyMemberID{}).(string)
	if !ok {
		return ""
	}
	return id
}

// GetMemberRole retrieves the authenticated member role from the context.
func GetMemberRole(ctx context.Context) string {
	role, ok := ctx.Value(contextKeyMemberRole{}).(string)
	if !ok {
		return ""
	}
	return role
}

// WithClaims attaches token claims to the context. Exported so test helpers
// can simulate an authenticated request without minting a token.
func WithClaims(ctx context.Context, claims *TokenClaims) context.Context {
	ctx = context.WithValue(ctx, contextKeyMemberID{}, claims.MemberID)
	return context.WithValue(ctx, contextKeyMemberRole{}, claims.Role)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := bearerClaims(r, validator)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized request",
					"error", err,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches claims when a valid token is present but lets
// anonymous requests through. Guest participant registration uses this.
func OptionalAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, err := bearerClaims(r, validator); err == nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates operator endpoints. Must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetMemberRole(r.Context()) != "admin" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerClaims(r *http.Request, validator TokenValidator) (*TokenClaims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token")
	}
	claims, err := validator.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

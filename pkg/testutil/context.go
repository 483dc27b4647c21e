package testutil

import (
	"net/http"

	"agendahub/internal/platform/middleware"
)

// WithMember attaches member claims to the request context, simulating what
// the auth middleware does for an authenticated request.
func WithMember(req *http.Request, memberID, role string) *http.Request {
	ctx := middleware.WithClaims(req.Context(), &middleware.TokenClaims{
		MemberID: memberID,
		Role:     role,
	})
	return req.WithContext(ctx)
}

// WithAdmin attaches admin claims to the request context.
func WithAdmin(req *http.Request, memberID string) *http.Request {
	return WithMember(req, memberID, "admin")
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/platinummonkey/backoffice/pkg/auth"
	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/observability"
)

var errMissingToken = &auth.AuthError{Kind: auth.KindMalformed, Err: errors.New("missing bearer token")}

// TokenVerifier validates access tokens against the user's current
// credential version and status
type TokenVerifier interface {
	VerifyCurrent(ctx context.Context, accessToken string) (*auth.Identity, error)
}

// AuthMiddleware authenticates requests with a bearer access token
type AuthMiddleware struct {
	tokens   TokenVerifier
	optional bool
}

// NewAuthMiddleware creates a new authentication middleware. With optional
// set, requests without an Authorization header pass through anonymously;
// a present but invalid token is still rejected.
func NewAuthMiddleware(tokens TokenVerifier, optional bool) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, optional: optional}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteServiceError(w, r, errMissingToken)
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			httputil.WriteServiceError(w, r, errMissingToken)
			return
		}

		identity, err := m.tokens.VerifyCurrent(r.Context(), token)
		if err != nil {
			httputil.WriteServiceError(w, r, err)
			return
		}

		ctx := auth.WithIdentity(r.Context(), identity)
		ctx = observability.WithUserID(ctx, strconv.FormatInt(identity.UserID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from "Bearer <token>"
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

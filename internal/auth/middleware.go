package auth

import (
	"context"
	"net/http"
	"strings"

	apierr "github.com/notestash/notestash/internal/errors"
	"github.com/notestash/notestash/internal/httputil"
)

type contextKey string

const claimsKey contextKey = "authClaims"

// ClaimsFromContext returns the verified claims stored by Middleware, or nil
// when the request did not pass through it.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// ContextWithClaims returns a context carrying the given claims. Tests use
// it to call handlers without going through the middleware.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// Middleware returns an HTTP middleware that rejects requests without a
// valid bearer token and stores the verified claims in the request context.
func Middleware(tokens *Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				httputil.WriteError(w, r, apierr.ErrMissingToken)
				return
			}

			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				httputil.WriteError(w, r, apierr.ErrMalformedToken)
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				httputil.WriteError(w, r, apierr.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

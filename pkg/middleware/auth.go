package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/chris/loyalty-ledger/pkg/auth"
	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/handlers"
)

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Principal, error)
}

type slotKey struct{}

func withPrincipalSlot(ctx context.Context, slot **auth.Principal) context.Context {
	return context.WithValue(ctx, slotKey{}, slot)
}

// Authenticate requires a valid bearer token and stores its principal in the context.
func Authenticate(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				handlers.WriteError(w, r, errs.Unauthenticated("token verifier is not configured"))
				return
			}
			token, ok := bearerToken(r)
			if !ok {
				handlers.WriteError(w, r, errs.Unauthenticated("missing or invalid Authorization header"))
				return
			}
			p, err := verifier.Verify(r.Context(), token)
			if err != nil {
				handlers.WriteError(w, r, errs.Unauthenticated("%v", err))
				return
			}

			if slot, ok := r.Context().Value(slotKey{}).(**auth.Principal); ok {
				*slot = &p
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects principals holding none of roles.
func RequireRole(roles ...auth.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.FromContext(r.Context())
			if !ok {
				handlers.WriteError(w, r, errs.Unauthenticated("missing auth context"))
				return
			}
			if !p.HasRole(roles...) {
				handlers.WriteError(w, r, errs.Forbidden("%s role required", roles[0]))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	v := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(v) < len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(v[len(prefix):])
	return tok, tok != ""
}

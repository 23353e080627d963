package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/docshield/view-session-service/internal/domain"
	"github.com/docshield/view-session-service/internal/repository"
	"github.com/docshield/view-session-service/internal/security"
)

type contextKey string

const userContextKey contextKey = "ambient_user"

// IdentityResolver resolves the ambient authenticated user minted by the
// platform auth service. Absence is not an error: share-link viewers carry
// no user at all, and the policy evaluator decides what that means.
func IdentityResolver(parser *security.AmbientTokenParser, users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ambientToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := parser.UserID(raw)
			if err != nil {
				// An unparseable ambient token downgrades to anonymous
				// rather than failing: share-code access must still work.
				next.ServeHTTP(w, r)
				return
			}
			user, err := users.FindByID(userID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userContextKey).(*domain.User)
	return u, ok
}

func ambientToken(r *http.Request) string {
	if c, err := r.Cookie("access_token"); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

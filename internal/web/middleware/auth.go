package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-login/internal/auth"
)

type contextKey string

const identityContextKey contextKey = "identity"

// SessionClaims is what the middleware stores for a verified request.
type SessionClaims struct {
	IdentityID int64
	Email      string
	Name       string
}

// TokenVerifier validates a bearer token and returns the identity it belongs to.
type TokenVerifier interface {
	Verify(token string) (int64, *auth.Claims, error)
}

// RequireAuth returns middleware that rejects requests without a valid
// bearer session token.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "Missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "Authorization header must use the Bearer scheme")
				return
			}

			identityID, claims, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			session := &SessionClaims{
				IdentityID: identityID,
				Email:      claims.Email,
				Name:       claims.Name,
			}
			ctx := context.WithValue(r.Context(), identityContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the verified session claims, or nil when the
// request did not pass through RequireAuth.
func SessionFromContext(ctx context.Context) *SessionClaims {
	session, _ := ctx.Value(identityContextKey).(*SessionClaims)
	return session
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

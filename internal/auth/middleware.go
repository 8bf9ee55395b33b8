package auth

import (
	"net/http"
	"strings"

	"github.com/manarah-platform/manarah/internal/platform/httpx"
	"github.com/manarah-platform/manarah/internal/shared"
)

// Middleware resolves the Authorization header and places the actor in
// the request context. Requests without a valid bearer token are
// rejected before reaching any handler.
type Middleware struct {
	Service *Service
}

// Authenticate is the chi middleware entry point.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer, ok := bearerToken(r)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		actor, err := m.Service.Resolve(r.Context(), bearer)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

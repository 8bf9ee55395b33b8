package authz

import (
	"log/slog"
	"net/http"

	"github.com/manarah-platform/manarah/internal/platform/httpx"
	"github.com/manarah-platform/manarah/internal/shared"
)

// Middleware wires permission-gate checks for HTTP handlers.
type Middleware struct {
	Gate   *Gate
	Logger *slog.Logger
}

// Require ensures the authenticated actor's role is granted the action.
func (m Middleware) Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor.ID == 0 {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing actor")
				return
			}
			if err := m.Gate.Allow(Role(actor.Role), action); err != nil {
				if m.Logger != nil {
					m.Logger.Warn("permission denied",
						slog.Int64("actor_id", actor.ID),
						slog.String("role", actor.Role),
						slog.String("action", string(action)),
					)
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

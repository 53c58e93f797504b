package middleware

import (
	"net/http"

	"github.com/vaughan-dsouza/usersapi/internal/auth"
	"github.com/vaughan-dsouza/usersapi/internal/logging"
	"github.com/vaughan-dsouza/usersapi/internal/models"
	"github.com/vaughan-dsouza/usersapi/internal/utils"
)

// RequireRole lets a request through only when the attached identity holds
// exactly role. It must run after AuthMiddleware: no identity is a 401, the
// wrong role a 403.
func RequireRole(role models.Role, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFrom(r.Context())
			if !ok {
				utils.JSONError(w, http.StatusUnauthorized, msgNotAuthorized)
				return
			}
			if !id.HasRole(role) {
				log.Info(r.Context(), "request forbidden", "path", r.URL.Path, "user_id", id.ID, "role", id.Role, "required", role)
				utils.JSONError(w, http.StatusForbidden, "Access denied. "+string(role)+" role required.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Package middleware holds the HTTP guards placed in front of handlers.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vaughan-dsouza/usersapi/internal/auth"
	"github.com/vaughan-dsouza/usersapi/internal/logging"
	"github.com/vaughan-dsouza/usersapi/internal/utils"
)

// msgNotAuthorized is the only thing a rejected client learns.
const msgNotAuthorized = "Not authorized. Please login to access this resource."

// AuthMiddleware verifies the bearer token and attaches the caller's
// identity to the request context. revocations may be nil.
func AuthMiddleware(verifier *auth.Verifier, revocations auth.RevocationList, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reject := func(reason string) {
				log.Info(r.Context(), "request not authenticated", "path", r.URL.Path, "reason", reason)
				utils.JSONError(w, http.StatusUnauthorized, msgNotAuthorized)
			}

			token, reason := bearerToken(r.Header.Get("Authorization"))
			if reason != "" {
				reject(reason)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					reject("expired")
				} else {
					reject("invalid")
				}
				return
			}

			if revocations != nil && claims.ID != "" {
				revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					log.Error(r.Context(), "revocation lookup failed", "error", err)
					utils.JSONError(w, http.StatusInternalServerError, "internal error")
					return
				}
				if revoked {
					reject("revoked")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// bearerToken extracts the token from an Authorization header value, or
// returns why it could not.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "missing header"
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", "malformed header"
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", "malformed header"
	}
	return token, ""
}

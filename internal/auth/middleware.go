package auth

import (
	"context"
	"log/slog"
	"net/http"

	"calibration-engine/internal/utils"
)

type contextKey struct{}

// UserFromContext returns the authenticated username, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(contextKey{}).(string)
	return u, ok
}

// BasicAuth rejects requests whose Basic credentials do not match table.
// The check runs before next sees the request, so the body is never read on failure.
func BasicAuth(table CredentialTable, realm string, next http.Handler) http.Handler {
	challenge := `Basic realm="` + realm + `", charset="UTF-8"`
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			slog.Debug("basic auth missing", "path", r.URL.Path)
			unauthorized(w, challenge)
			return
		}
		if !table.Verify(user, pass) {
			slog.Warn("basic auth rejected", "path", r.URL.Path, "user", user)
			unauthorized(w, challenge)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
	})
}

func unauthorized(w http.ResponseWriter, challenge string) {
	w.Header().Set("WWW-Authenticate", challenge)
	utils.WriteError(w, http.StatusUnauthorized, "unauthorized")
}

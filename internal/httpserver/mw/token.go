package mw

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/gallery/internal/logger"
)

// RequireToken checks the bearer token against a bcrypt hash.
// If hash is empty, it acts as a passthrough.
func RequireToken(hash string, log logger.Logger) func(http.Handler) http.Handler {
	if hash == "" {
		log.Debug("RequireToken: no token hash, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="gallery"`)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
				log.Debugf("RequireToken: token REJECTED for %s", r.RemoteAddr)
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

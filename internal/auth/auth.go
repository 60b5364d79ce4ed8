// Package auth enforces an optional shared bearer token on the API.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/star/terrafusion/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// exemptPaths are always public regardless of auth configuration. The
// dashboard shell is public; the data it loads is not.
var exemptPaths = map[string]bool{
	"/":                true,
	"/app.js":          true,
	"/styles.css":      true,
	"/healthz":         true,
	"/readyz":          true,
	"/metrics":         true,
	"/api/v1/registry": true,
}

// streamPrefix marks routes that may pass the token as ?access_token=,
// because EventSource and browser WebSockets cannot set headers.
const streamPrefix = "/api/v1/stream/"

func isExempt(path string) bool {
	return exemptPaths[path]
}

// tokenFrom extracts the presented token, or "" if there is none.
func tokenFrom(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token
		}
		return ""
	}
	if strings.HasPrefix(r.URL.Path, streamPrefix) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := tokenFrom(r)
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="terrafusion"`)
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

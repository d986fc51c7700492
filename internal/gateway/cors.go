// ABOUTME: Cross-origin access for the browser front end
// ABOUTME: Answers preflight requests and tags responses for allowed origins

package gateway

import (
	"net/http"

	"github.com/samber/lo"
)

const (
	corsAllowMethods = "GET, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type"
	corsMaxAge       = "600"
)

// corsMiddleware adds CORS headers for requests whose Origin is allowed.
// An empty allow-list accepts any origin. Preflight requests are answered
// here and never reach the routes.
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok := len(allowed) == 0 || lo.Contains(allowed, origin)
			if ok {
				h := w.Header()
				if len(allowed) == 0 {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}

			if !preflight {
				next.ServeHTTP(w, r)
				return
			}

			if !ok {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

// ABOUTME: HTTP middleware and credential extraction for API and WebSocket endpoints
// ABOUTME: Resolves the bearer token and adds the Identity to the request context

package auth

import (
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// CredentialFromRequest returns the bearer token from the Authorization
// header, falling back to the "token" query parameter. Browsers cannot set
// headers on a WebSocket upgrade, so the handshake relies on the fallback.
func CredentialFromRequest(r *http.Request) string {
	if token, errMsg := extractBearerToken(r.Header.Get("Authorization")); errMsg == "" {
		return token
	}
	return r.URL.Query().Get("token")
}

// HTTPAuthMiddleware creates an HTTP middleware that requires a valid bearer
// token and adds the resolved Identity to the request context.
func HTTPAuthMiddleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeUnauthorized(w, errMsg)
				return
			}

			identity, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireSupportHTTP creates an HTTP middleware that requires a support identity.
// Must be used after HTTPAuthMiddleware.
func RequireSupportHTTP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := FromContext(r.Context())
			if identity == nil {
				writeUnauthorized(w, "not authenticated")
				return
			}
			if !identity.IsSupport {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"support role required"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, `{"error":"`+msg+`"}`, http.StatusUnauthorized)
}

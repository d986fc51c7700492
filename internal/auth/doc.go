// Package auth resolves callers of the support gateway into identities.
//
// # Credentials
//
// Clients and support agents present an HS256 JWT signed with the configured
// jwt_secret. The "sub" claim carries the decimal user id. API requests send
// it as "Authorization: Bearer <token>"; WebSocket handshakes may also use
// the "token" query parameter.
//
// # Resolution
//
// Resolver.Resolve verifies the token and loads the user it names. Only
// active, non-deleted users resolve. Every failure, including store errors,
// is reported as ErrUnauthenticated so callers have a single rejection path.
//
// # Context Propagation
//
// HTTPAuthMiddleware attaches the Identity with WithIdentity and handlers read
// it back with FromContext.
//
// # Usage
//
//	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
//	if err != nil {
//		return err
//	}
//	resolver := auth.NewResolver(verifier, store, logger)
//	mux.Handle("/chats/my", auth.HTTPAuthMiddleware(resolver)(handler))
package auth

// Package gateway orchestrates the support-gateway server components.
//
// # Overview
//
// The gateway owns every long-lived component and wires them together:
//
//	store.SQLiteStore -> auth.Resolver -> session.Coordinator -> realtime.Handler
//	                                            |
//	                                     rooms.Registry, dedupe.Cache
//
// New builds the graph from a config.Config; Run serves HTTP until the
// context is canceled and then shuts down within server.shutdown_timeout.
//
// # HTTP Surface
//
//	/ws                          WebSocket chat channel (token in header or ?token=)
//	GET /chats/init              open a conversation for the caller
//	GET /chats/my                sessions visible to the caller
//	GET /chats/history/{id}      messages of a session (support or its client)
//	GET /support/pool            support-only connection counts
//	GET /users/token/{id}        dev-only token issuance (auth.dev_tokens)
//	GET /health, /health/ready   liveness and store readiness
//
// Errors are JSON objects of the form {"error": "..."}.
//
// # Shutdown
//
// Shutdown stops the listener, closes every WebSocket and waits for the
// read loops, cancels the base context that in-flight handler calls
// derive from, then closes the store.
package gateway

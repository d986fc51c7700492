// Package realtime is the WebSocket transport of the support gateway.
//
// The handshake is authenticated before the upgrade: a missing or invalid
// credential gets HTTP 401 and no connection. Each accepted connection has
// one goroutine reading frames and running the session handlers in order,
// and one write pump that owns all socket writes and sends keepalive pings.
//
// Frames are JSON objects of the form {"event": "...", "data": {...}}.
// Frames that cannot be decoded or fail validation are answered with
// server:error. Authorization outcomes are never reported back.
package realtime

// ABOUTME: WebSocket endpoint: authenticates the handshake and runs each connection's read loop
// ABOUTME: Decodes and validates client frames, then dispatches them to the session coordinator

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/2389/support-gateway/internal/auth"
	"github.com/2389/support-gateway/internal/session"
)

var validate = validator.New()

// Options tunes the transport.
type Options struct {
	MaxMessageBytes int64
	MaxMessageChars int
	HandlerTimeout  time.Duration
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteTimeout    time.Duration
	SendBuffer      int
	// AllowedOrigins restricts the Origin header. Empty allows any origin.
	AllowedOrigins []string
}

// DefaultOptions returns the transport defaults.
func DefaultOptions() Options {
	return Options{
		MaxMessageBytes: 64 * 1024,
		MaxMessageChars: 4000,
		HandlerTimeout:  10 * time.Second,
		PingInterval:    30 * time.Second,
		PongWait:        60 * time.Second,
		WriteTimeout:    10 * time.Second,
		SendBuffer:      64,
	}
}

// Handler serves the /ws endpoint.
type Handler struct {
	resolver *auth.Resolver
	coord    *session.Coordinator
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// baseCtx parents every handler call so a client disconnect does not
	// cancel an in-flight store write.
	baseCtx context.Context

	mu    sync.Mutex
	conns map[string]*Conn
	wg    sync.WaitGroup
}

// NewHandler creates the WebSocket handler. baseCtx should live as long as
// the server. Pass nil logger for default.
func NewHandler(baseCtx context.Context, resolver *auth.Resolver, coord *session.Coordinator, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		resolver: resolver,
		coord:    coord,
		opts:     opts,
		logger:   logger.With("component", "realtime"),
		baseCtx:  baseCtx,
		conns:    make(map[string]*Conn),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	return lo.Contains(h.opts.AllowedOrigins, r.Header.Get("Origin"))
}

// ServeHTTP authenticates, upgrades and then blocks running the read loop
// until the connection ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.resolver.Resolve(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "unauthenticated"})
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.Debug("upgrade failed", "error", err)
		return
	}

	conn := newConn(ws, identity, h.opts, h.logger)
	if !h.track(conn) {
		ws.Close()
		return
	}
	defer h.untrack(conn)

	h.logger.Info("connection opened",
		"conn", conn.ID(),
		"user_id", identity.ID,
		"support", identity.IsSupport)

	go conn.writePump()
	h.coord.Connect(conn)

	h.readLoop(conn)

	h.coord.Disconnect(conn)
	conn.Close()
	h.logger.Info("connection closed", "conn", conn.ID(), "user_id", identity.ID)
}

func (h *Handler) track(conn *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns == nil {
		return false
	}
	h.conns[conn.ID()] = conn
	h.wg.Add(1)
	return true
}

func (h *Handler) untrack(conn *Conn) {
	h.mu.Lock()
	if h.conns != nil {
		delete(h.conns, conn.ID())
	}
	h.mu.Unlock()
	h.wg.Done()
}

// Connections returns the number of open connections.
func (h *Handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close closes every open connection, refuses new ones and waits for the
// read loops to finish or ctx to expire.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	conns := lo.Values(h.conns)
	h.conns = nil
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop is the single consumer of a connection's inbound frames, so the
// handlers for one connection run one at a time in arrival order.
func (h *Handler) readLoop(conn *Conn) {
	ws := conn.ws
	ws.SetReadLimit(h.opts.MaxMessageBytes)
	ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				conn.logger.Debug("read failed", "error", err)
			}
			return
		}
		h.dispatch(conn, raw)
	}
}

func (h *Handler) dispatch(conn *Conn, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		conn.sendError("malformed frame")
		return
	}

	ctx, cancel := context.WithTimeout(h.baseCtx, h.opts.HandlerTimeout)
	defer cancel()

	switch frame.Event {
	case session.EventJoinSession:
		var req session.JoinRequest
		if err := decode(frame, &req); err != nil {
			conn.sendError(err.Error())
			return
		}
		h.coord.JoinSession(ctx, conn, req.Session)

	case session.EventClientSendMessage:
		var req session.SendRequest
		if err := decode(frame, &req); err != nil {
			conn.sendError(err.Error())
			return
		}
		if h.opts.MaxMessageChars > 0 {
			if err := validate.Var(req.Message, fmt.Sprintf("max=%d", h.opts.MaxMessageChars)); err != nil {
				conn.sendError(fmt.Sprintf("message exceeds %d characters", h.opts.MaxMessageChars))
				return
			}
		}
		h.coord.SendMessage(ctx, conn, req)

	case session.EventClientTerminate:
		var req session.TerminateRequest
		if err := decode(frame, &req); err != nil {
			conn.sendError(err.Error())
			return
		}
		h.coord.Terminate(ctx, conn, req.Session)

	default:
		conn.sendError("unknown event " + frame.Event)
	}
}

// decode unmarshals and validates a frame's data into v.
func decode(frame Frame, v any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("invalid %s payload: missing data", frame.Event)
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return fmt.Errorf("invalid %s payload", frame.Event)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid %s payload", frame.Event)
	}
	return nil
}

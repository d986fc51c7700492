// ABOUTME: Gateway orchestrator that wires the store, identity resolution and the chat channel
// ABOUTME: Owns the HTTP server lifecycle and the health endpoints

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/support-gateway/internal/auth"
	"github.com/2389/support-gateway/internal/config"
	"github.com/2389/support-gateway/internal/dedupe"
	"github.com/2389/support-gateway/internal/realtime"
	"github.com/2389/support-gateway/internal/rooms"
	"github.com/2389/support-gateway/internal/session"
	"github.com/2389/support-gateway/internal/store"
)

// Gateway orchestrates the support-gateway server components.
type Gateway struct {
	config   *config.Config
	store    store.Store
	verifier *auth.JWTVerifier
	resolver *auth.Resolver
	registry *rooms.Registry
	dedupe   *dedupe.Cache
	coord    *session.Coordinator
	realtime *realtime.Handler

	mux        *http.ServeMux
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger

	// cancelBase stops the context every WebSocket handler call derives from.
	cancelBase context.CancelFunc

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	resolver := auth.NewResolver(verifier, s, logger)
	registry := rooms.NewRegistry(logger)
	dedupeCache := dedupe.New(cfg.Realtime.DedupeTTL, cfg.Realtime.DedupeSize)
	coord := session.New(s, registry, dedupeCache, logger)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	rt := realtime.NewHandler(baseCtx, resolver, coord, realtimeOptions(cfg), logger)

	gw := &Gateway{
		config:     cfg,
		store:      s,
		verifier:   verifier,
		resolver:   resolver,
		registry:   registry,
		dedupe:     dedupeCache,
		coord:      coord,
		realtime:   rt,
		logger:     logger.With("component", "gateway"),
		cancelBase: cancelBase,
	}

	gw.mux = http.NewServeMux()
	gw.registerRoutes(gw.mux)
	gw.handler = corsMiddleware(cfg.Server.AllowedOrigins)(gw.mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// realtimeOptions maps the realtime config section onto transport options.
func realtimeOptions(cfg *config.Config) realtime.Options {
	rt := cfg.Realtime
	return realtime.Options{
		MaxMessageBytes: rt.MaxMessageBytes,
		MaxMessageChars: rt.MaxMessageChars,
		HandlerTimeout:  rt.HandlerTimeout,
		PingInterval:    rt.PingInterval,
		PongWait:        rt.PongWait,
		WriteTimeout:    rt.WriteTimeout,
		SendBuffer:      rt.SendBuffer,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}
}

// registerRoutes mounts the WebSocket endpoint, the read-side API and health checks.
func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)

	// The WebSocket handler resolves the credential itself before upgrading
	mux.Handle("/ws", g.realtime)

	if g.config.Auth.DevTokens {
		mux.HandleFunc("GET /users/token/{id}", g.handleDevToken)
		g.logger.Warn("dev token endpoint enabled: any active user can be impersonated")
	}

	requireAuth := auth.HTTPAuthMiddleware(g.resolver)
	mux.Handle("GET /chats/init", requireAuth(http.HandlerFunc(g.handleInitSession)))
	mux.Handle("GET /chats/my", requireAuth(http.HandlerFunc(g.handleMySessions)))
	mux.Handle("GET /chats/history/{sessionId}", requireAuth(http.HandlerFunc(g.handleHistory)))
	mux.Handle("GET /support/pool", requireAuth(auth.RequireSupportHTTP()(http.HandlerFunc(g.handlePool))))
}

// Handler returns the gateway's HTTP handler, for embedding and tests.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Run starts the HTTP server and blocks until ctx is canceled or the server fails.
// Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info("initiating shutdown")

		// The parent context is already canceled here
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.config.Server.ShutdownTimeout)
		defer cancel()
		return g.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting connections, closes every WebSocket and releases
// the store. Safe to call more than once.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.logger.Info("shutting down gateway")

		var errs []error
		errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
		errs = appendCloseError(errs, "websocket close", g.realtime.Close(ctx))

		g.cancelBase()
		g.dedupe.Close()
		errs = appendCloseError(errs, "store close", g.store.Close())

		g.shutdownErr = errors.Join(errs...)
	})
	return g.shutdownErr
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Error("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d connections)", g.realtime.Connections())
}

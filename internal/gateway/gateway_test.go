// ABOUTME: Tests for the Gateway orchestrator: construction, lifecycle and health endpoints
// ABOUTME: Runs against a real SQLite file and a real listener

package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/support-gateway/internal/config"
	"github.com/2389/support-gateway/internal/store"
)

const testSecret = "gateway-test-secret-0123456789abcdef"

// testConfig creates a minimal config for testing with an available port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available HTTP port: %v", err)
	}
	httpAddr := ln.Addr().String()
	ln.Close()

	cfg := config.Default()
	cfg.Server.HTTPAddr = httpAddr
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Database.Path = filepath.Join(t.TempDir(), "gateway.db")
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.DevTokens = true
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestGateway builds a gateway and serves its handler from httptest.
func newTestGateway(t *testing.T, cfg *config.Config) (*Gateway, *httptest.Server) {
	t.Helper()

	gw, err := New(cfg, testLogger())
	require.NoError(t, err)

	server := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		gw.Shutdown(ctx)
	})
	return gw, server
}

func addUser(t *testing.T, gw *Gateway, name string, support bool) (*store.User, string) {
	t.Helper()

	u := &store.User{
		Email:     name + "@example.com",
		FirstName: name,
		LastName:  "Tester",
		IsSupport: support,
		IsActive:  true,
	}
	require.NoError(t, gw.store.CreateUser(context.Background(), u))
	token, err := gw.verifier.Generate(u.ID, time.Hour)
	require.NoError(t, err)
	return u, token
}

func TestGatewayNew(t *testing.T) {
	cfg := testConfig(t)

	gw, err := New(cfg, testLogger())
	require.NoError(t, err)
	defer gw.Shutdown(context.Background())

	assert.Same(t, cfg, gw.config)
	assert.NotNil(t, gw.store)
	assert.NotNil(t, gw.coord)
	assert.NotNil(t, gw.registry)
	assert.NotNil(t, gw.realtime)
	assert.Equal(t, cfg.Server.HTTPAddr, gw.httpServer.Addr)
}

func TestGatewayNew_WeakSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "short"

	_, err := New(cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating JWT verifier")
}

func TestGatewayNew_BadDatabasePath(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	cfg.Database.Path = filepath.Join(blocker, "nested", "db.sqlite")

	_, err := New(cfg, testLogger())
	require.Error(t, err)
}

func TestHealthEndpoints(t *testing.T) {
	_, server := newTestGateway(t, testConfig(t))

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(server.URL + "/health/ready")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready (0 connections)", string(body))
}

func TestReady_StoreClosed(t *testing.T) {
	gw, server := newTestGateway(t, testConfig(t))
	require.NoError(t, gw.store.Close())

	resp, err := http.Get(server.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGatewayRun_GracefulShutdown(t *testing.T) {
	cfg := testConfig(t)
	gw, err := New(cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- gw.Run(ctx) }()

	healthURL := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// A second shutdown is a no-op
	assert.NoError(t, gw.Shutdown(context.Background()))
}

func TestGatewayRun_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Server.HTTPAddr = ln.Addr().String()
	gw, err := New(cfg, testLogger())
	require.NoError(t, err)
	defer gw.Shutdown(context.Background())

	err = gw.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on HTTP address")
}

// lockedBuffer is a bytes.Buffer safe for concurrent log writes and reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestGatewayNew_ComponentLoggers(t *testing.T) {
	var out lockedBuffer
	logger := slog.New(slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))

	gw, err := New(testConfig(t), logger)
	require.NoError(t, err)
	server := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		server.Close()
		gw.Shutdown(context.Background())
	})

	resp := doGet(t, server, "/chats/my", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var rejected string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.Contains(line, "credential rejected") {
			rejected = line
		}
		if line != "" {
			assert.LessOrEqual(t, strings.Count(line, `"component":`), 1, line)
		}
	}
	require.NotEmpty(t, rejected)
	assert.Contains(t, rejected, `"component":"auth"`)
}

// ABOUTME: Tests for the init command
// ABOUTME: The generated file must load through config.Load unchanged

package main

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/support-gateway/internal/config"
)

func TestGenerateSecret(t *testing.T) {
	a, err := generateSecret()
	require.NoError(t, err)
	b, err := generateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.GreaterOrEqual(t, len(a), 32)
}

func TestRenderConfig_LoadsBack(t *testing.T) {
	secret, err := generateSecret()
	require.NoError(t, err)

	content, err := renderConfig(initAnswers{
		HTTPAddr:       "127.0.0.1:9000",
		AllowedOrigins: []string{"https://support.example.com"},
		DBPath:         filepath.Join(t.TempDir(), "gw.db"),
		JWTSecret:      secret,
		DevTokens:      true,
		LogLevel:       "debug",
		LogFormat:      "json",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "# support-gateway configuration"))

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"https://support.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, secret, cfg.Auth.JWTSecret)
	assert.True(t, cfg.Auth.DevTokens)
	assert.Equal(t, config.Default().Auth.TokenTTL, cfg.Auth.TokenTTL)
	assert.Equal(t, config.Default().Realtime.PongWait, cfg.Realtime.PongWait)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestInitConfig_Interactive(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "conf", "gateway.yaml")
	dbPath := filepath.Join(dir, "data", "gw.db")

	answers := strings.Join([]string{
		configPath,     // config file path
		"",             // http address default
		"https://a.io", // origins
		dbPath,         // database
		"y",            // dev tokens
		"",             // level default
		"",             // format default
	}, "\n") + "\n"

	err := initConfig(bufio.NewReader(strings.NewReader(answers)), io.Discard)
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = os.Stat(filepath.Dir(dbPath))
	require.NoError(t, err, "data directory should be created")

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"https://a.io"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, dbPath, cfg.Database.Path)
	assert.True(t, cfg.Auth.DevTokens)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestInitConfig_KeepsExistingFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("original"), 0644))

	input := configPath + "\nno\n"
	require.NoError(t, initConfig(bufio.NewReader(strings.NewReader(input)), io.Discard))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestPrompt(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("  value  \n\n"))
	assert.Equal(t, "value", prompt(reader, io.Discard, "Q", "default"))
	assert.Equal(t, "default", prompt(reader, io.Discard, "Q", "default"))
	// EOF falls back to the default
	assert.Equal(t, "fallback", prompt(reader, io.Discard, "Q", "fallback"))
}

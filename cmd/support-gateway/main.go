// ABOUTME: Entry point for support-gateway, the real-time support chat server
// ABOUTME: Dispatches the serve, init, user administration, health and ready commands

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/support-gateway/internal/config"
	"github.com/2389/support-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                   _                     _
 ___ _   _ _ __  _ __   ___  _ __| |_      __ _  __ _| |_ _____      ____ _ _   _
/ __| | | | '_ \| '_ \ / _ \| '__| __|___ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
\__ \ |_| | |_) | |_) | (_) | |  | ||___| (_| | (_| | ||  __/\ V  V / (_| | |_| |
|___/\__,_| .__/| .__/ \___/|_|   \__|   \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
          |_|   |_|                      |___/                             |___/
`

// getDataPath returns the path to the support-gateway data directory.
// Priority: XDG_DATA_HOME/support-gateway > ~/.local/share/support-gateway
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "support-gateway")
}

func usage() {
	fmt.Println("Usage: support-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                                      Start the gateway server")
	fmt.Println("  init                                       Create a new config file interactively")
	fmt.Println("  adduser --email E --first F --last L [--support] [--lang L]")
	fmt.Println("                                             Register a client or support user")
	fmt.Println("  disable --id N                             Deactivate a user")
	fmt.Println("  delete --id N                              Soft-delete a user")
	fmt.Println("  token --id N                               Issue a token for an active user")
	fmt.Println("  health                                     Check gateway health")
	fmt.Println("  ready                                      Check store readiness and connections")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "adduser":
		err = runAddUser(ctx, os.Args[2:])
	case "disable":
		err = runDisable(ctx, os.Args[2:])
	case "delete":
		err = runDelete(ctx, os.Args[2:])
	case "token":
		err = runToken(ctx, os.Args[2:])
	case "health":
		err = runProbe(ctx, "/health")
	case "ready":
		err = runProbe(ctx, "/health/ready")
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.Path()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	if cfg.Auth.DevTokens {
		yellow.Print("    ▶ ")
		fmt.Println("Dev tokens enabled (GET /users/token/{id})")
	}
	fmt.Println()

	logger.Info("starting support-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"version", version,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// runProbe requests a health endpoint of a running gateway and prints the body.
func runProbe(ctx context.Context, path string) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
	}

	fmt.Println(string(body))
	return nil
}

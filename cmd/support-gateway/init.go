// ABOUTME: Interactive init command that writes a starter gateway.yaml
// ABOUTME: Generates a random JWT secret and prepares the data directory

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/2389/support-gateway/internal/config"
)

// initAnswers are the values collected by runInit.
type initAnswers struct {
	HTTPAddr       string
	AllowedOrigins []string
	DBPath         string
	JWTSecret      string
	DevTokens      bool
	LogLevel       string
	LogFormat      string
}

// fileConfig mirrors the YAML layout of config.Config for the fields init writes.
type fileConfig struct {
	Server struct {
		HTTPAddr        string   `yaml:"http_addr"`
		AllowedOrigins  []string `yaml:"allowed_origins,omitempty"`
		ShutdownTimeout string   `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
		DevTokens bool   `yaml:"dev_tokens"`
	} `yaml:"auth"`
	Realtime struct {
		MaxMessageChars int    `yaml:"max_message_chars"`
		HandlerTimeout  string `yaml:"handler_timeout"`
		PingInterval    string `yaml:"ping_interval"`
		PongWait        string `yaml:"pong_wait"`
	} `yaml:"realtime"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// generateSecret returns 32 random bytes, base64 encoded.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// renderConfig produces the YAML document written by init.
func renderConfig(a initAnswers) ([]byte, error) {
	defaults := config.Default()

	var fc fileConfig
	fc.Server.HTTPAddr = a.HTTPAddr
	fc.Server.AllowedOrigins = a.AllowedOrigins
	fc.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout.String()
	fc.Database.Path = a.DBPath
	fc.Auth.JWTSecret = a.JWTSecret
	fc.Auth.TokenTTL = defaults.Auth.TokenTTL.String()
	fc.Auth.DevTokens = a.DevTokens
	fc.Realtime.MaxMessageChars = defaults.Realtime.MaxMessageChars
	fc.Realtime.HandlerTimeout = defaults.Realtime.HandlerTimeout.String()
	fc.Realtime.PingInterval = defaults.Realtime.PingInterval.String()
	fc.Realtime.PongWait = defaults.Realtime.PongWait.String()
	fc.Logging.Level = a.LogLevel
	fc.Logging.Format = a.LogFormat

	body, err := yaml.Marshal(&fc)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	header := "# support-gateway configuration\n# Generated by support-gateway init\n\n"
	return append([]byte(header), body...), nil
}

func runInit() error {
	return initConfig(bufio.NewReader(os.Stdin), os.Stdout)
}

func initConfig(reader *bufio.Reader, out io.Writer) error {
	fmt.Fprintln(out, "support-gateway configuration setup")
	fmt.Fprintln(out, "===================================")
	fmt.Fprintln(out)

	defaultDbPath := filepath.Join(getDataPath(), "gateway.db")

	outputFile := prompt(reader, out, "Config file path", config.Path())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	a := initAnswers{JWTSecret: secret}

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, out, "HTTP address", "localhost:8080")
	origins := prompt(reader, out, "Allowed origins (comma separated, empty for any)", "")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			a.AllowedOrigins = append(a.AllowedOrigins, o)
		}
	}

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	a.DBPath = prompt(reader, out, "SQLite database path", defaultDbPath)

	fmt.Fprintln(out, "\n--- Auth Configuration ---")
	a.DevTokens = yes(prompt(reader, out, "Enable dev token endpoint? (never in production)", "no"))

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, out, "Log format (text/json)", "text")

	content, err := renderConfig(a)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file holds the signing secret
	if err := os.WriteFile(outputFile, content, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(a.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  support-gateway adduser --email agent@example.com --first Ada --last Agent --support")
	fmt.Fprintln(out, "  support-gateway serve")

	return nil
}

func yes(answer string) bool {
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

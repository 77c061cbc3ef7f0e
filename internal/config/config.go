// Package config loads chamicore-cosmos configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// TransportStdio runs MCP over stdin/stdout.
	TransportStdio = "stdio"
	// TransportHTTP serves the tool, query and MCP HTTP APIs.
	TransportHTTP = "http"

	// ModeReadOnly allows only read capability tools.
	ModeReadOnly = "read-only"
	// ModeReadWrite allows read and write capability tools.
	ModeReadWrite = "read-write"

	defaultListenAddr   = ":27780"
	defaultOTLPEndpoint = "localhost:4317"
	defaultEnvFile      = ".env"
)

// Config holds service runtime configuration.
type Config struct {
	ListenAddr string
	LogLevel   string

	Transport string
	Mode      string

	MetricsEnabled bool
	TracesEnabled  bool
	OTLPEndpoint   string

	Cosmos Cosmos
}

// Cosmos holds the store connection settings. Completeness is checked by the
// connector, not here, so the HTTP front ends can start and report an
// unconfigured store.
type Cosmos struct {
	ConnectionString string
	Endpoint         string
	Key              string
	Database         string
	Container        string
	PartitionKeyPath string
	MaxRetries       int32
}

// Configured reports whether enough settings are present to build a connector.
func (c Cosmos) Configured() bool {
	hasCredentials := c.ConnectionString != "" || (c.Endpoint != "" && c.Key != "")
	return hasCredentials && c.Database != "" && c.Container != ""
}

// Load returns configuration parsed from environment variables. A dotenv file
// (CHAMICORE_COSMOS_ENV_FILE, default .env) is read first when present; it never
// overrides variables already set in the process environment.
func Load() (Config, error) {
	if err := loadEnvFile(envOrDefault("CHAMICORE_COSMOS_ENV_FILE", defaultEnvFile)); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:     listenAddr(),
		LogLevel:       strings.ToLower(strings.TrimSpace(envOrDefault("CHAMICORE_COSMOS_LOG_LEVEL", "info"))),
		Transport:      strings.ToLower(strings.TrimSpace(envOrDefault("CHAMICORE_COSMOS_TRANSPORT", TransportHTTP))),
		Mode:           strings.ToLower(strings.TrimSpace(envOrDefault("CHAMICORE_COSMOS_MODE", ModeReadWrite))),
		MetricsEnabled: envBool("CHAMICORE_COSMOS_METRICS_ENABLED", true),
		TracesEnabled:  envBool("CHAMICORE_COSMOS_TRACES_ENABLED", false),
		OTLPEndpoint:   strings.TrimSpace(envOrDefault("CHAMICORE_COSMOS_OTLP_ENDPOINT", defaultOTLPEndpoint)),
		Cosmos: Cosmos{
			ConnectionString: firstEnv("COSMOS_CONNECTION_STRING"),
			Endpoint:         firstEnv("COSMOS_ENDPOINT", "COSMOS_DB_ENDPOINT"),
			Key:              firstEnv("COSMOS_KEY", "COSMOS_DB_KEY"),
			Database:         firstEnv("COSMOS_DATABASE_NAME", "COSMOS_DB_DATABASE"),
			Container:        firstEnv("COSMOS_CONTAINER_NAME"),
			PartitionKeyPath: firstEnv("COSMOS_PARTITION_KEY_PATH"),
		},
	}

	maxRetries, err := envInt("CHAMICORE_COSMOS_MAX_RETRIES", 0)
	if err != nil {
		return Config{}, err
	}
	if maxRetries < 0 {
		return Config{}, fmt.Errorf("invalid CHAMICORE_COSMOS_MAX_RETRIES %d (must be >= 0)", maxRetries)
	}
	cfg.Cosmos.MaxRetries = int32(maxRetries)

	switch cfg.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return Config{}, fmt.Errorf("invalid CHAMICORE_COSMOS_TRANSPORT %q (allowed: %s|%s)", cfg.Transport, TransportStdio, TransportHTTP)
	}

	switch cfg.Mode {
	case ModeReadOnly, ModeReadWrite:
	default:
		return Config{}, fmt.Errorf("invalid CHAMICORE_COSMOS_MODE %q (allowed: %s|%s)", cfg.Mode, ModeReadOnly, ModeReadWrite)
	}

	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = defaultOTLPEndpoint
	}

	return cfg, nil
}

// listenAddr honours the Azure Functions custom handler port when the process
// runs behind the Functions host.
func listenAddr() string {
	if port := strings.TrimSpace(os.Getenv("FUNCTIONS_CUSTOMHANDLER_PORT")); port != "" {
		return ":" + port
	}
	addr := strings.TrimSpace(envOrDefault("CHAMICORE_COSMOS_LISTEN_ADDR", defaultListenAddr))
	if addr == "" {
		return defaultListenAddr
	}
	return addr
}

func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		switch strings.ToLower(value) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		default:
			return defaultVal
		}
	}
	return parsed
}

func envInt(key string, defaultVal int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

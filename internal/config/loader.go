package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tailscale/hujson"
)

// FromEnv builds a Config from environment variables layered over
// Default(), then (if REGISTRY_CONFIG_FILE is set) merges a JSONC
// override document field-by-field, matching this codebase's own
// "YAML/JSONC with field-by-field override" loader idiom, then
// validates the result.
func FromEnv() (Config, error) {
	cfg := Default()

	cfg.Port = envInt("ORCHESTRATOR_PORT", cfg.Port)
	cfg.Host = envString("ORCHESTRATOR_HOST", cfg.Host)

	cfg.DiscoveryInterval = envMillis("DISCOVERY_INTERVAL", cfg.DiscoveryInterval)
	cfg.DiscoveryRetryAttempts = envInt("DISCOVERY_RETRY_ATTEMPTS", cfg.DiscoveryRetryAttempts)
	cfg.DiscoveryRetryDelay = envMillis("DISCOVERY_RETRY_DELAY", cfg.DiscoveryRetryDelay)

	cfg.MCPTimeout = envMillis("MCP_TIMEOUT", cfg.MCPTimeout)
	cfg.CircuitBreakerThreshold = envInt("CIRCUIT_BREAKER_THRESHOLD", cfg.CircuitBreakerThreshold)
	cfg.CircuitBreakerTimeout = envMillis("CIRCUIT_BREAKER_TIMEOUT", cfg.CircuitBreakerTimeout)
	cfg.MaxRetries = envInt("MAX_RETRIES", cfg.MaxRetries)
	cfg.RetryDelay = envMillis("RETRY_DELAY", cfg.RetryDelay)
	cfg.RouterRetryAttempts = envInt("ROUTER_RETRY_ATTEMPTS", cfg.RouterRetryAttempts)
	cfg.RouterRetryDelay = envMillis("ROUTER_RETRY_DELAY", cfg.RouterRetryDelay)

	cfg.RegistryPath = envString("REGISTRY_PATH", cfg.RegistryPath)
	cfg.MaxErrorLogEntries = envInt("MAX_ERROR_LOG_ENTRIES", cfg.MaxErrorLogEntries)

	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envString("LOG_FORMAT", cfg.LogFormat)
	cfg.LogFile = envString("LOG_FILE", cfg.LogFile)

	cfg.DockerRootlessSocketPath = os.Getenv("DOCKER_ROOTLESS_SOCKET_PATH")
	cfg.DockerHost = os.Getenv("DOCKER_HOST")

	cfg.ConfigFile = os.Getenv("REGISTRY_CONFIG_FILE")
	cfg.AgentAllowlistFile = os.Getenv("AGENT_ALLOWLIST_FILE")
	cfg.OtelExporterEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	if cfg.ConfigFile != "" {
		if err := mergeJSONCFile(&cfg, cfg.ConfigFile); err != nil {
			return Config{}, fmt.Errorf("loading config override %s: %w", cfg.ConfigFile, err)
		}
	}

	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// envMillis reads an environment variable holding a millisecond count
// (matching §6's literal defaults, e.g. DISCOVERY_INTERVAL=30000) and
// returns it as a time.Duration.
func envMillis(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return def
}

// override mirrors Config with every field optional, so the JSONC
// document only needs to name the fields it wants to change. Durations
// are expressed in milliseconds, matching the environment-variable
// surface they override.
type override struct {
	Port *int    `json:"port"`
	Host *string `json:"host"`

	DiscoveryIntervalMs    *int `json:"discoveryIntervalMs"`
	DiscoveryRetryAttempts *int `json:"discoveryRetryAttempts"`
	DiscoveryRetryDelayMs  *int `json:"discoveryRetryDelayMs"`

	MCPTimeoutMs            *int `json:"mcpTimeoutMs"`
	CircuitBreakerThreshold *int `json:"circuitBreakerThreshold"`
	CircuitBreakerTimeoutMs *int `json:"circuitBreakerTimeoutMs"`
	MaxRetries              *int `json:"maxRetries"`
	RetryDelayMs            *int `json:"retryDelayMs"`
	RouterRetryAttempts     *int `json:"routerRetryAttempts"`
	RouterRetryDelayMs      *int `json:"routerRetryDelayMs"`

	RegistryPath       *string `json:"registryPath"`
	MaxErrorLogEntries *int    `json:"maxErrorLogEntries"`

	LogLevel  *string `json:"logLevel"`
	LogFormat *string `json:"logFormat"`
	LogFile   *string `json:"logFile"`
}

// mergeJSONCFile reads path as JSONC (JSON-with-comments/trailing-commas,
// tolerated via hujson the way this codebase's own config tooling reads
// humane config files), standardizes it to plain JSON, and merges each
// set field over cfg.
func mergeJSONCFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("parsing JSONC: %w", err)
	}

	var ov override
	if err := json.Unmarshal(standardized, &ov); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}

	applyOverride(cfg, ov)
	return nil
}

func applyOverride(cfg *Config, ov override) {
	if ov.Port != nil {
		cfg.Port = *ov.Port
	}
	if ov.Host != nil {
		cfg.Host = *ov.Host
	}
	if ov.DiscoveryIntervalMs != nil {
		cfg.DiscoveryInterval = time.Duration(*ov.DiscoveryIntervalMs) * time.Millisecond
	}
	if ov.DiscoveryRetryAttempts != nil {
		cfg.DiscoveryRetryAttempts = *ov.DiscoveryRetryAttempts
	}
	if ov.DiscoveryRetryDelayMs != nil {
		cfg.DiscoveryRetryDelay = time.Duration(*ov.DiscoveryRetryDelayMs) * time.Millisecond
	}
	if ov.MCPTimeoutMs != nil {
		cfg.MCPTimeout = time.Duration(*ov.MCPTimeoutMs) * time.Millisecond
	}
	if ov.CircuitBreakerThreshold != nil {
		cfg.CircuitBreakerThreshold = *ov.CircuitBreakerThreshold
	}
	if ov.CircuitBreakerTimeoutMs != nil {
		cfg.CircuitBreakerTimeout = time.Duration(*ov.CircuitBreakerTimeoutMs) * time.Millisecond
	}
	if ov.MaxRetries != nil {
		cfg.MaxRetries = *ov.MaxRetries
	}
	if ov.RetryDelayMs != nil {
		cfg.RetryDelay = time.Duration(*ov.RetryDelayMs) * time.Millisecond
	}
	if ov.RouterRetryAttempts != nil {
		cfg.RouterRetryAttempts = *ov.RouterRetryAttempts
	}
	if ov.RouterRetryDelayMs != nil {
		cfg.RouterRetryDelay = time.Duration(*ov.RouterRetryDelayMs) * time.Millisecond
	}
	if ov.RegistryPath != nil {
		cfg.RegistryPath = *ov.RegistryPath
	}
	if ov.MaxErrorLogEntries != nil {
		cfg.MaxErrorLogEntries = *ov.MaxErrorLogEntries
	}
	if ov.LogLevel != nil {
		cfg.LogLevel = *ov.LogLevel
	}
	if ov.LogFormat != nil {
		cfg.LogFormat = *ov.LogFormat
	}
	if ov.LogFile != nil {
		cfg.LogFile = *ov.LogFile
	}
}

// Package config loads the orchestrator's configuration from environment
// variables, with bounds-checked defaults and an optional JSONC override
// file layered on top, per §6/§10.
package config

import "time"

// Config holds every overridable setting the orchestrator reads at
// startup, per §6's environment-variable surface.
type Config struct {
	// Protocol front-end.
	Port int
	Host string

	// Discovery.
	DiscoveryInterval      time.Duration
	DiscoveryRetryAttempts int
	DiscoveryRetryDelay    time.Duration

	// Router / hardening.
	MCPTimeout              time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	RouterRetryAttempts     int
	RouterRetryDelay        time.Duration

	// Registry.
	RegistryPath       string
	MaxErrorLogEntries int

	// Logging.
	LogLevel  string
	LogFormat string
	LogFile   string

	// Docker-platform socket resolution overrides.
	DockerRootlessSocketPath string
	DockerHost               string

	// Optional JSONC override file (§10), layered over the above.
	ConfigFile string

	// Optional static allow-list of agent names/images Discovery will
	// register (§11's yaml.v3 home).
	AgentAllowlistFile string

	// Optional OTLP/HTTP trace exporter endpoint (§11); tracing installs
	// a no-op provider when unset.
	OtelExporterEndpoint string
}

// Default returns the spec's literal defaults from §4.2/§4.4/§6.
func Default() Config {
	return Config{
		Port: 3000,
		Host: "0.0.0.0",

		DiscoveryInterval:      30 * time.Second,
		DiscoveryRetryAttempts: 10,
		DiscoveryRetryDelay:    3 * time.Second,

		MCPTimeout:              30 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
		MaxRetries:              3,
		RetryDelay:              1 * time.Second,
		RouterRetryAttempts:     3,
		RouterRetryDelay:        1 * time.Second,

		RegistryPath:       "./registry",
		MaxErrorLogEntries: 1000,

		LogLevel:  "INFO",
		LogFormat: "text",
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	clearOrchestratorEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 30*time.Second, cfg.DiscoveryInterval)
	assert.Equal(t, 5, cfg.CircuitBreakerThreshold)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearOrchestratorEnv(t)
	t.Setenv("ORCHESTRATOR_PORT", "8080")
	t.Setenv("MCP_TIMEOUT", "5000")
	t.Setenv("CIRCUIT_BREAKER_THRESHOLD", "2")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.MCPTimeout)
	assert.Equal(t, 2, cfg.CircuitBreakerThreshold)
}

func TestFromEnv_AllowlistAndOtelEndpoint(t *testing.T) {
	clearOrchestratorEnv(t)
	t.Setenv("AGENT_ALLOWLIST_FILE", "/etc/mcpfleet/allowlist.yaml")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/etc/mcpfleet/allowlist.yaml", cfg.AgentAllowlistFile)
	assert.Equal(t, "http://collector:4318", cfg.OtelExporterEndpoint)
}

func TestFromEnv_InvalidPortRejected(t *testing.T) {
	clearOrchestratorEnv(t)
	t.Setenv("ORCHESTRATOR_PORT", "99999")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORCHESTRATOR_PORT")
}

func TestFromEnv_JSONCOverrideMerges(t *testing.T) {
	clearOrchestratorEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "override.jsonc")
	content := `{
		// trailing comments and commas are tolerated
		"port": 9090,
		"mcpTimeoutMs": 15000,
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("REGISTRY_CONFIG_FILE", path)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.MCPTimeout)
	// Fields untouched by the override keep their env/default value.
	assert.Equal(t, 5, cfg.CircuitBreakerThreshold)
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Port = 0
	cfg.LogLevel = "VERBOSE"

	err := Validate(&cfg)
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func clearOrchestratorEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ORCHESTRATOR_PORT", "ORCHESTRATOR_HOST", "DISCOVERY_INTERVAL",
		"MCP_TIMEOUT", "DISCOVERY_RETRY_ATTEMPTS", "DISCOVERY_RETRY_DELAY",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "REGISTRY_PATH",
		"REGISTRY_CONFIG_FILE", "MAX_ERROR_LOG_ENTRIES",
		"CIRCUIT_BREAKER_THRESHOLD", "CIRCUIT_BREAKER_TIMEOUT",
		"MAX_RETRIES", "RETRY_DELAY", "ROUTER_RETRY_ATTEMPTS",
		"ROUTER_RETRY_DELAY", "DOCKER_ROOTLESS_SOCKET_PATH", "DOCKER_HOST",
		"AGENT_ALLOWLIST_FILE", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

package orchestrator

import (
	"log/slog"
	"time"

	"github.com/mcpfleet/orchestrator/internal/discovery"
	"github.com/mcpfleet/orchestrator/internal/router"
)

// DefaultClientFactory builds a production router.Client against the
// agent's discovered connection URL, with the router's default retry
// policy.
func DefaultClientFactory(agent discovery.Agent, timeout time.Duration) router.AgentClient {
	name := agent.Name
	if name == "" {
		name = agent.ID
	}
	return router.NewClient(name, agent.Connection.URL, timeout)
}

// NewClientFactory returns a ClientFactory whose clients carry the given
// transport retry policy (ROUTER_RETRY_ATTEMPTS / ROUTER_RETRY_DELAY)
// and logger.
func NewClientFactory(retryAttempts int, retryDelay time.Duration, logger *slog.Logger) ClientFactory {
	return func(agent discovery.Agent, timeout time.Duration) router.AgentClient {
		name := agent.Name
		if name == "" {
			name = agent.ID
		}
		c := router.NewClient(name, agent.Connection.URL, timeout)
		c.SetRetryPolicy(retryAttempts, retryDelay)
		c.SetLogger(logger)
		return c
	}
}

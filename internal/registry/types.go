// Package registry is the authoritative in-memory index of plugins
// (agent + tool list) and per-agent health metrics, with crash-safe
// on-disk persistence, per §4.5.
package registry

import (
	"time"

	"github.com/mcpfleet/orchestrator/internal/discovery"
	"github.com/mcpfleet/orchestrator/internal/protocol"
)

// Agent status values, per §3. Sticky: "inactive" is not cleared until
// the next discovery cycle re-observes the agent.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Module-status health values, per §3.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthUnknown   = "unknown"
)

// Plugin is a registered agent plus its tool list and the orchestrator's
// view of its lifecycle status, per §3/§4.5.
type Plugin struct {
	Agent        discovery.Agent `json:"agent"`
	Tools        []protocol.Tool `json:"tools"`
	Status       string          `json:"status"`
	RegisteredAt time.Time       `json:"registeredAt"`
}

// ModuleStatus is the per-agent running health summary, per §3.
type ModuleStatus struct {
	SuccessCount        int64     `json:"successCount"`
	FailureCount        int64     `json:"failureCount"`
	LastSuccess         time.Time `json:"lastSuccess,omitempty"`
	LastFailure         time.Time `json:"lastFailure,omitempty"`
	AverageResponseTime float64   `json:"averageResponseTime"`
	Uptime              float64   `json:"uptime"`
	Status              string    `json:"status"`
}

// ErrorLogEntry is one bounded ring entry, per §3.
type ErrorLogEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	AgentID       string    `json:"agentId"`
	Tool          string    `json:"tool,omitempty"`
	ErrorCode     int       `json:"errorCode,omitempty"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Stack         string    `json:"stack,omitempty"`
}

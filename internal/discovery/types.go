// Package discovery periodically enumerates running agent containers and
// emits agentDiscovered/agentLost events, per §4.4.
package discovery

import (
	"context"
	"time"
)

// Agent labels identifying an MCP server container.
const (
	LabelMCPServer = "mcp.server"
	LabelName      = "mcp.server.name"
	LabelPort      = "mcp.server.port"
	LabelProtocol  = "mcp.server.protocol"
)

const defaultDeclaredPort = "3000"
const defaultProtocol = "http"

// ContainerSummary is the platform-agnostic shape discovery needs out of
// a running container: just enough to build an Agent record.
type ContainerSummary struct {
	ID     string
	Names  []string
	Labels map[string]string
	Status string
	Image  string
}

// PortMapping describes one exposed container port possibly bound to a
// host port, mirroring the subset of Docker's NetworkSettings.Ports that
// discovery needs.
type PortMapping struct {
	ContainerPort string
	Protocol      string
	HostIP        string
	HostPort      string
}

// ContainerDetail is the full per-container metadata discovery inspects
// for, beyond the summary returned by listing.
type ContainerDetail struct {
	ContainerSummary
	Ports []PortMapping
}

// ContainerPlatform is the narrow read-only view discovery needs onto a
// container runtime. The Docker-backed implementation lives in docker.go.
type ContainerPlatform interface {
	ListAgentContainers(ctx context.Context) ([]ContainerSummary, error)
	Inspect(ctx context.Context, containerID string) (ContainerDetail, error)
}

// Agent is the discovered shape of a single agent container, per §3.
type Agent struct {
	ID           string
	Name         string
	Image        string
	Status       string
	Labels       map[string]string
	Connection   Connection
	DiscoveredAt time.Time
	LastSeen     time.Time
}

// Connection describes how the orchestrator reaches an agent.
type Connection struct {
	Protocol string
	Host     string
	Port     string
	URL      string
}

// Event is emitted by the Scanner on each discovery-cycle diff.
type Event struct {
	Kind  EventKind
	Agent Agent
	// AgentID is set for Lost events, where only the id (not the full
	// record) is known to have disappeared.
	AgentID string
}

type EventKind string

const (
	EventDiscovered EventKind = "agentDiscovered"
	EventLost       EventKind = "agentLost"
)

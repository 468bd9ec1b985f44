// Package orchestrator owns the in-memory agent table and tool-index,
// ties the discovery and registry layers together, and dispatches the
// MCP methods (initialize, tools/list, tools/call, ping), per §4.6.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mcpfleet/orchestrator/internal/clock"
	"github.com/mcpfleet/orchestrator/internal/discovery"
	"github.com/mcpfleet/orchestrator/internal/hardening"
	"github.com/mcpfleet/orchestrator/internal/logging"
	"github.com/mcpfleet/orchestrator/internal/protocol"
	"github.com/mcpfleet/orchestrator/internal/registry"
	"github.com/mcpfleet/orchestrator/internal/router"
	"github.com/mcpfleet/orchestrator/internal/validator"
)

// agentStatus values for the orchestrator's in-memory agent table.
const (
	statusActive   = registry.StatusActive
	statusInactive = registry.StatusInactive
)

// AgentRecord is the orchestrator's view of one agent: its discovered
// shape plus the active/inactive lifecycle status from §3.
type AgentRecord struct {
	Agent  discovery.Agent
	Status string
}

// toolEntry is one tool-index value: the owning agent plus the
// agent-declared tool shape, per §3.
type toolEntry struct {
	AgentID string
	Tool    protocol.Tool
}

// ClientFactory builds the outbound client used to talk to a newly
// discovered agent. Production code wires router.NewClient; tests
// substitute a factory returning a mock AgentClient.
type ClientFactory func(agent discovery.Agent, timeout time.Duration) router.AgentClient

// defaultWorkerPoolSize bounds the number of concurrent per-agent
// initialize+tools-list sequences, per the "bounded worker pool, not
// unbounded goroutines" design note in §9.
const defaultWorkerPoolSize = 4

// Orchestrator is the single subscriber to discovery events and the
// dispatcher for every inbound MCP method.
type Orchestrator struct {
	store     *registry.Store
	hardening *hardening.Hardening
	clock     clock.Clock
	logger    *slog.Logger

	mcpTimeout  time.Duration
	newClient   ClientFactory
	workerSlots chan struct{}

	agentsMu sync.RWMutex
	agents   map[string]AgentRecord

	toolsMu sync.Mutex
	tools   map[string]toolEntry

	clientsMu sync.Mutex
	clients   map[string]router.AgentClient

	initOnce    sync.Once
	triggerScan func(ctx context.Context)
}

// Config bundles the knobs Orchestrator needs beyond its collaborators.
type Config struct {
	MCPTimeout     time.Duration
	WorkerPoolSize int
}

// New creates an Orchestrator. triggerScan, if non-nil, is invoked once
// (without blocking the caller) the first time initialize is handled, per
// §4.6's "first call only ... trigger one discovery scan".
func New(store *registry.Store, h *hardening.Hardening, c clock.Clock, newClient ClientFactory, cfg Config, triggerScan func(ctx context.Context)) *Orchestrator {
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = defaultWorkerPoolSize
	}
	timeout := cfg.MCPTimeout
	if timeout <= 0 {
		timeout = protocol.DefaultRequestTimeout
	}
	return &Orchestrator{
		store:       store,
		hardening:   h,
		clock:       c,
		logger:      logging.Discard(),
		mcpTimeout:  timeout,
		newClient:   newClient,
		workerSlots: make(chan struct{}, poolSize),
		agents:      make(map[string]AgentRecord),
		tools:       make(map[string]toolEntry),
		clients:     make(map[string]router.AgentClient),
		triggerScan: triggerScan,
	}
}

// SetLogger attaches a structured logger.
func (o *Orchestrator) SetLogger(logger *slog.Logger) {
	if logger != nil {
		o.logger = logger
	}
}

// Run consumes discovery events until the channel closes, fanning
// agentDiscovered to the bounded worker pool and handling agentLost
// inline (it is cheap: table/index mutation only, no outbound I/O).
func (o *Orchestrator) Run(ctx context.Context, events <-chan discovery.Event) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for ev := range events {
		switch ev.Kind {
		case discovery.EventDiscovered:
			agent := ev.Agent
			wg.Add(1)
			go func() {
				defer wg.Done()
				o.admitInitialize(ctx, agent)
			}()
		case discovery.EventLost:
			o.handleAgentLost(ev.AgentID)
		}
	}
}

// admitInitialize blocks for a free worker-pool slot before running the
// agent's initialize+tools-list sequence, bounding concurrency as
// required by §9.
func (o *Orchestrator) admitInitialize(ctx context.Context, agent discovery.Agent) {
	select {
	case o.workerSlots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-o.workerSlots }()

	o.registerAgent(ctx, agent)
}

// registerAgent performs the initialize+tools-list sequence for one
// agent and, on success, installs it into the agent table and tool-index
// (§4.6). Failure is logged and non-fatal: the agent is left out of the
// table. Later scans that still see the agent refresh discovery's record
// of it without announcing it again, so initialization is attempted again only after a scan reports the
// agent lost and a later scan discovers it anew.
func (o *Orchestrator) registerAgent(ctx context.Context, agent discovery.Agent) {
	client := o.newClient(agent, o.mcpTimeout)

	_, err := o.hardening.SafeToolCall(ctx, agent.ID, o.mcpTimeout, func(ctx context.Context) (any, error) {
		return client.Initialize(ctx)
	})
	if err != nil {
		o.logger.Warn("agent initialize failed", "agent", agent.ID, "error", err)
		o.store.LogError(agent.ID, "", "initialize failed: "+err.Error(), "")
		return
	}

	toolsAny, err := o.hardening.SafeToolCall(ctx, agent.ID, o.mcpTimeout, func(ctx context.Context) (any, error) {
		return client.RefreshTools(ctx)
	})
	if err != nil {
		o.logger.Warn("agent tools/list failed", "agent", agent.ID, "error", err)
		o.store.LogError(agent.ID, "", "tools/list failed: "+err.Error(), "")
		return
	}
	tools, _ := toolsAny.([]protocol.Tool)

	o.clientsMu.Lock()
	o.clients[agent.ID] = client
	o.clientsMu.Unlock()

	o.agentsMu.Lock()
	o.agents[agent.ID] = AgentRecord{Agent: agent, Status: statusActive}
	o.agentsMu.Unlock()

	accepted := tools[:0]
	for _, t := range tools {
		if verr := validator.ValidateToolDefinition(t); verr != nil {
			o.logger.Warn("rejecting tool definition", "agent", agent.ID, "tool", t.Name, "error", verr)
			o.store.LogError(agent.ID, t.Name, "invalid tool definition: "+verr.Message, "")
			continue
		}
		accepted = append(accepted, t)
	}
	tools = accepted

	o.toolsMu.Lock()
	for _, t := range tools {
		if _, exists := o.tools[t.Name]; exists {
			o.toolsMu.Unlock()
			o.store.LogError(agent.ID, t.Name, "tool name collision: already owned by another agent", "")
			o.toolsMu.Lock()
			continue
		}
		if len(t.InputSchema) == 0 {
			t.InputSchema = protocol.DefaultInputSchema
		}
		o.tools[t.Name] = toolEntry{AgentID: agent.ID, Tool: t}
	}
	o.toolsMu.Unlock()

	o.store.RegisterPlugin(agent, tools)
	o.logger.Info("agent registered", "agent", agent.ID, "name", agent.Name, "tools", len(tools))
}

// handleAgentLost marks the agent inactive and removes every tool-index
// entry it owned, per §4.6/§3.
func (o *Orchestrator) handleAgentLost(agentID string) {
	o.agentsMu.Lock()
	if rec, ok := o.agents[agentID]; ok {
		rec.Status = statusInactive
		o.agents[agentID] = rec
	}
	o.agentsMu.Unlock()

	o.toolsMu.Lock()
	for name, entry := range o.tools {
		if entry.AgentID == agentID {
			delete(o.tools, name)
		}
	}
	o.toolsMu.Unlock()

	o.clientsMu.Lock()
	delete(o.clients, agentID)
	o.clientsMu.Unlock()

	o.store.UpdatePluginStatus(agentID, statusInactive)
	o.logger.Info("agent lost", "agent", agentID)
}

// AgentSnapshot returns a copy of the agent table's current records.
func (o *Orchestrator) AgentSnapshot() []AgentRecord {
	o.agentsMu.RLock()
	defer o.agentsMu.RUnlock()
	out := make([]AgentRecord, 0, len(o.agents))
	for _, rec := range o.agents {
		out = append(out, rec)
	}
	return out
}

// ActiveAgentCount returns the number of agents currently active.
func (o *Orchestrator) ActiveAgentCount() int {
	o.agentsMu.RLock()
	defer o.agentsMu.RUnlock()
	n := 0
	for _, rec := range o.agents {
		if rec.Status == statusActive {
			n++
		}
	}
	return n
}

// ToolCount returns the current tool-index size.
func (o *Orchestrator) ToolCount() int {
	o.toolsMu.Lock()
	defer o.toolsMu.Unlock()
	return len(o.tools)
}

// ToolInfo is the reporting-friendly view of one tool-index entry.
type ToolInfo struct {
	Name        string `json:"name"`
	AgentID     string `json:"agentId"`
	Description string `json:"description,omitempty"`
}

// ToolsSnapshot returns the current tool-index contents for status
// reporting, sorted by tool name.
func (o *Orchestrator) ToolsSnapshot() []ToolInfo {
	o.toolsMu.Lock()
	out := make([]ToolInfo, 0, len(o.tools))
	for name, entry := range o.tools {
		out = append(out, ToolInfo{Name: name, AgentID: entry.AgentID, Description: entry.Tool.Description})
	}
	o.toolsMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ClientStatuses returns, for every agent currently holding an outbound
// client, whether that client completed its initialize handshake.
func (o *Orchestrator) ClientStatuses() map[string]bool {
	o.clientsMu.Lock()
	defer o.clientsMu.Unlock()
	out := make(map[string]bool, len(o.clients))
	for id, c := range o.clients {
		out[id] = c.IsInitialized()
	}
	return out
}

func (o *Orchestrator) agentRecord(agentID string) (AgentRecord, bool) {
	o.agentsMu.RLock()
	defer o.agentsMu.RUnlock()
	rec, ok := o.agents[agentID]
	return rec, ok
}

package main

import (
	"github.com/mcpfleet/orchestrator/internal/discovery"
	"github.com/mcpfleet/orchestrator/internal/hardening"
	"github.com/mcpfleet/orchestrator/internal/logging"
	"github.com/mcpfleet/orchestrator/internal/orchestrator"
	"github.com/mcpfleet/orchestrator/internal/registry"
)

// healthReporter implements httpserver.HealthReporter by pulling live
// status out of the running subsystems, keeping the httpserver package
// itself free of direct discovery/hardening/registry dependencies.
type healthReporter struct {
	scanner *discovery.Scanner
	hard    *hardening.Hardening
	store   *registry.Store
	orch    *orchestrator.Orchestrator
	logs    *logging.Buffer
}

func (h *healthReporter) RecentLogs() []logging.Entry {
	return h.logs.Recent(50)
}

func (h *healthReporter) DiscoveryStatus() map[string]any {
	return map[string]any{
		"knownAgents": h.scanner.KnownAgentCount(),
	}
}

func (h *healthReporter) RouterStatus() map[string]any {
	return map[string]any{
		"clients": h.orch.ClientStatuses(),
	}
}

func (h *healthReporter) HardeningStatus() map[string]any {
	breakers := h.hard.BreakerSnapshot()
	open := 0
	for _, b := range breakers {
		if b.State == hardening.StateOpen {
			open++
		}
	}
	return map[string]any{
		"errorStats":   h.hard.Stats(),
		"breakers":     breakers,
		"openBreakers": open,
	}
}

func (h *healthReporter) RegistryStatus() map[string]any {
	plugins := h.store.Plugins()
	return map[string]any{
		"pluginCount":  len(plugins),
		"errorLogSize": len(h.store.ErrorLog()),
	}
}

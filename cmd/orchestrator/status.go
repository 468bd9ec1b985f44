package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpfleet/orchestrator/internal/discovery"
	"github.com/mcpfleet/orchestrator/pkg/output"
	"github.com/mcpfleet/orchestrator/pkg/state"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running orchestrator's agents and tools",
	Long: `status queries a running orchestrator's /status endpoint and renders
the agent fleet and tool index as tables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus()
	},
}

// statusResponse mirrors httpserver's GET /status body, decoding only the
// fields this command renders.
type statusResponse struct {
	Server struct {
		Port       int     `json:"port"`
		Host       string  `json:"host"`
		Uptime     float64 `json:"uptime"`
		Version    string  `json:"version"`
		InstanceID string  `json:"instanceId"`
	} `json:"server"`
	Orchestrator struct {
		AgentCount   int `json:"agentCount"`
		ToolCount    int `json:"toolCount"`
		ActiveAgents int `json:"activeAgents"`
	} `json:"orchestrator"`
	Agents []agentRecord `json:"agents"`
	Tools  []toolRecord  `json:"tools"`
}

type toolRecord struct {
	Name        string `json:"name"`
	AgentID     string `json:"agentId"`
	Description string `json:"description"`
}

type agentRecord struct {
	Agent  discovery.Agent `json:"Agent"`
	Status string          `json:"Status"`
}

func runStatus() error {
	printer := output.New()

	st, err := state.Load()
	if err != nil {
		if os.IsNotExist(err) {
			printer.Info("no orchestrator daemon is running")
			return nil
		}
		return fmt.Errorf("reading daemon state: %w", err)
	}
	if !state.IsRunning(st) {
		printer.Info("no orchestrator daemon is running")
		return nil
	}

	url := fmt.Sprintf("http://localhost:%d/status", st.Port)
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("querying orchestrator status: %w", err)
	}
	defer resp.Body.Close()

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding status response: %w", err)
	}

	printer.Info("orchestrator",
		"port", body.Server.Port,
		"version", body.Server.Version,
		"instance", body.Server.InstanceID,
		"agents", body.Orchestrator.AgentCount,
		"activeAgents", body.Orchestrator.ActiveAgents,
		"tools", body.Orchestrator.ToolCount,
	)

	toolCount := make(map[string]int, len(body.Tools))
	nameByID := make(map[string]string, len(body.Agents))
	for _, rec := range body.Agents {
		nameByID[rec.Agent.ID] = rec.Agent.Name
	}

	var tools []output.ToolSummary
	for _, tl := range body.Tools {
		toolCount[tl.AgentID]++
		tools = append(tools, output.ToolSummary{
			Name:        tl.Name,
			Agent:       nameByID[tl.AgentID],
			Description: tl.Description,
		})
	}

	var agents []output.AgentSummary
	for _, rec := range body.Agents {
		agents = append(agents, output.AgentSummary{
			ID:     shortID(rec.Agent.ID),
			Name:   rec.Agent.Name,
			Status: rec.Status,
			Health: "unknown",
			Tools:  toolCount[rec.Agent.ID],
		})
	}

	printer.Summary(agents)
	printer.Tools(tools)
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Package protocol defines the MCP wire types exchanged between the
// orchestrator and both its clients and the downstream agents it fronts.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/mcpfleet/orchestrator/internal/jsonrpc"
)

// Version is the MCP protocol version this orchestrator speaks.
const Version = "2024-11-05"

// ServerName and ServerVersion identify the orchestrator to clients and to
// the agents it initializes, per §4.3/§4.6.
const (
	ServerName    = "mcp-multi-agent-orchestrator"
	ServerVersion = "1.0.0"
)

// Default timeouts and limits for the protocol front-end and router.
const (
	DefaultRequestTimeout = 30 * time.Second
	MaxRequestBodySize    = 1 * 1024 * 1024

	RecognizedMethodInitialize = "initialize"
	RecognizedMethodToolsList  = "tools/list"
	RecognizedMethodToolsCall  = "tools/call"
	RecognizedMethodPing       = "ping"
)

// RecognizedMethods is the strict-mode method allow-list from §4.1.
var RecognizedMethods = map[string]bool{
	RecognizedMethodInitialize: true,
	RecognizedMethodToolsList:  true,
	RecognizedMethodToolsCall:  true,
	RecognizedMethodPing:       true,
}

// Re-export the JSON-RPC envelope types so callers only need to import one
// protocol package for both the transport envelope and the MCP payloads.
type (
	Request  = jsonrpc.Request
	Response = jsonrpc.Response
	Error    = jsonrpc.Error
)

// ServerInfo identifies an MCP server (orchestrator or agent) to its peer.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientInfo identifies an MCP client to the server it is calling.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities describes what a server or client can do.
type Capabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
	Logging   *LoggingCapability   `json:"logging,omitempty"`
}

// ToolsCapability indicates tools support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability indicates resources support.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// PromptsCapability indicates prompts support.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// LoggingCapability indicates logging support (present, always empty).
type LoggingCapability struct{}

// InitializeParams contains parameters for the initialize request.
type InitializeParams struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ClientInfo      ClientInfo   `json:"clientInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

// InitializeResult is the response to initialize.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

// Tool represents an MCP tool definition, as declared by an agent.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// DefaultInputSchema is substituted for a tools/list entry whose agent
// omitted inputSchema, per §4.6.
var DefaultInputSchema = json.RawMessage(`{"type":"object","properties":{},"required":[]}`)

// ToolsListResult is the response to tools/list.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolCallParams contains parameters for tools/call.
type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// PingResult is the response to ping.
type PingResult struct {
	Pong      bool  `json:"pong"`
	Timestamp int64 `json:"timestamp"`
}

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mcpfleet/orchestrator/internal/hardening"
	"github.com/mcpfleet/orchestrator/internal/jsonrpc"
	"github.com/mcpfleet/orchestrator/internal/protocol"
	"github.com/mcpfleet/orchestrator/internal/tracing"
	"github.com/mcpfleet/orchestrator/internal/validator"
)

// Dispatch routes a validated JSON-RPC request to the matching MCP
// method handler and always returns a complete response envelope, per
// §4.6/§8 invariant 2 (exactly one of result/error is present).
func (o *Orchestrator) Dispatch(ctx context.Context, req *protocol.Request) protocol.Response {
	switch req.Method {
	case protocol.RecognizedMethodInitialize:
		return o.handleInitialize(ctx, req)
	case protocol.RecognizedMethodToolsList:
		return o.handleToolsList(req)
	case protocol.RecognizedMethodToolsCall:
		return o.handleToolsCall(ctx, req)
	case protocol.RecognizedMethodPing:
		return o.handlePing(req)
	default:
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.MethodNotFound, fmt.Sprintf("Unknown method: %s", req.Method))
	}
}

func (o *Orchestrator) handleInitialize(ctx context.Context, req *protocol.Request) protocol.Response {
	if verr := validator.ValidateInitialize(req.Params); verr != nil {
		return o.errorResponse(req.ID, jsonrpc.InvalidParams, verr.Message, "initialize")
	}

	o.initOnce.Do(func() {
		if o.triggerScan != nil {
			o.triggerScan(ctx)
		}
	})

	result := protocol.InitializeResult{
		ProtocolVersion: protocol.Version,
		ServerInfo:      protocol.ServerInfo{Name: protocol.ServerName, Version: protocol.ServerVersion},
		Capabilities: protocol.Capabilities{
			Tools:   &protocol.ToolsCapability{},
			Logging: &protocol.LoggingCapability{},
		},
	}
	return jsonrpc.NewSuccessResponse(req.ID, result)
}

func (o *Orchestrator) handleToolsList(req *protocol.Request) protocol.Response {
	o.toolsMu.Lock()
	entries := make([]toolEntry, 0, len(o.tools))
	for _, e := range o.tools {
		entries = append(entries, e)
	}
	o.toolsMu.Unlock()

	tools := make([]protocol.Tool, 0, len(entries))
	for _, e := range entries {
		rec, ok := o.agentRecord(e.AgentID)
		if !ok || rec.Status != statusActive {
			continue
		}
		t := e.Tool
		if len(t.InputSchema) == 0 {
			t.InputSchema = protocol.DefaultInputSchema
		}
		tools = append(tools, t)
	}
	return jsonrpc.NewSuccessResponse(req.ID, protocol.ToolsListResult{Tools: tools})
}

func (o *Orchestrator) handleToolsCall(ctx context.Context, req *protocol.Request) protocol.Response {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.tools_call")
	defer span.End()

	if verr := validator.ValidateToolCall(req.Params); verr != nil {
		return o.errorResponse(req.ID, jsonrpc.InvalidParams, verr.Message, "tools/call")
	}

	var params protocol.ToolCallParams
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &params)
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	} else {
		params.Arguments = validator.SanitizeInput(params.Arguments).(map[string]any)
	}
	span.SetAttributes(attribute.String("mcp.tool.name", params.Name))

	o.toolsMu.Lock()
	entry, ok := o.tools[params.Name]
	o.toolsMu.Unlock()
	if !ok {
		return o.errorResponse(req.ID, jsonrpc.MethodNotFound, fmt.Sprintf("Unknown tool: %s", params.Name), "tools/call")
	}

	span.SetAttributes(attribute.String("mcp.agent.id", entry.AgentID))

	rec, ok := o.agentRecord(entry.AgentID)
	if !ok || rec.Status != statusActive {
		return o.errorResponse(req.ID, jsonrpc.ServiceUnavailable, fmt.Sprintf("agent %s is not active", entry.AgentID), "tools/call")
	}

	o.clientsMu.Lock()
	client, ok := o.clients[entry.AgentID]
	o.clientsMu.Unlock()
	if !ok {
		return o.errorResponse(req.ID, jsonrpc.ServiceUnavailable, fmt.Sprintf("agent %s has no active connection", entry.AgentID), "tools/call")
	}

	start := o.clock.Now()
	resultAny, err := o.hardening.SafeToolCall(ctx, entry.AgentID, o.mcpTimeout, func(ctx context.Context) (any, error) {
		return client.CallTool(ctx, params.Name, params.Arguments)
	})
	elapsedMs := float64(o.clock.Now().Sub(start).Milliseconds())

	if err != nil {
		o.store.RecordModuleHealth(entry.AgentID, false, elapsedMs, params.Name, err.Error(), "")
		o.logger.Info("tool call completed", "tool", params.Name, "agent", entry.AgentID, "success", false, "error", err)
		span.RecordError(err)
		return o.errorResponse(req.ID, codeForCallError(err), err.Error(), "tools/call")
	}

	o.store.RecordModuleHealth(entry.AgentID, true, elapsedMs, params.Name, "", "")
	o.logger.Info("tool call completed", "tool", params.Name, "agent", entry.AgentID, "success", true)

	// The agent's result is forwarded verbatim as this response's result.
	result, _ := resultAny.(json.RawMessage)
	return jsonrpc.NewSuccessResponse(req.ID, result)
}

func (o *Orchestrator) handlePing(req *protocol.Request) protocol.Response {
	result := protocol.PingResult{Pong: true, Timestamp: o.clock.Now().UnixMilli()}
	return jsonrpc.NewSuccessResponse(req.ID, result)
}

// codeForCallError maps a tools/call failure to the §7 taxonomy:
// circuit-open and inactive agents are service-unavailable, deadline
// expiry is timeout, anything else is an internal error.
func codeForCallError(err error) int {
	if errors.Is(err, hardening.ErrCircuitOpen) {
		return jsonrpc.ServiceUnavailable
	}
	if errors.Is(err, hardening.ErrTimedOut) {
		return jsonrpc.Timeout
	}
	return jsonrpc.InternalError
}

// errorResponse wraps err into an OrchestratorError for its correlation
// id and structured data payload, per §7.
func (o *Orchestrator) errorResponse(id *jsonrpcRawID, code int, message, context string) protocol.Response {
	oerr := hardening.Wrap(errors.New(message), code, context, o.clock.Now())
	return jsonrpc.NewErrorResponseWithData(id, code, message, oerr.Data())
}

// jsonrpcRawID aliases the request-id wire type so errorResponse's
// signature stays readable.
type jsonrpcRawID = json.RawMessage

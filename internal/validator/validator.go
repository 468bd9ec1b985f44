// Package validator enforces JSON-RPC 2.0 structural correctness on
// ingress and outbound shaping (§4.1). It never performs semantic
// validation of agent-defined tool arguments — only structural checks.
package validator

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/mcpfleet/orchestrator/internal/protocol"
)

// toolNamePattern is the required shape of a tool name, per the Data Model.
var toolNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Kind categorizes a validation failure for error-code mapping by the
// dispatcher (§7's taxonomy).
type Kind string

const (
	KindInvalidEnvelope Kind = "invalid-envelope"
	KindInvalidMethod   Kind = "invalid-method"
	KindInvalidID       Kind = "invalid-id"
	KindInvalidParams   Kind = "invalid-params"
	KindInvalidToolName Kind = "invalid-tool-name"
	KindInvalidToolDef  Kind = "invalid-tool-def"
)

// Error is a validation failure, carrying enough information for the
// dispatcher to pick a JSON-RPC error code and message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func fail(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidateRequest checks structural correctness of an inbound JSON-RPC
// request envelope. In strict mode (the only mode this orchestrator
// runs in) the method must be one of the recognized MCP methods;
// unrecognized-but-well-formed methods are accepted here and rejected
// later by the orchestrator's dispatcher with -32601, per §4.1.
func ValidateRequest(req *protocol.Request) *Error {
	if req == nil {
		return fail(KindInvalidEnvelope, "request envelope is missing")
	}
	if req.JSONRPC != "2.0" {
		return fail(KindInvalidEnvelope, "jsonrpc must be \"2.0\"")
	}
	if req.Method == "" {
		return fail(KindInvalidMethod, "method must be a non-empty string")
	}
	if req.ID == nil {
		return fail(KindInvalidID, "id must be present and non-null")
	}
	if len(req.Params) > 0 {
		trimmed := firstNonSpace(req.Params)
		if trimmed != '{' && trimmed != '[' {
			return fail(KindInvalidParams, "params must be an object or array")
		}
	}
	return nil
}

// ValidateResponse checks structural correctness of a JSON-RPC response
// envelope, used when decoding an agent's reply in the router.
func ValidateResponse(resp *protocol.Response) *Error {
	if resp == nil {
		return fail(KindInvalidEnvelope, "response envelope is missing")
	}
	hasResult := len(resp.Result) > 0
	hasError := resp.Error != nil
	if hasResult == hasError {
		return fail(KindInvalidEnvelope, "response must have exactly one of result or error")
	}
	if hasError {
		if resp.Error.Message == "" {
			return fail(KindInvalidEnvelope, "error.message must be a non-empty string")
		}
	}
	return nil
}

// initializeParamsShape mirrors protocol.InitializeParams but with every
// field optional, so partial/absent fields can be distinguished from
// wrong-typed fields.
type initializeParamsShape struct {
	ProtocolVersion *string         `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities"`
	ClientInfo      json.RawMessage `json:"clientInfo"`
}

// ValidateInitialize checks that each of protocolVersion, capabilities,
// clientInfo is either absent or of the stated type.
func ValidateInitialize(params json.RawMessage) *Error {
	if len(params) == 0 {
		return nil
	}
	var shape initializeParamsShape
	if err := json.Unmarshal(params, &shape); err != nil {
		return fail(KindInvalidParams, "initialize params malformed: %v", err)
	}
	if len(shape.Capabilities) > 0 && firstNonSpace(shape.Capabilities) != '{' {
		return fail(KindInvalidParams, "capabilities must be an object")
	}
	if len(shape.ClientInfo) > 0 && firstNonSpace(shape.ClientInfo) != '{' {
		return fail(KindInvalidParams, "clientInfo must be an object")
	}
	return nil
}

type toolCallParamsShape struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ValidateToolCall requires name matching the tool-name pattern and
// arguments absent or an object.
func ValidateToolCall(params json.RawMessage) *Error {
	var shape toolCallParamsShape
	if len(params) > 0 {
		if err := json.Unmarshal(params, &shape); err != nil {
			return fail(KindInvalidParams, "tools/call params malformed: %v", err)
		}
	}
	if !toolNamePattern.MatchString(shape.Name) {
		return fail(KindInvalidToolName, "tool name %q does not match ^[a-zA-Z0-9_-]+$", shape.Name)
	}
	if len(shape.Arguments) > 0 && firstNonSpace(shape.Arguments) != '{' {
		return fail(KindInvalidParams, "arguments must be an object")
	}
	return nil
}

// ValidateToolDefinition validates a tool definition accepted from an
// agent's tools/list reply.
func ValidateToolDefinition(t protocol.Tool) *Error {
	if !toolNamePattern.MatchString(t.Name) {
		return fail(KindInvalidToolDef, "tool name %q does not match ^[a-zA-Z0-9_-]+$", t.Name)
	}
	if len(t.InputSchema) > 0 && firstNonSpace(t.InputSchema) != '{' {
		return fail(KindInvalidToolDef, "inputSchema must be an object")
	}
	return nil
}

// sanitizeKeys are dropped from any map encountered during SanitizeInput,
// guarding against prototype-pollution-style keys leaking through from
// agent-controlled JSON into internal maps.
var sanitizeKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// SanitizeInput deep-clones x, dropping any prototype-pollution-style keys
// from maps at any depth.
func SanitizeInput(x any) any {
	switch v := x.(type) {
	case map[string]any:
		clone := make(map[string]any, len(v))
		for k, val := range v {
			if sanitizeKeys[k] {
				continue
			}
			clone[k] = SanitizeInput(val)
		}
		return clone
	case []any:
		clone := make([]any, len(v))
		for i, val := range v {
			clone[i] = SanitizeInput(val)
		}
		return clone
	default:
		return v
	}
}

func firstNonSpace(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return c
		}
	}
	return 0
}

package validator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpfleet/orchestrator/internal/jsonrpc"
	"github.com/mcpfleet/orchestrator/internal/protocol"
)

func rawID(v int) *json.RawMessage {
	b, _ := json.Marshal(v)
	raw := json.RawMessage(b)
	return &raw
}

func TestValidateRequest_OK(t *testing.T) {
	req := &protocol.Request{JSONRPC: "2.0", ID: rawID(1), Method: "tools/list"}
	assert.Nil(t, ValidateRequest(req))
}

func TestValidateRequest_MissingID(t *testing.T) {
	req := &protocol.Request{JSONRPC: "2.0", Method: "ping"}
	err := ValidateRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, KindInvalidID, err.Kind)
}

func TestValidateRequest_BadVersion(t *testing.T) {
	req := &protocol.Request{JSONRPC: "1.0", ID: rawID(1), Method: "ping"}
	err := ValidateRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, KindInvalidEnvelope, err.Kind)
}

func TestValidateRequest_EmptyMethod(t *testing.T) {
	req := &protocol.Request{JSONRPC: "2.0", ID: rawID(1)}
	err := ValidateRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, KindInvalidMethod, err.Kind)
}

func TestValidateResponse_ExactlyOneOf(t *testing.T) {
	okResp := &protocol.Response{JSONRPC: "2.0", Result: json.RawMessage(`{}`)}
	assert.Nil(t, ValidateResponse(okResp))

	bothResp := &protocol.Response{JSONRPC: "2.0", Result: json.RawMessage(`{}`), Error: &jsonrpc.Error{Code: -1, Message: "x"}}
	assert.NotNil(t, ValidateResponse(bothResp))

	neitherResp := &protocol.Response{JSONRPC: "2.0"}
	assert.NotNil(t, ValidateResponse(neitherResp))
}

func TestValidateToolCall_NameMustMatchPattern(t *testing.T) {
	assert.NotNil(t, ValidateToolCall(json.RawMessage(`{"name":""}`)))
	assert.NotNil(t, ValidateToolCall(json.RawMessage(`{"name":"bad name!"}`)))
	assert.Nil(t, ValidateToolCall(json.RawMessage(`{"name":"echo"}`)))
	assert.Nil(t, ValidateToolCall(json.RawMessage(`{"name":"echo","arguments":{"text":"hi"}}`)))
}

func TestValidateToolCall_ArgumentsMustBeObject(t *testing.T) {
	err := ValidateToolCall(json.RawMessage(`{"name":"echo","arguments":[1,2,3]}`))
	require.NotNil(t, err)
	assert.Equal(t, KindInvalidParams, err.Kind)
}

func TestValidateInitialize_AllFieldsOptional(t *testing.T) {
	assert.Nil(t, ValidateInitialize(nil))
	assert.Nil(t, ValidateInitialize(json.RawMessage(`{}`)))
	assert.Nil(t, ValidateInitialize(json.RawMessage(`{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"x","version":"1"}}`)))
}

func TestValidateInitialize_WrongType(t *testing.T) {
	err := ValidateInitialize(json.RawMessage(`{"capabilities":"nope"}`))
	require.NotNil(t, err)
	assert.Equal(t, KindInvalidParams, err.Kind)
}

func TestSanitizeInput_DropsPollutionKeys(t *testing.T) {
	in := map[string]any{
		"name":        "echo",
		"__proto__":   map[string]any{"polluted": true},
		"constructor": "x",
		"nested": map[string]any{
			"__proto__": "y",
			"ok":        1,
		},
	}
	out := SanitizeInput(in).(map[string]any)
	assert.NotContains(t, out, "__proto__")
	assert.NotContains(t, out, "constructor")
	assert.Equal(t, "echo", out["name"])

	nested := out["nested"].(map[string]any)
	assert.NotContains(t, nested, "__proto__")
	assert.Equal(t, 1, nested["ok"])
}

func TestValidateToolDefinition(t *testing.T) {
	assert.Nil(t, ValidateToolDefinition(protocol.Tool{Name: "sum"}))
	err := ValidateToolDefinition(protocol.Tool{Name: "bad name"})
	require.NotNil(t, err)
	assert.Equal(t, KindInvalidToolDef, err.Kind)
}

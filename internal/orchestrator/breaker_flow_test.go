package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mcpfleet/orchestrator/internal/clock"
	"github.com/mcpfleet/orchestrator/internal/discovery"
	"github.com/mcpfleet/orchestrator/internal/hardening"
	"github.com/mcpfleet/orchestrator/internal/protocol"
	"github.com/mcpfleet/orchestrator/internal/registry"
	"github.com/mcpfleet/orchestrator/internal/router"
)

// Breaker-gated dispatch: after threshold consecutive agent failures the
// breaker opens and further tools/call dispatches fail fast with
// service-unavailable, without reaching the agent. The mock's Times
// bounds prove no outbound call happens while the breaker is open.
func TestToolsCall_BreakerOpensThenFailsFastThenRecovers(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := router.NewMockAgentClient(ctrl)

	fc := clock.NewFake(time.Unix(0, 0))
	store := registry.New(t.TempDir(), 100, fc)
	h := hardening.New(hardening.Config{
		DefaultTimeout:          time.Second,
		CircuitBreakerThreshold: 2,
		CircuitBreakerTimeout:   time.Minute,
	}, fc, nil)

	o := New(store, h, fc, func(agent discovery.Agent, timeout time.Duration) router.AgentClient {
		return client
	}, Config{MCPTimeout: time.Second, WorkerPoolSize: 1}, nil)

	client.EXPECT().Initialize(gomock.Any()).Return(protocol.ServerInfo{Name: "flaky", Version: "1.0.0"}, nil)
	client.EXPECT().RefreshTools(gomock.Any()).Return([]protocol.Tool{{Name: "delay"}}, nil)
	o.registerAgent(context.Background(), testAgent("agent-1"))

	callReq := func() protocol.Response {
		req := &protocol.Request{JSONRPC: "2.0", ID: rawID(t, 1), Method: "tools/call",
			Params: json.RawMessage(`{"name":"delay"}`)}
		return o.Dispatch(context.Background(), req)
	}

	client.EXPECT().CallTool(gomock.Any(), "delay", gomock.Any()).Return(nil, errors.New("agent exploded")).Times(2)

	resp := callReq()
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32603, resp.Error.Code)

	resp = callReq()
	require.NotNil(t, resp.Error)

	// Breaker is now open: no CallTool expectation is registered, so any
	// outbound attempt would fail the test.
	resp = callReq()
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32002, resp.Error.Code)

	// After the breaker timeout the next call is admitted (half-open) and
	// a success closes the breaker. The agent's result comes back verbatim.
	fc.Advance(time.Minute + time.Second)
	client.EXPECT().CallTool(gomock.Any(), "delay", gomock.Any()).
		Return(json.RawMessage(`{"slept":true}`), nil)

	resp = callReq()
	require.Nil(t, resp.Error)
	assert.Equal(t, `{"slept":true}`, string(resp.Result))
}

// A rejected tool definition from an agent's tools/list reply is dropped
// and logged; the agent itself still registers with its valid tools.
func TestRegisterAgent_InvalidToolDefinitionRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := router.NewMockAgentClient(ctrl)

	fc := clock.NewFake(time.Unix(0, 0))
	store := registry.New(t.TempDir(), 100, fc)
	h := hardening.New(hardening.DefaultConfig(), fc, nil)
	o := New(store, h, fc, func(agent discovery.Agent, timeout time.Duration) router.AgentClient {
		return client
	}, Config{MCPTimeout: time.Second}, nil)

	client.EXPECT().Initialize(gomock.Any()).Return(protocol.ServerInfo{}, nil)
	client.EXPECT().RefreshTools(gomock.Any()).Return([]protocol.Tool{
		{Name: "good_tool"},
		{Name: "bad tool!"},
	}, nil)

	o.registerAgent(context.Background(), testAgent("agent-1"))

	assert.Equal(t, 1, o.ToolCount())
	errs := store.ErrorLog()
	require.Len(t, errs, 1)
	assert.Equal(t, "bad tool!", errs[0].Tool)
}

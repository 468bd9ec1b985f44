package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpfleet/orchestrator/internal/clock"
	"github.com/mcpfleet/orchestrator/internal/discovery"
	"github.com/mcpfleet/orchestrator/internal/hardening"
	"github.com/mcpfleet/orchestrator/internal/protocol"
	"github.com/mcpfleet/orchestrator/internal/registry"
	"github.com/mcpfleet/orchestrator/internal/router"
)

type fakeClient struct {
	name        string
	endpoint    string
	initErr     error
	tools       []protocol.Tool
	toolsErr    error
	callResult  json.RawMessage
	callErr     error
	initialized bool
	serverInfo  protocol.ServerInfo
}

func (f *fakeClient) Name() string     { return f.name }
func (f *fakeClient) Endpoint() string { return f.endpoint }
func (f *fakeClient) Initialize(ctx context.Context) (protocol.ServerInfo, error) {
	if f.initErr != nil {
		return protocol.ServerInfo{}, f.initErr
	}
	f.initialized = true
	f.serverInfo = protocol.ServerInfo{Name: "fake", Version: "1.0.0"}
	return f.serverInfo, nil
}
func (f *fakeClient) RefreshTools(ctx context.Context) ([]protocol.Tool, error) {
	if f.toolsErr != nil {
		return nil, f.toolsErr
	}
	return f.tools, nil
}
func (f *fakeClient) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.callResult, nil
}
func (f *fakeClient) Ping(ctx context.Context) (time.Duration, error) { return 0, nil }
func (f *fakeClient) IsInitialized() bool                             { return f.initialized }
func (f *fakeClient) ServerInfo() protocol.ServerInfo                 { return f.serverInfo }

func testAgent(id string) discovery.Agent {
	return discovery.Agent{
		ID:   id,
		Name: id,
		Connection: discovery.Connection{
			Protocol: "http", Host: "localhost", Port: "3000", URL: "http://localhost:3000",
		},
	}
}

func newTestOrchestrator(t *testing.T, client *fakeClient) *Orchestrator {
	t.Helper()
	fc := clock.NewFake(time.Unix(0, 0))
	store := registry.New(t.TempDir(), 100, fc)
	h := hardening.New(hardening.DefaultConfig(), fc, nil)
	o := New(store, h, fc, func(agent discovery.Agent, timeout time.Duration) router.AgentClient {
		return client
	}, Config{MCPTimeout: time.Second, WorkerPoolSize: 2}, nil)
	return o
}

func TestRegisterAgent_SuccessPopulatesTableAndIndex(t *testing.T) {
	client := &fakeClient{tools: []protocol.Tool{{Name: "echo"}}}
	o := newTestOrchestrator(t, client)

	o.registerAgent(context.Background(), testAgent("agent-1"))

	recs := o.AgentSnapshot()
	require.Len(t, recs, 1)
	assert.Equal(t, statusActive, recs[0].Status)
	assert.Equal(t, 1, o.ToolCount())
}

func TestRegisterAgent_InitializeFailureLeavesAgentAbsent(t *testing.T) {
	client := &fakeClient{initErr: errors.New("boom")}
	o := newTestOrchestrator(t, client)

	o.registerAgent(context.Background(), testAgent("agent-1"))

	assert.Empty(t, o.AgentSnapshot())
	assert.Equal(t, 0, o.ToolCount())
}

func TestHandleAgentLost_MarksInactiveAndDropsTools(t *testing.T) {
	client := &fakeClient{tools: []protocol.Tool{{Name: "echo"}}}
	o := newTestOrchestrator(t, client)
	o.registerAgent(context.Background(), testAgent("agent-1"))

	o.handleAgentLost("agent-1")

	recs := o.AgentSnapshot()
	require.Len(t, recs, 1)
	assert.Equal(t, statusInactive, recs[0].Status)
	assert.Equal(t, 0, o.ToolCount())
}

func TestToolNameCollision_FirstWins(t *testing.T) {
	client1 := &fakeClient{tools: []protocol.Tool{{Name: "echo"}}}
	client2 := &fakeClient{tools: []protocol.Tool{{Name: "echo"}}}
	fc := clock.NewFake(time.Unix(0, 0))
	store := registry.New(t.TempDir(), 100, fc)
	h := hardening.New(hardening.DefaultConfig(), fc, nil)

	clients := map[string]router.AgentClient{"agent-1": client1, "agent-2": client2}
	o := New(store, h, fc, func(agent discovery.Agent, timeout time.Duration) router.AgentClient {
		return clients[agent.ID]
	}, Config{MCPTimeout: time.Second, WorkerPoolSize: 2}, nil)

	o.registerAgent(context.Background(), testAgent("agent-1"))
	o.registerAgent(context.Background(), testAgent("agent-2"))

	o.toolsMu.Lock()
	entry := o.tools["echo"]
	o.toolsMu.Unlock()
	assert.Equal(t, "agent-1", entry.AgentID)

	errs := store.ErrorLog()
	require.Len(t, errs, 1)
	assert.Equal(t, "agent-2", errs[0].AgentID)
}

func TestDispatch_ToolsCallUnknownTool(t *testing.T) {
	o := newTestOrchestrator(t, &fakeClient{})
	req := &protocol.Request{JSONRPC: "2.0", ID: rawID(t, 1), Method: "tools/call",
		Params: json.RawMessage(`{"name":"ghost"}`)}

	resp := o.Dispatch(context.Background(), req)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestDispatch_PingIsPure(t *testing.T) {
	o := newTestOrchestrator(t, &fakeClient{})
	req := &protocol.Request{JSONRPC: "2.0", ID: rawID(t, 1), Method: "ping"}

	resp := o.Dispatch(context.Background(), req)
	require.Nil(t, resp.Error)
	var result protocol.PingResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.True(t, result.Pong)
}

func TestDispatch_ToolsListExcludesInactiveAgents(t *testing.T) {
	client := &fakeClient{tools: []protocol.Tool{{Name: "echo"}}}
	o := newTestOrchestrator(t, client)
	o.registerAgent(context.Background(), testAgent("agent-1"))
	o.handleAgentLost("agent-1")

	req := &protocol.Request{JSONRPC: "2.0", ID: rawID(t, 1), Method: "tools/list"}
	resp := o.Dispatch(context.Background(), req)

	var result protocol.ToolsListResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Empty(t, result.Tools)
}

// The agent's result has no top-level content key; the client must see
// it byte-for-byte at the top level of the JSON-RPC result.
func TestDispatch_ToolsCallForwardsResultVerbatim(t *testing.T) {
	client := &fakeClient{
		tools:      []protocol.Tool{{Name: "echo"}},
		callResult: json.RawMessage(`{"echoed":"hi"}`),
	}
	o := newTestOrchestrator(t, client)
	o.registerAgent(context.Background(), testAgent("agent-1"))

	req := &protocol.Request{JSONRPC: "2.0", ID: rawID(t, 1), Method: "tools/call",
		Params: json.RawMessage(`{"name":"echo","arguments":{"text":"hi"}}`)}
	resp := o.Dispatch(context.Background(), req)

	require.Nil(t, resp.Error)
	assert.Equal(t, `{"echoed":"hi"}`, string(resp.Result))
}

func rawID(t *testing.T, v int) *json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	raw := json.RawMessage(b)
	return &raw
}

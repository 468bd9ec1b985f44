// Package router implements the outbound JSON-RPC 2.0 client to a single
// agent: initialize handshake, tool-list fetch, tool-call forwarding,
// ping, per §4.3.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mcpfleet/orchestrator/internal/hardening"
	"github.com/mcpfleet/orchestrator/internal/logging"
	"github.com/mcpfleet/orchestrator/internal/protocol"
	"github.com/mcpfleet/orchestrator/internal/tracing"
	"github.com/mcpfleet/orchestrator/internal/validator"
)

//go:generate mockgen -destination=mock_agent_client.go -package=router . AgentClient

// AgentClient is the interface the orchestrator uses to talk to a single
// downstream agent. Client is the production implementation; tests
// substitute a generated mock.
type AgentClient interface {
	Name() string
	Endpoint() string
	Initialize(ctx context.Context) (protocol.ServerInfo, error)
	RefreshTools(ctx context.Context) ([]protocol.Tool, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (json.RawMessage, error)
	Ping(ctx context.Context) (time.Duration, error)
	IsInitialized() bool
	ServerInfo() protocol.ServerInfo
}

// RetryAttempts and RetryDelay are the router's own internal transport
// retry policy (§4.3): linear backoff, independent of the hardening
// layer's exponential retry.
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 1 * time.Second
)

// Client communicates with a single downstream MCP agent over HTTP.
type Client struct {
	mu            sync.RWMutex
	name          string
	endpoint      string
	httpClient    *http.Client
	logger        *slog.Logger
	sessionID     string
	initialized   bool
	serverInfo    protocol.ServerInfo
	retryAttempts int
	retryDelay    time.Duration
}

// NewClient creates a router client for a downstream agent at endpoint
// (the agent's connection.url, §3).
func NewClient(name, endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = protocol.DefaultRequestTimeout
	}
	return &Client{
		name:          name,
		endpoint:      endpoint,
		logger:        logging.Discard(),
		httpClient:    &http.Client{Timeout: timeout},
		retryAttempts: DefaultRetryAttempts,
		retryDelay:    DefaultRetryDelay,
	}
}

// SetLogger attaches a structured logger.
func (c *Client) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetRetryPolicy overrides the transport retry policy, wired from
// ROUTER_RETRY_ATTEMPTS / ROUTER_RETRY_DELAY.
func (c *Client) SetRetryPolicy(attempts int, delay time.Duration) {
	if attempts > 0 {
		c.retryAttempts = attempts
	}
	if delay > 0 {
		c.retryDelay = delay
	}
}

func (c *Client) Name() string     { return c.name }
func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

func (c *Client) ServerInfo() protocol.ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// Initialize performs the MCP initialize handshake (§4.3).
func (c *Client) Initialize(ctx context.Context) (protocol.ServerInfo, error) {
	params := protocol.InitializeParams{
		ProtocolVersion: protocol.Version,
		ClientInfo:      protocol.ClientInfo{Name: protocol.ServerName, Version: protocol.ServerVersion},
		Capabilities:    protocol.Capabilities{Tools: &protocol.ToolsCapability{}},
	}

	var result protocol.InitializeResult
	if err := c.callWithRetry(ctx, "initialize", params, &result); err != nil {
		return protocol.ServerInfo{}, fmt.Errorf("initialize: %w", err)
	}

	c.mu.Lock()
	c.initialized = true
	c.serverInfo = result.ServerInfo
	c.mu.Unlock()

	if warning := compareProtocolVersions(protocol.Version, result.ProtocolVersion); warning != "" {
		c.logger.Warn("protocol version mismatch", "agent", c.name, "detail", warning)
	}

	_ = c.notify(ctx, "notifications/initialized", nil)

	return result.ServerInfo, nil
}

// RefreshTools fetches the current tool list from the agent (§4.3
// getAgentTools).
func (c *Client) RefreshTools(ctx context.Context) ([]protocol.Tool, error) {
	var result protocol.ToolsListResult
	if err := c.callWithRetry(ctx, "tools/list", nil, &result); err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a tool on the downstream agent (§4.3 routeToolCall).
// The agent's result is returned verbatim; the orchestrator imposes no
// shape on what a tool answers.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (json.RawMessage, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}
	params := protocol.ToolCallParams{Name: name, Arguments: arguments}

	var result json.RawMessage
	if err := c.callWithRetry(ctx, "tools/call", params, &result); err != nil {
		return nil, fmt.Errorf("tools/call: %w", err)
	}
	return result, nil
}

// Ping measures round-trip time to the agent (§4.3 testAgentConnection).
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var result json.RawMessage
	if err := c.callWithRetry(ctx, "ping", nil, &result); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// callWithRetry implements the router's own linear-per-attempt transport
// retry (retryAttempts=3, delay=retryDelay*attempt), independent of and
// composed with the hardening layer's retry, per §4.3/§9.
func (c *Client) callWithRetry(ctx context.Context, method string, params any, result any) error {
	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		err := c.call(ctx, method, params, result)
		if err == nil {
			return nil
		}
		if !isTransportError(err) {
			return err
		}
		lastErr = err
		if attempt < c.retryAttempts {
			select {
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// transportError marks failures at the HTTP/transport layer, which the
// router retries; agent-returned JSON-RPC error responses are not
// transport errors and are not retried here (§7 propagation policy).
type transportError struct{ err error }

func (t *transportError) Error() string { return t.err.Error() }
func (t *transportError) Unwrap() error { return t.err }

func isTransportError(err error) bool {
	_, ok := err.(*transportError)
	return ok
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	ctx, span := tracing.StartSpan(ctx, "router.call",
		attribute.String("mcp.agent.name", c.name),
		attribute.String("mcp.method", method),
	)
	defer span.End()

	reqID := hardening.NewRequestID(time.Now())

	var paramsBytes json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling params: %w", err)
		}
		paramsBytes = b
	}

	idBytes, _ := json.Marshal(reqID)
	rawID := json.RawMessage(idBytes)

	req := protocol.Request{JSONRPC: "2.0", ID: &rawID, Method: method, Params: paramsBytes}

	c.logger.Debug("sending request", "agent", c.name, "method", method, "id", reqID)

	resp, err := c.send(ctx, req)
	if err != nil {
		c.logger.Debug("request failed", "agent", c.name, "method", method, "error", err)
		span.RecordError(err)
		return &transportError{err}
	}

	if resp.Error != nil {
		c.logger.Debug("agent returned error", "agent", c.name, "method", method, "code", resp.Error.Code, "message", resp.Error.Message)
		rpcErr := fmt.Errorf("RPC error %d: %s", resp.Error.Code, resp.Error.Message)
		span.RecordError(rpcErr)
		return rpcErr
	}

	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("unmarshaling result: %w", err)
		}
	}

	return nil
}

func (c *Client) notify(ctx context.Context, method string, params any) error {
	var paramsBytes json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshaling params: %w", err)
		}
		paramsBytes = b
	}
	req := protocol.Request{JSONRPC: "2.0", Method: method, Params: paramsBytes}
	_, err := c.send(ctx, req)
	return err
}

func (c *Client) send(ctx context.Context, req protocol.Request) (*protocol.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimSuffix(c.endpoint, "/") + "/mcp"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")

	c.mu.RLock()
	sessionID := c.sessionID
	c.mu.RUnlock()
	if sessionID != "" {
		httpReq.Header.Set("Mcp-Session-Id", sessionID)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, string(respBody))
	}

	if sid := httpResp.Header.Get("Mcp-Session-Id"); sid != "" {
		c.mu.Lock()
		c.sessionID = sid
		c.mu.Unlock()
	}

	if ct := httpResp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/event-stream") {
		return parseSSEResponse(httpResp.Body)
	}

	var resp protocol.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if verr := validator.ValidateResponse(&resp); verr != nil {
		return nil, fmt.Errorf("malformed agent response: %w", verr)
	}
	return &resp, nil
}

// parseSSEResponse parses a streamable-HTTP MCP response: an SSE body
// that may carry notifications before the actual result, so this looks
// for the event that has an id field.
func parseSSEResponse(body io.Reader) (*protocol.Response, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading SSE response: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var resp protocol.Response
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &resp); err != nil {
			continue
		}
		if resp.ID != nil {
			return &resp, nil
		}
	}
	return nil, fmt.Errorf("no response with id found in SSE stream")
}

// Package httpserver is the inbound protocol front-end: a POST /mcp
// JSON-RPC endpoint plus GET /health and GET /status, per §4.6/§6.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/mcpfleet/orchestrator/internal/clock"
	"github.com/mcpfleet/orchestrator/internal/jsonrpc"
	"github.com/mcpfleet/orchestrator/internal/logging"
	"github.com/mcpfleet/orchestrator/internal/orchestrator"
	"github.com/mcpfleet/orchestrator/internal/protocol"
	"github.com/mcpfleet/orchestrator/internal/validator"
)

// maxRequestBodySize bounds the inbound /mcp body, per §5 "no streaming
// required, tool payloads are small".
const maxRequestBodySize = protocol.MaxRequestBodySize

// Server is the HTTP protocol front-end.
type Server struct {
	orch       *orchestrator.Orchestrator
	logger     *slog.Logger
	clock      clock.Clock
	startedAt  time.Time
	port       int
	host       string
	instanceID string

	health HealthReporter
}

// HealthReporter supplies the subsystem status summaries rendered by
// /health and /status, so the httpserver package stays decoupled from
// discovery/router internals.
type HealthReporter interface {
	DiscoveryStatus() map[string]any
	RouterStatus() map[string]any
	HardeningStatus() map[string]any
	RegistryStatus() map[string]any
	RecentLogs() []logging.Entry
}

// New creates a Server. port/host are reported verbatim by /status; the
// caller owns binding the listener.
func New(orch *orchestrator.Orchestrator, c clock.Clock, health HealthReporter, host string, port int) *Server {
	return &Server{
		orch:      orch,
		logger:    logging.Discard(),
		clock:     c,
		startedAt: c.Now(),
		port:      port,
		host:      host,
		health:    health,
	}
}

// SetLogger attaches a structured logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetInstanceID attaches a stable process-instance identifier, reported
// verbatim by GET /status (§11's google/uuid home).
func (s *Server) SetInstanceID(id string) {
	s.instanceID = id
}

// Handler returns the complete CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeResponse(w, jsonrpc.NewErrorResponse(nil, jsonrpc.ParseError, "Failed to read request body"))
		return
	}

	var req protocol.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeResponse(w, jsonrpc.NewErrorResponse(nil, jsonrpc.ParseError, "Invalid JSON"))
		return
	}

	if verr := validator.ValidateRequest(&req); verr != nil {
		code := jsonrpc.InvalidRequest
		if verr.Kind == validator.KindInvalidParams {
			code = jsonrpc.InvalidParams
		}
		writeResponse(w, jsonrpc.NewErrorResponse(req.ID, code, verr.Message))
		return
	}

	// A client disconnect does not cancel outbound work already dispatched.
	resp := s.orch.Dispatch(context.WithoutCancel(r.Context()), &req)
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp protocol.Response) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	agents := s.orch.AgentSnapshot()
	status := "healthy"
	body := map[string]any{
		"status":    status,
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339Nano),
		"uptime":    s.clock.Now().Sub(s.startedAt).Seconds(),
		"orchestrator": map[string]any{
			"initialized":  true,
			"agentCount":   len(agents),
			"toolCount":    s.orch.ToolCount(),
			"activeAgents": s.orch.ActiveAgentCount(),
			"registry":     s.health.RegistryStatus(),
		},
		"discovery":  s.health.DiscoveryStatus(),
		"router":     s.health.RouterStatus(),
		"hardening":  s.health.HardeningStatus(),
	}
	writeJSON(w, body)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	agents := s.orch.AgentSnapshot()
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	body := map[string]any{
		"server": map[string]any{
			"port":       s.port,
			"host":       s.host,
			"uptime":     s.clock.Now().Sub(s.startedAt).Seconds(),
			"version":    protocol.ServerVersion,
			"instanceId": s.instanceID,
			"memory": map[string]any{
				"allocBytes":      memStats.Alloc,
				"totalAllocBytes": memStats.TotalAlloc,
				"sysBytes":        memStats.Sys,
				"numGoroutine":    runtime.NumGoroutine(),
			},
		},
		"orchestrator": map[string]any{
			"agentCount":   len(agents),
			"toolCount":    s.orch.ToolCount(),
			"activeAgents": s.orch.ActiveAgentCount(),
		},
		"agents":     agents,
		"tools":      s.orch.ToolsSnapshot(),
		"recentLogs": s.health.RecentLogs(),
	}
	writeJSON(w, body)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

// Serve binds and runs the HTTP server until ctx is canceled, then
// performs a bounded graceful shutdown, per §5 "stop accepting new
// inbound connections; drain in-flight requests with a bounded wait".
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	}
}

package registry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mcpfleet/orchestrator/internal/clock"
	"github.com/mcpfleet/orchestrator/internal/discovery"
	"github.com/mcpfleet/orchestrator/internal/logging"
	"github.com/mcpfleet/orchestrator/internal/protocol"
)

// Store is the authoritative in-memory index described in §4.5. Mutations
// update memory under the lock; persistence runs after the lock is
// released, synchronously in the calling goroutine, so the caller waits
// for its own write while other callers are not held up by it.
type Store struct {
	mu sync.RWMutex

	plugins      map[string]Plugin
	moduleStatus map[string]ModuleStatus
	errorLog     []ErrorLogEntry

	dir                string
	maxErrorLogEntries int
	clock              clock.Clock
	logger             *slog.Logger
}

// New creates a Store persisting to dir, capping the error log at
// maxErrorLogEntries (§6 MAX_ERROR_LOG_ENTRIES).
func New(dir string, maxErrorLogEntries int, c clock.Clock) *Store {
	if maxErrorLogEntries <= 0 {
		maxErrorLogEntries = 1000
	}
	return &Store{
		plugins:            make(map[string]Plugin),
		moduleStatus:       make(map[string]ModuleStatus),
		dir:                dir,
		maxErrorLogEntries: maxErrorLogEntries,
		clock:              c,
		logger:             logging.Discard(),
	}
}

// SetLogger attaches a structured logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Load reads plugins.json, module-status.json, and error-log.json from
// dir if present; a missing file is equivalent to empty, and the three
// files may reflect different instants (no cross-file atomicity, §4.5).
func (s *Store) Load() error {
	plugins, err := loadPlugins(s.dir)
	if err != nil {
		return fmt.Errorf("loading plugins: %w", err)
	}
	moduleStatus, err := loadModuleStatus(s.dir)
	if err != nil {
		return fmt.Errorf("loading module status: %w", err)
	}
	errorLog, err := loadErrorLog(s.dir)
	if err != nil {
		return fmt.Errorf("loading error log: %w", err)
	}

	s.mu.Lock()
	s.plugins = plugins
	s.moduleStatus = moduleStatus
	if len(errorLog) > s.maxErrorLogEntries {
		errorLog = errorLog[len(errorLog)-s.maxErrorLogEntries:]
	}
	s.errorLog = errorLog
	s.mu.Unlock()
	return nil
}

// RegisterPlugin creates or overwrites a plugin entry, initializing its
// module-status if absent, then persists both files (§4.5
// registerPlugin).
func (s *Store) RegisterPlugin(agent discovery.Agent, tools []protocol.Tool) {
	now := s.clock.Now()

	s.mu.Lock()
	s.plugins[agent.ID] = Plugin{
		Agent:        agent,
		Tools:        tools,
		Status:       StatusActive,
		RegisteredAt: now,
	}
	if _, ok := s.moduleStatus[agent.ID]; !ok {
		s.moduleStatus[agent.ID] = ModuleStatus{Status: HealthUnknown}
	}
	plugins := s.snapshotPluginsLocked()
	moduleStatus := s.snapshotModuleStatusLocked()
	s.mu.Unlock()

	s.persistPlugins(plugins)
	s.persistModuleStatus(moduleStatus)
}

// UpdatePluginStatus mutates a plugin's status (active/inactive) and
// lastSeen, then persists (§4.5 updatePluginStatus). It is a no-op if the
// plugin does not exist.
func (s *Store) UpdatePluginStatus(agentID, status string) {
	now := s.clock.Now()

	s.mu.Lock()
	p, ok := s.plugins[agentID]
	if !ok {
		s.mu.Unlock()
		return
	}
	p.Status = status
	p.Agent.LastSeen = now
	s.plugins[agentID] = p
	plugins := s.snapshotPluginsLocked()
	s.mu.Unlock()

	s.persistPlugins(plugins)
}

// RecordModuleHealth updates success/failure counters, the running-mean
// response time, and derived uptime; on failure it also appends an
// error-log entry (§4.5 recordModuleHealth).
func (s *Store) RecordModuleHealth(agentID string, success bool, responseMs float64, tool, errMsg, correlationID string) {
	now := s.clock.Now()

	s.mu.Lock()
	st := s.moduleStatus[agentID]
	n := st.SuccessCount + st.FailureCount + 1
	st.AverageResponseTime += (responseMs - st.AverageResponseTime) / float64(n)

	if success {
		st.SuccessCount++
		st.LastSuccess = now
	} else {
		st.FailureCount++
		st.LastFailure = now
	}
	if st.SuccessCount+st.FailureCount > 0 {
		st.Uptime = float64(st.SuccessCount) / float64(st.SuccessCount+st.FailureCount) * 100
	}
	st.Status = deriveHealth(st)
	s.moduleStatus[agentID] = st
	moduleStatus := s.snapshotModuleStatusLocked()

	var errorLog []ErrorLogEntry
	if !success {
		entry := ErrorLogEntry{
			Timestamp:     now,
			AgentID:       agentID,
			Tool:          tool,
			Message:       errMsg,
			CorrelationID: correlationID,
		}
		s.errorLog = appendBounded(s.errorLog, entry, s.maxErrorLogEntries)
		errorLog = s.snapshotErrorLogLocked()
	}
	s.mu.Unlock()

	s.persistModuleStatus(moduleStatus)
	if errorLog != nil {
		s.persistErrorLog(errorLog)
	}
}

func deriveHealth(st ModuleStatus) string {
	switch {
	case st.SuccessCount == 0 && st.FailureCount == 0:
		return HealthUnknown
	case st.Uptime >= 50:
		return HealthHealthy
	default:
		return HealthUnhealthy
	}
}

// LogError appends an error-log entry not tied to a health-recording
// call (e.g. a rejected tool-name collision, §9), then persists the
// error log only (§4.5 logError).
func (s *Store) LogError(agentID, tool, message, correlationID string) {
	now := s.clock.Now()
	entry := ErrorLogEntry{
		Timestamp:     now,
		AgentID:       agentID,
		Tool:          tool,
		Message:       message,
		CorrelationID: correlationID,
	}

	s.mu.Lock()
	s.errorLog = appendBounded(s.errorLog, entry, s.maxErrorLogEntries)
	errorLog := s.snapshotErrorLogLocked()
	s.mu.Unlock()

	s.persistErrorLog(errorLog)
}

// RemovePlugin drops the plugin and its module-status, then persists
// both files (§4.5 removePlugin).
func (s *Store) RemovePlugin(agentID string) {
	s.mu.Lock()
	delete(s.plugins, agentID)
	delete(s.moduleStatus, agentID)
	plugins := s.snapshotPluginsLocked()
	moduleStatus := s.snapshotModuleStatusLocked()
	s.mu.Unlock()

	s.persistPlugins(plugins)
	s.persistModuleStatus(moduleStatus)
}

// Reset clears in-memory state and removes the three persisted files on
// disk, for the operator-facing "registry reset" command. A missing file
// is not an error.
func (s *Store) Reset() error {
	s.mu.Lock()
	s.plugins = make(map[string]Plugin)
	s.moduleStatus = make(map[string]ModuleStatus)
	s.errorLog = nil
	s.mu.Unlock()

	for _, name := range []string{pluginsFile, moduleStatusFile, errorLogFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", name, err)
		}
	}
	return nil
}

// Plugin returns a copy of the plugin for agentID, if present.
func (s *Store) Plugin(agentID string) (Plugin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plugins[agentID]
	return p, ok
}

// Plugins returns a snapshot of every registered plugin, sorted by
// agent id for deterministic reporting.
func (s *Store) Plugins() []Plugin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotPluginsLocked()
}

// ModuleStatusFor returns a copy of agentID's module-status, if present.
func (s *Store) ModuleStatusFor(agentID string) (ModuleStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.moduleStatus[agentID]
	return st, ok
}

// ErrorLog returns a snapshot of the bounded error log, oldest first.
func (s *Store) ErrorLog() []ErrorLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotErrorLogLocked()
}

func (s *Store) snapshotPluginsLocked() []Plugin {
	out := make([]Plugin, 0, len(s.plugins))
	for _, p := range s.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent.ID < out[j].Agent.ID })
	return out
}

func (s *Store) snapshotModuleStatusLocked() map[string]ModuleStatus {
	out := make(map[string]ModuleStatus, len(s.moduleStatus))
	for k, v := range s.moduleStatus {
		out[k] = v
	}
	return out
}

func (s *Store) snapshotErrorLogLocked() []ErrorLogEntry {
	out := make([]ErrorLogEntry, len(s.errorLog))
	copy(out, s.errorLog)
	return out
}

// appendBounded appends entry to log, dropping the oldest entries (FIFO)
// once length exceeds max, per the errorLog.length <= maxErrorLogEntries
// invariant.
func appendBounded(log []ErrorLogEntry, entry ErrorLogEntry, max int) []ErrorLogEntry {
	log = append(log, entry)
	if len(log) > max {
		log = log[len(log)-max:]
	}
	return log
}

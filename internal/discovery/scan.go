package discovery

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcpfleet/orchestrator/internal/clock"
	"github.com/mcpfleet/orchestrator/internal/logging"
)

// Config configures the Scanner's periodic cycle and platform-command
// retry policy (§4.4, §6).
type Config struct {
	Interval      time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultConfig returns the spec's literal defaults: 30s interval, 10
// retries, 3s linear-backoff delay.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second, RetryAttempts: 10, RetryDelay: 3 * time.Second}
}

// Scanner runs the periodic discovery cycle described in §4.4: list,
// inspect, diff against knownAgents, emit events. Exactly one scan runs
// at a time; a tick that fires while a scan is in flight is skipped
// rather than queued.
type Scanner struct {
	platform ContainerPlatform
	clock    clock.Clock
	cfg      Config
	logger   *slog.Logger

	mu          sync.Mutex
	knownAgents map[string]Agent

	scanning   atomic.Bool
	manualScan chan struct{}

	allowlist *Allowlist
}

// SetAllowlist installs a static name/image allowlist (§11); containers
// that carry mcp.server=true but fail the allowlist are skipped on every
// scan while it is installed, the same as if they had never carried the
// label. Passing nil clears any previously installed allowlist.
func (s *Scanner) SetAllowlist(al *Allowlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowlist = al
}

// NewScanner creates a Scanner against platform.
func NewScanner(platform ContainerPlatform, c clock.Clock, cfg Config) *Scanner {
	return &Scanner{
		platform:    platform,
		clock:       c,
		cfg:         cfg,
		logger:      logging.Discard(),
		knownAgents: make(map[string]Agent),
		manualScan:  make(chan struct{}, 1),
	}
}

// TriggerScan requests an out-of-band scan as soon as Run's loop is free
// to run one, without waiting for the next periodic tick. Used to satisfy
// the "first client call kicks off a scan immediately" handshake instead
// of leaving a freshly started orchestrator with an empty agent table
// until the first interval elapses. A pending request is coalesced if
// Run hasn't picked it up yet.
func (s *Scanner) TriggerScan() {
	select {
	case s.manualScan <- struct{}{}:
	default:
	}
}

// SetLogger attaches a structured logger.
func (s *Scanner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Run starts the periodic scan loop, sending events to the returned
// channel until ctx is canceled. The channel is closed on exit.
func (s *Scanner) Run(ctx context.Context) <-chan Event {
	events := make(chan Event, 32)
	ticker := s.clock.NewTicker(s.cfg.Interval)

	go func() {
		defer close(events)
		defer ticker.Stop()

		s.tick(ctx, events)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				s.tick(ctx, events)
			case <-s.manualScan:
				s.tick(ctx, events)
			}
		}
	}()

	return events
}

func (s *Scanner) tick(ctx context.Context, events chan<- Event) {
	if !s.scanning.CompareAndSwap(false, true) {
		s.logger.Debug("scan already in flight, skipping tick")
		return
	}
	defer s.scanning.Store(false)

	agents, err := s.scanOnce(ctx)
	if err != nil {
		s.logger.Error("discovery scan failed", "error", err)
		return
	}

	for _, ev := range s.diff(agents) {
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// scanOnce performs one list+inspect pass, retrying transient failures
// per the platform-command retry policy (retryAttempts, linear-by-attempt
// retryDelay), common for rootless daemons under socket contention.
func (s *Scanner) scanOnce(ctx context.Context) ([]Agent, error) {
	summaries, err := genericRetry(ctx, s.cfg.RetryAttempts, s.cfg.RetryDelay, func() ([]ContainerSummary, error) {
		return s.platform.ListAgentContainers(ctx)
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	agents := make([]Agent, 0, len(summaries))
	for _, summary := range summaries {
		if !isMCPServer(summary.Labels) {
			continue
		}

		detail, err := genericRetry(ctx, s.cfg.RetryAttempts, s.cfg.RetryDelay, func() (ContainerDetail, error) {
			return s.platform.Inspect(ctx, summary.ID)
		})
		if err != nil {
			s.logger.Warn("inspect failed, skipping container this cycle", "container", summary.ID, "error", err)
			continue
		}

		agent := buildAgent(summary, detail, now)

		s.mu.Lock()
		allowed := s.allowlist.Allows(agent.Name, agent.Image)
		s.mu.Unlock()
		if !allowed {
			s.logger.Debug("agent rejected by allowlist", "container", summary.ID, "name", agent.Name, "image", agent.Image)
			continue
		}

		agents = append(agents, agent)
	}
	return agents, nil
}

// KnownAgentCount returns the number of agents observed as of the last
// completed scan cycle.
func (s *Scanner) KnownAgentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.knownAgents)
}

// diff compares freshAgents against knownAgents and returns the resulting
// events, updating knownAgents in place under lock.
func (s *Scanner) diff(fresh []Agent) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	freshByID := make(map[string]Agent, len(fresh))
	for _, a := range fresh {
		freshByID[a.ID] = a
	}

	var events []Event
	for id, a := range freshByID {
		if _, known := s.knownAgents[id]; !known {
			events = append(events, Event{Kind: EventDiscovered, Agent: a})
		}
		s.knownAgents[id] = a
	}
	for id := range s.knownAgents {
		if _, stillPresent := freshByID[id]; !stillPresent {
			events = append(events, Event{Kind: EventLost, AgentID: id})
			delete(s.knownAgents, id)
		}
	}
	return events
}

func isMCPServer(labels map[string]string) bool {
	return labels[LabelMCPServer] == "true"
}

// buildAgent extracts the fields described in §4.4's "Agent
// identification" subsection.
func buildAgent(summary ContainerSummary, detail ContainerDetail, now time.Time) Agent {
	labels := summary.Labels
	if labels == nil {
		labels = detail.Labels
	}

	name := labels[LabelName]
	if name == "" && len(summary.Names) > 0 {
		name = summary.Names[0]
	}

	declaredPort := labels[LabelPort]
	if declaredPort == "" {
		declaredPort = defaultDeclaredPort
	}

	protocol := labels[LabelProtocol]
	if protocol == "" {
		protocol = defaultProtocol
	}

	port := declaredPort
	for _, m := range detail.Ports {
		if m.ContainerPort == declaredPort && m.HostIP == "0.0.0.0" && m.HostPort != "" {
			port = m.HostPort
			break
		}
	}

	return Agent{
		ID:           summary.ID,
		Name:         name,
		Image:        summary.Image,
		Status:       summary.Status,
		Labels:       labels,
		Connection:   Connection{Protocol: protocol, Host: "localhost", Port: port, URL: protocol + "://localhost:" + port},
		DiscoveredAt: now,
		LastSeen:     now,
	}
}

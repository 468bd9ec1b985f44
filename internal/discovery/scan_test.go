package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpfleet/orchestrator/internal/clock"
)

// fakePlatform is an in-memory ContainerPlatform whose container set can
// be swapped out between scan cycles, standing in for a Docker daemon.
type fakePlatform struct {
	mu         sync.Mutex
	containers []ContainerSummary
	details    map[string]ContainerDetail
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{details: make(map[string]ContainerDetail)}
}

func (p *fakePlatform) set(containers []ContainerSummary, details map[string]ContainerDetail) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.containers = containers
	p.details = details
}

func (p *fakePlatform) ListAgentContainers(ctx context.Context) ([]ContainerSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ContainerSummary, len(p.containers))
	copy(out, p.containers)
	return out, nil
}

func (p *fakePlatform) Inspect(ctx context.Context, containerID string) (ContainerDetail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.details[containerID], nil
}

func mcpContainer(id, name string) (ContainerSummary, ContainerDetail) {
	summary := ContainerSummary{
		ID:     id,
		Names:  []string{name},
		Labels: map[string]string{LabelMCPServer: "true", LabelName: name},
		Status: "running",
		Image:  "registry.example.com/" + name,
	}
	detail := ContainerDetail{ContainerSummary: summary}
	return summary, detail
}

func TestScanner_EmitsDiscoveredForNewAgent(t *testing.T) {
	platform := newFakePlatform()
	summary, detail := mcpContainer("c1", "echo-agent")
	platform.set([]ContainerSummary{summary}, map[string]ContainerDetail{"c1": detail})

	scanner := NewScanner(platform, clock.NewFake(time.Unix(0, 0)), Config{Interval: time.Hour, RetryAttempts: 1, RetryDelay: time.Millisecond})
	events := scanner.Run(context.Background())

	select {
	case ev := <-events:
		assert.Equal(t, EventDiscovered, ev.Kind)
		assert.Equal(t, "c1", ev.Agent.ID)
		assert.Equal(t, "echo-agent", ev.Agent.Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for agentDiscovered event")
	}
}

func TestScanner_IgnoresContainersWithoutLabel(t *testing.T) {
	platform := newFakePlatform()
	platform.set([]ContainerSummary{{ID: "c1", Labels: map[string]string{}}}, nil)

	scanner := NewScanner(platform, clock.NewFake(time.Unix(0, 0)), Config{Interval: time.Hour, RetryAttempts: 1, RetryDelay: time.Millisecond})
	events := scanner.Run(context.Background())

	select {
	case ev := <-events:
		t.Fatalf("expected no events, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScanner_EmitsLostWhenContainerDisappears(t *testing.T) {
	platform := newFakePlatform()
	summary, detail := mcpContainer("c1", "echo-agent")
	platform.set([]ContainerSummary{summary}, map[string]ContainerDetail{"c1": detail})

	fake := clock.NewFake(time.Unix(0, 0))
	scanner := NewScanner(platform, fake, Config{Interval: time.Minute, RetryAttempts: 1, RetryDelay: time.Millisecond})
	events := scanner.Run(context.Background())

	require.Equal(t, EventDiscovered, (<-events).Kind)

	platform.set(nil, nil)
	scanner.TriggerScan()

	select {
	case ev := <-events:
		assert.Equal(t, EventLost, ev.Kind)
		assert.Equal(t, "c1", ev.AgentID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for agentLost event")
	}
}

func TestScanner_RespectsAllowlist(t *testing.T) {
	platform := newFakePlatform()
	summary, detail := mcpContainer("c1", "blocked-agent")
	platform.set([]ContainerSummary{summary}, map[string]ContainerDetail{"c1": detail})

	scanner := NewScanner(platform, clock.NewFake(time.Unix(0, 0)), Config{Interval: time.Hour, RetryAttempts: 1, RetryDelay: time.Millisecond})
	scanner.SetAllowlist(&Allowlist{Names: map[string]bool{"other-agent": true}, Images: map[string]bool{}})
	events := scanner.Run(context.Background())

	select {
	case ev := <-events:
		t.Fatalf("expected no events for a blocked agent, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScanner_NonOverlappingScans(t *testing.T) {
	platform := newFakePlatform()
	scanner := NewScanner(platform, clock.NewFake(time.Unix(0, 0)), Config{Interval: time.Hour, RetryAttempts: 1, RetryDelay: time.Millisecond})

	assert.True(t, scanner.scanning.CompareAndSwap(false, true))
	assert.False(t, scanner.scanning.CompareAndSwap(false, true))
	scanner.scanning.Store(false)
}

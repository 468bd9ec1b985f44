package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinter_Summary_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	p.Summary(nil)

	if buf.Len() != 0 {
		t.Errorf("Summary(nil) should output nothing, got %q", buf.String())
	}
}

func TestPrinter_Summary_WithAgents(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	agents := []AgentSummary{
		{ID: "abc123", Name: "search-agent", Status: "active", Health: "healthy", Tools: 3, Uptime: "100%"},
		{ID: "def456", Name: "math-agent", Status: "inactive", Health: "unknown", Tools: 0, Uptime: "0%"},
	}
	p.Summary(agents)

	got := buf.String()
	if !strings.Contains(got, "NAME") {
		t.Error("Summary() should contain NAME header")
	}
	if !strings.Contains(got, "STATUS") {
		t.Error("Summary() should contain STATUS header")
	}
	if !strings.Contains(got, "HEALTH") {
		t.Error("Summary() should contain HEALTH header")
	}
	if !strings.Contains(got, "search-agent") {
		t.Error("Summary() should contain agent name")
	}
	if !strings.Contains(got, "abc123") {
		t.Error("Summary() should contain agent id")
	}
}

func TestPrinter_Tools_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	p.Tools(nil)

	if buf.Len() != 0 {
		t.Errorf("Tools(nil) should output nothing, got %q", buf.String())
	}
}

func TestPrinter_Tools_WithData(t *testing.T) {
	var buf bytes.Buffer
	p := NewWithWriter(&buf)

	tools := []ToolSummary{
		{Name: "search", Agent: "search-agent", Description: "full-text search"},
	}
	p.Tools(tools)

	got := buf.String()
	if !strings.Contains(got, "TOOLS") {
		t.Error("Tools() should contain section header")
	}
	if !strings.Contains(got, "NAME") {
		t.Error("Tools() should contain NAME header")
	}
	if !strings.Contains(got, "AGENT") {
		t.Error("Tools() should contain AGENT header")
	}
	if !strings.Contains(got, "search") {
		t.Error("Tools() should contain tool name")
	}
	if !strings.Contains(got, "search-agent") {
		t.Error("Tools() should contain owning agent name")
	}
}

func TestColorState(t *testing.T) {
	tests := []struct {
		state    string
		contains string // Non-TTY won't have colors, but function should not panic
	}{
		{"active", "active"},
		{"inactive", "inactive"},
		{"healthy", "healthy"},
		{"unhealthy", "unhealthy"},
		{"unknown", "unknown"},
		{"running", "running"},
		{"stopped", "stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			result := colorState(tt.state)
			if !strings.Contains(result, tt.contains) {
				t.Errorf("colorState(%q) = %q, should contain %q", tt.state, result, tt.contains)
			}
		})
	}
}

package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// AgentSummary contains one row of the agents status table.
type AgentSummary struct {
	ID      string
	Name    string
	Status  string // active, inactive
	Health  string // healthy, unhealthy, unknown
	Tools   int
	Uptime  string // human-readable, derived from module-status uptime percentage
}

// ToolSummary contains one row of the tool-index table.
type ToolSummary struct {
	Name        string
	Agent       string
	Description string
}

// Summary prints the agent status table with amber styling.
func (p *Printer) Summary(agents []AgentSummary) {
	if len(agents) == 0 {
		return
	}

	p.Println()

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(p.tableStyle())

	t.AppendHeader(table.Row{"ID", "Name", "Status", "Health", "Tools", "Uptime"})

	for _, a := range agents {
		status, health := a.Status, a.Health
		if p.isTTY {
			status = colorState(a.Status)
			health = colorState(a.Health)
		}
		t.AppendRow(table.Row{a.ID, a.Name, status, health, a.Tools, a.Uptime})
	}

	t.Render()
	p.Println()
}

// colorState applies color to a status/health string.
func colorState(state string) string {
	var style lipgloss.Style
	switch state {
	case "active", "healthy", "running":
		style = lipgloss.NewStyle().Foreground(ColorGreen)
	case "unhealthy", "failed", "error":
		style = lipgloss.NewStyle().Foreground(ColorRed)
	case "unknown", "pending":
		style = lipgloss.NewStyle().Foreground(ColorAmber)
	case "inactive", "stopped":
		style = lipgloss.NewStyle().Foreground(ColorMuted)
	default:
		style = lipgloss.NewStyle().Foreground(ColorGray)
	}
	return style.Render(state)
}

// Tools prints the tool-index table with amber styling.
func (p *Printer) Tools(tools []ToolSummary) {
	if len(tools) == 0 {
		return
	}

	p.Section("TOOLS")

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(p.tableStyle())

	t.AppendHeader(table.Row{"Name", "Agent", "Description"})

	for _, tl := range tools {
		t.AppendRow(table.Row{tl.Name, tl.Agent, tl.Description})
	}

	t.Render()
	p.Println()
}

// tableStyle returns the standard amber-themed table style.
func (p *Printer) tableStyle() table.Style {
	style := table.StyleRounded
	if p.isTTY {
		style.Color.Header = text.Colors{text.FgHiYellow, text.Bold}
		style.Color.Border = text.Colors{text.FgHiBlack}
	}
	style.Options.SeparateRows = false
	return style
}

// Section prints a section header.
func (p *Printer) Section(title string) {
	if p.isTTY {
		style := lipgloss.NewStyle().Foreground(ColorAmber).Bold(true)
		p.Println(style.Render(title))
	} else {
		p.Println(title)
	}
}

package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/inkdesk/inkdesk/internal/provider"
	"github.com/inkdesk/inkdesk/internal/workspace"
)

// WorkspacePaneModel is the side pane: workspace contents plus the
// provider status block.
type WorkspacePaneModel struct {
	ws      *workspace.Workspace
	width   int
	height  int
	focused bool

	kind      provider.Kind
	policy    provider.AgentPolicy
	model     string
	state     provider.State
	connected bool
}

// NewWorkspacePaneModel creates the workspace pane.
func NewWorkspacePaneModel(ws *workspace.Workspace) WorkspacePaneModel {
	return WorkspacePaneModel{ws: ws}
}

// Update handles messages. The pane is read-only; only sizing and
// focus matter.
func (m WorkspacePaneModel) Update(msg tea.Msg) (WorkspacePaneModel, tea.Cmd) {
	return m, nil
}

// SetStatus refreshes the provider status block.
func (m *WorkspacePaneModel) SetStatus(kind provider.Kind, policy provider.AgentPolicy, model string, state provider.State, connected bool) {
	m.kind = kind
	m.policy = policy
	m.model = model
	m.state = state
	m.connected = connected
}

// View renders the pane.
func (m WorkspacePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render("Workspace"))
	b.WriteString("\n")

	docs := m.ws.Documents()
	tables := m.ws.Tables()
	if len(docs) == 0 && len(tables) == 0 {
		b.WriteString(StyleSystem.Render("empty"))
		b.WriteString("\n")
	}
	for _, d := range docs {
		fmt.Fprintf(&b, "• %s\n", d.Title)
	}
	for _, t := range tables {
		fmt.Fprintf(&b, "▦ %s (%d rows)\n", t.Name, len(t.Rows))
	}
	if m.ws.Dirty() {
		b.WriteString(StyleError.Render("unsaved changes"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(StyleTitle.Render("Assistant"))
	b.WriteString("\n")
	conn := StyleStatusDisconnected.Render("offline")
	if m.connected {
		conn = StyleStatusConnected.Render("online")
	}
	fmt.Fprintf(&b, "%s %s\n", string(m.kind), conn)
	fmt.Fprintf(&b, "state: %s\n", m.state)
	fmt.Fprintf(&b, "policy: %s\n", string(m.policy))
	if m.model != "" {
		fmt.Fprintf(&b, "model: %s\n", m.model)
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(lipgloss.NewStyle().Width(m.width - 4).Render(b.String()))
}

// SetSize updates the pane dimensions.
func (m *WorkspacePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *WorkspacePaneModel) SetFocused(focused bool) {
	m.focused = focused
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/inkdesk/inkdesk/internal/transcript"
)

// ChatPaneModel is the conversation pane: a scrollable transcript, a
// busy indicator, and the input line.
type ChatPaneModel struct {
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	width    int
	height   int
	focused  bool
	busy     bool
	atBottom bool
}

// NewChatPaneModel creates the chat pane.
func NewChatPaneModel() ChatPaneModel {
	ti := textinput.New()
	ti.Placeholder = "Message the assistant, or /help"
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleStatusBusy

	return ChatPaneModel{
		viewport: viewport.New(0, 0),
		input:    ti,
		spinner:  sp,
		focused:  true,
		atBottom: true,
	}
}

// Init starts the spinner.
func (m ChatPaneModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key and spinner messages.
func (m ChatPaneModel) Update(msg tea.Msg) (ChatPaneModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			m.atBottom = m.viewport.AtBottom()
			cmds = append(cmds, cmd)
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// InputValue returns the current input text.
func (m ChatPaneModel) InputValue() string {
	return m.input.Value()
}

// ResetInput clears the input line.
func (m *ChatPaneModel) ResetInput() {
	m.input.Reset()
}

// SetBusy toggles the turn-in-flight indicator.
func (m *ChatPaneModel) SetBusy(busy bool) {
	m.busy = busy
}

// SetTranscript re-renders the viewport from the entry list. Keeps
// the view pinned to the bottom unless the user scrolled up.
func (m *ChatPaneModel) SetTranscript(entries []transcript.Entry) {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(renderEntry(e))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	if m.atBottom {
		m.viewport.GotoBottom()
	}
}

// renderEntry formats one transcript entry.
func renderEntry(e transcript.Entry) string {
	switch e.Role {
	case transcript.RoleUser:
		return StyleUser.Render("you: ") + e.Text
	case transcript.RoleAssistant:
		text := e.Text
		if e.Streaming {
			text += " ▌"
		}
		return StyleAssistant.Render(text)
	case transcript.RoleTool:
		line := StyleTool.Render(fmt.Sprintf("[%s] %s", e.ToolName, e.ToolInput))
		if e.Done {
			mark := "ok"
			if e.IsError {
				mark = "failed"
			}
			result := e.Result
			if result != "" {
				result = ": " + result
			}
			line += StyleTool.Render(fmt.Sprintf(" (%s%s)", mark, result))
		}
		return line
	case transcript.RoleSystem:
		if e.IsError {
			return StyleError.Render(e.Text)
		}
		return StyleSystem.Render(e.Text)
	default:
		return e.Text
	}
}

// View renders the pane.
func (m ChatPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	status := ""
	if m.busy {
		status = m.spinner.View() + StyleStatusBusy.Render(" thinking")
	}

	inner := lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		status,
		m.input.View(),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(inner)
}

// SetSize updates the pane dimensions.
func (m *ChatPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h

	vpHeight := h - 6 // border, status line, input line
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = w - 4
	m.viewport.Height = vpHeight
	m.input.Width = w - 8
}

// SetFocused updates the focus state and the input cursor.
func (m *ChatPaneModel) SetFocused(focused bool) {
	m.focused = focused
	if focused {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

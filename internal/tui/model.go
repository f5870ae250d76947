package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/inkdesk/inkdesk/internal/command"
	"github.com/inkdesk/inkdesk/internal/config"
	"github.com/inkdesk/inkdesk/internal/provider"
	"github.com/inkdesk/inkdesk/internal/transcript"
	"github.com/inkdesk/inkdesk/internal/workspace"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneChat PaneID = iota
	PaneWorkspace
)

// frameMsg drives the poll loop: once per frame the controller's
// event queue is drained and the panes re-rendered.
type frameMsg struct{}

const frameInterval = 100 * time.Millisecond

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}

// Options bundles the collaborators the TUI needs.
type Options struct {
	Controller  *provider.Controller
	Transcript  *transcript.Transcript
	Workspace   *workspace.Workspace
	Config      *config.Config
	GlobalPath  string
	ProjectPath string
}

// Model is the root Bubble Tea model.
type Model struct {
	chat          ChatPaneModel
	workspacePane WorkspacePaneModel
	settings      SettingsPaneModel
	focusedPane   PaneID
	width         int
	height        int
	quitting      bool
	showSettings  bool

	controller *provider.Controller
	transcript *transcript.Transcript
	config     *config.Config
}

// New creates the root model.
func New(o Options) Model {
	m := Model{
		chat:          NewChatPaneModel(),
		workspacePane: NewWorkspacePaneModel(o.Workspace),
		settings:      NewSettingsPaneModel(o.Config, o.GlobalPath, o.ProjectPath),
		focusedPane:   PaneChat,
		controller:    o.Controller,
		transcript:    o.Transcript,
		config:        o.Config,
	}
	m.chat.SetFocused(true)
	return m
}

// Init starts the agent and the frame loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.chat.Init(),
		frameTick(),
		func() tea.Msg {
			m.controller.EnsureStarted()
			return nil
		},
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showSettings {
			var cmd tea.Cmd
			m.settings, cmd = m.settings.Update(msg)
			cmds = append(cmds, cmd)
			if !m.settings.IsVisible() {
				m.showSettings = false
				if m.settings.Saved() {
					m.applySettings()
				}
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit:
			m.quitting = true
			m.controller.Stop()
			return m, tea.Quit

		case KeySettings:
			m.showSettings = true
			m.settings.SetVisible(true)
			cmds = append(cmds, m.settings.Init())

		case KeyTab:
			if m.focusedPane == PaneChat {
				m.focusedPane = PaneWorkspace
			} else {
				m.focusedPane = PaneChat
			}
			m.chat.SetFocused(m.focusedPane == PaneChat)
			m.workspacePane.SetFocused(m.focusedPane == PaneWorkspace)

		case KeyEnter:
			if m.focusedPane == PaneChat {
				m.handleSubmit()
			}

		default:
			switch m.focusedPane {
			case PaneChat:
				var cmd tea.Cmd
				m.chat, cmd = m.chat.Update(msg)
				cmds = append(cmds, cmd)
			case PaneWorkspace:
				var cmd tea.Cmd
				m.workspacePane, cmd = m.workspacePane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settings.SetSize(msg.Width, msg.Height)

	case frameMsg:
		m.controller.Poll()
		m.refreshPanes()
		cmds = append(cmds, frameTick())

	default:
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleSubmit parses and dispatches the input line.
func (m *Model) handleSubmit() {
	input := strings.TrimSpace(m.chat.InputValue())
	if input == "" {
		return
	}
	m.chat.ResetInput()

	caps := m.controller.LastCapabilities()
	cmd, err := command.Parse(input, caps.Commands)
	if err != nil {
		m.transcript.Error(err.Error())
		return
	}

	switch cmd.Kind {
	case command.KindMessage, command.KindPassthrough:
		m.controller.SendMessage(cmd.Arg)
	case command.KindProvider:
		if err := m.controller.SwitchProvider(provider.Kind(cmd.Arg)); err != nil {
			m.transcript.Error(err.Error())
		}
	case command.KindPolicy:
		if err := m.controller.SwitchPolicy(provider.AgentPolicy(cmd.Arg)); err != nil {
			m.transcript.Error(err.Error())
		}
	case command.KindModel:
		if err := m.controller.SetModel(cmd.Arg); err != nil {
			m.transcript.Error(err.Error())
		}
	case command.KindClear:
		m.transcript.Clear()
	case command.KindHelp:
		m.transcript.SystemNote(command.HelpText)
	}
}

// applySettings pushes a saved settings form into the live controller.
func (m *Model) applySettings() {
	if kind := provider.Kind(m.config.DefaultProvider); kind != m.controller.CurrentKind() {
		if err := m.controller.SwitchProvider(kind); err != nil {
			m.transcript.Error(err.Error())
		}
	}
	if policy := provider.AgentPolicy(m.config.DefaultPolicy); policy != m.controller.CurrentPolicy() {
		if err := m.controller.SwitchPolicy(policy); err != nil {
			m.transcript.Error(err.Error())
		}
	}
}

// refreshPanes mirrors controller and transcript state into the view
// models. Runs once per frame.
func (m *Model) refreshPanes() {
	m.chat.SetTranscript(m.transcript.Entries())
	m.chat.SetBusy(m.controller.State() == provider.StateBusy)

	caps := m.controller.LastCapabilities()
	m.workspacePane.SetStatus(
		m.controller.CurrentKind(),
		m.controller.CurrentPolicy(),
		caps.Model,
		m.controller.State(),
		m.controller.Connected(),
	)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.showSettings {
		return m.settings.View()
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top, m.chat.View(), m.workspacePane.View())
	return lipgloss.JoinVertical(lipgloss.Left, main, HelpView())
}

// computeLayout splits the window between the chat and workspace
// panes.
func (m *Model) computeLayout() {
	sideWidth := (m.width * 30) / 100
	chatWidth := m.width - sideWidth
	availableHeight := m.height - 1 // help bar

	m.chat.SetSize(chatWidth, availableHeight)
	m.workspacePane.SetSize(sideWidth, availableHeight)
}

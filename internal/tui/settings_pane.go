package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/inkdesk/inkdesk/internal/config"
)

// SettingsPaneModel manages the settings form overlay.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings
	saveTarget      string
	defaultProvider string
	defaultPolicy   string
	claudeCommand   string
	claudeModel     string
	codexCommand    string
	codexModel      string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.Config, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,

		saveTarget:      "global",
		defaultProvider: cfg.DefaultProvider,
		defaultPolicy:   cfg.DefaultPolicy,
		claudeCommand:   cfg.Providers["claude"].Command,
		claudeModel:     cfg.Providers["claude"].Model,
		codexCommand:    cfg.Providers["codex"].Command,
		codexModel:      cfg.Providers["codex"].Model,
	}

	m.buildForm()
	return m
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.inkdesk/config.json)", "global"),
					huh.NewOption("Project (.inkdesk/config.json)", "project"),
				).
				Value(&m.saveTarget),

			huh.NewSelect[string]().
				Key("defaultProvider").
				Title("Default Provider").
				Options(
					huh.NewOption("claude", "claude"),
					huh.NewOption("codex", "codex"),
				).
				Value(&m.defaultProvider),

			huh.NewSelect[string]().
				Key("defaultPolicy").
				Title("Agent Policy").
				Options(
					huh.NewOption("restricted (workspace tools only)", "restricted"),
					huh.NewOption("full (shell and file access)", "full"),
				).
				Value(&m.defaultPolicy),
		).Title("Assistant"),

		huh.NewGroup(
			huh.NewInput().
				Key("claudeCommand").
				Title("Claude Command").
				Value(&m.claudeCommand).
				Placeholder("claude"),

			huh.NewInput().
				Key("claudeModel").
				Title("Claude Model").
				Value(&m.claudeModel).
				Placeholder("(provider default)"),

			huh.NewInput().
				Key("codexCommand").
				Title("Codex Command").
				Value(&m.codexCommand).
				Placeholder("codex"),

			huh.NewInput().
				Key("codexModel").
				Title("Codex Model").
				Value(&m.codexModel).
				Placeholder("(provider default)"),
		).Title("Providers"),
	)
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		m.visible = false
		m.saved = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.applyFormToConfig()

		targetPath := m.globalPath
		if m.saveTarget == "project" {
			targetPath = m.projectPath
		}

		if err := config.Save(m.config, targetPath); err != nil {
			m.err = err
			m.saved = false
		} else {
			m.saved = true
			m.err = nil
			m.visible = false
		}
	}

	return m, cmd
}

// applyFormToConfig copies form field values back to the config.
func (m *SettingsPaneModel) applyFormToConfig() {
	m.config.DefaultProvider = m.defaultProvider
	m.config.DefaultPolicy = m.defaultPolicy

	if claude, ok := m.config.Providers["claude"]; ok {
		claude.Command = m.claudeCommand
		claude.Model = m.claudeModel
		m.config.Providers["claude"] = claude
	}
	if codex, ok := m.config.Providers["codex"]; ok {
		codex.Command = m.codexCommand
		codex.Model = m.codexModel
		m.config.Providers["codex"] = codex
	}
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string
	if m.err != nil {
		content = StyleError.Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil
	if v && m.form != nil {
		m.buildForm()
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Saved reports whether the last interaction saved the config, and
// clears the flag.
func (m *SettingsPaneModel) Saved() bool {
	saved := m.saved
	m.saved = false
	return saved
}

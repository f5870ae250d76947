package tui

// Keybinding constants
const (
	KeyQuit     = "ctrl+c"
	KeySettings = "ctrl+s"
	KeyTab      = "tab"
	KeyEnter    = "enter"
	KeyEsc      = "esc"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView() string {
	return StyleHelp.Render("Enter: send | /help: commands | Tab: switch pane | Ctrl+S: settings | Ctrl+C: quit")
}

package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the global and per-screen key bindings
type KeyMap struct {
	Quit key.Binding
	Back key.Binding

	// Navigation
	Timer     key.Binding
	Entries   key.Binding
	Clients   key.Binding
	Invoices  key.Binding
	Analytics key.Binding
	Dashboard key.Binding

	// Actions
	Select key.Binding
	New    key.Binding

	// Movement
	Up    key.Binding
	Down  key.Binding
	Left  key.Binding
	Right key.Binding
}

var DefaultKeyMap = KeyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Back:      key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
	Timer:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "timer")),
	Entries:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "entries")),
	Clients:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clients")),
	Invoices:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "invoices")),
	Analytics: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "analytics")),
	Dashboard: key.NewBinding(key.WithKeys("home", "0"), key.WithHelp("0", "dashboard")),
	Select:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	New:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
	Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
}

// navBindings are the screen switches shown in the footer, in display order
func (k KeyMap) navBindings() []key.Binding {
	return []key.Binding{k.Dashboard, k.Timer, k.Entries, k.Clients, k.Invoices, k.Analytics, k.Quit}
}

package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Combat key.Binding
	Toggle key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Combat, k.Toggle, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeys = keyMap{
	Combat: key.NewBinding(
		key.WithKeys("c", " "),
		key.WithHelp("c", "combat on/off"),
	),
	Toggle: key.NewBinding(
		key.WithKeys("t", "tab"),
		key.WithHelp("t", "switch metric"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

package tui

import "charm.land/bubbles/v2/key"

// keyMap represents key map data used by this package.
type keyMap struct {
	quit       key.Binding
	reload     key.Binding
	toggleHelp key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	scrollUp   key.Binding
	scrollDown key.Binding
	top        key.Binding
	copyReport key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "batch up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "batch down")),
		scrollUp:   key.NewBinding(key.WithKeys("pgup", "b"), key.WithHelp("pgup/b", "scroll report up")),
		scrollDown: key.NewBinding(key.WithKeys("pgdown", "space", " "), key.WithHelp("pgdn/space", "scroll report down")),
		top:        key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "report top")),
		copyReport: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy markdown")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.moveUp, k.moveDown, k.scrollDown, k.copyReport, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown, k.reload},
		{k.scrollUp, k.scrollDown, k.top},
		{k.copyReport, k.toggleHelp, k.quit},
	}
}

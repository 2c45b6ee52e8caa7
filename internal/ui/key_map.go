package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	next     key.Binding
	prev     key.Binding
	open     key.Binding
	submit   key.Binding
	focus    key.Binding
	reload   key.Binding
	trending key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		next:     key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→/n", "next page")),
		prev:     key.NewBinding(key.WithKeys("left", "h", "p"), key.WithHelp("←/p", "prev page")),
		open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open in browser")),
		submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search")),
		focus:    key.NewBinding(key.WithKeys("tab", "esc"), key.WithHelp("tab", "switch focus")),
		reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		trending: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "trending window")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.open},
		{k.next, k.prev, k.reload},
		{k.focus, k.trending, k.quit},
	}
}

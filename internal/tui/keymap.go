package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// keyMap represents key map data used by this package.
type keyMap struct {
	quit       key.Binding
	reload     key.Binding
	toggleHelp key.Binding
	moveLeft   key.Binding
	moveRight  key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	grab       key.Binding
	drop       key.Binding
	cancel     key.Binding
	copyID     key.Binding
	details    key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:   key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:  key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "card up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "card down")),
		grab:       key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "grab card")),
		drop:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop")),
		cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
		copyID:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy card id")),
		details:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "card details")),
	}
}

// applyConfig overrides the drag bindings from configuration.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.grab, cfg.Grab, "space", "grab card")
	configureBinding(&k.drop, cfg.Drop, "enter", "drop")
	configureBinding(&k.cancel, cfg.Cancel, "esc", "cancel drag")
	configureBinding(&k.copyID, cfg.CopyID, "y", "copy card id")
}

// configureBinding replaces a binding's keys and help from one configured key.
func configureBinding(binding *key.Binding, configured, fallback, desc string) {
	keys, help := parseBindingKeys(configured, fallback)
	binding.SetKeys(keys...)
	binding.SetHelp(help, desc)
}

// parseBindingKeys converts one configured key into matcher keys and help text.
func parseBindingKeys(configured, fallback string) ([]string, string) {
	raw := strings.TrimSpace(configured)
	if raw == "" {
		raw = fallback
	}
	if raw == " " || strings.EqualFold(raw, "space") {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.grab, k.drop, k.cancel, k.copyID, k.details, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.grab, k.drop, k.cancel},
		{k.copyID, k.details, k.reload, k.toggleHelp, k.quit},
	}
}

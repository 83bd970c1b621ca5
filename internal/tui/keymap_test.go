package tui

import (
	"testing"

	"charm.land/bubbles/v2/key"
)

// TestParseBindingKeys verifies key parsing behavior for configured overrides.
func TestParseBindingKeys(t *testing.T) {
	t.Run("space aliases", func(t *testing.T) {
		keys, help := parseBindingKeys("space", ".")
		if len(keys) != 2 || keys[0] != " " || keys[1] != "space" {
			t.Fatalf("unexpected parsed space keys %#v", keys)
		}
		if help != "space" {
			t.Fatalf("unexpected space help text %q", help)
		}
	})

	t.Run("uppercase rune includes shift alias", func(t *testing.T) {
		keys, help := parseBindingKeys("Z", "z")
		if len(keys) != 2 || keys[0] != "Z" || keys[1] != "shift+z" {
			t.Fatalf("unexpected uppercase parsed keys %#v", keys)
		}
		if help != "Z" {
			t.Fatalf("unexpected uppercase help text %q", help)
		}
	})

	t.Run("multi rune lowercases key matcher", func(t *testing.T) {
		keys, help := parseBindingKeys("Ctrl+G", "g")
		if len(keys) != 1 || keys[0] != "ctrl+g" {
			t.Fatalf("unexpected multi-rune parsed keys %#v", keys)
		}
		if help != "Ctrl+G" {
			t.Fatalf("unexpected multi-rune help text %q", help)
		}
	})

	t.Run("blank uses fallback", func(t *testing.T) {
		keys, help := parseBindingKeys("  ", "x")
		if len(keys) != 1 || keys[0] != "x" {
			t.Fatalf("unexpected fallback parsed keys %#v", keys)
		}
		if help != "x" {
			t.Fatalf("unexpected fallback help text %q", help)
		}
	})
}

// TestConfigureBinding verifies binding override application behavior.
func TestConfigureBinding(t *testing.T) {
	b := key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "old"))
	configureBinding(&b, "c", "y", "copy card id")
	keys := b.Keys()
	if len(keys) != 1 || keys[0] != "c" {
		t.Fatalf("unexpected configured keys %#v", keys)
	}
	if b.Help().Key != "c" || b.Help().Desc != "copy card id" {
		t.Fatalf("unexpected configured help %#v", b.Help())
	}
}

// TestKeyMapApplyConfig verifies drag key overrides.
func TestKeyMapApplyConfig(t *testing.T) {
	k := newKeyMap()
	k.applyConfig(KeyConfig{
		Grab:   "g",
		Drop:   "D",
		Cancel: "ctrl+x",
	})

	assertKeys := func(name string, binding key.Binding, expected ...string) {
		t.Helper()
		got := binding.Keys()
		if len(got) != len(expected) {
			t.Fatalf("%s key count mismatch got=%#v expected=%#v", name, got, expected)
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Fatalf("%s key mismatch got=%#v expected=%#v", name, got, expected)
			}
		}
	}

	assertKeys("grab", k.grab, "g")
	assertKeys("drop", k.drop, "D", "shift+d")
	assertKeys("cancel", k.cancel, "ctrl+x")
	assertKeys("copy id", k.copyID, "y")
}

// TestKeyMapDefaults verifies default drag bindings.
func TestKeyMapDefaults(t *testing.T) {
	k := newKeyMap()
	if got := k.grab.Keys(); len(got) != 2 || got[1] != "space" {
		t.Fatalf("unexpected grab keys %#v", got)
	}
	if got := k.cancel.Keys(); len(got) != 1 || got[0] != "esc" {
		t.Fatalf("unexpected cancel keys %#v", got)
	}
	if len(k.FullHelp()) != 3 || len(k.ShortHelp()) == 0 {
		t.Fatal("expected help groups")
	}
}

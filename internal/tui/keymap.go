package tui

import (
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/codemux/cli/internal/protocol"
)

// namedKeys maps Bubble Tea key names to protocol key codes.
var namedKeys = map[string]protocol.KeyCode{
	"enter":     protocol.Named(protocol.KeyEnter),
	"backspace": protocol.Named(protocol.KeyBackspace),
	"tab":       protocol.Named(protocol.KeyTab),
	"esc":       protocol.Named(protocol.KeyEsc),
	"up":        protocol.Named(protocol.KeyUp),
	"down":      protocol.Named(protocol.KeyDown),
	"left":      protocol.Named(protocol.KeyLeft),
	"right":     protocol.Named(protocol.KeyRight),
	"home":      protocol.Named(protocol.KeyHome),
	"end":       protocol.Named(protocol.KeyEnd),
	"pgup":      protocol.Named(protocol.KeyPageUp),
	"pgdown":    protocol.Named(protocol.KeyPageDown),
	"delete":    protocol.Named(protocol.KeyDelete),
	"insert":    protocol.Named(protocol.KeyInsert),
}

// ToKeys translates a local key message into protocol key events. A
// multi-rune message (terminal paste) yields one event per rune. Keys
// with no wire representation yield nil.
func ToKeys(msg tea.KeyMsg) []protocol.Key {
	if msg.Type == tea.KeyRunes {
		mods := protocol.KeyModifiers{Alt: msg.Alt}
		keys := make([]protocol.Key, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			keys = append(keys, protocol.Key{Code: protocol.Char(string(r)), Modifiers: mods})
		}
		return keys
	}

	var mods protocol.KeyModifiers
	name := msg.String()
	for {
		switch {
		case strings.HasPrefix(name, "ctrl+"):
			mods.Ctrl = true
			name = strings.TrimPrefix(name, "ctrl+")
		case strings.HasPrefix(name, "alt+"):
			mods.Alt = true
			name = strings.TrimPrefix(name, "alt+")
		case strings.HasPrefix(name, "shift+"):
			mods.Shift = true
			name = strings.TrimPrefix(name, "shift+")
		default:
			return buildKey(name, mods)
		}
	}
}

func buildKey(name string, mods protocol.KeyModifiers) []protocol.Key {
	if code, ok := namedKeys[name]; ok {
		return []protocol.Key{{Code: code, Modifiers: mods}}
	}
	if n, ok := fkeyNumber(name); ok {
		return []protocol.Key{{Code: protocol.FKey(n), Modifiers: mods}}
	}
	// ctrl+a etc. arrive as a bare letter after modifier stripping.
	if len([]rune(name)) == 1 {
		return []protocol.Key{{Code: protocol.Char(name), Modifiers: mods}}
	}
	return nil
}

func fkeyNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, "f") {
		return 0, false
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 1 || n > 24 {
		return 0, false
	}
	return n, true
}

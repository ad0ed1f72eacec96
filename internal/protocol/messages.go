// Package protocol implements the codemux wire protocol.
//
// The protocol is bidirectional JSON text frames over a single websocket
// connection. Client frames carry input events (keys, scroll, keyframe
// requests); server frames carry grid updates, PTY size changes, raw
// output, and errors. Encode and Decode translate between raw frames and
// the typed messages in this package.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ClientMessage is a message sent from the client to the server.
type ClientMessage interface {
	clientMessage()
}

// ServerMessage is a message received from the server.
type ServerMessage interface {
	serverMessage()
}

// Input carries a free-form text payload. Prefer TextKeys, which
// decomposes text into per-character key events the remote process sees
// as literal keystrokes; Input is kept for servers that still accept it.
type Input struct {
	Data string
}

// Key is a single key event with modifiers.
type Key struct {
	Code      KeyCode
	Modifiers KeyModifiers
}

// Scroll scrolls the remote viewport.
type Scroll struct {
	Direction ScrollDirection
	Lines     int
}

// RequestKeyframe asks the server for a full authoritative snapshot.
// Sent on every (re)open so the client can resync without replay.
type RequestKeyframe struct{}

func (Input) clientMessage()           {}
func (Key) clientMessage()             {}
func (Scroll) clientMessage()          {}
func (RequestKeyframe) clientMessage() {}

// KeyModifiers mirrors the modifier state of a key event.
type KeyModifiers struct {
	Shift bool `json:"shift"`
	Ctrl  bool `json:"ctrl"`
	Alt   bool `json:"alt"`
	Meta  bool `json:"meta"`
}

// ScrollDirection is the direction of a scroll event.
type ScrollDirection string

const (
	ScrollUp   ScrollDirection = "Up"
	ScrollDown ScrollDirection = "Down"
)

// Key code variant names. On the wire, unit variants are bare strings
// ("Enter") while Char and F carry a payload ({"Char":"a"}, {"F":5}).
const (
	KeyChar      = "Char"
	KeyBackspace = "Backspace"
	KeyEnter     = "Enter"
	KeyLeft      = "Left"
	KeyRight     = "Right"
	KeyUp        = "Up"
	KeyDown      = "Down"
	KeyHome      = "Home"
	KeyEnd       = "End"
	KeyPageUp    = "PageUp"
	KeyPageDown  = "PageDown"
	KeyTab       = "Tab"
	KeyDelete    = "Delete"
	KeyInsert    = "Insert"
	KeyF         = "F"
	KeyEsc       = "Esc"
)

// KeyCode identifies a key. Name is one of the Key* constants; Char is
// set for KeyChar, F for KeyF.
type KeyCode struct {
	Name string
	Char string
	F    int
}

// Char builds the key code for a single printable character.
func Char(s string) KeyCode { return KeyCode{Name: KeyChar, Char: s} }

// Named builds the key code for a unit variant such as KeyEnter.
func Named(name string) KeyCode { return KeyCode{Name: name} }

// FKey builds the key code for a function key (F1..F24).
func FKey(n int) KeyCode { return KeyCode{Name: KeyF, F: n} }

// MarshalJSON renders the externally tagged enum encoding.
func (k KeyCode) MarshalJSON() ([]byte, error) {
	switch k.Name {
	case KeyChar:
		return json.Marshal(map[string]string{KeyChar: k.Char})
	case KeyF:
		return json.Marshal(map[string]int{KeyF: k.F})
	case "":
		return nil, fmt.Errorf("key code has no name")
	default:
		return json.Marshal(k.Name)
	}
}

// UnmarshalJSON accepts both the bare-string and the tagged-object form.
func (k *KeyCode) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*k = KeyCode{Name: name}
		return nil
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("invalid key code: %s", data)
	}
	if raw, ok := tagged[KeyChar]; ok {
		var ch string
		if err := json.Unmarshal(raw, &ch); err != nil {
			return fmt.Errorf("invalid Char key code: %w", err)
		}
		*k = Char(ch)
		return nil
	}
	if raw, ok := tagged[KeyF]; ok {
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("invalid F key code: %w", err)
		}
		*k = FKey(n)
		return nil
	}
	return fmt.Errorf("unknown key code variant: %s", data)
}

// ColorKind discriminates the Color variants.
type ColorKind int

const (
	// ColorDefault is the terminal's default fg or bg, resolved from the
	// theme. The zero Color value is Default.
	ColorDefault ColorKind = iota
	// ColorIndexed is one of the 16 standard ANSI colors.
	ColorIndexed
	// ColorPalette is an 8-bit xterm palette index.
	ColorPalette
	// ColorRGB is a true color.
	ColorRGB
)

// Color is an abstract terminal color descriptor. It names a color
// without resolving it; resolution against a theme happens downstream.
type Color struct {
	Kind    ColorKind
	Index   uint8 // Indexed and Palette
	R, G, B uint8 // RGB
}

// Indexed builds a standard ANSI color descriptor (0..15).
func Indexed(n uint8) Color { return Color{Kind: ColorIndexed, Index: n} }

// Palette builds an 8-bit xterm palette descriptor (0..255).
func Palette(n uint8) Color { return Color{Kind: ColorPalette, Index: n} }

// RGB builds a true color descriptor.
func RGB(r, g, b uint8) Color { return Color{Kind: ColorRGB, R: r, G: g, B: b} }

type wireRGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// MarshalJSON renders the externally tagged enum encoding: "Default",
// {"Indexed":n}, {"Palette":n}, or {"Rgb":{"r":..,"g":..,"b":..}}.
func (c Color) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ColorDefault:
		return json.Marshal("Default")
	case ColorIndexed:
		return json.Marshal(map[string]uint8{"Indexed": c.Index})
	case ColorPalette:
		return json.Marshal(map[string]uint8{"Palette": c.Index})
	case ColorRGB:
		return json.Marshal(map[string]wireRGB{"Rgb": {R: c.R, G: c.G, B: c.B}})
	default:
		return nil, fmt.Errorf("unknown color kind %d", c.Kind)
	}
}

// UnmarshalJSON parses the externally tagged enum encoding. An
// unrecognized variant is an error so the whole frame is dropped rather
// than silently miscolored.
func (c *Color) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		if name != "Default" {
			return fmt.Errorf("unknown color variant %q", name)
		}
		*c = Color{}
		return nil
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("invalid color: %s", data)
	}
	if raw, ok := tagged["Indexed"]; ok {
		return c.unmarshalIndex(ColorIndexed, raw)
	}
	if raw, ok := tagged["Palette"]; ok {
		return c.unmarshalIndex(ColorPalette, raw)
	}
	if raw, ok := tagged["Rgb"]; ok {
		var rgb wireRGB
		if err := json.Unmarshal(raw, &rgb); err != nil {
			return fmt.Errorf("invalid Rgb color: %w", err)
		}
		*c = RGB(rgb.R, rgb.G, rgb.B)
		return nil
	}
	return fmt.Errorf("unknown color variant: %s", data)
}

func (c *Color) unmarshalIndex(kind ColorKind, raw json.RawMessage) error {
	var n uint8
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("invalid color index: %w", err)
	}
	*c = Color{Kind: kind, Index: n}
	return nil
}

// PartialCell is the wire representation of a grid cell. Fields equal to
// their default are omitted by the server; nil pointers and false flags
// mean "default", never "inherit from the previous cell".
type PartialCell struct {
	Char      string `json:"char,omitempty"`
	Fg        *Color `json:"fg_color,omitempty"`
	Bg        *Color `json:"bg_color,omitempty"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
	Reverse   bool   `json:"reverse,omitempty"`
}

// CellUpdate is one (row, col, cell) entry of a keyframe or diff. The
// wire form is a three-element array.
type CellUpdate struct {
	Row  int
	Col  int
	Cell PartialCell
}

func (u CellUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{u.Row, u.Col, u.Cell})
}

func (u *CellUpdate) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("invalid cell update: %w", err)
	}
	if len(tuple) != 3 {
		return fmt.Errorf("cell update has %d elements, want 3", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &u.Row); err != nil {
		return fmt.Errorf("invalid cell row: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &u.Col); err != nil {
		return fmt.Errorf("invalid cell col: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &u.Cell); err != nil {
		return fmt.Errorf("invalid cell payload: %w", err)
	}
	return nil
}

// CursorPos is a cursor position. The wire form is a [row, col] array;
// older servers send {"row":..,"col":..}, which is accepted too.
type CursorPos struct {
	Row int
	Col int
}

func (p CursorPos) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.Row, p.Col})
}

func (p *CursorPos) UnmarshalJSON(data []byte) error {
	var tuple [2]int
	if err := json.Unmarshal(data, &tuple); err == nil {
		p.Row, p.Col = tuple[0], tuple[1]
		return nil
	}
	var obj struct {
		Row int `json:"row"`
		Col int `json:"col"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid cursor position: %s", data)
	}
	p.Row, p.Col = obj.Row, obj.Col
	return nil
}

// Size is a grid size in character cells.
type Size struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Timestamp is milliseconds since the Unix epoch. Servers that
// serialize SystemTime directly send {"secs_since_epoch":..,
// "nanos_since_epoch":..} instead; both forms are accepted.
type Timestamp int64

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(t))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var millis int64
	if err := json.Unmarshal(data, &millis); err == nil {
		*t = Timestamp(millis)
		return nil
	}
	r := gjson.ParseBytes(data)
	if secs := r.Get("secs_since_epoch"); secs.Exists() {
		*t = Timestamp(secs.Int()*1000 + r.Get("nanos_since_epoch").Int()/1_000_000)
		return nil
	}
	return fmt.Errorf("invalid timestamp: %s", data)
}

// Keyframe is the authoritative full grid snapshot, used for initial
// sync and for resync after a reconnect.
type Keyframe struct {
	Size          Size         `json:"size"`
	Cells         []CellUpdate `json:"cells"`
	Cursor        CursorPos    `json:"cursor"`
	CursorVisible bool         `json:"cursor_visible"`
	Timestamp     Timestamp    `json:"timestamp"`
}

// Diff is an incremental update. Each change replaces the cell at its
// coordinate wholesale; absent cursor fields mean "unchanged".
type Diff struct {
	Changes       []CellUpdate `json:"changes"`
	Cursor        *CursorPos   `json:"cursor"`
	CursorVisible *bool        `json:"cursor_visible"`
	Timestamp     Timestamp    `json:"timestamp"`
}

// PtySize announces the remote PTY dimensions.
type PtySize struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// RawOutput is legacy raw PTY output. Informational only; grid updates
// are the primary channel.
type RawOutput struct {
	Data      []byte
	Timestamp Timestamp
}

// ErrorMessage is a server-reported error. It does not affect the
// connection.
type ErrorMessage struct {
	Message string `json:"message"`
}

// Unknown is a frame with a type this client does not understand. The
// caller logs and discards it.
type Unknown struct {
	Type string
	Raw  []byte
}

func (Keyframe) serverMessage()     {}
func (Diff) serverMessage()         {}
func (PtySize) serverMessage()      {}
func (RawOutput) serverMessage()    {}
func (ErrorMessage) serverMessage() {}
func (Unknown) serverMessage()      {}

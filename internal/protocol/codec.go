package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Frame type discriminators.
const (
	typeInput           = "input"
	typeKey             = "key"
	typeScroll          = "scroll"
	typeRequestKeyframe = "request_keyframe"
	typeGridUpdate      = "grid_update"
	typePtySize         = "pty_size"
	typeOutput          = "output"
	typeError           = "error"
)

type wireInput struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type wireKey struct {
	Type      string       `json:"type"`
	Code      KeyCode      `json:"code"`
	Modifiers KeyModifiers `json:"modifiers"`
}

type wireScroll struct {
	Type      string          `json:"type"`
	Direction ScrollDirection `json:"direction"`
	Lines     int             `json:"lines"`
}

type wireRequestKeyframe struct {
	Type string `json:"type"`
}

// Encode serializes a client message into a JSON text frame.
func Encode(msg ClientMessage) ([]byte, error) {
	switch m := msg.(type) {
	case Input:
		return json.Marshal(wireInput{Type: typeInput, Data: m.Data})
	case Key:
		return json.Marshal(wireKey{Type: typeKey, Code: m.Code, Modifiers: m.Modifiers})
	case Scroll:
		return json.Marshal(wireScroll{Type: typeScroll, Direction: m.Direction, Lines: m.Lines})
	case RequestKeyframe:
		return json.Marshal(wireRequestKeyframe{Type: typeRequestKeyframe})
	default:
		return nil, fmt.Errorf("unsupported client message type %T", msg)
	}
}

// TextKeys decomposes free-form text into one Char key event per rune
// followed by a trailing Enter. The remote process sees literal
// keystrokes rather than one opaque string-plus-newline blob.
func TextKeys(text string) []ClientMessage {
	msgs := make([]ClientMessage, 0, len(text)+1)
	for _, r := range text {
		msgs = append(msgs, Key{Code: Char(string(r))})
	}
	return append(msgs, Key{Code: Named(KeyEnter)})
}

// Decode parses a raw server frame into a typed message. A malformed
// frame fails decode and should be logged and discarded by the caller;
// it never affects connection state. A structurally valid frame with an
// unrecognized type decodes to Unknown.
func Decode(raw []byte) (ServerMessage, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("frame is not valid JSON")
	}
	t := gjson.GetBytes(raw, "type")
	if !t.Exists() {
		return nil, fmt.Errorf("frame has no type field")
	}
	switch t.String() {
	case typeGridUpdate:
		return decodeGridUpdate(raw)
	case typePtySize:
		var m PtySize
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode pty_size: %w", err)
		}
		return m, nil
	case typeOutput:
		return decodeOutput(raw)
	case typeError:
		var m ErrorMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode error frame: %w", err)
		}
		return m, nil
	default:
		return Unknown{Type: t.String(), Raw: raw}, nil
	}
}

// decodeGridUpdate splits grid_update frames into Keyframe and Diff.
// The update_type field decides when present; otherwise the presence of
// a size object marks a keyframe.
func decodeGridUpdate(raw []byte) (ServerMessage, error) {
	keyframe := false
	switch ut := gjson.GetBytes(raw, "update_type"); ut.String() {
	case "keyframe":
		keyframe = true
	case "diff":
	case "":
		if ut.Exists() {
			return nil, fmt.Errorf("empty update_type in grid_update frame")
		}
		keyframe = gjson.GetBytes(raw, "size").Exists()
	default:
		return nil, fmt.Errorf("unknown update_type %q", ut.String())
	}

	if keyframe {
		var m Keyframe
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode keyframe: %w", err)
		}
		return m, nil
	}

	var m Diff
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode diff: %w", err)
	}
	if m.Changes == nil && gjson.GetBytes(raw, "cells").Exists() {
		// Some servers send diff changes under "cells".
		var alt struct {
			Cells []CellUpdate `json:"cells"`
		}
		if err := json.Unmarshal(raw, &alt); err != nil {
			return nil, fmt.Errorf("decode diff cells: %w", err)
		}
		m.Changes = alt.Cells
	}
	return m, nil
}

// decodeOutput handles the legacy raw-output frame. The data field is a
// JSON byte array from current servers, but a plain string is accepted
// as well.
func decodeOutput(raw []byte) (ServerMessage, error) {
	var m struct {
		Data      json.RawMessage `json:"data"`
		Timestamp Timestamp       `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	out := RawOutput{Timestamp: m.Timestamp}
	if len(m.Data) > 0 {
		var bytes []byte
		var ints []int
		var s string
		switch {
		case json.Unmarshal(m.Data, &ints) == nil:
			bytes = make([]byte, len(ints))
			for i, v := range ints {
				bytes[i] = byte(v)
			}
		case json.Unmarshal(m.Data, &s) == nil:
			bytes = []byte(s)
		default:
			return nil, fmt.Errorf("invalid output data: %s", m.Data)
		}
		out.Data = bytes
	}
	return out, nil
}

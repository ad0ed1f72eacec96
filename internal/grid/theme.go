package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Theme supplies the concrete colors that abstract descriptors resolve
// against. It is read-only to this package once constructed.
type Theme struct {
	Background  RGBColor
	Foreground  RGBColor
	CursorColor RGBColor
	// ANSI holds the 16 standard colors: normal 0..7, bright 8..15.
	ANSI [16]RGBColor
}

// DefaultTheme returns the built-in dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		Background:  RGBColor{R: 0x1e, G: 0x1e, B: 0x2e},
		Foreground:  RGBColor{R: 0xcd, G: 0xd6, B: 0xf4},
		CursorColor: RGBColor{R: 0xf5, G: 0xe0, B: 0xdc},
		ANSI: [16]RGBColor{
			{R: 0x45, G: 0x47, B: 0x5a}, // black
			{R: 0xf3, G: 0x8b, B: 0xa8}, // red
			{R: 0xa6, G: 0xe3, B: 0xa1}, // green
			{R: 0xf9, G: 0xe2, B: 0xaf}, // yellow
			{R: 0x89, G: 0xb4, B: 0xfa}, // blue
			{R: 0xf5, G: 0xc2, B: 0xe7}, // magenta
			{R: 0x94, G: 0xe2, B: 0xd5}, // cyan
			{R: 0xba, G: 0xc2, B: 0xde}, // white
			{R: 0x58, G: 0x5b, B: 0x70}, // bright black
			{R: 0xf3, G: 0x8b, B: 0xa8}, // bright red
			{R: 0xa6, G: 0xe3, B: 0xa1}, // bright green
			{R: 0xf9, G: 0xe2, B: 0xaf}, // bright yellow
			{R: 0x89, G: 0xb4, B: 0xfa}, // bright blue
			{R: 0xf5, G: 0xc2, B: 0xe7}, // bright magenta
			{R: 0x94, G: 0xe2, B: 0xd5}, // bright cyan
			{R: 0xa6, G: 0xad, B: 0xc8}, // bright white
		},
	}
}

// ParseHex parses "#RGB", "#RRGGBB", "RGB", or "RRGGBB".
func ParseHex(hex string) (RGBColor, error) {
	hex = strings.TrimPrefix(hex, "#")

	var parts [3]string
	switch len(hex) {
	case 3:
		for i := range 3 {
			parts[i] = string(hex[i]) + string(hex[i])
		}
	case 6:
		for i := range 3 {
			parts[i] = hex[i*2 : i*2+2]
		}
	default:
		return RGBColor{}, fmt.Errorf("invalid hex color length: %q", hex)
	}

	var vals [3]uint8
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return RGBColor{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
		}
		vals[i] = uint8(v)
	}
	return RGBColor{R: vals[0], G: vals[1], B: vals[2]}, nil
}

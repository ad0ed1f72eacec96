package grid

import (
	"fmt"

	"github.com/codemux/cli/internal/protocol"
)

// RGBColor is a concrete display color.
type RGBColor struct {
	R, G, B uint8
}

// Hex renders the color as "#rrggbb".
func (c RGBColor) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Gray returns the n-th step of the xterm 24-step grayscale ramp
// (palette indices 232..255, n in 0..23).
func Gray(n int) RGBColor {
	level := uint8(n * 255 / 23)
	return RGBColor{R: level, G: level, B: level}
}

// ResolveColor maps an abstract color descriptor to a display color
// using the theme. isBackground selects which theme default applies.
func ResolveColor(c protocol.Color, isBackground bool, theme *Theme) RGBColor {
	switch c.Kind {
	case protocol.ColorDefault:
		return themeDefault(isBackground, theme)
	case protocol.ColorIndexed:
		if c.Index < 16 {
			return theme.ANSI[c.Index]
		}
		// Out-of-range index, fall back to the default rule.
		return themeDefault(isBackground, theme)
	case protocol.ColorPalette:
		return resolvePalette(int(c.Index), theme)
	case protocol.ColorRGB:
		return RGBColor{R: c.R, G: c.G, B: c.B}
	default:
		return themeDefault(isBackground, theme)
	}
}

func themeDefault(isBackground bool, theme *Theme) RGBColor {
	if isBackground {
		return theme.Background
	}
	return theme.Foreground
}

// resolvePalette maps an 8-bit palette index: 0..15 are the theme's
// ANSI colors, 16..231 the 6x6x6 color cube, 232..255 the grayscale
// ramp.
func resolvePalette(n int, theme *Theme) RGBColor {
	switch {
	case n < 16:
		return theme.ANSI[n]
	case n < 232:
		m := n - 16
		return RGBColor{
			R: uint8(m / 36 * 51),
			G: uint8(m % 36 / 6 * 51),
			B: uint8(m % 6 * 51),
		}
	default:
		return Gray(n - 232)
	}
}

// CellColors resolves the foreground and background of a cell. A set
// reverse flag swaps the descriptors before resolution; a cursor
// overlay forces the background to the theme's cursor color after it.
func CellColors(cell Cell, theme *Theme) (fg, bg RGBColor) {
	fgDesc, bgDesc := cell.Fg, cell.Bg
	if cell.Reverse {
		fgDesc, bgDesc = bgDesc, fgDesc
	}
	fg = ResolveColor(fgDesc, false, theme)
	bg = ResolveColor(bgDesc, true, theme)
	if cell.CursorOverlay {
		bg = theme.CursorColor
	}
	return fg, bg
}

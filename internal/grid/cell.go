// Package grid holds the mirrored state of a remote terminal: a sparse
// cell map, the logical cursor, and the theme used to resolve abstract
// color descriptors into display colors.
package grid

import "github.com/codemux/cli/internal/protocol"

// Cell is one fully reconstructed character cell. CursorOverlay is
// transient client-side state marking the cell that renders the cursor;
// the server never sends it.
type Cell struct {
	Char          string
	Fg            protocol.Color
	Bg            protocol.Color
	Bold          bool
	Italic        bool
	Underline     bool
	Reverse       bool
	CursorOverlay bool
}

// DefaultCell returns a blank cell: a space with default colors and no
// style flags. Absent map entries render as this.
func DefaultCell() Cell {
	return Cell{Char: " "}
}

// MergeDefaults reconstructs a full cell from a wire partial, filling
// every omitted field with its default. The result never inherits
// anything from a previously stored cell: diffs replace wholesale.
func MergeDefaults(p protocol.PartialCell) Cell {
	c := DefaultCell()
	if p.Char != "" {
		c.Char = p.Char
	}
	if p.Fg != nil {
		c.Fg = *p.Fg
	}
	if p.Bg != nil {
		c.Bg = *p.Bg
	}
	c.Bold = p.Bold
	c.Italic = p.Italic
	c.Underline = p.Underline
	c.Reverse = p.Reverse
	return c
}

// Package grid provides tests for grid state reconciliation.
package grid

import (
	"testing"

	"github.com/codemux/cli/internal/protocol"
)

func cellAt(row, col int, ch string) protocol.CellUpdate {
	return protocol.CellUpdate{Row: row, Col: col, Cell: protocol.PartialCell{Char: ch}}
}

func keyframe(rows, cols int, cursor protocol.CursorPos, visible bool, cells ...protocol.CellUpdate) protocol.Keyframe {
	return protocol.Keyframe{
		Size:          protocol.Size{Rows: rows, Cols: cols},
		Cells:         cells,
		Cursor:        cursor,
		CursorVisible: visible,
	}
}

// TestApplyKeyframe tests that a keyframe replaces the grid wholesale.
func TestApplyKeyframe(t *testing.T) {
	s := NewStore(nil)

	if !s.Apply(keyframe(24, 80, protocol.CursorPos{Row: 0, Col: 1}, true, cellAt(0, 0, "h"))) {
		t.Fatal("Apply(keyframe) = false, want true")
	}
	snap := s.State()
	if snap.Rows != 24 || snap.Cols != 80 {
		t.Errorf("size = %dx%d, want 24x80", snap.Rows, snap.Cols)
	}
	if got := snap.At(0, 0); got.Char != "h" {
		t.Errorf("At(0,0).Char = %q, want h", got.Char)
	}
	if snap.Cursor != (Cursor{Row: 0, Col: 1, Visible: true}) {
		t.Errorf("Cursor = %+v", snap.Cursor)
	}
	// The cursor lands on an absent cell, so an overlay-only default
	// cell is synthesized there.
	if got := snap.At(0, 1); !got.CursorOverlay || got.Char != " " {
		t.Errorf("At(0,1) = %+v, want blank overlay cell", got)
	}

	// A later keyframe discards everything the first one set.
	s.Apply(keyframe(24, 80, protocol.CursorPos{}, false, cellAt(5, 5, "z")))
	snap = s.State()
	if got := snap.At(0, 0); got.Char != " " {
		t.Errorf("At(0,0).Char after replace = %q, want blank", got.Char)
	}
	if got := snap.At(5, 5); got.Char != "z" {
		t.Errorf("At(5,5).Char = %q, want z", got.Char)
	}
	for coord, cell := range snap.Cells {
		if cell.CursorOverlay {
			t.Errorf("overlay at %+v with cursor hidden", coord)
		}
	}
}

// TestApplyKeyframeIdempotent tests that re-applying identical state
// reports no change.
func TestApplyKeyframeIdempotent(t *testing.T) {
	s := NewStore(nil)
	kf := keyframe(10, 10, protocol.CursorPos{Row: 2, Col: 2}, true, cellAt(1, 1, "a"))
	s.Apply(kf)
	if s.Apply(kf) {
		t.Error("Apply(same keyframe) = true, want false")
	}
}

// TestApplyDiff tests cell overwrites and cursor reconciliation.
func TestApplyDiff(t *testing.T) {
	s := NewStore(nil)
	s.Apply(keyframe(10, 20, protocol.CursorPos{Row: 0, Col: 0}, true,
		cellAt(0, 0, "a"), cellAt(0, 1, "b")))

	// Overwrite a cell and move the cursor onto it.
	if !s.Apply(protocol.Diff{
		Changes: []protocol.CellUpdate{cellAt(0, 1, "c")},
		Cursor:  &protocol.CursorPos{Row: 0, Col: 1},
	}) {
		t.Fatal("Apply(diff) = false, want true")
	}
	snap := s.State()
	if got := snap.At(0, 1); got.Char != "c" || !got.CursorOverlay {
		t.Errorf("At(0,1) = %+v, want c with overlay", got)
	}
	if got := snap.At(0, 0); got.CursorOverlay {
		t.Errorf("At(0,0) still carries overlay: %+v", got)
	}
	if snap.Cursor != (Cursor{Row: 0, Col: 1, Visible: true}) {
		t.Errorf("Cursor = %+v", snap.Cursor)
	}
}

// TestDiffReplacesWholesale tests that a sparse change does not inherit
// attributes from the previous cell at that coordinate.
func TestDiffReplacesWholesale(t *testing.T) {
	s := NewStore(nil)
	bold := protocol.CellUpdate{Row: 0, Col: 0, Cell: protocol.PartialCell{Char: "a", Bold: true}}
	s.Apply(keyframe(5, 5, protocol.CursorPos{}, false, bold))

	s.Apply(protocol.Diff{Changes: []protocol.CellUpdate{cellAt(0, 0, "b")}})
	if got := s.State().At(0, 0); got.Bold {
		t.Errorf("At(0,0) = %+v, inherited bold from previous cell", got)
	}
}

// TestDiffCursorVisibility tests visibility toggles and overlay upkeep.
func TestDiffCursorVisibility(t *testing.T) {
	s := NewStore(nil)
	s.Apply(keyframe(5, 5, protocol.CursorPos{Row: 1, Col: 1}, true, cellAt(1, 1, "x")))

	hidden := false
	s.Apply(protocol.Diff{CursorVisible: &hidden})
	if got := s.State().At(1, 1); got.CursorOverlay {
		t.Errorf("At(1,1) = %+v, overlay survived hide", got)
	}

	shown := true
	s.Apply(protocol.Diff{CursorVisible: &shown})
	if got := s.State().At(1, 1); !got.CursorOverlay {
		t.Errorf("At(1,1) = %+v, overlay missing after show", got)
	}

	// Nil cursor fields leave cursor state untouched.
	if s.State().Cursor != (Cursor{Row: 1, Col: 1, Visible: true}) {
		t.Errorf("Cursor = %+v, want (1,1) visible", s.State().Cursor)
	}
}

// TestDiffSequenceMatchesKeyframe tests that a keyframe followed by
// diffs produces the same visible state as one keyframe carrying the
// end state.
func TestDiffSequenceMatchesKeyframe(t *testing.T) {
	incremental := NewStore(nil)
	incremental.Apply(keyframe(3, 3, protocol.CursorPos{Row: 0, Col: 0}, true,
		cellAt(0, 0, "a"), cellAt(0, 1, "b")))
	incremental.Apply(protocol.Diff{
		Changes: []protocol.CellUpdate{cellAt(0, 1, "c"), cellAt(1, 0, "d")},
		Cursor:  &protocol.CursorPos{Row: 1, Col: 1},
	})
	incremental.Apply(protocol.Diff{
		Changes: []protocol.CellUpdate{cellAt(2, 2, "e")},
		Cursor:  &protocol.CursorPos{Row: 2, Col: 0},
	})

	direct := NewStore(nil)
	direct.Apply(keyframe(3, 3, protocol.CursorPos{Row: 2, Col: 0}, true,
		cellAt(0, 0, "a"), cellAt(0, 1, "c"), cellAt(1, 0, "d"), cellAt(2, 2, "e")))

	got, want := incremental.State(), direct.State()
	if got.Cursor != want.Cursor {
		t.Errorf("Cursor = %+v, want %+v", got.Cursor, want.Cursor)
	}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			if g, w := got.At(row, col), want.At(row, col); g != w {
				t.Errorf("At(%d,%d) = %+v, want %+v", row, col, g, w)
			}
		}
	}
}

// TestApplySize tests pty_size handling without cell pruning.
func TestApplySize(t *testing.T) {
	s := NewStore(nil)
	s.Apply(keyframe(24, 80, protocol.CursorPos{}, false, cellAt(20, 70, "x")))

	if !s.Apply(protocol.PtySize{Rows: 10, Cols: 40}) {
		t.Fatal("Apply(pty_size) = false, want true")
	}
	snap := s.State()
	if snap.Rows != 10 || snap.Cols != 40 {
		t.Errorf("size = %dx%d, want 10x40", snap.Rows, snap.Cols)
	}
	// Out-of-bounds cells stay in the map until the next keyframe;
	// renderers clamp instead.
	if got := snap.At(20, 70); got.Char != "x" {
		t.Errorf("At(20,70).Char = %q, want x", got.Char)
	}

	if s.Apply(protocol.PtySize{Rows: 10, Cols: 40}) {
		t.Error("Apply(same pty_size) = true, want false")
	}
}

// TestApplyIgnoresNonGridMessages tests that informational frames do not
// touch state.
func TestApplyIgnoresNonGridMessages(t *testing.T) {
	s := NewStore(nil)
	s.Apply(keyframe(5, 5, protocol.CursorPos{}, false, cellAt(0, 0, "a")))

	if s.Apply(protocol.RawOutput{Data: []byte("hi")}) {
		t.Error("Apply(output) = true, want false")
	}
	if s.Apply(protocol.ErrorMessage{Message: "boom"}) {
		t.Error("Apply(error) = true, want false")
	}
	if got := s.State().At(0, 0); got.Char != "a" {
		t.Errorf("At(0,0).Char = %q, want a", got.Char)
	}
}

// TestSubscribe tests change notification and cancellation.
func TestSubscribe(t *testing.T) {
	s := NewStore(nil)
	calls := 0
	cancel := s.Subscribe(func() { calls++ })

	s.Apply(keyframe(5, 5, protocol.CursorPos{}, false, cellAt(0, 0, "a")))
	if calls != 1 {
		t.Fatalf("calls = %d after keyframe, want 1", calls)
	}

	// An unchanged apply does not notify.
	s.Apply(protocol.PtySize{Rows: 5, Cols: 5})
	if calls != 1 {
		t.Fatalf("calls = %d after no-op, want 1", calls)
	}

	cancel()
	s.Apply(protocol.Diff{Changes: []protocol.CellUpdate{cellAt(0, 0, "b")}})
	if calls != 1 {
		t.Errorf("calls = %d after cancel, want 1", calls)
	}
}

// TestReset tests explicit store reset.
func TestReset(t *testing.T) {
	s := NewStore(nil)
	s.Apply(keyframe(5, 5, protocol.CursorPos{Row: 1, Col: 1}, true, cellAt(0, 0, "a")))

	s.Reset()
	snap := s.State()
	if snap.Rows != 0 || snap.Cols != 0 || len(snap.Cells) != 0 {
		t.Errorf("State() after reset = %+v, want empty", snap)
	}
	if snap.Cursor != (Cursor{}) {
		t.Errorf("Cursor after reset = %+v, want zero", snap.Cursor)
	}
}

// TestSnapshotIsolation tests that snapshots do not alias store state.
func TestSnapshotIsolation(t *testing.T) {
	s := NewStore(nil)
	s.Apply(keyframe(5, 5, protocol.CursorPos{}, false, cellAt(0, 0, "a")))

	snap := s.State()
	snap.Cells[Coord{Row: 0, Col: 0}] = Cell{Char: "mutated"}

	if got := s.State().At(0, 0); got.Char != "a" {
		t.Errorf("At(0,0).Char = %q after snapshot mutation, want a", got.Char)
	}
}

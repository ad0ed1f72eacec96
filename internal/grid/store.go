package grid

import (
	"maps"
	"sync"

	"github.com/codemux/cli/internal/protocol"
)

// Coord addresses one cell in the grid.
type Coord struct {
	Row int
	Col int
}

// Cursor is the logical cursor, owned by the store and mutated only by
// Apply.
type Cursor struct {
	Row     int
	Col     int
	Visible bool
}

// Snapshot is an immutable copy of the store's state. Cells is sparse;
// use At for default-filled reads. Coordinates are not validated
// against the size, so renderers must clamp iteration to
// [0,Rows)x[0,Cols).
type Snapshot struct {
	Rows   int
	Cols   int
	Cells  map[Coord]Cell
	Cursor Cursor
}

// At returns the cell at (row, col), or a blank default cell when the
// map has no entry there.
func (s Snapshot) At(row, col int) Cell {
	if c, ok := s.Cells[Coord{Row: row, Col: col}]; ok {
		return c
	}
	return DefaultCell()
}

// Store reconciles decoded server messages onto the mirrored grid. One
// store is created per session and lives until its owner discards it;
// it is emptied only by an explicit Reset, never silently.
type Store struct {
	mu     sync.Mutex
	rows   int
	cols   int
	cells  map[Coord]Cell
	cursor Cursor
	theme  *Theme

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// NewStore creates an empty store. A nil theme selects the built-in
// default.
func NewStore(theme *Theme) *Store {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Store{
		cells: make(map[Coord]Cell),
		theme: theme,
		subs:  make(map[int]func()),
	}
}

// Theme returns the theme cells resolve against.
func (s *Store) Theme() *Theme { return s.theme }

// State returns a snapshot of the current grid.
func (s *Store) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Rows:   s.rows,
		Cols:   s.cols,
		Cells:  maps.Clone(s.cells),
		Cursor: s.cursor,
	}
}

// Subscribe registers fn to run after every Apply that changed state.
// The returned func cancels the subscription.
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Reset empties the store. Intended for explicit caller action only,
// e.g. when the viewer detaches and reattaches to a different session.
func (s *Store) Reset() {
	s.mu.Lock()
	s.rows, s.cols = 0, 0
	s.cells = make(map[Coord]Cell)
	s.cursor = Cursor{}
	s.mu.Unlock()
	s.notify()
}

// Apply performs the mutations implied by msg and reports whether
// anything actually changed, so consumers can skip redundant renders.
// Messages carrying no grid state (raw output, errors, unknown frames)
// are no-ops.
func (s *Store) Apply(msg protocol.ServerMessage) bool {
	s.mu.Lock()
	var changed bool
	switch m := msg.(type) {
	case protocol.Keyframe:
		changed = s.applyKeyframe(m)
	case protocol.Diff:
		changed = s.applyDiff(m)
	case protocol.PtySize:
		changed = s.applySize(m.Rows, m.Cols)
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return changed
}

// applyKeyframe rebuilds the cell map from the authoritative snapshot.
// Replacing the map wholesale (rather than merging into it) keeps
// memory bounded and drops stale cells left outside the bounds when the
// grid shrinks.
func (s *Store) applyKeyframe(m protocol.Keyframe) bool {
	next := make(map[Coord]Cell, len(m.Cells))
	for _, u := range m.Cells {
		next[Coord{Row: u.Row, Col: u.Col}] = MergeDefaults(u.Cell)
	}

	cursor := Cursor{Row: m.Cursor.Row, Col: m.Cursor.Col, Visible: m.CursorVisible}
	if cursor.Visible {
		key := Coord{Row: cursor.Row, Col: cursor.Col}
		cell, ok := next[key]
		if !ok {
			cell = DefaultCell()
		}
		cell.CursorOverlay = true
		next[key] = cell
	}

	changed := s.rows != m.Size.Rows || s.cols != m.Size.Cols ||
		s.cursor != cursor || !maps.Equal(s.cells, next)
	s.rows, s.cols = m.Size.Rows, m.Size.Cols
	s.cells = next
	s.cursor = cursor
	return changed
}

// applyDiff overwrites changed cells wholesale, then reconciles the
// cursor position, visibility, and overlay.
func (s *Store) applyDiff(m protocol.Diff) bool {
	changed := false
	for _, u := range m.Changes {
		key := Coord{Row: u.Row, Col: u.Col}
		cell := MergeDefaults(u.Cell)
		prev, ok := s.cells[key]
		prev.CursorOverlay = false
		if !ok || prev != cell {
			changed = true
		}
		s.cells[key] = cell
	}

	if m.Cursor != nil && (m.Cursor.Row != s.cursor.Row || m.Cursor.Col != s.cursor.Col) {
		s.clearOverlay(Coord{Row: s.cursor.Row, Col: s.cursor.Col})
		s.cursor.Row, s.cursor.Col = m.Cursor.Row, m.Cursor.Col
		changed = true
	}
	if m.CursorVisible != nil && *m.CursorVisible != s.cursor.Visible {
		s.cursor.Visible = *m.CursorVisible
		changed = true
	}

	// Re-assert the overlay invariant at the stored cursor: exactly one
	// overlay cell while visible, zero otherwise. A diff that rewrote
	// the cursor cell would otherwise drop the overlay.
	key := Coord{Row: s.cursor.Row, Col: s.cursor.Col}
	if s.cursor.Visible {
		s.setOverlay(key)
	} else {
		s.clearOverlay(key)
	}
	return changed
}

func (s *Store) applySize(rows, cols int) bool {
	if rows == s.rows && cols == s.cols {
		return false
	}
	// The cell map is intentionally not pruned here; only a keyframe
	// rebuilds it.
	s.rows, s.cols = rows, cols
	return true
}

// setOverlay marks the cell at key as the cursor cell, inserting a
// blank default cell when the map has no entry there.
func (s *Store) setOverlay(key Coord) {
	cell, ok := s.cells[key]
	if !ok {
		cell = DefaultCell()
	}
	cell.CursorOverlay = true
	s.cells[key] = cell
}

// clearOverlay removes the overlay flag at key if it is set there.
func (s *Store) clearOverlay(key Coord) {
	if cell, ok := s.cells[key]; ok && cell.CursorOverlay {
		cell.CursorOverlay = false
		s.cells[key] = cell
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

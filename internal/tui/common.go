// Package tui provides the Bubble Tea session viewer.
//
// The viewer is a thin renderer over the grid store: it clamps its
// iteration to the store's current bounds, resolves cell colors through
// the theme, and forwards local keystrokes to the remote session. All
// grid state lives in internal/grid; the viewer holds only snapshots.
package tui

import (
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// IsInteractive reports whether stdout is a terminal the viewer can
// take over.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// --- Status bar colors ---

var (
	green   = lipgloss.Color("#22C55E")
	amber   = lipgloss.Color("#F59E0B")
	red     = lipgloss.Color("#EF4444")
	dimGray = lipgloss.Color("#9CA3AF")
	white   = lipgloss.Color("#E5E7EB")
)

// --- Status bar styles ---

var (
	// statusStyle renders the whole bottom bar.
	statusStyle = lipgloss.NewStyle().
			Foreground(white).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1)

	// connectedStyle marks the open-connection indicator.
	connectedStyle = lipgloss.NewStyle().Foreground(green).Bold(true)

	// reconnectingStyle marks the retry countdown.
	reconnectingStyle = lipgloss.NewStyle().Foreground(amber).Bold(true)

	// lostStyle marks exhausted and closed connections.
	lostStyle = lipgloss.NewStyle().Foreground(red).Bold(true)

	// hintStyle renders keybinding hints.
	hintStyle = lipgloss.NewStyle().Foreground(dimGray)
)

func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(amber)
	return s
}

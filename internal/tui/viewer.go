package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/codemux/cli/internal/grid"
	"github.com/codemux/cli/internal/protocol"
	"github.com/codemux/cli/internal/session"
	"github.com/codemux/cli/internal/transport"
)

// scrollLines is how many lines one wheel notch scrolls remotely.
const scrollLines = 3

// Options configures the viewer.
type Options struct {
	// SessionID is shown in the status bar.
	SessionID string

	// MaxAttempts is the transport's retry budget, shown next to the
	// current attempt while reconnecting.
	MaxAttempts int
}

// Messages delivered into the Bubble Tea loop from session callbacks.
type (
	gridChangedMsg struct{}
	connStateMsg   transport.State
	serverErrMsg   string
	tickMsg        time.Time
)

// Run attaches the viewer to a session and blocks until the user
// detaches or the program fails. It connects the session itself so no
// frame arrives before the subscriptions below are in place.
func Run(ctx context.Context, sess *session.Session, opts Options) error {
	m := newViewerModel(ctx, sess, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	cancel := sess.Store().Subscribe(func() { p.Send(gridChangedMsg{}) })
	defer cancel()
	sess.OnStateChange(func(st transport.State) { p.Send(connStateMsg(st)) })
	sess.OnServerError(func(message string) { p.Send(serverErrMsg(message)) })

	_, err := p.Run()
	return err
}

// styleKey identifies one resolved cell appearance for style caching.
type styleKey struct {
	fg, bg                  grid.RGBColor
	bold, italic, underline bool
}

type viewerModel struct {
	ctx  context.Context
	sess *session.Session
	opts Options

	snap      grid.Snapshot
	connState transport.State
	serverErr string
	flash     string
	flashTTL  time.Time

	width   int
	height  int
	spinner spinner.Model

	// styles caches one lipgloss style per distinct cell appearance;
	// a typical frame repeats a handful of them across thousands of
	// cells.
	styles map[styleKey]lipgloss.Style
}

func newViewerModel(ctx context.Context, sess *session.Session, opts Options) viewerModel {
	return viewerModel{
		ctx:       ctx,
		sess:      sess,
		opts:      opts,
		snap:      sess.Store().State(),
		connState: sess.ConnectionState(),
		spinner:   newSpinner(),
		styles:    make(map[styleKey]lipgloss.Style),
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m viewerModel) Init() tea.Cmd {
	connect := func() tea.Msg {
		m.sess.Connect(m.ctx)
		return nil
	}
	return tea.Batch(m.spinner.Tick, tickCmd(), connect)
}

func (m viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case gridChangedMsg:
		m.snap = m.sess.Store().State()
		return m, nil

	case connStateMsg:
		m.connState = transport.State(msg)
		if m.connState.Phase == transport.PhaseOpen {
			m.serverErr = ""
		}
		return m, nil

	case serverErrMsg:
		m.serverErr = string(msg)
		return m, nil

	case tickMsg:
		// Drives the reconnect countdown and expires flash notices.
		if m.flash != "" && time.Now().After(m.flashTTL) {
			m.flash = ""
		}
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			_ = m.sess.SendScroll(protocol.ScrollUp, scrollLines)
		case tea.MouseButtonWheelDown:
			_ = m.sess.SendScroll(protocol.ScrollDown, scrollLines)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m viewerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+q":
		m.sess.Close()
		return m, tea.Quit
	case "ctrl+y":
		m.copyScreen()
		return m, nil
	}

	if m.disconnected() {
		// Keys are not forwarded while disconnected; they would be
		// dropped by the transport anyway.
		switch msg.String() {
		case "r":
			m.sess.Reconnect()
		case "q":
			m.sess.Close()
			return m, tea.Quit
		}
		return m, nil
	}

	for _, k := range ToKeys(msg) {
		// Drops while briefly disconnected are intentional; the store
		// resyncs via keyframe on reopen.
		_ = m.sess.SendKey(k.Code, k.Modifiers)
	}
	return m, nil
}

func (m viewerModel) disconnected() bool {
	return m.connState.Phase == transport.PhaseExhausted ||
		m.connState.Phase == transport.PhaseClosed
}

// copyScreen puts the visible screen text on the clipboard.
func (m *viewerModel) copyScreen() {
	var b strings.Builder
	for row := 0; row < m.snap.Rows; row++ {
		var line strings.Builder
		for col := 0; col < m.snap.Cols; col++ {
			line.WriteString(m.snap.At(row, col).Char)
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteByte('\n')
	}
	if err := clipboard.WriteAll(b.String()); err != nil {
		m.setFlash("clipboard unavailable")
		return
	}
	m.setFlash("screen copied")
}

func (m *viewerModel) setFlash(text string) {
	m.flash = text
	m.flashTTL = time.Now().Add(2 * time.Second)
}

func (m viewerModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	gridHeight := m.height - 1
	var b strings.Builder
	b.WriteString(m.renderGrid(gridHeight))
	b.WriteString(m.statusBar())
	return b.String()
}

// renderGrid renders the store snapshot clamped to the grid bounds and
// the local window. The store does not validate coordinates, so the
// clamp here is what keeps stray cells out of view.
func (m viewerModel) renderGrid(maxRows int) string {
	theme := m.sess.Store().Theme()
	rows := min(m.snap.Rows, maxRows)
	cols := min(m.snap.Cols, m.width)

	var b strings.Builder
	for row := 0; row < maxRows; row++ {
		if row >= rows {
			b.WriteByte('\n')
			continue
		}
		var run strings.Builder
		var runKey styleKey
		flush := func() {
			if run.Len() > 0 {
				b.WriteString(m.style(runKey).Render(run.String()))
				run.Reset()
			}
		}
		for col := 0; col < cols; col++ {
			cell := m.snap.At(row, col)
			fg, bg := grid.CellColors(cell, theme)
			key := styleKey{
				fg: fg, bg: bg,
				bold:      cell.Bold,
				italic:    cell.Italic,
				underline: cell.Underline,
			}
			if key != runKey {
				flush()
				runKey = key
			}
			run.WriteString(cell.Char)
		}
		flush()
		b.WriteByte('\n')
	}
	return b.String()
}

func (m viewerModel) style(key styleKey) lipgloss.Style {
	if st, ok := m.styles[key]; ok {
		return st
	}
	st := lipgloss.NewStyle().
		Foreground(lipgloss.Color(key.fg.Hex())).
		Background(lipgloss.Color(key.bg.Hex())).
		Bold(key.bold).
		Italic(key.italic).
		Underline(key.underline)
	m.styles[key] = st
	return st
}

func (m viewerModel) statusBar() string {
	var status string
	switch m.connState.Phase {
	case transport.PhaseConnecting:
		status = m.spinner.View() + " connecting"
	case transport.PhaseOpen:
		status = connectedStyle.Render("● connected")
	case transport.PhaseReconnecting:
		secs := int(m.connState.RetryIn(time.Now()).Round(time.Second) / time.Second)
		status = reconnectingStyle.Render(fmt.Sprintf(
			"◌ reconnecting %d/%d in %ds", m.connState.Attempt, m.opts.MaxAttempts, secs))
	case transport.PhaseExhausted:
		status = lostStyle.Render("✗ connection lost") + hintStyle.Render("  r retry · q quit")
	case transport.PhaseClosed:
		status = lostStyle.Render("detached") + hintStyle.Render("  r reattach · q quit")
	}

	left := fmt.Sprintf("%s  %s", m.opts.SessionID, status)
	if m.serverErr != "" {
		left += "  " + lostStyle.Render("server: "+m.serverErr)
	}
	if m.flash != "" {
		left += "  " + hintStyle.Render(m.flash)
	}
	right := fmt.Sprintf("%dx%d", m.snap.Cols, m.snap.Rows)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return statusStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

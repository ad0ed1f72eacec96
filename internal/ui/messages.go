// Package ui provides message printing utilities.
package ui

import (
	"fmt"
)

// quietMode suppresses non-essential output when --quiet is set.
var quietMode bool

// SetQuietMode toggles suppression of non-essential output.
func SetQuietMode(quiet bool) {
	quietMode = quiet
}

// PrintSuccess prints a success message.
func PrintSuccess(format string, args ...any) {
	if quietMode {
		return
	}
	fmt.Println(SuccessStyle.Render("✓ " + fmt.Sprintf(format, args...)))
}

// PrintError prints an error message. Errors print even in quiet mode.
func PrintError(format string, args ...any) {
	fmt.Println(ErrorStyle.Render("✗ " + fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message.
func PrintWarning(format string, args ...any) {
	if quietMode {
		return
	}
	fmt.Println(WarningStyle.Render("⚠ " + fmt.Sprintf(format, args...)))
}

// PrintInfo prints an informational message.
func PrintInfo(format string, args ...any) {
	if quietMode {
		return
	}
	fmt.Println(InfoStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintDim prints a dimmed secondary message.
func PrintDim(format string, args ...any) {
	if quietMode {
		return
	}
	fmt.Println(DimStyle.Render(fmt.Sprintf(format, args...)))
}

// GetHelpText returns the long help shown by `codemux --help`.
func GetHelpText() string {
	return `codemux mirrors a remote terminal session in your local terminal.

It attaches to a codemux server over websocket, renders the session's
character grid live, and keeps the mirror in sync across network
interruptions with automatic reconnection.

Quick start:

  codemux attach <session-id>              attach to a session
  codemux attach <session-id> --host dev1  attach on another host
  codemux send <session-id> "make test"    type a command and press enter

Inside the viewer, ctrl+q detaches and ctrl+y copies the visible screen.`
}

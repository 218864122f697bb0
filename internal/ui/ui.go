// Package ui holds terminal output styles shared by the sd commands.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Colorize reports whether styled output should be emitted. It is false
// when stdout is not a terminal or NO_COLOR is set.
func Colorize() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Interactive reports whether stdin is a terminal, so commands know
// whether prompting is possible.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func render(s lipgloss.Style, text string) string {
	if !Colorize() {
		return text
	}
	return s.Render(text)
}

// Pass styles text indicating success.
func Pass(text string) string { return render(passStyle, text) }

// Warn styles text indicating a non-fatal problem.
func Warn(text string) string { return render(warnStyle, text) }

// Err styles text indicating failure.
func Err(text string) string { return render(errStyle, text) }

// Accent styles headings and identifiers.
func Accent(text string) string { return render(accentStyle, text) }

// Dim styles secondary detail.
func Dim(text string) string { return render(dimStyle, text) }

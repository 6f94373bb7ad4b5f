package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// padRight pads s to width terminal cells.
func padRight(s string, width int) string {
	vw := lipgloss.Width(s)
	if vw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-vw)
}

func header(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf(format, args...)))
}

// summary prints a count line followed by the names it covers.
func summary(w io.Writer, style lipgloss.Style, label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(w, "%s: %d\n", style.Render(label), len(names))
	for _, name := range names {
		fmt.Fprintf(w, "  - %s\n", name)
	}
}

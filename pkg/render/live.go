package render

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const defaultWidth = 80

// Terminal reports whether f is an interactive terminal and how wide it is.
func Terminal(f *os.File) (interactive bool, width int) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return false, defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return true, defaultWidth
	}
	return true, w
}

// Live redraws a block of text in place. Each Draw replaces the previous
// frame. It is only meant for interactive terminals.
type Live struct {
	mu    sync.Mutex
	out   *termenv.Output
	width int
	rows  int
}

func NewLive(w io.Writer, width int, opts ...termenv.OutputOption) *Live {
	if width <= 0 {
		width = defaultWidth
	}
	return &Live{out: termenv.NewOutput(w, opts...), width: width}
}

// Start hides the cursor for the duration of the redraws.
func (l *Live) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.HideCursor()
}

func (l *Live) Draw(frame string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clearLocked()
	l.out.WriteString(frame)
	l.rows = Rows(frame, l.width)
}

// Clear erases the current frame.
func (l *Live) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clearLocked()
}

// Stop erases the frame and shows the cursor again.
func (l *Live) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clearLocked()
	l.out.ShowCursor()
}

func (l *Live) clearLocked() {
	if l.rows == 0 {
		return
	}
	l.out.ClearLines(l.rows - 1)
	l.out.WriteString("\r")
	l.rows = 0
}

// Rows is the number of terminal rows text covers at the given width. The
// cursor ends on the last row, so an empty frame still occupies one.
func Rows(text string, width int) int {
	if width <= 0 {
		width = defaultWidth
	}
	rows := 0
	for _, line := range strings.Split(text, "\n") {
		w := lipgloss.Width(line)
		if w == 0 {
			rows++
			continue
		}
		rows += (w + width - 1) / width
	}
	return rows
}

// Package console renders benchmark progress for a human at a terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/appnet-org/tabbench/pkg/bench"
	"github.com/appnet-org/tabbench/pkg/registry"
)

const clearLine = "\x1b[K"

var (
	colorAccent  = lipgloss.Color("#4472C4")
	colorSuccess = lipgloss.Color("#00B050")
	colorWarning = lipgloss.Color("#ED7D31")
	colorError   = lipgloss.Color("#E74C3C")
)

type styles struct {
	banner  lipgloss.Style
	phase   lipgloss.Style
	ok      lipgloss.Style
	warning lipgloss.Style
	failed  lipgloss.Style
	box     lipgloss.Style
}

// Console implements bench.Progress. On a terminal the per-iteration line
// is rewritten in place; elsewhere only completion lines are printed.
type Console struct {
	w        io.Writer
	tty      bool
	st       styles
	inflight bool
}

var _ bench.Progress = (*Console)(nil)

// New returns a console writing to w. Overwriting mode is enabled when w is
// a terminal.
func New(w io.Writer) *Console {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return newConsole(w, tty)
}

func newConsole(w io.Writer, tty bool) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:   w,
		tty: tty,
		st: styles{
			banner:  r.NewStyle().Bold(true).Foreground(colorAccent),
			phase:   r.NewStyle().Bold(true),
			ok:      r.NewStyle().Foreground(colorSuccess),
			warning: r.NewStyle().Foreground(colorWarning),
			failed:  r.NewStyle().Foreground(colorError),
			box:     r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSuccess).Padding(0, 1),
		},
	}
}

func label(p registry.Pair) string {
	return fmt.Sprintf("%s > %s", strings.ToUpper(string(p.Library)), strings.ToUpper(string(p.Format)))
}

// endLine terminates a pending overwritten line.
func (c *Console) endLine() {
	if c.inflight {
		fmt.Fprintln(c.w)
		c.inflight = false
	}
}

func (c *Console) Dataset(name string, sizeBytes int64) {
	c.endLine()
	mb := float64(sizeBytes) / (1024 * 1024)
	fmt.Fprintf(c.w, "\n%s\n", c.st.banner.Render(fmt.Sprintf("DATASET: %s (%.2f MB)", strings.ToUpper(name), mb)))
}

func (c *Console) Iteration(p registry.Pair, i, n int) {
	if !c.tty {
		return
	}
	fmt.Fprintf(c.w, "\r  %s: iteration %d/%d%s", label(p), i, n, clearLine)
	c.inflight = true
}

func (c *Console) Failed(p registry.Pair, i int, err error) {
	c.endLine()
	fmt.Fprintf(c.w, "  %s\n", c.st.failed.Render(fmt.Sprintf("✗ error in %s/%s (iteration %d): %v", p.Library, p.Format, i, err)))
}

func (c *Console) Done(p registry.Pair, warning string) {
	line := "  " + c.st.ok.Render("✓ "+label(p)+": done.")
	if warning != "" {
		line += " " + c.st.warning.Render("[warning: "+warning+"]")
	}
	if c.tty {
		fmt.Fprintf(c.w, "\r%s%s\n", line, clearLine)
	} else {
		fmt.Fprintln(c.w, line)
	}
	c.inflight = false
}

// Phase prints a section banner such as "Writing report ...".
func (c *Console) Phase(msg string) {
	c.endLine()
	fmt.Fprintf(c.w, "\n%s\n", c.st.phase.Render(msg))
}

// Warn prints a one-line notice.
func (c *Console) Warn(msg string) {
	c.endLine()
	fmt.Fprintln(c.w, c.st.warning.Render("! "+msg))
}

// Success prints the closing banner.
func (c *Console) Success(msg string) {
	c.endLine()
	fmt.Fprintf(c.w, "\n%s\n", c.st.box.Render(msg))
}

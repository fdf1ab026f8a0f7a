package shell

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

const separator = "────────────────────────────────────────"

// Presenter writes headings and text to a terminal.
type Presenter struct {
	mu           sync.Mutex
	out          io.Writer
	colorEnabled bool
}

// NewPresenter creates a presenter writing to out.
func NewPresenter(out io.Writer, colorEnabled bool) *Presenter {
	return &Presenter{out: out, colorEnabled: colorEnabled}
}

// Present implements lifecycle.Presenter. A heading is framed by separators.
func (p *Presenter) Present(_ context.Context, heading, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if heading != "" {
		fmt.Fprintln(p.out, p.colorize(separator, color.FgCyan))
		fmt.Fprintln(p.out, p.colorize(heading, color.FgYellow, color.Bold))
		fmt.Fprintln(p.out, p.colorize(separator, color.FgCyan))
	}
	fmt.Fprintln(p.out, strings.TrimRight(body, "\n"))
	if heading != "" {
		fmt.Fprintln(p.out)
	}
}

// Error writes msg in red.
func (p *Presenter) Error(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, p.colorize(msg, color.FgRed))
}

// colorize applies color to text if color is enabled
func (p *Presenter) colorize(text string, attributes ...color.Attribute) string {
	if !p.colorEnabled {
		return text
	}
	c := color.New(attributes...)
	c.EnableColor()
	return c.Sprint(text)
}

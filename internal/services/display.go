package services

import (
	"fmt"
	"io"
	"sync"

	"charm.land/lipgloss/v2"
)

type DisplayOptions struct {
	Width     int
	TextColor string
	// ClearScreen redraws from the top-left corner on every render.
	ClearScreen bool
}

// TerminalDisplay renders the booth's main and banner messages as a framed
// card on a terminal.
type TerminalDisplay struct {
	mu     sync.Mutex
	out    io.Writer
	clear  bool
	frame  lipgloss.Style
	main   lipgloss.Style
	banner lipgloss.Style
	last   string
}

func NewTerminalDisplay(out io.Writer, opts DisplayOptions) *TerminalDisplay {
	if opts.Width <= 0 {
		opts.Width = 48
	}
	fg := lipgloss.Color("#2E415F")
	if opts.TextColor != "" {
		fg = lipgloss.Color(opts.TextColor)
	}
	return &TerminalDisplay{
		out:   out,
		clear: opts.ClearScreen,
		frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(fg).
			Padding(1, 2),
		main: lipgloss.NewStyle().
			Bold(true).
			Foreground(fg).
			Width(opts.Width).
			Align(lipgloss.Center),
		banner: lipgloss.NewStyle().
			Faint(true).
			Width(opts.Width).
			Align(lipgloss.Center),
	}
}

// Render draws the card. Repeating the previous frame is a no-op.
func (d *TerminalDisplay) Render(main, banner string) {
	body := lipgloss.JoinVertical(lipgloss.Center,
		d.main.Render(main),
		"",
		d.banner.Render(banner),
	)
	view := d.frame.Render(body)

	d.mu.Lock()
	defer d.mu.Unlock()
	if view == d.last {
		return
	}
	d.last = view
	if d.clear {
		fmt.Fprint(d.out, "\x1b[H\x1b[2J")
	}
	fmt.Fprintln(d.out, view)
}

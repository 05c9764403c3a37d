package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the cogflow banner to w, coloured when w is a terminal.
func PrintBanner(w io.Writer) {
	lines := []struct{ text, color string }{
		{"                   __ _               ", "#818cf8"},
		{"   ___ ___   __ _ / _| | _____      __", "#a78bfa"},
		{"  / __/ _ \\ / _` | |_| |/ _ \\ \\ /\\ / /", "#c084fc"},
		{" | (_| (_) | (_| |  _| | (_) \\ V  V / ", "#e879f9"},
		{"  \\___\\___/ \\__, |_| |_|\\___/ \\_/\\_/  ", "#f472b6"},
		{"            |___/                     ", "#fb7185"},
	}

	p := termenv.Ascii
	if IsTerminal(w) {
		p = termenv.ColorProfile()
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

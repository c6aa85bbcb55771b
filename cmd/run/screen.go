package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/arm-runtime/errors"
	"github.com/wippyai/arm-runtime/platform"
)

// terminalScreen draws frames with half-block characters, two pixel rows
// per text row, scaled down to fit the terminal.
type terminalScreen struct {
	out    io.Writer
	fd     int
	width  uint32
	height uint32
	frames int
}

func newTerminalScreen(width, height uint32, out *os.File) *terminalScreen {
	return &terminalScreen{out: out, fd: int(out.Fd()), width: width, height: height}
}

func (s *terminalScreen) Size() (uint32, uint32) { return s.width, s.height }

func (s *terminalScreen) Repaint(frame *platform.Canvas) error {
	if frame.Width != s.width || frame.Height != s.height {
		return errors.InvalidInput(errors.PhaseHost,
			fmt.Sprintf("frame %dx%d does not match screen %dx%d", frame.Width, frame.Height, s.width, s.height))
	}
	s.frames++
	if !term.IsTerminal(s.fd) {
		_, err := fmt.Fprintf(s.out, "frame %d (%dx%d)\n", s.frames, frame.Width, frame.Height)
		return err
	}

	cols, rows, err := term.GetSize(s.fd)
	if err != nil || cols <= 0 || rows <= 1 {
		cols, rows = 80, 24
	}
	_, err = io.WriteString(s.out, "\x1b[H"+renderCanvas(frame, uint32(cols), uint32(rows-1)*2))
	return err
}

// renderCanvas samples frame into at most maxW x maxH pixels.
func renderCanvas(frame *platform.Canvas, maxW, maxH uint32) string {
	step := uint32(1)
	for frame.Width/step > maxW || frame.Height/step > maxH {
		step++
	}
	w, h := frame.Width/step, frame.Height/step

	var b strings.Builder
	for y := uint32(0); y < h; y += 2 {
		for x := uint32(0); x < w; x++ {
			top := frame.At(x*step, y*step)
			bottom := frame.At(x*step, (y+1)*step)
			b.WriteString(lipgloss.NewStyle().
				Foreground(rgb(top)).
				Background(rgb(bottom)).
				Render("▀"))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func rgb(argb uint32) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%06x", argb&0xffffff))
}

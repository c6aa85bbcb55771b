package platform

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/wippyai/arm-runtime/errors"
)

// Canvas is a 32-bit ARGB pixel buffer in row-major order.
type Canvas struct {
	Pix    []uint32
	Width  uint32
	Height uint32
}

// NewCanvas returns a cleared canvas.
func NewCanvas(width, height uint32) *Canvas {
	return &Canvas{Width: width, Height: height, Pix: make([]uint32, int(width)*int(height))}
}

// DecodeCanvas decodes a PNG, GIF or JPEG image into a canvas.
func DecodeCanvas(data []byte) (*Canvas, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInvalidInput, err, "decode image")
	}
	b := img.Bounds()
	c := NewCanvas(uint32(b.Dx()), uint32(b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			n := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			c.Pix[y*int(c.Width)+x] = ARGB(n.A, n.R, n.G, n.B)
		}
	}
	return c, nil
}

// ARGB packs a color.
func ARGB(a, r, g, b uint8) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// At returns the pixel at (x, y), or 0 outside the canvas.
func (c *Canvas) At(x, y uint32) uint32 {
	if x >= c.Width || y >= c.Height {
		return 0
	}
	return c.Pix[y*c.Width+x]
}

// Set writes one pixel. Writes outside the canvas are ignored.
func (c *Canvas) Set(x, y, argb uint32) {
	if x >= c.Width || y >= c.Height {
		return
	}
	c.Pix[y*c.Width+x] = argb
}

// Fill paints a rectangle, clipped to the canvas.
func (c *Canvas) Fill(x, y, w, h, argb uint32) {
	x1 := min(uint64(x)+uint64(w), uint64(c.Width))
	y1 := min(uint64(y)+uint64(h), uint64(c.Height))
	for j := uint64(y); j < y1; j++ {
		row := j * uint64(c.Width)
		for i := uint64(x); i < x1; i++ {
			c.Pix[row+i] = argb
		}
	}
}

// Draw copies a w×h block from src at (sx, sy) to (dx, dy).
func (c *Canvas) Draw(dx, dy, w, h uint32, src *Canvas, sx, sy uint32) error {
	if uint64(sx)+uint64(w) > uint64(src.Width) || uint64(sy)+uint64(h) > uint64(src.Height) {
		return errors.InvalidInput(errors.PhaseHost,
			fmt.Sprintf("source block %dx%d at (%d,%d) outside %dx%d canvas", w, h, sx, sy, src.Width, src.Height))
	}
	return c.DrawPixels(dx, dy, w, h, src.Pix, sx, sy, src.Width)
}

// DrawPixels copies a w×h block from a raw pixel buffer with stride
// lineSize. Both rectangles must lie fully inside their buffers.
func (c *Canvas) DrawPixels(dx, dy, w, h uint32, buf []uint32, sx, sy, lineSize uint32) error {
	if w == 0 || h == 0 {
		return nil
	}
	if uint64(dx)+uint64(w) > uint64(c.Width) || uint64(dy)+uint64(h) > uint64(c.Height) {
		return errors.InvalidInput(errors.PhaseHost,
			fmt.Sprintf("destination block %dx%d at (%d,%d) outside %dx%d canvas", w, h, dx, dy, c.Width, c.Height))
	}
	last := (uint64(sy)+uint64(h)-1)*uint64(lineSize) + uint64(sx) + uint64(w)
	if uint64(sx)+uint64(w) > uint64(lineSize) || last > uint64(len(buf)) {
		return errors.InvalidInput(errors.PhaseHost,
			fmt.Sprintf("source block %dx%d at (%d,%d) outside buffer of %d pixels", w, h, sx, sy, len(buf)))
	}
	for j := uint32(0); j < h; j++ {
		d := (dy+j)*c.Width + dx
		s := (sy+j)*lineSize + sx
		copy(c.Pix[d:d+w], buf[s:s+w])
	}
	return nil
}

// Clone returns an independent copy.
func (c *Canvas) Clone() *Canvas {
	out := &Canvas{Width: c.Width, Height: c.Height, Pix: make([]uint32, len(c.Pix))}
	copy(out.Pix, c.Pix)
	return out
}

// Drop releases the pixel buffer.
func (c *Canvas) Drop() error {
	c.Pix = nil
	return nil
}

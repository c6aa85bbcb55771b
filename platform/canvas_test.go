package platform

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/arm-runtime/errors"
)

func TestCanvas_FillClips(t *testing.T) {
	c := NewCanvas(4, 3)
	c.Fill(2, 1, 10, 10, 0xff00ff00)

	for y := uint32(0); y < 3; y++ {
		for x := uint32(0); x < 4; x++ {
			want := uint32(0)
			if x >= 2 && y >= 1 {
				want = 0xff00ff00
			}
			assert.Equal(t, want, c.At(x, y), "pixel (%d,%d)", x, y)
		}
	}
	assert.Zero(t, c.At(9, 9))
}

func TestCanvas_Draw(t *testing.T) {
	src := NewCanvas(3, 3)
	for i := range src.Pix {
		src.Pix[i] = uint32(i + 1)
	}
	dst := NewCanvas(4, 4)

	require.NoError(t, dst.Draw(1, 2, 2, 2, src, 1, 1))
	assert.Equal(t, uint32(5), dst.At(1, 2))
	assert.Equal(t, uint32(6), dst.At(2, 2))
	assert.Equal(t, uint32(8), dst.At(1, 3))
	assert.Equal(t, uint32(9), dst.At(2, 3))
	assert.Zero(t, dst.At(0, 0))

	err := dst.Draw(3, 3, 2, 2, src, 0, 0)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
	err = dst.Draw(0, 0, 2, 2, src, 2, 2)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
	err = dst.DrawPixels(0, 0, 2, 2, []uint32{1, 2, 3}, 0, 0, 2)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestDecodeCanvas(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xff})
	img.Set(1, 0, color.NRGBA{R: 0xff, A: 0x80})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	c, err := DecodeCanvas(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), c.Width)
	assert.Equal(t, uint32(1), c.Height)
	assert.Equal(t, uint32(0xff112233), c.At(0, 0))
	assert.Equal(t, uint32(0x80ff0000), c.At(1, 0))

	_, err = DecodeCanvas([]byte("not an image"))
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestMemoryScreen(t *testing.T) {
	s := NewMemoryScreen(2, 2)
	frame := NewCanvas(2, 2)
	frame.Fill(0, 0, 2, 2, 7)

	require.NoError(t, s.Repaint(frame))
	frame.Fill(0, 0, 2, 2, 9)
	assert.Equal(t, uint32(7), s.Last().At(1, 1), "repaint keeps a copy")
	assert.Equal(t, 1, s.Frames())

	err := s.Repaint(NewCanvas(3, 3))
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

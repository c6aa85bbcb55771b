package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/arm-runtime/errors"
	"github.com/wippyai/arm-runtime/platform"
	"github.com/wippyai/arm-runtime/runtime"
)

func TestParseWord(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"0", 0},
		{"42", 42},
		{"0x10000", 0x10000},
		{"0x0001_0000", 0x10000},
		{"0o17", 15},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWord(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseWord("0x1_0000_0000")
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
	_, err = parseWord("entry")
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestEntryPoint(t *testing.T) {
	img := &runtime.Image{Name: "app.bin", Base: 0x10000, Size: 0x1000}
	f := imageFlags{entry: "0x20", thumb: true, args: []string{"1", "0xff"}}

	pc, args, err := f.entryPoint(img)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x10021), pc)
	assert.Equal(t, []uint32{1, 0xff}, args)
}

func TestRenderCanvas_Downsamples(t *testing.T) {
	c := platform.NewCanvas(8, 8)
	c.Fill(0, 0, 8, 8, platform.ARGB(0xff, 0x12, 0x34, 0x56))

	out := renderCanvas(c, 4, 4)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Len(t, lines, 2)
	for _, l := range lines {
		assert.Equal(t, 4, strings.Count(l, "▀"))
	}
}

func TestTerminalScreen_RejectsWrongSize(t *testing.T) {
	s := &terminalScreen{out: &strings.Builder{}, fd: -1, width: 4, height: 4}
	err := s.Repaint(platform.NewCanvas(2, 2))
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

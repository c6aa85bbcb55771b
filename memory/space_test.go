package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/arm-runtime/errors"
)

func TestSpace_RawRoundTrip(t *testing.T) {
	s := New(0x1000)

	data := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}
	require.NoError(t, s.Write(0x10, data))

	got, err := s.Read(0x10, uint32(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Read returns a copy.
	got[0] = 0
	again, err := s.Read(0x10, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0xde), again[0])
}

func TestSpace_OutOfBoundsLeavesMemoryUnchanged(t *testing.T) {
	s := New(0x100)
	require.NoError(t, s.Write(0xf8, []byte{1, 2, 3, 4, 5, 6, 7, 8}))

	tests := []struct {
		name string
		op   func() error
	}{
		{"write straddling end", func() error { return s.Write(0xfc, []byte{9, 9, 9, 9, 9}) }},
		{"write past end", func() error { return s.Write(0x100, []byte{9}) }},
		{"u64 straddling end", func() error { return s.WriteU64(0xfc, ^uint64(0)) }},
		{"u32 at wrap", func() error { return s.WriteU32(0xfffffffe, 1) }},
		{"read straddling end", func() error { _, err := s.Read(0xff, 2); return err }},
		{"read u16 past end", func() error { _, err := s.ReadU16(0xff); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindOutOfBounds))

			tail, err := s.Read(0xf8, 8)
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, tail)
		})
	}
}

func TestSpace_LittleEndian(t *testing.T) {
	s := New(0x100)

	require.NoError(t, s.WriteU32(0, 0x11223344))
	raw, err := s.Read(0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, raw)

	require.NoError(t, s.WriteU64(8, 0x0102030405060708))
	lo, err := s.ReadU32(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x05060708), lo)

	h, err := s.ReadU16(10)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0506), h)

	require.NoError(t, s.WriteU8(0x20, 0x7f))
	b, err := s.ReadU8(0x20)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x7f), b)
}

func TestSpace_Map(t *testing.T) {
	s := New(0x10000)
	require.NoError(t, s.WriteU32(0x1000, 0xffffffff))

	require.NoError(t, s.MapNamed("image", 0x1000, 0x100))
	v, err := s.ReadU32(0x1000)
	require.NoError(t, err)
	assert.Zero(t, v, "map zero-fills")

	require.NoError(t, s.Map(0x4000, 0x1000))

	err = s.Map(0x10f0, 0x20)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

	err = s.Map(0xff00, 0x200)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindOutOfBounds))

	regions := s.Regions()
	require.Len(t, regions, 2)
	assert.Equal(t, uint32(0x1000), regions[0].Base)
	assert.Equal(t, "image", regions[0].Name)
	assert.Equal(t, uint32(0x4000), regions[1].Base)

	r, ok := s.RegionAt(0x4800)
	require.True(t, ok)
	assert.Equal(t, uint32(0x4000), r.Base)

	_, ok = s.RegionAt(0x2000)
	assert.False(t, ok)
}

func TestSpace_CString(t *testing.T) {
	s := New(0x100)

	require.NoError(t, s.WriteCString(0x10, "WIPI"))
	str, err := s.ReadCString(0x10, 64)
	require.NoError(t, err)
	assert.Equal(t, "WIPI", str)

	require.NoError(t, s.Write(0xfc, []byte{'a', 'b', 'c', 'd'}))
	_, err = s.ReadCString(0xfc, 64)
	assert.True(t, errors.IsKind(err, errors.KindOutOfBounds))
}

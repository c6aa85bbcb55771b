package heap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/arm-runtime/errors"
)

func TestAlloc_FirstFit(t *testing.T) {
	h := New(0x1000, 0x100)

	a, err := h.Alloc(0x10)
	require.NoError(t, err)
	b, err := h.Alloc(3)
	require.NoError(t, err)
	c, err := h.Alloc(0)
	require.NoError(t, err)

	assert.Equal(t, uint32(0x1000), a)
	assert.Equal(t, uint32(0x1010), b)
	assert.Equal(t, uint32(0x1018), c, "zero-size allocations take one unit")
	assert.Equal(t, uint32(0x20), h.InUse())

	require.NoError(t, h.Free(a))
	d, err := h.Alloc(8)
	require.NoError(t, err)
	assert.Equal(t, a, d, "lowest fitting hole is reused")
}

func TestAlloc_Exhausted(t *testing.T) {
	h := New(0x1000, 0x40)
	_, err := h.Alloc(0x40)
	require.NoError(t, err)

	_, err = h.Alloc(1)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAllocation))
	assert.Zero(t, h.Available())
}

func TestFree_Invalid(t *testing.T) {
	h := New(0x1000, 0x100)
	p, err := h.Alloc(0x20)
	require.NoError(t, err)

	tests := []struct {
		name string
		addr uint32
	}{
		{"never allocated", 0x1080},
		{"interior address", p + 8},
		{"outside heap", 0x10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Free(tt.addr)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindAllocation))
		})
	}

	require.NoError(t, h.Free(p))
	err = h.Free(p)
	require.Error(t, err, "double free")
	assert.True(t, errors.IsKind(err, errors.KindAllocation))
}

func TestFree_Coalesces(t *testing.T) {
	h := New(0x1000, 0x100)
	a, _ := h.Alloc(0x40)
	b, _ := h.Alloc(0x40)
	c, _ := h.Alloc(0x40)

	require.NoError(t, h.Free(a))
	require.NoError(t, h.Free(c))
	require.NoError(t, h.Free(b))

	blocks := h.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, Block{Addr: 0x1000, Size: 0x100}, blocks[0])

	whole, err := h.Alloc(0x100)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), whole)
}

func TestAlloc_NeverOverlaps(t *testing.T) {
	h := New(0x10000, 0x4000)
	rng := rand.New(rand.NewSource(7))
	live := map[uint32]uint32{}

	for i := 0; i < 2000; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			for addr := range live {
				require.NoError(t, h.Free(addr))
				delete(live, addr)
				break
			}
			continue
		}
		size := uint32(rng.Intn(200))
		addr, err := h.Alloc(size)
		if err != nil {
			continue
		}
		got, ok := h.SizeOf(addr)
		require.True(t, ok)
		require.GreaterOrEqual(t, got, size)
		live[addr] = got
	}

	blocks := h.Blocks()
	next := uint64(h.Base())
	for i, b := range blocks {
		assert.Equal(t, next, uint64(b.Addr), "blocks tile the range")
		next = b.End()
		if i > 0 {
			assert.False(t, !b.Used && !blocks[i-1].Used, "free neighbours are merged")
		}
		if b.Used {
			assert.Equal(t, live[b.Addr], b.Size)
		}
	}
	assert.Equal(t, uint64(h.Base())+uint64(h.Size()), next)
}

func TestNew_AlignsRange(t *testing.T) {
	h := New(0x1003, 0x100)
	assert.Equal(t, uint32(0x1008), h.Base())
	assert.Equal(t, uint32(0xf8), h.Size())
}

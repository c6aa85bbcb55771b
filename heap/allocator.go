package heap

import (
	"sort"

	armruntime "github.com/wippyai/arm-runtime"
	"github.com/wippyai/arm-runtime/errors"
)

// Align is the allocation granularity in bytes.
const Align = 8

var _ armruntime.Allocator = (*Allocator)(nil)

// Block is a contiguous heap range, either allocated or free.
type Block struct {
	Addr uint32
	Size uint32
	Used bool
}

// End returns the first address past the block.
func (b Block) End() uint64 {
	return uint64(b.Addr) + uint64(b.Size)
}

// Allocator is an address-ordered first-fit allocator over a fixed range.
// Blocks tile the managed range exactly; adjacent free blocks are always merged.
type Allocator struct {
	blocks []Block
	base   uint32
	size   uint32
	inUse  uint32
}

// New manages [base, base+size). The range is trimmed to Align boundaries.
func New(base, size uint32) *Allocator {
	start := alignUp(uint64(base))
	end := (uint64(base) + uint64(size)) &^ (Align - 1)
	a := &Allocator{base: uint32(start)}
	if end > start {
		a.size = uint32(end - start)
		a.blocks = []Block{{Addr: a.base, Size: a.size}}
	}
	return a
}

func alignUp(n uint64) uint64 {
	return (n + Align - 1) &^ (Align - 1)
}

// Alloc reserves size bytes and returns the block address.
func (a *Allocator) Alloc(size uint32) (uint32, error) {
	want := alignUp(uint64(size))
	if want == 0 {
		want = Align
	}

	for i, b := range a.blocks {
		if b.Used || uint64(b.Size) < want {
			continue
		}

		n := uint32(want)
		if b.Size > n {
			rest := Block{Addr: b.Addr + n, Size: b.Size - n}
			a.blocks = append(a.blocks, Block{})
			copy(a.blocks[i+2:], a.blocks[i+1:])
			a.blocks[i+1] = rest
		}
		a.blocks[i] = Block{Addr: b.Addr, Size: n, Used: true}
		a.inUse += n

		debugf("alloc %#x bytes at %#x", n, b.Addr)
		return b.Addr, nil
	}

	return 0, errors.AllocationFailed(errors.PhaseHeap, size)
}

// Free releases the block whose base address is addr.
func (a *Allocator) Free(addr uint32) error {
	i := sort.Search(len(a.blocks), func(i int) bool {
		return a.blocks[i].Addr >= addr
	})
	if i == len(a.blocks) || a.blocks[i].Addr != addr || !a.blocks[i].Used {
		return errors.InvalidFree(addr)
	}

	a.inUse -= a.blocks[i].Size
	a.blocks[i].Used = false

	if i+1 < len(a.blocks) && !a.blocks[i+1].Used {
		a.blocks[i].Size += a.blocks[i+1].Size
		a.blocks = append(a.blocks[:i+1], a.blocks[i+2:]...)
	}
	if i > 0 && !a.blocks[i-1].Used {
		a.blocks[i-1].Size += a.blocks[i].Size
		a.blocks = append(a.blocks[:i], a.blocks[i+1:]...)
	}

	debugf("free %#x", addr)
	return nil
}

// SizeOf returns the size of the live allocation at addr.
func (a *Allocator) SizeOf(addr uint32) (uint32, bool) {
	i := sort.Search(len(a.blocks), func(i int) bool {
		return a.blocks[i].Addr >= addr
	})
	if i < len(a.blocks) && a.blocks[i].Addr == addr && a.blocks[i].Used {
		return a.blocks[i].Size, true
	}
	return 0, false
}

// Blocks returns a snapshot of all blocks in address order.
func (a *Allocator) Blocks() []Block {
	out := make([]Block, len(a.blocks))
	copy(out, a.blocks)
	return out
}

// Base returns the first managed address.
func (a *Allocator) Base() uint32 { return a.base }

// Size returns the managed range in bytes.
func (a *Allocator) Size() uint32 { return a.size }

// InUse returns the allocated byte count.
func (a *Allocator) InUse() uint32 { return a.inUse }

// Available returns the free byte count.
func (a *Allocator) Available() uint32 { return a.size - a.inUse }

package engine

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/wippyai/arm-runtime/errors"
)

// StubSize is the size of one native function slot.
const StubSize = 4

// StubInstruction is the ARM encoding of BX LR written into every slot.
const StubInstruction uint32 = 0xe12fff1e

// Config sizes the guest address space and places the fixed regions.
type Config struct {
	// MemorySize is the capacity of the guest address space.
	MemorySize uint32
	// HeapBase and HeapSize place the guest heap.
	HeapBase uint32
	HeapSize uint32
	// StubBase is where native function slots start; StubCount slots of
	// StubSize bytes are reserved.
	StubBase  uint32
	StubCount uint32
	// StackSize is the stack given to each spawned task.
	StackSize uint32
	// ReturnAddress is the sentinel placed in LR by RunFunction. Reaching
	// it ends the call.
	ReturnAddress uint32
}

// DefaultConfig returns the layout used by the handsets this runtime targets.
func DefaultConfig() Config {
	return Config{
		MemorySize:    0x01000000,
		HeapBase:      0x00400000,
		HeapSize:      0x00A00000,
		StubBase:      0x00F00000,
		StubCount:     0x1000,
		StackSize:     0x1000,
		ReturnAddress: 0x00FFFFF0,
	}
}

func (c Config) stubEnd() uint64 {
	return uint64(c.StubBase) + uint64(c.StubCount)*StubSize
}

// Validate checks that the regions fit in memory and do not overlap.
func (c Config) Validate() error {
	var err error
	bad := func(format string, args ...any) {
		err = multierr.Append(err, errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf(format, args...)))
	}

	if c.MemorySize == 0 {
		bad("memory size is zero")
	}
	if c.HeapSize == 0 {
		bad("heap size is zero")
	}
	if c.StubCount == 0 {
		bad("stub count is zero")
	}
	if c.StackSize == 0 || c.StackSize%8 != 0 {
		bad("stack size %#x must be a non-zero multiple of 8", c.StackSize)
	}
	heapEnd := uint64(c.HeapBase) + uint64(c.HeapSize)
	if heapEnd > uint64(c.MemorySize) {
		bad("heap [%#x, %#x) exceeds memory size %#x", c.HeapBase, heapEnd, c.MemorySize)
	}
	if c.StubBase%StubSize != 0 {
		bad("stub base %#x is not word aligned", c.StubBase)
	}
	if c.stubEnd() > uint64(c.MemorySize) {
		bad("stub region [%#x, %#x) exceeds memory size %#x", c.StubBase, c.stubEnd(), c.MemorySize)
	}
	if uint64(c.StubBase) < heapEnd && c.stubEnd() > uint64(c.HeapBase) {
		bad("stub region [%#x, %#x) overlaps heap [%#x, %#x)", c.StubBase, c.stubEnd(), c.HeapBase, heapEnd)
	}
	ret := uint64(c.ReturnAddress &^ 1)
	if (ret >= uint64(c.HeapBase) && ret < heapEnd) || (ret >= uint64(c.StubBase) && ret < c.stubEnd()) {
		bad("return address %#x lies inside a mapped region", c.ReturnAddress)
	}
	return err
}

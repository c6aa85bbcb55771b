// Package memory implements the guest address space.
//
// A Space is a flat, fixed-capacity byte buffer standing in for device RAM.
// Guest addresses are 32-bit offsets into that buffer. Every access is
// bounds-checked against the capacity; an access that does not fit fails
// with an out_of_bounds error and leaves memory untouched.
//
//	mem := memory.New(16 << 20)
//	if err := mem.Map(0x100000, 0x10000); err != nil {
//	    return err
//	}
//	_ = mem.WriteU32(0x100000, 0xe12fff1e)
//
// Map zero-fills a region and records it so the address layout can be
// inspected; unmapped addresses inside the capacity stay accessible, as on
// the flat RAM of the emulated handsets.
//
// Multi-byte accessors use the little-endian byte order of the guest.
package memory

// Package heap manages the guest heap.
//
// The Allocator hands out 8-byte aligned blocks from a fixed address range
// using address-ordered first fit. Freed blocks coalesce with free
// neighbours; there is no compaction, so placement depends only on the
// sequence of Alloc and Free calls.
//
//	h := heap.New(0x400000, 0xa00000)
//	p, err := h.Alloc(0x1000)
//	...
//	err = h.Free(p)
//
// Free of an address that is not the base of a live allocation fails with
// an allocation error instead of corrupting the block list.
package heap

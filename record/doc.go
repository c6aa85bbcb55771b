// Package record transfers fixed-layout structures between Go and guest memory.
//
// Vendor ABI records (init parameters, executable headers, process blocks)
// are declared as plain Go structs. Each field is written in declaration
// order at its exact width, little-endian, with no padding:
//
//	type InitParam0 struct {
//	    Unk uint32
//	}
//
//	err := record.Write(mem, addr, InitParam0{})   // 4 zero bytes
//	p, err := record.Read[InitParam0](mem, addr)
//
// Supported field types are the signed and unsigned 8, 16, 32 and 64-bit
// integers, fixed-size arrays and nested structs of those. Anything else is
// rejected with an unsupported error naming the field path.
//
// Layouts are compiled once per Go type and cached.
package record

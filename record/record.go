package record

import (
	"encoding/binary"
	"reflect"

	armruntime "github.com/wippyai/arm-runtime"
)

// Size returns the guest size of T in bytes.
func Size[T any]() (uint32, error) {
	ct, err := defaultCompiler.Compile(reflect.TypeFor[T]())
	if err != nil {
		return 0, err
	}
	return ct.Size, nil
}

// Read decodes a T stored at addr.
func Read[T any](mem armruntime.Memory, addr uint32) (T, error) {
	var out T
	ct, err := defaultCompiler.Compile(reflect.TypeFor[T]())
	if err != nil {
		return out, err
	}

	buf, err := mem.Read(addr, ct.Size)
	if err != nil {
		return out, err
	}

	decode(ct, buf, reflect.ValueOf(&out).Elem())
	return out, nil
}

// Write encodes v at addr. Nothing is written if the range is out of bounds.
func Write[T any](mem armruntime.Memory, addr uint32, v T) error {
	ct, err := defaultCompiler.Compile(reflect.TypeFor[T]())
	if err != nil {
		return err
	}
	return mem.Write(addr, Encode(ct, reflect.ValueOf(v)))
}

// Encode flattens v into its guest byte form.
func Encode(ct *CompiledType, v reflect.Value) []byte {
	buf := make([]byte, ct.Size)
	encode(ct, buf, v)
	return buf
}

// Decode fills v from its guest byte form. buf must hold ct.Size bytes.
func Decode(ct *CompiledType, buf []byte, v reflect.Value) {
	decode(ct, buf, v)
}

func encode(ct *CompiledType, buf []byte, v reflect.Value) {
	switch ct.Kind {
	case KindU8:
		buf[0] = uint8(v.Uint())
	case KindS8:
		buf[0] = uint8(v.Int())
	case KindU16:
		binary.LittleEndian.PutUint16(buf, uint16(v.Uint()))
	case KindS16:
		binary.LittleEndian.PutUint16(buf, uint16(v.Int()))
	case KindU32:
		binary.LittleEndian.PutUint32(buf, uint32(v.Uint()))
	case KindS32:
		binary.LittleEndian.PutUint32(buf, uint32(v.Int()))
	case KindU64:
		binary.LittleEndian.PutUint64(buf, v.Uint())
	case KindS64:
		binary.LittleEndian.PutUint64(buf, uint64(v.Int()))
	case KindArray:
		for i := uint32(0); i < ct.Count; i++ {
			off := i * ct.Elem.Size
			encode(ct.Elem, buf[off:off+ct.Elem.Size], v.Index(int(i)))
		}
	case KindStruct:
		for _, f := range ct.Fields {
			encode(f.Type, buf[f.Offset:f.Offset+f.Type.Size], v.Field(f.Index))
		}
	}
}

func decode(ct *CompiledType, buf []byte, v reflect.Value) {
	switch ct.Kind {
	case KindU8:
		v.SetUint(uint64(buf[0]))
	case KindS8:
		v.SetInt(int64(int8(buf[0])))
	case KindU16:
		v.SetUint(uint64(binary.LittleEndian.Uint16(buf)))
	case KindS16:
		v.SetInt(int64(int16(binary.LittleEndian.Uint16(buf))))
	case KindU32:
		v.SetUint(uint64(binary.LittleEndian.Uint32(buf)))
	case KindS32:
		v.SetInt(int64(int32(binary.LittleEndian.Uint32(buf))))
	case KindU64:
		v.SetUint(binary.LittleEndian.Uint64(buf))
	case KindS64:
		v.SetInt(int64(binary.LittleEndian.Uint64(buf)))
	case KindArray:
		for i := uint32(0); i < ct.Count; i++ {
			off := i * ct.Elem.Size
			decode(ct.Elem, buf[off:off+ct.Elem.Size], v.Index(int(i)))
		}
	case KindStruct:
		for _, f := range ct.Fields {
			decode(f.Type, buf[f.Offset:f.Offset+f.Type.Size], v.Field(f.Index))
		}
	}
}

package record

import (
	"reflect"
	"strconv"
	"sync"

	"github.com/wippyai/arm-runtime/errors"
)

// Kind is the wire class of a compiled field.
type Kind uint8

const (
	KindU8 Kind = iota
	KindS8
	KindU16
	KindS16
	KindU32
	KindS32
	KindU64
	KindS64
	KindArray
	KindStruct
)

// CompiledType is the flattened guest layout of a Go type.
type CompiledType struct {
	GoType reflect.Type
	Elem   *CompiledType
	Fields []CompiledField
	Size   uint32
	Count  uint32
	Kind   Kind
}

// CompiledField is one struct field placed at a fixed guest offset.
type CompiledField struct {
	Type   *CompiledType
	Name   string
	Index  int
	Offset uint32
}

// Compiler turns Go types into guest layouts and caches the result.
type Compiler struct {
	cache sync.Map // reflect.Type -> *CompiledType
}

// NewCompiler creates a compiler with an empty cache.
func NewCompiler() *Compiler {
	return &Compiler{}
}

var defaultCompiler = NewCompiler()

// Compile returns the layout for goType.
func (c *Compiler) Compile(goType reflect.Type) (*CompiledType, error) {
	if goType == nil {
		return nil, errors.New(errors.PhaseRecord, errors.KindInvalidInput).
			Detail("Go type cannot be nil").
			Build()
	}

	if cached, ok := c.cache.Load(goType); ok {
		return cached.(*CompiledType), nil
	}

	ct, err := c.compile(goType, []string{goType.Name()})
	if err != nil {
		return nil, err
	}

	actual, _ := c.cache.LoadOrStore(goType, ct)
	return actual.(*CompiledType), nil
}

func (c *Compiler) compile(goType reflect.Type, path []string) (*CompiledType, error) {
	switch goType.Kind() {
	case reflect.Uint8:
		return primitive(goType, KindU8, 1), nil
	case reflect.Int8:
		return primitive(goType, KindS8, 1), nil
	case reflect.Uint16:
		return primitive(goType, KindU16, 2), nil
	case reflect.Int16:
		return primitive(goType, KindS16, 2), nil
	case reflect.Uint32:
		return primitive(goType, KindU32, 4), nil
	case reflect.Int32:
		return primitive(goType, KindS32, 4), nil
	case reflect.Uint64:
		return primitive(goType, KindU64, 8), nil
	case reflect.Int64:
		return primitive(goType, KindS64, 8), nil
	case reflect.Array:
		return c.compileArray(goType, path)
	case reflect.Struct:
		return c.compileStruct(goType, path)
	default:
		return nil, errors.New(errors.PhaseRecord, errors.KindUnsupported).
			Path(path...).
			GoType(goType.String()).
			Detail("not a fixed-width field").
			Build()
	}
}

func primitive(goType reflect.Type, kind Kind, size uint32) *CompiledType {
	return &CompiledType{GoType: goType, Kind: kind, Size: size}
}

func (c *Compiler) compileArray(goType reflect.Type, path []string) (*CompiledType, error) {
	elemPath := append(append([]string{}, path...), "[]")
	elem, err := c.compile(goType.Elem(), elemPath)
	if err != nil {
		return nil, err
	}

	size := uint64(elem.Size) * uint64(goType.Len())
	if size > uint64(^uint32(0)) {
		return nil, errors.New(errors.PhaseRecord, errors.KindUnsupported).
			Path(path...).
			GoType(goType.String()).
			Detail("array of %d bytes exceeds the guest address space", size).
			Build()
	}

	return &CompiledType{
		GoType: goType,
		Kind:   KindArray,
		Elem:   elem,
		Count:  uint32(goType.Len()),
		Size:   uint32(size),
	}, nil
}

func (c *Compiler) compileStruct(goType reflect.Type, path []string) (*CompiledType, error) {
	fields := make([]CompiledField, 0, goType.NumField())
	var offset uint32

	for i := 0; i < goType.NumField(); i++ {
		f := goType.Field(i)
		fieldPath := append(append([]string{}, path...), f.Name)

		if f.Name == "_" {
			return nil, errors.New(errors.PhaseRecord, errors.KindUnsupported).
				Path(fieldPath...).
				Detail("blank fields are not addressable; name padding explicitly").
				Build()
		}
		if !f.IsExported() {
			return nil, errors.New(errors.PhaseRecord, errors.KindUnsupported).
				Path(fieldPath...).
				GoType(f.Type.String()).
				Detail("unexported field").
				Build()
		}

		ft, err := c.compile(f.Type, fieldPath)
		if err != nil {
			return nil, err
		}

		fields = append(fields, CompiledField{
			Name:   f.Name,
			Index:  i,
			Offset: offset,
			Type:   ft,
		})
		offset += ft.Size
	}

	return &CompiledType{
		GoType: goType,
		Kind:   KindStruct,
		Fields: fields,
		Size:   offset,
	}, nil
}

// String renders a kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindS8:
		return "s8"
	case KindU16:
		return "u16"
	case KindS16:
		return "s16"
	case KindU32:
		return "u32"
	case KindS32:
		return "s32"
	case KindU64:
		return "u64"
	case KindS64:
		return "s64"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

package ktf

// PebBase is where the process environment block is mapped.
const PebBase uint32 = 0x00FE0000

// PebSize is the size of the PEB mapping.
const PebSize uint32 = 0x1000

// InitParam0 is the first argument of the image init function.
type InitParam0 struct {
	Unk uint32
}

// InitParam1 points at an opaque table the image fills in.
type InitParam1 struct {
	PtrUnkStruct uint32
}

// InitParam1Unk is the table InitParam1 points at.
type InitParam1Unk struct {
	Unk [32]uint32
}

// InitParam2 holds the Java class vtable slots.
type InitParam2 struct {
	Unk1       uint32
	Unk2       uint32
	Unk3       uint32
	PtrVtables [64]uint32
}

// InitParam3 carries the type codes used to pool primitive arrays.
type InitParam3 struct {
	Unk1    uint32
	Unk2    uint32
	Unk3    uint32
	Unk4    uint32
	Boolean uint32
	Char    uint32
	Float   uint32
	Double  uint32
	Byte    uint32
	Short   uint32
	Int     uint32
	Long    uint32
}

// InitParam4 is the table of host services handed to the image.
type InitParam4 struct {
	FnGetInterface  uint32
	FnJavaThrow     uint32
	Unk1            uint32
	Unk2            uint32
	Unk3            uint32
	FnJavaNew       uint32
	FnJavaArrayNew  uint32
	Unk6            uint32
	FnJavaClassLoad uint32
	Unk7            uint32
	Unk8            uint32
	FnAlloc         uint32
}

// WipiExe is the descriptor the image entry point returns.
type WipiExe struct {
	PtrExeInterface uint32
	PtrName         uint32
	Unk1            uint32
	Unk2            uint32
	FnUnk1          uint32
	FnInit          uint32
	Unk3            uint32
	Unk4            uint32
	FnUnk3          uint32
	Unk5            uint32
}

type ExeInterface struct {
	PtrFunctions uint32
	PtrName      uint32
	Unk1         uint32
	Unk2         uint32
	Unk3         uint32
	Unk4         uint32
	Unk5         uint32
	Unk6         uint32
}

type ExeInterfaceFunctions struct {
	Unk1            uint32
	Unk2            uint32
	FnInit          uint32
	FnGetDefaultDll uint32
	FnGetClass      uint32
	FnUnk2          uint32
	FnUnk3          uint32
}

// Peb is the process environment block at PebBase.
type Peb struct {
	PtrJavaContextData uint32
}

// primitiveTypes returns InitParam3 filled with the Java descriptor codes.
func primitiveTypes() InitParam3 {
	return InitParam3{
		Boolean: 'Z',
		Char:    'C',
		Float:   'F',
		Double:  'D',
		Byte:    'B',
		Short:   'S',
		Int:     'I',
		Long:    'J',
	}
}

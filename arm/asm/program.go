package asm

import (
	"encoding/binary"
	"fmt"
)

// Reg is a core register number.
type Reg uint8

const (
	R0 Reg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	SP
	LR
	PC
)

// Cond is an ARM condition code.
type Cond uint8

const (
	EQ Cond = iota
	NE
	CS
	CC
	MI
	PL
	VS
	VC
	HI
	LS
	GE
	LT
	GT
	LE
	AL
)

type fixupKind uint8

const (
	fixThumbB fixupKind = iota
	fixThumbBCond
	fixThumbBL
	fixThumbBLX
	fixThumbLdrLit
	fixThumbAdr
	fixARMBranch
	fixARMBLX
	fixARMLdrLit
	fixWord
)

type fixup struct {
	label string
	kind  fixupKind
	at    uint32 // offset into buf
	thumb bool   // fixWord: set bit 0
}

// Program accumulates machine code at a fixed load address. Instructions
// are appended through the Thumb and ARM writers; labels may be referenced
// before they are defined and are resolved by Bytes.
type Program struct {
	labels map[string]uint32
	buf    []byte
	fixups []fixup
	err    error
	base   uint32
}

// New starts a program loaded at base.
func New(base uint32) *Program {
	return &Program{base: base, labels: make(map[string]uint32)}
}

// Base returns the load address.
func (p *Program) Base() uint32 { return p.base }

// Here returns the address of the next emitted byte.
func (p *Program) Here() uint32 { return p.base + uint32(len(p.buf)) }

// Label binds name to the current address.
func (p *Program) Label(name string) *Program {
	if _, dup := p.labels[name]; dup {
		p.fail("label %q defined twice", name)
	}
	p.labels[name] = p.Here()
	return p
}

// Addr returns the address bound to a label.
func (p *Program) Addr(name string) (uint32, bool) {
	a, ok := p.labels[name]
	return a, ok
}

// MustAddr is Addr that panics on unknown labels. Intended for tests.
func (p *Program) MustAddr(name string) uint32 {
	a, ok := p.labels[name]
	if !ok {
		panic(fmt.Sprintf("asm: unknown label %q", name))
	}
	return a
}

// Thumb returns a writer emitting Thumb instructions into p.
func (p *Program) Thumb() *Thumb { return &Thumb{p: p} }

// ARM returns a writer emitting ARM instructions into p.
func (p *Program) ARM() *ARM { return &ARM{p: p, cond: AL} }

// Align pads with zero bytes to a multiple of n.
func (p *Program) Align(n uint32) *Program {
	for p.Here()%n != 0 {
		p.buf = append(p.buf, 0)
	}
	return p
}

// Word emits a 32-bit little-endian literal.
func (p *Program) Word(v uint32) *Program {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
	return p
}

// WordAddr emits the address of a label. With thumb set, bit 0 is raised
// so the word can be used as an interworking function pointer.
func (p *Program) WordAddr(label string, thumb bool) *Program {
	p.fixups = append(p.fixups, fixup{label: label, kind: fixWord, at: uint32(len(p.buf)), thumb: thumb})
	return p.Word(0)
}

// Bytes emits raw bytes.
func (p *Program) Bytes(b []byte) *Program {
	p.buf = append(p.buf, b...)
	return p
}

// Assemble resolves label references and returns the image.
func (p *Program) Assemble() ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	for _, f := range p.fixups {
		target, ok := p.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("asm: undefined label %q", f.label)
		}
		if err := p.resolve(out, f, target); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MustAssemble is Assemble that panics on error. Intended for tests.
func (p *Program) MustAssemble() []byte {
	b, err := p.Assemble()
	if err != nil {
		panic(err)
	}
	return b
}

func (p *Program) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("asm: "+format, args...)
	}
}

func (p *Program) emit16(v uint16) {
	p.buf = binary.LittleEndian.AppendUint16(p.buf, v)
}

func (p *Program) emit32(v uint32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *Program) ref(label string, kind fixupKind) {
	p.fixups = append(p.fixups, fixup{label: label, kind: kind, at: uint32(len(p.buf))})
}

func inRange(v int64, bits uint) bool {
	lim := int64(1) << (bits - 1)
	return v >= -lim && v < lim
}

func (p *Program) resolve(out []byte, f fixup, target uint32) error {
	pc := p.base + f.at
	off := int64(target) - int64(pc)

	put16 := func(at uint32, v uint16) {
		binary.LittleEndian.PutUint16(out[at:], binary.LittleEndian.Uint16(out[at:])|v)
	}
	put32 := func(at uint32, v uint32) {
		binary.LittleEndian.PutUint32(out[at:], binary.LittleEndian.Uint32(out[at:])|v)
	}
	tooFar := func() error {
		return fmt.Errorf("asm: label %q out of range at %#x", f.label, pc)
	}

	switch f.kind {
	case fixThumbB:
		d := off - 4
		if d&1 != 0 || !inRange(d>>1, 11) {
			return tooFar()
		}
		put16(f.at, uint16(d>>1)&0x7ff)
	case fixThumbBCond:
		d := off - 4
		if d&1 != 0 || !inRange(d>>1, 8) {
			return tooFar()
		}
		put16(f.at, uint16(d>>1)&0xff)
	case fixThumbBL:
		d := off - 4
		if d&1 != 0 || !inRange(d, 23) {
			return tooFar()
		}
		put16(f.at, uint16(d>>12)&0x7ff)
		put16(f.at+2, uint16(d>>1)&0x7ff)
	case fixThumbBLX:
		if target&3 != 0 {
			return fmt.Errorf("asm: blx target %q not word aligned", f.label)
		}
		d := int64(target) - int64((pc+4)&^3)
		if !inRange(d, 23) {
			return tooFar()
		}
		put16(f.at, uint16(d>>12)&0x7ff)
		put16(f.at+2, uint16(d>>1)&0x7fe)
	case fixThumbLdrLit, fixThumbAdr:
		d := int64(target) - int64((pc+4)&^3)
		if d < 0 || d&3 != 0 || d>>2 > 0xff {
			return tooFar()
		}
		put16(f.at, uint16(d>>2))
	case fixARMBranch:
		d := off - 8
		if d&3 != 0 || !inRange(d>>2, 24) {
			return tooFar()
		}
		put32(f.at, uint32(d>>2)&0xffffff)
	case fixARMBLX:
		d := off - 8
		if d&1 != 0 || !inRange(d>>2, 24) {
			return tooFar()
		}
		put32(f.at, uint32(d>>2)&0xffffff|uint32(d>>1&1)<<24)
	case fixARMLdrLit:
		d := off - 8
		if d < 0 {
			d = -d
			if d > 0xfff {
				return tooFar()
			}
			// clear U
			binary.LittleEndian.PutUint32(out[f.at:], binary.LittleEndian.Uint32(out[f.at:])&^(1<<23))
		} else if d > 0xfff {
			return tooFar()
		}
		put32(f.at, uint32(d))
	case fixWord:
		v := target
		if f.thumb {
			v |= 1
		}
		binary.LittleEndian.PutUint32(out[f.at:], v)
	}
	return nil
}

package arm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"

	armruntime "github.com/wippyai/arm-runtime"
)

// Instruction is one decoded instruction for display.
type Instruction struct {
	Text     string
	Addr     uint32
	Encoding uint32
	Size     uint32
	Thumb    bool
}

func (i Instruction) String() string {
	if i.Thumb {
		return fmt.Sprintf("%08x: %04x      %s", i.Addr, i.Encoding, i.Text)
	}
	return fmt.Sprintf("%08x: %08x  %s", i.Addr, i.Encoding, i.Text)
}

// Disassemble decodes the instruction at the PC held in regs.
func Disassemble(regs Registers, mem armruntime.Memory) (Instruction, error) {
	return DisassembleAt(mem, regs.R[PC], regs.Thumb())
}

// DisassembleAt decodes one instruction at addr in the given state.
func DisassembleAt(mem armruntime.Memory, addr uint32, thumb bool) (Instruction, error) {
	if thumb {
		op, err := mem.ReadU16(addr)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Addr: addr, Encoding: uint32(op), Size: 2, Thumb: true, Text: thumbText(op)}, nil
	}
	ins, err := mem.ReadU32(addr)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Addr: addr, Encoding: ins, Size: 4, Text: armText(ins)}, nil
}

// DisassembleRange decodes count consecutive instructions starting at addr.
// Decoding stops early at the first unreadable address.
func DisassembleRange(mem armruntime.Memory, addr uint32, count int, thumb bool) []Instruction {
	out := make([]Instruction, 0, count)
	for i := 0; i < count; i++ {
		ins, err := DisassembleAt(mem, addr, thumb)
		if err != nil {
			break
		}
		out = append(out, ins)
		addr += ins.Size
	}
	return out
}

func armText(ins uint32) string {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], ins)
	inst, err := armasm.Decode(buf[:], armasm.ModeARM)
	if err != nil {
		return "?"
	}
	return armasm.GNUSyntax(inst)
}

var (
	thumbShiftOps = [...]string{"lsls", "lsrs", "asrs"}
	thumbImmOps   = [...]string{"movs", "cmp", "adds", "subs"}
	thumbALUOps   = [...]string{
		"ands", "eors", "lsls", "lsrs", "asrs", "adcs", "sbcs", "rors",
		"tst", "negs", "cmp", "cmn", "orrs", "muls", "bics", "mvns",
	}
	thumbRegOffOps  = [...]string{"str", "strb", "ldr", "ldrb"}
	thumbSignOps    = [...]string{"strh", "ldrsb", "ldrh", "ldrsh"}
	thumbExtendOps  = [...]string{"sxth", "sxtb", "uxth", "uxtb"}
	thumbConditions = [...]string{
		"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc",
		"hi", "ls", "ge", "lt", "gt", "le",
	}
)

func lo(op uint16, shift uint) string {
	return RegName(int(op >> shift & 7))
}

func regList(list uint16, extra string) string {
	var names []string
	for i := 0; i < 8; i++ {
		if list&(1<<i) != 0 {
			names = append(names, RegName(i))
		}
	}
	if extra != "" {
		names = append(names, extra)
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// thumbText renders a 16-bit Thumb instruction in unified syntax. BL and
// BLX halves are shown individually since each half executes on its own.
func thumbText(op uint16) string {
	switch {
	case op>>11 == 3:
		mn := "adds"
		if op&(1<<9) != 0 {
			mn = "subs"
		}
		if op&(1<<10) != 0 {
			return fmt.Sprintf("%s %s, %s, #%d", mn, lo(op, 0), lo(op, 3), op>>6&7)
		}
		return fmt.Sprintf("%s %s, %s, %s", mn, lo(op, 0), lo(op, 3), lo(op, 6))
	case op>>13 == 0:
		return fmt.Sprintf("%s %s, %s, #%d", thumbShiftOps[op>>11&3], lo(op, 0), lo(op, 3), op>>6&0x1f)
	case op>>13 == 1:
		return fmt.Sprintf("%s %s, #%d", thumbImmOps[op>>11&3], lo(op, 8), op&0xff)
	case op>>10 == 0x10:
		return fmt.Sprintf("%s %s, %s", thumbALUOps[op>>6&0xf], lo(op, 0), lo(op, 3))
	case op>>10 == 0x11:
		rd := RegName(int(op&7 | op>>4&8))
		rm := RegName(int(op >> 3 & 0xf))
		switch op >> 8 & 3 {
		case 0:
			return fmt.Sprintf("add %s, %s", rd, rm)
		case 1:
			return fmt.Sprintf("cmp %s, %s", rd, rm)
		case 2:
			return fmt.Sprintf("mov %s, %s", rd, rm)
		default:
			if op&(1<<7) != 0 {
				return "blx " + rm
			}
			return "bx " + rm
		}
	case op>>11 == 0x09:
		return fmt.Sprintf("ldr %s, [pc, #%d]", lo(op, 8), (op&0xff)<<2)
	case op>>12 == 0x5:
		if op&(1<<9) == 0 {
			return fmt.Sprintf("%s %s, [%s, %s]", thumbRegOffOps[op>>10&3], lo(op, 0), lo(op, 3), lo(op, 6))
		}
		return fmt.Sprintf("%s %s, [%s, %s]", thumbSignOps[op>>10&3], lo(op, 0), lo(op, 3), lo(op, 6))
	case op>>13 == 3:
		mn := [...]string{"str", "ldr", "strb", "ldrb"}[op>>11&3]
		off := op >> 6 & 0x1f
		if op&(1<<12) == 0 {
			off <<= 2
		}
		return fmt.Sprintf("%s %s, [%s, #%d]", mn, lo(op, 0), lo(op, 3), off)
	case op>>12 == 0x8:
		mn := "strh"
		if op&(1<<11) != 0 {
			mn = "ldrh"
		}
		return fmt.Sprintf("%s %s, [%s, #%d]", mn, lo(op, 0), lo(op, 3), (op>>6&0x1f)<<1)
	case op>>12 == 0x9:
		mn := "str"
		if op&(1<<11) != 0 {
			mn = "ldr"
		}
		return fmt.Sprintf("%s %s, [sp, #%d]", mn, lo(op, 8), (op&0xff)<<2)
	case op>>12 == 0xa:
		base := "pc"
		if op&(1<<11) != 0 {
			base = "sp"
		}
		return fmt.Sprintf("add %s, %s, #%d", lo(op, 8), base, (op&0xff)<<2)
	case op&0xff00 == 0xb000:
		mn := "add"
		if op&(1<<7) != 0 {
			mn = "sub"
		}
		return fmt.Sprintf("%s sp, #%d", mn, (op&0x7f)<<2)
	case op&0xff00 == 0xb200:
		return fmt.Sprintf("%s %s, %s", thumbExtendOps[op>>6&3], lo(op, 0), lo(op, 3))
	case op&0xf600 == 0xb400:
		if op&(1<<11) != 0 {
			extra := ""
			if op&(1<<8) != 0 {
				extra = "pc"
			}
			return "pop " + regList(op&0xff, extra)
		}
		extra := ""
		if op&(1<<8) != 0 {
			extra = "lr"
		}
		return "push " + regList(op&0xff, extra)
	case op&0xff00 == 0xbe00:
		return fmt.Sprintf("bkpt #%d", op&0xff)
	case op>>12 == 0xc:
		mn := "stmia"
		if op&(1<<11) != 0 {
			mn = "ldmia"
		}
		return fmt.Sprintf("%s %s!, %s", mn, lo(op, 8), regList(op&0xff, ""))
	case op>>8 == 0xdf:
		return fmt.Sprintf("svc #%d", op&0xff)
	case op>>12 == 0xd:
		cond := op >> 8 & 0xf
		if int(cond) >= len(thumbConditions) {
			return "udf"
		}
		return fmt.Sprintf("b%s #%d", thumbConditions[cond], int32(signExtend(uint32(op&0xff), 8)<<1)+4)
	case op>>11 == 0x1c:
		return fmt.Sprintf("b #%d", int32(signExtend(uint32(op&0x7ff), 11)<<1)+4)
	case op>>11 == 0x1e:
		return fmt.Sprintf("bl.hi #%d", int32(signExtend(uint32(op&0x7ff), 11)<<12))
	case op>>11 == 0x1f:
		return fmt.Sprintf("bl.lo #%d", (op&0x7ff)<<1)
	case op>>11 == 0x1d:
		return fmt.Sprintf("blx.lo #%d", (op&0x7ff)<<1)
	default:
		return "?"
	}
}

package arm

import (
	"fmt"
	"strings"
)

// Register aliases.
const (
	SP = 13
	LR = 14
	PC = 15
)

// CPSR bits.
const (
	FlagN uint32 = 1 << 31
	FlagZ uint32 = 1 << 30
	FlagC uint32 = 1 << 29
	FlagV uint32 = 1 << 28
	FlagT uint32 = 1 << 5
)

// ModeSystem is the processor mode the core reports. Guest code never leaves it.
const ModeSystem uint32 = 0x1f

// Registers is the complete architectural state visible to guest code.
// R[PC] holds the address of the instruction about to execute.
//
// Registers is a value type: assigning it copies the whole file, which is
// how tasks snapshot and restore the shared CPU.
type Registers struct {
	R    [16]uint32
	CPSR uint32
}

// Thumb reports whether the T bit is set.
func (r *Registers) Thumb() bool { return r.CPSR&FlagT != 0 }

// SetThumb sets or clears the T bit.
func (r *Registers) SetThumb(on bool) { r.setFlag(FlagT, on) }

// N, Z, C and V report the condition flags.
func (r *Registers) N() bool { return r.CPSR&FlagN != 0 }
func (r *Registers) Z() bool { return r.CPSR&FlagZ != 0 }
func (r *Registers) C() bool { return r.CPSR&FlagC != 0 }
func (r *Registers) V() bool { return r.CPSR&FlagV != 0 }

func (r *Registers) setFlag(f uint32, on bool) {
	if on {
		r.CPSR |= f
	} else {
		r.CPSR &^= f
	}
}

func (r *Registers) setNZ(v uint32) {
	r.setFlag(FlagN, v&0x80000000 != 0)
	r.setFlag(FlagZ, v == 0)
}

func (r *Registers) setNZC(v uint32, c bool) {
	r.setNZ(v)
	r.setFlag(FlagC, c)
}

func (r *Registers) setNZCV(v uint32, c, ov bool) {
	r.setNZ(v)
	r.setFlag(FlagC, c)
	r.setFlag(FlagV, ov)
}

func (r *Registers) carry() uint32 {
	if r.C() {
		return 1
	}
	return 0
}

// Reset zeroes the file and enters system mode in ARM state.
func (r *Registers) Reset() {
	*r = Registers{CPSR: ModeSystem}
}

// Flags renders the condition flags as "NZCV" with clear flags lowercased.
func (r *Registers) Flags() string {
	b := []byte("nzcv")
	if r.N() {
		b[0] = 'N'
	}
	if r.Z() {
		b[1] = 'Z'
	}
	if r.C() {
		b[2] = 'C'
	}
	if r.V() {
		b[3] = 'V'
	}
	return string(b)
}

var regNames = [16]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
}

// RegName returns the assembler name of register n.
func RegName(n int) string {
	return regNames[n&15]
}

func (r Registers) String() string {
	var b strings.Builder
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&b, "%3s=%08x", regNames[i], r.R[i])
		if i%4 == 3 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	state := "arm"
	if r.Thumb() {
		state = "thumb"
	}
	fmt.Fprintf(&b, "cpsr=%08x %s %s", r.CPSR, r.Flags(), state)
	return b.String()
}

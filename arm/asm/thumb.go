package asm

// Thumb emits 16-bit Thumb instructions. Register operands named rd, rn,
// rm and rb must be low registers unless stated otherwise.
type Thumb struct {
	p *Program
}

// Program returns the program being written.
func (t *Thumb) Program() *Program { return t.p }

// Label binds name to the current address.
func (t *Thumb) Label(name string) *Thumb {
	t.p.Label(name)
	return t
}

func (t *Thumb) low(regs ...Reg) bool {
	for _, r := range regs {
		if r > R7 {
			t.p.fail("thumb: %d is not a low register at %#x", r, t.p.Here())
			return false
		}
	}
	return true
}

func (t *Thumb) imm(v, max uint32, what string) uint32 {
	if v > max {
		t.p.fail("thumb: %s %d out of range at %#x", what, v, t.p.Here())
		return 0
	}
	return v
}

func (t *Thumb) emit(v uint32) *Thumb {
	t.p.emit16(uint16(v))
	return t
}

func (t *Thumb) shift(base uint32, rd, rm Reg, n uint32) *Thumb {
	t.low(rd, rm)
	return t.emit(base | t.imm(n, 31, "shift")<<6 | uint32(rm)<<3 | uint32(rd))
}

func (t *Thumb) LslImm(rd, rm Reg, n uint32) *Thumb { return t.shift(0x0000, rd, rm, n) }
func (t *Thumb) LsrImm(rd, rm Reg, n uint32) *Thumb { return t.shift(0x0800, rd, rm, n) }
func (t *Thumb) AsrImm(rd, rm Reg, n uint32) *Thumb { return t.shift(0x1000, rd, rm, n) }

func (t *Thumb) addSub(base uint32, rd, rn Reg, x uint32) *Thumb {
	t.low(rd, rn)
	return t.emit(base | x<<6 | uint32(rn)<<3 | uint32(rd))
}

// Adds emits ADDS rd, rn, rm.
func (t *Thumb) Adds(rd, rn, rm Reg) *Thumb {
	t.low(rm)
	return t.addSub(0x1800, rd, rn, uint32(rm))
}

// Subs emits SUBS rd, rn, rm.
func (t *Thumb) Subs(rd, rn, rm Reg) *Thumb {
	t.low(rm)
	return t.addSub(0x1a00, rd, rn, uint32(rm))
}

// Adds3 emits ADDS rd, rn, #imm3.
func (t *Thumb) Adds3(rd, rn Reg, imm uint32) *Thumb {
	return t.addSub(0x1c00, rd, rn, t.imm(imm, 7, "imm3"))
}

// Subs3 emits SUBS rd, rn, #imm3.
func (t *Thumb) Subs3(rd, rn Reg, imm uint32) *Thumb {
	return t.addSub(0x1e00, rd, rn, t.imm(imm, 7, "imm3"))
}

func (t *Thumb) imm8(base uint32, rd Reg, imm uint32) *Thumb {
	t.low(rd)
	return t.emit(base | uint32(rd)<<8 | t.imm(imm, 0xff, "imm8"))
}

func (t *Thumb) Movs(rd Reg, imm uint32) *Thumb { return t.imm8(0x2000, rd, imm) }
func (t *Thumb) CmpImm(rd Reg, imm uint32) *Thumb { return t.imm8(0x2800, rd, imm) }
func (t *Thumb) AddsImm(rd Reg, imm uint32) *Thumb { return t.imm8(0x3000, rd, imm) }
func (t *Thumb) SubsImm(rd Reg, imm uint32) *Thumb { return t.imm8(0x3800, rd, imm) }

// ALU opcodes for format 4.
const (
	OpAnd uint32 = iota
	OpEor
	OpLsl
	OpLsr
	OpAsr
	OpAdc
	OpSbc
	OpRor
	OpTst
	OpNeg
	OpCmp
	OpCmn
	OpOrr
	OpMul
	OpBic
	OpMvn
)

// ALU emits a two-register data-processing instruction.
func (t *Thumb) ALU(op uint32, rd, rm Reg) *Thumb {
	t.low(rd, rm)
	return t.emit(0x4000 | (op&0xf)<<6 | uint32(rm)<<3 | uint32(rd))
}

func (t *Thumb) Ands(rd, rm Reg) *Thumb { return t.ALU(OpAnd, rd, rm) }
func (t *Thumb) Eors(rd, rm Reg) *Thumb { return t.ALU(OpEor, rd, rm) }
func (t *Thumb) Orrs(rd, rm Reg) *Thumb { return t.ALU(OpOrr, rd, rm) }
func (t *Thumb) Muls(rd, rm Reg) *Thumb { return t.ALU(OpMul, rd, rm) }
func (t *Thumb) Cmp(rd, rm Reg) *Thumb  { return t.ALU(OpCmp, rd, rm) }

func (t *Thumb) hi(op uint32, rd, rm Reg) *Thumb {
	return t.emit(0x4400 | op<<8 | uint32(rd&8)<<4 | uint32(rm)<<3 | uint32(rd&7))
}

// Add emits ADD rd, rm with any registers. Flags are unaffected.
func (t *Thumb) Add(rd, rm Reg) *Thumb { return t.hi(0, rd, rm) }

// CmpHi emits CMP rd, rm with any registers.
func (t *Thumb) CmpHi(rd, rm Reg) *Thumb { return t.hi(1, rd, rm) }

// Mov emits MOV rd, rm with any registers. Flags are unaffected.
func (t *Thumb) Mov(rd, rm Reg) *Thumb { return t.hi(2, rd, rm) }

// Bx emits BX rm.
func (t *Thumb) Bx(rm Reg) *Thumb { return t.emit(0x4700 | uint32(rm)<<3) }

// Blx emits BLX rm.
func (t *Thumb) Blx(rm Reg) *Thumb { return t.emit(0x4780 | uint32(rm)<<3) }

// LdrLit emits LDR rd, [pc, #label]. The label must be word aligned and
// follow the instruction.
func (t *Thumb) LdrLit(rd Reg, label string) *Thumb {
	t.low(rd)
	t.p.ref(label, fixThumbLdrLit)
	return t.emit(0x4800 | uint32(rd)<<8)
}

// Adr emits ADD rd, pc, #label.
func (t *Thumb) Adr(rd Reg, label string) *Thumb {
	t.low(rd)
	t.p.ref(label, fixThumbAdr)
	return t.emit(0xa000 | uint32(rd)<<8)
}

func (t *Thumb) regOff(base uint32, rd, rb, ro Reg) *Thumb {
	t.low(rd, rb, ro)
	return t.emit(base | uint32(ro)<<6 | uint32(rb)<<3 | uint32(rd))
}

func (t *Thumb) StrReg(rd, rb, ro Reg) *Thumb   { return t.regOff(0x5000, rd, rb, ro) }
func (t *Thumb) StrhReg(rd, rb, ro Reg) *Thumb  { return t.regOff(0x5200, rd, rb, ro) }
func (t *Thumb) StrbReg(rd, rb, ro Reg) *Thumb  { return t.regOff(0x5400, rd, rb, ro) }
func (t *Thumb) LdrsbReg(rd, rb, ro Reg) *Thumb { return t.regOff(0x5600, rd, rb, ro) }
func (t *Thumb) LdrReg(rd, rb, ro Reg) *Thumb   { return t.regOff(0x5800, rd, rb, ro) }
func (t *Thumb) LdrhReg(rd, rb, ro Reg) *Thumb  { return t.regOff(0x5a00, rd, rb, ro) }
func (t *Thumb) LdrbReg(rd, rb, ro Reg) *Thumb  { return t.regOff(0x5c00, rd, rb, ro) }
func (t *Thumb) LdrshReg(rd, rb, ro Reg) *Thumb { return t.regOff(0x5e00, rd, rb, ro) }

func (t *Thumb) immOff(base uint32, rd, rb Reg, off, scale uint32) *Thumb {
	t.low(rd, rb)
	if off%scale != 0 {
		t.p.fail("thumb: offset %d not a multiple of %d", off, scale)
	}
	return t.emit(base | t.imm(off/scale, 31, "offset")<<6 | uint32(rb)<<3 | uint32(rd))
}

// Str emits STR rd, [rb, #off].
func (t *Thumb) Str(rd, rb Reg, off uint32) *Thumb {
	if rb == SP {
		return t.spOff(0x9000, rd, off)
	}
	return t.immOff(0x6000, rd, rb, off, 4)
}

// Ldr emits LDR rd, [rb, #off].
func (t *Thumb) Ldr(rd, rb Reg, off uint32) *Thumb {
	if rb == SP {
		return t.spOff(0x9800, rd, off)
	}
	return t.immOff(0x6800, rd, rb, off, 4)
}

func (t *Thumb) Strb(rd, rb Reg, off uint32) *Thumb { return t.immOff(0x7000, rd, rb, off, 1) }
func (t *Thumb) Ldrb(rd, rb Reg, off uint32) *Thumb { return t.immOff(0x7800, rd, rb, off, 1) }
func (t *Thumb) Strh(rd, rb Reg, off uint32) *Thumb { return t.immOff(0x8000, rd, rb, off, 2) }
func (t *Thumb) Ldrh(rd, rb Reg, off uint32) *Thumb { return t.immOff(0x8800, rd, rb, off, 2) }

func (t *Thumb) spOff(base uint32, rd Reg, off uint32) *Thumb {
	t.low(rd)
	if off%4 != 0 {
		t.p.fail("thumb: sp offset %d not word aligned", off)
	}
	return t.emit(base | uint32(rd)<<8 | t.imm(off/4, 0xff, "sp offset"))
}

// AddSPImm emits ADD rd, sp, #imm.
func (t *Thumb) AddSPImm(rd Reg, imm uint32) *Thumb { return t.spOff(0xa800, rd, imm) }

// AddSP emits ADD sp, #imm.
func (t *Thumb) AddSP(imm uint32) *Thumb {
	return t.emit(0xb000 | t.imm(imm/4, 0x7f, "sp adjust"))
}

// SubSP emits SUB sp, #imm.
func (t *Thumb) SubSP(imm uint32) *Thumb {
	return t.emit(0xb080 | t.imm(imm/4, 0x7f, "sp adjust"))
}

func (t *Thumb) extend(base uint32, rd, rm Reg) *Thumb {
	t.low(rd, rm)
	return t.emit(base | uint32(rm)<<3 | uint32(rd))
}

func (t *Thumb) Sxth(rd, rm Reg) *Thumb { return t.extend(0xb200, rd, rm) }
func (t *Thumb) Sxtb(rd, rm Reg) *Thumb { return t.extend(0xb240, rd, rm) }
func (t *Thumb) Uxth(rd, rm Reg) *Thumb { return t.extend(0xb280, rd, rm) }
func (t *Thumb) Uxtb(rd, rm Reg) *Thumb { return t.extend(0xb2c0, rd, rm) }

func (t *Thumb) list(regs []Reg, extra Reg) uint32 {
	var l uint32
	for _, r := range regs {
		switch {
		case r == extra:
			l |= 1 << 8
		case r <= R7:
			l |= 1 << r
		default:
			t.p.fail("thumb: register %d not allowed in list", r)
		}
	}
	return l
}

// Push emits PUSH {regs}. LR is the only high register allowed.
func (t *Thumb) Push(regs ...Reg) *Thumb { return t.emit(0xb400 | t.list(regs, LR)) }

// Pop emits POP {regs}. PC is the only high register allowed.
func (t *Thumb) Pop(regs ...Reg) *Thumb { return t.emit(0xbc00 | t.list(regs, PC)) }

// Stmia emits STMIA rb!, {regs}.
func (t *Thumb) Stmia(rb Reg, regs ...Reg) *Thumb {
	t.low(rb)
	return t.emit(0xc000 | uint32(rb)<<8 | t.list(regs, 0xff))
}

// Ldmia emits LDMIA rb!, {regs}.
func (t *Thumb) Ldmia(rb Reg, regs ...Reg) *Thumb {
	t.low(rb)
	return t.emit(0xc800 | uint32(rb)<<8 | t.list(regs, 0xff))
}

// Bkpt emits BKPT #imm.
func (t *Thumb) Bkpt(imm uint32) *Thumb { return t.emit(0xbe00 | t.imm(imm, 0xff, "bkpt")) }

// Svc emits SWI #imm.
func (t *Thumb) Svc(imm uint32) *Thumb { return t.emit(0xdf00 | t.imm(imm, 0xff, "svc")) }

// Nop emits MOV r8, r8.
func (t *Thumb) Nop() *Thumb { return t.Mov(R8, R8) }

// B emits an unconditional branch to label.
func (t *Thumb) B(label string) *Thumb {
	t.p.ref(label, fixThumbB)
	return t.emit(0xe000)
}

// BCond emits a conditional branch to label.
func (t *Thumb) BCond(c Cond, label string) *Thumb {
	if c >= AL {
		t.p.fail("thumb: condition %d not allowed", c)
	}
	t.p.ref(label, fixThumbBCond)
	return t.emit(0xd000 | uint32(c)<<8)
}

// BL emits the two-halfword BL to a Thumb label.
func (t *Thumb) BL(label string) *Thumb {
	t.p.ref(label, fixThumbBL)
	t.emit(0xf000)
	return t.emit(0xf800)
}

// BLX emits the two-halfword BLX to an ARM label.
func (t *Thumb) BLX(label string) *Thumb {
	t.p.ref(label, fixThumbBLX)
	t.emit(0xf000)
	return t.emit(0xe800)
}

// Raw emits an arbitrary halfword.
func (t *Thumb) Raw(op uint16) *Thumb { return t.emit(uint32(op)) }

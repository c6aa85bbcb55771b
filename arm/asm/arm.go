package asm

import "math/bits"

// ARM emits 32-bit ARM instructions.
type ARM struct {
	p    *Program
	cond Cond
}

// Program returns the program being written.
func (a *ARM) Program() *Program { return a.p }

// Label binds name to the current address.
func (a *ARM) Label(name string) *ARM {
	a.p.Label(name)
	return a
}

// If applies condition c to the next instruction only.
func (a *ARM) If(c Cond) *ARM {
	a.cond = c
	return a
}

func (a *ARM) emit(v uint32) *ARM {
	a.p.emit32(uint32(a.cond)<<28 | v)
	a.cond = AL
	return a
}

// EncodeImm returns the rotated-immediate form of v.
func EncodeImm(v uint32) (uint32, bool) {
	for rot := uint32(0); rot < 16; rot++ {
		imm := bits.RotateLeft32(v, int(rot*2))
		if imm <= 0xff {
			return rot<<8 | imm, true
		}
	}
	return 0, false
}

func (a *ARM) operandImm(v uint32) uint32 {
	enc, ok := EncodeImm(v)
	if !ok {
		a.p.fail("arm: immediate %#x not encodable at %#x", v, a.p.Here())
	}
	return 1<<25 | enc
}

// Data-processing opcodes.
const (
	DpAnd uint32 = iota
	DpEor
	DpSub
	DpRsb
	DpAdd
	DpAdc
	DpSbc
	DpRsc
	DpTst
	DpTeq
	DpCmp
	DpCmn
	DpOrr
	DpMov
	DpBic
	DpMvn
)

// DP emits a data-processing instruction with an immediate operand.
func (a *ARM) DP(op uint32, s bool, rd, rn Reg, imm uint32) *ARM {
	return a.emit(dp(op, s, rd, rn) | a.operandImm(imm))
}

// DPReg emits a data-processing instruction with a register operand
// shifted by an immediate amount.
func (a *ARM) DPReg(op uint32, s bool, rd, rn, rm Reg, shift, amount uint32) *ARM {
	return a.emit(dp(op, s, rd, rn) | (amount&0x1f)<<7 | (shift&3)<<5 | uint32(rm))
}

// DPRegShift emits a data-processing instruction with a register operand
// shifted by a register amount.
func (a *ARM) DPRegShift(op uint32, s bool, rd, rn, rm Reg, shift uint32, rs Reg) *ARM {
	return a.emit(dp(op, s, rd, rn) | uint32(rs)<<8 | (shift&3)<<5 | 1<<4 | uint32(rm))
}

func dp(op uint32, s bool, rd, rn Reg) uint32 {
	v := op<<21 | uint32(rn)<<16 | uint32(rd)<<12
	if s || (op >= DpTst && op <= DpCmn) {
		v |= 1 << 20
	}
	return v
}

// Shift types for DPReg.
const (
	LSL uint32 = iota
	LSR
	ASR
	ROR
)

func (a *ARM) Mov(rd Reg, imm uint32) *ARM      { return a.DP(DpMov, false, rd, 0, imm) }
func (a *ARM) Mvn(rd Reg, imm uint32) *ARM      { return a.DP(DpMvn, false, rd, 0, imm) }
func (a *ARM) MovReg(rd, rm Reg) *ARM           { return a.DPReg(DpMov, false, rd, 0, rm, LSL, 0) }
func (a *ARM) Add(rd, rn Reg, imm uint32) *ARM  { return a.DP(DpAdd, false, rd, rn, imm) }
func (a *ARM) Sub(rd, rn Reg, imm uint32) *ARM  { return a.DP(DpSub, false, rd, rn, imm) }
func (a *ARM) Subs(rd, rn Reg, imm uint32) *ARM { return a.DP(DpSub, true, rd, rn, imm) }
func (a *ARM) AddReg(rd, rn, rm Reg) *ARM       { return a.DPReg(DpAdd, false, rd, rn, rm, LSL, 0) }
func (a *ARM) SubReg(rd, rn, rm Reg) *ARM       { return a.DPReg(DpSub, false, rd, rn, rm, LSL, 0) }
func (a *ARM) Cmp(rn Reg, imm uint32) *ARM      { return a.DP(DpCmp, true, 0, rn, imm) }
func (a *ARM) CmpReg(rn, rm Reg) *ARM           { return a.DPReg(DpCmp, true, 0, rn, rm, LSL, 0) }

// Mul emits MUL rd, rm, rs.
func (a *ARM) Mul(rd, rm, rs Reg) *ARM {
	return a.emit(0x00000090 | uint32(rd)<<16 | uint32(rs)<<8 | uint32(rm))
}

// Mla emits MLA rd, rm, rs, rn.
func (a *ARM) Mla(rd, rm, rs, rn Reg) *ARM {
	return a.emit(0x00200090 | uint32(rd)<<16 | uint32(rn)<<12 | uint32(rs)<<8 | uint32(rm))
}

func (a *ARM) long(base uint32, lo, hi, rm, rs Reg) *ARM {
	return a.emit(base | uint32(hi)<<16 | uint32(lo)<<12 | uint32(rs)<<8 | uint32(rm))
}

func (a *ARM) Umull(lo, hi, rm, rs Reg) *ARM { return a.long(0x00800090, lo, hi, rm, rs) }
func (a *ARM) Umlal(lo, hi, rm, rs Reg) *ARM { return a.long(0x00a00090, lo, hi, rm, rs) }
func (a *ARM) Smull(lo, hi, rm, rs Reg) *ARM { return a.long(0x00c00090, lo, hi, rm, rs) }
func (a *ARM) Smlal(lo, hi, rm, rs Reg) *ARM { return a.long(0x00e00090, lo, hi, rm, rs) }

// Clz emits CLZ rd, rm.
func (a *ARM) Clz(rd, rm Reg) *ARM {
	return a.emit(0x016f0f10 | uint32(rd)<<12 | uint32(rm))
}

func (a *ARM) transfer(base uint32, rd, rn Reg, off int32) *ARM {
	u := uint32(1 << 23)
	if off < 0 {
		u = 0
		off = -off
	}
	if off > 0xfff {
		a.p.fail("arm: offset %d out of range at %#x", off, a.p.Here())
	}
	return a.emit(base | 1<<24 | u | uint32(rn)<<16 | uint32(rd)<<12 | uint32(off)&0xfff)
}

func (a *ARM) Ldr(rd, rn Reg, off int32) *ARM  { return a.transfer(0x04100000, rd, rn, off) }
func (a *ARM) Str(rd, rn Reg, off int32) *ARM  { return a.transfer(0x04000000, rd, rn, off) }
func (a *ARM) Ldrb(rd, rn Reg, off int32) *ARM { return a.transfer(0x04500000, rd, rn, off) }
func (a *ARM) Strb(rd, rn Reg, off int32) *ARM { return a.transfer(0x04400000, rd, rn, off) }

// LdrPost emits LDR rd, [rn], #off.
func (a *ARM) LdrPost(rd, rn Reg, off int32) *ARM {
	u := uint32(1 << 23)
	if off < 0 {
		u, off = 0, -off
	}
	return a.emit(0x04100000 | u | uint32(rn)<<16 | uint32(rd)<<12 | uint32(off)&0xfff)
}

// StrPre emits STR rd, [rn, #off]!.
func (a *ARM) StrPre(rd, rn Reg, off int32) *ARM {
	u := uint32(1 << 23)
	if off < 0 {
		u, off = 0, -off
	}
	return a.emit(0x05200000 | u | uint32(rn)<<16 | uint32(rd)<<12 | uint32(off)&0xfff)
}

func (a *ARM) half(sh uint32, load bool, rd, rn Reg, off int32) *ARM {
	u := uint32(1 << 23)
	if off < 0 {
		u, off = 0, -off
	}
	if off > 0xff {
		a.p.fail("arm: halfword offset %d out of range at %#x", off, a.p.Here())
	}
	var l uint32
	if load {
		l = 1 << 20
	}
	o := uint32(off)
	return a.emit(0x01400090 | u | l | uint32(rn)<<16 | uint32(rd)<<12 | (o&0xf0)<<4 | sh<<5 | o&0xf)
}

func (a *ARM) Ldrh(rd, rn Reg, off int32) *ARM  { return a.half(1, true, rd, rn, off) }
func (a *ARM) Strh(rd, rn Reg, off int32) *ARM  { return a.half(1, false, rd, rn, off) }
func (a *ARM) Ldrsb(rd, rn Reg, off int32) *ARM { return a.half(2, true, rd, rn, off) }
func (a *ARM) Ldrsh(rd, rn Reg, off int32) *ARM { return a.half(3, true, rd, rn, off) }
func (a *ARM) Ldrd(rd, rn Reg, off int32) *ARM  { return a.half(2, false, rd, rn, off) }
func (a *ARM) Strd(rd, rn Reg, off int32) *ARM  { return a.half(3, false, rd, rn, off) }

// LdrLit emits LDR rd, [pc, #label].
func (a *ARM) LdrLit(rd Reg, label string) *ARM {
	a.p.ref(label, fixARMLdrLit)
	return a.emit(0x05900000 | uint32(PC)<<16 | uint32(rd)<<12)
}

// Block transfer addressing modes.
const (
	DA uint32 = 0
	IA uint32 = 1 << 23
	DB uint32 = 1 << 24
	IB uint32 = 1<<24 | 1<<23
)

func regMask(regs []Reg) uint32 {
	var l uint32
	for _, r := range regs {
		l |= 1 << (r & 15)
	}
	return l
}

// Ldm emits LDM<mode> rn{!}, {regs}.
func (a *ARM) Ldm(mode uint32, rn Reg, writeback bool, regs ...Reg) *ARM {
	return a.emit(0x08100000 | mode | wbit(writeback) | uint32(rn)<<16 | regMask(regs))
}

// Stm emits STM<mode> rn{!}, {regs}.
func (a *ARM) Stm(mode uint32, rn Reg, writeback bool, regs ...Reg) *ARM {
	return a.emit(0x08000000 | mode | wbit(writeback) | uint32(rn)<<16 | regMask(regs))
}

func wbit(on bool) uint32 {
	if on {
		return 1 << 21
	}
	return 0
}

// Push emits STMDB sp!, {regs}.
func (a *ARM) Push(regs ...Reg) *ARM { return a.Stm(DB, SP, true, regs...) }

// Pop emits LDMIA sp!, {regs}.
func (a *ARM) Pop(regs ...Reg) *ARM { return a.Ldm(IA, SP, true, regs...) }

// B emits a branch to label.
func (a *ARM) B(label string) *ARM {
	a.p.ref(label, fixARMBranch)
	return a.emit(0x0a000000)
}

// BL emits a branch with link to an ARM label.
func (a *ARM) BL(label string) *ARM {
	a.p.ref(label, fixARMBranch)
	return a.emit(0x0b000000)
}

// BLX emits a branch with link and exchange to a Thumb label.
func (a *ARM) BLX(label string) *ARM {
	a.p.ref(label, fixARMBLX)
	a.p.emit32(0xfa000000)
	a.cond = AL
	return a
}

// Bx emits BX rm.
func (a *ARM) Bx(rm Reg) *ARM { return a.emit(0x012fff10 | uint32(rm)) }

// Blx emits BLX rm.
func (a *ARM) Blx(rm Reg) *ARM { return a.emit(0x012fff30 | uint32(rm)) }

// Mrs emits MRS rd, CPSR.
func (a *ARM) Mrs(rd Reg) *ARM { return a.emit(0x010f0000 | uint32(rd)<<12) }

// MsrFlags emits MSR CPSR_f, rm.
func (a *ARM) MsrFlags(rm Reg) *ARM { return a.emit(0x0128f000 | uint32(rm)) }

// Svc emits SWI #imm.
func (a *ARM) Svc(imm uint32) *ARM { return a.emit(0x0f000000 | imm&0xffffff) }

// Ret emits BX lr.
func (a *ARM) Ret() *ARM { return a.Bx(LR) }

// Raw emits an arbitrary encoding. The condition field is taken from v.
func (a *ARM) Raw(v uint32) *ARM {
	a.p.emit32(v)
	a.cond = AL
	return a
}

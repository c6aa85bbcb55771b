package arm

import "math/bits"

// armReg reads a register as an ARM-state operand, where PC reads 8 ahead.
func (c *CPU) armReg(n uint32) uint32 {
	if n == PC {
		return c.pc + 8
	}
	return c.Regs.R[n]
}

func (c *CPU) stepARM() error {
	ins, err := c.mem.ReadU32(c.pc)
	if err != nil {
		return err
	}

	cond := ins >> 28
	if cond == 0xf {
		return c.armUnconditional(ins)
	}
	if !c.Regs.conditionPassed(cond) {
		return nil
	}

	switch ins >> 25 & 7 {
	case 0:
		return c.armMisc(ins)
	case 1:
		if ins&0x0fb0f000 == 0x0320f000 {
			return c.armMSR(ins)
		}
		if ins&0x01900000 == 0x01000000 {
			return c.unsupported(ins)
		}
		return c.armDataProcessing(ins)
	case 2:
		return c.armSingleTransfer(ins)
	case 3:
		if ins&0x10 != 0 {
			return c.unsupported(ins)
		}
		return c.armSingleTransfer(ins)
	case 4:
		return c.armBlockTransfer(ins)
	case 5:
		offset := signExtend(ins&0x00ffffff, 24) << 2
		if ins&(1<<24) != 0 {
			c.Regs.R[LR] = c.pc + 4
		}
		c.branch(c.pc + 8 + offset)
		return nil
	default:
		// coprocessor and SWI
		return c.unsupported(ins)
	}
}

func (c *CPU) armUnconditional(ins uint32) error {
	switch {
	case ins&0x0e000000 == 0x0a000000:
		// BLX <label>
		offset := signExtend(ins&0x00ffffff, 24)<<2 | (ins>>24&1)<<1
		c.Regs.R[LR] = c.pc + 4
		c.branchExchange((c.pc + 8 + offset) | 1)
		return nil
	case ins&0x0d70f000 == 0x0550f000:
		// PLD
		return nil
	default:
		return c.unsupported(ins)
	}
}

func (c *CPU) armMisc(ins uint32) error {
	switch {
	case ins&0x0ffffff0 == 0x012fff10:
		c.branchExchange(c.armReg(ins & 0xf))
		return nil
	case ins&0x0ffffff0 == 0x012fff30:
		target := c.armReg(ins & 0xf)
		c.Regs.R[LR] = c.pc + 4
		c.branchExchange(target)
		return nil
	case ins&0x0fff0ff0 == 0x016f0f10:
		c.Regs.R[ins>>12&0xf] = uint32(bits.LeadingZeros32(c.Regs.R[ins&0xf]))
		return nil
	case ins&0x0fc000f0 == 0x00000090:
		return c.armMultiply(ins)
	case ins&0x0f8000f0 == 0x00800090:
		return c.armMultiplyLong(ins)
	case ins&0x0fb00ff0 == 0x01000090:
		return c.armSwap(ins)
	case ins&0x0e000090 == 0x00000090:
		return c.armHalfwordTransfer(ins)
	case ins&0x0fbf0fff == 0x010f0000:
		if ins&(1<<22) != 0 {
			return c.unsupported(ins) // MRS from SPSR
		}
		c.Regs.R[ins>>12&0xf] = c.Regs.CPSR
		return nil
	case ins&0x0fb0fff0 == 0x0120f000:
		return c.armMSR(ins)
	case ins&0x0ff00090 == 0x01000080, ins&0x0ff00090 == 0x01600080:
		return c.armMultiplyHalf(ins)
	case ins&0x01900000 == 0x01000000:
		// TST/TEQ/CMP/CMN without S are the miscellaneous space
		return c.unsupported(ins)
	default:
		return c.armDataProcessing(ins)
	}
}

func (c *CPU) armOperand2(ins uint32) (uint32, bool) {
	carry := c.Regs.C()
	if ins&(1<<25) != 0 {
		rot := (ins >> 8 & 0xf) * 2
		v := bits.RotateLeft32(ins&0xff, -int(rot))
		if rot != 0 {
			carry = v>>31 != 0
		}
		return v, carry
	}

	typ := ins >> 5 & 3
	rm := ins & 0xf
	if ins&0x10 == 0 {
		return shiftImm(typ, c.armReg(rm), ins>>7&0x1f, carry)
	}
	// register-specified shift reads PC 12 ahead
	v := c.armReg(rm)
	if rm == PC {
		v += 4
	}
	return shiftReg(typ, v, c.Regs.R[ins>>8&0xf], carry)
}

func (c *CPU) armDataProcessing(ins uint32) error {
	op := ins >> 21 & 0xf
	setFlags := ins&(1<<20) != 0
	rn := ins >> 16 & 0xf
	rd := ins >> 12 & 0xf

	if setFlags && rd == PC {
		return c.unsupported(ins) // exception return
	}

	a := c.armReg(rn)
	if rn == PC && ins&(1<<25) == 0 && ins&0x10 != 0 {
		a += 4
	}
	b, shiftCarry := c.armOperand2(ins)
	res, write := c.alu(op, a, b, shiftCarry, setFlags)
	if !write {
		return nil
	}
	if rd == PC {
		c.branch(res)
		return nil
	}
	c.Regs.R[rd] = res
	return nil
}

// alu executes a data-processing opcode. write reports whether the result
// goes to the destination register.
func (c *CPU) alu(op, a, b uint32, shiftCarry, setFlags bool) (uint32, bool) {
	r := &c.Regs
	var res uint32
	var carry, overflow bool
	arith := true

	switch op {
	case 0x0, 0x8: // AND, TST
		res, arith = a&b, false
	case 0x1, 0x9: // EOR, TEQ
		res, arith = a^b, false
	case 0x2, 0xa: // SUB, CMP
		res, carry, overflow = addWithCarry(a, ^b, 1)
	case 0x3: // RSB
		res, carry, overflow = addWithCarry(b, ^a, 1)
	case 0x4, 0xb: // ADD, CMN
		res, carry, overflow = addWithCarry(a, b, 0)
	case 0x5: // ADC
		res, carry, overflow = addWithCarry(a, b, r.carry())
	case 0x6: // SBC
		res, carry, overflow = addWithCarry(a, ^b, r.carry())
	case 0x7: // RSC
		res, carry, overflow = addWithCarry(b, ^a, r.carry())
	case 0xc: // ORR
		res, arith = a|b, false
	case 0xd: // MOV
		res, arith = b, false
	case 0xe: // BIC
		res, arith = a&^b, false
	default: // MVN
		res, arith = ^b, false
	}

	if setFlags {
		if arith {
			r.setNZCV(res, carry, overflow)
		} else {
			r.setNZC(res, shiftCarry)
		}
	}
	return res, op < 0x8 || op > 0xb
}

func (c *CPU) armMultiply(ins uint32) error {
	rd := ins >> 16 & 0xf
	res := c.Regs.R[ins&0xf] * c.Regs.R[ins>>8&0xf]
	if ins&(1<<21) != 0 {
		res += c.Regs.R[ins>>12&0xf]
	}
	c.Regs.R[rd] = res
	if ins&(1<<20) != 0 {
		c.Regs.setNZ(res)
	}
	return nil
}

func (c *CPU) armMultiplyLong(ins uint32) error {
	hi := ins >> 16 & 0xf
	lo := ins >> 12 & 0xf
	rm := c.Regs.R[ins&0xf]
	rs := c.Regs.R[ins>>8&0xf]

	var res uint64
	if ins&(1<<22) != 0 {
		res = uint64(int64(int32(rm)) * int64(int32(rs)))
	} else {
		res = uint64(rm) * uint64(rs)
	}
	if ins&(1<<21) != 0 {
		res += uint64(c.Regs.R[hi])<<32 | uint64(c.Regs.R[lo])
	}

	c.Regs.R[lo] = uint32(res)
	c.Regs.R[hi] = uint32(res >> 32)
	if ins&(1<<20) != 0 {
		c.Regs.setFlag(FlagN, res>>63 != 0)
		c.Regs.setFlag(FlagZ, res == 0)
	}
	return nil
}

// armMultiplyHalf covers SMLA<x><y> and SMUL<x><y>.
func (c *CPU) armMultiplyHalf(ins uint32) error {
	half := func(v uint32, top bool) int32 {
		if top {
			return int32(v) >> 16
		}
		return int32(int16(v))
	}
	a := half(c.Regs.R[ins&0xf], ins&(1<<5) != 0)
	b := half(c.Regs.R[ins>>8&0xf], ins&(1<<6) != 0)
	res := uint32(a * b)

	if ins&0x0ff00000 == 0x01000000 {
		res += c.Regs.R[ins>>12&0xf]
	}
	c.Regs.R[ins>>16&0xf] = res
	return nil
}

func (c *CPU) armSwap(ins uint32) error {
	addr := c.Regs.R[ins>>16&0xf]
	src := c.Regs.R[ins&0xf]
	rd := ins >> 12 & 0xf

	if ins&(1<<22) != 0 {
		old, err := c.mem.ReadU8(addr)
		if err != nil {
			return err
		}
		if err := c.mem.WriteU8(addr, uint8(src)); err != nil {
			return err
		}
		c.Regs.R[rd] = uint32(old)
		return nil
	}

	old, err := c.loadWord(addr)
	if err != nil {
		return err
	}
	if err := c.mem.WriteU32(addr&^3, src); err != nil {
		return err
	}
	c.Regs.R[rd] = old
	return nil
}

func (c *CPU) armMSR(ins uint32) error {
	if ins&(1<<22) != 0 {
		return c.unsupported(ins) // SPSR
	}
	var v uint32
	if ins&(1<<25) != 0 {
		v = bits.RotateLeft32(ins&0xff, -int((ins>>8&0xf)*2))
	} else {
		v = c.Regs.R[ins&0xf]
	}
	// only the flags field is honoured; mode and state stay fixed
	if ins&(1<<19) != 0 {
		c.Regs.CPSR = c.Regs.CPSR&0x00ffffff | v&0xff000000
	}
	return nil
}

func (c *CPU) armSingleTransfer(ins uint32) error {
	pre := ins&(1<<24) != 0
	up := ins&(1<<23) != 0
	byteSize := ins&(1<<22) != 0
	wb := ins&(1<<21) != 0
	load := ins&(1<<20) != 0
	rn := ins >> 16 & 0xf
	rd := ins >> 12 & 0xf

	var offset uint32
	if ins&(1<<25) == 0 {
		offset = ins & 0xfff
	} else {
		offset, _ = shiftImm(ins>>5&3, c.armReg(ins&0xf), ins>>7&0x1f, c.Regs.C())
	}

	base := c.armReg(rn)
	target := base + offset
	if !up {
		target = base - offset
	}
	addr := base
	if pre {
		addr = target
	}
	writeback := !pre || wb

	if load {
		var v uint32
		var err error
		if byteSize {
			var b uint8
			b, err = c.mem.ReadU8(addr)
			v = uint32(b)
		} else {
			v, err = c.loadWord(addr)
		}
		if err != nil {
			return err
		}
		if writeback && rn != PC {
			c.Regs.R[rn] = target
		}
		if rd == PC {
			c.branchExchange(v)
			return nil
		}
		c.Regs.R[rd] = v
		return nil
	}

	v := c.armReg(rd)
	if rd == PC {
		v += 4
	}
	var err error
	if byteSize {
		err = c.mem.WriteU8(addr, uint8(v))
	} else {
		err = c.mem.WriteU32(addr&^3, v)
	}
	if err != nil {
		return err
	}
	if writeback && rn != PC {
		c.Regs.R[rn] = target
	}
	return nil
}

func (c *CPU) armHalfwordTransfer(ins uint32) error {
	pre := ins&(1<<24) != 0
	up := ins&(1<<23) != 0
	wb := ins&(1<<21) != 0
	load := ins&(1<<20) != 0
	rn := ins >> 16 & 0xf
	rd := ins >> 12 & 0xf
	sh := ins >> 5 & 3

	var offset uint32
	if ins&(1<<22) != 0 {
		offset = ins>>4&0xf0 | ins&0xf
	} else {
		offset = c.Regs.R[ins&0xf]
	}

	base := c.armReg(rn)
	target := base + offset
	if !up {
		target = base - offset
	}
	addr := base
	if pre {
		addr = target
	}
	writeback := (!pre || wb) && rn != PC

	switch {
	case load && sh == 1: // LDRH
		v, err := c.mem.ReadU16(addr &^ 1)
		if err != nil {
			return err
		}
		c.finishLoad(rn, rd, target, writeback, uint32(v))
	case load && sh == 2: // LDRSB
		v, err := c.mem.ReadU8(addr)
		if err != nil {
			return err
		}
		c.finishLoad(rn, rd, target, writeback, uint32(int32(int8(v))))
	case load && sh == 3: // LDRSH
		v, err := c.mem.ReadU16(addr &^ 1)
		if err != nil {
			return err
		}
		c.finishLoad(rn, rd, target, writeback, uint32(int32(int16(v))))
	case sh == 1: // STRH
		if err := c.mem.WriteU16(addr&^1, uint16(c.armReg(rd))); err != nil {
			return err
		}
		if writeback {
			c.Regs.R[rn] = target
		}
	case sh == 2: // LDRD
		if rd&1 != 0 || rd == LR {
			return c.unsupported(ins)
		}
		vals, err := c.loadBlock(addr, 2)
		if err != nil {
			return err
		}
		if writeback {
			c.Regs.R[rn] = target
		}
		c.Regs.R[rd], c.Regs.R[rd+1] = vals[0], vals[1]
	case sh == 3: // STRD
		if rd&1 != 0 || rd == LR {
			return c.unsupported(ins)
		}
		if err := c.storeBlock(addr, []uint32{c.Regs.R[rd], c.Regs.R[rd+1]}); err != nil {
			return err
		}
		if writeback {
			c.Regs.R[rn] = target
		}
	default:
		return c.unsupported(ins)
	}
	return nil
}

func (c *CPU) finishLoad(rn, rd, target uint32, writeback bool, v uint32) {
	if writeback {
		c.Regs.R[rn] = target
	}
	if rd == PC {
		c.branchExchange(v)
		return
	}
	c.Regs.R[rd] = v
}

func (c *CPU) armBlockTransfer(ins uint32) error {
	if ins&(1<<22) != 0 {
		return c.unsupported(ins) // user bank or exception return
	}
	list := ins & 0xffff
	if list == 0 {
		return c.unsupported(ins)
	}

	pre := ins&(1<<24) != 0
	up := ins&(1<<23) != 0
	wb := ins&(1<<21) != 0
	load := ins&(1<<20) != 0
	rn := ins >> 16 & 0xf

	n := uint32(bits.OnesCount32(list))
	base := c.Regs.R[rn]
	var start, final uint32
	if up {
		start, final = base, base+4*n
		if pre {
			start += 4
		}
	} else {
		start, final = base-4*n, base-4*n
		if !pre {
			start += 4
		}
	}

	if load {
		vals, err := c.loadBlock(start, int(n))
		if err != nil {
			return err
		}
		if wb {
			c.Regs.R[rn] = final
		}
		i := 0
		for r := 0; r < 16; r++ {
			if list&(1<<r) == 0 {
				continue
			}
			if r == PC {
				c.branchExchange(vals[i])
			} else {
				c.Regs.R[r] = vals[i]
			}
			i++
		}
		return nil
	}

	vals := make([]uint32, 0, n)
	for r := uint32(0); r < 16; r++ {
		if list&(1<<r) == 0 {
			continue
		}
		v := c.Regs.R[r]
		if r == PC {
			v = c.pc + 12
		}
		vals = append(vals, v)
	}
	if err := c.storeBlock(start, vals); err != nil {
		return err
	}
	if wb {
		c.Regs.R[rn] = final
	}
	return nil
}

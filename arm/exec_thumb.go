package arm

import "math/bits"

// thumbReg reads a register as a Thumb-state operand, where PC reads 4 ahead.
func (c *CPU) thumbReg(n uint32) uint32 {
	if n == PC {
		return c.pc + 4
	}
	return c.Regs.R[n]
}

func (c *CPU) stepThumb() error {
	op16, err := c.mem.ReadU16(c.pc)
	if err != nil {
		return err
	}
	op := uint32(op16)
	r := &c.Regs

	switch op >> 13 {
	case 0:
		if op>>11 == 3 {
			return c.thumbAddSub(op)
		}
		// LSL/LSR/ASR #imm5
		rd := op & 7
		res, carry := shiftImm(op>>11&3, r.R[op>>3&7], op>>6&0x1f, r.C())
		r.R[rd] = res
		r.setNZC(res, carry)
		return nil

	case 1:
		// MOV/CMP/ADD/SUB #imm8
		rd := op >> 8 & 7
		imm := op & 0xff
		switch op >> 11 & 3 {
		case 0:
			r.R[rd] = imm
			r.setNZ(imm)
		case 1:
			res, c2, v := addWithCarry(r.R[rd], ^imm, 1)
			r.setNZCV(res, c2, v)
		case 2:
			res, c2, v := addWithCarry(r.R[rd], imm, 0)
			r.R[rd] = res
			r.setNZCV(res, c2, v)
		default:
			res, c2, v := addWithCarry(r.R[rd], ^imm, 1)
			r.R[rd] = res
			r.setNZCV(res, c2, v)
		}
		return nil

	case 2:
		switch {
		case op>>10 == 0x10:
			return c.thumbALU(op)
		case op>>10 == 0x11:
			return c.thumbHiReg(op)
		case op>>11 == 0x09:
			// LDR Rd, [PC, #imm8*4]
			addr := (c.pc+4)&^3 + (op&0xff)<<2
			v, err := c.mem.ReadU32(addr)
			if err != nil {
				return err
			}
			r.R[op>>8&7] = v
			return nil
		default:
			return c.thumbRegOffset(op)
		}

	case 3:
		// LDR/STR/LDRB/STRB Rd, [Rb, #imm5]
		rd := op & 7
		base := r.R[op>>3&7]
		off := op >> 6 & 0x1f
		byteSize := op&(1<<12) != 0
		load := op&(1<<11) != 0
		if !byteSize {
			off <<= 2
		}
		return c.thumbTransfer(base+off, rd, load, byteSize)

	case 4:
		if op&(1<<12) == 0 {
			// LDRH/STRH Rd, [Rb, #imm5*2]
			addr := r.R[op>>3&7] + (op>>6&0x1f)<<1
			rd := op & 7
			if op&(1<<11) != 0 {
				v, err := c.mem.ReadU16(addr &^ 1)
				if err != nil {
					return err
				}
				r.R[rd] = uint32(v)
				return nil
			}
			return c.mem.WriteU16(addr&^1, uint16(r.R[rd]))
		}
		// LDR/STR Rd, [SP, #imm8*4]
		addr := r.R[SP] + (op&0xff)<<2
		return c.thumbTransfer(addr, op>>8&7, op&(1<<11) != 0, false)

	case 5:
		if op&(1<<12) == 0 {
			// ADD Rd, PC/SP, #imm8*4
			base := (c.pc + 4) &^ 3
			if op&(1<<11) != 0 {
				base = r.R[SP]
			}
			r.R[op>>8&7] = base + (op&0xff)<<2
			return nil
		}
		return c.thumbMisc(op)

	case 6:
		if op&(1<<12) == 0 {
			return c.thumbMultiple(op)
		}
		cond := op >> 8 & 0xf
		if cond >= 0xe {
			return c.unsupported(op) // undefined and SWI
		}
		if r.conditionPassed(cond) {
			c.branch(c.pc + 4 + signExtend(op&0xff, 8)<<1)
		}
		return nil

	default:
		return c.thumbBranch(op)
	}
}

func (c *CPU) thumbAddSub(op uint32) error {
	r := &c.Regs
	rd := op & 7
	a := r.R[op>>3&7]
	b := op >> 6 & 7
	if op&(1<<10) == 0 {
		b = r.R[b]
	}
	var res uint32
	var carry, overflow bool
	if op&(1<<9) != 0 {
		res, carry, overflow = addWithCarry(a, ^b, 1)
	} else {
		res, carry, overflow = addWithCarry(a, b, 0)
	}
	r.R[rd] = res
	r.setNZCV(res, carry, overflow)
	return nil
}

func (c *CPU) thumbALU(op uint32) error {
	r := &c.Regs
	rd := op & 7
	a := r.R[rd]
	b := r.R[op>>3&7]

	switch op >> 6 & 0xf {
	case 0x0: // AND
		r.R[rd] = a & b
		r.setNZ(a & b)
	case 0x1: // EOR
		r.R[rd] = a ^ b
		r.setNZ(a ^ b)
	case 0x2: // LSL
		res, carry := shiftReg(shiftLSL, a, b, r.C())
		r.R[rd] = res
		r.setNZC(res, carry)
	case 0x3: // LSR
		res, carry := shiftReg(shiftLSR, a, b, r.C())
		r.R[rd] = res
		r.setNZC(res, carry)
	case 0x4: // ASR
		res, carry := shiftReg(shiftASR, a, b, r.C())
		r.R[rd] = res
		r.setNZC(res, carry)
	case 0x5: // ADC
		res, carry, v := addWithCarry(a, b, r.carry())
		r.R[rd] = res
		r.setNZCV(res, carry, v)
	case 0x6: // SBC
		res, carry, v := addWithCarry(a, ^b, r.carry())
		r.R[rd] = res
		r.setNZCV(res, carry, v)
	case 0x7: // ROR
		res, carry := shiftReg(shiftROR, a, b, r.C())
		r.R[rd] = res
		r.setNZC(res, carry)
	case 0x8: // TST
		r.setNZ(a & b)
	case 0x9: // NEG
		res, carry, v := addWithCarry(0, ^b, 1)
		r.R[rd] = res
		r.setNZCV(res, carry, v)
	case 0xa: // CMP
		res, carry, v := addWithCarry(a, ^b, 1)
		r.setNZCV(res, carry, v)
	case 0xb: // CMN
		res, carry, v := addWithCarry(a, b, 0)
		r.setNZCV(res, carry, v)
	case 0xc: // ORR
		r.R[rd] = a | b
		r.setNZ(a | b)
	case 0xd: // MUL
		r.R[rd] = a * b
		r.setNZ(a * b)
	case 0xe: // BIC
		r.R[rd] = a &^ b
		r.setNZ(a &^ b)
	default: // MVN
		r.R[rd] = ^b
		r.setNZ(^b)
	}
	return nil
}

func (c *CPU) thumbHiReg(op uint32) error {
	r := &c.Regs
	rd := op&7 | op>>4&8
	rm := op >> 3 & 0xf

	switch op >> 8 & 3 {
	case 0: // ADD
		res := c.thumbReg(rd) + c.thumbReg(rm)
		if rd == PC {
			c.branch(res)
			return nil
		}
		r.R[rd] = res
	case 1: // CMP
		res, carry, v := addWithCarry(c.thumbReg(rd), ^c.thumbReg(rm), 1)
		r.setNZCV(res, carry, v)
	case 2: // MOV
		v := c.thumbReg(rm)
		if rd == PC {
			c.branch(v)
			return nil
		}
		r.R[rd] = v
	default: // BX/BLX
		target := c.thumbReg(rm)
		if op&(1<<7) != 0 {
			r.R[LR] = (c.pc + 2) | 1
		}
		c.branchExchange(target)
	}
	return nil
}

func (c *CPU) thumbRegOffset(op uint32) error {
	r := &c.Regs
	rd := op & 7
	addr := r.R[op>>3&7] + r.R[op>>6&7]

	if op&(1<<9) == 0 {
		// LDR/STR/LDRB/STRB Rd, [Rb, Ro]
		return c.thumbTransfer(addr, rd, op&(1<<11) != 0, op&(1<<10) != 0)
	}

	switch op >> 10 & 3 {
	case 0: // STRH
		return c.mem.WriteU16(addr&^1, uint16(r.R[rd]))
	case 1: // LDSB
		v, err := c.mem.ReadU8(addr)
		if err != nil {
			return err
		}
		r.R[rd] = uint32(int32(int8(v)))
	case 2: // LDRH
		v, err := c.mem.ReadU16(addr &^ 1)
		if err != nil {
			return err
		}
		r.R[rd] = uint32(v)
	default: // LDSH
		v, err := c.mem.ReadU16(addr &^ 1)
		if err != nil {
			return err
		}
		r.R[rd] = uint32(int32(int16(v)))
	}
	return nil
}

func (c *CPU) thumbTransfer(addr, rd uint32, load, byteSize bool) error {
	r := &c.Regs
	switch {
	case load && byteSize:
		v, err := c.mem.ReadU8(addr)
		if err != nil {
			return err
		}
		r.R[rd] = uint32(v)
	case load:
		v, err := c.loadWord(addr)
		if err != nil {
			return err
		}
		r.R[rd] = v
	case byteSize:
		return c.mem.WriteU8(addr, uint8(r.R[rd]))
	default:
		return c.mem.WriteU32(addr&^3, r.R[rd])
	}
	return nil
}

func (c *CPU) thumbMisc(op uint32) error {
	r := &c.Regs
	switch {
	case op&0xff00 == 0xb000:
		// ADD/SUB SP, #imm7*4
		off := (op & 0x7f) << 2
		if op&(1<<7) != 0 {
			r.R[SP] -= off
		} else {
			r.R[SP] += off
		}
		return nil

	case op&0xff00 == 0xb200:
		rd := op & 7
		v := r.R[op>>3&7]
		switch op >> 6 & 3 {
		case 0: // SXTH
			r.R[rd] = uint32(int32(int16(v)))
		case 1: // SXTB
			r.R[rd] = uint32(int32(int8(v)))
		case 2: // UXTH
			r.R[rd] = v & 0xffff
		default: // UXTB
			r.R[rd] = v & 0xff
		}
		return nil

	case op&0xf600 == 0xb400:
		list := op & 0xff
		load := op&(1<<11) != 0
		extra := op&(1<<8) != 0
		n := uint32(bits.OnesCount32(list))
		if extra {
			n++
		}
		if n == 0 {
			return c.unsupported(op)
		}

		if !load {
			// PUSH
			vals := make([]uint32, 0, n)
			for i := uint32(0); i < 8; i++ {
				if list&(1<<i) != 0 {
					vals = append(vals, r.R[i])
				}
			}
			if extra {
				vals = append(vals, r.R[LR])
			}
			sp := r.R[SP] - 4*n
			if err := c.storeBlock(sp, vals); err != nil {
				return err
			}
			r.R[SP] = sp
			return nil
		}

		// POP
		vals, err := c.loadBlock(r.R[SP], int(n))
		if err != nil {
			return err
		}
		r.R[SP] += 4 * n
		k := 0
		for i := uint32(0); i < 8; i++ {
			if list&(1<<i) != 0 {
				r.R[i] = vals[k]
				k++
			}
		}
		if extra {
			c.branchExchange(vals[k])
		}
		return nil

	default:
		// BKPT and ARMv6 extensions
		return c.unsupported(op)
	}
}

func (c *CPU) thumbMultiple(op uint32) error {
	r := &c.Regs
	rb := op >> 8 & 7
	list := op & 0xff
	if list == 0 {
		return c.unsupported(op)
	}
	n := bits.OnesCount32(list)
	base := r.R[rb]

	if op&(1<<11) != 0 {
		vals, err := c.loadBlock(base, n)
		if err != nil {
			return err
		}
		r.R[rb] = base + 4*uint32(n)
		k := 0
		for i := uint32(0); i < 8; i++ {
			if list&(1<<i) != 0 {
				r.R[i] = vals[k]
				k++
			}
		}
		return nil
	}

	vals := make([]uint32, 0, n)
	for i := uint32(0); i < 8; i++ {
		if list&(1<<i) != 0 {
			vals = append(vals, r.R[i])
		}
	}
	if err := c.storeBlock(base, vals); err != nil {
		return err
	}
	r.R[rb] = base + 4*uint32(n)
	return nil
}

func (c *CPU) thumbBranch(op uint32) error {
	r := &c.Regs
	off := op & 0x7ff

	switch op >> 11 {
	case 0x1c: // B
		c.branch(c.pc + 4 + signExtend(off, 11)<<1)
	case 0x1d: // BLX suffix
		if off&1 != 0 {
			return c.unsupported(op)
		}
		target := (r.R[LR] + off<<1) &^ 3
		r.R[LR] = (c.pc + 2) | 1
		c.branchExchange(target)
	case 0x1e: // BL/BLX prefix
		r.R[LR] = c.pc + 4 + signExtend(off, 11)<<12
	default: // BL suffix
		target := r.R[LR] + off<<1
		r.R[LR] = (c.pc + 2) | 1
		c.branch(target)
	}
	return nil
}

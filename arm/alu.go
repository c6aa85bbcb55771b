package arm

import "math/bits"

// Shift types as encoded in bits 6:5 of ARM data-processing operands.
const (
	shiftLSL = 0
	shiftLSR = 1
	shiftASR = 2
	shiftROR = 3
)

// shiftImm applies an immediate-amount shift, where an amount of zero
// encodes LSR #32, ASR #32 and RRX.
func shiftImm(typ, v, amt uint32, c bool) (uint32, bool) {
	switch typ {
	case shiftLSL:
		if amt == 0 {
			return v, c
		}
		return v << amt, v>>(32-amt)&1 != 0
	case shiftLSR:
		if amt == 0 {
			return 0, v>>31 != 0
		}
		return v >> amt, v>>(amt-1)&1 != 0
	case shiftASR:
		if amt == 0 {
			if v>>31 != 0 {
				return 0xffffffff, true
			}
			return 0, false
		}
		return uint32(int32(v) >> amt), v>>(amt-1)&1 != 0
	default:
		if amt == 0 {
			var in uint32
			if c {
				in = 1 << 31
			}
			return in | v>>1, v&1 != 0
		}
		r := bits.RotateLeft32(v, -int(amt))
		return r, r>>31 != 0
	}
}

// shiftReg applies a register-amount shift. Only the low byte of the
// amount register is significant.
func shiftReg(typ, v, amt uint32, c bool) (uint32, bool) {
	amt &= 0xff
	if amt == 0 {
		return v, c
	}
	switch typ {
	case shiftLSL:
		switch {
		case amt < 32:
			return v << amt, v>>(32-amt)&1 != 0
		case amt == 32:
			return 0, v&1 != 0
		default:
			return 0, false
		}
	case shiftLSR:
		switch {
		case amt < 32:
			return v >> amt, v>>(amt-1)&1 != 0
		case amt == 32:
			return 0, v>>31 != 0
		default:
			return 0, false
		}
	case shiftASR:
		if amt < 32 {
			return uint32(int32(v) >> amt), v>>(amt-1)&1 != 0
		}
		if v>>31 != 0 {
			return 0xffffffff, true
		}
		return 0, false
	default:
		amt &= 31
		if amt == 0 {
			return v, v>>31 != 0
		}
		r := bits.RotateLeft32(v, -int(amt))
		return r, r>>31 != 0
	}
}

// addWithCarry returns a+b+cin with the carry-out and signed overflow.
func addWithCarry(a, b, cin uint32) (uint32, bool, bool) {
	sum := uint64(a) + uint64(b) + uint64(cin)
	r := uint32(sum)
	return r, sum>>32 != 0, (a^r)&(b^r)&0x80000000 != 0
}

// conditionPassed evaluates a 4-bit condition code against the flags.
func (r *Registers) conditionPassed(cond uint32) bool {
	switch cond {
	case 0x0:
		return r.Z()
	case 0x1:
		return !r.Z()
	case 0x2:
		return r.C()
	case 0x3:
		return !r.C()
	case 0x4:
		return r.N()
	case 0x5:
		return !r.N()
	case 0x6:
		return r.V()
	case 0x7:
		return !r.V()
	case 0x8:
		return r.C() && !r.Z()
	case 0x9:
		return !r.C() || r.Z()
	case 0xa:
		return r.N() == r.V()
	case 0xb:
		return r.N() != r.V()
	case 0xc:
		return !r.Z() && r.N() == r.V()
	case 0xd:
		return r.Z() || r.N() != r.V()
	default:
		return true
	}
}

func signExtend(v uint32, width uint) uint32 {
	shift := 32 - width
	return uint32(int32(v<<shift) >> shift)
}

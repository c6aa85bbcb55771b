package arm

import (
	stderrors "errors"

	armruntime "github.com/wippyai/arm-runtime"
	"github.com/wippyai/arm-runtime/errors"
)

// State is the interpreter's run state.
type State uint8

const (
	Running State = iota
	HaltedAtReturn
	Faulted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case HaltedAtReturn:
		return "halted"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Hook is consulted before each instruction fetch. Returning handled=true
// means the hook has already updated the registers and the fetch is skipped.
type Hook func(pc uint32) (handled bool, err error)

// CPU interprets ARM and Thumb instructions against a guest address space.
type CPU struct {
	mem   armruntime.Memory
	Regs  Registers
	steps uint64
	state State

	// per-instruction scratch
	pc       uint32
	branched bool
}

// New creates a CPU in ARM state, system mode, with all registers zero.
func New(mem armruntime.Memory) *CPU {
	c := &CPU{mem: mem}
	c.Regs.Reset()
	return c
}

// Memory returns the address space the CPU executes against.
func (c *CPU) Memory() armruntime.Memory { return c.mem }

// State returns the state left by the last Step or Run.
func (c *CPU) State() State { return c.state }

// Steps returns the number of instructions executed so far.
func (c *CPU) Steps() uint64 { return c.steps }

// Step executes the instruction at PC.
func (c *CPU) Step() error {
	c.pc = c.Regs.R[PC]
	c.branched = false

	var err error
	size := uint32(4)
	if c.Regs.Thumb() {
		size = 2
		err = c.stepThumb()
	} else {
		err = c.stepARM()
	}
	if err != nil {
		c.Regs.R[PC] = c.pc
		c.state = Faulted
		return c.fault(err)
	}

	if !c.branched {
		c.Regs.R[PC] = c.pc + size
	}
	c.steps++
	c.state = Running
	return nil
}

func (c *CPU) fault(err error) error {
	var e *errors.Error
	if stderrors.As(err, &e) && (e.Phase == errors.PhaseDecode || e.Phase == errors.PhaseExecute) {
		return err
	}
	return errors.Fault(c.pc, err)
}

// Run executes until PC reaches stop or an error occurs. The Thumb bit of
// stop is ignored.
func (c *CPU) Run(stop uint32, hook Hook) error {
	stop &^= 1
	c.state = Running
	for {
		pc := c.Regs.R[PC]
		if pc == stop {
			c.state = HaltedAtReturn
			return nil
		}

		if hook != nil {
			handled, err := hook(pc)
			if err != nil {
				c.state = Faulted
				return err
			}
			if handled {
				continue
			}
		}

		if err := c.Step(); err != nil {
			debugf("fault at %#08x: %v", pc, err)
			return err
		}
	}
}

// Jump sets PC to target as BX would, so bit 0 selects Thumb state.
func (c *CPU) Jump(target uint32) {
	c.branchExchange(target)
}

// branch redirects execution without changing instruction set.
func (c *CPU) branch(target uint32) {
	if c.Regs.Thumb() {
		c.Regs.R[PC] = target &^ 1
	} else {
		c.Regs.R[PC] = target &^ 3
	}
	c.branched = true
}

// branchExchange redirects execution, selecting Thumb when bit 0 is set.
func (c *CPU) branchExchange(target uint32) {
	if target&1 != 0 {
		c.Regs.SetThumb(true)
		c.Regs.R[PC] = target &^ 1
	} else {
		c.Regs.SetThumb(false)
		c.Regs.R[PC] = target &^ 3
	}
	c.branched = true
}

func (c *CPU) unsupported(encoding uint32) error {
	thumb := c.Regs.Thumb()
	var text string
	if thumb {
		text = thumbText(uint16(encoding))
	} else {
		text = armText(encoding)
	}
	return errors.UnsupportedInstruction(c.pc, encoding, thumb, text)
}

// loadWord performs an ARM LDR: unaligned addresses rotate the aligned word.
func (c *CPU) loadWord(addr uint32) (uint32, error) {
	v, err := c.mem.ReadU32(addr &^ 3)
	if err != nil {
		return 0, err
	}
	rot := (addr & 3) * 8
	return v>>rot | v<<(32-rot), nil
}

func (c *CPU) loadBlock(addr uint32, n int) ([]uint32, error) {
	raw, err := c.mem.Read(addr&^3, uint32(n)*4)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		b := raw[i*4:]
		out[i] = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	}
	return out, nil
}

func (c *CPU) storeBlock(addr uint32, vals []uint32) error {
	raw := make([]byte, len(vals)*4)
	for i, v := range vals {
		raw[i*4] = byte(v)
		raw[i*4+1] = byte(v >> 8)
		raw[i*4+2] = byte(v >> 16)
		raw[i*4+3] = byte(v >> 24)
	}
	return c.mem.Write(addr&^3, raw)
}

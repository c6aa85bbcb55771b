// Package arm implements the register file and instruction interpreter.
//
// The CPU executes ARMv5TE-class code in both ARM and Thumb state against
// an armruntime.Memory. It models exactly the architectural state guest
// code can observe: sixteen general registers and the condition flags and
// T bit of the CPSR. Timing, caches, exception modes and coprocessors are
// not modelled; instructions that need them fault as unsupported.
//
// R[PC] always holds the address of the next instruction to execute.
// Reads of PC as an operand see it 8 bytes ahead in ARM state and 4 bytes
// ahead in Thumb state, as on hardware.
//
// # Running
//
// Step executes one instruction. Run loops until PC reaches a stop address:
//
//	cpu := arm.New(mem)
//	cpu.Regs.R[arm.LR] = sentinel
//	cpu.Regs.R[arm.PC] = entry
//	err := cpu.Run(sentinel, func(pc uint32) (bool, error) {
//	    // claim native stub addresses before they are fetched
//	    return false, nil
//	})
//
// # Interworking
//
// BX, BLX, loads into PC (LDR, LDM, POP) select the instruction set from
// bit 0 of the target address. B, BL and data-processing writes to PC stay
// in the current state.
//
// # Faults
//
// Memory errors surface as execute-phase faults naming the PC. Undefined,
// unsupported and coprocessor encodings, SWI and BKPT surface as
// decode-phase unsupported errors carrying a disassembly of the encoding.
package arm

// Package asm assembles ARM and Thumb machine code from Go.
//
// It is a small, label-aware encoder for building guest programs in tests,
// examples and tooling without an external toolchain:
//
//	p := asm.New(0x100000)
//	t := p.Thumb()
//	t.Label("main").
//	    Push(asm.R4, asm.LR).
//	    Movs(asm.R0, 42).
//	    BL("helper").
//	    Pop(asm.R4, asm.PC)
//	t.Label("helper").
//	    AddsImm(asm.R0, 1).
//	    Bx(asm.LR)
//	image, err := p.Assemble()
//
// Thumb and ARM writers can be mixed in one program; use Program.Align
// before switching to ARM code. Branch and literal references to labels
// are resolved by Assemble, which reports out-of-range or undefined
// targets. Encoding errors are sticky: the first one is returned by
// Assemble.
//
// Supported: the ARMv4T Thumb instruction set plus BLX and the ARMv6
// extend instructions, and the ARM data-processing, multiply, load/store
// and branch instructions executed by package arm.
package asm

package asm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func halfwords(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return out
}

func words(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

func TestThumbEncodings(t *testing.T) {
	tests := []struct {
		name string
		emit func(*Thumb)
		want uint16
	}{
		{"movs r0, #42", func(t *Thumb) { t.Movs(R0, 42) }, 0x202a},
		{"adds r1, r2, r3", func(t *Thumb) { t.Adds(R1, R2, R3) }, 0x18d1},
		{"lsls r0, r1, #2", func(t *Thumb) { t.LslImm(R0, R1, 2) }, 0x0088},
		{"muls r2, r3", func(t *Thumb) { t.Muls(R2, R3) }, 0x435a},
		{"mov r8, r0", func(t *Thumb) { t.Mov(R8, R0) }, 0x4680},
		{"bx lr", func(t *Thumb) { t.Bx(LR) }, 0x4770},
		{"blx r3", func(t *Thumb) { t.Blx(R3) }, 0x4798},
		{"push {r4, lr}", func(t *Thumb) { t.Push(R4, LR) }, 0xb510},
		{"pop {r4, pc}", func(t *Thumb) { t.Pop(R4, PC) }, 0xbd10},
		{"ldr r0, [r1, #4]", func(t *Thumb) { t.Ldr(R0, R1, 4) }, 0x6848},
		{"str r0, [sp, #8]", func(t *Thumb) { t.Str(R0, SP, 8) }, 0x9002},
		{"sub sp, #16", func(t *Thumb) { t.SubSP(16) }, 0xb084},
		{"sxth r0, r1", func(t *Thumb) { t.Sxth(R0, R1) }, 0xb208},
		{"uxtb r2, r2", func(t *Thumb) { t.Uxtb(R2, R2) }, 0xb2d2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(0)
			tt.emit(p.Thumb())
			b, err := p.Assemble()
			require.NoError(t, err)
			assert.Equal(t, []uint16{tt.want}, halfwords(b))
		})
	}
}

func TestThumbBranches(t *testing.T) {
	p := New(0x8000)
	th := p.Thumb()
	th.Label("top").
		BCond(NE, "top").
		B("end").
		BL("end").
		Label("end").
		Bx(LR)

	b, err := p.Assemble()
	require.NoError(t, err)
	hw := halfwords(b)

	assert.Equal(t, uint16(0xd1fe), hw[0], "bne to self")
	assert.Equal(t, uint16(0xe001), hw[1], "b skips the bl pair")
	assert.Equal(t, uint16(0xf000), hw[2])
	assert.Equal(t, uint16(0xf800), hw[3])
}

func TestARMEncodings(t *testing.T) {
	p := New(0x1000)
	a := p.ARM()
	a.Mov(R0, 0xff000000).
		AddReg(R1, R2, R3).
		If(EQ).Sub(R4, R4, 1).
		Push(R4, LR).
		Ldr(R0, R1, -4).
		Ret()

	b, err := p.Assemble()
	require.NoError(t, err)
	assert.Equal(t, []uint32{
		0xe3a004ff,
		0xe0821003,
		0x02444001,
		0xe92d4010,
		0xe5110004,
		0xe12fff1e,
	}, words(b))
}

func TestLiteralsAndWords(t *testing.T) {
	p := New(0x2000)
	th := p.Thumb()
	th.LdrLit(R0, "value").Bx(LR)
	p.Align(4).Label("value").Word(0xdeadbeef)
	p.WordAddr("value", true)

	b, err := p.Assemble()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x4800), halfwords(b)[0])
	assert.Equal(t, uint32(0x2005), binary.LittleEndian.Uint32(b[8:]))
}

func TestErrors(t *testing.T) {
	p := New(0)
	p.Thumb().Movs(R8, 1)
	_, err := p.Assemble()
	assert.Error(t, err)

	p = New(0)
	p.ARM().Mov(R0, 0x101)
	_, err = p.Assemble()
	assert.Error(t, err)

	p = New(0)
	p.Thumb().B("nowhere")
	_, err = p.Assemble()
	assert.ErrorContains(t, err, "nowhere")
}

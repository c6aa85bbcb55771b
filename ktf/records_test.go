package ktf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/arm-runtime/memory"
	"github.com/wippyai/arm-runtime/record"
)

func TestRecordSizes(t *testing.T) {
	tests := []struct {
		name string
		size func() (uint32, error)
		want uint32
	}{
		{"InitParam0", record.Size[InitParam0], 4},
		{"InitParam1", record.Size[InitParam1], 4},
		{"InitParam1Unk", record.Size[InitParam1Unk], 128},
		{"InitParam2", record.Size[InitParam2], 268},
		{"InitParam3", record.Size[InitParam3], 48},
		{"InitParam4", record.Size[InitParam4], 48},
		{"WipiExe", record.Size[WipiExe], 40},
		{"ExeInterface", record.Size[ExeInterface], 32},
		{"ExeInterfaceFunctions", record.Size[ExeInterfaceFunctions], 28},
		{"Peb", record.Size[Peb], 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.size()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitParam0_FourZeroBytes(t *testing.T) {
	mem := memory.New(0x40)
	require.NoError(t, mem.Write(0, []byte{1, 2, 3, 4}))
	require.NoError(t, record.Write(mem, 0, InitParam0{Unk: 0}))

	raw, err := mem.Read(0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, raw)
}

func TestInitParam3_FieldOrder(t *testing.T) {
	mem := memory.New(0x40)
	require.NoError(t, record.Write(mem, 0, primitiveTypes()))

	raw, err := mem.Read(16, 32)
	require.NoError(t, err)
	var codes []byte
	for i := 0; i < len(raw); i += 4 {
		codes = append(codes, raw[i])
		assert.Equal(t, []byte{0, 0, 0}, raw[i+1:i+4])
	}
	assert.Equal(t, "ZCFDBSIJ", string(codes))
}

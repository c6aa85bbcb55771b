package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseRecord,
				Kind:   KindUnsupported,
				Path:   []string{"InitParam4", "FnAlloc"},
				GoType: "string",
				Detail: "not a fixed-width field",
			},
			contains: []string{"[record]", "unsupported", "InitParam4.FnAlloc", "Go type string", "not a fixed-width field"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseMemory,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[memory]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseHost,
				Kind:   KindHostIO,
				Detail: "read record",
				Cause:  errors.New("disk gone"),
			},
			contains: []string{"[host]", "host_io", "read record", "caused by", "disk gone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Fault(0x1000, cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_Is(t *testing.T) {
	err := OutOfBounds(PhaseMemory, 0xfffffffc, 8, 0x1000)

	assert.True(t, errors.Is(err, &Error{Phase: PhaseMemory, Kind: KindOutOfBounds}))
	assert.False(t, errors.Is(err, &Error{Phase: PhaseHeap, Kind: KindOutOfBounds}))
	assert.False(t, errors.Is(err, &Error{Phase: PhaseMemory, Kind: KindAllocation}))
}

func TestIsKind(t *testing.T) {
	inner := InvalidFree(0x40)
	wrapped := fmt.Errorf("teardown: %w", Fault(0x100, inner))

	assert.True(t, IsKind(wrapped, KindAllocation))
	assert.True(t, IsKind(wrapped, KindFault))
	assert.False(t, IsKind(wrapped, KindHostIO))
	assert.False(t, IsKind(nil, KindFault))

	joined := errors.Join(HostIO("read", nil), Panic(PhaseTask, "task a", "boom"))
	assert.True(t, IsKind(joined, KindPanic))
	assert.True(t, IsKind(joined, KindHostIO))
	assert.False(t, IsKind(joined, KindFault))
}

func TestBuilder(t *testing.T) {
	err := New(PhaseBridge, KindCallConvention).
		Path("arg", "3").
		GoType("float32").
		Value(3).
		Detail("parameter %d has type %s", 3, "float32").
		Build()

	assert.Equal(t, PhaseBridge, err.Phase)
	assert.Equal(t, KindCallConvention, err.Kind)
	assert.Equal(t, []string{"arg", "3"}, err.Path)
	assert.Equal(t, 3, err.Value)
	assert.Equal(t, "parameter 3 has type float32", err.Detail)
}

func TestConstructors(t *testing.T) {
	t.Run("out of bounds reports the range", func(t *testing.T) {
		err := OutOfBounds(PhaseMemory, 0xff0, 0x20, 0x1000)
		assert.Contains(t, err.Error(), "[0xff0, 0x1010)")
		assert.Equal(t, uint32(0xff0), err.Value)
	})

	t.Run("unsupported instruction names the set", func(t *testing.T) {
		arm := UnsupportedInstruction(0x8000, 0xef000000, false, "SVC #0")
		assert.Contains(t, arm.Error(), "arm instruction ef000000 at 0x00008000 (SVC #0)")

		thumb := UnsupportedInstruction(0x8002, 0xbe00, true, "")
		assert.Contains(t, thumb.Error(), "thumb instruction be00 at 0x00008002")
		assert.Equal(t, PhaseDecode, thumb.Phase)
	})

	t.Run("panic keeps error causes", func(t *testing.T) {
		cause := errors.New("boom")
		err := Panic(PhaseTask, "task main", cause)
		require.ErrorIs(t, err, cause)

		err = Panic(PhaseTask, "task main", "plain")
		assert.Contains(t, err.Error(), "task main: plain")
	})

	t.Run("host io wraps collaborator failures", func(t *testing.T) {
		err := HostIO("open database", errors.New("locked"))
		assert.Equal(t, KindHostIO, err.Kind)
		assert.Contains(t, err.Error(), "locked")
	})
}

package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/arm-runtime/errors"
)

type calc struct{ calls int }

func (*calc) Namespace() string { return "calc" }

func (c *calc) AddOne(x uint32) uint32 {
	c.calls++
	return x + 1
}

func (*calc) GetHTTPStatus() int32 { return 200 }

type knl struct{}

func (knl) Namespace() string { return "knl" }

func (knl) Register() map[string]any {
	return map[string]any{
		"MC_knlPrintk":         func(string) {},
		"MC_knlGetTotalMemory": func() uint32 { return 0x100000 },
	}
}

func TestToKebabCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Sleep", "sleep"},
		{"CurrentTime", "current-time"},
		{"GetHTTPStatus", "get-http-status"},
		{"GetHTTPURL", "get-httpurl"},
		{"FillRect", "fill-rect"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, toKebabCase(tt.in))
		})
	}
}

func TestRegisterHost_Methods(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.RegisterHost(&calc{}))

	assert.Equal(t, []string{"add-one", "get-http-status"}, rt.Hosts().Functions("calc"))
	addr, ok := rt.Hosts().Lookup("calc", "add-one")
	require.True(t, ok)
	name, ok := rt.Core().NativeAt(addr)
	require.True(t, ok)
	assert.Equal(t, "calc.add-one", name)

	err := rt.RegisterHost(&calc{})
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput), "duplicate names are rejected")
}

func TestRegisterHost_Explicit(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.RegisterHost(knl{}))

	assert.Equal(t, []string{"MC_knlGetTotalMemory", "MC_knlPrintk"}, rt.Hosts().Functions("knl"))
	a, _ := rt.Hosts().Lookup("knl", "MC_knlGetTotalMemory")
	b, _ := rt.Hosts().Lookup("knl", "MC_knlPrintk")
	assert.Less(t, a, b)
	assert.Contains(t, rt.Hosts().Namespaces(), "knl")
	assert.Contains(t, rt.Hosts().Namespaces(), ServicesNamespace)
}

func TestRegisterFunc_Validation(t *testing.T) {
	rt := newRuntime(t)

	_, err := rt.RegisterFunc("", "x", func() {})
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
	_, err = rt.RegisterFunc("ns", "", func() {})
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
	_, err = rt.RegisterFunc("ns", "bad", func(float64) {})
	assert.True(t, errors.IsKind(err, errors.KindCallConvention))

	_, ok := rt.Hosts().Lookup("ns", "bad")
	assert.False(t, ok)
}

func TestInterfaceTable(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.RegisterHost(&calc{}))

	table, err := rt.Hosts().InterfaceTable("calc", "add-one", "missing", "get-http-status")
	require.NoError(t, err)

	want := make([]uint32, 0, 3)
	for _, name := range []string{"add-one", "missing", "get-http-status"} {
		addr, _ := rt.Hosts().Lookup("calc", name)
		want = append(want, addr)
	}
	got := make([]uint32, 3)
	for i := range got {
		got[i], err = rt.Core().Memory().ReadU32(table + uint32(i)*4)
		require.NoError(t, err)
	}
	assert.Equal(t, want, got)
	assert.Zero(t, got[1])

	_, err = rt.Hosts().InterfaceTable("calc")
	assert.Error(t, err)
}

package engine

import (
	"context"
	"reflect"
	"runtime"

	"github.com/wippyai/arm-runtime/arm"
	"github.com/wippyai/arm-runtime/errors"
	"github.com/wippyai/arm-runtime/platform"
)

// MaxStringArg bounds how far a string argument is scanned for its NUL.
const MaxStringArg = 4096

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	coreType    = reflect.TypeOf((*Core)(nil))
	systemType  = reflect.TypeOf((*platform.System)(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// RegisterFunc registers a Go function of a supported signature as a
// native function and returns its stub address.
//
// Parameters may start with any of context.Context, *Core and
// *platform.System, in that order. The remaining parameters are filled
// from R0-R3 and then from the stack at SP, one word each:
//
//	int8..int32, uint8..uint32   the low bits of the word
//	bool                         word != 0
//	string                       NUL-terminated string at the word
//
// Results are none, T, error or (T, error) where T is an integer of up to
// 64 bits or bool. 64-bit results are returned in R0 and R1.
func (c *Core) RegisterFunc(fn any) (uint32, error) {
	return c.RegisterNamedFunc("", fn)
}

// RegisterNamedFunc is RegisterFunc with a name used in logs and faults.
func (c *Core) RegisterNamedFunc(name string, fn any) (uint32, error) {
	call, err := compileNative(fn)
	if err != nil {
		return 0, err
	}
	if name == "" {
		if f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()); f != nil {
			name = f.Name()
		}
	}
	return c.register(name, call)
}

type argKind uint8

const (
	argSigned argKind = iota
	argUnsigned
	argBool
	argString
)

type argSpec struct {
	typ  reflect.Type
	kind argKind
}

type resultSpec struct {
	typ    reflect.Type
	hasVal bool
	hasErr bool
	wide   bool
}

func compileNative(fn any) (func(ctx context.Context, c *Core) error, error) {
	if fn == nil {
		return nil, errors.CallConvention("native function is nil")
	}
	rv := reflect.ValueOf(fn)
	rt := rv.Type()
	if rt.Kind() != reflect.Func {
		return nil, errors.New(errors.PhaseBridge, errors.KindCallConvention).
			GoType(rt.String()).
			Detail("native function must be a func").
			Build()
	}
	if rt.IsVariadic() {
		return nil, errors.New(errors.PhaseBridge, errors.KindCallConvention).
			GoType(rt.String()).
			Detail("variadic native functions are not supported").
			Build()
	}

	pos := 0
	var withCtx, withCore, withSys bool
	if pos < rt.NumIn() && rt.In(pos) == contextType {
		withCtx = true
		pos++
	}
	if pos < rt.NumIn() && rt.In(pos) == coreType {
		withCore = true
		pos++
	}
	if pos < rt.NumIn() && rt.In(pos) == systemType {
		withSys = true
		pos++
	}

	args := make([]argSpec, 0, rt.NumIn()-pos)
	for i := pos; i < rt.NumIn(); i++ {
		spec, ok := classifyArg(rt.In(i))
		if !ok {
			return nil, errors.New(errors.PhaseBridge, errors.KindCallConvention).
				GoType(rt.String()).
				Path("param", rt.In(i).String()).
				Detail("parameter %d of type %s cannot be passed in a register", i, rt.In(i)).
				Build()
		}
		args = append(args, spec)
	}

	res, err := classifyResults(rt)
	if err != nil {
		return nil, err
	}

	fixed := pos
	return func(ctx context.Context, c *Core) error {
		in := make([]reflect.Value, 0, fixed+len(args))
		if withCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		if withCore {
			in = append(in, reflect.ValueOf(c))
		}
		if withSys {
			in = append(in, reflect.ValueOf(c.sys))
		}
		for i, a := range args {
			word, err := c.argWord(i)
			if err != nil {
				return err
			}
			v, err := c.lift(a, word)
			if err != nil {
				return err
			}
			in = append(in, v)
		}

		out := rv.Call(in)
		return c.lower(res, out)
	}, nil
}

func classifyArg(t reflect.Type) (argSpec, bool) {
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return argSpec{typ: t, kind: argSigned}, true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return argSpec{typ: t, kind: argUnsigned}, true
	case reflect.Bool:
		return argSpec{typ: t, kind: argBool}, true
	case reflect.String:
		return argSpec{typ: t, kind: argString}, true
	}
	return argSpec{}, false
}

func classifyResults(rt reflect.Type) (resultSpec, error) {
	var res resultSpec
	bad := func() (resultSpec, error) {
		return resultSpec{}, errors.New(errors.PhaseBridge, errors.KindCallConvention).
			GoType(rt.String()).
			Detail("results must be (), (T), (error) or (T, error) with T an integer or bool").
			Build()
	}

	switch rt.NumOut() {
	case 0:
		return res, nil
	case 1:
		if rt.Out(0) == errorType {
			res.hasErr = true
			return res, nil
		}
	case 2:
		if rt.Out(1) != errorType {
			return bad()
		}
		res.hasErr = true
	default:
		return bad()
	}

	t := rt.Out(0)
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Bool:
	case reflect.Int64, reflect.Uint64:
		res.wide = true
	default:
		return bad()
	}
	res.typ = t
	res.hasVal = true
	return res, nil
}

// argWord returns argument word i of the current call.
func (c *Core) argWord(i int) (uint32, error) {
	if i < 4 {
		return c.cpu.Regs.R[i], nil
	}
	addr := c.cpu.Regs.R[arm.SP] + uint32(i-4)*4
	v, err := c.mem.ReadU32(addr)
	if err != nil {
		return 0, errors.New(errors.PhaseBridge, errors.KindCallConvention).
			Detail("stack argument %d at %#08x", i, addr).
			Cause(err).
			Build()
	}
	return v, nil
}

func (c *Core) lift(a argSpec, word uint32) (reflect.Value, error) {
	v := reflect.New(a.typ).Elem()
	switch a.kind {
	case argSigned:
		v.SetInt(int64(int32(word)))
	case argUnsigned:
		v.SetUint(uint64(word))
	case argBool:
		v.SetBool(word != 0)
	case argString:
		if word == 0 {
			break
		}
		s, err := c.mem.ReadCString(word, MaxStringArg)
		if err != nil {
			return reflect.Value{}, errors.New(errors.PhaseBridge, errors.KindCallConvention).
				Detail("string argument at %#08x", word).
				Cause(err).
				Build()
		}
		v.SetString(s)
	}
	return v, nil
}

func (c *Core) lower(res resultSpec, out []reflect.Value) error {
	if res.hasErr {
		if e := out[len(out)-1]; !e.IsNil() {
			return e.Interface().(error)
		}
	}
	if !res.hasVal {
		return nil
	}

	v := out[0]
	var word uint64
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			word = 1
		}
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		word = uint64(v.Int())
	default:
		word = v.Uint()
	}
	c.cpu.Regs.R[0] = uint32(word)
	if res.wide {
		c.cpu.Regs.R[1] = uint32(word >> 32)
	}
	return nil
}

package runtime

import (
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/wippyai/arm-runtime/engine"
	"github.com/wippyai/arm-runtime/errors"
)

// Host is the interface for struct-based host modules.
// All exported methods (except Namespace and Register) become native
// functions.
type Host interface {
	// Namespace returns the module name (e.g., "platform").
	Namespace() string
}

// ExplicitRegistrar allows hosts to provide exact function names when the
// PascalCase-to-kebab-case conversion doesn't apply (e.g., "MC_knlPrintk").
type ExplicitRegistrar interface {
	Register() map[string]any
}

// HostRegistry binds host functions to native stub addresses and keeps the
// address of each by namespace and name.
type HostRegistry struct {
	core  *engine.Core
	funcs map[string]map[string]uint32
	mu    sync.RWMutex
}

func NewHostRegistry(core *engine.Core) *HostRegistry {
	return &HostRegistry{
		core:  core,
		funcs: make(map[string]map[string]uint32),
	}
}

func (r *HostRegistry) RegisterHost(h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}

	if er, ok := h.(ExplicitRegistrar); ok {
		funcs := er.Register()
		names := make([]string, 0, len(funcs))
		for name := range funcs {
			names = append(names, name)
		}
		// stub addresses follow name order so layouts are reproducible
		sort.Strings(names)
		for _, name := range names {
			if _, err := r.RegisterFunc(ns, name, funcs[name]); err != nil {
				return err
			}
		}
		return nil
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()

	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)

		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}

		if _, err := r.RegisterFunc(ns, toKebabCase(method.Name), rv.Method(i).Interface()); err != nil {
			return err
		}
	}

	return nil
}

// RegisterFunc registers fn under namespace and name and returns its
// address. Registering the same name twice is an error.
func (r *HostRegistry) RegisterFunc(namespace, name string, fn any) (uint32, error) {
	if namespace == "" {
		return 0, errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}
	if name == "" {
		return 0, errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.funcs[namespace][name]; dup {
		return 0, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Path(namespace, name).
			Detail("function already registered").
			Build()
	}

	addr, err := r.core.RegisterNamedFunc(namespace+"."+name, fn)
	if err != nil {
		return 0, errors.New(errors.PhaseHost, errors.KindCallConvention).
			Path(namespace, name).
			Cause(err).
			Build()
	}

	if r.funcs[namespace] == nil {
		r.funcs[namespace] = make(map[string]uint32)
	}
	r.funcs[namespace][name] = addr
	debugf("registered %s.%s at %#x", namespace, name, addr)
	return addr, nil
}

// Lookup returns the address of a registered function.
func (r *HostRegistry) Lookup(namespace, name string) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.funcs[namespace][name]
	return addr, ok
}

// Namespaces returns the registered namespaces in sorted order.
func (r *HostRegistry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for ns := range r.funcs {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Functions returns the names registered in namespace in sorted order.
func (r *HostRegistry) Functions(namespace string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs[namespace]))
	for name := range r.funcs[namespace] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// InterfaceTable writes the addresses of names, in order, into a newly
// allocated guest table and returns its address. Names that are not
// registered get a zero slot.
func (r *HostRegistry) InterfaceTable(namespace string, names ...string) (uint32, error) {
	if len(names) == 0 {
		return 0, errors.InvalidInput(errors.PhaseHost, "interface table is empty")
	}
	table, err := r.core.Alloc(uint32(len(names)) * 4)
	if err != nil {
		return 0, err
	}
	for i, name := range names {
		addr, ok := r.Lookup(namespace, name)
		if !ok {
			Logger().Warn("interface slot not implemented",
				zap.String("namespace", namespace),
				zap.String("name", name))
		}
		if err := r.core.Memory().WriteU32(table+uint32(i)*4, addr); err != nil {
			return 0, err
		}
	}
	return table, nil
}

// toKebabCase converts PascalCase to kebab-case.
// Handles acronyms: GetHTTPURL -> get-http-url
func toKebabCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word, not part of acronym
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('-')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

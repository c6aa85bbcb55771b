package resource

import (
	"fmt"

	"github.com/wippyai/arm-runtime/errors"
)

// Typed gives type-safe access to the resources of one type id in a table.
type Typed[T any] struct {
	table  *Table
	typeID uint32
}

// NewTyped binds a typed view to table.
func NewTyped[T any](table *Table, typeID uint32) *Typed[T] {
	return &Typed[T]{table: table, typeID: typeID}
}

// Insert adds a value and returns its handle.
func (t *Typed[T]) Insert(v T) (Handle, error) {
	return t.table.Insert(t.typeID, v)
}

// Get retrieves a value by handle if it has this view's type.
func (t *Typed[T]) Get(h Handle) (T, bool) {
	var zero T
	v, ok := t.table.GetTyped(h, t.typeID)
	if !ok {
		return zero, false
	}
	tv, ok := v.(T)
	if !ok {
		return zero, false
	}
	return tv, true
}

// Remove drops a resource of this view's type.
func (t *Typed[T]) Remove(h Handle) (T, error) {
	var zero T
	if _, ok := t.table.GetTyped(h, t.typeID); !ok {
		return zero, errors.NotFound(errors.PhaseHost, TypeName(t.typeID), fmt.Sprint(h))
	}
	v, err := t.table.Remove(h)
	tv, _ := v.(T)
	return tv, err
}

// Len returns the number of live resources of this type.
func (t *Typed[T]) Len() int {
	n := 0
	t.Each(func(Handle, T) bool {
		n++
		return true
	})
	return n
}

// Each iterates over live resources of this type in issue order.
func (t *Typed[T]) Each(fn func(Handle, T) bool) {
	t.table.Each(func(h Handle, typeID uint32, value any) bool {
		if typeID != t.typeID {
			return true
		}
		v, ok := value.(T)
		if !ok {
			return true
		}
		return fn(h, v)
	})
}

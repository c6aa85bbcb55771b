package resource

import (
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/arm-runtime/errors"
)

type entry struct {
	value  any
	typeID uint32
}

// Table maps handles to host objects. Handles are issued in increasing
// order starting at 1 and are never reused, so a stale guest handle can
// not alias a newer object.
type Table struct {
	entries   map[Handle]entry
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	next      Handle
	closed    bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[Handle]entry)}
}

// Insert adds a value and returns its handle.
func (t *Table) Insert(typeID uint32, value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, errors.NotInitialized(errors.PhaseHost, "resource table")
	}
	if t.next == ^Handle(0) {
		t.mu.Unlock()
		return 0, errors.New(errors.PhaseHost, errors.KindAllocation).
			Detail("resource handles exhausted").
			Build()
	}
	t.next++
	h := t.next
	t.entries[h] = entry{value: value, typeID: typeID}
	t.mu.Unlock()

	debugf("insert %s handle %d", TypeName(typeID), h)
	t.notify(Event{Type: EventCreated, Handle: h, TypeID: typeID, Value: value})
	return h, nil
}

// Get retrieves a value by handle.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[h]
	return e.value, ok
}

// GetTyped retrieves a value only if it was inserted with typeID.
func (t *Table) GetTyped(h Handle, typeID uint32) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[h]
	if !ok || e.typeID != typeID {
		return nil, false
	}
	return e.value, true
}

// TypeOf returns the type id a handle was inserted with.
func (t *Table) TypeOf(h Handle) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[h]
	return e.typeID, ok
}

// Remove drops a resource, running its Drop method if it has one.
func (t *Table) Remove(h Handle) (any, error) {
	t.mu.Lock()
	e, ok := t.entries[h]
	if !ok {
		t.mu.Unlock()
		return nil, errors.New(errors.PhaseHost, errors.KindNotFound).
			Detail("resource handle %d not found", h).
			Value(uint32(h)).
			Build()
	}
	delete(t.entries, h)
	t.mu.Unlock()

	var err error
	if d, ok := e.value.(Dropper); ok {
		if derr := d.Drop(); derr != nil {
			err = errors.HostIO("drop "+TypeName(e.typeID), derr)
		}
	}

	t.notify(Event{Type: EventDropped, Handle: h, TypeID: e.typeID, Value: e.value})
	return e.value, err
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live resources.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Handles returns live handles in issue order.
func (t *Table) Handles() []Handle {
	t.mu.RLock()
	out := make([]Handle, 0, len(t.entries))
	for h := range t.entries {
		out = append(out, h)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Each calls fn for live resources in issue order until fn returns false.
func (t *Table) Each(fn func(h Handle, typeID uint32, value any) bool) {
	for _, h := range t.Handles() {
		t.mu.RLock()
		e, ok := t.entries[h]
		t.mu.RUnlock()
		if !ok {
			continue
		}
		if !fn(h, e.typeID, e.value) {
			return
		}
	}
}

// Clear drops all resources. Drop failures are joined.
func (t *Table) Clear() error {
	var err error
	for _, h := range t.Handles() {
		if _, rerr := t.Remove(h); rerr != nil && !errors.IsKind(rerr, errors.KindNotFound) {
			err = multierr.Append(err, rerr)
		}
	}
	return err
}

// Close drops all resources and stops accepting inserts.
func (t *Table) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	err := t.Clear()
	if err != nil {
		Logger().Warn("resource table closed with errors", zap.Error(err))
	}
	return err
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

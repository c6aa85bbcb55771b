package resource

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/arm-runtime/errors"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func mustInsert(t *testing.T, table *Table, typeID uint32, v any) Handle {
	t.Helper()
	h, err := table.Insert(typeID, v)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return h
}

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h := mustInsert(t, table, TypeCanvas, "test")
	if h != 1 {
		t.Fatalf("Expected first handle 1, got %d", h)
	}

	val, ok := table.Get(h)
	if !ok || val != "test" {
		t.Fatalf("Get = %v, %v", val, ok)
	}

	if _, ok := table.GetTyped(h, TypeCanvas); !ok {
		t.Fatal("GetTyped with correct type failed")
	}
	if _, ok := table.GetTyped(h, TypeRecordStore); ok {
		t.Fatal("GetTyped with wrong type should fail")
	}
	if typeID, _ := table.TypeOf(h); typeID != TypeCanvas {
		t.Fatalf("TypeOf = %d", typeID)
	}

	val, err := table.Remove(h)
	if err != nil || val != "test" {
		t.Fatalf("Remove = %v, %v", val, err)
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}

	if _, err := table.Remove(h); !errors.IsKind(err, errors.KindNotFound) {
		t.Fatalf("Expected not found on second Remove, got %v", err)
	}
}

func TestTable_HandlesNeverReused(t *testing.T) {
	table := NewTable()

	a := mustInsert(t, table, TypeCanvas, "a")
	if _, err := table.Remove(a); err != nil {
		t.Fatal(err)
	}
	b := mustInsert(t, table, TypeCanvas, "b")
	if b == a {
		t.Fatalf("handle %d reused after removal", a)
	}
	if _, ok := table.Get(a); ok {
		t.Fatal("stale handle still resolves")
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := mustInsert(t, table, TypeCanvas, "test")
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventCreated || obs.events[0].Handle != h {
		t.Fatalf("unexpected event %+v", obs.events[0])
	}

	if _, err := table.Remove(h); err != nil {
		t.Fatal(err)
	}
	if len(obs.events) != 2 || obs.events[1].Type != EventDropped {
		t.Fatalf("Expected EventDropped, got %+v", obs.events)
	}

	table.Unsubscribe(obs)
	mustInsert(t, table, TypeCanvas, "test2")
	if len(obs.events) != 2 {
		t.Fatal("Should not receive events after Unsubscribe")
	}
}

func TestTable_ClearAndClose(t *testing.T) {
	table := NewTable()
	mustInsert(t, table, TypeCanvas, "a")
	mustInsert(t, table, TypeCanvas, "b")
	mustInsert(t, table, TypeRecordStore, "c")

	if got := table.Handles(); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Handles = %v", got)
	}

	if err := table.Clear(); err != nil {
		t.Fatal(err)
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Clear")
	}

	mustInsert(t, table, TypeCanvas, "d")
	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if table.Len() != 0 {
		t.Fatal("Close should drop live resources")
	}
	if _, err := table.Insert(TypeCanvas, "e"); !errors.IsKind(err, errors.KindNotInitialized) {
		t.Fatalf("Expected Insert to fail after Close, got %v", err)
	}
}

type dropCounter struct {
	err   error
	count int
}

func (d *dropCounter) Drop() error {
	d.count++
	return d.err
}

func TestTable_Dropper(t *testing.T) {
	table := NewTable()
	ok := &dropCounter{}
	failing := &dropCounter{err: stderrors.New("flush failed")}

	h := mustInsert(t, table, TypeRecordStore, ok)
	if _, err := table.Remove(h); err != nil {
		t.Fatal(err)
	}
	if ok.count != 1 {
		t.Fatalf("Expected Drop() to be called once, called %d times", ok.count)
	}

	mustInsert(t, table, TypeRecordStore, failing)
	err := table.Close()
	if !errors.IsKind(err, errors.KindHostIO) {
		t.Fatalf("Expected host io error from Close, got %v", err)
	}
	if failing.count != 1 {
		t.Fatalf("Expected Drop() once, got %d", failing.count)
	}
}

func TestTyped(t *testing.T) {
	table := NewTable()
	ints := NewTyped[int](table, TypeFile)
	strs := NewTyped[string](table, TypeCanvas)

	h1, _ := ints.Insert(7)
	h2, _ := strs.Insert("x")
	h3, _ := ints.Insert(9)

	if v, ok := ints.Get(h1); !ok || v != 7 {
		t.Fatalf("Get = %v, %v", v, ok)
	}
	if _, ok := ints.Get(h2); ok {
		t.Fatal("typed view resolved a handle of another type")
	}
	if ints.Len() != 2 || strs.Len() != 1 {
		t.Fatalf("Len = %d, %d", ints.Len(), strs.Len())
	}

	var seen []Handle
	ints.Each(func(h Handle, _ int) bool {
		seen = append(seen, h)
		return true
	})
	if len(seen) != 2 || seen[0] != h1 || seen[1] != h3 {
		t.Fatalf("Each order = %v", seen)
	}

	if _, err := ints.Remove(h2); !errors.IsKind(err, errors.KindNotFound) {
		t.Fatalf("Remove of wrong type = %v", err)
	}
	if v, err := ints.Remove(h3); err != nil || v != 9 {
		t.Fatalf("Remove = %v, %v", v, err)
	}
}

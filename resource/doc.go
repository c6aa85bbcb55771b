// Package resource maps guest-visible handles to host objects.
//
// Guest code never sees host pointers. Canvases, open record stores and
// decoded images are kept in a Table and the guest holds a 32-bit handle:
//
//	table := resource.NewTable()
//	h, err := table.Insert(resource.TypeCanvas, canvas)
//
//	v, ok := table.GetTyped(h, resource.TypeCanvas)
//
// Handles start at 1 and grow monotonically. A removed handle is never
// issued again.
//
// Typed wraps a table for one type id:
//
//	canvases := resource.NewTyped[*platform.Canvas](table, resource.TypeCanvas)
//	c, ok := canvases.Get(h)
//
// Observers see every insert and removal, which the runtime uses for
// debug logging. Values implementing Dropper are released on Remove,
// Clear and Close.
package resource

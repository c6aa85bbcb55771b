// Package errors provides structured error types for the arm-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the failing address or value, a field path for
// record layouts, a Go type name and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseExecute, errors.KindFault).
//		Value(pc).
//		Detail("load from %#x", addr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseMemory, addr, size, capacity)
//	err := errors.InvalidFree(addr)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two *Error values match under errors.Is when Phase and Kind are equal, so
// sentinel-style checks are written as:
//
//	errors.Is(err, &errors.Error{Phase: errors.PhaseHeap, Kind: errors.KindAllocation})
//
// or, ignoring the phase, with IsKind.
package errors

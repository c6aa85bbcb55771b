package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseMemory   Phase = "memory"   // guest address space access
	PhaseRecord   Phase = "record"   // fixed-layout record compile/transfer
	PhaseHeap     Phase = "heap"     // guest heap allocation
	PhaseDecode   Phase = "decode"   // instruction decoding
	PhaseExecute  Phase = "execute"  // instruction execution
	PhaseBridge   Phase = "bridge"   // native function bridge
	PhaseTask     Phase = "task"     // guest task lifecycle
	PhaseSchedule Phase = "schedule" // cooperative scheduler
	PhaseHost     Phase = "host"     // host collaborators (fs, db, clock, screen)
	PhaseLoad     Phase = "load"     // image loading and vendor boot
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds    Kind = "out_of_bounds"
	KindAllocation     Kind = "allocation"
	KindUnsupported    Kind = "unsupported"
	KindFault          Kind = "fault"
	KindCallConvention Kind = "call_convention"
	KindHostIO         Kind = "host_io"
	KindInvalidInput   Kind = "invalid_input"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindPanic          Kind = "panic"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
// Joined errors are searched branch by branch.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				if IsKind(inner, kind) {
					return true
				}
			}
			return false
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// OutOfBounds creates an out of bounds error for the range [addr, addr+size)
func OutOfBounds(phase Phase, addr, size uint32, capacity uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%#x, %#x) outside address space of %#x bytes", addr, uint64(addr)+uint64(size), capacity),
		Value:  addr,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %#x bytes", size),
		Value:  size,
	}
}

// InvalidFree creates an error for freeing an address that is not a live allocation
func InvalidFree(addr uint32) *Error {
	return &Error{
		Phase:  PhaseHeap,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("free of %#x which is not an allocated block", addr),
		Value:  addr,
	}
}

// UnsupportedInstruction creates a decode error for an instruction the interpreter cannot execute
func UnsupportedInstruction(pc, encoding uint32, thumb bool, text string) *Error {
	set := "arm"
	width := 8
	if thumb {
		set = "thumb"
		width = 4
	}
	detail := fmt.Sprintf("%s instruction %0*x at %#08x", set, width, encoding, pc)
	if text != "" {
		detail += " (" + text + ")"
	}
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnsupported,
		Detail: detail,
		Value:  pc,
	}
}

// Fault creates an execution fault at pc wrapping the failing access
func Fault(pc uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindFault,
		Detail: fmt.Sprintf("fault at pc %#08x", pc),
		Value:  pc,
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// CallConvention creates an error for a callback signature the bridge cannot marshal
func CallConvention(detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindCallConvention,
		Detail: detail,
	}
}

// HostIO wraps a failure reported by a host collaborator
func HostIO(op string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindHostIO,
		Detail: op,
		Cause:  cause,
	}
}

// NotInitialized creates a not-initialized error for missing components
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Panic converts a recovered panic value into an error
func Panic(phase Phase, where string, v any) *Error {
	if err, ok := v.(error); ok {
		return &Error{
			Phase:  phase,
			Kind:   KindPanic,
			Detail: where,
			Cause:  err,
		}
	}
	return &Error{
		Phase:  phase,
		Kind:   KindPanic,
		Detail: fmt.Sprintf("%s: %v", where, v),
		Value:  v,
	}
}

// Load creates an image loading or boot error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

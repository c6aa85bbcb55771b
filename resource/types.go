package resource

// Handle is an opaque reference to a host object in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Type ids for host objects handed to guest code.
const (
	TypeCanvas uint32 = iota + 1
	TypeRecordStore
	TypeFile
)

// TypeName returns a printable name for a type id.
func TypeName(typeID uint32) string {
	switch typeID {
	case TypeCanvas:
		return "canvas"
	case TypeRecordStore:
		return "record-store"
	case TypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// EventType is a resource lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

func (e EventType) String() string {
	if e == EventDropped {
		return "dropped"
	}
	return "created"
}

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is optionally implemented by values that need cleanup when
// removed from a table.
type Dropper interface {
	Drop() error
}

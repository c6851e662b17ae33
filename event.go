package sponge

// Event is implemented by everything that can be posted on an EventManager.
type Event interface {
	// Cause returns the cause of the event. It may be nil.
	Cause() *Cause
}

// Cancellable is implemented by events whose effect on the host can be vetoed.
type Cancellable interface {
	Event
	IsCancelled() bool
	SetCancelled(cancelled bool)
}

// BaseEvent is embedded in event structs to implement Event.
type BaseEvent struct {
	cause *Cause
}

// NewBaseEvent creates a BaseEvent with the given cause.
func NewBaseEvent(cause *Cause) BaseEvent {
	return BaseEvent{cause: cause}
}

// Cause implements Event.
func (e *BaseEvent) Cause() *Cause {
	return e.cause
}

// CancellableEvent is embedded in event structs to implement Cancellable.
type CancellableEvent struct {
	BaseEvent
	cancelled bool
}

// NewCancellableEvent creates a CancellableEvent with the given cause.
func NewCancellableEvent(cause *Cause) CancellableEvent {
	return CancellableEvent{BaseEvent: BaseEvent{cause: cause}}
}

// IsCancelled implements Cancellable.
func (e *CancellableEvent) IsCancelled() bool {
	return e.cancelled
}

// SetCancelled implements Cancellable.
func (e *CancellableEvent) SetCancelled(cancelled bool) {
	e.cancelled = cancelled
}

// Tristate is a three-valued boolean used by cancellation filters.
type Tristate int

const (
	// False matches only events that are not cancelled.
	False Tristate = iota
	// Undefined matches events regardless of cancellation.
	Undefined
	// True matches only cancelled events.
	True
)

// String returns the string representation of the tristate.
func (t Tristate) String() string {
	switch t {
	case False:
		return "False"
	case Undefined:
		return "Undefined"
	case True:
		return "True"
	default:
		return "Unknown"
	}
}

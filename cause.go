package sponge

import (
	"fmt"
	"reflect"
	"strings"
)

// Cause is the ordered chain of objects that led to an event, most direct
// first, together with the EventContext side channel.
//
// A Cause is immutable. The methods are safe on a nil Cause, which behaves as
// an empty chain with an empty context.
type Cause struct {
	objects []any
	ctx     EventContext
}

// NewCause creates a cause with root as its first object.
// It panics if root is nil.
func NewCause(ctx EventContext, root any, others ...any) *Cause {
	if root == nil {
		panic("sponge: cause root must not be nil")
	}
	objects := make([]any, 0, 1+len(others))
	objects = append(objects, root)
	for _, o := range others {
		if o != nil {
			objects = append(objects, o)
		}
	}
	return &Cause{objects: objects, ctx: ctx}
}

// With returns a new cause with objs appended to the chain.
func (c *Cause) With(objs ...any) *Cause {
	out := &Cause{ctx: c.Context()}
	if c != nil {
		out.objects = append(out.objects, c.objects...)
	}
	for _, o := range objs {
		if o != nil {
			out.objects = append(out.objects, o)
		}
	}
	return out
}

// Context returns the event context.
func (c *Cause) Context() EventContext {
	if c == nil {
		return EventContext{}
	}
	return c.ctx
}

// Root returns the most direct cause object.
func (c *Cause) Root() any {
	if c == nil || len(c.objects) == 0 {
		return nil
	}
	return c.objects[0]
}

// First returns the first object that is an instance of t.
func (c *Cause) First(t Type) (any, bool) {
	if c == nil {
		return nil, false
	}
	for _, o := range c.objects {
		if t.IsInstance(o) {
			return o, true
		}
	}
	return nil, false
}

// Last returns the last object that is an instance of t.
func (c *Cause) Last(t Type) (any, bool) {
	if c == nil {
		return nil, false
	}
	for i := len(c.objects) - 1; i >= 0; i-- {
		if t.IsInstance(c.objects[i]) {
			return c.objects[i], true
		}
	}
	return nil, false
}

// Before returns the object directly before the first instance of t.
func (c *Cause) Before(t Type) (any, bool) {
	if c == nil {
		return nil, false
	}
	for i, o := range c.objects {
		if t.IsInstance(o) {
			if i == 0 {
				return nil, false
			}
			return c.objects[i-1], true
		}
	}
	return nil, false
}

// After returns the object directly after the first instance of t.
func (c *Cause) After(t Type) (any, bool) {
	if c == nil {
		return nil, false
	}
	for i, o := range c.objects {
		if t.IsInstance(o) {
			if i+1 >= len(c.objects) {
				return nil, false
			}
			return c.objects[i+1], true
		}
	}
	return nil, false
}

// AllOf returns every object that is an instance of t, in chain order.
func (c *Cause) AllOf(t Type) []any {
	if c == nil {
		return nil
	}
	var out []any
	for _, o := range c.objects {
		if t.IsInstance(o) {
			out = append(out, o)
		}
	}
	return out
}

// Contains reports whether obj is part of the chain.
func (c *Cause) Contains(obj any) bool {
	if c == nil {
		return false
	}
	for _, o := range c.objects {
		if o == obj {
			return true
		}
	}
	return false
}

// Objects returns a copy of the chain.
func (c *Cause) Objects() []any {
	if c == nil {
		return nil
	}
	out := make([]any, len(c.objects))
	copy(out, c.objects)
	return out
}

// Len returns the length of the chain.
func (c *Cause) Len() int {
	if c == nil {
		return 0
	}
	return len(c.objects)
}

// String returns a debug representation of the cause.
func (c *Cause) String() string {
	if c == nil {
		return "Cause{}"
	}
	parts := make([]string, len(c.objects))
	for i, o := range c.objects {
		parts[i] = fmt.Sprintf("%T", o)
	}
	return "Cause{[" + strings.Join(parts, ", ") + "], " + c.ctx.String() + "}"
}

// allOfSlice collects the objects assignable to sliceType's element type into
// a new slice of sliceType. It returns nil if nothing matched and keepEmpty is
// false.
func (c *Cause) allOfSlice(sliceType reflect.Type, keepEmpty bool) any {
	elem := Type{t: sliceType.Elem()}
	matches := c.AllOf(elem)
	if len(matches) == 0 && !keepEmpty {
		return nil
	}
	out := reflect.MakeSlice(sliceType, 0, len(matches))
	for _, m := range matches {
		out = reflect.Append(out, reflect.ValueOf(m))
	}
	return out.Interface()
}

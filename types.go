package sponge

import (
	"reflect"
	"strings"
)

// Type is a runtime type token used by type filters and cause queries.
// The zero Type is invalid and matches nothing.
//
// Usage:
//
//	sponge.ContextValue("OWNER").Include(sponge.TypeOf[*sponge.User]())
type Type struct {
	t reflect.Type
}

// TypeOf returns the Type token for T. Interface types are supported and
// match every value implementing them.
func TypeOf[T any]() Type {
	return Type{t: reflect.TypeOf((*T)(nil)).Elem()}
}

// TypeFor wraps an existing reflect.Type.
func TypeFor(t reflect.Type) Type {
	return Type{t: t}
}

// Reflect returns the underlying reflect.Type.
func (t Type) Reflect() reflect.Type {
	return t.t
}

// Valid returns true if the token refers to a type.
func (t Type) Valid() bool {
	return t.t != nil
}

// IsInstance reports whether v is an instance of t.
// A nil interface is an instance of nothing. Otherwise the dynamic type of v
// must be identical to t or, if t is an interface, implement it.
func (t Type) IsInstance(v any) bool {
	if v == nil || t.t == nil {
		return false
	}
	return reflect.TypeOf(v).AssignableTo(t.t)
}

// String returns the type name.
func (t Type) String() string {
	if t.t == nil {
		return "<invalid>"
	}
	return t.t.String()
}

// typeList formats a list of types for diagnostics.
func typeList(types []Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return "[" + strings.Join(names, ", ") + "]"
}

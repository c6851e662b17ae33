package sponge

import (
	"slices"
	"strings"
)

// FilterKind identifies where a filtered parameter takes its value from.
type FilterKind int

const (
	// KindContextValue reads a value from the event context by key name.
	KindContextValue FilterKind = iota
	// KindRoot takes the root of the cause.
	KindRoot
	// KindFirst takes the first cause object of the parameter type.
	KindFirst
	// KindLast takes the last cause object of the parameter type.
	KindLast
	// KindBefore takes the cause object directly before the first instance of a type.
	KindBefore
	// KindAfter takes the cause object directly after the first instance of a type.
	KindAfter
	// KindAll takes all cause objects of the parameter's element type.
	KindAll
	// KindGetter calls a method of the event.
	KindGetter
)

// String returns the string representation of FilterKind.
func (k FilterKind) String() string {
	switch k {
	case KindContextValue:
		return "ContextValue"
	case KindRoot:
		return "Root"
	case KindFirst:
		return "First"
	case KindLast:
		return "Last"
	case KindBefore:
		return "Before"
	case KindAfter:
		return "After"
	case KindAll:
		return "All"
	case KindGetter:
		return "Getter"
	default:
		return "Unknown"
	}
}

// Filter declares how one listener parameter is extracted from the event and
// which runtime types it may have. Filters are values; the modifier methods
// return modified copies.
//
// Usage:
//
//	sponge.ContextValue("OWNER")                                   // any owner assignable to the parameter
//	sponge.ContextValue("OWNER").Include(sponge.TypeOf[*User]())   // only users
//	sponge.ContextValue("OWNER").Exclude(sponge.TypeOf[*User]())   // anything but users
type Filter struct {
	kind      FilterKind
	key       string
	anchor    Type
	types     []Type
	inverse   bool
	keepEmpty bool
}

// ContextValue filters on the context value stored under the named key.
// The name is resolved when the listener is registered.
func ContextValue(key string) Filter {
	return Filter{kind: KindContextValue, key: key}
}

// Root filters on the root cause object.
func Root() Filter {
	return Filter{kind: KindRoot}
}

// First filters on the first cause object assignable to the parameter.
func First() Filter {
	return Filter{kind: KindFirst}
}

// Last filters on the last cause object assignable to the parameter.
func Last() Filter {
	return Filter{kind: KindLast}
}

// Before filters on the cause object directly before the first instance of t.
func Before(t Type) Filter {
	return Filter{kind: KindBefore, anchor: t}
}

// After filters on the cause object directly after the first instance of t.
func After(t Type) Filter {
	return Filter{kind: KindAfter, anchor: t}
}

// All collects every cause object assignable to the element type of a slice
// parameter. An empty result does not match unless KeepEmpty is set.
func All() Filter {
	return Filter{kind: KindAll}
}

// Getter filters on the result of calling the named exported method of the
// event. The method must take no arguments and return one value.
func Getter(method string) Filter {
	return Filter{kind: KindGetter, key: method}
}

// Include restricts the value to instances of at least one of types.
func (f Filter) Include(types ...Type) Filter {
	f.types = slices.Clone(types)
	f.inverse = false
	return f
}

// Exclude rejects values that are instances of any of types.
func (f Filter) Exclude(types ...Type) Filter {
	f.types = slices.Clone(types)
	f.inverse = true
	return f
}

// KeepEmpty lets an All filter match when no cause object qualifies.
func (f Filter) KeepEmpty() Filter {
	f.keepEmpty = true
	return f
}

// Descriptor returns the immutable description of the filter.
func (f Filter) Descriptor() FilterDescriptor {
	return FilterDescriptor{
		Kind:       f.kind,
		Key:        f.key,
		Anchor:     f.anchor,
		TypeFilter: slices.Clone(f.types),
		Inverse:    f.inverse,
		KeepEmpty:  f.keepEmpty,
	}
}

// FilterDescriptor is the parsed form of a Filter consumed by the generator.
type FilterDescriptor struct {
	// Kind selects the extraction strategy.
	Kind FilterKind

	// Key is the context key name (ContextValue) or method name (Getter).
	Key string

	// Anchor is the type searched for by Before and After.
	Anchor Type

	// TypeFilter is evaluated in order; the first hit decides.
	TypeFilter []Type

	// Inverse turns TypeFilter into a deny list.
	Inverse bool

	// KeepEmpty lets All match an empty result.
	KeepEmpty bool
}

// String returns a compact representation, e.g. ContextValue("OWNER", exclude=[*sponge.User]).
func (d FilterDescriptor) String() string {
	var sb strings.Builder
	sb.WriteString(d.Kind.String())
	sb.WriteString("(")
	var args []string
	if d.Key != "" {
		args = append(args, `"`+d.Key+`"`)
	}
	if d.Anchor.Valid() {
		args = append(args, d.Anchor.String())
	}
	if len(d.TypeFilter) > 0 {
		if d.Inverse {
			args = append(args, "exclude="+typeList(d.TypeFilter))
		} else {
			args = append(args, "include="+typeList(d.TypeFilter))
		}
	}
	if d.KeepEmpty {
		args = append(args, "keepEmpty")
	}
	sb.WriteString(strings.Join(args, ", "))
	sb.WriteString(")")
	return sb.String()
}

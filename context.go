package sponge

import (
	"fmt"
	"sort"
	"strings"
)

// EventContext is an immutable association of context keys to values,
// carried by a Cause next to the cause objects. Keys are unique.
//
// The zero EventContext is empty and ready to use.
type EventContext struct {
	mask    keyMask
	entries []contextEntry
}

type contextEntry struct {
	key   *ContextKey
	value any
}

// EmptyContext returns an EventContext without entries.
func EmptyContext() EventContext {
	return EventContext{}
}

// Get returns the value stored under key.
// A miss is a normal outcome and reported with ok == false.
func (c EventContext) Get(key *ContextKey) (value any, ok bool) {
	if key == nil || !c.mask.mayHave(key) {
		return nil, false
	}
	// entries are sorted by id; ids are unique within one registry but keys
	// from another registry may share an id, hence the identity check.
	i := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].key.id >= key.id })
	for ; i < len(c.entries) && c.entries[i].key.id == key.id; i++ {
		if c.entries[i].key == key {
			return c.entries[i].value, true
		}
	}
	return nil, false
}

// Contains reports whether a value is stored under key.
func (c EventContext) Contains(key *ContextKey) bool {
	_, ok := c.Get(key)
	return ok
}

// ContainsAll reports whether a value is stored under every key.
func (c EventContext) ContainsAll(keys ...*ContextKey) bool {
	want, ok := maskOf(keys...)
	if !ok || !c.mask.covers(want) {
		return false
	}
	for _, k := range keys {
		if !c.Contains(k) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the context has no entries.
func (c EventContext) IsEmpty() bool {
	return c.mask.empty()
}

// Keys returns the keys present in the context, ordered by registration.
func (c EventContext) Keys() []*ContextKey {
	keys := make([]*ContextKey, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.key
	}
	return keys
}

// Len returns the number of entries.
func (c EventContext) Len() int {
	return len(c.entries)
}

// String returns a debug representation of the context.
func (c EventContext) String() string {
	var sb strings.Builder
	sb.WriteString("EventContext{")
	for i, e := range c.entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", e.key.name, e.value)
	}
	sb.WriteString("}")
	return sb.String()
}

// ContextBuilder builds an EventContext.
//
// Usage:
//
//	ctx := sponge.NewContextBuilder().
//	    Add(owner, user).
//	    Add(plugin, "myplugin").
//	    Build()
type ContextBuilder struct {
	entries []contextEntry
}

// NewContextBuilder creates an empty builder.
func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{}
}

// From copies all entries of ctx into the builder, replacing existing ones.
func (b *ContextBuilder) From(ctx EventContext) *ContextBuilder {
	for _, e := range ctx.entries {
		b.Add(e.key, e.value)
	}
	return b
}

// Add stores value under key, replacing any previous value.
// A nil key or nil value is ignored. Add panics if value is not an instance
// of the key's allowed type.
func (b *ContextBuilder) Add(key *ContextKey, value any) *ContextBuilder {
	if key == nil || value == nil {
		return b
	}
	if !key.allowed.IsInstance(value) {
		panic(fmt.Sprintf("sponge: context key %s does not accept %T (want %s)", key.name, value, key.allowed))
	}
	for i := range b.entries {
		if b.entries[i].key == key {
			b.entries[i].value = value
			return b
		}
	}
	b.entries = append(b.entries, contextEntry{key: key, value: value})
	return b
}

// Remove deletes the entry for key.
func (b *ContextBuilder) Remove(key *ContextKey) *ContextBuilder {
	for i := range b.entries {
		if b.entries[i].key == key {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			break
		}
	}
	return b
}

// Build returns the immutable context. The builder may be reused.
func (b *ContextBuilder) Build() EventContext {
	if len(b.entries) == 0 {
		return EventContext{}
	}
	entries := make([]contextEntry, len(b.entries))
	copy(entries, b.entries)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].key.id < entries[j].key.id })

	ctx := EventContext{entries: entries}
	for _, e := range entries {
		ctx.mask.add(e.key)
	}
	return ctx
}

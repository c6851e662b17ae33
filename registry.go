package sponge

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
)

// MaxContextKeys is the maximum number of context keys a registry can hold.
const MaxContextKeys = 256

// Registry is a catalog of named values grouped by kind.
// The EventManager resolves context key names against it when listeners are
// registered, so it must be fully populated before registration starts.
//
// Lookups are lock-free. Registration is safe for concurrent use.
type Registry struct {
	// catalogs maps kind (reflect.Type) -> *sync.Map of id -> value
	catalogs sync.Map

	// nextKeyID is the next available context key id
	nextKeyID atomic.Uint32

	// keysMu serialises context key registration so ids stay dense
	keysMu sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry creates a registry populated with the default context keys.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	if err := RegisterDefaultContextKeys(r); err != nil {
		panic("sponge: failed to register default context keys: " + err.Error())
	}
	return r
}

// catalog returns the id map for kind, creating it if needed.
func (r *Registry) catalog(kind reflect.Type) *sync.Map {
	if c, ok := r.catalogs.Load(kind); ok {
		return c.(*sync.Map)
	}
	c, _ := r.catalogs.LoadOrStore(kind, &sync.Map{})
	return c.(*sync.Map)
}

// Register adds value under (kind, id). It fails if the id is already taken
// for that kind.
func (r *Registry) Register(kind Type, id string, value any) error {
	if !kind.Valid() {
		return fmt.Errorf("sponge: register %q: invalid kind", id)
	}
	if !kind.IsInstance(value) {
		return fmt.Errorf("sponge: register %q: value %T is not a %s", id, value, kind)
	}
	if _, loaded := r.catalog(kind.t).LoadOrStore(id, value); loaded {
		return fmt.Errorf("%w: %s %q", ErrDuplicateEntry, kind, id)
	}
	return nil
}

// Lookup returns the value registered under (kind, id).
func (r *Registry) Lookup(kind Type, id string) (any, bool) {
	if !kind.Valid() {
		return nil, false
	}
	c, ok := r.catalogs.Load(kind.t)
	if !ok {
		return nil, false
	}
	return c.(*sync.Map).Load(id)
}

// All returns every value registered for kind, sorted by id.
func (r *Registry) All(kind Type) []any {
	c, ok := r.catalogs.Load(kind.t)
	if !ok {
		return nil
	}
	type entry struct {
		id    string
		value any
	}
	var entries []entry
	c.(*sync.Map).Range(func(k, v any) bool {
		entries = append(entries, entry{k.(string), v})
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e.value
	}
	return out
}

// Lookup is the typed form of Registry.Lookup.
func Lookup[T any](r *Registry, id string) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	v, ok := r.Lookup(TypeOf[T](), id)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// allocKeyID allocates the next context key id. Caller must hold keysMu.
func (r *Registry) allocKeyID() (uint8, error) {
	next := r.nextKeyID.Load()
	if next >= MaxContextKeys {
		return 0, fmt.Errorf("%w (max %d context keys)", ErrRegistryFull, MaxContextKeys)
	}
	r.nextKeyID.Store(next + 1)
	return uint8(next), nil
}

// ContextKeyCount returns the number of registered context keys.
func (r *Registry) ContextKeyCount() int {
	return int(r.nextKeyID.Load())
}

package sponge

import (
	"fmt"
	"reflect"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/item"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
)

// Names of the context keys registered by RegisterDefaultContextKeys.
const (
	KeyOwner      = "OWNER"
	KeyNotifier   = "NOTIFIER"
	KeyCreator    = "CREATOR"
	KeyPlayer     = "PLAYER"
	KeyDamageType = "DAMAGE_TYPE"
	KeyBlockHit   = "BLOCK_HIT"
	KeyUsedItem   = "USED_ITEM"
	KeyCommand    = "COMMAND"
	KeyPlugin     = "PLUGIN"
)

// ContextKey identifies a typed slot of an EventContext.
// Keys are created once by a Registry and compared by identity.
type ContextKey struct {
	id      uint8
	name    string
	allowed Type
}

// contextKeyKind is the registry kind under which context keys are stored.
var contextKeyKind = TypeOf[*ContextKey]()

// Name returns the name the key was registered with.
func (k *ContextKey) Name() string {
	return k.name
}

// AllowedType returns the type every value stored under this key must satisfy.
func (k *ContextKey) AllowedType() Type {
	return k.allowed
}

// String returns the key name.
func (k *ContextKey) String() string {
	return k.name
}

// RegisterContextKey registers a new context key whose values must be
// instances of allowed. An invalid allowed Type accepts any value.
func RegisterContextKey(r *Registry, name string, allowed Type) (*ContextKey, error) {
	if name == "" {
		return nil, fmt.Errorf("sponge: context key name must not be empty")
	}
	if !allowed.Valid() {
		allowed = TypeOf[any]()
	}

	r.keysMu.Lock()
	defer r.keysMu.Unlock()

	if _, ok := r.Lookup(contextKeyKind, name); ok {
		return nil, fmt.Errorf("%w: context key %q", ErrDuplicateEntry, name)
	}
	id, err := r.allocKeyID()
	if err != nil {
		return nil, err
	}

	key := &ContextKey{id: id, name: name, allowed: allowed}
	if err := r.Register(contextKeyKind, name, key); err != nil {
		return nil, err
	}
	return key, nil
}

// NewContextKey registers a context key holding values of type T.
func NewContextKey[T any](r *Registry, name string) (*ContextKey, error) {
	return RegisterContextKey(r, name, TypeOf[T]())
}

// MustContextKey is like NewContextKey but panics on failure.
// Intended for package-level key declarations in plugins.
func MustContextKey[T any](r *Registry, name string) *ContextKey {
	k, err := NewContextKey[T](r, name)
	if err != nil {
		panic(err)
	}
	return k
}

// ContextKeys returns all context keys of the registry, sorted by name.
func ContextKeys(r *Registry) []*ContextKey {
	all := r.All(contextKeyKind)
	keys := make([]*ContextKey, len(all))
	for i, v := range all {
		keys[i] = v.(*ContextKey)
	}
	return keys
}

// resolveContextKey binds a symbolic key name to its handle.
// Listener registration must fail when this fails.
func resolveContextKey(r *Registry, name string) (*ContextKey, error) {
	if r == nil {
		return nil, &UnknownContextKeyError{Name: name}
	}
	v, ok := r.Lookup(contextKeyKind, name)
	if !ok {
		return nil, &UnknownContextKeyError{Name: name}
	}
	return v.(*ContextKey), nil
}

// BlockSnapshot is the value of the BLOCK_HIT context key.
type BlockSnapshot struct {
	Position cube.Pos
	Block    world.Block
}

// defaultContextKeys lists the keys known to every default registry.
var defaultContextKeys = []struct {
	name    string
	allowed reflect.Type
}{
	{KeyOwner, reflect.TypeOf((*Identifiable)(nil)).Elem()},
	{KeyNotifier, reflect.TypeOf((*Identifiable)(nil)).Elem()},
	{KeyCreator, reflect.TypeOf((*Identifiable)(nil)).Elem()},
	{KeyPlayer, reflect.TypeOf((*player.Player)(nil))},
	{KeyDamageType, reflect.TypeOf((*world.DamageSource)(nil)).Elem()},
	{KeyBlockHit, reflect.TypeOf(BlockSnapshot{})},
	{KeyUsedItem, reflect.TypeOf(item.Stack{})},
	{KeyCommand, reflect.TypeOf("")},
	{KeyPlugin, reflect.TypeOf("")},
}

// RegisterDefaultContextKeys registers the context keys used by PlayerHandler.
func RegisterDefaultContextKeys(r *Registry) error {
	for _, k := range defaultContextKeys {
		if _, err := RegisterContextKey(r, k.name, TypeFor(k.allowed)); err != nil {
			return err
		}
	}
	return nil
}

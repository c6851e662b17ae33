package sponge

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	require.Equal(t, len(defaultContextKeys), r.ContextKeyCount())

	names := make([]string, 0)
	for _, k := range ContextKeys(r) {
		names = append(names, k.Name())
	}
	assert.Equal(t, []string{
		KeyBlockHit, KeyCommand, KeyCreator, KeyDamageType, KeyNotifier,
		KeyOwner, KeyPlayer, KeyPlugin, KeyUsedItem,
	}, names)

	owner := mustKey(t, r, KeyOwner)
	assert.Equal(t, "OWNER", owner.String())
	assert.Equal(t, TypeOf[Identifiable](), owner.AllowedType())
}

func TestResolveContextKey(t *testing.T) {
	r := NewDefaultRegistry()

	k, err := resolveContextKey(r, KeyPlayer)
	require.NoError(t, err)
	assert.Equal(t, KeyPlayer, k.Name())

	_, err = resolveContextKey(r, "NOT_REGISTERED")
	require.Error(t, err)
	var uerr *UnknownContextKeyError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "NOT_REGISTERED", uerr.Name)
	assert.ErrorIs(t, err, ErrUnknownContextKey)
	assert.EqualError(t, err, "sponge: the NOT_REGISTERED context key specified by the context value filter was not found")

	_, err = resolveContextKey(nil, KeyPlayer)
	assert.ErrorIs(t, err, ErrUnknownContextKey)
}

func TestRegisterContextKey(t *testing.T) {
	r := NewRegistry()

	k, err := NewContextKey[string](r, "REGION")
	require.NoError(t, err)
	assert.Equal(t, TypeOf[string](), k.AllowedType())

	_, err = NewContextKey[int](r, "REGION")
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	_, err = RegisterContextKey(r, "", TypeOf[string]())
	assert.Error(t, err)

	anyKey, err := RegisterContextKey(r, "ANY", Type{})
	require.NoError(t, err)
	assert.Equal(t, TypeOf[any](), anyKey.AllowedType())

	assert.Equal(t, 2, r.ContextKeyCount())
	assert.Panics(t, func() { MustContextKey[string](r, "REGION") })
}

func TestRegistryFull(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < MaxContextKeys; i++ {
		_, err := NewContextKey[int](r, fmt.Sprintf("K%d", i))
		require.NoError(t, err)
	}
	_, err := NewContextKey[int](r, "ONE_TOO_MANY")
	assert.True(t, errors.Is(err, ErrRegistryFull))
}

func TestRegistryCatalogs(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(TypeOf[*User](), "steve", newTestUser()))
	assert.ErrorIs(t, r.Register(TypeOf[*User](), "steve", newTestUser()), ErrDuplicateEntry)
	assert.Error(t, r.Register(TypeOf[*User](), "alex", "not a user"))
	assert.Error(t, r.Register(Type{}, "x", 1))

	u, ok := Lookup[*User](r, "steve")
	require.True(t, ok)
	assert.Equal(t, "Steve", u.Name())

	_, ok = Lookup[*User](r, "alex")
	assert.False(t, ok)
	_, ok = Lookup[*User](nil, "steve")
	assert.False(t, ok)

	require.NoError(t, r.Register(TypeOf[*User](), "alex", newTestUser()))
	assert.Len(t, r.All(TypeOf[*User]()), 2)
	assert.Empty(t, r.All(TypeOf[*npc]()))
}

package sponge

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testEvent is a cancellable event with a getter.
type testEvent struct {
	CancellableEvent
	label       string
	labelCalls  int
	targetCalls int
}

func newTestEvent(ctx EventContext, root any, others ...any) *testEvent {
	return &testEvent{CancellableEvent: NewCancellableEvent(NewCause(ctx, root, others...))}
}

func (e *testEvent) Label() string {
	e.labelCalls++
	return e.label
}

func (e *testEvent) Target() Identifiable {
	e.targetCalls++
	return nil
}

func (e *testEvent) Lookup(string) string {
	return ""
}

// otherEvent is not cancellable.
type otherEvent struct {
	BaseEvent
}

func newOtherEvent(ctx EventContext, root any) *otherEvent {
	return &otherEvent{BaseEvent: NewBaseEvent(NewCause(ctx, root))}
}

// npc is an Identifiable that is not a User.
type npc struct {
	id uuid.UUID
}

func (n *npc) UniqueID() uuid.UUID {
	return n.id
}

func newNPC() *npc {
	return &npc{id: uuid.New()}
}

func newTestUser() *User {
	return NewUser(uuid.New(), "Steve", "2535400000000000")
}

func mustKey(t *testing.T, r *Registry, name string) *ContextKey {
	t.Helper()
	k, err := resolveContextKey(r, name)
	require.NoError(t, err)
	return k
}

func mustDispatcher(t *testing.T, r *Registry, fn any, opts ...ListenerOption) *Dispatcher {
	t.Helper()
	shape, err := NewShape(r, fn, opts...)
	require.NoError(t, err)
	d, err := shape.NewInstance(r)
	require.NoError(t, err)
	return d
}

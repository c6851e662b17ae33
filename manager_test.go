package sponge

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestPostOrder(t *testing.T) {
	m := NewEventManager(nil)
	var calls []string
	record := func(name string) func(*testEvent) {
		return func(*testEvent) { calls = append(calls, name) }
	}

	_, err := m.Register("p", record("post"), WithOrder(OrderPost))
	require.NoError(t, err)
	_, err = m.Register("p", record("default-1"))
	require.NoError(t, err)
	_, err = m.Register("p", record("pre"), WithOrder(OrderPre))
	require.NoError(t, err)
	_, err = m.Register("p", record("default-2"), WithOrder(OrderDefault))
	require.NoError(t, err)
	_, err = m.Register("p", record("early"), WithOrder(OrderEarly))
	require.NoError(t, err)

	m.Post(newTestEvent(EmptyContext(), "root"))
	assert.Equal(t, []string{"pre", "early", "default-1", "default-2", "post"}, calls)

	orders := make([]int, 0)
	for _, h := range m.Handles() {
		orders = append(orders, int(h.Order()))
	}
	assert.IsNonDecreasing(t, orders)
}

func TestPostSelectsByEventType(t *testing.T) {
	m := NewEventManager(nil)
	var test, other, all int

	_, err := m.Register("p", func(*testEvent) { test++ })
	require.NoError(t, err)
	_, err = m.Register("p", func(*otherEvent) { other++ })
	require.NoError(t, err)
	_, err = m.Register("p", func(Event) { all++ })
	require.NoError(t, err)

	m.Post(newTestEvent(EmptyContext(), "root"))
	m.Post(newOtherEvent(EmptyContext(), "root"))
	m.Post(newOtherEvent(EmptyContext(), "root"))
	assert.False(t, m.Post(nil))

	assert.Equal(t, 1, test)
	assert.Equal(t, 2, other)
	assert.Equal(t, 3, all)
}

func TestRegisterInvalidatesCache(t *testing.T) {
	m := NewEventManager(nil)
	var first, second int

	_, err := m.Register("p", func(*testEvent) { first++ })
	require.NoError(t, err)
	m.Post(newTestEvent(EmptyContext(), "root"))

	h, err := m.Register("p", func(*testEvent) { second++ })
	require.NoError(t, err)
	m.Post(newTestEvent(EmptyContext(), "root"))

	require.True(t, h.Unregister())
	assert.False(t, h.Unregister())
	m.Post(newTestEvent(EmptyContext(), "root"))

	assert.Equal(t, 3, first)
	assert.Equal(t, 1, second)
}

func TestUnregisterPlugin(t *testing.T) {
	m := NewEventManager(nil)
	var calls int
	for i := 0; i < 3; i++ {
		_, err := m.Register("a", func(*testEvent) { calls++ })
		require.NoError(t, err)
	}
	h, err := m.Register("b", func(*testEvent) { calls += 10 })
	require.NoError(t, err)
	assert.Equal(t, "b", h.Plugin())
	assert.NotEqual(t, h.ID().String(), "00000000-0000-0000-0000-000000000000")

	assert.Equal(t, 3, m.UnregisterPlugin("a"))
	assert.Equal(t, 0, m.UnregisterPlugin("a"))

	m.Post(newTestEvent(EmptyContext(), "root"))
	assert.Equal(t, 10, calls)
	assert.Len(t, m.Handles(), 1)
}

func TestPostCancellation(t *testing.T) {
	m := NewEventManager(nil)
	var lateCalls, monitorCalls int
	var monitorSaw bool

	_, err := m.Register("p", func(e *testEvent) { e.SetCancelled(true) }, WithOrder(OrderEarly))
	require.NoError(t, err)
	_, err = m.Register("p", func(e *testEvent) { lateCalls++ }, WithOrder(OrderLate))
	require.NoError(t, err)
	_, err = m.Register("p", func(e *testEvent) {
		monitorCalls++
		monitorSaw = e.IsCancelled()
	}, WithOrder(OrderPost), WithCancelled(Undefined))
	require.NoError(t, err)

	assert.True(t, m.Post(newTestEvent(EmptyContext(), "root")))
	assert.Zero(t, lateCalls)
	assert.Equal(t, 1, monitorCalls)
	assert.True(t, monitorSaw)

	assert.False(t, m.Post(newOtherEvent(EmptyContext(), "root")))
}

func TestPostIgnoresNilEvents(t *testing.T) {
	logger, buf := newTestLogger()
	m := NewEventManager(nil, WithLogger(logger))
	var calls int
	_, err := m.Register("p", func(*testEvent) { calls++ }, WithCancelled(Undefined))
	require.NoError(t, err)
	buf.Reset()

	assert.NotPanics(t, func() {
		assert.False(t, m.Post((*testEvent)(nil)))
		assert.False(t, m.Post(nil))
	})
	assert.Zero(t, calls)
	assert.Empty(t, buf.String())
}

func TestListenerPanicIsRecovered(t *testing.T) {
	logger, buf := newTestLogger()
	m := NewEventManager(nil, WithLogger(logger))
	var after int

	_, err := m.Register("p", func(*testEvent) { panic("boom") }, Named("exploding"))
	require.NoError(t, err)
	_, err = m.Register("p", func(*testEvent) { after++ })
	require.NoError(t, err)

	assert.NotPanics(t, func() { m.Post(newTestEvent(EmptyContext(), "root")) })
	assert.Equal(t, 1, after)
	assert.Contains(t, buf.String(), "sponge: panic in listener")
	assert.Contains(t, buf.String(), "listener=exploding")
}

func TestPanicHandler(t *testing.T) {
	var gotHandle *Handle
	var gotValue any
	m := NewEventManager(nil, WithPanicHandler(func(h *Handle, e Event, recovered any) {
		gotHandle, gotValue = h, recovered
	}))

	h, err := m.Register("p", func(*testEvent) { panic(errors.New("boom")) })
	require.NoError(t, err)

	m.Post(newTestEvent(EmptyContext(), "root"))
	assert.Same(t, h, gotHandle)
	assert.EqualError(t, gotValue.(error), "boom")
}

func TestRegisterFailure(t *testing.T) {
	logger, buf := newTestLogger()
	m := NewEventManager(nil, WithLogger(logger))

	_, err := m.Register("protect", func(e *testEvent, u *User) {},
		Params(ContextValue("NOT_REGISTERED")), Named("onBreak"))
	require.Error(t, err)

	var lerr *ListenerError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "protect", lerr.Plugin)
	assert.Equal(t, "onBreak", lerr.Listener)
	assert.ErrorIs(t, err, ErrUnknownContextKey)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "sponge: listener registration failed")

	_, err = m.Register("protect", func(e *testEvent) {}, WithOrder(Order(-1)))
	assert.ErrorIs(t, err, ErrInvalidListener)

	_, err = m.Register("protect", "not a func")
	assert.ErrorIs(t, err, ErrInvalidListener)
}

func TestSkipsAreNotLoggedAsFailures(t *testing.T) {
	logger, buf := newTestLogger()
	m := NewEventManager(nil, WithLogger(logger))

	_, err := m.Register("p", func(e *testEvent, u *User) {}, Params(ContextValue(KeyOwner)))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sponge: listener registered")
	buf.Reset()

	m.Post(newTestEvent(EmptyContext(), "root"))
	assert.Empty(t, buf.String())

	traced, tbuf := newTestLogger()
	m = NewEventManager(nil, WithLogger(traced), WithTraceSkips(true))
	_, err = m.Register("p", func(e *testEvent, u *User) {}, Params(ContextValue(KeyOwner)))
	require.NoError(t, err)
	tbuf.Reset()

	m.Post(newTestEvent(EmptyContext(), "root"))
	assert.Contains(t, tbuf.String(), "level=DEBUG")
	assert.Contains(t, tbuf.String(), "sponge: listener skipped")
	assert.NotContains(t, tbuf.String(), "level=WARN")
	assert.NotContains(t, tbuf.String(), "level=ERROR")
}

func TestConcurrentPost(t *testing.T) {
	m := NewEventManager(nil)
	owner := mustKey(t, m.Registry(), KeyOwner)
	var hits atomic.Int64

	_, err := m.Register("p", func(e *testEvent, u *User) { hits.Add(1) }, Params(ContextValue(KeyOwner)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ctx := NewContextBuilder().Add(owner, newTestUser()).Build()
				m.Post(newTestEvent(ctx, "root"))
				m.Post(newOtherEvent(ctx, "root"))
			}
		}()
	}
	// registration while posting must not race
	for i := 0; i < 10; i++ {
		h, err := m.Register("q", func(*otherEvent) {})
		require.NoError(t, err)
		h.Unregister()
	}
	wg.Wait()

	assert.Equal(t, int64(800), hits.Load())
}

func TestBundleAndBuilder(t *testing.T) {
	var chats int
	bund := NewBundle("protect").
		Listener(func(e *testEvent, u *User) { chats++ }, Params(ContextValue(KeyOwner))).
		Listener(func(e *testEvent, u *User) {}, Params(ContextValue("NOT_REGISTERED"))).
		Listener(func(e *testEvent, u *User) {}).
		Listener(func(e *testEvent, r string) {}, Params(ContextValue("REGION")))
	require.Equal(t, 4, bund.Len())
	assert.Equal(t, "protect", bund.Name())

	m, err := NewBuilder().
		ContextKey("REGION", TypeOf[string]()).
		Option(WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))).
		Bundle(bund).
		Init()
	require.Error(t, err)
	require.NotNil(t, m)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 2)
	for _, e := range merr.Errors {
		var lerr *ListenerError
		assert.ErrorAs(t, e, &lerr)
		assert.Equal(t, "protect", lerr.Plugin)
	}
	assert.ErrorIs(t, merr.Errors[0], ErrUnknownContextKey)
	assert.ErrorIs(t, merr.Errors[1], ErrInvalidListener)

	assert.Len(t, m.Handles(), 2)
	ctx := NewContextBuilder().Add(mustKey(t, m.Registry(), KeyOwner), newTestUser()).Build()
	m.Post(newTestEvent(ctx, "root"))
	assert.Equal(t, 1, chats)
}

func TestBuilderCustomRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := NewContextKey[*User](r, "VIP")
	require.NoError(t, err)

	m, err := NewBuilder().
		Registry(r).
		Bundle(NewBundle("vip").Listener(func(e *testEvent, u *User) {}, Params(ContextValue("VIP")))).
		Init()
	require.NoError(t, err)
	assert.Same(t, r, m.Registry())

	_, err = NewBuilder().Registry(r).ContextKey("VIP", TypeOf[*User]()).Init()
	assert.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestHostKeys(t *testing.T) {
	m := NewEventManager(nil)
	keys := m.hostKeys()
	assert.Equal(t, KeyOwner, keys.owner.Name())
	assert.Equal(t, KeyPlayer, keys.player.Name())
	assert.Same(t, keys, m.hostKeys())

	bare := NewEventManager(NewRegistry())
	assert.Nil(t, bare.hostKeys().owner)
	ctx := NewContextBuilder().Add(bare.hostKeys().owner, newTestUser()).Build()
	assert.True(t, ctx.IsEmpty())
}

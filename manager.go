package sponge

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// EventManager is the central sponge coordinator.
// It compiles listeners into dispatchers and posts events to them.
// Multiple EventManager instances can coexist, each with its own registry.
type EventManager struct {
	// registry resolves context key names at registration
	registry *Registry

	// gen compiles listeners
	gen *FilterGenerator

	opts options

	// mu serialises registration and cache rebuilds
	mu sync.Mutex

	// listeners is sorted by order, then registration sequence
	listeners []*registeredListener

	// byEvent caches reflect.Type (dynamic event type) -> []*registeredListener
	byEvent sync.Map

	// seq is the registration sequence
	seq uint64

	keysOnce sync.Once
	keys     hostKeys
}

type registeredListener struct {
	handle     *Handle
	dispatcher *Dispatcher
	eventType  reflect.Type
	seq        uint64
}

// Handle identifies a registered listener.
type Handle struct {
	id      uuid.UUID
	plugin  string
	name    string
	order   Order
	manager *EventManager
}

// ID returns the unique registration id.
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Plugin returns the id of the plugin that registered the listener.
func (h *Handle) Plugin() string {
	return h.plugin
}

// Name returns the listener name.
func (h *Handle) Name() string {
	return h.name
}

// Order returns the listener order.
func (h *Handle) Order() Order {
	return h.order
}

// Unregister removes the listener. It returns false if it was already removed.
func (h *Handle) Unregister() bool {
	return h.manager.unregister(func(l *registeredListener) bool { return l.handle == h }) > 0
}

// NewEventManager creates an event manager resolving context keys against r.
// A nil registry is replaced by NewDefaultRegistry().
func NewEventManager(r *Registry, opts ...Option) *EventManager {
	if r == nil {
		r = NewDefaultRegistry()
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &EventManager{
		registry: r,
		gen:      NewFilterGenerator(r),
		opts:     o,
	}
}

// Registry returns the registry of the manager.
func (m *EventManager) Registry() *Registry {
	return m.registry
}

// Register compiles fn and adds it to the dispatch table.
//
// fn must be a func whose first parameter implements Event. Every further
// parameter needs one filter, given with Params:
//
//	h, err := m.Register("myplugin", func(e *sponge.ChatEvent, owner *sponge.User) {
//	    ...
//	}, sponge.Params(sponge.ContextValue(sponge.KeyOwner)))
//
// On error the listener is not registered. An unknown context key yields an
// *UnknownContextKeyError.
func (m *EventManager) Register(plugin string, fn any, opts ...ListenerOption) (*Handle, error) {
	cfg := defaultListenerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	h, err := m.register(plugin, fn, cfg)
	if err != nil {
		name := cfg.name
		if name == "" && fn != nil && reflect.TypeOf(fn).Kind() == reflect.Func {
			name = funcName(reflect.ValueOf(fn))
		}
		m.opts.logger.Warn("sponge: listener registration failed",
			"plugin", plugin,
			"listener", name,
			"error", err,
		)
		return nil, &ListenerError{Plugin: plugin, Listener: name, Err: err}
	}
	return h, nil
}

func (m *EventManager) register(plugin string, fn any, cfg listenerConfig) (*Handle, error) {
	if !cfg.order.valid() {
		return nil, fmt.Errorf("%w: invalid order %d", ErrInvalidListener, int(cfg.order))
	}
	meta, err := analyzeListener(cfg.name, fn, cfg.filters)
	if err != nil {
		return nil, err
	}
	shape, err := m.gen.Generate(meta, cfg.eventFilter())
	if err != nil {
		return nil, err
	}
	d, err := shape.NewInstance(m.registry)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		id:      uuid.New(),
		plugin:  plugin,
		name:    meta.Name,
		order:   cfg.order,
		manager: m,
	}

	m.mu.Lock()
	m.seq++
	l := &registeredListener{handle: h, dispatcher: d, eventType: meta.EventType, seq: m.seq}
	i, _ := slices.BinarySearchFunc(m.listeners, l, compareListeners)
	m.listeners = slices.Insert(m.listeners, i, l)
	m.byEvent.Clear()
	m.mu.Unlock()

	if m.opts.logger.Enabled(context.Background(), slog.LevelDebug) {
		m.opts.logger.Debug("sponge: listener registered",
			"plugin", plugin,
			"listener", h.name,
			"order", h.order,
			"shape", shape.String(),
		)
	}
	return h, nil
}

func compareListeners(a, b *registeredListener) int {
	if a.handle.order != b.handle.order {
		return int(a.handle.order) - int(b.handle.order)
	}
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	}
	return 0
}

// UnregisterPlugin removes every listener of plugin and returns how many
// were removed.
func (m *EventManager) UnregisterPlugin(plugin string) int {
	return m.unregister(func(l *registeredListener) bool { return l.handle.plugin == plugin })
}

func (m *EventManager) unregister(match func(*registeredListener) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.listeners)
	m.listeners = slices.DeleteFunc(m.listeners, match)
	removed := n - len(m.listeners)
	if removed > 0 {
		m.byEvent.Clear()
	}
	return removed
}

// Handles returns the handles of all registered listeners in dispatch order.
func (m *EventManager) Handles() []*Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Handle, len(m.listeners))
	for i, l := range m.listeners {
		out[i] = l.handle
	}
	return out
}

// listenersFor returns the listeners whose event parameter accepts t.
func (m *EventManager) listenersFor(t reflect.Type) []*registeredListener {
	if v, ok := m.byEvent.Load(t); ok {
		return v.([]*registeredListener)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.byEvent.Load(t); ok {
		return v.([]*registeredListener)
	}
	var out []*registeredListener
	for _, l := range m.listeners {
		if t.AssignableTo(l.eventType) {
			out = append(out, l)
		}
	}
	m.byEvent.Store(t, out)
	return out
}

// Post dispatches e to every listener accepting it and reports whether e
// ended up cancelled. A nil event, including a typed nil pointer, is
// ignored. Post is safe for concurrent use.
func (m *EventManager) Post(e Event) bool {
	if e == nil {
		return false
	}
	if v := reflect.ValueOf(e); v.Kind() == reflect.Pointer && v.IsNil() {
		return false
	}
	for _, l := range m.listenersFor(reflect.TypeOf(e)) {
		m.dispatch(l, e)
	}
	if c, ok := e.(Cancellable); ok {
		return c.IsCancelled()
	}
	return false
}

// dispatch invokes one listener with panic recovery.
func (m *EventManager) dispatch(l *registeredListener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			m.handleListenerPanic(l, e, r)
		}
	}()
	if !l.dispatcher.Invoke(e) && m.opts.traceSkips {
		m.opts.logger.Debug("sponge: listener skipped",
			"plugin", l.handle.plugin,
			"listener", l.handle.name,
			"event", fmt.Sprintf("%T", e),
		)
	}
}

func (m *EventManager) handleListenerPanic(l *registeredListener, e Event, recovered any) {
	if m.opts.panicHandler != nil {
		m.opts.panicHandler(l.handle, e, recovered)
		return
	}
	m.opts.logger.Error("sponge: panic in listener",
		"plugin", l.handle.plugin,
		"listener", l.handle.name,
		"event", fmt.Sprintf("%T", e),
		"panic", recovered,
		"stack", string(debug.Stack()),
	)
}

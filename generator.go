package sponge

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync/atomic"
)

var (
	eventInterface       = reflect.TypeOf((*Event)(nil)).Elem()
	cancellableInterface = reflect.TypeOf((*Cancellable)(nil)).Elem()
)

// ListenerMeta holds pre-computed metadata about a listener func.
// It is computed once at registration and never changes.
type ListenerMeta struct {
	// Name is the listener name for debugging
	Name string

	// Func is the listener itself
	Func reflect.Value

	// EventType is the static type of the first parameter
	EventType reflect.Type

	// Params describes every filtered parameter, in signature order
	Params []ParamMeta
}

// ParamMeta holds the metadata of one filtered parameter.
type ParamMeta struct {
	// Index is the position in the signature, 1 for the first filtered one
	Index int

	// Type is the static parameter type
	Type reflect.Type

	// Filter is the descriptor the parameter is extracted with
	Filter FilterDescriptor
}

// analyzeListener checks the signature of fn against filters.
func analyzeListener(name string, fn any, filters []Filter) (*ListenerMeta, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil func", ErrInvalidListener)
	}
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: listener must be a func, got %v", ErrInvalidListener, t)
	}
	if v.IsNil() {
		return nil, fmt.Errorf("%w: nil func", ErrInvalidListener)
	}
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic listener %v", ErrInvalidListener, t)
	}
	if t.NumIn() == 0 || !t.In(0).Implements(eventInterface) {
		return nil, fmt.Errorf("%w: first parameter of %v must implement sponge.Event", ErrInvalidListener, t)
	}
	if t.NumOut() != 0 {
		return nil, fmt.Errorf("%w: listener %v must not return values", ErrInvalidListener, t)
	}
	if got, want := len(filters), t.NumIn()-1; got != want {
		return nil, fmt.Errorf("%w: %v has %d filtered parameters but %d filters", ErrInvalidListener, t, want, got)
	}

	if name == "" {
		name = funcName(v)
	}

	meta := &ListenerMeta{
		Name:      name,
		Func:      v,
		EventType: t.In(0),
		Params:    make([]ParamMeta, len(filters)),
	}
	for i, f := range filters {
		meta.Params[i] = ParamMeta{
			Index:  i + 1,
			Type:   t.In(i + 1),
			Filter: f.Descriptor(),
		}
	}
	return meta, nil
}

// funcName returns the short runtime name of a func, e.g. main.onChat.
func funcName(v reflect.Value) string {
	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		return v.Type().String()
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// eventFilter holds the filters applied to the event parameter itself.
type eventFilter struct {
	types     []Type
	inverse   bool
	cancelled Tristate
}

// FilterGenerator compiles listeners into shapes, resolving context keys
// against its registry.
type FilterGenerator struct {
	registry *Registry
	seq      atomic.Uint64
}

// NewFilterGenerator creates a generator bound to r.
func NewFilterGenerator(r *Registry) *FilterGenerator {
	return &FilterGenerator{registry: r}
}

// Generate compiles meta into a shape. The program stores the event in
// local 0 and the narrowed value of filtered parameter i in local i.
func (g *FilterGenerator) Generate(meta *ListenerMeta, ef eventFilter) (*Shape, error) {
	sources := make([]filterSource, len(meta.Params))
	for i, p := range meta.Params {
		src, err := newFilterSource(g.registry, p.Filter, paramInfo{index: p.Index, typ: p.Type}, meta.EventType)
		if err != nil {
			return nil, err
		}
		sources[i] = src
	}
	for i, t := range ef.types {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: event type filter entry %d is invalid", ErrFilterMismatch, i)
		}
	}
	if ef.cancelled < False || ef.cancelled > True {
		return nil, fmt.Errorf("%w: unknown cancellation state %d", ErrInvalidListener, int(ef.cancelled))
	}
	if ef.cancelled == True && meta.EventType.Kind() != reflect.Interface && !meta.EventType.Implements(cancellableInterface) {
		return nil, fmt.Errorf("%w: %v can never be cancelled", ErrInvalidListener, meta.EventType)
	}

	cw := newClassWriter(fmt.Sprintf("%s#%d", meta.Name, g.seq.Add(1)))
	for _, src := range sources {
		src.declareFields(cw)
	}
	for _, src := range sources {
		src.writeCtor(cw)
	}

	mw := newMethodWriter()
	mw.LoadEvent()
	mw.StoreLocal(0)
	emitTypeFilter(mw, cw, 0, TypeFor(meta.EventType), ef.types, ef.inverse)
	emitCancelledFilter(mw, ef.cancelled)

	for i, src := range sources {
		local := i + 1
		src.insertCall(mw, cw)
		mw.StoreLocal(local)
		src.insertTransform(mw, cw, local)
	}
	mw.Invoke(len(sources) + 1)

	return cw.define(mw, meta.Func, meta.EventType)
}

// emitCancelledFilter skips the listener depending on the cancellation
// state of the event in local 0.
func emitCancelledFilter(mw *methodWriter, t Tristate) {
	var op Opcode
	switch t {
	case False:
		op = OpIfEq
	case True:
		op = OpIfNe
	default:
		return
	}
	proceed := mw.NewLabel()
	mw.LoadLocal(0)
	mw.IsCancelled()
	mw.Jump(op, proceed)
	mw.ReturnSkip()
	mw.Mark(proceed)
}

// NewShape compiles fn without registering it. Only the filter related
// options are used.
func NewShape(r *Registry, fn any, opts ...ListenerOption) (*Shape, error) {
	cfg := defaultListenerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	meta, err := analyzeListener(cfg.name, fn, cfg.filters)
	if err != nil {
		return nil, err
	}
	return NewFilterGenerator(r).Generate(meta, cfg.eventFilter())
}

func (c *listenerConfig) eventFilter() eventFilter {
	return eventFilter{types: c.events, inverse: c.exclude, cancelled: c.cancelled}
}

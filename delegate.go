package sponge

import (
	"fmt"
	"reflect"
)

// paramInfo describes the listener parameter a filter source feeds.
type paramInfo struct {
	// index is the position in the listener signature.
	index int

	// typ is the static parameter type, the target of every narrowing.
	typ reflect.Type
}

// filterSource is the contribution of one filter kind to a shape. The
// generator calls the methods in declaration order: declareFields and
// writeCtor while the class is laid out, then insertCall and
// insertTransform while the dispatch program is emitted.
type filterSource interface {
	// declareFields declares the persistent fields of the filter.
	declareFields(cw *classWriter)

	// writeCtor adds the constructor steps that initialize those fields.
	writeCtor(cw *classWriter)

	// insertCall emits code leaving the raw value on the stack.
	insertCall(mw *methodWriter, cw *classWriter)

	// insertTransform emits code that narrows the value in local, or skips
	// the listener.
	insertTransform(mw *methodWriter, cw *classWriter, local int)
}

// typeFilterTransform implements insertTransform for every source with the
// standard type filter: the value must be an instance of the parameter type
// and then pass the allow or deny list in declaration order.
type typeFilterTransform struct {
	param   paramInfo
	types   []Type
	inverse bool
}

func (t *typeFilterTransform) insertTransform(mw *methodWriter, cw *classWriter, local int) {
	emitTypeFilter(mw, cw, local, TypeFor(t.param.typ), t.types, t.inverse)
}

// emitTypeFilter emits:
//
//	    LOAD_LOCAL local
//	    INSTANCEOF target
//	    IFEQ fail                 ; IFNE success if types is empty
//	    LOAD_LOCAL local          ; repeated per type
//	    INSTANCEOF type
//	    IFNE success              ; IFNE fail if inverse
//	    GOTO success              ; only if inverse
//	fail:
//	    RETURN_SKIP
//	success:
func emitTypeFilter(mw *methodWriter, cw *classWriter, local int, target Type, types []Type, inverse bool) {
	fail := mw.NewLabel()
	success := mw.NewLabel()

	mw.LoadLocal(local)
	mw.InstanceOf(cw.typeConst(target))
	if len(types) == 0 {
		mw.Jump(OpIfNe, success)
	} else {
		mw.Jump(OpIfEq, fail)
		for _, t := range types {
			mw.LoadLocal(local)
			mw.InstanceOf(cw.typeConst(t))
			if inverse {
				mw.Jump(OpIfNe, fail)
			} else {
				mw.Jump(OpIfNe, success)
			}
		}
		if inverse {
			mw.Jump(OpGoto, success)
		}
	}

	mw.Mark(fail)
	mw.ReturnSkip()
	mw.Mark(success)
}

// contextValueSource reads a value from the event context.
type contextValueSource struct {
	typeFilterTransform
	name  string
	field int
}

var contextKeyPtrType = reflect.TypeOf((*ContextKey)(nil))

func (s *contextValueSource) declareFields(cw *classWriter) {
	s.field = cw.visitField("contextKey", contextKeyPtrType)
}

func (s *contextValueSource) writeCtor(cw *classWriter) {
	name := s.name
	cw.initField(s.field, func(r *Registry) (any, error) {
		return resolveContextKey(r, name)
	})
}

func (s *contextValueSource) insertCall(mw *methodWriter, _ *classWriter) {
	mw.LoadEvent()
	mw.LoadField(s.field)
	mw.ContextGet()
}

// causeSource takes a single object from the cause chain.
type causeSource struct {
	typeFilterTransform
	mode   causeMode
	anchor Type
}

func (s *causeSource) declareFields(*classWriter) {}

func (s *causeSource) writeCtor(*classWriter) {}

func (s *causeSource) insertCall(mw *methodWriter, cw *classWriter) {
	mw.LoadEvent()
	switch s.mode {
	case causeFirst, causeLast:
		mw.CauseQuery(s.mode, cw.typeConst(TypeFor(s.param.typ)))
	case causeBefore, causeAfter:
		mw.CauseQuery(s.mode, cw.typeConst(s.anchor))
	default:
		mw.CauseQuery(s.mode, -1)
	}
}

// allSource collects the cause objects matching the element type of a slice
// parameter.
type allSource struct {
	typeFilterTransform
	keepEmpty bool
}

func (s *allSource) declareFields(*classWriter) {}

func (s *allSource) writeCtor(*classWriter) {}

func (s *allSource) insertCall(mw *methodWriter, cw *classWriter) {
	mode := causeAll
	if s.keepEmpty {
		mode = causeAllKeepEmpty
	}
	mw.LoadEvent()
	mw.CauseQuery(mode, cw.typeConst(TypeFor(s.param.typ)))
}

// getterSource calls a method of the event.
type getterSource struct {
	typeFilterTransform
	getter *eventGetter
	field  int
}

func (s *getterSource) declareFields(cw *classWriter) {
	s.field = cw.visitField("getter", eventGetterType)
}

func (s *getterSource) writeCtor(cw *classWriter) {
	g := s.getter
	cw.initField(s.field, func(*Registry) (any, error) {
		return g, nil
	})
}

func (s *getterSource) insertCall(mw *methodWriter, _ *classWriter) {
	mw.LoadEvent()
	mw.CallGetter(s.field)
}

// newFilterSource validates d against the parameter and the listener's
// event type and returns the matching source.
func newFilterSource(r *Registry, d FilterDescriptor, p paramInfo, eventType reflect.Type) (filterSource, error) {
	tf := typeFilterTransform{param: p, types: d.TypeFilter, inverse: d.Inverse}
	for i, t := range d.TypeFilter {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: parameter %d: %s: type filter entry %d is invalid", ErrFilterMismatch, p.index, d, i)
		}
	}

	switch d.Kind {
	case KindContextValue:
		if _, err := resolveContextKey(r, d.Key); err != nil {
			return nil, err
		}
		return &contextValueSource{typeFilterTransform: tf, name: d.Key}, nil

	case KindRoot:
		return &causeSource{typeFilterTransform: tf, mode: causeRoot}, nil
	case KindFirst:
		return &causeSource{typeFilterTransform: tf, mode: causeFirst}, nil
	case KindLast:
		return &causeSource{typeFilterTransform: tf, mode: causeLast}, nil

	case KindBefore, KindAfter:
		if !d.Anchor.Valid() {
			return nil, fmt.Errorf("%w: parameter %d: %s needs an anchor type", ErrFilterMismatch, p.index, d.Kind)
		}
		mode := causeBefore
		if d.Kind == KindAfter {
			mode = causeAfter
		}
		return &causeSource{typeFilterTransform: tf, mode: mode, anchor: d.Anchor}, nil

	case KindAll:
		if p.typ.Kind() != reflect.Slice {
			return nil, fmt.Errorf("%w: parameter %d: All needs a slice parameter, got %s", ErrFilterMismatch, p.index, p.typ)
		}
		if len(d.TypeFilter) > 0 {
			return nil, fmt.Errorf("%w: parameter %d: All does not take a type filter", ErrFilterMismatch, p.index)
		}
		return &allSource{typeFilterTransform: tf, keepEmpty: d.KeepEmpty}, nil

	case KindGetter:
		g, err := resolveGetter(eventType, d.Key, p)
		if err != nil {
			return nil, err
		}
		return &getterSource{typeFilterTransform: tf, getter: g}, nil

	default:
		return nil, fmt.Errorf("%w: parameter %d: unknown filter kind %d", ErrFilterMismatch, p.index, int(d.Kind))
	}
}

// resolveGetter finds method name on eventType. The method must be exported,
// take no arguments and return one value convertible to or from the
// parameter type.
func resolveGetter(eventType reflect.Type, name string, p paramInfo) (*eventGetter, error) {
	m, ok := eventType.MethodByName(name)
	if !ok || !m.IsExported() {
		return nil, fmt.Errorf("%w: %s has no exported method %q", ErrUnknownGetter, eventType, name)
	}

	mt := m.Type
	in := mt.NumIn()
	index := m.Index
	if eventType.Kind() == reflect.Interface {
		// interface method types carry no receiver and their index is not
		// valid on the dynamic type
		index = -1
	} else {
		in--
	}
	if in != 0 || mt.NumOut() != 1 {
		return nil, fmt.Errorf("%w: %s.%s must take no arguments and return one value", ErrUnknownGetter, eventType, name)
	}

	out := mt.Out(0)
	if !out.AssignableTo(p.typ) && !p.typ.AssignableTo(out) {
		return nil, fmt.Errorf("%w: parameter %d: %s.%s returns %s, not compatible with %s",
			ErrFilterMismatch, p.index, eventType, name, out, p.typ)
	}
	return &eventGetter{name: name, recv: eventType, index: index}, nil
}

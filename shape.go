package sponge

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// FieldDecl describes a persistent field of a Shape.
type FieldDecl struct {
	// Name is deterministic: a kind prefix followed by a per-kind index,
	// e.g. contextKey0.
	Name string

	// Type is the type of the value the constructor stores.
	Type reflect.Type
}

// ctorStep initializes one field when a Shape is instantiated.
type ctorStep struct {
	field int
	init  func(*Registry) (any, error)
}

// classWriter collects the fields, constructor steps and type constants of
// a shape while filter sources contribute to it.
type classWriter struct {
	name     string
	fields   []FieldDecl
	ctor     []ctorStep
	types    []Type
	typeIdx  map[reflect.Type]int
	counters map[string]int
}

func newClassWriter(name string) *classWriter {
	return &classWriter{
		name:     name,
		typeIdx:  make(map[reflect.Type]int),
		counters: make(map[string]int),
	}
}

// visitField declares a field named prefix<n> and returns its index.
func (cw *classWriter) visitField(prefix string, t reflect.Type) int {
	n := cw.counters[prefix]
	cw.counters[prefix] = n + 1
	cw.fields = append(cw.fields, FieldDecl{Name: prefix + strconv.Itoa(n), Type: t})
	return len(cw.fields) - 1
}

// initField appends a constructor step for field. Steps run in the order
// they were added.
func (cw *classWriter) initField(field int, init func(*Registry) (any, error)) {
	cw.ctor = append(cw.ctor, ctorStep{field: field, init: init})
}

// typeConst returns the index of t in the type constant table.
func (cw *classWriter) typeConst(t Type) int {
	if i, ok := cw.typeIdx[t.t]; ok {
		return i
	}
	cw.types = append(cw.types, t)
	cw.typeIdx[t.t] = len(cw.types) - 1
	return len(cw.types) - 1
}

// define finishes mw and produces the shape.
func (cw *classWriter) define(mw *methodWriter, fn reflect.Value, eventType reflect.Type) (*Shape, error) {
	prog, err := mw.finish(len(cw.fields), len(cw.types))
	if err != nil {
		return nil, fmt.Errorf("define %s: %w", cw.name, err)
	}

	ft := fn.Type()
	params := make([]reflect.Type, ft.NumIn())
	for i := range params {
		params[i] = ft.In(i)
	}

	s := &Shape{
		name:      cw.name,
		fields:    cw.fields,
		ctor:      cw.ctor,
		types:     cw.types,
		program:   prog,
		fn:        fn,
		eventType: eventType,
		params:    params,
	}
	s.frames.New = func() any {
		return &frame{
			stack:  make([]any, 0, prog.maxStack),
			locals: make([]any, prog.maxLocals),
			args:   make([]reflect.Value, len(params)),
		}
	}
	return s, nil
}

// Shape is the compiled form of one listener: its persistent fields, the
// constructor that initializes them, and the verified dispatch program.
// A Shape is immutable and may be instantiated any number of times.
type Shape struct {
	name      string
	fields    []FieldDecl
	ctor      []ctorStep
	types     []Type
	program   *Program
	fn        reflect.Value
	eventType reflect.Type
	params    []reflect.Type

	frames sync.Pool
}

// Name returns the shape name.
func (s *Shape) Name() string {
	return s.name
}

// Fields returns the field declarations.
func (s *Shape) Fields() []FieldDecl {
	out := make([]FieldDecl, len(s.fields))
	copy(out, s.fields)
	return out
}

// Program returns the dispatch program.
func (s *Shape) Program() *Program {
	return s.program
}

// EventType returns the static type of the listener's event parameter.
func (s *Shape) EventType() reflect.Type {
	return s.eventType
}

// String disassembles the shape with named operands.
func (s *Shape) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "shape %s\n", s.name)
	for _, f := range s.fields {
		fmt.Fprintf(&sb, "  field %s %s\n", f.Name, f.Type)
	}
	sb.WriteString(disassemble(s.program, s.fields, s.types))
	return sb.String()
}

// NewInstance runs the constructor and returns a ready Dispatcher. Any
// constructor failure is returned as is and no Dispatcher is produced.
func (s *Shape) NewInstance(r *Registry) (*Dispatcher, error) {
	fields := make([]any, len(s.fields))
	for _, step := range s.ctor {
		v, err := step.init(r)
		if err != nil {
			return nil, err
		}
		decl := s.fields[step.field]
		if v == nil || !reflect.TypeOf(v).AssignableTo(decl.Type) {
			return nil, fmt.Errorf("sponge: %s: field %s initialized with %T, want %s", s.name, decl.Name, v, decl.Type)
		}
		fields[step.field] = v
	}
	return &Dispatcher{shape: s, fields: fields}, nil
}

// Dispatcher is a constructed Shape. Invoke is safe for concurrent use;
// the fields are read-only after construction.
type Dispatcher struct {
	shape  *Shape
	fields []any
}

// Shape returns the shape the dispatcher was constructed from.
func (d *Dispatcher) Shape() *Shape {
	return d.shape
}

type frame struct {
	stack  []any
	locals []any
	args   []reflect.Value
}

func (f *frame) push(v any) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() any {
	v := f.stack[len(f.stack)-1]
	f.stack[len(f.stack)-1] = nil
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) reset() {
	clear(f.stack[:cap(f.stack)])
	f.stack = f.stack[:0]
	clear(f.locals)
	clear(f.args)
}

// Invoke runs the dispatch program against e. It returns true if every
// filter matched and the listener was called, false if the event was
// skipped. Listener panics propagate to the caller.
func (d *Dispatcher) Invoke(e Event) bool {
	s := d.shape
	f := s.frames.Get().(*frame)
	defer func() {
		f.reset()
		s.frames.Put(f)
	}()

	code := s.program.code
	for pc := 0; ; pc++ {
		in := code[pc]
		switch in.Op {
		case OpLoadEvent:
			f.push(e)
		case OpLoadField:
			f.push(d.fields[in.A])
		case OpLoadLocal:
			f.push(f.locals[in.A])
		case OpStoreLocal:
			f.locals[in.A] = f.pop()
		case OpContextGet:
			key, _ := f.pop().(*ContextKey)
			ev, _ := f.pop().(Event)
			var v any
			if ev != nil {
				v, _ = ev.Cause().Context().Get(key)
			}
			f.push(v)
		case OpCauseQuery:
			ev, _ := f.pop().(Event)
			f.push(s.causeQuery(ev, causeMode(in.A), in.B))
		case OpCallGetter:
			ev, _ := f.pop().(Event)
			f.push(d.fields[in.A].(*eventGetter).call(ev))
		case OpInstanceOf:
			f.push(s.types[in.A].IsInstance(f.pop()))
		case OpIsCancelled:
			c, ok := f.pop().(Cancellable)
			f.push(ok && c.IsCancelled())
		case OpIfEq:
			if !f.pop().(bool) {
				pc = in.A - 1
			}
		case OpIfNe:
			if f.pop().(bool) {
				pc = in.A - 1
			}
		case OpGoto:
			pc = in.A - 1
		case OpReturnSkip:
			return false
		case OpInvoke:
			for i := 0; i < in.A; i++ {
				if v := f.locals[i]; v != nil {
					f.args[i] = reflect.ValueOf(v)
				} else {
					f.args[i] = reflect.Zero(s.params[i])
				}
			}
			s.fn.Call(f.args[:in.A])
			return true
		default:
			panic(fmt.Sprintf("sponge: %s: unknown opcode %s at pc %d", s.name, in.Op, pc))
		}
	}
}

func (s *Shape) causeQuery(ev Event, mode causeMode, typ int) any {
	if ev == nil {
		return nil
	}
	c := ev.Cause()
	var (
		v  any
		ok bool
	)
	switch mode {
	case causeRoot:
		return c.Root()
	case causeFirst:
		v, ok = c.First(s.types[typ])
	case causeLast:
		v, ok = c.Last(s.types[typ])
	case causeBefore:
		v, ok = c.Before(s.types[typ])
	case causeAfter:
		v, ok = c.After(s.types[typ])
	case causeAll:
		return c.allOfSlice(s.types[typ].t, false)
	case causeAllKeepEmpty:
		return c.allOfSlice(s.types[typ].t, true)
	}
	if !ok {
		return nil
	}
	return v
}

// eventGetter calls a zero-argument method of an event.
type eventGetter struct {
	name  string
	recv  reflect.Type
	index int
}

var eventGetterType = reflect.TypeOf((*eventGetter)(nil))

// call returns the method result, or nil if ev has no such method or the
// result is a nil pointer, interface, map, slice, func or channel.
func (g *eventGetter) call(ev Event) any {
	if ev == nil {
		return nil
	}
	v := reflect.ValueOf(ev)
	var m reflect.Value
	if g.index >= 0 && v.Type() == g.recv {
		m = v.Method(g.index)
	} else {
		m = v.MethodByName(g.name)
	}
	if !m.IsValid() {
		return nil
	}
	out := m.Call(nil)[0]
	switch out.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if out.IsNil() {
			return nil
		}
	}
	return out.Interface()
}

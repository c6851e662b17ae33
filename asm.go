package sponge

import (
	"fmt"
	"strings"
)

// Opcode is an instruction of a dispatch program.
type Opcode uint8

const (
	// OpLoadEvent pushes the event being dispatched.
	OpLoadEvent Opcode = iota
	// OpLoadField pushes instance field A.
	OpLoadField
	// OpLoadLocal pushes local A.
	OpLoadLocal
	// OpStoreLocal pops into local A.
	OpStoreLocal
	// OpContextGet pops a context key and an event and pushes the context
	// value, or nil if absent.
	OpContextGet
	// OpCauseQuery pops an event and pushes the result of cause query A
	// against type constant B (-1 for none), or nil.
	OpCauseQuery
	// OpCallGetter pops an event and pushes the result of the getter in
	// instance field A, or nil.
	OpCallGetter
	// OpInstanceOf pops a value and pushes whether it is an instance of
	// type constant A.
	OpInstanceOf
	// OpIsCancelled pops an event and pushes whether it is cancelled.
	OpIsCancelled
	// OpIfEq pops a bool and jumps to A if it is false.
	OpIfEq
	// OpIfNe pops a bool and jumps to A if it is true.
	OpIfNe
	// OpGoto jumps to A.
	OpGoto
	// OpReturnSkip ends dispatch without calling the listener.
	OpReturnSkip
	// OpInvoke calls the listener with locals 0..A-1 and ends dispatch.
	OpInvoke

	opCount
)

var opNames = [opCount]string{
	OpLoadEvent:   "LOAD_EVENT",
	OpLoadField:   "LOAD_FIELD",
	OpLoadLocal:   "LOAD_LOCAL",
	OpStoreLocal:  "STORE_LOCAL",
	OpContextGet:  "CONTEXT_GET",
	OpCauseQuery:  "CAUSE_QUERY",
	OpCallGetter:  "CALL_GETTER",
	OpInstanceOf:  "INSTANCEOF",
	OpIsCancelled: "IS_CANCELLED",
	OpIfEq:        "IFEQ",
	OpIfNe:        "IFNE",
	OpGoto:        "GOTO",
	OpReturnSkip:  "RETURN_SKIP",
	OpInvoke:      "INVOKE",
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	if op < opCount {
		return opNames[op]
	}
	return fmt.Sprintf("OP(%d)", uint8(op))
}

// isJump reports whether A is a jump target.
func (op Opcode) isJump() bool {
	return op == OpIfEq || op == OpIfNe || op == OpGoto
}

// causeMode selects the query performed by OpCauseQuery.
type causeMode int

const (
	causeRoot causeMode = iota
	causeFirst
	causeLast
	causeBefore
	causeAfter
	causeAll
	causeAllKeepEmpty

	causeModeCount
)

var causeModeNames = [causeModeCount]string{
	causeRoot:         "root",
	causeFirst:        "first",
	causeLast:         "last",
	causeBefore:       "before",
	causeAfter:        "after",
	causeAll:          "all",
	causeAllKeepEmpty: "all+empty",
}

func (m causeMode) String() string {
	if m >= 0 && m < causeModeCount {
		return causeModeNames[m]
	}
	return "unknown"
}

// Instruction is a single program instruction. The meaning of A and B
// depends on Op.
type Instruction struct {
	Op Opcode
	A  int
	B  int
}

// Label marks a program position that jumps can target before it is known.
// The zero Label is invalid.
type Label struct {
	id int
}

// Program is a verified, label-resolved dispatch program.
type Program struct {
	code      []Instruction
	maxStack  int
	maxLocals int
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.code)
}

// MaxStack returns the maximum operand stack depth of any path.
func (p *Program) MaxStack() int {
	return p.maxStack
}

// MaxLocals returns the number of local slots.
func (p *Program) MaxLocals() int {
	return p.maxLocals
}

// Instructions returns a copy of the code.
func (p *Program) Instructions() []Instruction {
	out := make([]Instruction, len(p.code))
	copy(out, p.code)
	return out
}

// String disassembles the program with numeric operands.
func (p *Program) String() string {
	return disassemble(p, nil, nil)
}

// methodWriter assembles the dispatch method of a shape.
// Errors are sticky and reported by finish.
type methodWriter struct {
	code      []Instruction
	labels    []int
	maxLocals int
	err       error
}

func newMethodWriter() *methodWriter {
	return &methodWriter{}
}

// NewLabel creates an unbound label.
func (mw *methodWriter) NewLabel() Label {
	mw.labels = append(mw.labels, -1)
	return Label{id: len(mw.labels)}
}

// Mark binds l to the position of the next emitted instruction.
func (mw *methodWriter) Mark(l Label) {
	if l.id <= 0 || l.id > len(mw.labels) {
		mw.fail("mark of invalid label %d", l.id)
		return
	}
	if mw.labels[l.id-1] >= 0 {
		mw.fail("label %d bound twice", l.id)
		return
	}
	mw.labels[l.id-1] = len(mw.code)
}

func (mw *methodWriter) fail(format string, args ...any) {
	if mw.err == nil {
		mw.err = fmt.Errorf("%w: "+format, append([]any{ErrVerify}, args...)...)
	}
}

func (mw *methodWriter) emit(op Opcode, a, b int) {
	mw.code = append(mw.code, Instruction{Op: op, A: a, B: b})
}

func (mw *methodWriter) useLocal(l int) {
	if l < 0 {
		mw.fail("negative local %d", l)
		return
	}
	if l+1 > mw.maxLocals {
		mw.maxLocals = l + 1
	}
}

func (mw *methodWriter) LoadEvent()           { mw.emit(OpLoadEvent, 0, 0) }
func (mw *methodWriter) LoadField(field int)  { mw.emit(OpLoadField, field, 0) }
func (mw *methodWriter) ContextGet()          { mw.emit(OpContextGet, 0, 0) }
func (mw *methodWriter) CallGetter(field int) { mw.emit(OpCallGetter, field, 0) }
func (mw *methodWriter) InstanceOf(typ int)   { mw.emit(OpInstanceOf, typ, 0) }
func (mw *methodWriter) IsCancelled()         { mw.emit(OpIsCancelled, 0, 0) }
func (mw *methodWriter) ReturnSkip()          { mw.emit(OpReturnSkip, 0, 0) }

func (mw *methodWriter) LoadLocal(l int) {
	mw.useLocal(l)
	mw.emit(OpLoadLocal, l, 0)
}

func (mw *methodWriter) StoreLocal(l int) {
	mw.useLocal(l)
	mw.emit(OpStoreLocal, l, 0)
}

// CauseQuery emits a cause query; typ is a type constant or -1.
func (mw *methodWriter) CauseQuery(mode causeMode, typ int) {
	mw.emit(OpCauseQuery, int(mode), typ)
}

// Jump emits a conditional or unconditional jump to l.
func (mw *methodWriter) Jump(op Opcode, l Label) {
	if !op.isJump() {
		mw.fail("%s is not a jump", op)
		return
	}
	if l.id <= 0 || l.id > len(mw.labels) {
		mw.fail("jump to invalid label %d", l.id)
		return
	}
	mw.emit(op, l.id, 0)
}

// Invoke calls the listener with the first n locals.
func (mw *methodWriter) Invoke(n int) {
	if n > 0 {
		mw.useLocal(n - 1)
	}
	mw.emit(OpInvoke, n, 0)
}

// finish resolves labels and verifies the code.
func (mw *methodWriter) finish(nfields, ntypes int) (*Program, error) {
	if mw.err != nil {
		return nil, mw.err
	}

	code := make([]Instruction, len(mw.code))
	copy(code, mw.code)
	for pc := range code {
		in := &code[pc]
		if !in.Op.isJump() {
			continue
		}
		target := mw.labels[in.A-1]
		if target < 0 {
			return nil, fmt.Errorf("%w: pc %d: jump to unbound label %d", ErrVerify, pc, in.A)
		}
		in.A = target
	}

	maxStack, err := verify(code, mw.maxLocals, nfields, ntypes)
	if err != nil {
		return nil, err
	}
	return &Program{code: code, maxStack: maxStack, maxLocals: mw.maxLocals}, nil
}

// slotKind is the verifier's view of an operand stack slot.
type slotKind uint8

const (
	slotRef slotKind = iota + 1
	slotBool
)

func (k slotKind) String() string {
	switch k {
	case slotRef:
		return "ref"
	case slotBool:
		return "bool"
	default:
		return "?"
	}
}

// verify checks every path through code by abstract interpretation of the
// operand stack and returns the maximum stack depth. Every reachable merge
// point must be entered with the same stack shape, no path may underflow or
// fall off the end, and operands must index existing locals, fields and types.
func verify(code []Instruction, nlocals, nfields, ntypes int) (int, error) {
	if len(code) == 0 {
		return 0, fmt.Errorf("%w: empty program", ErrVerify)
	}

	states := make([][]slotKind, len(code))
	visited := make([]bool, len(code))
	maxStack := 0

	fail := func(pc int, format string, args ...any) (int, error) {
		return 0, fmt.Errorf("%w: pc %d (%s): %s", ErrVerify, pc, code[pc].Op, fmt.Sprintf(format, args...))
	}

	type item struct {
		pc    int
		stack []slotKind
	}
	work := []item{{pc: 0}}

	for len(work) > 0 {
		it := work[len(work)-1]
		work = work[:len(work)-1]

		if it.pc < 0 || it.pc >= len(code) {
			return 0, fmt.Errorf("%w: control falls off the program at pc %d", ErrVerify, it.pc)
		}
		if visited[it.pc] {
			if !sameStack(states[it.pc], it.stack) {
				return fail(it.pc, "stack mismatch at merge: %v vs %v", states[it.pc], it.stack)
			}
			continue
		}
		visited[it.pc] = true
		states[it.pc] = it.stack

		pc := it.pc
		in := code[pc]
		stack := append([]slotKind(nil), it.stack...)

		pop := func(want slotKind) bool {
			if len(stack) == 0 || stack[len(stack)-1] != want {
				return false
			}
			stack = stack[:len(stack)-1]
			return true
		}

		next := []int{pc + 1}
		switch in.Op {
		case OpLoadEvent:
			stack = append(stack, slotRef)
		case OpLoadField:
			if in.A < 0 || in.A >= nfields {
				return fail(pc, "field %d out of range", in.A)
			}
			stack = append(stack, slotRef)
		case OpLoadLocal:
			if in.A < 0 || in.A >= nlocals {
				return fail(pc, "local %d out of range", in.A)
			}
			stack = append(stack, slotRef)
		case OpStoreLocal:
			if in.A < 0 || in.A >= nlocals {
				return fail(pc, "local %d out of range", in.A)
			}
			if !pop(slotRef) {
				return fail(pc, "expected ref on stack %v", it.stack)
			}
		case OpContextGet:
			if !pop(slotRef) || !pop(slotRef) {
				return fail(pc, "expected event and key on stack %v", it.stack)
			}
			stack = append(stack, slotRef)
		case OpCauseQuery:
			if causeMode(in.A) < 0 || causeMode(in.A) >= causeModeCount {
				return fail(pc, "unknown cause query %d", in.A)
			}
			if in.B < -1 || in.B >= ntypes {
				return fail(pc, "type %d out of range", in.B)
			}
			if !pop(slotRef) {
				return fail(pc, "expected event on stack %v", it.stack)
			}
			stack = append(stack, slotRef)
		case OpCallGetter:
			if in.A < 0 || in.A >= nfields {
				return fail(pc, "field %d out of range", in.A)
			}
			if !pop(slotRef) {
				return fail(pc, "expected event on stack %v", it.stack)
			}
			stack = append(stack, slotRef)
		case OpInstanceOf:
			if in.A < 0 || in.A >= ntypes {
				return fail(pc, "type %d out of range", in.A)
			}
			if !pop(slotRef) {
				return fail(pc, "expected ref on stack %v", it.stack)
			}
			stack = append(stack, slotBool)
		case OpIsCancelled:
			if !pop(slotRef) {
				return fail(pc, "expected event on stack %v", it.stack)
			}
			stack = append(stack, slotBool)
		case OpIfEq, OpIfNe:
			if !pop(slotBool) {
				return fail(pc, "expected bool on stack %v", it.stack)
			}
			next = append(next, in.A)
		case OpGoto:
			next = []int{in.A}
		case OpReturnSkip:
			next = nil
		case OpInvoke:
			if in.A < 0 || in.A > nlocals {
				return fail(pc, "invoke with %d of %d locals", in.A, nlocals)
			}
			if len(stack) != 0 {
				return fail(pc, "invoke with non-empty stack %v", stack)
			}
			next = nil
		default:
			return fail(pc, "unknown opcode")
		}

		if len(stack) > maxStack {
			maxStack = len(stack)
		}
		for _, n := range next {
			work = append(work, item{pc: n, stack: stack})
		}
	}

	return maxStack, nil
}

func sameStack(a, b []slotKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// disassemble renders p. fields and types, when given, name the operands.
func disassemble(p *Program, fields []FieldDecl, types []Type) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; max_stack=%d max_locals=%d\n", p.maxStack, p.maxLocals)
	for pc, in := range p.code {
		fmt.Fprintf(&sb, "%04d %-12s", pc, in.Op)
		switch in.Op {
		case OpLoadField, OpCallGetter:
			if in.A < len(fields) {
				fmt.Fprintf(&sb, " %s", fields[in.A].Name)
			} else {
				fmt.Fprintf(&sb, " #%d", in.A)
			}
		case OpLoadLocal, OpStoreLocal, OpInvoke:
			fmt.Fprintf(&sb, " %d", in.A)
		case OpInstanceOf:
			sb.WriteString(" " + typeOperand(in.A, types))
		case OpCauseQuery:
			fmt.Fprintf(&sb, " %s", causeMode(in.A))
			if in.B >= 0 {
				sb.WriteString(" " + typeOperand(in.B, types))
			}
		case OpIfEq, OpIfNe, OpGoto:
			fmt.Fprintf(&sb, " -> %04d", in.A)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func typeOperand(i int, types []Type) string {
	if i >= 0 && i < len(types) {
		return types[i].String()
	}
	return fmt.Sprintf("#%d", i)
}

package sponge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodWriterResolvesLabels(t *testing.T) {
	mw := newMethodWriter()
	skip := mw.NewLabel()
	mw.LoadEvent()
	mw.StoreLocal(0)
	mw.LoadLocal(0)
	mw.IsCancelled()
	mw.Jump(OpIfNe, skip)
	mw.Invoke(1)
	mw.Mark(skip)
	mw.ReturnSkip()

	p, err := mw.finish(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Len())
	assert.Equal(t, 1, p.MaxStack())
	assert.Equal(t, 1, p.MaxLocals())
	assert.Equal(t, Instruction{Op: OpIfNe, A: 6}, p.Instructions()[4])
	assert.Contains(t, p.String(), "0004 IFNE")
	assert.Contains(t, p.String(), "-> 0006")
}

func TestVerifyRejects(t *testing.T) {
	tests := []struct {
		name   string
		emit   func(mw *methodWriter)
		fields int
		types  int
	}{
		{
			name: "empty",
			emit: func(mw *methodWriter) {},
		},
		{
			name: "unbound label",
			emit: func(mw *methodWriter) {
				l := mw.NewLabel()
				mw.LoadEvent()
				mw.IsCancelled()
				mw.Jump(OpIfEq, l)
				mw.ReturnSkip()
			},
		},
		{
			name: "label bound twice",
			emit: func(mw *methodWriter) {
				l := mw.NewLabel()
				mw.Mark(l)
				mw.Mark(l)
				mw.ReturnSkip()
			},
		},
		{
			name: "jump to foreign label",
			emit: func(mw *methodWriter) {
				mw.Jump(OpGoto, Label{id: 3})
			},
		},
		{
			name: "not a jump",
			emit: func(mw *methodWriter) {
				mw.Jump(OpInvoke, mw.NewLabel())
			},
		},
		{
			name: "stack underflow",
			emit: func(mw *methodWriter) {
				mw.StoreLocal(0)
				mw.ReturnSkip()
			},
		},
		{
			name: "bool where ref expected",
			emit: func(mw *methodWriter) {
				mw.LoadEvent()
				mw.IsCancelled()
				mw.StoreLocal(0)
				mw.ReturnSkip()
			},
		},
		{
			name: "ref where bool expected",
			emit: func(mw *methodWriter) {
				l := mw.NewLabel()
				mw.LoadEvent()
				mw.Jump(OpIfEq, l)
				mw.Mark(l)
				mw.ReturnSkip()
			},
		},
		{
			name: "inconsistent merge",
			emit: func(mw *methodWriter) {
				l := mw.NewLabel()
				mw.LoadEvent()
				mw.IsCancelled()
				mw.Jump(OpIfNe, l)
				mw.LoadEvent()
				mw.Mark(l)
				mw.ReturnSkip()
			},
		},
		{
			name: "falls off the end",
			emit: func(mw *methodWriter) {
				mw.LoadEvent()
				mw.StoreLocal(0)
			},
		},
		{
			name: "invoke with operands left",
			emit: func(mw *methodWriter) {
				mw.LoadEvent()
				mw.Invoke(0)
			},
		},
		{
			name: "field out of range",
			emit: func(mw *methodWriter) {
				mw.LoadField(0)
				mw.ReturnSkip()
			},
		},
		{
			name: "type out of range",
			emit: func(mw *methodWriter) {
				mw.LoadEvent()
				mw.InstanceOf(2)
				mw.ReturnSkip()
			},
			types: 2,
		},
		{
			name: "unknown cause query",
			emit: func(mw *methodWriter) {
				mw.LoadEvent()
				mw.CauseQuery(causeModeCount, -1)
				mw.ReturnSkip()
			},
		},
		{
			name: "negative local",
			emit: func(mw *methodWriter) {
				mw.LoadLocal(-1)
				mw.ReturnSkip()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := newMethodWriter()
			tt.emit(mw)
			_, err := mw.finish(tt.fields, tt.types)
			assert.ErrorIs(t, err, ErrVerify)
		})
	}
}

func TestVerifyAcceptsConsistentMerge(t *testing.T) {
	// both branches reach done with a single bool on the stack
	mw := newMethodWriter()
	done := mw.NewLabel()
	skip := mw.NewLabel()
	other := mw.NewLabel()
	mw.LoadEvent()
	mw.IsCancelled()
	mw.Jump(OpIfNe, other)
	mw.LoadEvent()
	mw.InstanceOf(0)
	mw.Jump(OpGoto, done)
	mw.Mark(other)
	mw.LoadEvent()
	mw.IsCancelled()
	mw.Mark(done)
	mw.Jump(OpIfEq, skip)
	mw.Invoke(0)
	mw.Mark(skip)
	mw.ReturnSkip()

	p, err := mw.finish(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.MaxStack())
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "CONTEXT_GET", OpContextGet.String())
	assert.Equal(t, "OP(200)", Opcode(200).String())
	assert.Equal(t, "all+empty", causeAllKeepEmpty.String())
}

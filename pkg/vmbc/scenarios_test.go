package vmbc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/universe"
	"github.com/kristofer/smog/pkg/value"
)

// literalIntArray builds a heap Array of Integers, standing in for
// spec.md §8(c)'s `#(1 2 42 3)` array-literal syntax (the parser
// supports literal arrays too; building one directly keeps this test
// independent of array-literal compilation, already covered elsewhere).
func literalIntArray(t *testing.T, u *universe.Universe, elems ...int32) value.Value {
	t.Helper()
	a := object.NewArray(u.Heap, len(elems))
	for i, e := range elems {
		a.SetAt(i, value.NewInteger(e))
	}
	return a.AsValue()
}

// stringContent reads v's text if it's a heap String.
func stringContent(u *universe.Universe, v value.Value) (string, bool) {
	ref, ok := v.AsPointer()
	if !ok {
		return "", false
	}
	gref := gc.Ref(ref)
	if u.Heap.HeaderType(gref) != object.TypeString {
		return "", false
	}
	return object.HeapString{H: u.Heap, Ref: gref}.String(), true
}

// These tests exercise spec.md's own worked scenarios (a)-(f) end to
// end against the bytecode backend, replacing the teacher's
// language-specific test/*.go suite (deleted: it drove the old flat
// script language, not this one).

// (a) naive recursive Fibonacci.
func TestScenarioFibonacci(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Fib", `Fib = (
		fib: n = (
			^ n <= 1
				ifTrue: [ 1 ]
				ifFalse: [ (self fib: n - 1) + (self fib: n - 2) ]
		)
	)`)
	vm, u := newTestVM(t, dir)
	cls, err := u.LoadClass("Fib")
	require.NoError(t, err)
	recv := object.NewInstance(u.Heap, cls).AsValue()

	result, err := vm.Send(recv, "fib:", []value.Value{value.NewInteger(10)})
	require.NoError(t, err)
	n, ok := result.AsInteger()
	require.True(t, ok)
	assert.Equal(t, int32(55), n)

	result, err = vm.Send(recv, "fib:", []value.Value{value.NewInteger(30)})
	require.NoError(t, err)
	n, ok = result.AsInteger()
	require.True(t, ok)
	assert.Equal(t, int32(832040), n)
}

// (b) a class with private field state mutated across repeated sends.
func TestScenarioCounter(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Counter", `Counter = (
		|total|
		init = ( total := 0. ^self )
		inc = ( total := total + 1. ^self )
		get = ( ^total )
	)`)
	vm, u := newTestVM(t, dir)
	cls, err := u.LoadClass("Counter")
	require.NoError(t, err)
	recv := object.NewInstance(u.Heap, cls).AsValue()

	_, err = vm.Send(recv, "init", nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = vm.Send(recv, "inc", nil)
		require.NoError(t, err)
	}
	got, err := vm.Send(recv, "get", nil)
	require.NoError(t, err)
	n, ok := got.AsInteger()
	require.True(t, ok)
	assert.Equal(t, int32(3), n)
}

// (c) a non-local return unwinding out of a block passed to Array>>do:.
func TestScenarioSearchNonLocalReturn(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Search", `Search = (
		find: arr = (
			arr do: [ :x | x = 42 ifTrue: [ ^'found' ] ].
			^'not found'
		)
	)`)
	vm, u := newTestVM(t, dir)
	cls, err := u.LoadClass("Search")
	require.NoError(t, err)
	recv := object.NewInstance(u.Heap, cls).AsValue()

	found, err := vm.Send(recv, "find:", []value.Value{literalIntArray(t, u, 1, 2, 42, 3)})
	require.NoError(t, err)
	s, ok := stringContent(u, found)
	require.True(t, ok)
	assert.Equal(t, "found", s)

	notFound, err := vm.Send(recv, "find:", []value.Value{literalIntArray(t, u, 1, 2, 3)})
	require.NoError(t, err)
	s, ok = stringContent(u, notFound)
	require.True(t, ok)
	assert.Equal(t, "not found", s)
}

// (d) a one-field getter/setter pair compiles to the frameless Trivial
// specializations, dispatched without allocating an object.Frame.
func TestScenarioTrivialGetterSetterRecognition(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Box", `Box = (
		|field|
		field = ( ^field )
		field: v = ( field := v )
	)`)
	_, u := newTestVM(t, dir)
	cls, err := u.LoadClass("Box")
	require.NoError(t, err)

	getterID, ok := cls.LookupInstanceMethod(uint32(u.Interner.Intern("field")))
	require.True(t, ok)
	getter := object.Method{H: u.Heap, Ref: getterID}
	assert.Equal(t, object.MethodTrivialGetter, getter.Kind())
	assert.True(t, getter.IsFrameless())

	setterID, ok := cls.LookupInstanceMethod(uint32(u.Interner.Intern("field:")))
	require.True(t, ok)
	setter := object.Method{H: u.Heap, Ref: setterID}
	assert.Equal(t, object.MethodTrivialSetter, setter.Kind())
	assert.True(t, setter.IsFrameless())

	vm := New(u)
	recv := object.NewInstance(u.Heap, cls).AsValue()
	_, err = vm.Send(recv, "field:", []value.Value{value.NewInteger(99)})
	require.NoError(t, err)
	got, err := vm.Send(recv, "field", nil)
	require.NoError(t, err)
	n, ok := got.AsInteger()
	require.True(t, ok)
	assert.Equal(t, int32(99), n)
}

// (e) whileTrue: with a syntactically literal receiver and argument
// block compiles with no OpSend* of whileTrue: left (the condition's <
// and the body's + remain ordinary sends) — the inliner replaces the
// whileTrue: send entirely rather than merely caching it.
func TestScenarioWhileTrueInlinedProducesNoLoopSends(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Loopy", `Loopy = (
		run = ( |i| i := 0. [ i < 1000 ] whileTrue: [ i := i + 1 ]. ^i )
	)`)
	vm, u := newTestVM(t, dir)
	cls, err := u.LoadClass("Loopy")
	require.NoError(t, err)
	recv := object.NewInstance(u.Heap, cls).AsValue()

	result, err := vm.Send(recv, "run", nil)
	require.NoError(t, err)
	n, ok := result.AsInteger()
	require.True(t, ok)
	assert.Equal(t, int32(1000), n)

	methodID, ok := cls.LookupInstanceMethod(uint32(u.Interner.Intern("run")))
	require.True(t, ok)
	method := object.Method{H: u.Heap, Ref: methodID}
	require.Equal(t, object.MethodDefined, method.Kind())
	code := u.Compiler.Code.Get(method.Code())

	whileTrueID := uint32(u.Interner.Intern("whileTrue:"))
	isSend := map[bytecode.Opcode]bool{
		bytecode.OpSend0: true, bytecode.OpSend1: true, bytecode.OpSend2: true,
		bytecode.OpSend3: true, bytecode.OpSendN: true,
	}
	for _, instr := range code.Instructions {
		if !isSend[instr.Op] {
			continue
		}
		lit := code.Literals[instr.A]
		assert.NotEqual(t, whileTrueID, lit.Symbol, "whileTrue: should have been inlined, not sent")
	}
}

// (f) strings retained through a local Array survive a forced full
// collection with their content intact.
func TestScenarioGCSurvivesRetainedStrings(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Retainer", `Retainer = (
		run: arr = (
			system fullGC.
			^arr
		)
	)`)
	vm, u := newTestVM(t, dir)
	cls, err := u.LoadClass("Retainer")
	require.NoError(t, err)
	recv := object.NewInstance(u.Heap, cls).AsValue()

	const n = 64
	want := make([]string, n)
	arr := object.NewArray(u.Heap, n)
	for i := 0; i < n; i++ {
		s := "retained-string-number-" + string(rune('a'+i%26))
		want[i] = s
		arr.SetAt(i, object.NewHeapString(u.Heap, s).AsValue())
	}

	result, err := vm.Send(recv, "run:", []value.Value{arr.AsValue()})
	require.NoError(t, err)

	resultRef, ok := result.AsPointer()
	require.True(t, ok)
	resultArr := object.Array{H: u.Heap, Ref: gc.Ref(resultRef)}
	require.Equal(t, n, resultArr.Len())
	for i := 0; i < n; i++ {
		v, ok := resultArr.At(i)
		require.True(t, ok)
		s, ok := stringContent(u, v)
		require.True(t, ok)
		assert.Equal(t, want[i], s)
	}
}

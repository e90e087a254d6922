package vmast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/universe"
	"github.com/kristofer/smog/pkg/value"
)

// These mirror pkg/vmbc/scenarios_test.go one for one, against this
// package's own tree-walking evaluator instead of the bytecode fetch-
// decode-execute loop — both backends must honor the same worked
// scenarios spec.md §8 describes.

// literalIntArray builds a heap Array of Integers.
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
	vm, loader, u := newTestVM(t, dir)
	cls, err := loader.LoadClass("Fib")
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
	writeClass(t, dir, "Tally", `Tally = (
		|total|
		init = ( total := 0. ^self )
		inc = ( total := total + 1. ^self )
		get = ( ^total )
	)`)
	vm, loader, u := newTestVM(t, dir)
	cls, err := loader.LoadClass("Tally")
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
	writeClass(t, dir, "Seeker", `Seeker = (
		find: arr = (
			arr do: [ :x | x = 42 ifTrue: [ ^'found' ] ].
			^'not found'
		)
	)`)
	vm, loader, u := newTestVM(t, dir)
	cls, err := loader.LoadClass("Seeker")
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
// specializations, dispatched without evaluating any Node at all.
func TestScenarioTrivialGetterSetterRecognition(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Cell", `Cell = (
		|field|
		field = ( ^field )
		field: v = ( field := v )
	)`)
	_, loader, u := newTestVM(t, dir)
	cls, err := loader.LoadClass("Cell")
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

	vm := New(u, loader.C.Code)
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
// block compiles to a WhileInlined node, not an ordinary MessageSend —
// the inliner replaces the send entirely rather than merely caching it.
func TestScenarioWhileTrueInlinedProducesNoLoopSend(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Loopy", `Loopy = (
		run = ( |i| i := 0. [ i < 1000 ] whileTrue: [ i := i + 1 ]. ^i )
	)`)
	vm, loader, u := newTestVM(t, dir)
	cls, err := loader.LoadClass("Loopy")
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
	code := loader.C.Code.Get(method.Code())

	foundWhileInlined := false
	for _, n := range code.Body {
		walkNodes(n, func(node Node) {
			if _, ok := node.(*WhileInlined); ok {
				foundWhileInlined = true
			}
			if send, ok := node.(*MessageSend); ok {
				assert.NotEqual(t, "whileTrue:", send.Selector, "whileTrue: should have been inlined, not sent")
			}
		})
	}
	assert.True(t, foundWhileInlined, "expected a WhileInlined node in the compiled body")
}

// walkNodes visits node and every child node reachable from it, calling
// visit on each. It only needs to know the handful of composite shapes
// this test cares about inspecting.
func walkNodes(n Node, visit func(Node)) {
	if n == nil {
		return
	}
	visit(n)
	switch v := n.(type) {
	case *Sequence:
		for _, c := range v.Nodes {
			walkNodes(c, visit)
		}
	case *MessageSend:
		walkNodes(v.Receiver, visit)
		for _, a := range v.Args {
			walkNodes(a, visit)
		}
	case *SuperSend:
		for _, a := range v.Args {
			walkNodes(a, visit)
		}
	case *ReturnLocal:
		walkNodes(v.Value, visit)
	case *ReturnNonLocal:
		walkNodes(v.Value, visit)
	case *IfInlined:
		walkNodes(v.Cond, visit)
		walkNodes(v.Then, visit)
	case *IfTrueIfFalseInlined:
		walkNodes(v.Cond, visit)
		walkNodes(v.Then, visit)
		walkNodes(v.Else, visit)
	case *IfNilInlined:
		walkNodes(v.Subject, visit)
		walkNodes(v.Branch, visit)
	case *IfNilIfNotNilInlined:
		walkNodes(v.Subject, visit)
		walkNodes(v.NilBranch, visit)
		walkNodes(v.NotNilBranch, visit)
	case *WhileInlined:
		walkNodes(v.Cond, visit)
		walkNodes(v.Body, visit)
	case *AndInlined:
		walkNodes(v.Left, visit)
		walkNodes(v.Right, visit)
	case *OrInlined:
		walkNodes(v.Left, visit)
		walkNodes(v.Right, visit)
	case *ToDoInlined:
		walkNodes(v.From, visit)
		walkNodes(v.To, visit)
		walkNodes(v.By, visit)
		walkNodes(v.Body, visit)
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
	vm, loader, u := newTestVM(t, dir)
	cls, err := loader.LoadClass("Retainer")
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

package vmbc

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/universe"
	"github.com/kristofer/smog/pkg/value"
)

func newTestVM(t *testing.T, classpath ...string) (*VM, *universe.Universe) {
	t.Helper()
	u := universe.New(1<<16, classpath, &bytes.Buffer{}, zerolog.Nop())
	return New(u), u
}

func writeClass(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".som"), []byte(src), 0o644))
}

func TestSendDispatchesBuiltinArithmetic(t *testing.T) {
	vm, _ := newTestVM(t)

	result, err := vm.Send(value.NewInteger(2), "+", []value.Value{value.NewInteger(3)})
	require.NoError(t, err)
	n, ok := result.AsInteger()
	require.True(t, ok)
	assert.Equal(t, int32(5), n)
}

func TestInvokeDispatchesUserDefinedMethod(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Counter", `Counter = (
		|count|
		init = ( count := 0 )
		increment = ( count := count + 1 )
		count = ( ^count )
	)`)
	vm, u := newTestVM(t, dir)

	cls, err := u.LoadClass("Counter")
	require.NoError(t, err)

	recv := object.NewInstance(u.Heap, cls).AsValue()

	_, err = vm.Send(recv, "init", nil)
	require.NoError(t, err)
	_, err = vm.Send(recv, "increment", nil)
	require.NoError(t, err)
	_, err = vm.Send(recv, "increment", nil)
	require.NoError(t, err)

	countVal, err := vm.Send(recv, "count", nil)
	require.NoError(t, err)
	n, ok := countVal.AsInteger()
	require.True(t, ok)
	assert.Equal(t, int32(2), n)
}

func TestFieldAccessPersistsAcrossSends(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Box", `Box = (
		|value|
		value = ( ^value )
		value: v = ( value := v )
	)`)
	vm, u := newTestVM(t, dir)

	cls, err := u.LoadClass("Box")
	require.NoError(t, err)
	recv := object.NewInstance(u.Heap, cls).AsValue()

	_, err = vm.Send(recv, "value:", []value.Value{value.NewInteger(7)})
	require.NoError(t, err)

	got, err := vm.Send(recv, "value", nil)
	require.NoError(t, err)
	n, ok := got.AsInteger()
	require.True(t, ok)
	assert.Equal(t, int32(7), n)
}

func TestNonLocalReturnUnwindsThroughBlockInvocation(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "Finder", `Finder = (
		firstMatch: coll target: target = (
			coll do: [:each | each = target ifTrue: [^each]].
			^-1
		)
	)`)
	vm, u := newTestVM(t, dir)

	cls, err := u.LoadClass("Finder")
	require.NoError(t, err)
	recv := object.NewInstance(u.Heap, cls).AsValue()

	newID, ok := u.Primitives.Lookup("Array class>>new:")
	require.True(t, ok)
	arr, err := u.Primitives.Call(newID, vm, recv, []value.Value{value.NewInteger(3)})
	require.NoError(t, err)

	atPutID, ok := u.Primitives.Lookup("Array>>at:put:")
	require.True(t, ok)
	_, err = u.Primitives.Call(atPutID, vm, arr, []value.Value{value.NewInteger(1), value.NewInteger(10)})
	require.NoError(t, err)
	_, err = u.Primitives.Call(atPutID, vm, arr, []value.Value{value.NewInteger(2), value.NewInteger(20)})
	require.NoError(t, err)
	_, err = u.Primitives.Call(atPutID, vm, arr, []value.Value{value.NewInteger(3), value.NewInteger(30)})
	require.NoError(t, err)

	result, err := vm.Send(recv, "firstMatch:target:", []value.Value{arr, value.NewInteger(20)})
	require.NoError(t, err)
	n, ok2 := result.AsInteger()
	require.True(t, ok2)
	assert.Equal(t, int32(20), n)

	miss, err := vm.Send(recv, "firstMatch:target:", []value.Value{arr, value.NewInteger(99)})
	require.NoError(t, err)
	n2, ok3 := miss.AsInteger()
	require.True(t, ok3)
	assert.Equal(t, int32(-1), n2)
}

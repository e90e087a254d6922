package universe

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

func newTestUniverse(t *testing.T, classpath ...string) *Universe {
	t.Helper()
	return New(1<<16, classpath, &bytes.Buffer{}, zerolog.Nop())
}

func writeClassFile(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".som"), []byte(src), 0o644))
}

func TestNewBootstrapsCoreClassHierarchy(t *testing.T) {
	u := newTestUniverse(t)

	base := u.CoreClass("Object")
	integer := u.CoreClass("Integer")
	number := u.CoreClass("Number")

	assert.True(t, integer.IsSubclassOf(number))
	assert.True(t, number.IsSubclassOf(base))
	assert.True(t, integer.IsSubclassOf(base))
}

func TestNewWiresPrimitiveMethodsOntoCoreClasses(t *testing.T) {
	u := newTestUniverse(t)

	integer := u.CoreClass("Integer")
	plusID := u.Interner.Intern("+")
	methodRef, ok := integer.LookupInstanceMethod(uint32(plusID))
	require.True(t, ok)

	m := object.Method{H: u.Heap, Ref: methodRef}
	assert.Equal(t, object.MethodPrimitive, m.Kind())
	assert.Equal(t, "Number>>+", u.Primitives.Name(m.Code()))
}

func TestClassOfResolvesTaggedScalarsAndHeapTypes(t *testing.T) {
	u := newTestUniverse(t)

	assert.Equal(t, u.CoreClass("Integer").Ref, u.ClassOf(value.NewInteger(42)).Ref)
	assert.Equal(t, u.CoreClass("Double").Ref, u.ClassOf(value.NewDouble(1.5)).Ref)
	assert.Equal(t, u.CoreClass("True").Ref, u.ClassOf(value.True).Ref)
	assert.Equal(t, u.CoreClass("False").Ref, u.ClassOf(value.False).Ref)
	assert.Equal(t, u.CoreClass("Nil").Ref, u.ClassOf(value.Nil).Ref)

	str := object.NewHeapString(u.Heap, "hi")
	assert.Equal(t, u.CoreClass("String").Ref, u.ClassOf(str.AsValue()).Ref)

	arr := object.NewArray(u.Heap, 3)
	assert.Equal(t, u.CoreClass("Array").Ref, u.ClassOf(arr.AsValue()).Ref)
}

func TestGlobalResolvesLanguageLiterals(t *testing.T) {
	u := newTestUniverse(t)

	v, ok := u.Global("nil")
	require.True(t, ok)
	assert.True(t, v.IsNil())

	v, ok = u.Global("true")
	require.True(t, ok)
	b, _ := v.AsBoolean()
	assert.True(t, b)
}

func TestLoadClassCompilesAndCachesUserClass(t *testing.T) {
	dir := t.TempDir()
	writeClassFile(t, dir, "Counter", `Counter = (
		|count|
		count = ( ^count )
		increment = ( count := count + 1 )
	)`)
	u := newTestUniverse(t, dir)

	cls, err := u.LoadClass("Counter")
	require.NoError(t, err)
	assert.Equal(t, 1, cls.InstanceFieldCount())

	super, ok := cls.Superclass()
	require.True(t, ok)
	assert.Equal(t, u.CoreClass("Object").Ref, super.Ref)

	again, err := u.LoadClass("Counter")
	require.NoError(t, err)
	assert.Equal(t, cls.Ref, again.Ref)
}

func TestLoadClassResolvesUserDefinedSuperclass(t *testing.T) {
	dir := t.TempDir()
	writeClassFile(t, dir, "Animal", `Animal = (
		|name|
		name = ( ^name )
	)`)
	writeClassFile(t, dir, "Dog", `Dog = Animal (
		|breed|
		breed = ( ^breed )
	)`)
	u := newTestUniverse(t, dir)

	dog, err := u.LoadClass("Dog")
	require.NoError(t, err)
	assert.Equal(t, 2, dog.InstanceFieldCount())

	super, ok := dog.Superclass()
	require.True(t, ok)
	assert.Equal(t, 1, super.InstanceFieldCount())
}

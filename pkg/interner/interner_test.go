package interner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternLookupRoundTrip(t *testing.T) {
	in := New()
	strs := []string{"fib:", "+", "new", "printString", "ifTrue:ifFalse:"}
	ids := make([]Id, len(strs))
	for i, s := range strs {
		ids[i] = in.Intern(s)
	}
	for i, s := range strs {
		got, ok := in.Lookup(ids[i])
		require.True(t, ok)
		assert.Equal(t, s, got)
	}
}

func TestInternIsIdempotent(t *testing.T) {
	in := New()
	a := in.Intern("hello")
	b := in.Intern("hello")
	assert.Equal(t, a, b)
	assert.Equal(t, 1, in.Len())
}

func TestInternDistinctStringsGetDistinctIds(t *testing.T) {
	in := New()
	a := in.Intern("a")
	b := in.Intern("b")
	assert.NotEqual(t, a, b)
}

func TestLookupUnknownId(t *testing.T) {
	in := New()
	_, ok := in.Lookup(Id(999))
	assert.False(t, ok)
}

func TestInternManyStrings(t *testing.T) {
	in := New()
	n := 2000
	for i := 0; i < n; i++ {
		in.Intern(fmt.Sprintf("sym%d", i))
	}
	assert.Equal(t, n, in.Len())
	for i := 0; i < n; i++ {
		id := in.Intern(fmt.Sprintf("sym%d", i))
		s, ok := in.Lookup(id)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("sym%d", i), s)
	}
}

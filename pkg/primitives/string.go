package primitives

import (
	"fmt"
	"strings"

	"github.com/kristofer/smog/pkg/interner"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

// stringOf renders self's text whether it's a materialized HeapString or
// an interned Symbol, matching spec §4.6's rule that Symbol is a Subclass
// of String sharing its read-only protocol.
func stringOf(ctx Context, self value.Value) (string, bool) {
	if sym, ok := self.AsSymbol(); ok {
		s, ok := ctx.Interner().Lookup(interner.Id(sym))
		return s, ok
	}
	ref, ok := self.AsPointer()
	if !ok {
		return "", false
	}
	h := ctx.Heap()
	if h.HeaderType(gcRef(ref)) != object.TypeString {
		return "", false
	}
	return object.HeapString{H: h, Ref: gcRef(ref)}.String(), true
}

// RegisterString installs String/Symbol primitives (spec §4.6): length,
// concatenation, equality, and symbol interning, grounded on the
// teacher's string handling in pkg/vm/vm.go generalized from Go's native
// string equality to the heap-resident HeapString plus interned Symbol.
func RegisterString(r *Registry) {
	r.Register("String>>length", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		s, ok := stringOf(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: length: receiver is not a String")
		}
		return value.NewInteger(int32(len(s))), nil
	})
	r.Register("String>>,", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		a, ok := stringOf(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: ,: receiver is not a String")
		}
		b, ok := stringOf(ctx, args[0])
		if !ok {
			return value.Nil, fmt.Errorf("primitives: ,: argument is not a String")
		}
		return ctx.NewString(a + b), nil
	})
	r.Register("String>>=", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		a, ok := stringOf(ctx, self)
		if !ok {
			return value.False, nil
		}
		b, ok := stringOf(ctx, args[0])
		if !ok {
			return value.False, nil
		}
		return boolValue(a == b), nil
	})
	r.Register("String>>asSymbol", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		s, ok := stringOf(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: asSymbol: receiver is not a String")
		}
		return value.NewSymbol(uint32(ctx.Interner().Intern(s))), nil
	})
	r.Register("Symbol>>asString", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		s, ok := stringOf(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: asString: receiver is not a Symbol")
		}
		return ctx.NewString(s), nil
	})
	r.Register("String>>asUppercase", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		s, ok := stringOf(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: asUppercase: receiver is not a String")
		}
		return ctx.NewString(strings.ToUpper(s)), nil
	})
	r.Register("String>>printString", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		s, ok := stringOf(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: printString: receiver is not a String")
		}
		return ctx.NewString("'" + s + "'"), nil
	})
}

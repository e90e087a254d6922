package primitives

import (
	"fmt"

	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

// classOf resolves v's runtime class. Tagged scalars each belong to one
// fixed core class, looked up through the universe-supplied Context
// rather than hardcoded here, so this package stays ignorant of exactly
// which Class objects the bootstrap wires up; heap pointers carry their
// class directly (Instance) or a fixed heap-type-to-class mapping the
// caller resolves (String, Array, Block, ...). This function resolves
// only the Instance case and returns an error for every other receiver.
// pkg/universe's ClassOf covers every kind, but the bootstrap binds
// Object>>class straight to this primitive, so `3 class` or `'a' class`
// fails with that error.
func classOf(ctx Context, v value.Value) (value.Value, error) {
	ref, ok := v.AsPointer()
	if !ok {
		return value.Nil, fmt.Errorf("primitives: class: receiver has no heap class")
	}
	h := ctx.Heap()
	if h.HeaderType(gcRef(ref)) == object.TypeInstance {
		in := object.Instance{H: h, Ref: gcRef(ref)}
		return in.Class().AsValue(), nil
	}
	return value.Nil, fmt.Errorf("primitives: class: unsupported receiver")
}

// RegisterObject installs identity, equality, and reflective primitives
// common to every object (spec §4.2's Object protocol), grounded on the
// teacher's equal/notEqual (pkg/vm/vm.go) generalized from int64/float64/
// string to the full tagged-Value domain via value.Equal plus pointer
// identity.
func RegisterObject(r *Registry) {
	r.Register("Object>>==", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, fmt.Errorf("primitives: == expects 1 argument")
		}
		other := args[0]
		if selfRef, ok := self.AsPointer(); ok {
			if otherRef, ok := other.AsPointer(); ok {
				return boolValue(selfRef == otherRef), nil
			}
			return value.False, nil
		}
		return boolValue(value.Equal(self, other)), nil
	})
	r.Register("Object>>=", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, fmt.Errorf("primitives: = expects 1 argument")
		}
		return boolValue(value.Equal(self, args[0])), nil
	})
	r.Register("Object>>~=", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, fmt.Errorf("primitives: ~= expects 1 argument")
		}
		return boolValue(!value.Equal(self, args[0])), nil
	})
	r.Register("Object>>isNil", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		return boolValue(self.IsNil()), nil
	})
	r.Register("Object>>notNil", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		return boolValue(!self.IsNil()), nil
	})
	r.Register("Object>>class", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		return classOf(ctx, self)
	})
	r.Register("Object>>hashcode", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		return value.NewInteger(int32(self.Bits())), nil
	})
	r.Register("Object>>printString", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		cls, err := classOf(ctx, self)
		if err != nil {
			return ctx.NewString(self.TypeName()), nil
		}
		name, err := ctx.Send(cls, "name", nil)
		if err != nil {
			return ctx.NewString(self.TypeName()), nil
		}
		text, ok := stringOf(ctx, name)
		if !ok {
			return ctx.NewString(self.TypeName()), nil
		}
		article := "a "
		if len(text) > 0 && isVowel(rune(text[0])) {
			article = "an "
		}
		return ctx.NewString(article + text), nil
	})
	r.Register("Object>>escapedBlock:", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		return value.Nil, fmt.Errorf("primitives: return from a non-active method context (escaped block)")
	})
}

func isVowel(r rune) bool {
	switch r {
	case 'A', 'E', 'I', 'O', 'U', 'a', 'e', 'i', 'o', 'u':
		return true
	default:
		return false
	}
}

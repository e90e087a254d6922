package primitives

import (
	"fmt"

	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

func asArray(ctx Context, v value.Value) (object.Array, bool) {
	ref, ok := v.AsPointer()
	if !ok {
		return object.Array{}, false
	}
	h := ctx.Heap()
	if h.HeaderType(gcRef(ref)) != object.TypeArray {
		return object.Array{}, false
	}
	return object.Array{H: h, Ref: gcRef(ref)}, true
}

// RegisterArray installs Array's indexed-access protocol (spec §4.6),
// grounded on the teacher's Array handling in pkg/vm/vm.go generalized
// from a Go slice of interface{} to the heap-resident object.Array.
func RegisterArray(r *Registry) {
	r.Register("Array>>length", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		a, ok := asArray(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: length: receiver is not an Array")
		}
		return value.NewInteger(int32(a.Len())), nil
	})
	r.Register("Array>>at:", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		a, ok := asArray(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: at:: receiver is not an Array")
		}
		idx, ok := args[0].AsInteger()
		if !ok {
			return value.Nil, fmt.Errorf("primitives: at:: index is not an Integer")
		}
		v, ok := a.At(int(idx) - 1)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: at:: index %d out of bounds (length %d)", idx, a.Len())
		}
		return v, nil
	})
	r.Register("Array>>at:put:", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		a, ok := asArray(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: at:put:: receiver is not an Array")
		}
		idx, ok := args[0].AsInteger()
		if !ok {
			return value.Nil, fmt.Errorf("primitives: at:put:: index is not an Integer")
		}
		if !a.SetAt(int(idx)-1, args[1]) {
			return value.Nil, fmt.Errorf("primitives: at:put:: index %d out of bounds (length %d)", idx, a.Len())
		}
		return self, nil
	})
	r.Register("Array class>>new:", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		n, ok := args[0].AsInteger()
		if !ok || n < 0 {
			return value.Nil, fmt.Errorf("primitives: new:: size must be a non-negative Integer")
		}
		return object.NewArray(ctx.Heap(), int(n)).AsValue(), nil
	})
	r.Register("Array>>do:", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		a, ok := asArray(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: do:: receiver is not an Array")
		}
		block, ok := asBlock(ctx, args[0])
		if !ok {
			return value.Nil, fmt.Errorf("primitives: do:: argument is not a Block")
		}
		for i := 0; i < a.Len(); i++ {
			v, _ := a.At(i)
			if _, err := ctx.InvokeBlock(block, []value.Value{v}); err != nil {
				return value.Nil, err
			}
		}
		return self, nil
	})
}

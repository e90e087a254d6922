package primitives

import (
	"fmt"

	"github.com/kristofer/smog/pkg/interner"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

func asClass(ctx Context, v value.Value) (object.Class, bool) {
	ref, ok := v.AsPointer()
	if !ok {
		return object.Class{}, false
	}
	h := ctx.Heap()
	if h.HeaderType(gcRef(ref)) != object.TypeClass {
		return object.Class{}, false
	}
	return object.Class{H: h, Ref: gcRef(ref)}, true
}

// RegisterClass installs the reflective Class-side primitives
// Object>>printString and Object>>class need a live counterpart for:
// a class's own name and its superclass link (spec §4.2).
func RegisterClass(r *Registry) {
	r.Register("Class>>name", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		cls, ok := asClass(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: name: receiver is not a Class")
		}
		name, ok := ctx.Interner().Lookup(interner.Id(cls.NameID()))
		if !ok {
			return value.Nil, fmt.Errorf("primitives: name: unresolvable class name id")
		}
		return ctx.NewString(name), nil
	})
	r.Register("Class>>superclass", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		cls, ok := asClass(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: superclass: receiver is not a Class")
		}
		super, ok := cls.Superclass()
		if !ok {
			return value.Nil, nil
		}
		return super.AsValue(), nil
	})
}

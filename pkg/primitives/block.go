package primitives

import (
	"fmt"

	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

func asBlock(ctx Context, v value.Value) (object.Block, bool) {
	ref, ok := v.AsPointer()
	if !ok {
		return object.Block{}, false
	}
	h := ctx.Heap()
	if h.HeaderType(gcRef(ref)) != object.TypeBlock {
		return object.Block{}, false
	}
	return object.Block{H: h, Ref: gcRef(ref)}, true
}

// blockValue registers Block>><selector>, invoking self with args via
// ctx.InvokeBlock — arity checking against the block's actual parameter
// count is the backend's job (it owns the CodeTable entry the block's
// codeId points at), not this package's.
func blockValue(selector string) Fn {
	return func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		block, ok := asBlock(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: %s: receiver is not a Block", selector)
		}
		return ctx.InvokeBlock(block, args)
	}
}

// RegisterBlock installs Block's activation protocol (spec §4.4),
// grounded on the teacher's Block#invoke path in pkg/vm/vm.go
// generalized from the teacher's closure-capturing Go type to the
// heap-resident object.Block plus a backend-owned CodeTable entry.
func RegisterBlock(r *Registry) {
	r.Register("Block>>value", blockValue("value"))
	r.Register("Block>>value:", blockValue("value:"))
	r.Register("Block>>value:value:", blockValue("value:value:"))
	r.Register("Block>>value:value:value:", blockValue("value:value:value:"))
}

package primitives

import (
	"fmt"
	"math"
	"math/big"

	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

// gcRef converts a boxed pointer payload to the gc.Ref the heap accessors
// expect; both are bare uint32 word indices (see value.Ref's doc comment
// on why the two types can't just be one).
func gcRef(r value.Ref) gc.Ref { return gc.Ref(r) }

// intOrBig reports self's integral value whether it's a small Integer or
// a BigInteger, for the mixed-arithmetic coercion rules spec §4.7
// describes: Integer op Double promotes to Double, anything overflowing
// int32 promotes to BigInteger.
func intOrBig(ctx Context, self value.Value) (int64, *big.Int, bool) {
	if i, ok := self.AsInteger(); ok {
		return int64(i), nil, true
	}
	if ref, ok := self.AsPointer(); ok {
		if ctx.Heap().HeaderType(gcRef(ref)) == object.TypeBigInteger {
			return 0, object.BigInteger{H: ctx.Heap(), Ref: gcRef(ref)}.Value(), true
		}
	}
	return 0, nil, false
}

func asDouble(self value.Value) (float64, bool) {
	return self.AsDouble()
}

// numericBinary implements the four arithmetic binary selectors across
// Integer/Double/BigInteger combinations, promoting to BigInteger on
// int32 overflow and to Double whenever either operand is a Double.
func numericBinary(selector string) Fn {
	return func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, fmt.Errorf("primitives: %s expects 1 argument, got %d", selector, len(args))
		}
		other := args[0]

		if sf, ok := asDouble(self); ok {
			of, ok := numericToFloat(ctx, other)
			if !ok {
				return value.Nil, fmt.Errorf("primitives: %s: argument is not a number", selector)
			}
			return value.NewDouble(applyFloat(selector, sf, of)), nil
		}
		if of, ok := asDouble(other); ok {
			sf, ok := numericToFloat(ctx, self)
			if !ok {
				return value.Nil, fmt.Errorf("primitives: %s: receiver is not a number", selector)
			}
			return value.NewDouble(applyFloat(selector, sf, of)), nil
		}

		si, sbig, ok := intOrBig(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: %s: receiver is not a number", selector)
		}
		oi, obig, ok := intOrBig(ctx, other)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: %s: argument is not a number", selector)
		}

		if sbig == nil && obig == nil {
			if v, ok := applyInt32(selector, si, oi); ok {
				return v, nil
			}
		}
		if sbig == nil {
			sbig = big.NewInt(si)
		}
		if obig == nil {
			obig = big.NewInt(oi)
		}
		result, err := applyBig(selector, sbig, obig)
		if err != nil {
			return value.Nil, err
		}
		return demoteBigInteger(ctx, result), nil
	}
}

func numericToFloat(ctx Context, v value.Value) (float64, bool) {
	if f, ok := v.AsDouble(); ok {
		return f, true
	}
	if i, b, ok := intOrBig(ctx, v); ok {
		if b != nil {
			f := new(big.Float).SetInt(b)
			result, _ := f.Float64()
			return result, true
		}
		return float64(i), true
	}
	return 0, false
}

func applyFloat(selector string, a, b float64) float64 {
	switch selector {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return a / b
	default:
		panic("primitives: unhandled float selector " + selector)
	}
}

// applyInt32 computes the result in int64, returning ok=false if it
// overflows int32 so the caller promotes to BigInteger instead.
func applyInt32(selector string, a, b int64) (value.Value, bool) {
	var r int64
	switch selector {
	case "+":
		r = a + b
	case "-":
		r = a - b
	case "*":
		r = a * b
	case "/":
		if b == 0 {
			return value.Nil, false
		}
		r = a / b
	default:
		panic("primitives: unhandled int selector " + selector)
	}
	if r < math.MinInt32 || r > math.MaxInt32 {
		return value.Nil, false
	}
	return value.NewInteger(int32(r)), true
}

func applyBig(selector string, a, b *big.Int) (*big.Int, error) {
	r := new(big.Int)
	switch selector {
	case "+":
		r.Add(a, b)
	case "-":
		r.Sub(a, b)
	case "*":
		r.Mul(a, b)
	case "/":
		if b.Sign() == 0 {
			return nil, fmt.Errorf("primitives: division by zero")
		}
		r.Quo(a, b)
	default:
		panic("primitives: unhandled bigint selector " + selector)
	}
	return r, nil
}

// demoteBigInteger returns an Integer Value instead of a BigInteger one
// whenever the result actually fits back in int32 (e.g. a big
// multiplication followed by a big division), matching spec §4.7's rule
// that BigInteger is a storage detail, not an observably distinct type
// from Integer once a result is back in range.
func demoteBigInteger(ctx Context, v *big.Int) value.Value {
	if v.IsInt64() {
		i := v.Int64()
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return value.NewInteger(int32(i))
		}
	}
	return object.NewBigInteger(ctx.Heap(), v).AsValue()
}

func numericCompare(selector string) Fn {
	return func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, fmt.Errorf("primitives: %s expects 1 argument", selector)
		}
		sf, ok1 := numericToFloat(ctx, self)
		of, ok2 := numericToFloat(ctx, args[0])
		if !ok1 || !ok2 {
			return value.Nil, fmt.Errorf("primitives: %s: operands must be numeric", selector)
		}
		var result bool
		switch selector {
		case "<":
			result = sf < of
		case ">":
			result = sf > of
		case "<=":
			result = sf <= of
		case ">=":
			result = sf >= of
		}
		return boolValue(result), nil
	}
}

func boolValue(b bool) value.Value {
	if b {
		return value.True
	}
	return value.False
}

// RegisterNumeric installs Integer/Double/BigInteger arithmetic and
// comparison primitives (spec §4.7, grounded on the teacher's
// add/subtract/multiply/divide/lessThan/greaterThan/... family in
// pkg/vm/vm.go, generalized here across Integer/Double/BigInteger
// instead of the teacher's int64/float64 pair).
func RegisterNumeric(r *Registry) {
	for _, sel := range []string{"+", "-", "*", "/"} {
		r.Register("Number>>"+sel, numericBinary(sel))
	}
	for _, sel := range []string{"<", ">", "<=", ">="} {
		r.Register("Number>>"+sel, numericCompare(sel))
	}
	r.Register("Number>>=", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, fmt.Errorf("primitives: = expects 1 argument")
		}
		sf, ok1 := numericToFloat(ctx, self)
		of, ok2 := numericToFloat(ctx, args[0])
		if !ok1 || !ok2 {
			return value.False, nil
		}
		return boolValue(sf == of), nil
	})
	r.Register("Integer>>asDouble", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		f, ok := numericToFloat(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: asDouble: receiver is not numeric")
		}
		return value.NewDouble(f), nil
	})
	r.Register("Double>>asInteger", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		f, ok := self.AsDouble()
		if !ok {
			return value.Nil, fmt.Errorf("primitives: asInteger: receiver is not a Double")
		}
		return value.NewInteger(int32(f)), nil
	})
	r.Register("Integer>>sqrt", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		f, ok := numericToFloat(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: sqrt: receiver is not numeric")
		}
		return value.NewDouble(math.Sqrt(f)), nil
	})

	r.Register("Integer>>to:do:", integerLoop("to:do:", 1))
	r.Register("Integer>>to:by:do:", integerLoop("to:by:do:", 2))
	r.Register("Integer>>downTo:do:", integerLoop("downTo:do:", 1))
}

// integerLoop is the dynamic-send path for the to:do:/to:by:do:/
// downTo:do: family: every such send under pkg/vmbc, whose compiler
// never inlines them, and under pkg/vmast those whose block argument
// isn't a syntactic literal (spec §4.6's ControlFlow note) — an ordinary
// counted loop driving ctx.InvokeBlock once per
// iteration, the same shape as Array>>do:. blockArgIdx is the index of
// the block argument within args (1 for to:do:/downTo:do:, 2 for
// to:by:do: where the step sits between the bound and the block).
func integerLoop(selector string, blockArgIdx int) Fn {
	return func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		start, ok := numericToFloat(ctx, self)
		if !ok {
			return value.Nil, fmt.Errorf("primitives: %s: receiver is not numeric", selector)
		}
		bound, ok := numericToFloat(ctx, args[0])
		if !ok {
			return value.Nil, fmt.Errorf("primitives: %s: bound is not numeric", selector)
		}
		step := 1.0
		if selector == "to:by:do:" {
			s, ok := numericToFloat(ctx, args[1])
			if !ok {
				return value.Nil, fmt.Errorf("primitives: %s: step is not numeric", selector)
			}
			step = s
		}
		if selector == "downTo:do:" {
			step = -step
		}
		block, ok := asBlock(ctx, args[blockArgIdx])
		if !ok {
			return value.Nil, fmt.Errorf("primitives: %s: block argument is not a Block", selector)
		}
		for i := start; (step > 0 && i <= bound) || (step < 0 && i >= bound); i += step {
			if _, err := ctx.InvokeBlock(block, []value.Value{value.NewInteger(int32(i))}); err != nil {
				return value.Nil, err
			}
		}
		return self, nil
	}
}

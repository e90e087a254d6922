package primitives

import (
	"fmt"
	"os"

	"github.com/kristofer/smog/pkg/value"
)

// printStringOf renders v the way System>>printString: and the
// transcript primitives do: strings/symbols print their raw text,
// everything else falls back to the VM-level #printString override
// looked up through ctx.Send, matching the teacher's println/print
// primitive cases in pkg/vm/vm.go (one literal fast path for strings,
// else ask the receiver).
func printStringOf(ctx Context, v value.Value) (string, error) {
	if s, ok := stringOf(ctx, v); ok {
		return s, nil
	}
	result, err := ctx.Send(v, "printString", nil)
	if err != nil {
		return "", err
	}
	s, ok := stringOf(ctx, result)
	if !ok {
		return "", fmt.Errorf("primitives: printString: did not return a String")
	}
	return s, nil
}

// RegisterSystem installs the handful of System-level primitives spec
// §4.7 and §6 call out as having no meaningful SOM-level expression:
// transcript output, global lookup, and process termination. Grounded
// on the teacher's System class primitives in pkg/vm/vm.go.
func RegisterSystem(r *Registry) {
	r.Register("System>>printString:", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		s, err := printStringOf(ctx, args[0])
		if err != nil {
			return value.Nil, err
		}
		ctx.Print(s)
		return self, nil
	})
	r.Register("System>>printNewline", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		ctx.Print("\n")
		return self, nil
	})
	r.Register("System>>errorPrintln:", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		s, err := printStringOf(ctx, args[0])
		if err != nil {
			return value.Nil, err
		}
		fmt.Fprintln(os.Stderr, s)
		return self, nil
	})
	r.Register("System>>global:", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		name, ok := stringOf(ctx, args[0])
		if !ok {
			return value.Nil, fmt.Errorf("primitives: global:: argument is not a String/Symbol")
		}
		v, ok := ctx.Global(name)
		if !ok {
			return value.Nil, nil
		}
		return v, nil
	})
	r.Register("System>>global:put:", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		name, ok := stringOf(ctx, args[0])
		if !ok {
			return value.Nil, fmt.Errorf("primitives: global:put:: argument is not a String/Symbol")
		}
		ctx.SetGlobal(name, args[1])
		return args[1], nil
	})
	r.Register("System>>fullGC", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		ctx.Heap().Collect()
		return value.True, nil
	})
	r.Register("System>>exit:", func(ctx Context, self value.Value, args []value.Value) (value.Value, error) {
		code, ok := args[0].AsInteger()
		if !ok {
			return value.Nil, fmt.Errorf("primitives: exit:: argument is not an Integer")
		}
		ctx.Exit(int(code))
		return value.Nil, nil
	})
}

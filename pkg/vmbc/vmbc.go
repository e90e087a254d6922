// Package vmbc is the bytecode backend's dispatch engine (spec §4's
// "first interpreter flavor"): it turns a compiled object.Method into a
// running object.Frame, executes pkg/bytecode instructions against it,
// and implements the send/non-local-return/inline-cache machinery both
// spec §4.3 and §4.4 describe. pkg/vmast implements the same contract
// (primitives.Context) over its own node-tree evaluator; the two never
// share a frame-walking implementation, only the universe.Universe they
// both sit on top of.
package vmbc

import (
	"fmt"
	"os"

	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/interner"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/universe"
	"github.com/kristofer/smog/pkg/value"
	"github.com/kristofer/smog/pkg/vmerrors"
)

// defaultStackCapacity bounds a single frame's bytecode value stack. The
// compiler doesn't track a method's maximum stack depth, so every frame
// is given a fixed, generous allowance rather than growing one
// dynamically — the same tradeoff object.Frame's fixed-size body layout
// already makes.
const defaultStackCapacity = 64

// cacheKey identifies one monomorphic inline cache site: a specific send
// instruction within a specific compiled body. *bytecode.Bytecode is a
// stable pointer for the program's lifetime (CodeTable entries are never
// moved or recompiled), so it doubles as the site's identity alongside
// the instruction's index.
type cacheKey struct {
	code *bytecode.Bytecode
	pc   int
}

type cacheEntry struct {
	class  gc.Ref
	method gc.Ref
}

// VM runs compiled methods against a shared universe.Universe. It
// implements primitives.Context so every registered primitive can send,
// invoke blocks, and touch the heap without depending on this package.
type VM struct {
	U *universe.Universe

	// currentFrame is the dynamic chain's innermost frame, threaded
	// implicitly rather than through every Context method's signature:
	// execution on this VM is single-threaded, so one mutable field
	// tracks exactly the frame new activations should link to as their
	// caller and non-local-return unwinding should search from.
	currentFrame gc.Ref

	caches map[cacheKey]cacheEntry
}

// New builds a VM dispatching against u, registering it as a GC root so
// a collection triggered while a method is running (e.g. by
// System>>fullGC) keeps the active frame chain — and everything it
// reaches: arguments, locals, the bytecode value stack — alive.
func New(u *universe.Universe) *VM {
	vm := &VM{U: u, currentFrame: gc.NilRef, caches: make(map[cacheKey]cacheEntry)}
	u.Heap.RegisterRoot(vm)
	return vm
}

// EnumerateRoots implements gc.RootProvider: the dynamic chain's
// innermost frame is the one root outside universe.Universe a running
// VM owns. object.Frame's own Scan already walks Prev, so rooting just
// the head keeps the whole active chain reachable.
func (vm *VM) EnumerateRoots(visit func(gc.Ref) gc.Ref) {
	vm.currentFrame = visit(vm.currentFrame)
}

func (vm *VM) Heap() *gc.Heap                 { return vm.U.Heap }
func (vm *VM) Interner() *interner.Interner   { return vm.U.Interner }
func (vm *VM) NewString(s string) value.Value { return object.NewHeapString(vm.U.Heap, s).AsValue() }
func (vm *VM) Print(s string)                 { fmt.Fprint(vm.U.Out, s) }
func (vm *VM) Global(name string) (value.Value, bool)  { return vm.U.Global(name) }
func (vm *VM) SetGlobal(name string, v value.Value)    { vm.U.SetGlobal(name, v) }

// Exit terminates the process, per System>>exit:'s spec §4.7 semantics —
// not merely this VM's dispatch loop.
func (vm *VM) Exit(code int) { os.Exit(code) }

// Send implements primitives.Context: an ordinary message send from
// inside a primitive, looked up from the receiver's own runtime class.
func (vm *VM) Send(receiver value.Value, selector string, args []value.Value) (value.Value, error) {
	return vm.send(receiver, selector, args)
}

// Invoke sends selector to receiver, the entry point cmd/smog uses to
// kick off program execution (e.g. sending "run" to a freshly
// created instance of the program's class).
func (vm *VM) Invoke(receiver value.Value, selector string, args []value.Value) (value.Value, error) {
	return vm.send(receiver, selector, args)
}

func (vm *VM) send(receiver value.Value, selector string, args []value.Value) (value.Value, error) {
	cls := vm.U.ClassOf(receiver)
	selID := uint32(vm.U.Interner.Intern(selector))
	ref, ok := cls.LookupInstanceMethod(selID)
	if !ok {
		return vm.doesNotUnderstand(receiver, selID, args)
	}
	return vm.runMethod(object.Method{H: vm.U.Heap, Ref: ref}, receiver, args)
}

// InvokeBlock implements primitives.Context, running block's compiled
// body against a fresh frame whose argument 0 names block itself (spec
// §4.3's block-frame convention object.FrameSelf relies on).
func (vm *VM) InvokeBlock(block object.Block, args []value.Value) (value.Value, error) {
	h := vm.U.Heap
	code := vm.U.Compiler.Code.Get(uint64(block.CodeID()))
	if len(args) != code.NumArgs-1 {
		return value.Nil, fmt.Errorf("vmbc: block expects %d argument(s), got %d", code.NumArgs-1, len(args))
	}
	homeMethod := object.Frame{H: h, Ref: block.HomeFrame()}.Method().Ref
	frame := object.NewFrame(h, vm.currentFrame, homeMethod, code.NumArgs, code.NumLocals, defaultStackCapacity, block.AsValue())
	for i, a := range args {
		frame.SetArgument(i+1, a)
	}
	return vm.runBody(frame, code)
}

func (vm *VM) runMethod(method object.Method, receiver value.Value, args []value.Value) (value.Value, error) {
	h := vm.U.Heap
	switch method.Kind() {
	case object.MethodPrimitive:
		return vm.U.Primitives.Call(method.Code(), vm, receiver, args)

	case object.MethodTrivialLiteral:
		return value.FromBits(method.LiteralBits()), nil

	case object.MethodTrivialGlobal:
		name, ok := vm.U.Interner.Lookup(interner.Id(method.Code()))
		if !ok {
			return value.Nil, fmt.Errorf("vmbc: trivial global: unresolvable name id")
		}
		v, ok := vm.U.Global(name)
		if !ok {
			return vm.send(receiver, "unknownGlobal:", []value.Value{vm.NewString(name)})
		}
		return v, nil

	case object.MethodTrivialGetter:
		in, ok := asInstance(h, receiver)
		if !ok {
			return value.Nil, fmt.Errorf("vmbc: trivial getter: receiver is not an Instance")
		}
		return in.Field(int(method.Code())), nil

	case object.MethodTrivialSetter:
		in, ok := asInstance(h, receiver)
		if !ok {
			return value.Nil, fmt.Errorf("vmbc: trivial setter: receiver is not an Instance")
		}
		in.SetField(int(method.Code()), args[0])
		return receiver, nil

	case object.MethodDefined:
		code := vm.U.Compiler.Code.Get(method.Code())
		frame := object.NewFrame(h, vm.currentFrame, method.Ref, code.NumArgs, code.NumLocals, defaultStackCapacity, receiver)
		for i, a := range args {
			frame.SetArgument(i+1, a)
		}
		return vm.runBody(frame, code)

	default:
		return value.Nil, fmt.Errorf("vmbc: unsupported method kind %v", method.Kind())
	}
}

// runBody executes frame/code and resolves a non-local return targeting
// frame itself into that activation's ordinary result, per
// vmerrors.NonLocalReturn's documented propagation contract. Any other
// error — including a NonLocalReturn targeting an outer frame — is
// passed straight back up, riding the Go call stack the same way the
// dynamic Prev chain nests.
func (vm *VM) runBody(frame object.Frame, code *bytecode.Bytecode) (value.Value, error) {
	prev := vm.currentFrame
	vm.currentFrame = frame.Ref
	result, err := vm.runFrame(frame, code)
	vm.currentFrame = prev

	if nlr, ok := err.(*vmerrors.NonLocalReturn); ok && nlr.Target == frame.Ref {
		return value.FromBits(nlr.Value), nil
	}
	return result, err
}

func (vm *VM) doesNotUnderstand(receiver value.Value, selID uint32, args []value.Value) (value.Value, error) {
	name, _ := vm.U.Interner.Lookup(interner.Id(selID))
	cls := vm.U.ClassOf(receiver)
	clsName, _ := vm.U.Interner.Lookup(interner.Id(cls.NameID()))
	return value.Nil, vmerrors.New(fmt.Sprintf("%s does not understand #%s", clsName, name), vm.stackTrace())
}

// stackTrace walks the dynamic Prev chain from the frame currently
// executing, innermost first — vmerrors.RuntimeError.Error reverses it
// back to outermost-first for display.
func (vm *VM) stackTrace() []vmerrors.StackFrame {
	var trace []vmerrors.StackFrame
	h := vm.U.Heap
	for ref := vm.currentFrame; ref != gc.NilRef; {
		f := object.Frame{H: h, Ref: ref}
		m := f.Method()
		holderName, _ := vm.U.Interner.Lookup(interner.Id(m.Holder().NameID()))
		selName, _ := vm.U.Interner.Lookup(interner.Id(m.SelectorID()))
		trace = append(trace, vmerrors.StackFrame{Name: holderName + ">>" + selName, Selector: selName})
		next, ok := f.Prev()
		if !ok {
			break
		}
		ref = next.Ref
	}
	return trace
}

func asInstance(h *gc.Heap, v value.Value) (object.Instance, bool) {
	ref, ok := v.AsPointer()
	if !ok {
		return object.Instance{}, false
	}
	gref := gc.Ref(ref)
	if h.HeaderType(gref) != object.TypeInstance {
		return object.Instance{}, false
	}
	return object.Instance{H: h, Ref: gref}, true
}

// lexicalFrame walks up levels frames via the Block-home chain rather
// than the dynamic Prev chain, matching object.FrameSelf's walk but
// stopping after exactly n hops instead of running until a non-Block
// value turns up — the (up, index) addressing pkg/bytecode's Local/Arg/
// non-local-return opcodes all carry.
func lexicalFrame(h *gc.Heap, f object.Frame, levels int) object.Frame {
	cur := f
	for i := 0; i < levels; i++ {
		enclosing := cur.Argument(0)
		ref, ok := enclosing.AsPointer()
		if !ok {
			panic("vmbc: lexical frame walk: argument 0 is not a Block pointer")
		}
		blk := object.Block{H: h, Ref: gc.Ref(ref)}
		cur = object.Frame{H: h, Ref: blk.HomeFrame()}
	}
	return cur
}

package vmast

import (
	"fmt"
	"os"

	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/interner"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/universe"
	"github.com/kristofer/smog/pkg/value"
	"github.com/kristofer/smog/pkg/vmerrors"
)

// stackCapacity0 is the stackCapacity every AST-interpreted frame is
// built with: object.Frame's own doc comment calls this out as the
// value a tree-walker should pass, since Eval never pushes to a value
// stack the way pkg/vmbc's fetch-decode-execute loop does.
const stackCapacity0 = 0

// VM runs compiled Node trees against a shared universe.Universe. Its
// shape mirrors pkg/vmbc.VM (same primitives.Context surface, same
// currentFrame-threaded dynamic chain, same non-local-return protocol)
// but there is deliberately no inline-cache map: this backend's whole
// optimization strategy is compile-time inlining of syntactically
// literal blocks (Compiler.tryInlineControlFlow), not runtime
// monomorphic caching, so a second cache layered on top would just be
// unused weight.
type VM struct {
	U *universe.Universe

	currentFrame gc.Ref
	code         *CodeTable
}

// New builds a VM dispatching against u, interpreting node trees from
// code (the CodeTable a Compiler sharing u's Heap/Interner populated),
// registering it as a GC root alongside u itself (mirrors pkg/vmbc.New).
func New(u *universe.Universe, code *CodeTable) *VM {
	vm := &VM{U: u, currentFrame: gc.NilRef, code: code}
	u.Heap.RegisterRoot(vm)
	return vm
}

// EnumerateRoots implements gc.RootProvider; see pkg/vmbc.VM.EnumerateRoots.
func (vm *VM) EnumerateRoots(visit func(gc.Ref) gc.Ref) {
	vm.currentFrame = visit(vm.currentFrame)
}

func (vm *VM) Heap() *gc.Heap                         { return vm.U.Heap }
func (vm *VM) Interner() *interner.Interner           { return vm.U.Interner }
func (vm *VM) NewString(s string) value.Value         { return object.NewHeapString(vm.U.Heap, s).AsValue() }
func (vm *VM) Print(s string)                         { fmt.Fprint(vm.U.Out, s) }
func (vm *VM) Global(name string) (value.Value, bool) { return vm.U.Global(name) }
func (vm *VM) SetGlobal(name string, v value.Value)   { vm.U.SetGlobal(name, v) }
func (vm *VM) Exit(code int)                          { os.Exit(code) }

func (vm *VM) Send(receiver value.Value, selector string, args []value.Value) (value.Value, error) {
	return vm.send(receiver, selector, args)
}

// Invoke is the entry point cmd/smog uses to kick off program execution
// under this backend, mirroring pkg/vmbc.VM.Invoke.
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
// node tree against a fresh, stackless frame.
func (vm *VM) InvokeBlock(block object.Block, args []value.Value) (value.Value, error) {
	h := vm.U.Heap
	code := vm.code.Get(uint64(block.CodeID()))
	if len(args) != code.NumArgs-1 {
		return value.Nil, fmt.Errorf("vmast: block expects %d argument(s), got %d", code.NumArgs-1, len(args))
	}
	homeMethod := object.Frame{H: h, Ref: block.HomeFrame()}.Method().Ref
	frame := object.NewFrame(h, vm.currentFrame, homeMethod, code.NumArgs, code.NumLocals, stackCapacity0, block.AsValue())
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
			return value.Nil, fmt.Errorf("vmast: trivial global: unresolvable name id")
		}
		v, ok := vm.U.Global(name)
		if !ok {
			return vm.send(receiver, "unknownGlobal:", []value.Value{vm.NewString(name)})
		}
		return v, nil

	case object.MethodTrivialGetter:
		in, ok := asInstance(h, receiver)
		if !ok {
			return value.Nil, fmt.Errorf("vmast: trivial getter: receiver is not an Instance")
		}
		return in.Field(int(method.Code())), nil

	case object.MethodTrivialSetter:
		in, ok := asInstance(h, receiver)
		if !ok {
			return value.Nil, fmt.Errorf("vmast: trivial setter: receiver is not an Instance")
		}
		in.SetField(int(method.Code()), args[0])
		return receiver, nil

	case object.MethodDefined:
		code := vm.code.Get(method.Code())
		frame := object.NewFrame(h, vm.currentFrame, method.Ref, code.NumArgs, code.NumLocals, stackCapacity0, receiver)
		for i, a := range args {
			frame.SetArgument(i+1, a)
		}
		return vm.runBody(frame, code)

	default:
		return value.Nil, fmt.Errorf("vmast: unsupported method kind %v", method.Kind())
	}
}

// runBody evaluates code's statement sequence against frame, applying
// the "falls off the end" rule pkg/compiler.compileBody applies at
// compile time instead: a block body's last statement's value becomes
// its result, a method body's does not — it returns self. An explicit
// Return node (ReturnLocal/ReturnNonLocal) short-circuits this by
// returning directly out of the Go loop.
func (vm *VM) runBody(frame object.Frame, code *Code) (value.Value, error) {
	prev := vm.currentFrame
	vm.currentFrame = frame.Ref
	result, err := vm.evalBody(frame, code)
	vm.currentFrame = prev

	if nlr, ok := err.(*vmerrors.NonLocalReturn); ok && nlr.Target == frame.Ref {
		return value.FromBits(nlr.Value), nil
	}
	return result, err
}

func (vm *VM) evalBody(frame object.Frame, code *Code) (value.Value, error) {
	h := vm.U.Heap
	var last value.Value = value.Nil
	for _, stmt := range code.Body {
		switch n := stmt.(type) {
		case *ReturnLocal:
			v, err := vm.Eval(frame, n.Value)
			if err != nil {
				return value.Nil, err
			}
			return v, nil
		case *ReturnNonLocal:
			v, err := vm.Eval(frame, n.Value)
			if err != nil {
				return value.Nil, err
			}
			target := lexicalFrame(h, frame, n.Up)
			if !frameIsLive(frame, target.Ref) {
				blockVal := frame.Argument(0)
				homeSelf := object.FrameSelf(h, target.Ref)
				return vm.send(homeSelf, "escapedBlock:", []value.Value{blockVal})
			}
			return value.Nil, &vmerrors.NonLocalReturn{Value: v.Bits(), Target: target.Ref}
		default:
			v, err := vm.Eval(frame, stmt)
			if err != nil {
				return value.Nil, err
			}
			last = v
		}
	}
	if code.IsBlock {
		return last, nil
	}
	return object.FrameSelf(h, frame.Ref), nil
}

// Eval interprets a single node against frame, recursively evaluating
// its children. A Return that is a statement of a method or block body
// is handled by evalBody; a Return inside an inlined construct's arm
// reaches Eval, which raises a NonLocalReturn aimed at the return's
// target frame so that frame's runBody turns it into its result.
func (vm *VM) Eval(frame object.Frame, node Node) (value.Value, error) {
	h := vm.U.Heap

	switch n := node.(type) {
	case *LiteralNode:
		return n.Value, nil

	case *SelfRef:
		return object.FrameSelf(h, frame.Ref), nil

	case *LocalRef:
		return lexicalFrame(h, frame, n.Up).Local(n.Index), nil
	case *LocalSet:
		v, err := vm.Eval(frame, n.Value)
		if err != nil {
			return value.Nil, err
		}
		lexicalFrame(h, frame, n.Up).SetLocal(n.Index, v)
		return v, nil

	case *ArgRef:
		return lexicalFrame(h, frame, n.Up).Argument(n.Index), nil
	case *ArgSet:
		v, err := vm.Eval(frame, n.Value)
		if err != nil {
			return value.Nil, err
		}
		lexicalFrame(h, frame, n.Up).SetArgument(n.Index, v)
		return v, nil

	case *FieldRef:
		self := object.FrameSelf(h, frame.Ref)
		in, ok := asInstance(h, self)
		if !ok {
			return value.Nil, fmt.Errorf("vmast: field read: self is not an Instance")
		}
		return in.Field(n.Index), nil
	case *FieldSet:
		v, err := vm.Eval(frame, n.Value)
		if err != nil {
			return value.Nil, err
		}
		self := object.FrameSelf(h, frame.Ref)
		in, ok := asInstance(h, self)
		if !ok {
			return value.Nil, fmt.Errorf("vmast: field write: self is not an Instance")
		}
		in.SetField(n.Index, v)
		return v, nil

	case *GlobalRef:
		v, ok := vm.U.Global(n.Name)
		if !ok {
			self := object.FrameSelf(h, frame.Ref)
			return vm.send(self, "unknownGlobal:", []value.Value{vm.NewString(n.Name)})
		}
		return v, nil

	case *Sequence:
		var last value.Value = value.Nil
		for _, stmt := range n.Nodes {
			v, err := vm.Eval(frame, stmt)
			if err != nil {
				return value.Nil, err
			}
			last = v
		}
		return last, nil

	case *BlockNode:
		blk := object.NewBlock(h, frame.Ref, n.CodeID)
		return blk.AsValue(), nil

	case *MessageSend:
		recv, err := vm.Eval(frame, n.Receiver)
		if err != nil {
			return value.Nil, err
		}
		args, err := vm.evalList(frame, n.Args)
		if err != nil {
			return value.Nil, err
		}
		return vm.send(recv, n.Selector, args)

	case *SuperSend:
		self := object.FrameSelf(h, frame.Ref)
		args, err := vm.evalList(frame, n.Args)
		if err != nil {
			return value.Nil, err
		}
		holder := frame.Method().Holder()
		super, ok := holder.Superclass()
		if !ok {
			return value.Nil, fmt.Errorf("vmast: super send from a method on Object, which has no superclass")
		}
		selID := uint32(vm.U.Interner.Intern(n.Selector))
		ref, ok := super.LookupInstanceMethod(selID)
		if !ok {
			return vm.doesNotUnderstand(self, selID, args)
		}
		return vm.runMethod(object.Method{H: h, Ref: ref}, self, args)

	case *IfInlined:
		c, err := vm.Eval(frame, n.Cond)
		if err != nil {
			return value.Nil, err
		}
		b, ok := c.AsBoolean()
		if !ok {
			return value.Nil, fmt.Errorf("vmast: ifTrue:/ifFalse: condition is not a Boolean")
		}
		if b == n.Want {
			if n.Then == nil {
				return value.Nil, nil
			}
			return vm.Eval(frame, n.Then)
		}
		return value.Nil, nil

	case *IfTrueIfFalseInlined:
		c, err := vm.Eval(frame, n.Cond)
		if err != nil {
			return value.Nil, err
		}
		b, ok := c.AsBoolean()
		if !ok {
			return value.Nil, fmt.Errorf("vmast: ifTrue:ifFalse: condition is not a Boolean")
		}
		if b {
			return vm.Eval(frame, n.Then)
		}
		return vm.Eval(frame, n.Else)

	case *IfNilInlined:
		s, err := vm.Eval(frame, n.Subject)
		if err != nil {
			return value.Nil, err
		}
		if s.IsNil() == n.Want {
			return vm.Eval(frame, n.Branch)
		}
		return s, nil

	case *IfNilIfNotNilInlined:
		s, err := vm.Eval(frame, n.Subject)
		if err != nil {
			return value.Nil, err
		}
		if s.IsNil() {
			return vm.Eval(frame, n.NilBranch)
		}
		return vm.Eval(frame, n.NotNilBranch)

	case *WhileInlined:
		for {
			c, err := vm.Eval(frame, n.Cond)
			if err != nil {
				return value.Nil, err
			}
			b, ok := c.AsBoolean()
			if !ok {
				return value.Nil, fmt.Errorf("vmast: whileTrue:/whileFalse: condition is not a Boolean")
			}
			if b != n.Want {
				return value.Nil, nil
			}
			if _, err := vm.Eval(frame, n.Body); err != nil {
				return value.Nil, err
			}
		}

	case *AndInlined:
		l, err := vm.Eval(frame, n.Left)
		if err != nil {
			return value.Nil, err
		}
		b, ok := l.AsBoolean()
		if !ok {
			return value.Nil, fmt.Errorf("vmast: and: receiver is not a Boolean")
		}
		if !b {
			return value.False, nil
		}
		return vm.Eval(frame, n.Right)

	case *OrInlined:
		l, err := vm.Eval(frame, n.Left)
		if err != nil {
			return value.Nil, err
		}
		b, ok := l.AsBoolean()
		if !ok {
			return value.Nil, fmt.Errorf("vmast: or: receiver is not a Boolean")
		}
		if b {
			return value.True, nil
		}
		return vm.Eval(frame, n.Right)

	case *ToDoInlined:
		return vm.evalToDo(frame, n)

	case *ReturnLocal:
		return vm.Eval(frame, &ReturnNonLocal{Up: 0, Value: n.Value})

	case *ReturnNonLocal:
		v, err := vm.Eval(frame, n.Value)
		if err != nil {
			return value.Nil, err
		}
		target := lexicalFrame(h, frame, n.Up)
		if !frameIsLive(frame, target.Ref) {
			return vm.send(object.FrameSelf(h, target.Ref), "escapedBlock:", []value.Value{frame.Argument(0)})
		}
		return value.Nil, &vmerrors.NonLocalReturn{Value: v.Bits(), Target: target.Ref}

	default:
		return value.Nil, fmt.Errorf("vmast: unhandled node %T", node)
	}
}

// evalToDo drives a ToDoInlined loop directly against frame's own local
// slots — no Block or child Frame is allocated per iteration, the point
// of inlining this construct at all (spec §4.5).
func (vm *VM) evalToDo(frame object.Frame, n *ToDoInlined) (value.Value, error) {
	fromV, err := vm.Eval(frame, n.From)
	if err != nil {
		return value.Nil, err
	}
	toV, err := vm.Eval(frame, n.To)
	if err != nil {
		return value.Nil, err
	}
	from, ok := fromV.AsInteger()
	if !ok {
		return value.Nil, fmt.Errorf("vmast: to:do:: receiver is not an Integer")
	}
	to, ok := toV.AsInteger()
	if !ok {
		return value.Nil, fmt.Errorf("vmast: to:do:: bound is not an Integer")
	}
	step := int32(1)
	if n.By != nil {
		byV, err := vm.Eval(frame, n.By)
		if err != nil {
			return value.Nil, err
		}
		s, ok := byV.AsInteger()
		if !ok {
			return value.Nil, fmt.Errorf("vmast: to:by:do:: step is not an Integer")
		}
		step = s
	}
	if n.Down {
		step = -step
	}

	for i := from; (step > 0 && i <= to) || (step < 0 && i >= to); i += step {
		frame.SetLocal(n.CounterLocal, value.NewInteger(i))
		if _, err := vm.Eval(frame, n.Body); err != nil {
			return value.Nil, err
		}
	}
	return fromV, nil
}

func (vm *VM) evalList(frame object.Frame, nodes []Node) ([]value.Value, error) {
	vals := make([]value.Value, len(nodes))
	for i, n := range nodes {
		v, err := vm.Eval(frame, n)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (vm *VM) doesNotUnderstand(receiver value.Value, selID uint32, args []value.Value) (value.Value, error) {
	name, _ := vm.U.Interner.Lookup(interner.Id(selID))
	cls := vm.U.ClassOf(receiver)
	clsName, _ := vm.U.Interner.Lookup(interner.Id(cls.NameID()))
	return value.Nil, vmerrors.New(fmt.Sprintf("%s does not understand #%s", clsName, name), vm.stackTrace())
}

// stackTrace mirrors pkg/vmbc.VM.stackTrace exactly; both backends
// report traces in the same vmerrors.StackFrame shape.
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

// lexicalFrame walks up the Block-home chain exactly as pkg/vmbc's own
// helper of the same name does, resolving a LocalRef/ArgRef/Return's
// Up-count to the enclosing frame it actually addresses.
func lexicalFrame(h *gc.Heap, f object.Frame, levels int) object.Frame {
	cur := f
	for i := 0; i < levels; i++ {
		enclosing := cur.Argument(0)
		ref, ok := enclosing.AsPointer()
		if !ok {
			panic("vmast: lexical frame walk: argument 0 is not a Block pointer")
		}
		blk := object.Block{H: h, Ref: gc.Ref(ref)}
		cur = object.Frame{H: h, Ref: blk.HomeFrame()}
	}
	return cur
}

// frameIsLive reports whether target is still on from's dynamic Prev
// chain, mirroring pkg/vmbc's helper of the same name.
func frameIsLive(from object.Frame, target gc.Ref) bool {
	for cur, ok := from, true; ok; cur, ok = cur.Prev() {
		if cur.Ref == target {
			return true
		}
	}
	return false
}

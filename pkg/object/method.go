package object

import "github.com/kristofer/smog/pkg/gc"

// MethodKind tags which of the method shapes spec §4.6 describes a
// Method object implements. Go has no sum type, so — in the same spirit
// as the teacher's bytecode.Instruction{Op, Operand} — Method is one
// fixed-shape struct whose fields mean different things depending on
// Kind, rather than a family of Go types.
type MethodKind uint8

const (
	// MethodDefined is an ordinary user-defined method compiled to
	// bytecode, dispatched through pkg/vmbc, or to an AST node tree,
	// dispatched through pkg/vmast. Code indexes whichever backend's
	// CodeTable compiled it.
	MethodDefined MethodKind = iota
	// MethodPrimitive is implemented in Go; Code indexes the
	// pkg/primitives registry.
	MethodPrimitive
	// MethodTrivialLiteral always returns a fixed constant without
	// allocating a frame (spec §4.6). Literal holds the constant.
	MethodTrivialLiteral
	// MethodTrivialGlobal always returns the current value of a fixed
	// global without allocating a frame. Code holds the global's
	// interned name id.
	MethodTrivialGlobal
	// MethodTrivialGetter returns one of the receiver's own fields
	// without allocating a frame. Code holds the field index.
	MethodTrivialGetter
	// MethodTrivialSetter assigns one of the receiver's own fields and
	// returns the receiver, without allocating a frame. Code holds the
	// field index.
	MethodTrivialSetter
	// MethodSpecializedToDo is reserved for `to:do:` compiled to a native
	// loop instead of a general send (spec §4.6). Neither pkg/compiler nor
	// pkg/vmast constructs a method of this kind or of the two below.
	MethodSpecializedToDo
	// MethodSpecializedToByDo is the same for `to:by:do:`.
	MethodSpecializedToByDo
	// MethodSpecializedDownToDo is the same for `downTo:do:`.
	MethodSpecializedDownToDo
)

// Method body layout (fixed, 7 words, regardless of Kind):
//
//	0: kind
//	1: holderClassRef (Ordinary) — the class this method is defined on
//	2: selectorId
//	3: argCount   (not counting the implicit receiver)
//	4: localCount (bytecode frames only; 0 otherwise)
//	5: codeId / fieldIndex / global-name-id, meaning depends on kind
//	6: literal (Value; MethodTrivialLiteral's constant, Nil otherwise)
const (
	methodOffKind        = 0
	methodOffHolderClass = 1
	methodOffSelector    = 2
	methodOffArgCount    = 3
	methodOffLocalCount  = 4
	methodOffCode        = 5
	methodOffLiteral     = 6
	methodBodyWords      = 7
)

func registerMethod(h *gc.Heap) {
	h.RegisterType(TypeMethod, gc.TypeInfo{
		Name: "Method",
		Size: func(h *gc.Heap, ref gc.Ref) int { return methodBodyWords },
		Scan: func(h *gc.Heap, ref gc.Ref) []gc.Slot {
			return []gc.Slot{
				{Offset: methodOffHolderClass, Kind: gc.SlotOrdinary},
				{Offset: methodOffLiteral, Kind: gc.SlotValue},
			}
		},
	})
}

// Method is an accessor over a TypeMethod heap object.
type Method struct {
	H   *gc.Heap
	Ref gc.Ref
}

// MethodSpec bundles the fields NewMethod needs; kept as a struct since
// the alternative (a seven-argument constructor) is unreadable at every
// call site.
type MethodSpec struct {
	Kind         MethodKind
	Holder       gc.Ref
	SelectorID   uint32
	ArgCount     int
	LocalCount   int
	Code         uint64 // codeId / field index / global name id, per Kind
	Literal      uint64 // a value.Value's Bits(), only meaningful for MethodTrivialLiteral
}

func NewMethod(h *gc.Heap, spec MethodSpec) Method {
	ref := h.AllocWithPostInit(TypeMethod, methodBodyWords, func(ref gc.Ref) {
		h.SetWord(ref, methodOffKind, uint64(spec.Kind))
		h.SetWord(ref, methodOffHolderClass, uint64(spec.Holder))
		h.SetWord(ref, methodOffSelector, uint64(spec.SelectorID))
		h.SetWord(ref, methodOffArgCount, uint64(spec.ArgCount))
		h.SetWord(ref, methodOffLocalCount, uint64(spec.LocalCount))
		h.SetWord(ref, methodOffCode, spec.Code)
		h.SetWord(ref, methodOffLiteral, spec.Literal)
	})
	return Method{H: h, Ref: ref}
}

func (m Method) Kind() MethodKind { return MethodKind(m.H.Word(m.Ref, methodOffKind)) }

func (m Method) Holder() Class {
	return Class{H: m.H, Ref: gc.Ref(m.H.Word(m.Ref, methodOffHolderClass))}
}

func (m Method) SelectorID() uint32 { return uint32(m.H.Word(m.Ref, methodOffSelector)) }
func (m Method) ArgCount() int      { return int(m.H.Word(m.Ref, methodOffArgCount)) }
func (m Method) LocalCount() int    { return int(m.H.Word(m.Ref, methodOffLocalCount)) }
func (m Method) Code() uint64       { return m.H.Word(m.Ref, methodOffCode) }
func (m Method) LiteralBits() uint64 { return m.H.Word(m.Ref, methodOffLiteral) }

// IsFrameless reports whether this method's kind dispatches without
// allocating a Frame (spec §4.6: Trivial* methods).
func (m Method) IsFrameless() bool {
	switch m.Kind() {
	case MethodTrivialLiteral, MethodTrivialGlobal, MethodTrivialGetter, MethodTrivialSetter:
		return true
	default:
		return false
	}
}

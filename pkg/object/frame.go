package object

import (
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/value"
)

// Frame body layout (spec §4.3's GC-allocated variable-size activation
// record: header + inline arg slots + inline local slots + an optional
// value-stack region used only by the bytecode backend):
//
//	0: prevFrameRef (Ordinary) — the dynamic caller, for non-local-return
//	   unwind and stack traces. Nil for a top-level/detached frame.
//	1: methodRef    (Ordinary) — the Method being executed, for
//	   diagnostics and stack traces.
//	2: argCount
//	3: localCount
//	4: stackCapacity (0 for AST-interpreted frames, which never push to a
//	   value stack)
//	5: stackTop      (current depth, bytecode frames only)
//	6 .. 6+argCount-1:                       arguments (Value)
//	6+argCount .. +localCount-1:             locals (Value)
//	6+argCount+localCount .. +stackCapacity-1: value stack (Value)
//
// Argument 0's role depends on how the frame was entered. A normal
// method-entry frame stores the receiver (self) there directly. A block
// body's frame instead stores a pointer Value to the enclosing Block
// object: recovering self means following that chain — argument 0, then
// the Block it names, then that Block's own captured frame's argument 0
// — until a non-Block value is reached. FrameSelf implements exactly that
// walk.
const (
	frameOffPrev           = 0
	frameOffMethod         = 1
	frameOffArgCount       = 2
	frameOffLocalCount     = 3
	frameOffStackCapacity  = 4
	frameOffStackTop       = 5
	frameOffSlotsBase      = 6
)

func registerFrame(h *gc.Heap) {
	h.RegisterType(TypeFrame, gc.TypeInfo{
		Name: "Frame",
		Size: func(h *gc.Heap, ref gc.Ref) int {
			return frameOffSlotsBase + frameSlotCount(h, ref)
		},
		Scan: func(h *gc.Heap, ref gc.Ref) []gc.Slot {
			n := frameSlotCount(h, ref)
			slots := make([]gc.Slot, 0, 2+n)
			slots = append(slots,
				gc.Slot{Offset: frameOffPrev, Kind: gc.SlotOrdinary},
				gc.Slot{Offset: frameOffMethod, Kind: gc.SlotOrdinary},
			)
			for i := 0; i < n; i++ {
				slots = append(slots, gc.Slot{Offset: frameOffSlotsBase + i, Kind: gc.SlotValue})
			}
			return slots
		},
	})
}

func frameSlotCount(h *gc.Heap, ref gc.Ref) int {
	argCount := int(h.Word(ref, frameOffArgCount))
	localCount := int(h.Word(ref, frameOffLocalCount))
	stackCapacity := int(h.Word(ref, frameOffStackCapacity))
	return argCount + localCount + stackCapacity
}

// Frame is an accessor over a TypeFrame heap object.
type Frame struct {
	H   *gc.Heap
	Ref gc.Ref
}

// NewFrame allocates a frame for a method or block activation. self is
// the value to store in argument slot 0; the caller passes the receiver
// for a method-entry frame, or a pointer Value naming the enclosing Block
// for a block-body frame. argCount here always counts slot 0, so it is
// Method.ArgCount()+1 for a method-entry frame (every frame must reserve
// at least this one slot; FrameSelf relies on it always being present).
func NewFrame(h *gc.Heap, prev gc.Ref, method gc.Ref, argCount, localCount, stackCapacity int, self value.Value) Frame {
	total := frameOffSlotsBase + argCount + localCount + stackCapacity
	ref := h.AllocWithPostInit(TypeFrame, total, func(ref gc.Ref) {
		h.SetWord(ref, frameOffPrev, uint64(prev))
		h.SetWord(ref, frameOffMethod, uint64(method))
		h.SetWord(ref, frameOffArgCount, uint64(argCount))
		h.SetWord(ref, frameOffLocalCount, uint64(localCount))
		h.SetWord(ref, frameOffStackCapacity, uint64(stackCapacity))
		h.SetWord(ref, frameOffStackTop, 0)
		if argCount > 0 {
			h.SetWord(ref, frameOffSlotsBase, self.Bits())
		}
		for i := 1; i < argCount; i++ {
			h.SetWord(ref, frameOffSlotsBase+i, value.Nil.Bits())
		}
		for i := 0; i < localCount+stackCapacity; i++ {
			h.SetWord(ref, frameOffSlotsBase+argCount+i, value.Nil.Bits())
		}
	})
	return Frame{H: h, Ref: ref}
}

func (f Frame) Prev() (Frame, bool) {
	ref := gc.Ref(f.H.Word(f.Ref, frameOffPrev))
	if ref == gc.NilRef {
		return Frame{}, false
	}
	return Frame{H: f.H, Ref: ref}, true
}

func (f Frame) Method() Method {
	return Method{H: f.H, Ref: gc.Ref(f.H.Word(f.Ref, frameOffMethod))}
}

func (f Frame) ArgCount() int   { return int(f.H.Word(f.Ref, frameOffArgCount)) }
func (f Frame) LocalCount() int { return int(f.H.Word(f.Ref, frameOffLocalCount)) }
func (f Frame) StackCapacity() int { return int(f.H.Word(f.Ref, frameOffStackCapacity)) }
func (f Frame) StackTop() int   { return int(f.H.Word(f.Ref, frameOffStackTop)) }

// Argument returns the bounds-checked argument slot value; index 0 is
// self (or, for a block frame, the enclosing Block).
func (f Frame) Argument(index int) value.Value {
	f.checkArgIndex(index)
	return wordToValue(f.H.Word(f.Ref, frameOffSlotsBase+index))
}

func (f Frame) SetArgument(index int, v value.Value) {
	f.checkArgIndex(index)
	f.H.SetWord(f.Ref, frameOffSlotsBase+index, v.Bits())
}

func (f Frame) checkArgIndex(index int) {
	if index < 0 || index >= f.ArgCount() {
		panic("object: frame argument index out of range")
	}
}

// Local returns the bounds-checked local slot value.
func (f Frame) Local(index int) value.Value {
	f.checkLocalIndex(index)
	return wordToValue(f.H.Word(f.Ref, frameOffSlotsBase+f.ArgCount()+index))
}

func (f Frame) SetLocal(index int, v value.Value) {
	f.checkLocalIndex(index)
	f.H.SetWord(f.Ref, frameOffSlotsBase+f.ArgCount()+index, v.Bits())
}

func (f Frame) checkLocalIndex(index int) {
	if index < 0 || index >= f.LocalCount() {
		panic("object: frame local index out of range")
	}
}

// Push appends a value.Value to the bytecode frame's value stack.
func (f Frame) Push(v value.Value) {
	top := f.StackTop()
	if top >= f.StackCapacity() {
		panic("object: frame value stack overflow")
	}
	f.H.SetWord(f.Ref, frameOffSlotsBase+f.ArgCount()+f.LocalCount()+top, v.Bits())
	f.H.SetWord(f.Ref, frameOffStackTop, uint64(top+1))
}

// Pop removes and returns the top of the bytecode frame's value stack.
func (f Frame) Pop() value.Value {
	top := f.StackTop()
	if top == 0 {
		panic("object: frame value stack underflow")
	}
	top--
	v := wordToValue(f.H.Word(f.Ref, frameOffSlotsBase+f.ArgCount()+f.LocalCount()+top))
	f.H.SetWord(f.Ref, frameOffStackTop, uint64(top))
	return v
}

// PeekAt returns the bytecode frame's value stack slot depthFromTop below
// the current top (0 is the current top) without popping it.
func (f Frame) PeekAt(depthFromTop int) value.Value {
	top := f.StackTop()
	idx := top - 1 - depthFromTop
	if idx < 0 || idx >= f.StackCapacity() {
		panic("object: frame value stack peek out of range")
	}
	return wordToValue(f.H.Word(f.Ref, frameOffSlotsBase+f.ArgCount()+f.LocalCount()+idx))
}

// NthBack walks n frames up the dynamic caller chain (this frame's own
// Prev links), used by non-local return's unwind search.
func (f Frame) NthBack(n int) (Frame, bool) {
	cur := f
	for i := 0; i < n; i++ {
		prev, ok := cur.Prev()
		if !ok {
			return Frame{}, false
		}
		cur = prev
	}
	return cur, true
}

// FrameSelf recovers the method receiver from a frame by following
// argument 0 through any chain of enclosing Block values, per this
// file's header comment.
func FrameSelf(h *gc.Heap, frameRef gc.Ref) value.Value {
	f := Frame{H: h, Ref: frameRef}
	v := f.Argument(0)
	for {
		ref, ok := v.AsPointer()
		if !ok || h.HeaderType(toGCRef(ref)) != TypeBlock {
			return v
		}
		blk := Block{H: h, Ref: toGCRef(ref)}
		home := Frame{H: h, Ref: blk.HomeFrame()}
		v = home.Argument(0)
	}
}

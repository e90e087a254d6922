package object

import (
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/value"
)

// Array body layout:
//
//	0: length
//	1..length: elements (Value)
const (
	arrayOffLength     = 0
	arrayOffElemsBase  = 1
)

func registerArray(h *gc.Heap) {
	h.RegisterType(TypeArray, gc.TypeInfo{
		Name: "Array",
		Size: func(h *gc.Heap, ref gc.Ref) int {
			return arrayOffElemsBase + int(h.Word(ref, arrayOffLength))
		},
		Scan: func(h *gc.Heap, ref gc.Ref) []gc.Slot {
			n := int(h.Word(ref, arrayOffLength))
			slots := make([]gc.Slot, n)
			for i := 0; i < n; i++ {
				slots[i] = gc.Slot{Offset: arrayOffElemsBase + i, Kind: gc.SlotValue}
			}
			return slots
		},
	})
}

// Array is an accessor over a TypeArray heap object.
type Array struct {
	H   *gc.Heap
	Ref gc.Ref
}

// NewArray allocates a length-element array, all slots nil.
func NewArray(h *gc.Heap, length int) Array {
	ref := h.AllocWithPostInit(TypeArray, arrayOffElemsBase+length, func(ref gc.Ref) {
		h.SetWord(ref, arrayOffLength, uint64(length))
		for i := 0; i < length; i++ {
			h.SetWord(ref, arrayOffElemsBase+i, value.Nil.Bits())
		}
	})
	return Array{H: h, Ref: ref}
}

func (a Array) Len() int { return int(a.H.Word(a.Ref, arrayOffLength)) }

// At returns the element at index (0-based) and true, or (Nil, false) if
// index is out of range — out-of-range access is a primitive failure per
// spec §7, not a silent wraparound, so callers surface the bool to raise
// the appropriate Exception rather than indexing unchecked.
func (a Array) At(index int) (value.Value, bool) {
	if index < 0 || index >= a.Len() {
		return value.Nil, false
	}
	return wordToValue(a.H.Word(a.Ref, arrayOffElemsBase+index)), true
}

func (a Array) SetAt(index int, v value.Value) bool {
	if index < 0 || index >= a.Len() {
		return false
	}
	a.H.SetWord(a.Ref, arrayOffElemsBase+index, v.Bits())
	return true
}

func (a Array) AsValue() value.Value { return value.NewPointer(toValueRef(a.Ref)) }

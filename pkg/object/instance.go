package object

import (
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/value"
)

// Instance body layout:
//
//	0: classRef (Ordinary)
//	1 .. fieldCount: field values (Value), nil until assigned (spec §3's
//	  "instance fields are nil until explicitly assigned" invariant; a
//	  freshly allocated word is zero, which decodes as the double 0.0, so
//	  NewInstance writes value.Nil into every field explicitly).
const (
	instanceOffClass      = 0
	instanceOffFieldsBase = 1
)

func registerInstance(h *gc.Heap) {
	h.RegisterType(TypeInstance, gc.TypeInfo{
		Name: "Instance",
		Size: func(h *gc.Heap, ref gc.Ref) int {
			classRef := gc.Ref(h.Word(ref, instanceOffClass))
			fieldCount := int(h.Word(classRef, classOffFieldCount))
			return instanceOffFieldsBase + fieldCount
		},
		Scan: func(h *gc.Heap, ref gc.Ref) []gc.Slot {
			classRef := gc.Ref(h.Word(ref, instanceOffClass))
			fieldCount := int(h.Word(classRef, classOffFieldCount))
			slots := make([]gc.Slot, 0, 1+fieldCount)
			slots = append(slots, gc.Slot{Offset: instanceOffClass, Kind: gc.SlotOrdinary})
			for i := 0; i < fieldCount; i++ {
				slots = append(slots, gc.Slot{Offset: instanceOffFieldsBase + i, Kind: gc.SlotValue})
			}
			return slots
		},
	})
}

// Instance is an accessor over a TypeInstance heap object.
type Instance struct {
	H   *gc.Heap
	Ref gc.Ref
}

// NewInstance allocates a zeroed (all-nil-field) instance of class.
func NewInstance(h *gc.Heap, class Class) Instance {
	fieldCount := class.InstanceFieldCount()
	ref := h.AllocWithPostInit(TypeInstance, instanceOffFieldsBase+fieldCount, func(ref gc.Ref) {
		h.SetWord(ref, instanceOffClass, uint64(class.Ref))
		for i := 0; i < fieldCount; i++ {
			h.SetWord(ref, instanceOffFieldsBase+i, value.Nil.Bits())
		}
	})
	return Instance{H: h, Ref: ref}
}

func (in Instance) Class() Class {
	return Class{H: in.H, Ref: gc.Ref(in.H.Word(in.Ref, instanceOffClass))}
}

func (in Instance) Field(index int) value.Value {
	return wordToValue(in.H.Word(in.Ref, instanceOffFieldsBase+index))
}

func (in Instance) SetField(index int, v value.Value) {
	in.H.SetWord(in.Ref, instanceOffFieldsBase+index, v.Bits())
}

// AsValue boxes this instance as a pointer Value.
func (in Instance) AsValue() value.Value { return value.NewPointer(toValueRef(in.Ref)) }

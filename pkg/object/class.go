package object

import (
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/value"
)

// Class body layout:
//
//	0: nameId            (interner.Id, raw)
//	1: superclassRef     (Ordinary; gc.NilRef for Object)
//	2: instanceFieldCount (own + inherited)
//	3: instanceMethodCount (n)
//	4: classMethodCount    (m)
//	5 .. 5+2n-1:   instance methods, (selectorId, methodRef) pairs
//	5+2n .. +2m-1: class methods, (selectorId, methodRef) pairs
//
// Method tables are flat, insertion-ordered association lists rather than
// a hash map: spec §3 requires insertion-order iteration over a class's
// methods (for introspection and for deterministic disassembly/printing),
// which a SwissTable-style map cannot give back without a separate
// ordering index. Lookup is linear, but method tables are small (tens of
// entries at most) so this never shows up as a bottleneck worth a second
// data structure.
const (
	classOffName              = 0
	classOffSuperclass        = 1
	classOffFieldCount        = 2
	classOffInstanceMethodCnt = 3
	classOffClassMethodCnt    = 4
	classOffMethodsStart      = 5
)

func registerClass(h *gc.Heap) {
	h.RegisterType(TypeClass, gc.TypeInfo{
		Name: "Class",
		Size: func(h *gc.Heap, ref gc.Ref) int {
			n := int(h.Word(ref, classOffInstanceMethodCnt))
			m := int(h.Word(ref, classOffClassMethodCnt))
			return classOffMethodsStart + 2*n + 2*m
		},
		Scan: func(h *gc.Heap, ref gc.Ref) []gc.Slot {
			n := int(h.Word(ref, classOffInstanceMethodCnt))
			m := int(h.Word(ref, classOffClassMethodCnt))
			slots := make([]gc.Slot, 0, 1+n+m)
			slots = append(slots, gc.Slot{Offset: classOffSuperclass, Kind: gc.SlotOrdinary})
			for i := 0; i < n+m; i++ {
				off := classOffMethodsStart + 2*i + 1
				slots = append(slots, gc.Slot{Offset: off, Kind: gc.SlotOrdinary})
			}
			return slots
		},
	})
}

// Class is an accessor over a TypeClass heap object.
type Class struct {
	H   *gc.Heap
	Ref gc.Ref
}

// NewClass allocates a class with its method tables pre-sized to
// instanceSelectors/classSelectors (selector ids known up front from the
// parsed class definition). Every method-ref slot starts at gc.NilRef and
// is filled in afterward with SetInstanceMethod/SetClassMethod, once the
// Method objects referring back to this class (by its now-permanent Ref)
// have themselves been created. This two-phase build — reserve the
// table, then link it — exists so a Class's Ref never changes after
// creation: Method.holderClassRef and Instance.classRef both capture it
// the moment it's known, and nothing here may invalidate that by
// reallocating the class's storage later.
func NewClass(h *gc.Heap, nameID uint32, superclass gc.Ref, fieldCount int, instanceSelectors, classSelectors []uint32) Class {
	n, m := len(instanceSelectors), len(classSelectors)
	body := classOffMethodsStart + 2*n + 2*m
	ref := h.AllocWithPostInit(TypeClass, body, func(ref gc.Ref) {
		h.SetWord(ref, classOffName, uint64(nameID))
		h.SetWord(ref, classOffSuperclass, uint64(superclass))
		h.SetWord(ref, classOffFieldCount, uint64(fieldCount))
		h.SetWord(ref, classOffInstanceMethodCnt, uint64(n))
		h.SetWord(ref, classOffClassMethodCnt, uint64(m))
		w := classOffMethodsStart
		for _, sel := range instanceSelectors {
			h.SetWord(ref, w, uint64(sel))
			h.SetWord(ref, w+1, uint64(gc.NilRef))
			w += 2
		}
		for _, sel := range classSelectors {
			h.SetWord(ref, w, uint64(sel))
			h.SetWord(ref, w+1, uint64(gc.NilRef))
			w += 2
		}
	})
	return Class{H: h, Ref: ref}
}

func (c Class) NameID() uint32 { return uint32(c.H.Word(c.Ref, classOffName)) }

func (c Class) AsValue() value.Value { return value.NewPointer(toValueRef(c.Ref)) }

func (c Class) Superclass() (Class, bool) {
	ref := gc.Ref(c.H.Word(c.Ref, classOffSuperclass))
	if ref == gc.NilRef {
		return Class{}, false
	}
	return Class{H: c.H, Ref: ref}, true
}

func (c Class) InstanceFieldCount() int {
	return int(c.H.Word(c.Ref, classOffFieldCount))
}

// SetInstanceMethod links selectorID's pre-reserved instance-method slot
// to method. selectorID must be one of the instanceSelectors passed to
// NewClass.
func (c Class) SetInstanceMethod(selectorID uint32, method gc.Ref) {
	n := int(c.H.Word(c.Ref, classOffInstanceMethodCnt))
	for i := 0; i < n; i++ {
		off := classOffMethodsStart + 2*i
		if uint32(c.H.Word(c.Ref, off)) == selectorID {
			c.H.SetWord(c.Ref, off+1, uint64(method))
			return
		}
	}
	panic("object: SetInstanceMethod: selector not reserved by NewClass")
}

// SetClassMethod links selectorID's pre-reserved class-method slot to
// method.
func (c Class) SetClassMethod(selectorID uint32, method gc.Ref) {
	n := int(c.H.Word(c.Ref, classOffInstanceMethodCnt))
	m := int(c.H.Word(c.Ref, classOffClassMethodCnt))
	base := classOffMethodsStart + 2*n
	for i := 0; i < m; i++ {
		off := base + 2*i
		if uint32(c.H.Word(c.Ref, off)) == selectorID {
			c.H.SetWord(c.Ref, off+1, uint64(method))
			return
		}
	}
	panic("object: SetClassMethod: selector not reserved by NewClass")
}

// LookupInstanceMethod walks this class and its superclasses looking for
// selectorID, returning the first match (the most specific override).
func (c Class) LookupInstanceMethod(selectorID uint32) (gc.Ref, bool) {
	for cur, ok := c, true; ok; cur, ok = cur.Superclass() {
		n := int(cur.H.Word(cur.Ref, classOffInstanceMethodCnt))
		for i := 0; i < n; i++ {
			off := classOffMethodsStart + 2*i
			if uint32(cur.H.Word(cur.Ref, off)) == selectorID {
				return gc.Ref(cur.H.Word(cur.Ref, off+1)), true
			}
		}
	}
	return gc.NilRef, false
}

// LookupClassMethod walks this class and its superclasses' class-side
// method tables.
func (c Class) LookupClassMethod(selectorID uint32) (gc.Ref, bool) {
	for cur, ok := c, true; ok; cur, ok = cur.Superclass() {
		n := int(cur.H.Word(cur.Ref, classOffInstanceMethodCnt))
		m := int(cur.H.Word(cur.Ref, classOffClassMethodCnt))
		base := classOffMethodsStart + 2*n
		for i := 0; i < m; i++ {
			off := base + 2*i
			if uint32(cur.H.Word(cur.Ref, off)) == selectorID {
				return gc.Ref(cur.H.Word(cur.Ref, off+1)), true
			}
		}
	}
	return gc.NilRef, false
}

// InstanceMethodCount reports how many instance-side selectors c defines
// directly (not counting inherited ones).
func (c Class) InstanceMethodCount() int {
	return int(c.H.Word(c.Ref, classOffInstanceMethodCnt))
}

// ClassMethodCount reports how many class-side selectors c defines
// directly.
func (c Class) ClassMethodCount() int {
	return int(c.H.Word(c.Ref, classOffClassMethodCnt))
}

// InstanceMethodAt returns the selector id and method ref at position i
// (0 <= i < InstanceMethodCount()) among c's own instance methods, in
// the insertion order NewClass reserved them in — the order disassembly
// (spec §6's "-d" flag) walks a class's own method table.
func (c Class) InstanceMethodAt(i int) (uint32, gc.Ref) {
	off := classOffMethodsStart + 2*i
	return uint32(c.H.Word(c.Ref, off)), gc.Ref(c.H.Word(c.Ref, off+1))
}

// ClassMethodAt returns the selector id and method ref at position i
// (0 <= i < ClassMethodCount()) among c's own class methods.
func (c Class) ClassMethodAt(i int) (uint32, gc.Ref) {
	n := int(c.H.Word(c.Ref, classOffInstanceMethodCnt))
	off := classOffMethodsStart + 2*n + 2*i
	return uint32(c.H.Word(c.Ref, off)), gc.Ref(c.H.Word(c.Ref, off+1))
}

// IsSubclassOf reports whether c is other or a subclass of other,
// following the superclass chain.
func (c Class) IsSubclassOf(other Class) bool {
	for cur, ok := c, true; ok; cur, ok = cur.Superclass() {
		if cur.Ref == other.Ref {
			return true
		}
	}
	return false
}

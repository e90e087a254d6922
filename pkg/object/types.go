// Package object implements the heap object model of spec §3: thin
// accessor structs over a gc.Heap word arena standing in for what would,
// in an ordinary Go program, just be struct pointers. Every exported type
// here is a `{h *gc.Heap, Ref gc.Ref}` pair — copying one of these values
// is cheap and never aliases Go memory the collector doesn't know about,
// since the only state that matters lives in the arena itself.
//
// Two concerns fall outside the arena entirely and live in ordinary
// Go-managed memory instead: compiled method/block bodies (bytecode
// programs and AST node trees, held in a program-wide CodeTable and
// referenced from the arena only by a small integer id) and the primitive
// registry. Both are permanent program data, never collected, so there is
// nothing for the tracing collector to do with them — keeping them out of
// the arena avoids teaching the collector to trace a Go-native object
// graph it has no business understanding.
package object

import (
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/value"
)

// Heap type ids. 0 is never used (NilRef sentinel lives at word index 0,
// one before the very first valid header).
const (
	TypeClass gc.TypeID = iota + 1
	TypeMethod
	TypeInstance
	TypeFrame
	TypeBlock
	TypeString
	TypeBigInteger
	TypeArray
)

// RegisterTypes binds every heap type's size/scan callbacks to h. Called
// once, when a Universe creates its heap.
func RegisterTypes(h *gc.Heap) {
	registerClass(h)
	registerMethod(h)
	registerInstance(h)
	registerFrame(h)
	registerBlock(h)
	registerString(h)
	registerBigInteger(h)
	registerArray(h)
}

func toGCRef(v value.Ref) gc.Ref { return gc.Ref(v) }
func toValueRef(r gc.Ref) value.Ref { return value.Ref(r) }

// wordToValue reinterprets a raw arena word as a boxed Value, for reading
// a Value-kind slot.
func wordToValue(w uint64) value.Value { return value.FromBits(w) }

package object

import (
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/value"
)

// HeapString body layout:
//
//	0: byte length
//	1..: UTF-8 bytes packed 8 per word, little-endian, zero-padded in the
//	     final word. Strings never hold outgoing references, so Scan is
//	     nil: nothing here for the collector to trace.
const (
	stringOffLength = 0
	stringOffBytes  = 1
)

func registerString(h *gc.Heap) {
	h.RegisterType(TypeString, gc.TypeInfo{
		Name: "String",
		Size: func(h *gc.Heap, ref gc.Ref) int {
			n := int(h.Word(ref, stringOffLength))
			return stringOffBytes + (n+7)/8
		},
	})
}

// HeapString is an accessor over a TypeString heap object: a materialized
// language-level string instance, distinct from package interner's
// symbol ids (spec §3 treats them as separate concerns — interning is
// for small permanent symbol tokens, HeapString is for ordinary mutable
// or computed string values).
type HeapString struct {
	H   *gc.Heap
	Ref gc.Ref
}

func NewHeapString(h *gc.Heap, s string) HeapString {
	n := len(s)
	wordCount := (n + 7) / 8
	ref := h.AllocWithPostInit(TypeString, stringOffBytes+wordCount, func(ref gc.Ref) {
		h.SetWord(ref, stringOffLength, uint64(n))
		for w := 0; w < wordCount; w++ {
			var word uint64
			for b := 0; b < 8; b++ {
				i := w*8 + b
				if i >= n {
					break
				}
				word |= uint64(s[i]) << (8 * b)
			}
			h.SetWord(ref, stringOffBytes+w, word)
		}
	})
	return HeapString{H: h, Ref: ref}
}

func (s HeapString) Len() int { return int(s.H.Word(s.Ref, stringOffLength)) }

func (s HeapString) String() string {
	n := s.Len()
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		word := s.H.Word(s.Ref, stringOffBytes+i/8)
		buf[i] = byte(word >> (8 * (i % 8)))
	}
	return string(buf)
}

func (s HeapString) AsValue() value.Value { return value.NewPointer(toValueRef(s.Ref)) }

// Package value implements the NaN-boxed Value representation shared by
// both VM backends.
//
// A Value is a single 64-bit word that represents any smog value: nil, the
// system sentinel, a boolean, a 32-bit integer, a Unicode character, an
// interned symbol, a double, or a tagged reference into the GC heap
// (String, BigInteger, Array, Block, Class, Instance, Method).
//
// Encoding
//
// IEEE-754 doubles reserve a huge range of bit patterns for NaN: any word
// whose exponent field is all ones and whose mantissa is non-zero. smog
// claims the "negative NaN" half of that space (sign bit set, quiet bit
// set) for boxed, non-double values and leaves every other bit pattern —
// including every genuine double, +/-Inf, and the canonical positive NaN
// `math.NaN()` produces — decoding as a double. This is the standard
// "NaN boxing" trick used by several dynamic-language VMs.
//
//	bit 63        : sign       -- 1 marks a boxed value
//	bits 62..52   : exponent   -- all ones (0x7FF) marks a boxed value
//	bit  51       : quiet bit  -- 1 marks a boxed value
//	bits 50..48   : tag        -- which kind of boxed value
//	bits 47..0    : payload    -- tag-dependent
//
// Any double produced by arithmetic that happens to be NaN is canonicalized
// to the positive canonical NaN (sign bit clear) before being boxed into a
// Value, so it never collides with the tagged space.
package value

import "math"

// boxMask identifies the fixed high-order bits that mark a Value as a
// tagged (non-double) encoding: sign set, exponent all ones, quiet bit set.
const boxMask uint64 = 0xFFF8_0000_0000_0000

// tagMask/tagShift extract the 3-bit tag sitting just below the quiet bit.
const (
	tagMask  uint64 = 0x0007_0000_0000_0000
	tagShift        = 48
)

// payloadMask extracts the 48 bits of tag-specific payload.
const payloadMask uint64 = 0x0000_FFFF_FFFF_FFFF

// Tag identifies which kind of boxed value a Value holds. Doubles have no
// tag of their own: a Value decodes as a double whenever its bits don't
// match boxMask.
type Tag uint8

const (
	// TagNil is the singleton nil value.
	TagNil Tag = iota
	// TagSystem is the singleton "system" sentinel (bound to the global
	// `system`).
	TagSystem
	// TagBoolean distinguishes true (payload 1) from false (payload 0).
	TagBoolean
	// TagInteger holds a 32-bit signed integer, sign-extended into the
	// 48-bit payload.
	TagInteger
	// TagChar holds a 21-bit Unicode scalar value.
	TagChar
	// TagSymbol holds an interned string id (see package interner).
	TagSymbol
	// TagPointer holds a heap reference (see package gc). The concrete
	// heap type (String, BigInteger, Array, Block, Class, Instance,
	// Method) lives in the object's own header, not in the tag — three
	// tag bits aren't enough to distinguish seven pointer kinds directly,
	// and the object header already carries that information for the GC's
	// own benefit.
	TagPointer
)

// Value is a NaN-boxed 64-bit word. The zero Value is NOT nil: an
// all-zero word has a clear sign bit, so it decodes as the double 0.0,
// not as Nil (which is the specific tagged pattern box(TagNil, 0)).
// Code that needs "no value yet" must use Nil explicitly.
type Value struct {
	bits uint64
}

// Nil is the singleton nil value (not the zero Value; see Value).
var Nil = Value{bits: box(TagNil, 0)}

// System is the singleton system sentinel.
var System = Value{bits: box(TagSystem, 0)}

// True and False are the two boolean singletons.
var (
	True  = Value{bits: box(TagBoolean, 1)}
	False = Value{bits: box(TagBoolean, 0)}
)

func box(tag Tag, payload uint64) uint64 {
	return boxMask | (uint64(tag) << tagShift) | (payload & payloadMask)
}

func isBoxed(bits uint64) bool {
	return bits&boxMask == boxMask
}

// New constructs a Value from a tag and a raw payload. The payload is
// masked to 48 bits; callers are responsible for encoding tag-specific
// semantics (sign extension, etc.) before calling New.
func New(tag Tag, payload uint64) Value {
	return Value{bits: box(tag, payload)}
}

// Tag returns the Value's tag. Calling Tag on a double Value returns an
// unspecified result; check IsDouble first.
func (v Value) Tag() Tag {
	return Tag((v.bits & tagMask) >> tagShift)
}

// Payload returns the raw 48-bit payload. Calling Payload on a double
// Value returns an unspecified result; check IsDouble first.
func (v Value) Payload() uint64 {
	return v.bits & payloadMask
}

// Bits returns the raw 64-bit word, e.g. for hashing or storing in a GC
// value slot.
func (v Value) Bits() uint64 { return v.bits }

// FromBits reconstructs a Value from a raw 64-bit word previously obtained
// via Bits.
func FromBits(bits uint64) Value { return Value{bits: bits} }

// IsDouble reports whether v decodes as an IEEE-754 double rather than a
// tagged value.
func (v Value) IsDouble() bool { return !isBoxed(v.bits) }

// NewDouble boxes a float64. NaN results are canonicalized to the positive
// canonical NaN so that they can never be mistaken for a tagged value.
func NewDouble(f float64) Value {
	if math.IsNaN(f) {
		f = math.NaN() // canonical, sign bit clear
	}
	return Value{bits: math.Float64bits(f)}
}

// AsDouble returns the float64 this Value encodes and true, or (0, false)
// if v is not a double.
func (v Value) AsDouble() (float64, bool) {
	if !v.IsDouble() {
		return 0, false
	}
	return math.Float64frombits(v.bits), true
}

// IsNil reports whether v is the nil singleton.
func (v Value) IsNil() bool { return isBoxed(v.bits) && v.Tag() == TagNil }

// IsSystem reports whether v is the system sentinel.
func (v Value) IsSystem() bool { return isBoxed(v.bits) && v.Tag() == TagSystem }

// IsBoolean reports whether v is a boolean singleton.
func (v Value) IsBoolean() bool { return isBoxed(v.bits) && v.Tag() == TagBoolean }

// AsBoolean returns the bool this Value encodes and true, or (false, false)
// if v is not a boolean.
func (v Value) AsBoolean() (bool, bool) {
	if !v.IsBoolean() {
		return false, false
	}
	return v.Payload() != 0, true
}

// NewInteger boxes a 32-bit signed integer.
func NewInteger(i int32) Value {
	return Value{bits: box(TagInteger, uint64(int64(i))&payloadMask)}
}

// IsInteger reports whether v holds a 32-bit integer.
func (v Value) IsInteger() bool { return isBoxed(v.bits) && v.Tag() == TagInteger }

// AsInteger returns the int32 this Value encodes and true, or (0, false) if
// v is not an integer. The 48-bit payload is sign-extended from bit 47.
func (v Value) AsInteger() (int32, bool) {
	if !v.IsInteger() {
		return 0, false
	}
	payload := v.Payload()
	signExtended := int64(payload<<16) >> 16
	return int32(signExtended), true
}

// NewChar boxes a Unicode scalar value.
func NewChar(r rune) Value {
	return Value{bits: box(TagChar, uint64(uint32(r)))}
}

// IsChar reports whether v holds a character.
func (v Value) IsChar() bool { return isBoxed(v.bits) && v.Tag() == TagChar }

// AsChar returns the rune this Value encodes and true, or (0, false) if v
// is not a character.
func (v Value) AsChar() (rune, bool) {
	if !v.IsChar() {
		return 0, false
	}
	return rune(v.Payload()), true
}

// NewSymbol boxes an interned string id.
func NewSymbol(id uint32) Value {
	return Value{bits: box(TagSymbol, uint64(id))}
}

// IsSymbol reports whether v holds an interned symbol id.
func (v Value) IsSymbol() bool { return isBoxed(v.bits) && v.Tag() == TagSymbol }

// AsSymbol returns the interned id this Value encodes and true, or
// (0, false) if v is not a symbol.
func (v Value) AsSymbol() (uint32, bool) {
	if !v.IsSymbol() {
		return 0, false
	}
	return uint32(v.Payload()), true
}

// Ref is the heap-reference type boxed by TagPointer. It is defined here
// (rather than imported from package gc) as a bare uint32 word-index to
// avoid a dependency cycle: package gc depends on package value for value
// slots, so value cannot depend back on gc. Package object and package gc
// convert between value.Ref and gc.Ref, which share the same underlying
// representation.
type Ref uint32

// NilRef is the reserved ref representing "no object". Word index 0 is
// never allocated by package gc for exactly this reason.
const NilRef Ref = 0

// NewPointer boxes a heap reference. The caller is responsible for using a
// pointer predicate on the *object*, not the Value, to recover the
// concrete heap type (String, Array, Block, Class, Instance, Method, ...):
// the tag alone only says "this is some heap reference."
func NewPointer(ref Ref) Value {
	return Value{bits: box(TagPointer, uint64(ref))}
}

// IsPointer reports whether v holds a heap reference.
func (v Value) IsPointer() bool { return isBoxed(v.bits) && v.Tag() == TagPointer }

// AsPointer returns the heap reference this Value encodes and true, or
// (NilRef, false) if v is not a pointer.
func (v Value) AsPointer() (Ref, bool) {
	if !v.IsPointer() {
		return NilRef, false
	}
	return Ref(v.Payload()), true
}

// Equal implements the non-pointer equality rules of spec §3: bitwise for
// integers/booleans/nil/system/characters/symbols, IEEE equality for
// doubles. Pointer-tagged values (strings, arrays, blocks, classes,
// instances, methods) need content- or identity-equality that depends on
// the heap, so package object implements Value equality for those kinds;
// Equal here handles only the scalar kinds and falls back to false for any
// pointer (callers must special-case it).
func Equal(a, b Value) bool {
	if a.IsDouble() || b.IsDouble() {
		af, aok := a.AsDouble()
		bf, bok := b.AsDouble()
		if aok && bok {
			return af == bf
		}
		// Mixed integer/double equality coerces the integer to double.
		if ai, ok := a.AsInteger(); ok && bok {
			return float64(ai) == bf
		}
		if bi, ok := b.AsInteger(); ok && aok {
			return af == float64(bi)
		}
		return false
	}
	if a.IsPointer() || b.IsPointer() {
		return false
	}
	return a.bits == b.bits
}

// TypeName returns a short human-readable name for v's kind, used in
// diagnostics and doesNotUnderstand: messages.
func (v Value) TypeName() string {
	if v.IsDouble() {
		return "Double"
	}
	switch v.Tag() {
	case TagNil:
		return "nil"
	case TagSystem:
		return "System"
	case TagBoolean:
		return "Boolean"
	case TagInteger:
		return "Integer"
	case TagChar:
		return "Char"
	case TagSymbol:
		return "Symbol"
	case TagPointer:
		return "Object"
	default:
		return "Unknown"
	}
}

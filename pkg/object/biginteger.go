package object

import (
	"math/big"

	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/value"
)

// BigInteger body layout:
//
//	0: sign (0 = non-negative, 1 = negative; big.Int has no signed-zero
//	   case to worry about)
//	1: limb count
//	2..: big.Word limbs, as produced by (*big.Int).Bits(), each stored in
//	     one 64-bit word (big.Word is uintptr-sized, 64 bits on every
//	     platform this VM targets). No outgoing references: Scan is nil.
//
// Promotion to BigInteger happens whenever an Integer primitive's result
// would overflow int32 (spec's arithmetic primitives); math/big is the
// one stdlib-only piece of this object model (see SPEC_FULL.md/DESIGN.md
// — no third-party arbitrary-precision integer library improves on it).
const (
	bigIntOffSign   = 0
	bigIntOffLimbCt = 1
	bigIntOffLimbs  = 2
)

func registerBigInteger(h *gc.Heap) {
	h.RegisterType(TypeBigInteger, gc.TypeInfo{
		Name: "BigInteger",
		Size: func(h *gc.Heap, ref gc.Ref) int {
			n := int(h.Word(ref, bigIntOffLimbCt))
			return bigIntOffLimbs + n
		},
	})
}

// BigInteger is an accessor over a TypeBigInteger heap object.
type BigInteger struct {
	H   *gc.Heap
	Ref gc.Ref
}

func NewBigInteger(h *gc.Heap, v *big.Int) BigInteger {
	bits := v.Bits()
	ref := h.AllocWithPostInit(TypeBigInteger, bigIntOffLimbs+len(bits), func(ref gc.Ref) {
		sign := uint64(0)
		if v.Sign() < 0 {
			sign = 1
		}
		h.SetWord(ref, bigIntOffSign, sign)
		h.SetWord(ref, bigIntOffLimbCt, uint64(len(bits)))
		for i, w := range bits {
			h.SetWord(ref, bigIntOffLimbs+i, uint64(w))
		}
	})
	return BigInteger{H: h, Ref: ref}
}

func (b BigInteger) Value() *big.Int {
	n := int(b.H.Word(b.Ref, bigIntOffLimbCt))
	bits := make([]big.Word, n)
	for i := 0; i < n; i++ {
		bits[i] = big.Word(b.H.Word(b.Ref, bigIntOffLimbs+i))
	}
	v := new(big.Int).SetBits(bits)
	if b.H.Word(b.Ref, bigIntOffSign) == 1 {
		v.Neg(v)
	}
	return v
}

func (b BigInteger) AsValue() value.Value { return value.NewPointer(toValueRef(b.Ref)) }

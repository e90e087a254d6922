package gc

import "github.com/kristofer/smog/pkg/value"

// refFromValueBits recovers the traced Ref (if any) from a raw word that
// holds a NaN-boxed value.Value rather than a bare Ref.
func refFromValueBits(bits uint64) Ref {
	v := value.FromBits(bits)
	ref, ok := v.AsPointer()
	if !ok {
		return NilRef
	}
	return Ref(ref)
}

// valueBitsFromRef rewrites prev (a value.Value's bits) so it points at
// ref instead, preserving the TagPointer encoding. prev is assumed to
// already hold a pointer-tagged Value, since only those are ever returned
// by a Scan/root callback as SlotValue.
func valueBitsFromRef(prev uint64, ref Ref) uint64 {
	_ = prev
	return value.NewPointer(value.Ref(ref)).Bits()
}

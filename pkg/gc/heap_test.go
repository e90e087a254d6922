package gc

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pairType is a minimal two-slot heap object (like a cons cell) used only
// to exercise the collector's marking/copying machinery independently of
// package object's real types.
const pairType TypeID = 1

func registerPairType(h *Heap) {
	h.RegisterType(pairType, TypeInfo{
		Name: "pair",
		Size: func(h *Heap, ref Ref) int { return 2 },
		Scan: func(h *Heap, ref Ref) []Slot {
			return []Slot{{Offset: 0, Kind: SlotOrdinary}, {Offset: 1, Kind: SlotOrdinary}}
		},
	})
}

func newPair(h *Heap, car, cdr Ref) Ref {
	return h.AllocWithPostInit(pairType, 2, func(ref Ref) {
		h.SetWord(ref, 0, uint64(car))
		h.SetWord(ref, 1, uint64(cdr))
	})
}

func pairCar(h *Heap, ref Ref) Ref { return Ref(h.Word(ref, 0)) }
func pairCdr(h *Heap, ref Ref) Ref { return Ref(h.Word(ref, 1)) }

// testRoot is a RootProvider holding a single mutable Ref field, standing
// in for a mutator variable (a VM's "current frame" pointer, a global
// binding, ...).
type testRoot struct {
	ref Ref
}

func (r *testRoot) EnumerateRoots(visit func(Ref) Ref) {
	r.ref = visit(r.ref)
}

func newTestHeap(t *testing.T, capacity int, plan string) *Heap {
	t.Helper()
	h := NewHeap(capacity, plan, zerolog.Nop())
	registerPairType(h)
	return h
}

func TestMarkSweepReclaimsUnreachable(t *testing.T) {
	h := newTestHeap(t, 64, DefaultPlanName)
	root := &testRoot{}
	h.RegisterRoot(root)

	reachable := newPair(h, NilRef, NilRef)
	root.ref = reachable
	_ = newPair(h, NilRef, NilRef) // garbage, nothing roots it

	h.Collect()

	plan := h.plan.(*markSweepPlan)
	require.Len(t, plan.live, 1)
	assert.Equal(t, reachable, plan.live[0].ref)
	assert.NotEmpty(t, plan.free, "the unreachable pair's words should be reclaimed")
}

func TestMarkSweepKeepsChainReachableThroughSlots(t *testing.T) {
	h := newTestHeap(t, 64, DefaultPlanName)
	root := &testRoot{}
	h.RegisterRoot(root)

	tail := newPair(h, NilRef, NilRef)
	head := newPair(h, tail, NilRef)
	root.ref = head

	h.Collect()

	plan := h.plan.(*markSweepPlan)
	refs := make(map[Ref]bool)
	for _, obj := range plan.live {
		refs[obj.ref] = true
	}
	assert.True(t, refs[head])
	assert.True(t, refs[tail])
	assert.Equal(t, tail, pairCar(h, head))
}

func TestMarkSweepAllowsReallocationAfterCollect(t *testing.T) {
	h := newTestHeap(t, 8, DefaultPlanName) // tiny: forces a collection on overflow
	root := &testRoot{}
	h.RegisterRoot(root)

	root.ref = newPair(h, NilRef, NilRef)
	for i := 0; i < 20; i++ {
		// Each iteration drops the previous pair and allocates a new one;
		// with only 8 words of heap this cannot succeed without the
		// collector reclaiming garbage in between.
		root.ref = newPair(h, NilRef, NilRef)
	}
	assert.NotEqual(t, NilRef, root.ref)
}

func TestSemispaceCopiesReachableAndUpdatesRoot(t *testing.T) {
	h := newTestHeap(t, 64, AlternatePlanName)
	root := &testRoot{}
	h.RegisterRoot(root)

	tail := newPair(h, NilRef, NilRef)
	head := newPair(h, tail, NilRef)
	root.ref = head

	h.Collect()

	// The root must still resolve to a live pair whose car still points at
	// a live tail pair, even though both objects likely moved.
	newHead := root.ref
	require.NotEqual(t, NilRef, newHead)
	newTail := pairCar(h, newHead)
	require.NotEqual(t, NilRef, newTail)
	assert.Equal(t, NilRef, pairCdr(h, newTail))
}

func TestSemispaceDropsUnreachable(t *testing.T) {
	h := newTestHeap(t, 64, AlternatePlanName)
	root := &testRoot{}
	h.RegisterRoot(root)

	root.ref = newPair(h, NilRef, NilRef)
	_ = newPair(h, NilRef, NilRef) // unreachable garbage

	plan := h.plan.(*semispacePlan)
	before := plan.top
	h.Collect()
	// Only the single reachable pair (3 words: header + 2 body) should
	// have been copied into the new from-space.
	assert.Equal(t, 1+(1+2), plan.top)
	assert.Less(t, plan.top, before+(1+2)+1, "garbage must not have been copied")
}

func TestSemispaceSharedObjectCopiedOnce(t *testing.T) {
	h := newTestHeap(t, 64, AlternatePlanName)
	rootA := &testRoot{}
	rootB := &testRoot{}
	h.RegisterRoot(rootA)
	h.RegisterRoot(rootB)

	shared := newPair(h, NilRef, NilRef)
	rootA.ref = shared
	rootB.ref = shared

	h.Collect()

	assert.Equal(t, rootA.ref, rootB.ref, "both roots must be forwarded to the same new location")
}

func TestObjectSizeAndScanDispatch(t *testing.T) {
	h := newTestHeap(t, 64, DefaultPlanName)
	p := newPair(h, NilRef, NilRef)
	assert.Equal(t, 3, h.ObjectSize(p)) // header + 2 body words
	slots := h.ScanObject(p)
	assert.Len(t, slots, 2)
}

func TestAllocateUnknownTypePanicsOnScan(t *testing.T) {
	h := NewHeap(16, DefaultPlanName, zerolog.Nop())
	assert.Panics(t, func() {
		h.ObjectSize(Ref(1))
	})
}

package gc

import "sort"

// markSweepPlan is the default plan: objects never move, a free list tracks
// reclaimed ranges, and a bump pointer serves the common case of an empty
// free list. It favors simplicity and a stable Ref for every live object,
// matching spec §4.2's statement that mark-sweep is the collector's
// default.
type markSweepPlan struct {
	top int // next unused word index (1-based addressing: word 0 is unused,
	// matching NilRef)

	// live is every currently-allocated object, in ascending address order.
	// It doubles as the sweeper's object table, since a plain word arena
	// gives no other way to find object boundaries.
	live []liveObject

	free []freeRange
}

type liveObject struct {
	ref Ref
}

type freeRange struct {
	start int // word index of the first word of the range (the would-be header)
	words int // total words in the range, including the header word
}

func newMarkSweepPlan() *markSweepPlan {
	return &markSweepPlan{}
}

func (p *markSweepPlan) Name() string { return DefaultPlanName }

func (p *markSweepPlan) wordsInUse() int {
	free := 0
	for _, fr := range p.free {
		free += fr.words
	}
	return p.top - free
}

func (p *markSweepPlan) init(h *Heap) {
	p.top = 1 // word 0 is reserved so Ref 0 (NilRef) is never valid
}

func (p *markSweepPlan) tryAllocate(h *Heap, typeID TypeID, bodyWords int) (Ref, bool) {
	total := 1 + bodyWords

	// First-fit scan of the free list; the free list is small in practice
	// (teaching-scale heaps and test programs), so linear scan is fine.
	for i, fr := range p.free {
		if fr.words < total {
			continue
		}
		headerIdx := fr.start
		remaining := fr.words - total
		if remaining == 0 {
			p.free = append(p.free[:i], p.free[i+1:]...)
		} else {
			p.free[i] = freeRange{start: fr.start + total, words: remaining}
		}
		return p.place(h, headerIdx, typeID, bodyWords), true
	}

	if p.top+total > h.Len() {
		return NilRef, false
	}
	headerIdx := p.top
	p.top += total
	return p.place(h, headerIdx, typeID, bodyWords), true
}

func (p *markSweepPlan) place(h *Heap, headerIdx int, typeID TypeID, bodyWords int) Ref {
	h.words[headerIdx] = packHeader(typeID, 0)
	ref := Ref(headerIdx + 1)
	p.live = append(p.live, liveObject{ref: ref})
	return ref
}

func (p *markSweepPlan) collect(h *Heap) {
	marked := make(map[Ref]bool, len(p.live))

	var mark func(ref Ref)
	mark = func(ref Ref) {
		if ref == NilRef || marked[ref] {
			return
		}
		marked[ref] = true
		for _, slot := range h.ScanObject(ref) {
			r := readSlotRef(h, ref, slot)
			mark(r)
		}
	}

	for _, root := range h.roots {
		root.EnumerateRoots(func(ref Ref) Ref {
			mark(ref)
			return ref // mark-sweep never relocates
		})
	}

	newFree := append([]freeRange(nil), p.free...)
	survivors := p.live[:0]
	for _, obj := range p.live {
		if marked[obj.ref] {
			survivors = append(survivors, obj)
			continue
		}
		size := h.ObjectSize(obj.ref)
		newFree = append(newFree, freeRange{start: int(obj.ref) - 1, words: size})
	}
	p.live = survivors

	p.free = coalesce(newFree)
}

// coalesce merges adjacent/overlapping free ranges so the free list doesn't
// grow without bound across many collections.
func coalesce(ranges []freeRange) []freeRange {
	if len(ranges) < 2 {
		return ranges
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })
	out := ranges[:1]
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if last.start+last.words == r.start {
			last.words += r.words
			continue
		}
		out = append(out, r)
	}
	return out
}

// readSlotRef reads the Ref currently stored in slot, which belongs to the
// object at owner (owner is only used to compute the absolute word index).
func readSlotRef(h *Heap, owner Ref, slot Slot) Ref {
	word := h.words[int(owner)+slot.Offset]
	if slot.Kind == SlotOrdinary {
		return Ref(word)
	}
	// SlotValue: the word is a NaN-boxed value.Value; only a pointer-tagged
	// value carries a traceable Ref.
	return refFromValueBits(word)
}

// writeSlotRef stores ref back into slot, preserving the value/ordinary
// representation.
func writeSlotRef(h *Heap, owner Ref, slot Slot, ref Ref) {
	idx := int(owner) + slot.Offset
	if slot.Kind == SlotOrdinary {
		h.words[idx] = uint64(ref)
		return
	}
	h.words[idx] = valueBitsFromRef(h.words[idx], ref)
}

package gc

// semispacePlan is the alternative plan spec §4.2 asks for: the arena is
// split into two equal halves, only one ("from-space") is ever bump-
// allocated into, and a collection copies every reachable object into the
// other half ("to-space") before swapping their roles. Objects move, so
// every Ref a collection keeps alive changes; RootProvider.EnumerateRoots
// and every Scan-reported Slot get rewritten with the post-copy Ref.
type semispacePlan struct {
	halfWords  int
	fromOffset int
	toOffset   int
	top        int // next unused word index within from-space, relative to fromOffset
}

func newSemispacePlan() *semispacePlan {
	return &semispacePlan{}
}

func (p *semispacePlan) Name() string { return AlternatePlanName }

func (p *semispacePlan) wordsInUse() int { return p.top }

func (p *semispacePlan) init(h *Heap) {
	p.halfWords = h.Len() / 2
	p.fromOffset = 0
	p.toOffset = p.halfWords
	p.top = 1 // reserve word 0 so Ref 0 stays NilRef
}

func (p *semispacePlan) tryAllocate(h *Heap, typeID TypeID, bodyWords int) (Ref, bool) {
	total := 1 + bodyWords
	if p.top+total > p.halfWords {
		return NilRef, false
	}
	headerIdx := p.fromOffset + p.top
	p.top += total
	h.words[headerIdx] = packHeader(typeID, 0)
	return Ref(headerIdx + 1), true
}

// copyState tracks the bump pointer into to-space during a collection and
// the forwarding table implicitly recorded via packForwarding headers left
// behind in from-space.
type copyState struct {
	toTop int // next unused word index within to-space, relative to toOffset
}

func (p *semispacePlan) collect(h *Heap) {
	cs := &copyState{toTop: 1}

	copyObject := func(ref Ref) Ref {
		headerIdx := int(ref) - 1
		header := h.words[headerIdx]
		if newRef, ok := isForwarded(header); ok {
			return newRef
		}

		size := h.ObjectSize(ref) // total words, header included
		newHeaderIdx := p.toOffset + cs.toTop
		copy(h.words[newHeaderIdx:newHeaderIdx+size], h.words[headerIdx:headerIdx+size])
		cs.toTop += size
		newRef := Ref(newHeaderIdx + 1)

		// Leave a forwarding marker in the old location; any other root or
		// slot that still points here will follow it via isForwarded.
		h.words[headerIdx] = packForwarding(newRef)
		return newRef
	}

	var toScan []Ref

	remap := func(ref Ref) Ref {
		if ref == NilRef {
			return NilRef
		}
		already := isAlreadyCopied(h, ref, p)
		newRef := copyObject(ref)
		if !already {
			toScan = append(toScan, newRef)
		}
		return newRef
	}

	for _, root := range h.roots {
		root.EnumerateRoots(func(ref Ref) Ref {
			return remap(ref)
		})
	}

	// Cheney-style scan: process to-space breadth-first, copying each
	// object's own referents before moving on, until nothing new is added.
	for i := 0; i < len(toScan); i++ {
		ref := toScan[i]
		for _, slot := range h.ScanObject(ref) {
			child := readSlotRef(h, ref, slot)
			if child == NilRef {
				continue
			}
			newChild := remap(child)
			writeSlotRef(h, ref, slot, newChild)
		}
		if info, ok := h.types[h.HeaderType(ref)]; ok && info.PostCopyFixup != nil {
			// oldRef isn't recoverable here (the forwarding header
			// overwrote it), so fixups that need the old ref must derive
			// whatever they need from the object's own new-location
			// contents; none of the registered types currently require
			// the old ref itself.
			info.PostCopyFixup(h, NilRef, ref)
		}
	}

	p.fromOffset, p.toOffset = p.toOffset, p.fromOffset
	p.top = cs.toTop
}

// isAlreadyCopied reports whether ref (a from-space object) has already
// been forwarded by this collection cycle, without mutating anything.
func isAlreadyCopied(h *Heap, ref Ref, p *semispacePlan) bool {
	headerIdx := int(ref) - 1
	_, ok := isForwarded(h.words[headerIdx])
	return ok
}

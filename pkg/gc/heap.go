// Package gc implements the tracing garbage collector core described in
// spec §4.2: a pluggable-plan collector (mark-sweep by default, semispace
// as an alternative) managing a manually-administered heap arena.
//
// Go already has its own tracing GC, so embedding a second one inside a Go
// process needs a heap region Go's collector does not look inside: a
// single `[]uint64` word arena, kept alive for the whole program by the
// Heap value itself. References into that arena (Ref) are word indices,
// not pointers, so they survive both a semispace copy (which rewrites
// array contents in place) and Go's own GC (which never needs to trace
// into the arena beyond treating it as one big opaque slice).
//
// Every heap object is preceded by a one-word (8 byte) header — the same
// 8-byte-header contract spec §4.2 describes for the original pointer-based
// design, just measured in words here instead of bytes. A Ref always
// refers to the first body word, one past the header.
package gc

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Ref is a reference to a heap object: the word-index of its first body
// word (one past its header word). NilRef (zero) is reserved and never
// allocated, so a zeroed Value payload can never be mistaken for a live
// reference.
type Ref uint32

// NilRef represents "no object".
const NilRef Ref = 0

// TypeID identifies the concrete heap object kind stored at a Ref's
// header. Package object assigns and registers these.
type TypeID uint16

// forwardingTypeID is never a real registered type; it marks a header as
// "this object has moved, see ForwardRef" during a semispace collection.
const forwardingTypeID TypeID = 0xFFFF

// SlotKind distinguishes the two kinds of outgoing reference slots spec
// §4.2 calls out: an ordinary slot holds a raw Ref, while a value slot
// holds a NaN-boxed value.Value word whose pointer (if any) must be
// recovered from the boxed representation.
type SlotKind uint8

const (
	SlotOrdinary SlotKind = iota
	SlotValue
)

// Slot names one outgoing reference field inside an object's body, as a
// word offset from the object's Ref. ScanFunc returns a Slot per outgoing
// reference so the collector can read the current Ref (recovering it from
// a boxed Value if Kind is SlotValue) and, if the object moves, write the
// updated Ref back in the same representation.
type Slot struct {
	Offset int
	Kind   SlotKind
}

// SizeFunc computes the number of body words (excluding the header) that
// the object at ref occupies, dispatching on typeID and reading whatever
// type-specific length fields the object itself carries (field count,
// element count, local/stack capacity, ...).
type SizeFunc func(h *Heap, ref Ref) int

// ScanFunc returns every outgoing reference slot of the object at ref.
type ScanFunc func(h *Heap, ref Ref) []Slot

// PostCopyFixupFunc is invoked after a semispace collection copies an
// object to newRef, so type-specific bookkeeping that isn't expressed as
// a plain Slot (e.g. a cached word count) can be refreshed. The semispace
// plan always passes NilRef as oldRef: the forwarding header has
// overwritten the old location by then. Most types need no fixup.
type PostCopyFixupFunc func(h *Heap, oldRef, newRef Ref)

// TypeInfo is what package object registers for every heap type it
// defines.
type TypeInfo struct {
	Name          string
	Size          SizeFunc
	Scan          ScanFunc
	PostCopyFixup PostCopyFixupFunc // optional
}

// RootProvider is implemented by anything the collector must treat as a
// source of roots: the mutator's current frame chain, its value stack,
// the global environment, and the core-class table (spec §4.2). visit is
// called once per root reference with its current value and must return
// the value to keep (unchanged under mark-sweep; the post-copy Ref under
// semispace) — the provider is responsible for writing that back into its
// own storage.
type RootProvider interface {
	EnumerateRoots(visit func(Ref) Ref)
}

// Plan implements one GC algorithm over a Heap's word arena.
type Plan interface {
	Name() string
	init(h *Heap)
	// tryAllocate attempts to reserve bodyWords+1 words (header + body)
	// without collecting. ok is false if the plan is out of space and a
	// Collect is needed before retrying.
	tryAllocate(h *Heap, typeID TypeID, bodyWords int) (ref Ref, ok bool)
	collect(h *Heap)
}

// Stats reports collector activity, surfaced to the CLI's -verbose mode.
type Stats struct {
	Collections  int
	WordsInUse   int
	WordsCapacity int
}

// Heap owns the word arena and the active plan.
type Heap struct {
	words []uint64
	plan  Plan
	types map[TypeID]TypeInfo
	roots []RootProvider

	stopTheWorld atomic.Bool
	collections  int

	log zerolog.Logger
}

// DefaultPlanName and AlternatePlanName identify the two plans spec §4.2
// requires: mark-sweep is the default, semispace the pluggable
// alternative.
const (
	DefaultPlanName   = "marksweep"
	AlternatePlanName = "semispace"
)

// NewHeap allocates a word arena of the given capacity (in 8-byte words)
// and binds the named plan to it. An unrecognized plan name falls back to
// mark-sweep, matching spec §4.2's "mark-sweep is the default".
func NewHeap(capacityWords int, planName string, log zerolog.Logger) *Heap {
	h := &Heap{
		words: make([]uint64, capacityWords),
		types: make(map[TypeID]TypeInfo),
		log:   log,
	}
	switch planName {
	case AlternatePlanName:
		h.plan = newSemispacePlan()
	default:
		h.plan = newMarkSweepPlan()
	}
	h.plan.init(h)
	return h
}

// RegisterType binds size/scan/fixup callbacks for a heap object kind.
// Called once per type at package-object init time.
func (h *Heap) RegisterType(id TypeID, info TypeInfo) {
	if id == forwardingTypeID {
		panic("gc: type id 0xFFFF is reserved for forwarding pointers")
	}
	h.types[id] = info
}

// RegisterRoot adds a root provider the collector must scan on every
// collection. Called once per mutator-visible root owner (Universe, each
// live VM's frame/stack state).
func (h *Heap) RegisterRoot(p RootProvider) {
	h.roots = append(h.roots, p)
}

// UnregisterRoot removes a previously-registered root provider, e.g. when
// a block's transient helper VM finishes executing.
func (h *Heap) UnregisterRoot(p RootProvider) {
	for i, r := range h.roots {
		if r == p {
			h.roots = append(h.roots[:i], h.roots[i+1:]...)
			return
		}
	}
}

// typeInfo looks up the registered TypeInfo for ref's header type, or
// panics: an unregistered type id reaching here means heap corruption, a
// fatal invariant violation per spec §7.
func (h *Heap) typeInfo(ref Ref) TypeInfo {
	id := h.HeaderType(ref)
	info, ok := h.types[id]
	if !ok {
		panic(fmt.Sprintf("gc: unregistered type id %d at ref %d", id, ref))
	}
	return info
}

// HeaderType returns the type id stored in ref's header.
func (h *Heap) HeaderType(ref Ref) TypeID {
	header := h.words[ref-1]
	return TypeID(header >> 48)
}

func packHeader(t TypeID, flags uint16) uint64 {
	return uint64(t)<<48 | uint64(flags)
}

func headerFlags(header uint64) uint16 { return uint16(header) }

func packForwarding(newRef Ref) uint64 {
	return uint64(forwardingTypeID)<<48 | uint64(newRef)<<16
}

func isForwarded(header uint64) (Ref, bool) {
	if TypeID(header>>48) != forwardingTypeID {
		return NilRef, false
	}
	return Ref((header >> 16) & 0xFFFFFFFF), true
}

// ObjectSize returns the total word count (header + body) of the object
// at ref, per spec §4.2's get_current_size contract.
func (h *Heap) ObjectSize(ref Ref) int {
	return 1 + h.typeInfo(ref).Size(h, ref)
}

// ScanObject visits every outgoing reference slot of the object at ref,
// per spec §4.2's scan_object contract.
func (h *Heap) ScanObject(ref Ref) []Slot {
	if scan := h.typeInfo(ref).Scan; scan != nil {
		return scan(h, ref)
	}
	return nil
}

// AllocWithPostInit reserves bodyWords words for a new object of typeID,
// writes the header, then calls init to fill the body before the object
// becomes observable to any other code — no allocation happens between
// reservation and init returning, so the object is never visible in a
// partially-initialized state (spec §4.3, §9).
func (h *Heap) AllocWithPostInit(typeID TypeID, bodyWords int, init func(ref Ref)) Ref {
	ref := h.allocate(typeID, bodyWords)
	init(ref)
	return ref
}

// allocate reserves bodyWords+1 words and writes the header, triggering a
// collection if the active plan is out of space. It panics (a fatal,
// structural error per spec §7) if the heap is exhausted even after a
// collection.
func (h *Heap) allocate(typeID TypeID, bodyWords int) Ref {
	h.pollSafepoint()
	ref, ok := h.plan.tryAllocate(h, typeID, bodyWords)
	if !ok {
		h.Collect()
		ref, ok = h.plan.tryAllocate(h, typeID, bodyWords)
		if !ok {
			panic("gc: heap exhausted")
		}
	}
	return ref
}

// pollSafepoint is the one place the mutator observes the world-stop
// flag (spec §5: "the mutator may be suspended only at an allocation
// call"). In this single-threaded embedding collection itself runs
// synchronously inside Collect, so observing the flag here is a no-op
// except as the documented safepoint; it exists so a future concurrent
// collector plan has a well-defined place to intervene.
func (h *Heap) pollSafepoint() {
	_ = h.stopTheWorld.Load()
}

// Collect runs a full stop-the-world collection with the active plan.
func (h *Heap) Collect() {
	h.stopTheWorld.Store(true)
	h.log.Debug().Str("plan", h.plan.Name()).Int("cycle", h.collections+1).Msg("gc: collection starting")
	h.plan.collect(h)
	h.collections++
	h.stopTheWorld.Store(false)
	h.log.Debug().Str("plan", h.plan.Name()).Msg("gc: collection finished")
}

// inUseReporter is implemented by plans that can cheaply report their
// current word usage; both shipped plans do.
type inUseReporter interface {
	wordsInUse() int
}

// Stats reports current utilization, surfaced by the CLI's -verbose mode
// and System>>#fullGC diagnostics.
func (h *Heap) Stats() Stats {
	s := Stats{
		Collections:   h.collections,
		WordsCapacity: len(h.words),
	}
	if r, ok := h.plan.(inUseReporter); ok {
		s.WordsInUse = r.wordsInUse()
	}
	return s
}

// --- raw word access, used by package object's accessor types ---

// Word reads the word at ref+offset (offset 0 is the first body word).
func (h *Heap) Word(ref Ref, offset int) uint64 {
	return h.words[int(ref)+offset]
}

// SetWord writes the word at ref+offset.
func (h *Heap) SetWord(ref Ref, offset int, w uint64) {
	h.words[int(ref)+offset] = w
}

// Len returns the heap's total capacity in words, for diagnostics.
func (h *Heap) Len() int { return len(h.words) }

// Package interner implements the string interner described in spec §3: a
// bijection between small unsigned integer ids and live byte strings
// within a Universe, used for symbol equality by id compare and for
// compact method-signature keys.
package interner

import (
	"sync"

	"github.com/dolthub/swiss"
)

// Id is an interned string id. Per spec §9's open question, this
// implementation chooses 32 bits (the id width is otherwise unconstrained
// by spec §3 beyond "16 or 32 bits"); Symbol values in package value box
// this same width.
type Id uint32

// Interner maps byte strings to Ids and back. The forward map uses a
// SwissTable (github.com/dolthub/swiss, the same structure
// mna-nenuphar uses for its own symbol tables) since interning is a
// lookup-dominated workload with a large, append-mostly key set; the
// reverse map is a plain slice indexed by Id, since ids are assigned
// densely starting at zero.
type Interner struct {
	mu      sync.RWMutex
	forward *swiss.Map[string, Id]
	reverse []string
}

// New creates an empty interner.
func New() *Interner {
	return &Interner{
		forward: swiss.NewMap[string, Id](64),
		reverse: make([]string, 0, 64),
	}
}

// Intern returns the Id for s, assigning a new one if s hasn't been seen
// before. The string is copied into the interner's own storage so the
// caller's backing array can be reused or discarded.
func (in *Interner) Intern(s string) Id {
	in.mu.RLock()
	if id, ok := in.forward.Get(s); ok {
		in.mu.RUnlock()
		return id
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()
	// Re-check: another goroutine might have interned s while we waited
	// for the write lock. The core is single-mutator (spec §5), but the
	// interner is also consulted by tooling (the disassembler) that may
	// run concurrently with a paused mutator, so it stays lock-safe.
	if id, ok := in.forward.Get(s); ok {
		return id
	}
	owned := string([]byte(s)) // force a private copy, not a slice alias
	id := Id(len(in.reverse))
	in.reverse = append(in.reverse, owned)
	in.forward.Put(owned, id)
	return id
}

// Lookup returns the string for id, or ("", false) if id was never
// assigned by this interner.
func (in *Interner) Lookup(id Id) (string, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(in.reverse) {
		return "", false
	}
	return in.reverse[id], true
}

// MustLookup is Lookup without the ok flag, for call sites that already
// know id was produced by this interner (e.g. decoding a symbol Value).
// It panics on an invalid id, which indicates heap/bytecode corruption
// (spec §7's "invariant violation" fatal-error class).
func (in *Interner) MustLookup(id Id) string {
	s, ok := in.Lookup(id)
	if !ok {
		panic("interner: invalid id")
	}
	return s
}

// Len reports how many distinct strings have been interned.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.reverse)
}

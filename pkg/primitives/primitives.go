// Package primitives implements the Go-native primitive methods spec §4.7
// calls out as the dispatch contract every MethodPrimitive ultimately
// bottoms out in: arithmetic, comparison, array/string/block access, and
// the handful of System-level operations (printing, global lookup) that
// have no meaningful expression as SOM-level bytecode or AST nodes.
//
// Neither backend's VM type is imported here — that would be circular,
// since pkg/universe (which builds this package's Registry at bootstrap)
// is imported by both pkg/vmbc and pkg/vmast. Instead, a primitive Fn
// receives a Context: the minimal slice of VM behavior (heap access,
// symbol resolution, invoking a block, sending an ordinary message) any
// primitive might need, implemented identically by both backends.
package primitives

import (
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/interner"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

// Context is the slice of a running VM a primitive is allowed to touch.
// Both pkg/vmbc and pkg/vmast implement it over their own frame/dispatch
// machinery.
type Context interface {
	Heap() *gc.Heap
	Interner() *interner.Interner

	// InvokeBlock evaluates block with args, following the same
	// non-local-return propagation rules as an ordinary block activation
	// (spec §4.4). Used by Block>>value/value:/value:value:... and by
	// collection-iteration primitives (do:, collect:, ...).
	InvokeBlock(block object.Block, args []value.Value) (value.Value, error)

	// Send dispatches an ordinary message send from within a primitive,
	// e.g. #printString falling back to a user override, or a collection
	// primitive comparing elements with #=.
	Send(receiver value.Value, selector string, args []value.Value) (value.Value, error)

	// NewString lets a primitive materialize a result without
	// reaching into package object directly for every call site.
	NewString(s string) value.Value

	// Print writes s to the VM's configured output (spec §6's transcript),
	// backing System>>printString:/printNewline and the teacher's
	// println/print primitive cases.
	Print(s string)

	// Global resolves a name against the running Universe's global
	// namespace (loaded classes plus `true`/`false`/`nil`/`system`),
	// spec §4.7's global-lookup primitive.
	Global(name string) (value.Value, bool)

	// SetGlobal assigns a binding in the same namespace Global reads,
	// backing System>>global:put:.
	SetGlobal(name string, v value.Value)

	// Exit terminates the running program with the given status code
	// (System>>exit:, spec §4.7).
	Exit(code int)
}

// Fn is one primitive's implementation: given the receiver and its
// message arguments (not counting the receiver), produce a result or an
// error (surfaced as the SOM-level error: signal, spec §4.7).
type Fn func(ctx Context, self value.Value, args []value.Value) (value.Value, error)

// Registry assigns each registered Fn a stable numeric id — the value
// object.MethodSpec.Code carries for a MethodPrimitive, so dispatch never
// does a name lookup at send time, matching every other send-site cost in
// this VM.
type Registry struct {
	fns   []Fn
	names []string
	byName map[string]uint64
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]uint64)}
}

// Register adds fn under name (conventionally "ClassName>>selector", used
// only for diagnostics and duplicate detection) and returns its id.
func (r *Registry) Register(name string, fn Fn) uint64 {
	if _, exists := r.byName[name]; exists {
		panic("primitives: duplicate registration for " + name)
	}
	id := uint64(len(r.fns))
	r.fns = append(r.fns, fn)
	r.names = append(r.names, name)
	r.byName[name] = id
	return id
}

// Lookup returns the id previously returned for name by Register.
func (r *Registry) Lookup(name string) (uint64, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Call invokes the primitive registered under id.
func (r *Registry) Call(id uint64, ctx Context, self value.Value, args []value.Value) (value.Value, error) {
	return r.fns[id](ctx, self, args)
}

// Name returns id's registration name, for stack traces and
// doesNotUnderstand: diagnostics.
func (r *Registry) Name(id uint64) string {
	if int(id) >= len(r.names) {
		return "<unknown primitive>"
	}
	return r.names[id]
}

// Package vmast is the AST interpreter (spec §4.5): a tree-walking
// evaluator over method bodies compiled to a Node tree instead of
// bytecode, sharing pkg/object's Frame/Block/Class model and the
// NonLocalReturn/escapedBlock: protocol with pkg/vmbc. It owns its own
// lowering from pkg/ast — see compile.go's doc comment for why it never
// shares a compiler type with pkg/compiler.
package vmast

import "github.com/kristofer/smog/pkg/value"

// Node is implemented by every compiled body node. It carries no
// behavior of its own — VM.Eval type-switches on the concrete type, the
// same "fixed tag, shared dispatch" shape pkg/bytecode.Instruction uses
// for the other backend.
type Node interface {
	node()
}

// Code is one compiled method or block body: a straight-line sequence of
// statement nodes (the last of which, if not an explicit Return, becomes
// the method's implicit `^self`/block's implicit last-value result).
type Code struct {
	Body       []Node
	NumArgs    int // inclusive of the implicit receiver/enclosing-Block slot 0
	NumLocals  int
	IsBlock    bool // false for a method body, whose implicit return is ^self, not the last value
}

// CodeTable holds every method/block body compiled for the AST backend,
// in ordinary Go memory alongside pkg/compiler.CodeTable (pkg/object's
// package doc: compiled bodies are permanent program data, addressed
// from the arena only by a small integer id).
type CodeTable struct {
	entries []*Code
}

func NewCodeTable() *CodeTable { return &CodeTable{} }

func (t *CodeTable) add(c *Code) uint64 {
	t.entries = append(t.entries, c)
	return uint64(len(t.entries) - 1)
}

func (t *CodeTable) Get(id uint64) *Code { return t.entries[id] }

func (t *CodeTable) Len() int { return len(t.entries) }

// Literal is a compile-time constant value, materialized once at compile
// time (object.NewHeapString et al. for non-scalar literals) exactly as
// pkg/compiler's literal pool does.
type LiteralNode struct{ Value value.Value }

func (*LiteralNode) node() {}

// LocalRef/ArgRef/FieldRef/GlobalRef read a variable; the matching *Set
// node assigns it. Up is the lexical block-nesting distance to the scope
// declaring the variable (0 for the enclosing frame itself), mirroring
// pkg/bytecode's PushLocal(up, i)/PushArg(up, i) family. Fields have no
// Up (every field read/write goes through the method's own self).
type LocalRef struct {
	Up, Index int
}

func (*LocalRef) node() {}

type LocalSet struct {
	Up, Index int
	Value     Node
}

func (*LocalSet) node() {}

type ArgRef struct {
	Up, Index int
}

func (*ArgRef) node() {}

type ArgSet struct {
	Up, Index int
	Value     Node
}

func (*ArgSet) node() {}

type FieldRef struct{ Index int }

func (*FieldRef) node() {}

type FieldSet struct {
	Index int
	Value Node
}

func (*FieldSet) node() {}

type GlobalRef struct{ Name string }

func (*GlobalRef) node() {}

type SelfRef struct{}

func (*SelfRef) node() {}

// Sequence runs each node in order for its side effects, yielding the
// last one's value (a method/block body's top level, and any inlined
// block body with more than one statement).
type Sequence struct{ Nodes []Node }

func (*Sequence) node() {}

// MessageSend is an ordinary dynamic dispatch; SuperSend starts lookup
// one class above the enclosing method's holder.
type MessageSend struct {
	Receiver Node
	Selector string
	Args     []Node
}

func (*MessageSend) node() {}

type SuperSend struct {
	Selector string
	Args     []Node
}

func (*SuperSend) node() {}

// BlockNode constructs a Block object capturing the current frame;
// CodeID indexes this package's own CodeTable.
type BlockNode struct {
	CodeID uint32
}

func (*BlockNode) node() {}

// ReturnLocal is `^expr` at method-body level: an ordinary return from
// the frame currently executing it.
type ReturnLocal struct{ Value Node }

func (*ReturnLocal) node() {}

// ReturnNonLocal is `^expr` inside a (non-inlined) block: Up is the
// lexical distance to the enclosing method-root scope, exactly
// pkg/bytecode's ReturnNonLocal(up) operand.
type ReturnNonLocal struct {
	Up    int
	Value Node
}

func (*ReturnNonLocal) node() {}

// Inlined control-flow nodes (spec §4.5): the compiler emits these in
// place of an ordinary MessageSend only when every block argument is a
// syntactic literal, so its body can be evaluated directly against the
// enclosing frame without allocating a Block or a child Frame.
type IfInlined struct {
	Cond Node
	Then Node // nil means "no else taken, yields nil"
	Want bool // true for ifTrue:, false for ifFalse:
}

func (*IfInlined) node() {}

type IfTrueIfFalseInlined struct {
	Cond       Node
	Then, Else Node
}

func (*IfTrueIfFalseInlined) node() {}

type IfNilInlined struct {
	Subject Node
	Branch  Node
	Want    bool // true for ifNil:, false for ifNotNil:
}

func (*IfNilInlined) node() {}

type IfNilIfNotNilInlined struct {
	Subject          Node
	NilBranch        Node
	NotNilBranch     Node
}

func (*IfNilIfNotNilInlined) node() {}

type WhileInlined struct {
	Cond, Body Node
	Want       bool // true for whileTrue:, false for whileFalse:
}

func (*WhileInlined) node() {}

type AndInlined struct{ Left, Right Node }

func (*AndInlined) node() {}

type OrInlined struct{ Left, Right Node }

func (*OrInlined) node() {}

// ToDoInlined is `from to: to do: [:i | body]` (optionally `to:by:do:`
// when By != nil) or `from downTo: to do: [:i | body]` (Down true),
// inlined directly against the enclosing frame: the counter lives in a
// dedicated local slot (CounterLocal) rather than a real Block parameter.
type ToDoInlined struct {
	From, To, By Node // By nil means step 1 (or -1 when Down)
	Down         bool
	CounterLocal int
	Body         Node
}

func (*ToDoInlined) node() {}

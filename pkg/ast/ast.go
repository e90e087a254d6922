// Package ast defines the concrete-syntax AST that package parser
// produces and package compiler consumes. It is a parser-side
// collaborator (spec §1 scopes the grammar itself as an external
// concern), kept only as complete as driving the engine end-to-end and
// spec §8's worked scenarios requires: SOM-family class/method/block
// syntax, unary/binary/keyword message sends, assignment, and `^` return.
package ast

// Node is implemented by every AST node.
type Node interface {
	TokenLiteral() string
}

// Expression is a node that produces a value.
type Expression interface {
	Node
	expressionNode()
}

// Statement is a node that appears in a method or block body. In this
// grammar every statement is itself an expression (SOM has no separate
// statement forms besides `^expr.`), so Statement is just Expression
// under a different name for readability at call sites that only ever
// see bodies, never receivers.
type Statement = Expression

// ClassDef is a parsed class definition: `Name = Super ( |fields| ...
// methods ... )`.
type ClassDef struct {
	Name            string
	Superclass      string // "" means Object
	InstanceFields  []string
	ClassFields     []string
	InstanceMethods []*MethodDef
	ClassMethods    []*MethodDef
}

func (c *ClassDef) TokenLiteral() string { return c.Name }

// MethodDef is one parsed method: `selector = ( |locals| statements )` or
// `selector = primitive`.
type MethodDef struct {
	Selector    string
	Params      []string
	Locals      []string
	Body        []Statement
	IsPrimitive bool
}

func (m *MethodDef) TokenLiteral() string { return m.Selector }

// Literal is a compile-time constant: integer, double, string, symbol,
// character, boolean, or nil.
type Literal struct {
	Kind  LiteralKind
	Int   int64
	Float float64
	Str   string // String/Symbol/Char text
}

type LiteralKind int

const (
	LitInteger LiteralKind = iota
	LitDouble
	LitString
	LitSymbol
	LitChar
	LitBoolean
	LitNil
)

func (l *Literal) TokenLiteral() string { return l.Str }
func (l *Literal) expressionNode()      {}

// Identifier names a local, argument, field, global, or pseudo-variable
// (self, super, nil, true, false — the parser folds the constant
// pseudo-variables into Literal, leaving self/super here since their
// meaning depends on the enclosing method/block, not on syntax alone).
type Identifier struct {
	Name string
}

func (i *Identifier) TokenLiteral() string { return i.Name }
func (i *Identifier) expressionNode()      {}

// Assignment is `name := expr`.
type Assignment struct {
	Name  string
	Value Expression
}

func (a *Assignment) TokenLiteral() string { return a.Name }
func (a *Assignment) expressionNode()      {}

// MessageSend covers unary (no args), binary (one arg, operator
// selector), and keyword (selector ends in ':', possibly more than one
// keyword part joined, e.g. "ifTrue:ifFalse:") sends uniformly: arity
// and shape are both implied by Selector and len(Args), exactly the way
// the runtime itself will later distinguish them (spec §4.4's per-arity
// Send bytecodes, and the AST interpreter's generic send node).
type MessageSend struct {
	Receiver Expression
	Selector string
	Args     []Expression
}

func (m *MessageSend) TokenLiteral() string { return m.Selector }
func (m *MessageSend) expressionNode()      {}

// SuperSend is a message sent to `super`: same shape as MessageSend but
// resolved starting one class above the enclosing method's holder,
// bypassing dynamic dispatch on the receiver's own class.
type SuperSend struct {
	Selector string
	Args     []Expression
}

func (s *SuperSend) TokenLiteral() string { return s.Selector }
func (s *SuperSend) expressionNode()      {}

// BlockLiteral is `[:p1 :p2 | |locals| statements]`.
type BlockLiteral struct {
	Params []string
	Locals []string
	Body   []Statement
}

func (b *BlockLiteral) TokenLiteral() string { return "[...]" }
func (b *BlockLiteral) expressionNode()      {}

// Return is `^expr`: a non-local return from the enclosing method if
// this expression sits inside a block body, or an ordinary method return
// if it sits directly in a method body (the compiler, not the parser,
// distinguishes the two — both parse identically).
type Return struct {
	Value Expression
}

func (r *Return) TokenLiteral() string { return "^" }
func (r *Return) expressionNode()      {}

// ArrayLiteral is `#(1 2 3)` or `#(1 #foo 'bar')`: a literal array of
// nested literals (SOM array literals may not contain arbitrary
// expressions, only other literals and nested array literals).
type ArrayLiteral struct {
	Elements []Expression // each is a *Literal or nested *ArrayLiteral
}

func (a *ArrayLiteral) TokenLiteral() string { return "#(...)" }
func (a *ArrayLiteral) expressionNode()      {}

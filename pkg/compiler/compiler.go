// Package compiler lowers a parsed method body (package ast) to the
// bytecode pkg/vmbc executes (package bytecode), the bytecode backend's
// half of spec.md §4.6's method compiler/specializer. pkg/vmast lowers the
// same ast.MethodDef to its own node tree independently, the way
// som-interpreter-bc and som-interpreter-ast each own a separate compiler
// over a shared AST crate in the reference implementation — the two
// backends never share a single "compiler" type because they target
// different execution strategies, only the parser-side AST upstream of
// both.
package compiler

import (
	"fmt"
	"math"
	"math/big"

	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/interner"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

// CodeTable holds every method/block body compiled for the bytecode
// backend. It lives in ordinary Go memory, never in the GC arena
// (pkg/object's package doc: compiled bodies are permanent program data,
// addressed from the arena only by the small integer id this table
// hands back).
type CodeTable struct {
	entries []*bytecode.Bytecode
}

// NewCodeTable creates an empty table.
func NewCodeTable() *CodeTable { return &CodeTable{} }

func (t *CodeTable) add(bc *bytecode.Bytecode) uint64 {
	t.entries = append(t.entries, bc)
	return uint64(len(t.entries) - 1)
}

// Get returns the Bytecode previously registered at id.
func (t *CodeTable) Get(id uint64) *bytecode.Bytecode { return t.entries[id] }

// Len reports how many bodies have been compiled so far.
func (t *CodeTable) Len() int { return len(t.entries) }

// Compiler lowers ast.MethodDef bodies to bytecode.Bytecode, interning
// selectors/globals and materializing literal values and arrays directly
// on the heap as it goes (a literal's value never changes after
// compilation, so there is no reason to rebuild it on every PushConstant).
type Compiler struct {
	Code     *CodeTable
	Heap     *gc.Heap
	Interner *interner.Interner
}

// New creates a Compiler writing into its own fresh CodeTable.
func New(heap *gc.Heap, in *interner.Interner) *Compiler {
	return &Compiler{Code: NewCodeTable(), Heap: heap, Interner: in}
}

// scope tracks one lexical level's argument and local names, chained to
// its lexically (not dynamically) enclosing scope — a block's parent is
// the scope it was written inside, never its caller. find walks outward
// counting levels, giving exactly the (up, index) pair spec §4.4's
// PushLocal/PushArg family needs.
type scope struct {
	args   []string
	locals []string
	parent *scope
	// isMethodRoot marks the scope of a method body itself (as opposed
	// to a block nested inside it), so Return compilation knows when a
	// non-local return is actually local.
	isMethodRoot bool
}

type varKind int

const (
	varNone varKind = iota
	varArg
	varLocal
)

func (s *scope) find(name string) (kind varKind, up, index int) {
	up = 0
	for cur := s; cur != nil; cur, up = cur.parent, up+1 {
		for i, a := range cur.args {
			if a == name {
				return varArg, up, i
			}
		}
		for i, l := range cur.locals {
			if l == name {
				return varLocal, up, i
			}
		}
	}
	return varNone, 0, 0
}

// levelsToMethod counts how many block levels separate s from the
// nearest enclosing method-root scope, i.e. the up-count a non-local
// return from here needs to reach its home method frame.
func (s *scope) levelsToMethod() int {
	up := 0
	for cur := s; cur != nil; cur = cur.parent {
		if cur.isMethodRoot {
			return up
		}
		up++
	}
	panic("compiler: scope chain has no method root")
}

// fieldTable resolves a field name to its storage index; built by the
// caller from a class's own plus inherited instance fields, in the same
// order object.Class lays them out.
type fieldTable struct{ names []string }

func (f fieldTable) index(name string) (int, bool) {
	for i, n := range f.names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// emitter accumulates one body's instructions and literal pool.
type emitter struct {
	instrs []bytecode.Instruction
	lits   []bytecode.Literal
}

func (e *emitter) emit(op bytecode.Opcode, a, b int32) int {
	e.instrs = append(e.instrs, bytecode.Instruction{Op: op, A: a, B: b})
	return len(e.instrs) - 1
}

func (e *emitter) here() int { return len(e.instrs) }

func (e *emitter) patchJump(at int, target int) {
	e.instrs[at].A = int32(target - at - 1)
}

func (e *emitter) addLiteralValue(v value.Value) int32 {
	e.lits = append(e.lits, bytecode.Literal{Kind: bytecode.LitValue, Value: v.Bits()})
	return int32(len(e.lits) - 1)
}

func (e *emitter) addSelector(id interner.Id) int32 {
	e.lits = append(e.lits, bytecode.Literal{Kind: bytecode.LitSelector, Symbol: uint32(id)})
	return int32(len(e.lits) - 1)
}

func (e *emitter) addGlobal(id interner.Id) int32 {
	e.lits = append(e.lits, bytecode.Literal{Kind: bytecode.LitGlobal, Symbol: uint32(id)})
	return int32(len(e.lits) - 1)
}

func (e *emitter) addBlock(codeID uint64) int32 {
	e.lits = append(e.lits, bytecode.Literal{Kind: bytecode.LitBlock, Block: codeID})
	return int32(len(e.lits) - 1)
}

// pushConstant emits the cheapest opcode that pushes literal index i.
func (e *emitter) pushConstant(i int32) {
	switch i {
	case 0:
		e.emit(bytecode.OpPushConstant0, 0, 0)
	case 1:
		e.emit(bytecode.OpPushConstant1, 0, 0)
	case 2:
		e.emit(bytecode.OpPushConstant2, 0, 0)
	default:
		e.emit(bytecode.OpPushConstant, i, 0)
	}
}

// CompileClass lowers def to an object.Class with every instance and
// class method compiled and wired into its method tables. superclass is
// nil for Object itself; superFields/superClassFields are the
// superclass's own full (inherited + own) instance/class field name
// lists, since object.Class only stores a field *count* on the heap —
// the names themselves are compile-time bookkeeping the caller (building
// classes in superclass-before-subclass order, e.g. pkg/classloader or
// pkg/universe's bootstrap) must thread through.
//
// Class-side (class method) bodies are compiled against superClassFields
// + def.ClassFields as their field table; object.Class's method tables
// cover both instance and class selectors directly (see class.go), so no
// separate metaclass object is needed purely for method dispatch. Class
// instance variables that are actually read or written at runtime are
// universe/bootstrap's concern, not this package's.
func (c *Compiler) CompileClass(superclass *object.Class, superFields, superClassFields []string, def *ast.ClassDef) (object.Class, error) {
	fields := append(append([]string{}, superFields...), def.InstanceFields...)
	classFields := append(append([]string{}, superClassFields...), def.ClassFields...)

	instanceSelectors := make([]uint32, len(def.InstanceMethods))
	for i, m := range def.InstanceMethods {
		instanceSelectors[i] = uint32(c.Interner.Intern(m.Selector))
	}
	classSelectors := make([]uint32, len(def.ClassMethods))
	for i, m := range def.ClassMethods {
		classSelectors[i] = uint32(c.Interner.Intern(m.Selector))
	}

	superRef := gc.NilRef
	if superclass != nil {
		superRef = superclass.Ref
	}
	nameID := uint32(c.Interner.Intern(def.Name))
	cls := object.NewClass(c.Heap, nameID, superRef, len(fields), instanceSelectors, classSelectors)

	for i, m := range def.InstanceMethods {
		spec, err := c.CompileMethod(fields, m)
		if err != nil {
			return object.Class{}, fmt.Errorf("compiler: class %q: %w", def.Name, err)
		}
		spec.Holder = cls.Ref
		spec.SelectorID = instanceSelectors[i]
		method := object.NewMethod(c.Heap, spec)
		cls.SetInstanceMethod(instanceSelectors[i], method.Ref)
	}
	for i, m := range def.ClassMethods {
		spec, err := c.CompileMethod(classFields, m)
		if err != nil {
			return object.Class{}, fmt.Errorf("compiler: class %q class-side: %w", def.Name, err)
		}
		spec.Holder = cls.Ref
		spec.SelectorID = classSelectors[i]
		method := object.NewMethod(c.Heap, spec)
		cls.SetClassMethod(classSelectors[i], method.Ref)
	}
	return cls, nil
}

// CompileMethod lowers def to a MethodSpec. fields is the receiver
// class's full (inherited + own) instance field list in storage-index
// order. Identifiers that are not fields, arguments or locals compile to
// OpPushGlobal whether or not a global of that name exists yet, since an
// unbound global is a runtime doesNotUnderstand-style failure (spec
// §4.7), not a compile error.
//
// Primitive methods (def.IsPrimitive) are not compiled here: the caller
// (pkg/universe, building the bootstrap image) looks the selector up in
// pkg/primitives and builds a MethodPrimitive spec directly, since
// package compiler has no business depending on the primitive registry.
func (c *Compiler) CompileMethod(fields []string, def *ast.MethodDef) (object.MethodSpec, error) {
	if def.IsPrimitive {
		return object.MethodSpec{Kind: object.MethodPrimitive, ArgCount: len(def.Params)}, nil
	}

	ft := fieldTable{names: fields}
	if spec, ok := c.detectTrivial(ft, def); ok {
		return spec, nil
	}

	root := &scope{args: append([]string{"self"}, def.Params...), locals: def.Locals, isMethodRoot: true}
	e := &emitter{}
	if err := c.compileBody(e, ft, root, def.Body, false); err != nil {
		return object.MethodSpec{}, fmt.Errorf("compiler: method %q: %w", def.Selector, err)
	}

	codeID := c.Code.add(&bytecode.Bytecode{
		Instructions: e.instrs,
		Literals:     e.lits,
		NumArgs:      len(def.Params) + 1,
		NumLocals:    len(def.Locals),
	})
	return object.MethodSpec{
		Kind:       object.MethodDefined,
		ArgCount:   len(def.Params),
		LocalCount: len(def.Locals),
		Code:       codeID,
	}, nil
}

// detectTrivial recognizes the frameless method shapes spec §4.6 names:
// a body that always returns a fixed literal, always returns the current
// value of a fixed global, always returns one of self's own fields
// unchanged, or always assigns one field from its single argument and
// returns self. Each dispatches without allocating a Frame at all
// (object.Method.IsFrameless).
func (c *Compiler) detectTrivial(ft fieldTable, def *ast.MethodDef) (object.MethodSpec, bool) {
	body := def.Body
	argc := len(def.Params)

	if argc == 0 && len(body) == 1 {
		if ret, ok := body[0].(*ast.Return); ok {
			if lit, ok := ret.Value.(*ast.Literal); ok {
				v, err := c.literalValue(lit)
				if err == nil {
					return object.MethodSpec{Kind: object.MethodTrivialLiteral, Literal: v.Bits()}, true
				}
			}
			if id, ok := ret.Value.(*ast.Identifier); ok {
				if fieldIdx, isField := ft.index(id.Name); isField {
					return object.MethodSpec{Kind: object.MethodTrivialGetter, Code: uint64(fieldIdx)}, true
				}
				if id.Name != "self" && id.Name != "super" && len(def.Locals) == 0 {
					nameID := c.Interner.Intern(id.Name)
					return object.MethodSpec{Kind: object.MethodTrivialGlobal, Code: uint64(nameID)}, true
				}
			}
		}
	}

	if argc == 1 {
		param := def.Params[0]
		assignsField := func(stmt ast.Statement) (int, bool) {
			asg, ok := stmt.(*ast.Assignment)
			if !ok {
				return 0, false
			}
			id, ok := asg.Value.(*ast.Identifier)
			if !ok || id.Name != param {
				return 0, false
			}
			return ft.index(asg.Name)
		}
		if len(body) == 1 {
			if idx, ok := assignsField(body[0]); ok {
				return object.MethodSpec{Kind: object.MethodTrivialSetter, ArgCount: 1, Code: uint64(idx)}, true
			}
		}
		if len(body) == 2 {
			if idx, ok := assignsField(body[0]); ok {
				if ret, ok := body[1].(*ast.Return); ok {
					if id, ok := ret.Value.(*ast.Identifier); ok && id.Name == "self" {
						return object.MethodSpec{Kind: object.MethodTrivialSetter, ArgCount: 1, Code: uint64(idx)}, true
					}
				}
			}
		}
	}

	return object.MethodSpec{}, false
}

// compileBlockLiteral lowers a non-inlined block literal to a CodeTable
// entry and returns its id, for OpPushBlock. outer is the scope the block
// literal is lexically written inside.
func (c *Compiler) compileBlockLiteral(ft fieldTable, outer *scope, lit *ast.BlockLiteral) (uint64, error) {
	s := &scope{args: lit.Params, locals: lit.Locals, parent: outer}
	e := &emitter{}
	if err := c.compileBody(e, ft, s, lit.Body, true); err != nil {
		return 0, err
	}
	return c.Code.add(&bytecode.Bytecode{
		Instructions: e.instrs,
		Literals:     e.lits,
		NumArgs:      len(lit.Params) + 1,
		NumLocals:    len(lit.Locals),
	}), nil
}

// compileBody compiles a statement sequence, emitting a Pop between
// statements (each statement but the last is evaluated for effect only)
// and a trailing return. isBlock controls whether a body that falls off
// the end without an explicit ^ returns its last expression's value
// (block semantics) or self (method semantics).
func (c *Compiler) compileBody(e *emitter, ft fieldTable, s *scope, body []ast.Statement, isBlock bool) error {
	if len(body) == 0 {
		if isBlock {
			e.emit(bytecode.OpPushNil, 0, 0)
			e.emit(bytecode.OpReturnLocal, 0, 0)
		} else {
			e.emit(bytecode.OpReturnSelf, 0, 0)
		}
		return nil
	}
	for i, stmt := range body {
		last := i == len(body)-1
		if ret, ok := stmt.(*ast.Return); ok {
			if err := c.compileExpr(e, ft, s, ret.Value); err != nil {
				return err
			}
			if s.levelsToMethod() == 0 {
				e.emit(bytecode.OpReturnLocal, 0, 0)
			} else {
				e.emit(bytecode.OpReturnNonLocal, int32(s.levelsToMethod()), 0)
			}
			return nil
		}
		if err := c.compileExpr(e, ft, s, stmt); err != nil {
			return err
		}
		if last {
			if isBlock {
				e.emit(bytecode.OpReturnLocal, 0, 0)
			} else {
				e.emit(bytecode.OpPop, 0, 0)
				e.emit(bytecode.OpReturnSelf, 0, 0)
			}
		} else {
			e.emit(bytecode.OpPop, 0, 0)
		}
	}
	return nil
}

func (c *Compiler) compileExpr(e *emitter, ft fieldTable, s *scope, expr ast.Expression) error {
	switch node := expr.(type) {
	case *ast.Literal:
		return c.compileLiteral(e, node)

	case *ast.Identifier:
		return c.compileIdentifierRead(e, ft, s, node.Name)

	case *ast.Assignment:
		if err := c.compileExpr(e, ft, s, node.Value); err != nil {
			return err
		}
		e.emit(bytecode.OpDup, 0, 0)
		return c.compileIdentifierWrite(e, ft, s, node.Name)

	case *ast.ArrayLiteral:
		v, err := c.materializeArrayLiteral(node)
		if err != nil {
			return err
		}
		e.pushConstant(e.addLiteralValue(v))
		return nil

	case *ast.BlockLiteral:
		codeID, err := c.compileBlockLiteral(ft, s, node)
		if err != nil {
			return err
		}
		e.emit(bytecode.OpPushBlock, e.addBlock(codeID), 0)
		return nil

	case *ast.MessageSend:
		return c.compileSend(e, ft, s, node.Receiver, node.Selector, node.Args, false)

	case *ast.SuperSend:
		return c.compileSend(e, ft, s, nil, node.Selector, node.Args, true)

	default:
		return fmt.Errorf("compiler: unsupported expression %T", expr)
	}
}

func (c *Compiler) compileLiteral(e *emitter, lit *ast.Literal) error {
	switch lit.Kind {
	case ast.LitInteger:
		if lit.Int >= math.MinInt32 && lit.Int <= math.MaxInt32 {
			switch lit.Int {
			case 0:
				e.emit(bytecode.OpPush0, 0, 0)
				return nil
			case 1:
				e.emit(bytecode.OpPush1, 0, 0)
				return nil
			}
			e.pushConstant(e.addLiteralValue(value.NewInteger(int32(lit.Int))))
			return nil
		}
		big := object.NewBigInteger(c.Heap, bigFromInt64(lit.Int))
		e.pushConstant(e.addLiteralValue(big.AsValue()))
		return nil

	case ast.LitDouble:
		e.pushConstant(e.addLiteralValue(value.NewDouble(lit.Float)))
		return nil

	case ast.LitString:
		str := object.NewHeapString(c.Heap, lit.Str)
		e.pushConstant(e.addLiteralValue(str.AsValue()))
		return nil

	case ast.LitSymbol:
		id := c.Interner.Intern(lit.Str)
		e.pushConstant(e.addLiteralValue(value.NewSymbol(uint32(id))))
		return nil

	case ast.LitChar:
		r := rune(0)
		for _, ch := range lit.Str {
			r = ch
			break
		}
		e.pushConstant(e.addLiteralValue(value.NewChar(r)))
		return nil

	case ast.LitBoolean:
		if lit.Int != 0 {
			e.pushConstant(e.addLiteralValue(value.True))
		} else {
			e.pushConstant(e.addLiteralValue(value.False))
		}
		return nil

	case ast.LitNil:
		e.emit(bytecode.OpPushNil, 0, 0)
		return nil

	default:
		return fmt.Errorf("compiler: unknown literal kind %v", lit.Kind)
	}
}

func bigFromInt64(n int64) *big.Int { return big.NewInt(n) }

// materializeArrayLiteral builds a real object.Array for a #(...) literal
// up front: every element is itself a compile-time literal (the grammar
// allows nothing else inside one), so the array can be built once and
// reused by value on every push, like any other literal-pool entry.
func (c *Compiler) materializeArrayLiteral(lit *ast.ArrayLiteral) (value.Value, error) {
	arr := object.NewArray(c.Heap, len(lit.Elements))
	for i, el := range lit.Elements {
		var v value.Value
		switch elt := el.(type) {
		case *ast.Literal:
			lv, err := c.literalValue(elt)
			if err != nil {
				return value.Nil, err
			}
			v = lv
		case *ast.ArrayLiteral:
			nested, err := c.materializeArrayLiteral(elt)
			if err != nil {
				return value.Nil, err
			}
			v = nested
		default:
			return value.Nil, fmt.Errorf("compiler: array literal element must be a literal, got %T", el)
		}
		arr.SetAt(i, v)
	}
	return arr.AsValue(), nil
}

// literalValue is compileLiteral's non-emitting twin, used when a literal
// needs to become an immediate value.Value rather than a pushed
// instruction (array-literal elements).
func (c *Compiler) literalValue(lit *ast.Literal) (value.Value, error) {
	switch lit.Kind {
	case ast.LitInteger:
		if lit.Int >= math.MinInt32 && lit.Int <= math.MaxInt32 {
			return value.NewInteger(int32(lit.Int)), nil
		}
		return object.NewBigInteger(c.Heap, bigFromInt64(lit.Int)).AsValue(), nil
	case ast.LitDouble:
		return value.NewDouble(lit.Float), nil
	case ast.LitString:
		return object.NewHeapString(c.Heap, lit.Str).AsValue(), nil
	case ast.LitSymbol:
		return value.NewSymbol(uint32(c.Interner.Intern(lit.Str))), nil
	case ast.LitChar:
		for _, ch := range lit.Str {
			return value.NewChar(ch), nil
		}
		return value.NewChar(0), nil
	case ast.LitBoolean:
		if lit.Int != 0 {
			return value.True, nil
		}
		return value.False, nil
	case ast.LitNil:
		return value.Nil, nil
	default:
		return value.Nil, fmt.Errorf("compiler: unknown literal kind %v", lit.Kind)
	}
}

// compileSend compiles an ordinary or super message send, inlining the
// control-flow selectors spec §4.5 calls out when every block-literal
// argument is syntactically a literal block (never a variable holding a
// block, which could be rebound at runtime) — matching the reference
// implementation's rule that inlining is a syntactic, not a dynamic,
// decision. receiver is nil for a super send (self is pushed for the
// actual receiver, but lookup starts above the holder).
func (c *Compiler) compileSend(e *emitter, ft fieldTable, s *scope, receiver ast.Expression, selector string, args []ast.Expression, isSuper bool) error {
	if !isSuper {
		handled, err := c.tryInlineControlFlow(e, ft, s, receiver, selector, args)
		if err != nil || handled {
			return err
		}
	}

	if receiver != nil {
		if err := c.compileExpr(e, ft, s, receiver); err != nil {
			return err
		}
	} else {
		e.emit(bytecode.OpPushSelf, 0, 0)
	}
	for _, a := range args {
		if err := c.compileExpr(e, ft, s, a); err != nil {
			return err
		}
	}

	id := c.Interner.Intern(selector)
	litIdx := e.addSelector(id)
	argc := len(args)
	send0, send1, send2, send3, sendN := bytecode.OpSend0, bytecode.OpSend1, bytecode.OpSend2, bytecode.OpSend3, bytecode.OpSendN
	if isSuper {
		send0, send1, send2, send3, sendN = bytecode.OpSuperSend0, bytecode.OpSuperSend1, bytecode.OpSuperSend2, bytecode.OpSuperSend3, bytecode.OpSuperSendN
	}
	switch argc {
	case 0:
		e.emit(send0, litIdx, 0)
	case 1:
		e.emit(send1, litIdx, 0)
	case 2:
		e.emit(send2, litIdx, 0)
	case 3:
		e.emit(send3, litIdx, 0)
	default:
		e.emit(sendN, litIdx, int32(argc))
	}
	return nil
}

// asLiteralBlock returns expr as a *ast.BlockLiteral only when it
// syntactically is one; any other expression (an Identifier naming a
// stored block, a nested send producing one, ...) returns ok=false, and
// the caller must fall back to an ordinary send.
func asLiteralBlock(expr ast.Expression) (*ast.BlockLiteral, bool) {
	b, ok := expr.(*ast.BlockLiteral)
	return b, ok
}

// tryInlineControlFlow compiles the selectors spec §4.5 inlines directly
// into jumps when their block arguments are literal, reporting handled so
// the caller falls back to an ordinary send otherwise.
func (c *Compiler) tryInlineControlFlow(e *emitter, ft fieldTable, s *scope, receiver ast.Expression, selector string, args []ast.Expression) (bool, error) {
	switch selector {
	case "ifTrue:":
		blk, ok := asLiteralBlock(args[0])
		if !ok {
			return false, nil
		}
		return true, c.inlineIfTrueFalse(e, ft, s, receiver, blk, nil)

	case "ifFalse:":
		blk, ok := asLiteralBlock(args[0])
		if !ok {
			return false, nil
		}
		return true, c.inlineIfTrueFalse(e, ft, s, receiver, nil, blk)

	case "ifTrue:ifFalse:":
		t, tok := asLiteralBlock(args[0])
		f, fok := asLiteralBlock(args[1])
		if !tok || !fok {
			return false, nil
		}
		return true, c.inlineIfTrueFalse(e, ft, s, receiver, t, f)

	case "ifFalse:ifTrue:":
		f, fok := asLiteralBlock(args[0])
		t, tok := asLiteralBlock(args[1])
		if !tok || !fok {
			return false, nil
		}
		return true, c.inlineIfTrueFalse(e, ft, s, receiver, t, f)

	case "and:":
		blk, ok := asLiteralBlock(args[0])
		if !ok {
			return false, nil
		}
		return true, c.inlineShortCircuit(e, ft, s, receiver, blk, true)

	case "or:":
		blk, ok := asLiteralBlock(args[0])
		if !ok {
			return false, nil
		}
		return true, c.inlineShortCircuit(e, ft, s, receiver, blk, false)

	case "whileTrue:":
		cond, condOK := asLiteralBlock(receiver)
		body, bodyOK := asLiteralBlock(args[0])
		if !condOK || !bodyOK {
			return false, nil
		}
		return true, c.inlineWhile(e, ft, s, cond, body, true)

	case "whileFalse:":
		cond, condOK := asLiteralBlock(receiver)
		body, bodyOK := asLiteralBlock(args[0])
		if !condOK || !bodyOK {
			return false, nil
		}
		return true, c.inlineWhile(e, ft, s, cond, body, false)

	default:
		return false, nil
	}
}

// inlineIfTrueFalse compiles `recv ifTrue: t ifFalse: f` (either block may
// be nil, standing for "push nil"): push recv, JumpOnFalsePop over the
// true branch's code when recv is false, otherwise fall into it and jump
// past the false branch.
func (c *Compiler) inlineIfTrueFalse(e *emitter, ft fieldTable, s *scope, receiver ast.Expression, t, f *ast.BlockLiteral) error {
	if err := c.compileExpr(e, ft, s, receiver); err != nil {
		return err
	}
	branchOverTrue := e.emit(bytecode.OpJumpOnFalsePop, 0, 0)
	if err := c.compileInlinedBlockBody(e, ft, s, t); err != nil {
		return err
	}
	jumpPastFalse := e.emit(bytecode.OpJump, 0, 0)
	e.patchJump(branchOverTrue, e.here())
	if err := c.compileInlinedBlockBody(e, ft, s, f); err != nil {
		return err
	}
	e.patchJump(jumpPastFalse, e.here())
	return nil
}

// compileInlinedBlockBody compiles blk's statements directly into the
// enclosing instruction stream, sharing the enclosing scope rather than
// pushing a new lexical level — spec §4.5's point: an inlined block never
// becomes a real Block object or gets its own Frame, so its locals live
// in the enclosing frame. A nil blk (an omitted ifFalse:/ifTrue: arm)
// compiles to a bare nil.
func (c *Compiler) compileInlinedBlockBody(e *emitter, ft fieldTable, s *scope, blk *ast.BlockLiteral) error {
	if blk == nil {
		e.emit(bytecode.OpPushNil, 0, 0)
		return nil
	}
	// Inlined blocks take no parameters (ifTrue:/whileTrue: bodies are
	// always 0-arity) and never declare locals of their own in practice;
	// they compile straight into the caller's scope s rather than pushing
	// a new lexical level, since they never become a real Block object or
	// get their own Frame.
	if len(blk.Body) == 0 {
		e.emit(bytecode.OpPushNil, 0, 0)
		return nil
	}
	for i, stmt := range blk.Body {
		if ret, ok := stmt.(*ast.Return); ok {
			if err := c.compileExpr(e, ft, s, ret.Value); err != nil {
				return err
			}
			if s.levelsToMethod() == 0 {
				e.emit(bytecode.OpReturnLocal, 0, 0)
			} else {
				e.emit(bytecode.OpReturnNonLocal, int32(s.levelsToMethod()), 0)
			}
			continue
		}
		if err := c.compileExpr(e, ft, s, stmt); err != nil {
			return err
		}
		if i != len(blk.Body)-1 {
			e.emit(bytecode.OpPop, 0, 0)
		}
	}
	return nil
}

// inlineShortCircuit compiles `recv and: blk` / `recv or: blk`: push recv,
// and on the short-circuiting outcome (false for and:, true for or:) skip
// the block entirely, leaving that same boolean as the result; otherwise
// pop it and evaluate the block for the result.
func (c *Compiler) inlineShortCircuit(e *emitter, ft fieldTable, s *scope, receiver ast.Expression, blk *ast.BlockLiteral, isAnd bool) error {
	if err := c.compileExpr(e, ft, s, receiver); err != nil {
		return err
	}
	e.emit(bytecode.OpDup, 0, 0)
	var shortCircuit int
	if isAnd {
		shortCircuit = e.emit(bytecode.OpJumpOnFalsePop, 0, 0)
	} else {
		shortCircuit = e.emit(bytecode.OpJumpOnTruePop, 0, 0)
	}
	e.emit(bytecode.OpPop, 0, 0)
	if err := c.compileInlinedBlockBody(e, ft, s, blk); err != nil {
		return err
	}
	jumpEnd := e.emit(bytecode.OpJump, 0, 0)
	e.patchJump(shortCircuit, e.here())
	e.patchJump(jumpEnd, e.here())
	return nil
}

// inlineWhile compiles `cond whileTrue: body` / `cond whileFalse: body`:
// loop { evaluate cond; if it doesn't match wantTrue, jump past the loop;
// evaluate body for effect, discard it; jump back to cond }. The whole
// expression's value is always nil (no caller of a while loop uses its
// result in this language family).
func (c *Compiler) inlineWhile(e *emitter, ft fieldTable, s *scope, cond, body *ast.BlockLiteral, wantTrue bool) error {
	loopStart := e.here()
	if err := c.compileInlinedBlockBody(e, ft, s, cond); err != nil {
		return err
	}
	var exit int
	if wantTrue {
		exit = e.emit(bytecode.OpJumpOnFalsePop, 0, 0)
	} else {
		exit = e.emit(bytecode.OpJumpOnTruePop, 0, 0)
	}
	if err := c.compileInlinedBlockBody(e, ft, s, body); err != nil {
		return err
	}
	e.emit(bytecode.OpPop, 0, 0)
	back := e.emit(bytecode.OpJumpBackward, 0, 0)
	e.instrs[back].A = int32(back - loopStart)
	e.patchJump(exit, e.here())
	e.emit(bytecode.OpPushNil, 0, 0)
	return nil
}

func (c *Compiler) compileIdentifierRead(e *emitter, ft fieldTable, s *scope, name string) error {
	if name == "self" {
		e.emit(bytecode.OpPushSelf, 0, 0)
		return nil
	}
	if kind, up, idx := s.find(name); kind != varNone {
		switch {
		case kind == varArg && up == 0:
			e.emit(bytecode.OpPushArg0, int32(idx), 0)
		case kind == varArg:
			e.emit(bytecode.OpPushArg, int32(up), int32(idx))
		case kind == varLocal && up == 0:
			e.emit(bytecode.OpPushLocal0, int32(idx), 0)
		default:
			e.emit(bytecode.OpPushLocal, int32(up), int32(idx))
		}
		return nil
	}
	if idx, ok := ft.index(name); ok {
		e.emit(bytecode.OpPushField, int32(idx), 0)
		return nil
	}
	id := c.Interner.Intern(name)
	e.emit(bytecode.OpPushGlobal, e.addGlobal(id), 0)
	return nil
}

func (c *Compiler) compileIdentifierWrite(e *emitter, ft fieldTable, s *scope, name string) error {
	if kind, up, idx := s.find(name); kind != varNone {
		switch {
		case kind == varArg && up == 0:
			e.emit(bytecode.OpPopArg0, int32(idx), 0)
		case kind == varArg:
			e.emit(bytecode.OpPopArg, int32(up), int32(idx))
		case kind == varLocal && up == 0:
			e.emit(bytecode.OpPopLocal0, int32(idx), 0)
		default:
			e.emit(bytecode.OpPopLocal, int32(up), int32(idx))
		}
		return nil
	}
	if idx, ok := ft.index(name); ok {
		e.emit(bytecode.OpPopField, int32(idx), 0)
		return nil
	}
	return fmt.Errorf("compiler: assignment to unknown variable %q", name)
}

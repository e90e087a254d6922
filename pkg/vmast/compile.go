package vmast

import (
	"fmt"
	"math"
	"math/big"

	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/interner"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

// Compiler lowers pkg/ast to this package's Node trees. It is
// deliberately independent of pkg/compiler (which lowers the same
// ast.MethodDef to bytecode): the two backends target different
// execution strategies — a linear instruction stream with an explicit
// value stack versus a recursively-evaluated tree — and sharing one
// "compiler" type across both would mean every bytecode-only concept
// (the literal pool, jump patching, an emitter) leaking into a package
// that has no use for it. Only the upstream AST and the downstream
// object/value/gc model are shared.
type Compiler struct {
	Code     *CodeTable
	Heap     *gc.Heap
	Interner *interner.Interner
}

func NewCompiler(heap *gc.Heap, in *interner.Interner) *Compiler {
	return &Compiler{Code: NewCodeTable(), Heap: heap, Interner: in}
}

// scope mirrors pkg/compiler's scope exactly (lexical arg/local chain,
// up-counting find, levelsToMethod), with one addition: locals can grow
// during compilation (addLocal), since an inlined to:do: loop's counter
// variable has no source-level declaration and needs a synthetic slot
// in whichever scope the loop lexically sits in.
type scope struct {
	args         []string
	locals       []string
	parent       *scope
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

func (s *scope) levelsToMethod() int {
	up := 0
	for cur := s; cur != nil; cur = cur.parent {
		if cur.isMethodRoot {
			return up
		}
		up++
	}
	panic("vmast: scope chain has no method root")
}

// addLocal allocates a fresh synthetic local slot in s, used only by
// ToDoInlined's counter variable.
func (s *scope) addLocal(name string) int {
	s.locals = append(s.locals, name)
	return len(s.locals) - 1
}

type fieldTable struct{ names []string }

func (f fieldTable) index(name string) (int, bool) {
	for i, n := range f.names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// CompileClass mirrors pkg/compiler.CompileClass's wiring exactly (same
// field-list threading, same per-selector method construction), the
// only difference being CompileMethod's target representation.
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
			return object.Class{}, fmt.Errorf("vmast: class %q: %w", def.Name, err)
		}
		spec.Holder = cls.Ref
		spec.SelectorID = instanceSelectors[i]
		method := object.NewMethod(c.Heap, spec)
		cls.SetInstanceMethod(instanceSelectors[i], method.Ref)
	}
	for i, m := range def.ClassMethods {
		spec, err := c.CompileMethod(classFields, m)
		if err != nil {
			return object.Class{}, fmt.Errorf("vmast: class %q class-side: %w", def.Name, err)
		}
		spec.Holder = cls.Ref
		spec.SelectorID = classSelectors[i]
		method := object.NewMethod(c.Heap, spec)
		cls.SetClassMethod(classSelectors[i], method.Ref)
	}
	return cls, nil
}

// CompileMethod lowers def to a MethodSpec whose Code indexes this
// package's CodeTable. Trivial-shape detection is identical to
// pkg/compiler's (the shapes are backend-independent; only the
// resulting Kind's Code payload differs: here there is no bytecode
// CodeTable entry at all for a trivial method, exactly as for the
// bytecode backend).
func (c *Compiler) CompileMethod(fields []string, def *ast.MethodDef) (object.MethodSpec, error) {
	if def.IsPrimitive {
		return object.MethodSpec{Kind: object.MethodPrimitive, ArgCount: len(def.Params)}, nil
	}

	ft := fieldTable{names: fields}
	if spec, ok := c.detectTrivial(ft, def); ok {
		return spec, nil
	}

	root := &scope{args: append([]string{"self"}, def.Params...), locals: append([]string{}, def.Locals...), isMethodRoot: true}
	body, err := c.compileStatements(ft, root, def.Body)
	if err != nil {
		return object.MethodSpec{}, fmt.Errorf("vmast: method %q: %w", def.Selector, err)
	}

	codeID := c.Code.add(&Code{
		Body:      body,
		NumArgs:   len(def.Params) + 1,
		NumLocals: len(root.locals),
		IsBlock:   false,
	})
	return object.MethodSpec{
		Kind:       object.MethodDefined,
		ArgCount:   len(def.Params),
		LocalCount: len(root.locals),
		Code:       codeID,
	}, nil
}

// detectTrivial is pkg/compiler.detectTrivial's twin, operating on the
// same ast shapes (spec §4.6's four frameless forms).
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

func (c *Compiler) literalValue(lit *ast.Literal) (value.Value, error) {
	switch lit.Kind {
	case ast.LitInteger:
		if lit.Int >= math.MinInt32 && lit.Int <= math.MaxInt32 {
			return value.NewInteger(int32(lit.Int)), nil
		}
		return object.NewBigInteger(c.Heap, big.NewInt(lit.Int)).AsValue(), nil
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
		return value.Nil, fmt.Errorf("vmast: unknown literal kind %v", lit.Kind)
	}
}

// compileBlockLiteral lowers a non-inlined block literal to a CodeTable
// entry, returning its id for a BlockNode to carry.
func (c *Compiler) compileBlockLiteral(ft fieldTable, outer *scope, lit *ast.BlockLiteral) (uint32, error) {
	s := &scope{args: lit.Params, locals: append([]string{}, lit.Locals...), parent: outer}
	body, err := c.compileStatements(ft, s, lit.Body)
	if err != nil {
		return 0, err
	}
	id := c.Code.add(&Code{
		Body:      body,
		NumArgs:   len(lit.Params) + 1,
		NumLocals: len(s.locals),
		IsBlock:   true,
	})
	return uint32(id), nil
}

// compileStatements lowers a statement list to a Node slice, translating
// a trailing or embedded `^expr` into ReturnLocal/ReturnNonLocal exactly
// as pkg/compiler.compileBody does, leaving the implicit
// last-value-or-self fallback to the interpreter (Code.IsBlock tells it
// which).
func (c *Compiler) compileStatements(ft fieldTable, s *scope, stmts []ast.Statement) ([]Node, error) {
	nodes := make([]Node, 0, len(stmts))
	for _, stmt := range stmts {
		if ret, ok := stmt.(*ast.Return); ok {
			valNode, err := c.compileExpr(ft, s, ret.Value)
			if err != nil {
				return nil, err
			}
			if s.levelsToMethod() == 0 {
				nodes = append(nodes, &ReturnLocal{Value: valNode})
			} else {
				nodes = append(nodes, &ReturnNonLocal{Up: s.levelsToMethod(), Value: valNode})
			}
			return nodes, nil
		}
		n, err := c.compileExpr(ft, s, stmt)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (c *Compiler) compileExpr(ft fieldTable, s *scope, expr ast.Expression) (Node, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		v, err := c.literalValue(e)
		if err != nil {
			return nil, err
		}
		return &LiteralNode{Value: v}, nil

	case *ast.Identifier:
		if e.Name == "self" || e.Name == "super" {
			return &SelfRef{}, nil
		}
		if fieldIdx, isField := ft.index(e.Name); isField {
			return &FieldRef{Index: fieldIdx}, nil
		}
		kind, up, idx := s.find(e.Name)
		switch kind {
		case varArg:
			return &ArgRef{Up: up, Index: idx}, nil
		case varLocal:
			return &LocalRef{Up: up, Index: idx}, nil
		default:
			return &GlobalRef{Name: e.Name}, nil
		}

	case *ast.Assignment:
		valNode, err := c.compileExpr(ft, s, e.Value)
		if err != nil {
			return nil, err
		}
		if fieldIdx, isField := ft.index(e.Name); isField {
			return &FieldSet{Index: fieldIdx, Value: valNode}, nil
		}
		kind, up, idx := s.find(e.Name)
		switch kind {
		case varArg:
			return &ArgSet{Up: up, Index: idx, Value: valNode}, nil
		case varLocal:
			return &LocalSet{Up: up, Index: idx, Value: valNode}, nil
		default:
			return nil, fmt.Errorf("vmast: assignment to unresolvable identifier %q", e.Name)
		}

	case *ast.ArrayLiteral:
		v, err := c.materializeArrayLiteral(e)
		if err != nil {
			return nil, err
		}
		return &LiteralNode{Value: v}, nil

	case *ast.BlockLiteral:
		id, err := c.compileBlockLiteral(ft, s, e)
		if err != nil {
			return nil, err
		}
		return &BlockNode{CodeID: id}, nil

	case *ast.MessageSend:
		if handled, node, err := c.tryInlineControlFlow(ft, s, e.Receiver, e.Selector, e.Args); err != nil {
			return nil, err
		} else if handled {
			return node, nil
		}
		recv, err := c.compileExpr(ft, s, e.Receiver)
		if err != nil {
			return nil, err
		}
		args, err := c.compileExprList(ft, s, e.Args)
		if err != nil {
			return nil, err
		}
		return &MessageSend{Receiver: recv, Selector: e.Selector, Args: args}, nil

	case *ast.SuperSend:
		args, err := c.compileExprList(ft, s, e.Args)
		if err != nil {
			return nil, err
		}
		return &SuperSend{Selector: e.Selector, Args: args}, nil

	default:
		return nil, fmt.Errorf("vmast: unsupported expression %T", expr)
	}
}

func (c *Compiler) compileExprList(ft fieldTable, s *scope, exprs []ast.Expression) ([]Node, error) {
	nodes := make([]Node, len(exprs))
	for i, e := range exprs {
		n, err := c.compileExpr(ft, s, e)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	return nodes, nil
}

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
			return value.Nil, fmt.Errorf("vmast: array literal element must be a literal, got %T", el)
		}
		arr.SetAt(i, v)
	}
	return arr.AsValue(), nil
}

// asLiteralBlock returns expr as a *ast.BlockLiteral only when it
// syntactically is one, matching pkg/compiler's inlining rule: inlining
// is a purely syntactic decision, never a dynamic one (a variable that
// happens to hold a block at runtime is never inlined).
func asLiteralBlock(expr ast.Expression) (*ast.BlockLiteral, bool) {
	b, ok := expr.(*ast.BlockLiteral)
	return b, ok
}

// tryInlineControlFlow recognizes the selectors spec §4.5 names and
// compiles their literal-block arguments directly as nodes sharing the
// enclosing scope, never constructing a real Block or child Frame for
// them.
func (c *Compiler) tryInlineControlFlow(ft fieldTable, s *scope, receiver ast.Expression, selector string, args []ast.Expression) (bool, Node, error) {
	switch selector {
	case "ifTrue:":
		blk, ok := asLiteralBlock(args[0])
		if !ok {
			return false, nil, nil
		}
		cond, err := c.compileExpr(ft, s, receiver)
		if err != nil {
			return false, nil, err
		}
		then, err := c.compileInlinedBlockBody(ft, s, blk)
		if err != nil {
			return false, nil, err
		}
		return true, &IfInlined{Cond: cond, Then: then, Want: true}, nil

	case "ifFalse:":
		blk, ok := asLiteralBlock(args[0])
		if !ok {
			return false, nil, nil
		}
		cond, err := c.compileExpr(ft, s, receiver)
		if err != nil {
			return false, nil, err
		}
		then, err := c.compileInlinedBlockBody(ft, s, blk)
		if err != nil {
			return false, nil, err
		}
		return true, &IfInlined{Cond: cond, Then: then, Want: false}, nil

	case "ifTrue:ifFalse:":
		t, tok := asLiteralBlock(args[0])
		f, fok := asLiteralBlock(args[1])
		if !tok || !fok {
			return false, nil, nil
		}
		return c.inlineIfTrueFalse(ft, s, receiver, t, f)

	case "ifFalse:ifTrue:":
		f, fok := asLiteralBlock(args[0])
		t, tok := asLiteralBlock(args[1])
		if !tok || !fok {
			return false, nil, nil
		}
		return c.inlineIfTrueFalse(ft, s, receiver, t, f)

	case "ifNil:":
		blk, ok := asLiteralBlock(args[0])
		if !ok {
			return false, nil, nil
		}
		subj, err := c.compileExpr(ft, s, receiver)
		if err != nil {
			return false, nil, err
		}
		branch, err := c.compileInlinedBlockBody(ft, s, blk)
		if err != nil {
			return false, nil, err
		}
		return true, &IfNilInlined{Subject: subj, Branch: branch, Want: true}, nil

	case "ifNotNil:":
		blk, ok := asLiteralBlock(args[0])
		if !ok {
			return false, nil, nil
		}
		subj, err := c.compileExpr(ft, s, receiver)
		if err != nil {
			return false, nil, err
		}
		branch, err := c.compileInlinedBlockBody(ft, s, blk)
		if err != nil {
			return false, nil, err
		}
		return true, &IfNilInlined{Subject: subj, Branch: branch, Want: false}, nil

	case "ifNil:ifNotNil:":
		n, fn := asLiteralBlock(args[0])
		nn, fnn := asLiteralBlock(args[1])
		if !fn || !fnn {
			return false, nil, nil
		}
		subj, err := c.compileExpr(ft, s, receiver)
		if err != nil {
			return false, nil, err
		}
		nilBranch, err := c.compileInlinedBlockBody(ft, s, n)
		if err != nil {
			return false, nil, err
		}
		notNilBranch, err := c.compileInlinedBlockBody(ft, s, nn)
		if err != nil {
			return false, nil, err
		}
		return true, &IfNilIfNotNilInlined{Subject: subj, NilBranch: nilBranch, NotNilBranch: notNilBranch}, nil

	case "and:":
		blk, ok := asLiteralBlock(args[0])
		if !ok {
			return false, nil, nil
		}
		left, err := c.compileExpr(ft, s, receiver)
		if err != nil {
			return false, nil, err
		}
		right, err := c.compileInlinedBlockBody(ft, s, blk)
		if err != nil {
			return false, nil, err
		}
		return true, &AndInlined{Left: left, Right: right}, nil

	case "or:":
		blk, ok := asLiteralBlock(args[0])
		if !ok {
			return false, nil, nil
		}
		left, err := c.compileExpr(ft, s, receiver)
		if err != nil {
			return false, nil, err
		}
		right, err := c.compileInlinedBlockBody(ft, s, blk)
		if err != nil {
			return false, nil, err
		}
		return true, &OrInlined{Left: left, Right: right}, nil

	case "whileTrue:":
		cond, condOK := asLiteralBlock(receiver)
		body, bodyOK := asLiteralBlock(args[0])
		if !condOK || !bodyOK {
			return false, nil, nil
		}
		return c.inlineWhile(ft, s, cond, body, true)

	case "whileFalse:":
		cond, condOK := asLiteralBlock(receiver)
		body, bodyOK := asLiteralBlock(args[0])
		if !condOK || !bodyOK {
			return false, nil, nil
		}
		return c.inlineWhile(ft, s, cond, body, false)

	case "to:do:":
		body, ok := asLiteralBlock(args[1])
		if !ok {
			return false, nil, nil
		}
		return c.inlineToDo(ft, s, receiver, args[0], nil, body, false)

	case "to:by:do:":
		body, ok := asLiteralBlock(args[2])
		if !ok {
			return false, nil, nil
		}
		return c.inlineToDo(ft, s, receiver, args[0], args[1], body, false)

	case "downTo:do:":
		body, ok := asLiteralBlock(args[1])
		if !ok {
			return false, nil, nil
		}
		return c.inlineToDo(ft, s, receiver, args[0], nil, body, true)

	default:
		return false, nil, nil
	}
}

func (c *Compiler) inlineIfTrueFalse(ft fieldTable, s *scope, receiver ast.Expression, t, f *ast.BlockLiteral) (bool, Node, error) {
	cond, err := c.compileExpr(ft, s, receiver)
	if err != nil {
		return false, nil, err
	}
	then, err := c.compileInlinedBlockBody(ft, s, t)
	if err != nil {
		return false, nil, err
	}
	els, err := c.compileInlinedBlockBody(ft, s, f)
	if err != nil {
		return false, nil, err
	}
	return true, &IfTrueIfFalseInlined{Cond: cond, Then: then, Else: els}, nil
}

func (c *Compiler) inlineWhile(ft fieldTable, s *scope, cond, body *ast.BlockLiteral, want bool) (bool, Node, error) {
	condNode, err := c.compileInlinedBlockBody(ft, s, cond)
	if err != nil {
		return false, nil, err
	}
	bodyNode, err := c.compileInlinedBlockBody(ft, s, body)
	if err != nil {
		return false, nil, err
	}
	return true, &WhileInlined{Cond: condNode, Body: bodyNode, Want: want}, nil
}

// inlineToDo compiles `from to:/by:/downTo: ... do: [:i | body]` as a
// ToDoInlined node: the counter gets a synthetic local slot in s (the
// loop's enclosing scope, since the block never becomes a real Block or
// gets its own Frame) under the block parameter's name, and body is
// compiled directly against s, so every reference to that parameter
// inside body resolves to the slot through s itself.
func (c *Compiler) inlineToDo(ft fieldTable, s *scope, fromExpr, toExpr, byExpr ast.Expression, body *ast.BlockLiteral, down bool) (bool, Node, error) {
	fromNode, err := c.compileExpr(ft, s, fromExpr)
	if err != nil {
		return false, nil, err
	}
	toNode, err := c.compileExpr(ft, s, toExpr)
	if err != nil {
		return false, nil, err
	}
	var byNode Node
	if byExpr != nil {
		byNode, err = c.compileExpr(ft, s, byExpr)
		if err != nil {
			return false, nil, err
		}
	}

	counterName := "<counter>"
	if len(body.Params) == 1 {
		counterName = body.Params[0]
	}
	counterIdx := s.addLocal(counterName)

	bodyNode, err := c.compileInlinedBlockBody(ft, s, &ast.BlockLiteral{Locals: body.Locals, Body: body.Body})
	if err != nil {
		return false, nil, err
	}

	return true, &ToDoInlined{
		From: fromNode, To: toNode, By: byNode, Down: down,
		CounterLocal: counterIdx, Body: bodyNode,
	}, nil
}

// compileInlinedBlockBody compiles blk's statements directly against the
// enclosing scope s, never pushing a new lexical level — spec §4.5's
// point that an inlined block's locals live in the enclosing frame. A
// nil blk (an omitted ifFalse:/ifTrue: arm) compiles to a bare nil.
func (c *Compiler) compileInlinedBlockBody(ft fieldTable, s *scope, blk *ast.BlockLiteral) (Node, error) {
	if blk == nil || len(blk.Body) == 0 {
		return &LiteralNode{Value: value.Nil}, nil
	}
	for _, name := range blk.Locals {
		s.addLocal(name)
	}
	nodes, err := c.compileInlinedStatements(ft, s, blk.Body)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return &Sequence{Nodes: nodes}, nil
}

// compileInlinedStatements is compileStatements' twin for inlined bodies:
// a `^` here still measures s.levelsToMethod() from the real (non-inlined)
// scope s sits in, which may be greater than zero if the inlined
// construct itself is nested inside a real block.
func (c *Compiler) compileInlinedStatements(ft fieldTable, s *scope, stmts []ast.Statement) ([]Node, error) {
	return c.compileStatements(ft, s, stmts)
}

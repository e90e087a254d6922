package parser

import (
	"fmt"
	"testing"

	"github.com/kristofer/smog/pkg/ast"
)

// parseExpr wraps a bare expression in a throwaway class and method, parses
// it, and returns the single resulting body statement. Most of the grammar
// below expression level doesn't care which class or method it lives in, so
// tests can stay focused on the expression itself.
func parseExpr(t *testing.T, expr string) ast.Expression {
	t.Helper()
	src := fmt.Sprintf("Fixture = Object ( run = ( %s ) )", expr)
	p := New(src)
	classes, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(classes) != 1 {
		t.Fatalf("expected 1 class, got %d", len(classes))
	}
	methods := classes[0].InstanceMethods
	if len(methods) != 1 {
		t.Fatalf("expected 1 method, got %d", len(methods))
	}
	body := methods[0].Body
	if len(body) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(body))
	}
	return body[0]
}

func TestParseIntegerLiteral(t *testing.T) {
	expr := parseExpr(t, "42")
	lit, ok := expr.(*ast.Literal)
	if !ok {
		t.Fatalf("expected *ast.Literal, got %T", expr)
	}
	if lit.Kind != ast.LitInteger || lit.Int != 42 {
		t.Errorf("expected integer 42, got kind=%v int=%d", lit.Kind, lit.Int)
	}
}

func TestParseFloatLiteral(t *testing.T) {
	lit, ok := parseExpr(t, "3.14").(*ast.Literal)
	if !ok {
		t.Fatalf("expected *ast.Literal, got %T", lit)
	}
	if lit.Kind != ast.LitDouble || lit.Float != 3.14 {
		t.Errorf("expected float 3.14, got kind=%v float=%f", lit.Kind, lit.Float)
	}
}

func TestParseStringLiteral(t *testing.T) {
	lit, ok := parseExpr(t, "'Hello, World!'").(*ast.Literal)
	if !ok {
		t.Fatalf("expected *ast.Literal, got %T", lit)
	}
	if lit.Kind != ast.LitString || lit.Str != "Hello, World!" {
		t.Errorf("expected string 'Hello, World!', got kind=%v str=%s", lit.Kind, lit.Str)
	}
}

func TestParseSymbolLiteral(t *testing.T) {
	lit, ok := parseExpr(t, "#at:put:").(*ast.Literal)
	if !ok {
		t.Fatalf("expected *ast.Literal, got %T", lit)
	}
	if lit.Kind != ast.LitSymbol || lit.Str != "at:put:" {
		t.Errorf("expected symbol #at:put:, got kind=%v str=%s", lit.Kind, lit.Str)
	}
}

func TestParseBooleanLiterals(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"true", 1},
		{"false", 0},
	}

	for _, tt := range tests {
		lit, ok := parseExpr(t, tt.input).(*ast.Literal)
		if !ok {
			t.Fatalf("expected *ast.Literal, got %T", lit)
		}
		if lit.Kind != ast.LitBoolean || lit.Int != tt.expected {
			t.Errorf("input %q: expected boolean %d, got kind=%v int=%d", tt.input, tt.expected, lit.Kind, lit.Int)
		}
	}
}

func TestParseNilLiteral(t *testing.T) {
	lit, ok := parseExpr(t, "nil").(*ast.Literal)
	if !ok {
		t.Fatalf("expected *ast.Literal, got %T", lit)
	}
	if lit.Kind != ast.LitNil {
		t.Errorf("expected nil literal, got kind=%v", lit.Kind)
	}
}

func TestParseIdentifier(t *testing.T) {
	ident, ok := parseExpr(t, "count").(*ast.Identifier)
	if !ok {
		t.Fatalf("expected *ast.Identifier, got %T", ident)
	}
	if ident.Name != "count" {
		t.Errorf("expected identifier 'count', got %s", ident.Name)
	}
}

func TestParseNegativeNumber(t *testing.T) {
	lit, ok := parseExpr(t, "-17").(*ast.Literal)
	if !ok {
		t.Fatalf("expected *ast.Literal, got %T", lit)
	}
	if lit.Kind != ast.LitInteger || lit.Int != -17 {
		t.Errorf("expected integer -17, got kind=%v int=%d", lit.Kind, lit.Int)
	}
}

func TestParseMultipleStatementsInMethodBody(t *testing.T) {
	src := `Fixture = Object (
		run = (
			| x |
			x := 1.
			x := x + 1.
			^x
		)
	)`

	p := New(src)
	classes, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	require3Stmts(t, classes)
}

func require3Stmts(t *testing.T, classes []*ast.ClassDef) {
	t.Helper()
	if len(classes) != 1 {
		t.Fatalf("expected 1 class, got %d", len(classes))
	}
	body := classes[0].InstanceMethods[0].Body
	if len(body) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(body))
	}
	if _, ok := body[0].(*ast.Assignment); !ok {
		t.Errorf("expected first statement to be Assignment, got %T", body[0])
	}
	if _, ok := body[1].(*ast.Assignment); !ok {
		t.Errorf("expected second statement to be Assignment, got %T", body[1])
	}
	ret, ok := body[2].(*ast.Return)
	if !ok {
		t.Fatalf("expected third statement to be Return, got %T", body[2])
	}
	if _, ok := ret.Value.(*ast.Identifier); !ok {
		t.Errorf("expected return value to be Identifier, got %T", ret.Value)
	}
}

func TestParseWithComments(t *testing.T) {
	lit, ok := parseExpr(t, `"this is a comment" 42`).(*ast.Literal)
	if !ok {
		t.Fatalf("expected *ast.Literal, got %T", lit)
	}
	if lit.Kind != ast.LitInteger || lit.Int != 42 {
		t.Errorf("expected integer 42, got kind=%v int=%d", lit.Kind, lit.Int)
	}
}

func TestParseClassWithFieldsAndClassSide(t *testing.T) {
	src := `Counter = Object (
		|count|
		init = ( count := 0 )
		increment = ( count := count + 1 )
		count = ( ^count )
		----
		|total|
		new = ( ^self new init )
	)`

	p := New(src)
	classes, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(classes) != 1 {
		t.Fatalf("expected 1 class, got %d", len(classes))
	}
	cls := classes[0]
	if cls.Name != "Counter" {
		t.Errorf("expected class name Counter, got %s", cls.Name)
	}
	if cls.Superclass != "Object" {
		t.Errorf("expected superclass Object, got %s", cls.Superclass)
	}
	if len(cls.InstanceFields) != 1 || cls.InstanceFields[0] != "count" {
		t.Errorf("expected instance field [count], got %v", cls.InstanceFields)
	}
	if len(cls.InstanceMethods) != 3 {
		t.Fatalf("expected 3 instance methods, got %d", len(cls.InstanceMethods))
	}
	if len(cls.ClassFields) != 1 || cls.ClassFields[0] != "total" {
		t.Errorf("expected class field [total], got %v", cls.ClassFields)
	}
	if len(cls.ClassMethods) != 1 || cls.ClassMethods[0].Selector != "new" {
		t.Fatalf("expected one class method 'new', got %v", cls.ClassMethods)
	}
}

func TestParsePrimitiveMethod(t *testing.T) {
	src := `Integer = Object (
		+ other = primitive
	)`
	p := New(src)
	classes, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	m := classes[0].InstanceMethods[0]
	if !m.IsPrimitive {
		t.Errorf("expected IsPrimitive, got false")
	}
	if m.Selector != "+" || len(m.Params) != 1 || m.Params[0] != "other" {
		t.Errorf("unexpected binary pattern: selector=%s params=%v", m.Selector, m.Params)
	}
}

func TestParseBlockLiteralWithParamsAndLocals(t *testing.T) {
	expr := parseExpr(t, "[:x :y | |tmp| tmp := x + y. tmp]")
	block, ok := expr.(*ast.BlockLiteral)
	if !ok {
		t.Fatalf("expected *ast.BlockLiteral, got %T", expr)
	}
	if len(block.Params) != 2 || block.Params[0] != "x" || block.Params[1] != "y" {
		t.Errorf("unexpected params: %v", block.Params)
	}
	if len(block.Locals) != 1 || block.Locals[0] != "tmp" {
		t.Errorf("unexpected locals: %v", block.Locals)
	}
	if len(block.Body) != 2 {
		t.Fatalf("expected 2 body statements, got %d", len(block.Body))
	}
}

func TestParseArrayLiteralWithNestedAndBareSymbols(t *testing.T) {
	expr := parseExpr(t, "#(1 2 #(3 4) foo 'bar')")
	arr, ok := expr.(*ast.ArrayLiteral)
	if !ok {
		t.Fatalf("expected *ast.ArrayLiteral, got %T", expr)
	}
	if len(arr.Elements) != 5 {
		t.Fatalf("expected 5 elements, got %d", len(arr.Elements))
	}
	nested, ok := arr.Elements[2].(*ast.ArrayLiteral)
	if !ok {
		t.Fatalf("expected nested ArrayLiteral at index 2, got %T", arr.Elements[2])
	}
	if len(nested.Elements) != 2 {
		t.Errorf("expected 2 nested elements, got %d", len(nested.Elements))
	}
	bareSym, ok := arr.Elements[3].(*ast.Literal)
	if !ok || bareSym.Kind != ast.LitSymbol || bareSym.Str != "foo" {
		t.Errorf("expected bare word 'foo' to parse as symbol literal, got %#v", arr.Elements[3])
	}
}

func TestParseSuperSend(t *testing.T) {
	expr := parseExpr(t, "super printString")
	send, ok := expr.(*ast.SuperSend)
	if !ok {
		t.Fatalf("expected *ast.SuperSend, got %T", expr)
	}
	if send.Selector != "printString" {
		t.Errorf("expected selector printString, got %s", send.Selector)
	}
}

func TestParseChainedAssignment(t *testing.T) {
	expr := parseExpr(t, "x := y := 5")
	outer, ok := expr.(*ast.Assignment)
	if !ok {
		t.Fatalf("expected *ast.Assignment, got %T", expr)
	}
	if outer.Name != "x" {
		t.Errorf("expected outer target 'x', got %s", outer.Name)
	}
	inner, ok := outer.Value.(*ast.Assignment)
	if !ok {
		t.Fatalf("expected inner *ast.Assignment, got %T", outer.Value)
	}
	if inner.Name != "y" {
		t.Errorf("expected inner target 'y', got %s", inner.Name)
	}
}

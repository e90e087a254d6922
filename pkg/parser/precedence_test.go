package parser

import (
	"testing"

	"github.com/kristofer/smog/pkg/ast"
)

// TestParseUnaryBinaryPrecedence tests that unary messages have higher precedence than binary.
func TestParseUnaryBinaryPrecedence(t *testing.T) {
	expr := parseExpr(t, "arr size + 1")

	// Should be: (arr size) + 1 -- top level is binary "+"
	msg, ok := expr.(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected *ast.MessageSend, got %T", expr)
	}
	if msg.Selector != "+" {
		t.Errorf("expected top-level selector '+', got %s", msg.Selector)
	}

	receiverMsg, ok := msg.Receiver.(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected MessageSend receiver, got %T", msg.Receiver)
	}
	if receiverMsg.Selector != "size" {
		t.Errorf("expected receiver selector 'size', got %s", receiverMsg.Selector)
	}
}

// TestParseBinaryChaining tests that binary messages chain left-to-right.
func TestParseBinaryChaining(t *testing.T) {
	expr := parseExpr(t, "3 + 4 * 2")

	// Should be: (3 + 4) * 2 -- top level is binary "*"
	msg, ok := expr.(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected *ast.MessageSend, got %T", expr)
	}
	if msg.Selector != "*" {
		t.Errorf("expected top-level selector '*', got %s", msg.Selector)
	}

	receiverMsg, ok := msg.Receiver.(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected MessageSend receiver, got %T", msg.Receiver)
	}
	if receiverMsg.Selector != "+" {
		t.Errorf("expected receiver selector '+', got %s", receiverMsg.Selector)
	}
}

// TestParseUnaryChaining tests that unary messages chain left-to-right.
func TestParseUnaryChaining(t *testing.T) {
	expr := parseExpr(t, "x sqrt floor")

	// Should be: (x sqrt) floor -- top level is unary "floor"
	msg, ok := expr.(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected *ast.MessageSend, got %T", expr)
	}
	if msg.Selector != "floor" {
		t.Errorf("expected top-level selector 'floor', got %s", msg.Selector)
	}

	receiverMsg, ok := msg.Receiver.(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected MessageSend receiver, got %T", msg.Receiver)
	}
	if receiverMsg.Selector != "sqrt" {
		t.Errorf("expected receiver selector 'sqrt', got %s", receiverMsg.Selector)
	}
}

// TestParseKeywordWithBinaryArg tests that keyword message arguments can be binary expressions.
func TestParseKeywordWithBinaryArg(t *testing.T) {
	expr := parseExpr(t, "arr at: index + 1")

	msg, ok := expr.(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected *ast.MessageSend, got %T", expr)
	}
	if msg.Selector != "at:" {
		t.Errorf("expected selector 'at:', got %s", msg.Selector)
	}
	if len(msg.Args) != 1 {
		t.Fatalf("expected 1 argument, got %d", len(msg.Args))
	}

	argMsg, ok := msg.Args[0].(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected MessageSend argument, got %T", msg.Args[0])
	}
	if argMsg.Selector != "+" {
		t.Errorf("expected argument selector '+', got %s", argMsg.Selector)
	}
}

// TestParseComplexPrecedence tests an expression spanning all three precedence levels.
func TestParseComplexPrecedence(t *testing.T) {
	expr := parseExpr(t, "point x: a + b y: c size")

	msg, ok := expr.(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected *ast.MessageSend, got %T", expr)
	}
	if msg.Selector != "x:y:" {
		t.Errorf("expected selector 'x:y:', got %s", msg.Selector)
	}
	if len(msg.Args) != 2 {
		t.Fatalf("expected 2 arguments, got %d", len(msg.Args))
	}

	arg1Msg, ok := msg.Args[0].(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected MessageSend first argument, got %T", msg.Args[0])
	}
	if arg1Msg.Selector != "+" {
		t.Errorf("expected first argument selector '+', got %s", arg1Msg.Selector)
	}

	arg2Msg, ok := msg.Args[1].(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected MessageSend second argument, got %T", msg.Args[1])
	}
	if arg2Msg.Selector != "size" {
		t.Errorf("expected second argument selector 'size', got %s", arg2Msg.Selector)
	}
}

// TestParseKeywordReceiverIsBinaryExpression tests that the receiver of a
// keyword send is itself parsed down through the binary/unary tiers, not
// just a bare primary.
func TestParseKeywordReceiverIsBinaryExpression(t *testing.T) {
	expr := parseExpr(t, "1 + 2 max: 3")

	msg, ok := expr.(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected *ast.MessageSend, got %T", expr)
	}
	if msg.Selector != "max:" {
		t.Errorf("expected selector 'max:', got %s", msg.Selector)
	}
	receiver, ok := msg.Receiver.(*ast.MessageSend)
	if !ok {
		t.Fatalf("expected MessageSend receiver, got %T", msg.Receiver)
	}
	if receiver.Selector != "+" {
		t.Errorf("expected receiver selector '+', got %s", receiver.Selector)
	}
}

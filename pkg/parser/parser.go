// Package parser implements the smog language parser.
//
// The parser is responsible for converting a stream of tokens (from the lexer)
// into an Abstract Syntax Tree (AST). It performs syntactic analysis to ensure
// the code follows the grammar rules of the smog language.
//
// Parser Architecture:
//
// The parser uses a recursive descent parsing strategy, which means:
//   1. Each grammar rule corresponds to a parsing function
//   2. The parser looks ahead up to two tokens (via peekTok/peek2Tok) to
//      decide what to parse
//   3. Functions call each other recursively to handle nested structures
//
// Token Management:
//
// The parser maintains three tokens at all times:
//   - curTok: The current token being examined
//   - peekTok: The next token (one token lookahead)
//   - peek2Tok: The token after that (two token lookahead)
//
// The extra token of lookahead exists for exactly one reason: telling a
// unary message chain apart from the start of a keyword message requires
// knowing whether the identifier after the receiver is itself followed by
// a colon, without committing to either parse first.
//
// Grammar Overview:
//
//   Program       := ClassDef*
//   ClassDef      := Name "=" Identifier? "(" ClassBody ")"
//   ClassBody     := Fields? MethodDef* ("----" Fields? MethodDef*)?
//   Fields        := "|" Identifier* "|"
//   MethodDef     := Pattern "=" (Primitive | "(" Locals? Statement* ")")
//   Pattern       := Identifier                            -- unary
//                  | BinaryOp Identifier                    -- binary
//                  | (Identifier ":" Identifier)+           -- keyword
//   Statement     := "^"? Expression
//   Expression    := Identifier ":=" Expression
//                  | KeywordExpression
//   KeywordExpression := BinaryExpression (Identifier ":" BinaryExpression)*
//   BinaryExpression  := UnaryExpression (BinaryOp UnaryExpression)*
//   UnaryExpression   := Primary Identifier*
//   Primary       := Literal | Identifier | Block | Array | "(" Expression ")"
//
// Operator Precedence:
//
// Smalltalk-family message precedence, from tightest to loosest binding:
//   1. Unary messages:   object message
//   2. Binary messages:  object + other
//   3. Keyword messages: object key: arg key2: arg2
//
// All binary selectors share a single precedence level and are
// left-associative; there is no arithmetic precedence among + - * / etc.
// the way a conventional expression language has it.
//
// Error Handling:
//
// The parser accumulates errors in the `errors` slice rather than stopping
// at the first error. This allows reporting multiple syntax errors in one pass.
package parser

import (
	"fmt"
	"strconv"

	"github.com/kristofer/smog/pkg/ast"
	"github.com/kristofer/smog/pkg/lexer"
)

// Parser represents the smog parser.
//
// The parser is stateful and single-use: create a new parser for each
// source file or code snippet.
type Parser struct {
	l        *lexer.Lexer // Token source
	curTok   lexer.Token  // Current token
	peekTok  lexer.Token  // Next token (1-token lookahead)
	peek2Tok lexer.Token  // Token after that (2-token lookahead)
	errors   []string     // Accumulated error messages
}

// New creates a new parser for the given source code.
//
// Example:
//   p := parser.New("Counter = ( |count| init = ( count := 0 ) )")
//   classes, err := p.Parse()
func New(input string) *Parser {
	p := &Parser{
		l:      lexer.New(input),
		errors: []string{},
	}

	// Fill curTok, peekTok, peek2Tok.
	p.nextToken()
	p.nextToken()
	p.nextToken()

	return p
}

// nextToken advances the three-token lookahead window by one token.
func (p *Parser) nextToken() {
	p.curTok = p.peekTok
	p.peekTok = p.peek2Tok
	p.peek2Tok = p.l.NextToken()
}

// Errors returns the list of accumulated parsing errors.
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, msg)
}

// Parse parses the source file as a sequence of class definitions.
//
// A smog source file, unlike a flat script, is a list of top-level class
// definitions: `Name = Super ( ... ) Name2 = Super2 ( ... ) ...`.
func (p *Parser) Parse() ([]*ast.ClassDef, error) {
	var classes []*ast.ClassDef

	for p.curTok.Type != lexer.TokenEOF {
		cls := p.parseClassDef()
		if cls != nil {
			classes = append(classes, cls)
		}
		p.nextToken()
	}

	if len(p.errors) > 0 {
		return classes, fmt.Errorf("parser errors: %v", p.errors)
	}
	return classes, nil
}

// parseClassDef parses one class definition.
//
// Syntax:
//   Name = Superclass (
//       |instanceField1 instanceField2|
//       instanceMethod1 = ( ... )
//       instanceMethod2 = primitive
//       ----
//       |classField1|
//       classMethod1 = ( ... )
//   )
//
// The superclass name is optional; when absent the class inherits from
// Object. The "----" separator and everything after it (class-side fields
// and methods) is optional too.
func (p *Parser) parseClassDef() *ast.ClassDef {
	if p.curTok.Type != lexer.TokenIdentifier {
		p.addError(fmt.Sprintf("expected class name, got %s", p.curTok.Type))
		return nil
	}
	cls := &ast.ClassDef{Name: p.curTok.Literal}
	p.nextToken() // consume name, curTok = "="

	if p.curTok.Type != lexer.TokenEqual {
		p.addError("expected '=' after class name")
		return nil
	}
	p.nextToken() // curTok = superclass name or "("

	if p.curTok.Type == lexer.TokenIdentifier {
		cls.Superclass = p.curTok.Literal
		p.nextToken()
	}

	if p.curTok.Type != lexer.TokenLParen {
		p.addError("expected '(' to open class body")
		return nil
	}
	p.nextToken() // curTok = first token of class body

	cls.InstanceFields = p.parseOptionalFields()
	cls.InstanceMethods = p.parseMethodDefs()

	if p.curTok.Type == lexer.TokenClassSideSeparator {
		p.nextToken()
		cls.ClassFields = p.parseOptionalFields()
		cls.ClassMethods = p.parseMethodDefs()
	}

	if p.curTok.Type != lexer.TokenRParen {
		p.addError("expected ')' to close class body")
		return nil
	}
	return cls
}

// parseOptionalFields parses an optional `|name1 name2 ...|` field list.
// curTok on entry is the first token of whatever follows the opening "(",
// "----", or a previous field list; if it isn't "|", there are no fields.
func (p *Parser) parseOptionalFields() []string {
	if p.curTok.Type != lexer.TokenPipe {
		return nil
	}
	p.nextToken() // consume opening |

	var names []string
	for p.curTok.Type == lexer.TokenIdentifier {
		names = append(names, p.curTok.Literal)
		p.nextToken()
	}

	if p.curTok.Type != lexer.TokenPipe {
		p.addError("expected closing '|' in field list")
		return names
	}
	p.nextToken() // consume closing |
	return names
}

// parseMethodDefs parses zero or more method definitions until the class
// body's terminator ("----", ")") or EOF.
func (p *Parser) parseMethodDefs() []*ast.MethodDef {
	var methods []*ast.MethodDef
	for p.curTok.Type != lexer.TokenRParen &&
		p.curTok.Type != lexer.TokenClassSideSeparator &&
		p.curTok.Type != lexer.TokenEOF {
		m := p.parseMethodDef()
		if m != nil {
			methods = append(methods, m)
		} else {
			// Avoid looping forever on a malformed method; skip a token.
			p.nextToken()
		}
	}
	return methods
}

// parseMethodDef parses one method definition: a pattern, "=", and a body.
//
// The pattern shape (unary/binary/keyword) is determined purely by looking
// at curTok and peekTok before consuming anything irrevocably.
func (p *Parser) parseMethodDef() *ast.MethodDef {
	m := &ast.MethodDef{}

	switch {
	case p.curTok.Type == lexer.TokenIdentifier && p.peekTok.Type != lexer.TokenColon:
		// Unary pattern: a single selector, no parameters.
		m.Selector = p.curTok.Literal
		p.nextToken() // curTok = "="

	case p.isBinaryOperator(p.curTok.Type):
		// Binary pattern: one operator selector, one parameter.
		m.Selector = p.curTok.Literal
		p.nextToken() // curTok = parameter identifier
		if p.curTok.Type != lexer.TokenIdentifier {
			p.addError("expected parameter name in binary method pattern")
			return nil
		}
		m.Params = append(m.Params, p.curTok.Literal)
		p.nextToken() // curTok = "="

	case p.curTok.Type == lexer.TokenIdentifier && p.peekTok.Type == lexer.TokenColon:
		// Keyword pattern: one or more "key: param" pairs.
		var selector string
		for p.curTok.Type == lexer.TokenIdentifier && p.peekTok.Type == lexer.TokenColon {
			selector += p.curTok.Literal + ":"
			p.nextToken() // curTok = ":"
			p.nextToken() // curTok = parameter identifier
			if p.curTok.Type != lexer.TokenIdentifier {
				p.addError("expected parameter name in keyword method pattern")
				return nil
			}
			m.Params = append(m.Params, p.curTok.Literal)
			p.nextToken() // curTok = next keyword part, or "="
		}
		m.Selector = selector

	default:
		p.addError(fmt.Sprintf("expected method pattern, got %s", p.curTok.Type))
		return nil
	}

	if p.curTok.Type != lexer.TokenEqual {
		p.addError("expected '=' after method pattern")
		return nil
	}
	p.nextToken() // curTok = "primitive" or "("

	if p.curTok.Type == lexer.TokenIdentifier && p.curTok.Literal == "primitive" {
		m.IsPrimitive = true
		p.nextToken()
		return m
	}

	if p.curTok.Type != lexer.TokenLParen {
		p.addError("expected '(' or 'primitive' for method body")
		return nil
	}
	p.nextToken() // curTok = first token of method body

	m.Locals = p.parseOptionalFields()
	m.Body = p.parseStatements(lexer.TokenRParen)

	if p.curTok.Type != lexer.TokenRParen {
		p.addError("expected ')' to close method body")
		return nil
	}
	p.nextToken()
	return m
}

// parseStatements parses a sequence of statements, separated by ".",
// until the given terminator token is reached (")" for a method body,
// "]" for a block body). curTok on entry is the first token of the first
// statement, or already the terminator if the body is empty.
func (p *Parser) parseStatements(terminator lexer.TokenType) []ast.Statement {
	var stmts []ast.Statement

	for p.curTok.Type != terminator && p.curTok.Type != lexer.TokenEOF {
		var stmt ast.Statement
		if p.curTok.Type == lexer.TokenCaret {
			p.nextToken() // consume "^"
			stmt = &ast.Return{Value: p.parseExpression()}
		} else {
			stmt = p.parseExpression()
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}

		if p.peekTok.Type == lexer.TokenPeriod {
			p.nextToken() // curTok = "."
		}
		// Expressions leave curTok on their own last token, which may itself
		// be a ")" or "]" (an array literal, a parenthesized expression, a
		// block), so always step past it.
		p.nextToken() // advance to the next statement, or onto the terminator
	}

	return stmts
}

// parseExpression parses an assignment or, failing that, a keyword-level
// message send. Assignment is recognized by lookahead (identifier ":=")
// rather than being folded into the precedence chain, since its right-hand
// side is itself a full expression (`x := y := 5` is valid) rather than
// a message argument.
func (p *Parser) parseExpression() ast.Expression {
	if p.curTok.Type == lexer.TokenIdentifier && p.peekTok.Type == lexer.TokenAssign {
		return p.parseAssignment()
	}
	return p.parseKeywordExpression()
}

// parseAssignment parses `name := expr`. curTok on entry is the target
// identifier, already confirmed to be followed by TokenAssign.
func (p *Parser) parseAssignment() ast.Expression {
	name := p.curTok.Literal
	p.nextToken() // curTok = ":="
	p.nextToken() // curTok = first token of the value expression

	value := p.parseExpression()
	if value == nil {
		return nil
	}
	return &ast.Assignment{Name: name, Value: value}
}

// parseKeywordExpression parses a binary-expression receiver followed by
// zero or more keyword parts, e.g. `array at: i put: v`. Keyword messages
// bind loosest: the whole binary-expression to their left is the receiver,
// and each argument is itself a full binary-expression.
func (p *Parser) parseKeywordExpression() ast.Expression {
	receiver := p.parseBinaryExpression()
	if receiver == nil {
		return nil
	}

	if p.peekTok.Type != lexer.TokenIdentifier || p.peek2Tok.Type != lexer.TokenColon {
		return receiver
	}

	var selector string
	var args []ast.Expression
	for p.peekTok.Type == lexer.TokenIdentifier && p.peek2Tok.Type == lexer.TokenColon {
		p.nextToken() // curTok = keyword part identifier
		selector += p.curTok.Literal + ":"
		p.nextToken() // curTok = ":"
		p.nextToken() // curTok = first token of the argument

		arg := p.parseBinaryExpression()
		if arg == nil {
			return nil
		}
		args = append(args, arg)
	}
	return p.buildSend(receiver, selector, args)
}

// parseBinaryExpression parses a chain of left-associative binary sends,
// e.g. `3 + 4 * 5` which is `(3 + 4) * 5` (all binary selectors share one
// precedence level — there is no arithmetic precedence).
func (p *Parser) parseBinaryExpression() ast.Expression {
	left := p.parseUnaryExpression()
	if left == nil {
		return nil
	}

	for p.isBinaryOperator(p.peekTok.Type) {
		p.nextToken() // curTok = operator
		op := p.curTok.Literal
		p.nextToken() // curTok = first token of the right operand

		right := p.parseUnaryExpression()
		if right == nil {
			return nil
		}
		left = p.buildSend(left, op, []ast.Expression{right})
	}
	return left
}

// parseUnaryExpression parses a chain of left-associative unary sends,
// e.g. `3 factorial printString`. An identifier continues the chain only
// when it is NOT itself followed by ":" — that shape belongs to a keyword
// message, one precedence level up, and must not be consumed here.
func (p *Parser) parseUnaryExpression() ast.Expression {
	left := p.parsePrimary()
	if left == nil {
		return nil
	}

	for p.peekTok.Type == lexer.TokenIdentifier && p.peek2Tok.Type != lexer.TokenColon {
		p.nextToken() // curTok = selector identifier
		left = p.buildSend(left, p.curTok.Literal, nil)
	}
	return left
}

// buildSend builds a MessageSend, or a SuperSend when the receiver is the
// pseudo-variable `super`. There is no dedicated lexer token for super; it
// parses as an ordinary identifier and is recognized here by name, the
// same way self-evaluating pseudo-variables are recognized by the
// compiler rather than the lexer.
func (p *Parser) buildSend(receiver ast.Expression, selector string, args []ast.Expression) ast.Expression {
	if id, ok := receiver.(*ast.Identifier); ok && id.Name == "super" {
		return &ast.SuperSend{Selector: selector, Args: args}
	}
	return &ast.MessageSend{Receiver: receiver, Selector: selector, Args: args}
}

// isBinaryOperator reports whether a token type is a binary-message
// selector token.
func (p *Parser) isBinaryOperator(tt lexer.TokenType) bool {
	switch tt {
	case lexer.TokenPlus, lexer.TokenMinus, lexer.TokenStar, lexer.TokenSlash,
		lexer.TokenPercent, lexer.TokenLess, lexer.TokenGreater,
		lexer.TokenLessEq, lexer.TokenGreaterEq, lexer.TokenEqual,
		lexer.TokenNotEqual, lexer.TokenComma:
		return true
	default:
		return false
	}
}

// parsePrimary parses a literal, identifier, block, array, or parenthesized
// sub-expression — the atoms that unary and binary sends chain off of.
func (p *Parser) parsePrimary() ast.Expression {
	switch p.curTok.Type {
	case lexer.TokenInteger:
		return p.parseIntegerLiteral()
	case lexer.TokenFloat:
		return p.parseFloatLiteral()
	case lexer.TokenString:
		return &ast.Literal{Kind: ast.LitString, Str: p.curTok.Literal}
	case lexer.TokenSymbol:
		return &ast.Literal{Kind: ast.LitSymbol, Str: p.curTok.Literal}
	case lexer.TokenTrue:
		return &ast.Literal{Kind: ast.LitBoolean, Int: 1}
	case lexer.TokenFalse:
		return &ast.Literal{Kind: ast.LitBoolean, Int: 0}
	case lexer.TokenNil:
		return &ast.Literal{Kind: ast.LitNil}
	case lexer.TokenIdentifier:
		return &ast.Identifier{Name: p.curTok.Literal}
	case lexer.TokenLBracket:
		return p.parseBlockLiteral()
	case lexer.TokenHashLParen:
		return p.parseArrayLiteral()
	case lexer.TokenLParen:
		p.nextToken() // curTok = first token of inner expression
		expr := p.parseExpression()
		if p.peekTok.Type != lexer.TokenRParen {
			p.addError("expected ')' to close parenthesized expression")
			return nil
		}
		p.nextToken() // curTok = ")"
		return expr
	default:
		p.addError(fmt.Sprintf("unexpected token: %s", p.curTok.Type))
		return nil
	}
}

// parseIntegerLiteral converts the current token's text to an *ast.Literal.
func (p *Parser) parseIntegerLiteral() ast.Expression {
	v, err := strconv.ParseInt(p.curTok.Literal, 10, 64)
	if err != nil {
		p.addError(fmt.Sprintf("could not parse %q as integer", p.curTok.Literal))
		return nil
	}
	return &ast.Literal{Kind: ast.LitInteger, Int: v}
}

// parseFloatLiteral converts the current token's text to an *ast.Literal.
func (p *Parser) parseFloatLiteral() ast.Expression {
	v, err := strconv.ParseFloat(p.curTok.Literal, 64)
	if err != nil {
		p.addError(fmt.Sprintf("could not parse %q as float", p.curTok.Literal))
		return nil
	}
	return &ast.Literal{Kind: ast.LitDouble, Float: v}
}

// parseBlockLiteral parses `[ :p1 :p2 | |locals| statements ]`. Both the
// parameter list and the local-variable list are optional.
func (p *Parser) parseBlockLiteral() ast.Expression {
	p.nextToken() // consume "[", curTok = first token inside

	var params []string
	for p.curTok.Type == lexer.TokenColon {
		p.nextToken() // consume ":"
		if p.curTok.Type != lexer.TokenIdentifier {
			p.addError("expected parameter name after ':'")
			return nil
		}
		params = append(params, p.curTok.Literal)
		p.nextToken()
	}
	if len(params) > 0 {
		if p.curTok.Type != lexer.TokenPipe {
			p.addError("expected '|' after block parameters")
			return nil
		}
		p.nextToken() // consume the parameter-closing "|"
	}

	locals := p.parseOptionalFields()
	body := p.parseStatements(lexer.TokenRBracket)

	if p.curTok.Type != lexer.TokenRBracket {
		p.addError("expected ']' to close block")
		return nil
	}
	return &ast.BlockLiteral{Params: params, Locals: locals, Body: body}
}

// parseArrayLiteral parses `#(1 2 #foo 'bar' #(nested))`. Array literal
// elements are themselves restricted to literals (including nested array
// literals), never arbitrary expressions.
func (p *Parser) parseArrayLiteral() ast.Expression {
	p.nextToken() // consume "#(", curTok = first element or ")"

	var elements []ast.Expression
	for p.curTok.Type != lexer.TokenRParen && p.curTok.Type != lexer.TokenEOF {
		elem := p.parseArrayLiteralElement()
		if elem != nil {
			elements = append(elements, elem)
		}
		p.nextToken()
	}

	if p.curTok.Type != lexer.TokenRParen {
		p.addError("expected ')' to close array literal")
		return nil
	}
	return &ast.ArrayLiteral{Elements: elements}
}

// parseArrayLiteralElement parses one element of an array literal: a
// nested array literal, or any other literal token.
func (p *Parser) parseArrayLiteralElement() ast.Expression {
	switch p.curTok.Type {
	case lexer.TokenHashLParen:
		return p.parseArrayLiteral()
	case lexer.TokenInteger:
		return p.parseIntegerLiteral()
	case lexer.TokenFloat:
		return p.parseFloatLiteral()
	case lexer.TokenString:
		return &ast.Literal{Kind: ast.LitString, Str: p.curTok.Literal}
	case lexer.TokenSymbol:
		return &ast.Literal{Kind: ast.LitSymbol, Str: p.curTok.Literal}
	case lexer.TokenTrue:
		return &ast.Literal{Kind: ast.LitBoolean, Int: 1}
	case lexer.TokenFalse:
		return &ast.Literal{Kind: ast.LitBoolean, Int: 0}
	case lexer.TokenNil:
		return &ast.Literal{Kind: ast.LitNil}
	case lexer.TokenIdentifier:
		// A bare word inside #(...) is a shorthand symbol literal, e.g.
		// #(foo bar) is equivalent to #(#foo #bar).
		return &ast.Literal{Kind: ast.LitSymbol, Str: p.curTok.Literal}
	default:
		p.addError(fmt.Sprintf("unexpected token in array literal: %s", p.curTok.Type))
		return nil
	}
}

// Package parser implements a recursive-descent parser over the lexer's
// token stream, producing an internal/ast tree: a Parser struct walking a
// token slice by index, an Errors accumulator rather than panicking on the
// first bad token, and one parse method per grammar production.
//
// Like internal/lexer, this is deliberately minimal front-end scaffolding:
// just enough surface for the end-to-end tests to drive the pipeline from
// source text.
package parser

import (
	"pl0c/internal/ast"
	"pl0c/internal/diag"
	"pl0c/internal/lexer"
)

// Parser consumes a token slice and builds an *ast.Node tree.
type Parser struct {
	tokens  []lexer.Token
	current int
	file    string

	Errors []error

	// returnName tracks the innermost enclosing procedure's return
	// identifier, if any, so a "return expr" statement can bind its target
	// without needing a later symbol-table pass.
	returnName string
}

// New constructs a Parser over tokens, attributing diagnostics to file.
func New(file string, tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens, file: file}
}

// ParseProgram parses the entire token stream as one program: a block
// followed by a terminating period.
func (p *Parser) ParseProgram() *ast.Node {
	program := p.parseBlock()
	p.expect(lexer.TokenPeriod, "'.'")
	return program
}

func (p *Parser) parseBlock() *ast.Node {
	block := &ast.Node{Kind: ast.KindBlockStmt, Line: p.peek().Line, Col: p.peek().Col}

	for p.check(lexer.TokenConst) {
		p.advance()
		for {
			name := p.expectIdent()
			p.expect(lexer.TokenEqual, "'='")
			value := p.expectNumber()
			block.Stmts = append(block.Stmts, &ast.Node{Kind: ast.KindConstDecl, Name: name, ConstValue: value})
			if !p.match(lexer.TokenComma) {
				break
			}
		}
		p.expect(lexer.TokenSemi, "';'")
	}

	for p.check(lexer.TokenVar) {
		p.advance()
		for {
			block.Stmts = append(block.Stmts, p.parseVarDecl())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
		p.expect(lexer.TokenSemi, "';'")
	}

	for p.check(lexer.TokenProcedure) {
		block.Stmts = append(block.Stmts, p.parseProcDecl())
	}

	if stmt := p.tryParseStatement(); stmt != nil {
		block.Stmts = append(block.Stmts, stmt)
	}

	return block
}

func (p *Parser) parseVarDecl() *ast.Node {
	if p.match(lexer.TokenLBrack) {
		size := p.expectNumber()
		p.expect(lexer.TokenRBrack, "']'")
		name := p.expectIdent()
		return &ast.Node{Kind: ast.KindVarDecl, Name: name, IsArray: true, ArraySize: uint64(size)}
	}
	name := p.expectIdent()
	return &ast.Node{Kind: ast.KindVarDecl, Name: name}
}

func (p *Parser) parseProcDecl() *ast.Node {
	p.expect(lexer.TokenProcedure, "'procedure'")
	name := p.expectIdent()
	n := &ast.Node{Kind: ast.KindProcDecl, Name: name}

	p.expect(lexer.TokenLParen, "'('")
	if !p.check(lexer.TokenRParen) {
		for {
			n.Params = append(n.Params, p.expectIdent())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.expect(lexer.TokenRParen, "')'")

	if p.match(lexer.TokenReturns) {
		n.HasReturn = true
		n.ReturnName = p.expectIdent()
	}
	p.expect(lexer.TokenSemi, "';'")

	savedReturn := p.returnName
	p.returnName = n.ReturnName
	n.Body = p.parseBlock()
	p.returnName = savedReturn

	p.expect(lexer.TokenSemi, "';'")
	return n
}

// tryParseStatement parses one statement, or returns nil if the next token
// cannot begin one (an empty statement — the bare "." program has no
// statement at all).
func (p *Parser) tryParseStatement() *ast.Node {
	switch p.peek().Type {
	case lexer.TokenIdent:
		return p.parseAssign()
	case lexer.TokenCall:
		return p.parseCall()
	case lexer.TokenRead:
		return p.parseRead()
	case lexer.TokenWrite:
		return p.parseWrite()
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenBegin:
		return p.parseBeginEnd()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseWhile()
	default:
		return nil
	}
}

func (p *Parser) parseStatementRequired() *ast.Node {
	if s := p.tryParseStatement(); s != nil {
		return s
	}
	p.errorf("expected statement, got %s", p.peek().Type)
	return &ast.Node{Kind: ast.KindBlockStmt}
}

func (p *Parser) parseAssign() *ast.Node {
	tok := p.advance()
	name := tok.Lexeme
	if p.match(lexer.TokenLBrack) {
		index := p.parseExpression()
		p.expect(lexer.TokenRBrack, "']'")
		p.expect(lexer.TokenAssign, "':='")
		value := p.parseExpression()
		return &ast.Node{Kind: ast.KindIndexAssign, Target: name, Index: index, Value: value, Line: tok.Line, Col: tok.Col}
	}
	p.expect(lexer.TokenAssign, "':='")
	value := p.parseExpression()
	return &ast.Node{Kind: ast.KindAssign, Target: name, Value: value, Line: tok.Line, Col: tok.Col}
}

func (p *Parser) parseCall() *ast.Node {
	tok := p.expect(lexer.TokenCall, "'call'")
	name := p.expectIdent()
	n := &ast.Node{Kind: ast.KindCallStmt, Callee: name, Line: tok.Line, Col: tok.Col}
	if p.match(lexer.TokenLParen) {
		if !p.check(lexer.TokenRParen) {
			for {
				n.Args = append(n.Args, p.parseExpression())
				if !p.match(lexer.TokenComma) {
					break
				}
			}
		}
		p.expect(lexer.TokenRParen, "')'")
	}
	return n
}

func (p *Parser) parseRead() *ast.Node {
	tok := p.expect(lexer.TokenRead, "'read'")
	name := p.expectIdent()
	return &ast.Node{Kind: ast.KindReadStmt, Name: name, Line: tok.Line, Col: tok.Col}
}

func (p *Parser) parseWrite() *ast.Node {
	tok := p.expect(lexer.TokenWrite, "'write'")
	expr := p.parseExpression()
	return &ast.Node{Kind: ast.KindWriteStmt, Expr: expr, Line: tok.Line, Col: tok.Col}
}

func (p *Parser) parseReturn() *ast.Node {
	tok := p.expect(lexer.TokenReturn, "'return'")
	expr := p.parseExpression()
	if p.returnName == "" {
		p.errorAt(tok, "'return' used outside a procedure with a declared return value")
	}
	return &ast.Node{Kind: ast.KindReturnStmt, Target: p.returnName, Expr: expr, Line: tok.Line, Col: tok.Col}
}

func (p *Parser) parseBeginEnd() *ast.Node {
	tok := p.expect(lexer.TokenBegin, "'begin'")
	n := &ast.Node{Kind: ast.KindBlockStmt, Line: tok.Line, Col: tok.Col}
	n.Stmts = append(n.Stmts, p.parseStatementRequired())
	for p.match(lexer.TokenSemi) {
		n.Stmts = append(n.Stmts, p.parseStatementRequired())
	}
	p.expect(lexer.TokenEnd, "'end'")
	return n
}

func (p *Parser) parseIf() *ast.Node {
	tok := p.expect(lexer.TokenIf, "'if'")
	cond := p.parseCondition()
	p.expect(lexer.TokenThen, "'then'")
	then := p.parseStatementRequired()
	return &ast.Node{Kind: ast.KindIfStmt, Cond: cond, Then: then, Line: tok.Line, Col: tok.Col}
}

func (p *Parser) parseWhile() *ast.Node {
	tok := p.expect(lexer.TokenWhile, "'while'")
	cond := p.parseCondition()
	p.expect(lexer.TokenDo, "'do'")
	then := p.parseStatementRequired()
	return &ast.Node{Kind: ast.KindWhileStmt, Cond: cond, Then: then, Line: tok.Line, Col: tok.Col}
}

func (p *Parser) parseCondition() *ast.Node {
	if tok := p.peek(); tok.Type == lexer.TokenOdd {
		p.advance()
		operand := p.parseExpression()
		return &ast.Node{Kind: ast.KindOddExpr, Operand: operand, Line: tok.Line, Col: tok.Col}
	}
	left := p.parseExpression()
	opTok := p.advance()
	op, ok := compareOps[opTok.Type]
	if !ok {
		p.errorAt(opTok, "expected a comparison operator, got %s", opTok.Type)
		op = "="
	}
	right := p.parseExpression()
	return &ast.Node{Kind: ast.KindBinaryExpr, Op: string(op), Left: left, Right: right, Line: opTok.Line, Col: opTok.Col}
}

var compareOps = map[lexer.TokenType]ast.CompareOp{
	lexer.TokenEqual: ast.CmpEQ,
	lexer.TokenHash:  ast.CmpNE,
	lexer.TokenLT:    ast.CmpLT,
	lexer.TokenGT:    ast.CmpGT,
	lexer.TokenLE:    ast.CmpLE,
	lexer.TokenGE:    ast.CmpGE,
}

func (p *Parser) parseExpression() *ast.Node {
	var left *ast.Node
	if tok := p.peek(); tok.Type == lexer.TokenPlus || tok.Type == lexer.TokenMinus {
		p.advance()
		operand := p.parseTerm()
		if tok.Type == lexer.TokenMinus {
			left = &ast.Node{Kind: ast.KindUnaryExpr, Operand: operand, Line: tok.Line, Col: tok.Col}
		} else {
			left = operand
		}
	} else {
		left = p.parseTerm()
	}

	for p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) {
		opTok := p.advance()
		right := p.parseTerm()
		left = &ast.Node{Kind: ast.KindBinaryExpr, Op: opTok.Lexeme, Left: left, Right: right, Line: opTok.Line, Col: opTok.Col}
	}
	return left
}

func (p *Parser) parseTerm() *ast.Node {
	left := p.parseFactor()
	for p.check(lexer.TokenStar) || p.check(lexer.TokenSlash) {
		opTok := p.advance()
		right := p.parseFactor()
		left = &ast.Node{Kind: ast.KindBinaryExpr, Op: opTok.Lexeme, Left: left, Right: right, Line: opTok.Line, Col: opTok.Col}
	}
	return left
}

func (p *Parser) parseFactor() *ast.Node {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenIdent:
		p.advance()
		if p.match(lexer.TokenLBrack) {
			index := p.parseExpression()
			p.expect(lexer.TokenRBrack, "']'")
			return &ast.Node{Kind: ast.KindIndexExpr, Ident: tok.Lexeme, ArrayIndex: index, Line: tok.Line, Col: tok.Col}
		}
		return &ast.Node{Kind: ast.KindIdentExpr, Ident: tok.Lexeme, Line: tok.Line, Col: tok.Col}
	case lexer.TokenNumber:
		p.advance()
		return &ast.Node{Kind: ast.KindNumberExpr, NumberValue: parseInt(tok.Lexeme), Line: tok.Line, Col: tok.Col}
	case lexer.TokenLParen:
		p.advance()
		expr := p.parseExpression()
		p.expect(lexer.TokenRParen, "')'")
		return expr
	default:
		p.errorAt(tok, "expected an expression, got %s", tok.Type)
		p.advance()
		return &ast.Node{Kind: ast.KindNumberExpr, NumberValue: 0, Line: tok.Line, Col: tok.Col}
	}
}

func parseInt(s string) int64 {
	var v int64
	for i := 0; i < len(s); i++ {
		v = v*10 + int64(s[i]-'0')
	}
	return v
}

// --- token-stream plumbing ---

func (p *Parser) peek() lexer.Token { return p.tokens[p.current] }

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.current]
	if p.current < len(p.tokens)-1 {
		p.current++
	}
	return tok
}

func (p *Parser) check(t lexer.TokenType) bool { return p.peek().Type == t }

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(t lexer.TokenType, want string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	tok := p.peek()
	p.errorAt(tok, "expected %s, got %s %q", want, tok.Type, tok.Lexeme)
	return tok
}

func (p *Parser) expectIdent() string {
	tok := p.expect(lexer.TokenIdent, "an identifier")
	return tok.Lexeme
}

func (p *Parser) expectNumber() int64 {
	tok := p.expect(lexer.TokenNumber, "a number")
	return parseInt(tok.Lexeme)
}

func (p *Parser) errorAt(tok lexer.Token, format string, args ...interface{}) {
	p.Errors = append(p.Errors, diag.NewSyntax(p.file, tok.Line, tok.Col, format, args...))
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errorAt(p.peek(), format, args...)
}

package parser

import (
	"testing"

	"pl0c/internal/ast"
	"pl0c/internal/lexer"
)

func parse(t *testing.T, src string) *Parser {
	t.Helper()
	toks := lexer.NewScanner(src).ScanTokens()
	p := New("test.pl0", toks)
	p.ParseProgram()
	return p
}

func assertParseSuccess(t *testing.T, src string) *ast.Node {
	t.Helper()
	toks := lexer.NewScanner(src).ScanTokens()
	p := New("test.pl0", toks)
	program := p.ParseProgram()
	if len(p.Errors) > 0 {
		t.Fatalf("unexpected parse errors for %q: %v", src, p.Errors)
	}
	return program
}

func assertParseError(t *testing.T, src string) {
	t.Helper()
	p := parse(t, src)
	if len(p.Errors) == 0 {
		t.Fatalf("expected a parse error for %q, got none", src)
	}
}

func TestParseEmptyProgram(t *testing.T) {
	program := assertParseSuccess(t, ".")
	if len(program.Stmts) != 0 {
		t.Fatalf("expected zero statements, got %d", len(program.Stmts))
	}
}

func TestParseVarDeclAndAssignment(t *testing.T) {
	program := assertParseSuccess(t, "var x; begin x := 7 end .")
	if len(program.Stmts) != 2 {
		t.Fatalf("expected a var decl and a begin/end block, got %d stmts", len(program.Stmts))
	}
	if program.Stmts[0].Kind != ast.KindVarDecl || program.Stmts[0].Name != "x" {
		t.Fatalf("unexpected first stmt: %+v", program.Stmts[0])
	}
}

func TestParseArrayVarDecl(t *testing.T) {
	program := assertParseSuccess(t, "var [16] a; begin a[0] := 1 end .")
	decl := program.Stmts[0]
	if !decl.IsArray || decl.ArraySize != 16 || decl.Name != "a" {
		t.Fatalf("unexpected array decl: %+v", decl)
	}
}

func TestParseWhileLoop(t *testing.T) {
	program := assertParseSuccess(t, "var i; begin i := 0; while i < 16 do i := i + 1 end .")
	block := program.Stmts[1]
	if block.Kind != ast.KindBlockStmt || len(block.Stmts) != 2 {
		t.Fatalf("unexpected block: %+v", block)
	}
	loop := block.Stmts[1]
	if loop.Kind != ast.KindWhileStmt {
		t.Fatalf("expected while stmt, got %+v", loop)
	}
	if loop.Cond.Kind != ast.KindBinaryExpr || loop.Cond.Op != string(ast.CmpLT) {
		t.Fatalf("unexpected condition: %+v", loop.Cond)
	}
}

func TestParseProcedureWithReturnBindsTargetAtParseTime(t *testing.T) {
	program := assertParseSuccess(t, "procedure p() returns r; begin r := 1; return r end; call p.")
	proc := program.Stmts[0]
	if proc.Kind != ast.KindProcDecl || !proc.HasReturn || proc.ReturnName != "r" {
		t.Fatalf("unexpected procedure decl: %+v", proc)
	}
	body := proc.Body.Stmts[0]
	returnStmt := body.Stmts[1]
	if returnStmt.Kind != ast.KindReturnStmt || returnStmt.Target != "r" {
		t.Fatalf("expected return target bound to %q, got %+v", "r", returnStmt)
	}
}

func TestParseOddCondition(t *testing.T) {
	program := assertParseSuccess(t, "var x; begin if odd x then x := 1 end .")
	ifStmt := program.Stmts[1].Stmts[0]
	if ifStmt.Cond.Kind != ast.KindOddExpr {
		t.Fatalf("expected odd expr, got %+v", ifStmt.Cond)
	}
}

func TestParseReturnOutsideProcedureIsAnError(t *testing.T) {
	assertParseError(t, "begin return 1 end .")
}

func TestParseMissingPeriodIsAnError(t *testing.T) {
	assertParseError(t, "var x")
}

func TestParseProcedureCallWithArgs(t *testing.T) {
	program := assertParseSuccess(t, "procedure p(a, b); begin a := b end; call p(1, 2).")
	call := program.Stmts[1]
	if call.Kind != ast.KindCallStmt || call.Callee != "p" || len(call.Args) != 2 {
		t.Fatalf("unexpected call stmt: %+v", call)
	}
}

package ast_test

import (
	"strings"
	"testing"

	"pl0c/internal/ast"
	"pl0c/internal/compctx"
	"pl0c/internal/lexer"
	"pl0c/internal/parser"
	"pl0c/internal/symtab"
	"pl0c/internal/tac"
)

func parseOK(t *testing.T, src string) *ast.Node {
	t.Helper()
	toks := lexer.NewScanner(src).ScanTokens()
	p := parser.New("test.pl0", toks)
	program := p.ParseProgram()
	if len(p.Errors) > 0 {
		t.Fatalf("unexpected parse errors for %q: %v", src, p.Errors)
	}
	return program
}

func TestTypeCheckUndefinedVariableIsSemanticError(t *testing.T) {
	program := parseOK(t, "begin x := 1 end .")
	_, err := ast.TypeCheck(program, symtab.NewGlobal())
	if err == nil {
		t.Fatal("expected a semantic error for assignment to an undefined variable")
	}
}

func TestTypeCheckValidProgram(t *testing.T) {
	program := parseOK(t, "var x; begin x := 7 end .")
	if _, err := ast.TypeCheck(program, symtab.NewGlobal()); err != nil {
		t.Fatalf("unexpected type error: %v", err)
	}
}

func TestTypeCheckProcedureBodyResolvesParams(t *testing.T) {
	program := parseOK(t, "procedure p(a); begin a := a + 1 end; call p(1) .")
	if _, err := ast.TypeCheck(program, symtab.NewGlobal()); err != nil {
		t.Fatalf("unexpected type error, procedure body should see its own parameter: %v", err)
	}
	proc := program.Stmts[0]
	if proc.ProcScope == nil {
		t.Fatal("expected TypeCheck to populate ProcScope on the procedure node")
	}
	if _, _, ok := proc.ProcScope.Lookup("a"); !ok {
		t.Fatal("expected parameter 'a' to be bound in the procedure's nested scope")
	}
}

func TestTypeCheckCallArgCountMismatch(t *testing.T) {
	program := parseOK(t, "procedure p(a); begin a := a end; call p(1, 2) .")
	if _, err := ast.TypeCheck(program, symtab.NewGlobal()); err == nil {
		t.Fatal("expected a semantic error for an argument-count mismatch")
	}
}

func TestTypeCheckAssignToConstantIsAnError(t *testing.T) {
	program := parseOK(t, "const c = 5; begin c := 1 end .")
	if _, err := ast.TypeCheck(program, symtab.NewGlobal()); err == nil {
		t.Fatal("expected a semantic error for assignment to a constant")
	}
}

func generate(t *testing.T, src string) []tac.Instruction {
	t.Helper()
	program := parseOK(t, src)
	global := symtab.NewGlobal()
	if _, err := ast.TypeCheck(program, global); err != nil {
		t.Fatalf("unexpected type error: %v", err)
	}
	gen := tac.NewGenerator(compctx.New())
	ast.GenerateCode(program, gen, global)
	return gen.Code
}

func opSequence(code []tac.Instruction) []tac.Op {
	ops := make([]tac.Op, len(code))
	for i, inst := range code {
		ops[i] = inst.Op
	}
	return ops
}

func TestGenerateCodeSimpleAssignment(t *testing.T) {
	code := generate(t, "var x; begin x := 7 end .")
	ops := opSequence(code)
	// var x -> ASSIGN (declaration); x := 7 -> ASSIGN
	if len(ops) != 2 || ops[0] != tac.ASSIGN || ops[1] != tac.ASSIGN {
		t.Fatalf("unexpected op sequence: %v", ops)
	}
	if code[1].Result != "x" {
		t.Fatalf("expected assignment to target x, got %q", code[1].Result)
	}
}

func TestGenerateCodeWhileLoopShape(t *testing.T) {
	code := generate(t, "var i; begin i := 0; while i < 16 do i := i + 1 end .")
	var sawHeaderLabel, sawJumpZero, sawUncondJump bool
	for _, inst := range code {
		switch inst.Op {
		case tac.LABEL:
			sawHeaderLabel = true
		case tac.JMP_ZERO:
			sawJumpZero = true
		case tac.UNCOND_JMP:
			sawUncondJump = true
		}
	}
	if !sawHeaderLabel || !sawJumpZero || !sawUncondJump {
		t.Fatalf("expected a label, a JMP_ZERO and an UNCOND_JMP in a while loop, got ops %v", opSequence(code))
	}
}

func TestGenerateCodeProcedureUsesItsOwnScope(t *testing.T) {
	code := generate(t, "procedure p(a) returns r; begin r := a + 1; return r end; call p(1) .")
	var sawEnter, sawExit, sawParam, sawRetval, sawCall bool
	for _, inst := range code {
		switch inst.Op {
		case tac.ENTER_PROC:
			sawEnter = true
		case tac.EXIT_PROC:
			sawExit = true
		case tac.PROC_PARAM:
			sawParam = true
		case tac.RETVAL:
			sawRetval = true
		case tac.CALL:
			sawCall = true
			if !strings.HasPrefix(inst.Arg1, "$Lp") {
				t.Fatalf("expected call target to be rewritten to a label form, got %q", inst.Arg1)
			}
		}
	}
	if !sawEnter || !sawExit || !sawParam || !sawRetval || !sawCall {
		t.Fatalf("missing expected procedure-related ops in %v", opSequence(code))
	}
}

func TestGenerateCodeOddLoweringUsesDivMultNotEquals(t *testing.T) {
	code := generate(t, "var x; begin if odd x then x := 1 end .")
	var sawDiv, sawMult, sawNotEquals bool
	for _, inst := range code {
		switch inst.Op {
		case tac.DIV:
			sawDiv = true
		case tac.MULT:
			sawMult = true
		case tac.NOT_EQUALS:
			sawNotEquals = true
		}
	}
	if !sawDiv || !sawMult || !sawNotEquals {
		t.Fatalf("expected odd to lower through DIV/MULT/NOT_EQUALS, got %v", opSequence(code))
	}
}

func TestGenerateCodeIndexAssignUsesArrayIndex(t *testing.T) {
	code := generate(t, "var [4] a; begin a[1] := 9 end .")
	var sawArrayIndex bool
	for _, inst := range code {
		if inst.Op == tac.ARRAY_INDEX {
			sawArrayIndex = true
		}
	}
	if !sawArrayIndex {
		t.Fatalf("expected an ARRAY_INDEX instruction, got %v", opSequence(code))
	}
}

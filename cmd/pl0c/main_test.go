package main

import (
	"strings"
	"testing"
)

func mustCompile(t *testing.T, src string, vectorize bool) string {
	t.Helper()
	asm, err := compile("test.pl0", src, vectorize)
	if err != nil {
		t.Fatalf("unexpected compile error for %q: %v", src, err)
	}
	return asm
}

// Golden scenario 1: the empty program compiles to an entry
// point with no user instructions.
func TestCompileEmptyProgram(t *testing.T) {
	asm := mustCompile(t, ".", false)
	if !strings.Contains(asm, "_start") {
		t.Fatalf("expected an entry point label in output, got:\n%s", asm)
	}
}

// Golden scenario 2: a single global assignment.
func TestCompileGlobalAssignment(t *testing.T) {
	asm := mustCompile(t, "var x; begin x := 7 end .", false)
	if !strings.Contains(asm, "movq $7") {
		t.Fatalf("expected the literal 7 to be moved somewhere, got:\n%s", asm)
	}
}

// Golden scenario 3: the preprocessor's redundant-rewrite peephole should
// collapse "x := x + 1" into a single arithmetic instruction rather than a
// temp-then-copy pair. TAC is not visible from here, so this only checks
// that the program compiles to non-empty assembly.
func TestCompileArithmeticIntoSelf(t *testing.T) {
	asm := mustCompile(t, "var x; begin x := x + 1 end .", false)
	if asm == "" {
		t.Fatal("expected non-empty assembly")
	}
}

// Golden scenario 4: a while loop summing 0..9, without vectorization.
func TestCompileWhileLoopNoVectorize(t *testing.T) {
	asm := mustCompile(t, "var i; var s; begin i := 0; s := 0; while i < 10 do begin s := s + i; i := i + 1 end end .", false)
	if strings.Contains(asm, "vmovdqu") || strings.Contains(asm, "vpaddq") {
		t.Fatalf("expected no vector instructions without -v, got:\n%s", asm)
	}
}

// Golden scenario 5: a vectorizable array loop, with and without -v.
const vectorizableLoopSrc = `var i; var [16] a; begin i := 0; while i < 16 do begin a[i] := 1; i := i + 1 end end.`

func TestCompileVectorizableLoopWithoutFlagStaysScalar(t *testing.T) {
	asm := mustCompile(t, vectorizableLoopSrc, false)
	if strings.Contains(asm, "vmovdqu") || strings.Contains(asm, "vmovdqa") {
		t.Fatalf("expected scalar-only form without -v, got:\n%s", asm)
	}
}

func TestCompileVectorizableLoopWithFlagProducesVectorAndTail(t *testing.T) {
	asm := mustCompile(t, vectorizableLoopSrc, true)
	if !strings.Contains(asm, "vmovdqu") && !strings.Contains(asm, "vmovdqa") {
		t.Fatalf("expected a vector store in the primary loop with -v, got:\n%s", asm)
	}
}

// Golden scenario 6: a procedure call produces two disjoint CFGs: a
// procedure label with its own prologue/epilogue, called from _start.
func TestCompileProcedureCallProducesSeparateLabel(t *testing.T) {
	asm := mustCompile(t, "var x; procedure p(); begin x := x + 1 end; call p() .", false)
	if !strings.Contains(asm, "L_p:") {
		t.Fatalf("expected an L_p: label for the procedure body, got:\n%s", asm)
	}
	if !strings.Contains(asm, "call") {
		t.Fatalf("expected a call instruction invoking the procedure, got:\n%s", asm)
	}
}

func TestCompileUndefinedVariableReturnsError(t *testing.T) {
	if _, err := compile("test.pl0", "begin x := 1 end .", false); err == nil {
		t.Fatal("expected a semantic error for an undefined variable")
	}
}

func TestCompileSyntaxErrorReturnsError(t *testing.T) {
	if _, err := compile("test.pl0", "var x", false); err == nil {
		t.Fatal("expected a syntax error for a missing terminating period")
	}
}

package loop

import (
	"testing"

	"pl0c/internal/block"
	"pl0c/internal/compctx"
	"pl0c/internal/tac"
)

// buildCountingLoop wires header -> footer -> header, where the header tests
// i against a fused upper bound and the footer increments i by one, plus any
// extra footer instructions supplied.
func buildCountingLoop(t *testing.T, extra ...tac.Instruction) (*NaturalLoop, *block.Arena) {
	t.Helper()
	ctx := compctx.New()
	arena := block.NewArena(ctx)
	header := arena.New()
	footer := arena.New()
	exit := arena.New()
	arena.Link(header, footer)
	arena.Link(footer, header)
	arena.Link(footer, exit)

	header.Instructions = []tac.Instruction{
		{ID: ctx.NextTACID(), Op: tac.JMP_GE, Arg1: "$Lexit", Arg2: "i", Result: "16"},
	}
	insts := append([]tac.Instruction{}, extra...)
	insts = append(insts,
		tac.Instruction{ID: ctx.NextTACID(), Op: tac.ADD, Arg1: "i", Arg2: "1", Result: "i"},
		tac.Instruction{ID: ctx.NextTACID(), Op: tac.UNCOND_JMP, Arg1: "$Lheader"},
	)
	footer.Instructions = insts

	return New(header, footer, nil, nil, arena), arena
}

func TestIsSimpleLoopTrueForTwoBlockLoop(t *testing.T) {
	l, _ := buildCountingLoop(t)
	if !l.IsSimpleLoop() {
		t.Fatal("expected a header/footer pair that are each other's successor to be a simple loop")
	}
}

func TestIdentifyLoopIteratorFindsIncrementByOneVariable(t *testing.T) {
	l, _ := buildCountingLoop(t)
	iv, ok := l.IdentifyLoopIterator()
	if !ok {
		t.Fatal("expected the loop iterator to be identified")
	}
	if iv.Var != "i" || !iv.Simple {
		t.Fatalf("expected a simple iterator named i, got %+v", iv)
	}
}

func TestIdentifyLoopIteratorFailsWithoutHeaderUse(t *testing.T) {
	ctx := compctx.New()
	arena := block.NewArena(ctx)
	header := arena.New()
	footer := arena.New()
	arena.Link(header, footer)
	arena.Link(footer, header)

	header.Instructions = []tac.Instruction{
		{ID: ctx.NextTACID(), Op: tac.JMP_GE, Arg1: "$Lexit", Arg2: "n", Result: "16"},
	}
	footer.Instructions = []tac.Instruction{
		{ID: ctx.NextTACID(), Op: tac.ADD, Arg1: "i", Arg2: "1", Result: "i"},
		{ID: ctx.NextTACID(), Op: tac.UNCOND_JMP, Arg1: "$Lheader"},
	}
	l := New(header, footer, nil, nil, arena)
	if _, ok := l.IdentifyLoopIterator(); ok {
		t.Fatal("expected no iterator when the incremented variable is never tested in the header")
	}
}

func TestFindInductionVariablesClassifiesCompoundVariable(t *testing.T) {
	// j := i - 1 is a compound induction variable derived from i.
	l, _ := buildCountingLoop(t, tac.Instruction{Op: tac.SUB, Arg1: "i", Arg2: "1", Result: "j"})
	if !l.IsInductionVariable("j") {
		t.Fatal("expected j (derived from i) to be classified as an induction variable")
	}
	if l.IsSimpleInductionVariable("j") {
		t.Fatal("expected j to be compound, not simple")
	}
	if !l.IsSimpleInductionVariable("i") {
		t.Fatal("expected i to be classified as a simple induction variable")
	}
}

func TestIsNeverDefinedInLoopAndInvariant(t *testing.T) {
	l, _ := buildCountingLoop(t, tac.Instruction{Op: tac.ADD, Arg1: "n", Arg2: "1", Result: "$t0"})
	if !l.IsNeverDefinedInLoop("n") {
		t.Fatal("expected n (never assigned in the loop body) to report as never defined")
	}
	if !l.IsInvariant("$t0") {
		t.Fatal("expected $t0 (defined once from operands external to the loop) to be loop-invariant")
	}
}

func TestExitReturnsFooterSuccessorOtherThanHeader(t *testing.T) {
	l, arena := buildCountingLoop(t)
	exit := l.Exit()
	if exit == nil {
		t.Fatal("expected a non-nil exit block")
	}
	if exit.Major == l.Header.Major {
		t.Fatal("expected Exit to return the non-header successor of the footer")
	}
	found := false
	for _, s := range arena.Successors(l.Footer) {
		if s.Major == exit.Major {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the reported exit block to actually be a successor of the footer")
	}
}

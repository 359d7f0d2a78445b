package block

import (
	"testing"

	"pl0c/internal/compctx"
	"pl0c/internal/tac"
)

func TestArenaAllOrdersByMajorThenMinor(t *testing.T) {
	a := NewArena(compctx.New())
	b0 := a.New()
	b1 := a.New()
	clone := a.Clone(b0)

	all := a.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.Major > cur.Major || (prev.Major == cur.Major && prev.Minor > cur.Minor) {
			t.Fatalf("blocks not ordered by (Major, Minor): %v", all)
		}
	}
	_ = b1
	if clone.Major == b0.Major {
		t.Fatal("clone must get a fresh major id")
	}
}

func TestArenaCloneGivesInstructionsFreshIDs(t *testing.T) {
	ctx := compctx.New()
	a := NewArena(ctx)
	src := a.New()
	src.Instructions = []tac.Instruction{
		{ID: ctx.NextTACID(), Op: tac.ASSIGN, Result: "x"},
		{ID: ctx.NextTACID(), Op: tac.ADD, Arg1: "x", Arg2: "1", Result: "$t0"},
	}

	clone := a.Clone(src)
	if len(clone.Instructions) != len(src.Instructions) {
		t.Fatalf("clone instruction count = %d, want %d", len(clone.Instructions), len(src.Instructions))
	}
	for i := range clone.Instructions {
		if clone.Instructions[i].ID == src.Instructions[i].ID {
			t.Fatalf("clone instruction %d shares id %d with its source", i, src.Instructions[i].ID)
		}
	}
}

func TestArenaLinkAndUnlink(t *testing.T) {
	a := NewArena(compctx.New())
	from := a.New()
	to := a.New()

	a.Link(from, to)
	if len(from.Successors) != 1 || from.Successors[0] != to.Major {
		t.Fatalf("expected from -> to successor edge, got %v", from.Successors)
	}
	if len(to.Predecessors) != 1 || to.Predecessors[0] != from.Major {
		t.Fatalf("expected to <- from predecessor edge, got %v", to.Predecessors)
	}

	a.Unlink(from, to)
	if len(from.Successors) != 0 || len(to.Predecessors) != 0 {
		t.Fatalf("expected edges removed after Unlink, got succ=%v pred=%v", from.Successors, to.Predecessors)
	}
}

func TestBlockFirstLabelAndControlPredicates(t *testing.T) {
	b := &Block{Instructions: []tac.Instruction{
		{Op: tac.LABEL, Arg1: "$Lfoo"},
		{Op: tac.ASSIGN, Result: "x"},
		{Op: tac.UNCOND_JMP, Arg1: "$Lfoo"},
	}}
	if b.FirstLabel() != "$Lfoo" {
		t.Fatalf("FirstLabel() = %q, want $Lfoo", b.FirstLabel())
	}
	if !b.EndsWithUnconditionalJump() {
		t.Fatal("expected EndsWithUnconditionalJump to be true")
	}
	if !b.ChangesControlAtEnd() {
		t.Fatal("expected ChangesControlAtEnd to be true")
	}
}

func TestHasEnterProcedureScansPastALeadingLabel(t *testing.T) {
	b := &Block{Instructions: []tac.Instruction{
		{Op: tac.LABEL, Arg1: "$Lp"},
		{Op: tac.ENTER_PROC, Arg1: "p"},
	}}
	if !b.HasEnterProcedure() {
		t.Fatal("expected HasEnterProcedure to find ENTER_PROC after a leading LABEL")
	}
	if b.EnterProcedureName() != "p" {
		t.Fatalf("EnterProcedureName() = %q, want p", b.EnterProcedureName())
	}
}

func TestHasEnterProcedureFalseWithoutOne(t *testing.T) {
	b := &Block{Instructions: []tac.Instruction{
		{Op: tac.ASSIGN, Arg1: "1", Result: "x"},
	}}
	if b.HasEnterProcedure() {
		t.Fatal("expected HasEnterProcedure to be false")
	}
	if b.EnterProcedureName() != "" {
		t.Fatalf("EnterProcedureName() = %q, want empty", b.EnterProcedureName())
	}
}

func TestBlockDefAndUseChains(t *testing.T) {
	b := &Block{Instructions: []tac.Instruction{
		{ID: 1, Op: tac.ASSIGN, Arg1: "1", Result: "x"},
		{ID: 2, Op: tac.ADD, Arg1: "x", Arg2: "x", Result: "y"},
	}}
	defChain := b.DefChain()
	if len(defChain["x"]) != 1 || len(defChain["y"]) != 1 {
		t.Fatalf("unexpected def chain: %+v", defChain)
	}
	useChain := b.UseChain()
	if len(useChain["x"]) != 2 {
		t.Fatalf("expected x used twice, got %+v", useChain["x"])
	}
}

func TestBlockComputeGenKill(t *testing.T) {
	ctx := compctx.New()
	b := &Block{}
	inst1 := tac.Instruction{ID: ctx.NextTACID(), Op: tac.ASSIGN, Arg1: "1", Result: "x", Scope: nil}
	ctx.RecordDefinition("x", inst1.ID)
	b.insertInstruction(inst1)

	gen, kill := b.ComputeGenKill(ctx)
	if !gen[inst1.ID] {
		t.Fatalf("expected gen to contain the block's own definition of x, got %v", gen)
	}
	if len(kill) != 0 {
		t.Fatalf("expected no other definitions of x to kill, got %v", kill)
	}
}

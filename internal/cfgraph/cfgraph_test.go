package cfgraph

import (
	"testing"

	"pl0c/internal/block"
	"pl0c/internal/compctx"
	"pl0c/internal/tac"
)

// buildDiamond builds entry -> (left, right) -> merge, returning the four
// blocks in that order.
func buildDiamond(t *testing.T) (arena *block.Arena, entry, left, right, merge *block.Block) {
	t.Helper()
	arena = block.NewArena(compctx.New())
	entry = arena.New()
	left = arena.New()
	right = arena.New()
	merge = arena.New()
	arena.Link(entry, left)
	arena.Link(entry, right)
	arena.Link(left, merge)
	arena.Link(right, merge)
	return
}

func TestBuildCollectsReachableBlocksOnly(t *testing.T) {
	arena, entry, left, right, merge := buildDiamond(t)
	unreachable := arena.New()
	_ = unreachable

	cfg := Build(arena, "test", entry)
	if !cfg.Contains(entry) || !cfg.Contains(left) || !cfg.Contains(right) || !cfg.Contains(merge) {
		t.Fatal("expected every diamond block to be in the CFG")
	}
	if cfg.Contains(unreachable) {
		t.Fatal("expected an unreachable block to be excluded from the CFG")
	}
	if len(cfg.Blocks()) != 4 {
		t.Fatalf("expected 4 blocks in the CFG, got %d", len(cfg.Blocks()))
	}
}

func TestDominatorsOfDiamond(t *testing.T) {
	arena, entry, left, right, merge := buildDiamond(t)
	cfg := Build(arena, "test", entry)
	dom := ComputeDominators(cfg)

	if !dom.Dominates(entry, merge) {
		t.Fatal("expected entry to dominate merge")
	}
	if dom.Dominates(left, merge) {
		t.Fatal("left must not dominate merge: right is an alternate path")
	}
	if dom.Dominates(right, merge) {
		t.Fatal("right must not dominate merge: left is an alternate path")
	}
	if dom.ImmediateDominator(merge) != entry {
		t.Fatalf("expected entry to be merge's immediate dominator, got %v", dom.ImmediateDominator(merge))
	}
}

func TestDominatesIsReflexive(t *testing.T) {
	arena, entry, _, _, _ := buildDiamond(t)
	cfg := Build(arena, "test", entry)
	dom := ComputeDominators(cfg)
	if !dom.Dominates(entry, entry) {
		t.Fatal("every block dominates itself")
	}
	if dom.ProperlyDominates(entry, entry) {
		t.Fatal("a block does not properly dominate itself")
	}
}

func TestBuildAllFindsOnlyTheEntryCFGWhenNoProceduresExist(t *testing.T) {
	arena, entry, left, right, merge := buildDiamond(t)
	cfgs := BuildAll(arena, entry, []*block.Block{entry, left, right, merge})
	if len(cfgs) != 1 {
		t.Fatalf("expected exactly one CFG (no ENTER_PROC blocks present), got %d", len(cfgs))
	}
	if cfgs[0].Name != "_entry" {
		t.Fatalf("expected the lone CFG to be named _entry, got %q", cfgs[0].Name)
	}
}

// A procedure's ENTER_PROC shares its block with the procedure's own LABEL
// rather than being the block's first instruction (internal/blocker's leader
// rules), so BuildAll must name the procedure's CFG by scanning the block's
// instructions rather than assuming Instructions[0] is the ENTER_PROC.
func TestBuildAllNamesProcedureCFGWhenLabelPrecedesEnterProc(t *testing.T) {
	arena := block.NewArena(compctx.New())
	entry := arena.New()
	procBlock := arena.New()
	procBlock.Instructions = []tac.Instruction{
		{Op: tac.LABEL, Arg1: "$Lp"},
		{Op: tac.ENTER_PROC, Arg1: "p"},
	}

	cfgs := BuildAll(arena, entry, []*block.Block{entry, procBlock})
	if len(cfgs) != 2 {
		t.Fatalf("expected an _entry CFG plus one procedure CFG, got %d", len(cfgs))
	}
	if cfgs[1].Name != "p" {
		t.Fatalf("expected the procedure CFG named %q, got %q", "p", cfgs[1].Name)
	}
}

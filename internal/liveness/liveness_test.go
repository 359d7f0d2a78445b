package liveness

import (
	"testing"

	"pl0c/internal/block"
	"pl0c/internal/tac"
)

// buildChain builds x := _ ; $t0 := x + y ; z := $t0, three simple
// instructions chained through a temporary, to exercise Compute's backward
// pass.
func buildChain() *block.Block {
	return &block.Block{Instructions: []tac.Instruction{
		{ID: 0, Op: tac.ASSIGN, Result: "x"},
		{ID: 1, Op: tac.ADD, Arg1: "x", Arg2: "y", Result: "$t0"},
		{ID: 2, Op: tac.ASSIGN, Arg1: "$t0", Result: "z"},
	}}
}

func TestComputeSeedsUserVarsLiveAndTemporariesDead(t *testing.T) {
	table := Compute(buildChain())
	snap := table.At(2)
	if !snap.IsLive("z") {
		t.Fatal("expected z (a user-defined var never yet redefined walking backward) to be live at its own definition")
	}
	if snap.IsLive("$t0") {
		t.Fatal("expected $t0 to start dead before its one use is seen")
	}
}

func TestComputeTracksNextUseWalkingBackward(t *testing.T) {
	table := Compute(buildChain())

	snapAtTemp := table.At(1)
	if !snapAtTemp.HasNextUse("$t0") || snapAtTemp.NextUseOf("$t0") != 2 {
		t.Fatalf("expected $t0's next use (set while processing id 2) to be instruction 2, got live=%v nextUse=%d",
			snapAtTemp.IsLive("$t0"), snapAtTemp.NextUseOf("$t0"))
	}

	snapAtX := table.At(0)
	if !snapAtX.HasNextUse("x") || snapAtX.NextUseOf("x") != 1 {
		t.Fatalf("expected x's next use (set while processing id 1) to be instruction 1, got nextUse=%d", snapAtX.NextUseOf("x"))
	}
	if !snapAtX.HasNextUse("y") || snapAtX.NextUseOf("y") != 1 {
		t.Fatalf("expected y's next use to be instruction 1, got nextUse=%d", snapAtX.NextUseOf("y"))
	}
}

func TestComputeMarksResultDeadGoingBackwardPastItsDefinition(t *testing.T) {
	table := Compute(buildChain())
	if table.At(1).IsLive("z") {
		t.Fatal("expected z to be dead in the snapshot taken after walking back past its definition at instruction 2")
	}
	snapAtX := table.At(0)
	if snapAtX.HasNextUse("$t0") {
		t.Fatal("expected $t0 to have no next use before its one definition")
	}
}

func TestComputeSkipsNonSimpleInstructions(t *testing.T) {
	b := &block.Block{Instructions: []tac.Instruction{
		{ID: 0, Op: tac.LABEL, Arg1: "$Lfoo"},
		{ID: 1, Op: tac.ASSIGN, Arg1: "1", Result: "x"},
	}}
	table := Compute(b)
	if table.At(0) != nil {
		t.Fatal("expected no snapshot recorded for a LABEL instruction")
	}
	if table.At(1) == nil {
		t.Fatal("expected a snapshot recorded for the simple ASSIGN")
	}
}

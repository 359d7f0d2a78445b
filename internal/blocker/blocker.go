// Package blocker partitions a flat TAC instruction list into basic blocks
// and wires their predecessor/successor edges.
package blocker

import (
	"pl0c/internal/block"
	"pl0c/internal/tac"
)

// Result is the output of blocking a TAC program: every block, the entry
// block, and a label-name → owning-block index for later stages that need
// to resolve jump targets without re-walking the instruction list.
type Result struct {
	Arena          *block.Arena
	Entry          *block.Block
	Blocks         []*block.Block
	LabelLocations map[string]*block.Block
}

// Block partitions instructions into basic blocks within arena, following
// the standard three leader rules:
//
//  1. the first instruction is a leader;
//  2. the target of any control transfer is a leader;
//  3. the instruction immediately following any control transfer or
//     EXIT_PROC is a leader.
//
// An EXIT_PROC instruction also starts a block of its own.
func Block(arena *block.Arena, instructions []tac.Instruction) *Result {
	r := &Result{Arena: arena, LabelLocations: make(map[string]*block.Block)}
	if len(instructions) == 0 {
		return r
	}

	current := arena.New()
	r.Blocks = append(r.Blocks, current)

	followsJump := false
	for idx, inst := range instructions {
		if idx > 0 && isLeader(inst, followsJump) {
			current = arena.New()
			r.Blocks = append(r.Blocks, current)
		}
		current.Instructions = append(current.Instructions, inst)
		if inst.Op == tac.LABEL {
			r.LabelLocations[inst.Arg1] = current
		}
		followsJump = inst.Op.TransfersControl() || inst.Op == tac.EXIT_PROC
	}

	r.Entry = entryBlock(r.Blocks)
	linkControlFlow(arena, r)
	return r
}

// entryBlock picks the program's entry: the first block lying outside every
// procedure body. Procedure declarations precede the main statement, so when
// the program opens with a procedure (no global declarations emitted first)
// the first block is the procedure's own, not the entry's.
func entryBlock(blocks []*block.Block) *block.Block {
	depth := 0
	for _, b := range blocks {
		if b.HasEnterProcedure() {
			depth++
		}
		if depth == 0 {
			return b
		}
		if b.HasExitProcedure() {
			depth--
		}
	}
	return nil
}

// isLeader applies the blocker's three leader rules (rule 2 as "every
// LABEL"), and also makes EXIT_PROC itself a leader so a procedure's exit
// sits in a block of its own. ENTER_PROC is deliberately absent: it always immediately follows the procedure's own
// LABEL (internal/ast's KindProcDecl lowering emits nothing between them),
// and that LABEL is already a leader as a CALL target (rule 2), so ENTER_PROC
// shares the label's block instead of splitting it into an orphaned block of
// its own that nothing would ever link to (procedures are entered only via
// CALL to their label, never by fall-through).
func isLeader(inst tac.Instruction, followsJump bool) bool {
	return followsJump || inst.Op == tac.LABEL || inst.Op == tac.EXIT_PROC
}

// linkControlFlow computes fall-through and jump-target edges.
// Fall-through edges connect consecutive blocks unless the preceding
// block ends with an unconditional jump, or unless the boundary straddles a
// procedure: entering a procedure saves the enclosing "previous block"
// context and exiting restores it, so the entry-point CFG and a procedure's
// CFG are never linked to one another.
func linkControlFlow(arena *block.Arena, r *Result) {
	if len(r.Blocks) == 0 {
		return
	}

	var savedPrevious []*block.Block
	previous := r.Blocks[0]
	if previous.HasEnterProcedure() {
		// The program opens with a procedure; there is no enclosing block to
		// restore once it exits.
		savedPrevious = append(savedPrevious, nil)
	}

	for _, current := range r.Blocks[1:] {
		switch {
		case current.HasEnterProcedure():
			savedPrevious = append(savedPrevious, previous)
			previous = current
		case current.HasExitProcedure():
			if previous != nil && !previous.EndsWithUnconditionalJump() {
				arena.Link(previous, current)
			}
			previous = savedPrevious[len(savedPrevious)-1]
			savedPrevious = savedPrevious[:len(savedPrevious)-1]
		default:
			if previous != nil && !previous.EndsWithUnconditionalJump() {
				arena.Link(previous, current)
			}
			previous = current
		}
	}

	for _, current := range r.Blocks {
		for _, inst := range current.Instructions {
			if inst.Op.TransfersControl() && inst.Op != tac.CALL {
				if target, ok := r.LabelLocations[inst.Arg1]; ok {
					arena.Link(current, target)
				}
			}
		}
	}
}

// Package preprocess performs machine-independent peephole rewrites on a
// flat TAC instruction stream before it reaches the optimizer.
// Syntax-directed translation tends to emit small, mechanically
// redundant sequences; rather than building a DAG and re-linearizing it,
// these rewrites are hardcoded rules applied directly to the instruction
// list, since there are few enough of them to enumerate by hand.
package preprocess

import "pl0c/internal/tac"

// jumpPolarity maps a comparison op to the conditional jump that tests its
// negation — used to compact a compare-into-temp-then-test-zero loop header
// into a single cmp plus a conditional jump that falls straight through to
// the loop body:
//
//	$0 = a op b       ---->      cmp a, b
//	jump_zero $0, L              j<negated op> L
var jumpPolarity = map[tac.Op]tac.Op{
	tac.EQUALS:       tac.JMP_NE,
	tac.NOT_EQUALS:   tac.JMP_E,
	tac.LESS_THAN:    tac.JMP_GE,
	tac.GREATER_THAN: tac.JMP_LE,
	tac.LE_THAN:      tac.JMP_G,
	tac.GE_THAN:      tac.JMP_L,
}

// Run applies every rewrite rule to instructions and returns the rewritten
// stream. The input is not modified in place.
func Run(instructions []tac.Instruction) []tac.Instruction {
	out := applyRedundantRewriteRule(instructions)
	out = applyLoopHeaderCompaction(out)
	return out
}

// applyRedundantRewriteRule collapses
//
//	$t = x op y
//	x  = $t
//
// into
//
//	x = x op y
//
// whenever the temporary produced by the first instruction is immediately
// reassigned into one of its own operands. The fused instruction is
// re-examined against its new neighbor, so chains collapse in one pass. An
// ASSIGN whose target is not an operand of the producer (an array-element
// store through an address temporary, for instance) is left alone.
func applyRedundantRewriteRule(instructions []tac.Instruction) []tac.Instruction {
	work := append([]tac.Instruction(nil), instructions...)
	for i := 0; i+1 < len(work); {
		i1, i2 := work[i], work[i+1]
		if isBinaryOperation(i1) && i2.Op == tac.ASSIGN && i2.Arg1 == i1.Result && tac.IsTemporary(i1.Result) &&
			(i1.Arg1 == i2.Result || i1.Arg2 == i2.Result) {
			i1.Result = i2.Result
			work[i] = i1
			work = append(work[:i+1], work[i+2:]...)
			if i > 0 {
				i--
			}
			continue
		}
		i++
	}
	return work
}

func isBinaryOperation(inst tac.Instruction) bool {
	return inst.Op.IsBinary() && inst.Op != tac.ASSIGN
}

// applyLoopHeaderCompaction collapses the canonical
//
//	$0 = a op b
//	jump_zero $0, L
//
// pair generated for every loop/if condition into a single fused compare
// jump that tests op's negation, so codegen emits one cmp instruction
// instead of materializing the boolean into a temporary first. The fused
// instruction keeps Arg1 as the jump target (so every control-transferring
// instruction is uniform for the blocker), and repurposes Arg2/Result — not
// otherwise meaningful on a jump — to hold the two compared operands.
func applyLoopHeaderCompaction(instructions []tac.Instruction) []tac.Instruction {
	out := make([]tac.Instruction, 0, len(instructions))
	i := 0
	for i < len(instructions) {
		if i+1 >= len(instructions) {
			out = append(out, instructions[i])
			i++
			continue
		}
		i1, i2 := instructions[i], instructions[i+1]
		if i1.Op.IsComparison() && i2.Op == tac.JMP_ZERO && i2.Arg2 == i1.Result {
			negated, ok := jumpPolarity[i1.Op]
			if ok {
				out = append(out, tac.Instruction{
					ID:     i1.ID,
					Op:     negated,
					Arg1:   i2.Arg1,
					Arg2:   i1.Arg1,
					Result: i1.Arg2,
					Scope:  i1.Scope,
				})
				i += 2
				continue
			}
		}
		out = append(out, i1)
		i++
	}
	return out
}

// CompareOperands returns the two operands a fused conditional jump (one
// produced by applyLoopHeaderCompaction) compares. Conditional jumps that
// were never fused (because the source emitted them directly, or no
// compaction applied) carry no compare operands and CompareOperands returns
// ("", "").
func CompareOperands(inst tac.Instruction) (a, b string) {
	if !inst.Op.IsConditionalJump() || inst.Op == tac.JMP_ZERO {
		return "", ""
	}
	return inst.Arg2, inst.Result
}

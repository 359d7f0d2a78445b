// Package loop recognizes natural loops from CFG back edges and classifies
// their induction variables.
package loop

import (
	"fmt"

	"pl0c/internal/block"
	"pl0c/internal/cfgraph"
	"pl0c/internal/preprocess"
	"pl0c/internal/reach"
	"pl0c/internal/tac"
)

// InductionVariable represents a loop induction variable in one of two
// forms: simple (X := X + C / X := X - C) or compound, a linear function of
// some other induction variable split into two definitions (W := A * X and
// W := X + B), linked through Previous.
type InductionVariable struct {
	Simple   bool
	Var      string
	Constant string
	Previous *InductionVariable
}

// Equal reports whether two induction variables name the same variable.
func (iv *InductionVariable) Equal(other *InductionVariable) bool {
	if iv == nil || other == nil {
		return iv == other
	}
	return iv.Var == other.Var
}

// NaturalLoop is a back edge in a CFG where the footer dominates the header
// and the loop has a single entrance. For this compiler, loops of interest
// are restricted to ones with no intervening control flow or procedure
// calls, so in practice a loop's body is just its header and footer block.
type NaturalLoop struct {
	Header *block.Block
	Footer *block.Block

	reach *reach.Sets
	dom   *cfgraph.Dominators
	arena *block.Arena

	body []*block.Block

	invariants               map[string]bool
	simpleInductionVariables map[string]*InductionVariable
	inductionVariables       map[string]*InductionVariable
}

// FindAll scans cfg for back edges (edges b -> h where h dominates b) and
// constructs a NaturalLoop for each one found.
func FindAll(cfg *cfgraph.CFG, dom *cfgraph.Dominators, reachSets *reach.Sets) []*NaturalLoop {
	var loops []*NaturalLoop
	arena := cfg.Arena()
	for _, footer := range cfg.Blocks() {
		for _, header := range arena.Successors(footer) {
			if !cfg.Contains(header) {
				continue
			}
			if dom.Dominates(header, footer) {
				loops = append(loops, New(header, footer, reachSets, dom, arena))
			}
		}
	}
	return loops
}

// New constructs a NaturalLoop and eagerly computes its body, invariants,
// and induction variables.
func New(header, footer *block.Block, reachSets *reach.Sets, dom *cfgraph.Dominators, arena *block.Arena) *NaturalLoop {
	l := &NaturalLoop{
		Header: header,
		Footer: footer,
		reach:  reachSets,
		dom:    dom,
		arena:  arena,

		invariants:               make(map[string]bool),
		simpleInductionVariables: make(map[string]*InductionVariable),
		inductionVariables:       make(map[string]*InductionVariable),
	}
	l.computeBody()
	l.findInvariants()
	l.findInductionVariables()
	return l
}

// computeBody collects every block belonging to the loop: the header, the
// footer, and every block that can reach the footer without passing back
// through the header (the standard natural-loop body worklist algorithm).
func (l *NaturalLoop) computeBody() {
	inBody := map[block.ID]bool{l.Header.Major: true, l.Footer.Major: true}
	worklist := []*block.Block{l.Footer}
	for len(worklist) > 0 {
		m := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, p := range l.arena.Predecessors(m) {
			if p.Major == l.Header.Major || inBody[p.Major] {
				continue
			}
			inBody[p.Major] = true
			worklist = append(worklist, p)
		}
	}
	for _, b := range l.arena.All() {
		if inBody[b.Major] {
			l.body = append(l.body, b)
		}
	}
}

// ForEachBBInBody invokes action on every block in the loop body, including
// the header and footer.
func (l *NaturalLoop) ForEachBBInBody(action func(b *block.Block)) {
	for _, b := range l.body {
		action(b)
	}
}

func (l *NaturalLoop) bodyInstructions() []tac.Instruction {
	var insts []tac.Instruction
	l.ForEachBBInBody(func(b *block.Block) {
		insts = append(insts, b.Instructions...)
	})
	return insts
}

// isNeverDefinedInLoop reports whether variable has no defining instruction
// anywhere in the loop body.
func (l *NaturalLoop) isNeverDefinedInLoop(variable string) bool {
	for _, inst := range l.bodyInstructions() {
		if inst.Op.HasResult() && inst.Result == variable {
			return false
		}
	}
	return true
}

// definitionsInLoop returns every instruction in the loop body that defines
// variable.
func (l *NaturalLoop) definitionsInLoop(variable string) []tac.Instruction {
	var defs []tac.Instruction
	for _, inst := range l.bodyInstructions() {
		if inst.Op.HasResult() && inst.Result == variable {
			defs = append(defs, inst)
		}
	}
	return defs
}

// findInvariants computes the loop's invariant instructions to a fixed
// point: a statement is invariant if every operand is either constant,
// defined outside the loop, or defined by some invariant in the same loop.
func (l *NaturalLoop) findInvariants() {
	changed := true
	for changed {
		changed = false
		for _, inst := range l.bodyInstructions() {
			if !inst.Op.HasResult() || inst.Result == "" {
				continue
			}
			if l.invariants[inst.Result] {
				continue
			}
			if l.operandIsInvariantOrExternal(inst, inst.Arg1) && l.operandIsInvariantOrExternal(inst, inst.Arg2) {
				l.invariants[inst.Result] = true
				changed = true
			}
		}
	}
}

func (l *NaturalLoop) operandIsInvariantOrExternal(inst tac.Instruction, operand string) bool {
	if operand == "" || tac.IsLabel(operand) {
		return true
	}
	if inst.IsOperandConstant(operand) {
		return true
	}
	if l.isNeverDefinedInLoop(operand) {
		return true
	}
	defs := l.definitionsInLoop(operand)
	if len(defs) != 1 {
		return false
	}
	return l.invariants[defs[0].Result]
}

// findInductionVariables classifies simple induction variables (X := X + C,
// X := X - C) and compound ones (W := A * X, then W := X + B, linked via
// Previous). Runs to a fixed point (like findInvariants)
// because a compound induction variable's defining instruction can precede
// its base variable's own defining instruction in program order — e.g. "j :=
// i - 1" ahead of "i := i + 1" — and a single forward pass would miss it.
func (l *NaturalLoop) findInductionVariables() {
	changed := true
	for changed {
		changed = false
		for _, inst := range l.bodyInstructions() {
			if !inst.Op.HasResult() {
				continue
			}
			if _, already := l.inductionVariables[inst.Result]; already {
				continue
			}
			switch inst.Op {
			case tac.ADD, tac.SUB:
				if inst.Result == inst.Arg1 && l.operandIsInvariantOrExternal(inst, inst.Arg2) && len(l.definitionsInLoop(inst.Result)) == 1 {
					iv := &InductionVariable{Simple: true, Var: inst.Result, Constant: inst.Arg2}
					l.simpleInductionVariables[inst.Result] = iv
					l.inductionVariables[inst.Result] = iv
					changed = true
					continue
				}
				if prev, ok := l.baseInductionVariable(inst.Arg1); ok && l.operandIsInvariantOrExternal(inst, inst.Arg2) {
					l.inductionVariables[inst.Result] = &InductionVariable{Simple: false, Var: inst.Result, Constant: inst.Arg2, Previous: prev}
					changed = true
				}
			case tac.MULT:
				if prev, ok := l.baseInductionVariable(inst.Arg2); ok && l.operandIsInvariantOrExternal(inst, inst.Arg1) {
					l.inductionVariables[inst.Result] = &InductionVariable{Simple: false, Var: inst.Result, Constant: inst.Arg1, Previous: prev}
					changed = true
				} else if prev, ok := l.baseInductionVariable(inst.Arg1); ok && l.operandIsInvariantOrExternal(inst, inst.Arg2) {
					l.inductionVariables[inst.Result] = &InductionVariable{Simple: false, Var: inst.Result, Constant: inst.Arg2, Previous: prev}
					changed = true
				}
			}
		}
	}
}

func (l *NaturalLoop) baseInductionVariable(name string) (*InductionVariable, bool) {
	if iv, ok := l.inductionVariables[name]; ok {
		return iv, true
	}
	return nil, false
}

// IdentifyLoopIterator returns the loop's iterator: the unique simple
// induction variable incremented by 1 and referenced in the header's
// terminating condition. Returns ok=false if none or more than one
// candidate qualifies.
func (l *NaturalLoop) IdentifyLoopIterator() (iv *InductionVariable, ok bool) {
	var found *InductionVariable
	for _, candidate := range l.simpleInductionVariables {
		if !l.isIncrementByOne(candidate) {
			continue
		}
		if !l.usedInHeaderCondition(candidate.Var) {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = candidate
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

func (l *NaturalLoop) isIncrementByOne(iv *InductionVariable) bool {
	for _, inst := range l.bodyInstructions() {
		if inst.Op == tac.ADD && inst.Result == iv.Var && inst.Arg2 == iv.Constant {
			// The step may be literal text ("1") or an interned constant name;
			// resolve it through the instruction's scope either way.
			if n, ok := inst.ConstantValue(iv.Constant); ok && n == 1 {
				return true
			}
		}
	}
	return false
}

// usedInHeaderCondition reports whether variable is an operand of the
// header's terminating condition. By the time loop recognition runs, a
// while-loop's comparison has almost always already been fused into a single
// conditional jump by preprocess.Run (preprocess.go's applyLoopHeaderCompaction),
// so the compare operands sit in the jump's Arg2/Result rather than on a
// separate IsComparison() instruction — unfused comparisons are also handled
// for callers that run this on pre-fusion TAC.
func (l *NaturalLoop) usedInHeaderCondition(variable string) bool {
	if len(l.Header.Instructions) == 0 {
		return false
	}
	last := l.Header.Instructions[len(l.Header.Instructions)-1]
	if !last.Op.TransfersControl() {
		return false
	}
	for _, inst := range l.Header.Instructions {
		if inst.Op.IsComparison() {
			if inst.Arg1 == variable || inst.Arg2 == variable {
				return true
			}
			continue
		}
		if inst.Op.IsConditionalJump() {
			a, b := preprocess.CompareOperands(inst)
			if a == variable || b == variable {
				return true
			}
		}
	}
	return false
}

// IsInvariant reports whether value is a loop-invariant value.
func (l *NaturalLoop) IsInvariant(value string) bool { return l.invariants[value] }

// IsInductionVariable reports whether value is some induction variable
// (simple or compound) of this loop.
func (l *NaturalLoop) IsInductionVariable(value string) bool {
	_, ok := l.inductionVariables[value]
	return ok
}

// IsSimpleInductionVariable reports whether value is a simple (X := X ± C)
// induction variable of this loop.
func (l *NaturalLoop) IsSimpleInductionVariable(value string) bool {
	_, ok := l.simpleInductionVariables[value]
	return ok
}

// IsNeverDefinedInLoop reports whether variable is never assigned anywhere
// in the loop body.
func (l *NaturalLoop) IsNeverDefinedInLoop(variable string) bool {
	return l.isNeverDefinedInLoop(variable)
}

// IsSimpleLoop reports whether the header is both predecessor and successor
// of the footer — the restricted loop shape with no interior control flow
// this compiler optimizes.
func (l *NaturalLoop) IsSimpleLoop() bool {
	return l.blockHasSuccessor(l.Header, l.Footer) && l.blockHasSuccessor(l.Footer, l.Header)
}

func (l *NaturalLoop) blockHasSuccessor(b, succ *block.Block) bool {
	for _, s := range l.arena.Successors(b) {
		if s.Major == succ.Major {
			return true
		}
	}
	return false
}

// Exit returns the loop's exit block: where control continues once the loop
// condition fails. A while-shaped loop exits from its header (the footer
// ends with the unconditional back-jump); a do-while shape exits from its
// footer. Either way it is the first successor outside the loop body.
// Assumes the loop has exactly one exit.
func (l *NaturalLoop) Exit() *block.Block {
	inBody := make(map[block.ID]bool, len(l.body))
	for _, b := range l.body {
		inBody[b.Major] = true
	}
	for _, b := range []*block.Block{l.Header, l.Footer} {
		for _, s := range l.arena.Successors(b) {
			if !inBody[s.Major] {
				return s
			}
		}
	}
	return nil
}

func (l *NaturalLoop) String() string {
	return fmt.Sprintf("(%s -> %s)", l.Footer, l.Header)
}

// DuplicateLoopAfterThisLoop clones the loop body and splices the clone in
// as this loop's new exit: the original header's exit edge is redirected to
// the clone's header, and the original exit block becomes the exit of the
// clone (the strip miner uses this to produce an unrolled body plus a
// scalar tail copy). Only valid when IsSimpleLoop is true.
func (l *NaturalLoop) DuplicateLoopAfterThisLoop() *NaturalLoop {
	exit := l.Exit()
	newHeader := l.arena.Clone(l.Header)
	newFooter := l.arena.Clone(l.Footer)

	l.arena.Link(newHeader, newFooter)
	l.arena.Link(newFooter, newHeader)
	if exit != nil {
		l.arena.Unlink(l.Header, exit)
		l.arena.Unlink(l.Footer, exit)
		l.arena.Link(newHeader, exit)
	}
	l.arena.Link(l.Header, newHeader)

	return New(newHeader, newFooter, l.reach, l.dom, l.arena)
}

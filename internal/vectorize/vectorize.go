// Package vectorize strip-mines simple loops into a vectorized, unrolled
// body plus a scalar tail loop, guided by a distance-vector dependence test
// over ARRAY_INDEX operands.
package vectorize

import (
	"pl0c/internal/block"
	"pl0c/internal/loop"
	"pl0c/internal/preprocess"
	"pl0c/internal/tac"
)

// Distance classifies how a memory reference in one loop iteration relates
// to the same reference in the next iteration. DistanceLess and DistanceMore
// are part of the full dependence-direction classification, but this
// compiler has no linear-form solver to derive a signed distance for an
// index expression other than the iterator itself, so distanceForIndexExpr
// only ever produces DistanceEqual or rejects outright.
type Distance int

const (
	// DistanceLess means the reference moves backward between iterations
	// (the previous iteration's element is referenced).
	DistanceLess Distance = -1
	// DistanceEqual means the same element is referenced every iteration.
	DistanceEqual Distance = 0
	// DistanceMore means the reference moves forward between iterations
	// (the next iteration's element is referenced).
	DistanceMore Distance = 1
)

// UnrollFactor is the number of scalar iterations folded into each
// vectorized iteration: four 64-bit lanes per 256-bit vector register.
const UnrollFactor = 4

// Vectorizer evaluates and, if safe, vectorizes one natural loop.
type Vectorizer struct {
	loop  *loop.NaturalLoop
	arena *block.Arena
	gen   *tac.Generator

	index        *loop.InductionVariable
	bound        int64
	canVectorize bool
	distances    []Distance
}

// New constructs a Vectorizer and immediately determines whether l is
// vectorizable.
func New(l *loop.NaturalLoop, gen *tac.Generator, arena *block.Arena) *Vectorizer {
	v := &Vectorizer{loop: l, gen: gen, arena: arena}
	v.canVectorize = v.checkCanLoopBeVectorized()
	return v
}

// CanVectorize reports whether the loop passed the legality checks.
func (v *Vectorizer) CanVectorize() bool { return v.canVectorize }

// checkCanLoopBeVectorized applies the vectorization gate:
//
//  1. the loop is simple (two mutually linked blocks, no interior control
//     flow, no procedure calls or inlined I/O);
//  2. a unique iterator with step 1 exists, and the header compares it
//     upward against a compile-time constant bound (the strip miner has to
//     tighten that bound for the unrolled copy, so a bound it cannot
//     resolve or a downward-counting comparison is rejected);
//  3. every array reference in the body carries a DistanceEqual direction
//     with respect to the iterator — any other distance means some
//     iteration could read an element a different iteration hasn't written
//     yet (or has already overwritten) once the loop is unrolled;
//  4. the loop writes at least one array element dependent on the iterator
//     (profitability — unrolling pure reads or pure scalar arithmetic gains
//     nothing).
func (v *Vectorizer) checkCanLoopBeVectorized() bool {
	if !v.loop.IsSimpleLoop() {
		return false
	}
	iter, ok := v.loop.IdentifyLoopIterator()
	if !ok {
		return false
	}
	v.index = iter

	bound, ok := v.headerBound()
	if !ok {
		return false
	}
	v.bound = bound

	if v.hasUnvectorizableOps() || !v.loopInGlobalScope() {
		return false
	}

	ok, distances := v.computeDistanceVectors()
	if !ok {
		return false
	}
	v.distances = distances
	for _, d := range distances {
		if d != DistanceEqual {
			return false
		}
	}
	return v.shouldVectorizeLoop()
}

// headerBound extracts the loop's constant upper bound from the header's
// fused conditional jump. Only the upward-counting forms survive: an
// exit-if-GE (from "i < B") or exit-if-G (from "i <= B") with the iterator
// on the left and a resolvable constant on the right.
func (v *Vectorizer) headerBound() (int64, bool) {
	insts := v.loop.Header.Instructions
	if len(insts) == 0 {
		return 0, false
	}
	last := insts[len(insts)-1]
	if last.Op != tac.JMP_GE && last.Op != tac.JMP_G {
		return 0, false
	}
	a, b := preprocess.CompareOperands(last)
	if a != v.index.Var {
		return 0, false
	}
	return last.ConstantValue(b)
}

// hasUnvectorizableOps rejects loops whose body contains an operation the
// strip miner has no widened form for: inlined I/O, procedure plumbing,
// DIV, MULT or NEGATE, or an instruction set that already went through
// vectorization once.
func (v *Vectorizer) hasUnvectorizableOps() bool {
	found := false
	v.loop.ForEachBBInBody(func(b *block.Block) {
		for _, inst := range b.Instructions {
			switch inst.Op {
			case tac.READ, tac.WRITE, tac.RETVAL, tac.PROC_PARAM, tac.CALL,
				tac.ENTER_PROC, tac.EXIT_PROC, tac.DIV, tac.MULT, tac.NEGATE:
				found = true
			default:
				if inst.Op.IsVector() {
					found = true
				}
			}
		}
	})
	return found
}

// loopInGlobalScope reports whether every instruction in the loop body was
// generated at global scope. The strip-miner's tail clone renders outside
// the enclosing procedure's body in the emitted text, so a loop over
// procedure-local storage is conservatively left scalar.
func (v *Vectorizer) loopInGlobalScope() bool {
	ok := true
	v.loop.ForEachBBInBody(func(b *block.Block) {
		for _, inst := range b.Instructions {
			if inst.Scope != nil && !inst.Scope.IsGlobalScope() {
				ok = false
			}
		}
	})
	return ok
}

// shouldVectorizeLoop implements the profitability gate: the loop must
// write at least one array element through an iterator-dependent index.
func (v *Vectorizer) shouldVectorizeLoop() bool {
	return len(v.arrayWriteTemps()) > 0
}

// arrayWriteTemps returns the set of ARRAY_INDEX result temporaries that
// are iterator-dependent and subsequently stored through (the address temp
// appears as the Result of a later ASSIGN).
func (v *Vectorizer) arrayWriteTemps() map[string]bool {
	dependent := make(map[string]bool)
	writes := make(map[string]bool)
	v.loop.ForEachBBInBody(func(b *block.Block) {
		for _, inst := range b.Instructions {
			if inst.Op == tac.ARRAY_INDEX {
				if d, dep, ok := v.distanceForIndexExpr(inst.Arg2); ok && dep && d == DistanceEqual {
					dependent[inst.Result] = true
				}
				continue
			}
			if inst.Op == tac.ASSIGN && dependent[inst.Result] {
				writes[inst.Result] = true
			}
		}
	})
	return writes
}

// computeDistanceVectors walks every ARRAY_INDEX instruction in the loop
// body and, for each one whose index expression depends on the loop
// iterator, records the distance between its reference in iteration i and
// iteration i+1.
func (v *Vectorizer) computeDistanceVectors() (bool, []Distance) {
	var distances []Distance
	ok := true
	v.loop.ForEachBBInBody(func(b *block.Block) {
		for _, inst := range b.Instructions {
			if inst.Op != tac.ARRAY_INDEX {
				continue
			}
			d, dependsOnIndex, good := v.distanceForIndexExpr(inst.Arg2)
			if !dependsOnIndex {
				continue
			}
			if !good {
				ok = false
				continue
			}
			distances = append(distances, d)
		}
	})
	return ok, distances
}

// distanceForIndexExpr classifies the index expression used by one
// ARRAY_INDEX instruction. Only the iterator itself reduces to a provable
// DistanceEqual (codegen re-subscripts the same induction variable on every
// unrolled copy); any other induction variable derived from it — a["j"]
// where j := i op C — is a linear expression this compiler does not solve
// for a signed distance, so it is reported not ok — conservatively
// rejecting the loop — rather than optimistically assumed safe.
func (v *Vectorizer) distanceForIndexExpr(expr string) (d Distance, dependsOnIndex bool, ok bool) {
	if expr == v.index.Var {
		return DistanceEqual, true, true
	}
	if !IsVariableDependentOnIndex(v.loop, expr, v.index) {
		return DistanceEqual, false, true
	}
	return DistanceEqual, true, false
}

// IsInstructionDependentOnIndex reports whether inst reads or writes a
// value that depends on the loop's iterator.
func IsInstructionDependentOnIndex(l *loop.NaturalLoop, inst tac.Instruction, index *loop.InductionVariable) bool {
	for _, operand := range []string{inst.Arg1, inst.Arg2, inst.Result} {
		if operand == "" {
			continue
		}
		if IsVariableDependentOnIndex(l, operand, index) {
			return true
		}
	}
	return false
}

// IsVariableDependentOnIndex reports whether variable is the loop's
// iterator or some induction variable derived from it.
func IsVariableDependentOnIndex(l *loop.NaturalLoop, variable string, index *loop.InductionVariable) bool {
	if variable == index.Var {
		return true
	}
	return l.IsInductionVariable(variable)
}

// Vectorize applies the strip-mining transform if the loop was found
// vectorizable: the loop is duplicated once, the clone spliced in as the
// new exit target to run the remaining scalar iterations (the tail), and
// the original body rewritten to process UnrollFactor iterations per pass
// with vector instructions.
func (v *Vectorizer) Vectorize() (vectorLoop, tailLoop *loop.NaturalLoop, vectorized bool) {
	if !v.canVectorize {
		return nil, nil, false
	}
	tail := v.loop.DuplicateLoopAfterThisLoop()
	v.retargetTail(tail)
	v.stripMineLoop(UnrollFactor)
	return v.loop, tail, true
}

// retargetTail gives the cloned tail loop its own header label (the clone
// copied the original's, which would otherwise be emitted twice) and points
// the vector loop's exit jump at it, so a partial final strip falls out of
// the vector loop straight into the scalar tail. Generated labels already
// named by some instruction in the arena are skipped.
func (v *Vectorizer) retargetTail(tail *loop.NaturalLoop) {
	oldLabel := tail.Header.FirstLabel()
	if oldLabel == "" {
		return
	}
	used := make(map[string]bool)
	for _, b := range v.arena.All() {
		for _, inst := range b.Instructions {
			if tac.IsLabel(inst.Arg1) {
				used[inst.Arg1] = true
			}
		}
	}
	fresh := v.gen.NewLabel()
	for used[fresh] {
		fresh = v.gen.NewLabel()
	}
	tail.Header.Instructions[0].Arg1 = fresh
	for i := range tail.Footer.Instructions {
		inst := &tail.Footer.Instructions[i]
		if inst.Op == tac.UNCOND_JMP && inst.Arg1 == oldLabel {
			inst.Arg1 = fresh
		}
	}
	for i := range v.loop.Header.Instructions {
		inst := &v.loop.Header.Instructions[i]
		if inst.Op.IsConditionalJump() {
			inst.Arg1 = fresh
		}
	}
}

// stripMineLoop rewrites the vectorized copy in place: the header's bound
// is tightened so no strip runs past the original trip count, every
// iterator-dependent array access becomes a VLOAD/VSTORE pair member, the
// scalar arithmetic between them is widened, and the iterator's increment
// is scaled from 1 to unroll.
func (v *Vectorizer) stripMineLoop(unroll int64) {
	writeTemps := v.arrayWriteTemps()
	// pendingStores maps an address temporary to the ARRAY_INDEX that
	// computed it; the store is emitted as one fused VSTORE when the ASSIGN
	// through the temp is reached.
	pendingStores := make(map[string]tac.Instruction)
	vectorTemps := make(map[string]bool)

	v.loop.ForEachBBInBody(func(b *block.Block) {
		rewritten := make([]tac.Instruction, 0, len(b.Instructions))
		for _, inst := range b.Instructions {
			rewritten = append(rewritten, v.rewriteInstruction(inst, unroll, writeTemps, pendingStores, vectorTemps)...)
		}
		b.Instructions = rewritten
	})
}

// rewriteInstruction turns one scalar instruction into its vector
// equivalent (or drops/fuses it), per the rules in stripMineLoop.
func (v *Vectorizer) rewriteInstruction(inst tac.Instruction, unroll int64,
	writeTemps map[string]bool, pendingStores map[string]tac.Instruction, vectorTemps map[string]bool) []tac.Instruction {

	// Header bound: i < B becomes i < B-(UF-1) so the last full strip is
	// the last one taken; the tail loop picks up any remainder.
	if inst.Op == tac.JMP_GE || inst.Op == tac.JMP_G {
		if a, _ := preprocess.CompareOperands(inst); a == v.index.Var {
			inst.Result = formatInt(v.bound - unroll + 1)
		}
		return []tac.Instruction{inst}
	}

	// The iterator's own increment advances by a whole strip at a time.
	if inst.Op == tac.ADD && inst.Result == v.index.Var && inst.Arg2 == v.index.Constant {
		step, ok := inst.ConstantValue(inst.Arg2)
		if !ok {
			step = 1
		}
		scaled := inst
		scaled.Arg2 = formatInt(step * unroll)
		return []tac.Instruction{scaled}
	}

	switch inst.Op {
	case tac.ARRAY_INDEX:
		if _, dep, ok := v.distanceForIndexExpr(inst.Arg2); !ok || !dep {
			return []tac.Instruction{inst}
		}
		if writeTemps[inst.Result] {
			// Emitted later, fused with its ASSIGN into one VSTORE.
			pendingStores[inst.Result] = inst
			return nil
		}
		vectorTemps[inst.Result] = true
		return []tac.Instruction{v.gen.MakeVector(inst.Scope, tac.VLOAD, inst.Arg1, inst.Arg2, inst.Result)}

	case tac.ASSIGN:
		if ai, ok := pendingStores[inst.Result]; ok {
			// VSTORE carries (base, index) in Arg1/Arg2 and the stored value
			// in the Result slot.
			return []tac.Instruction{v.gen.MakeVector(inst.Scope, tac.VSTORE, ai.Arg1, ai.Arg2, inst.Arg1)}
		}
		if vectorTemps[inst.Arg1] || IsInstructionDependentOnIndex(v.loop, inst, v.index) {
			vectorTemps[inst.Result] = true
			return []tac.Instruction{v.gen.MakeVector(inst.Scope, tac.VASSIGN, inst.Arg1, "", inst.Result)}
		}

	case tac.ADD, tac.SUB:
		if vectorTemps[inst.Arg1] || vectorTemps[inst.Arg2] || IsInstructionDependentOnIndex(v.loop, inst, v.index) {
			op := tac.VADD
			if inst.Op == tac.SUB {
				op = tac.VSUB
			}
			vectorTemps[inst.Result] = true
			return []tac.Instruction{v.gen.MakeVector(inst.Scope, op, inst.Arg1, inst.Arg2, inst.Result)}
		}
	}
	return []tac.Instruction{inst}
}

func formatInt(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

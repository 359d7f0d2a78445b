// Package liveness computes per-block liveness and next-use information,
// the input register allocation draws from during code generation
// (next-use-driven register reuse and spill decisions).
package liveness

import (
	"fmt"

	"pl0c/internal/block"
	"pl0c/internal/symtab"
	"pl0c/internal/tac"
)

// NoNextUse marks a variable with no subsequent use in the block.
const NoNextUse = symtab.NoNextUse

// Entry holds liveness and next-use information for a single variable at one
// point in a block.
type Entry struct {
	Live    bool
	NextUse int
}

func (e Entry) String() string {
	return fmt.Sprintf("(%t, %d)", e.Live, e.NextUse)
}

// Snapshot is the liveness/next-use table attached to one instruction: the
// state of every variable mentioned in the block as the reverse walk reaches
// that instruction, before its own result and operands are applied — so it
// reflects uses that come after the instruction.
type Snapshot map[string]Entry

func (s Snapshot) IsLive(name string) bool     { return s[name].Live }
func (s Snapshot) HasNextUse(name string) bool { return s[name].NextUse != NoNextUse }
func (s Snapshot) NextUseOf(name string) int   { return s[name].NextUse }

// Table holds liveness/next-use snapshots for every simple instruction in
// one basic block, keyed by TAC instruction id.
type Table struct {
	snapshots map[uint64]Snapshot
}

// Compute runs the liveness algorithm over b:
//
//  1. Seed a table where every user-defined variable starts live with no
//     next use, and every temporary starts dead with no next use.
//  2. Walk the block's instructions in reverse. For each simple
//     instruction, snapshot the table's current entries for its operands
//     and result, then update the table: the result becomes dead with no
//     next use (it's about to be overwritten going backward), and each
//     operand becomes live with its next use set to this instruction.
func Compute(b *block.Block) *Table {
	t := &Table{snapshots: make(map[uint64]Snapshot)}
	live := make(map[string]Entry)
	defaultTable(live, b)

	for i := len(b.Instructions) - 1; i >= 0; i-- {
		inst := b.Instructions[i]
		if !inst.IsSimple() {
			continue
		}

		snap := make(Snapshot, len(live))
		for name, e := range live {
			snap[name] = e
		}
		t.snapshots[inst.ID] = snap

		if inst.Op.HasResult() && inst.Result != "" {
			live[inst.Result] = Entry{Live: false, NextUse: NoNextUse}
		}
		operands := []string{inst.Arg1, inst.Arg2}
		if inst.Op == tac.VSTORE {
			// A VSTORE's Result slot carries the value being stored — a use,
			// not a definition.
			operands = append(operands, inst.Result)
		}
		for _, operand := range operands {
			if operand == "" || tac.IsLabel(operand) || inst.IsOperandConstant(operand) {
				continue
			}
			live[operand] = Entry{Live: true, NextUse: int(inst.ID)}
		}
	}
	return t
}

// defaultTable seeds every variable mentioned in b: user-defined variables
// start live (they may be read by a later block), temporaries start dead,
// both with no known next use yet.
func defaultTable(table map[string]Entry, b *block.Block) {
	seen := make(map[string]bool)
	for _, inst := range b.Instructions {
		for _, operand := range []string{inst.Arg1, inst.Arg2, inst.Result} {
			if operand == "" || tac.IsLabel(operand) || seen[operand] {
				continue
			}
			seen[operand] = true
			table[operand] = defaultLivenessFor(operand)
		}
	}
}

func defaultLivenessFor(name string) Entry {
	if tac.IsTemporary(name) {
		return Entry{Live: false, NextUse: NoNextUse}
	}
	return Entry{Live: true, NextUse: NoNextUse}
}

// At returns the liveness/next-use snapshot attached to instruction id tid.
func (t *Table) At(tid uint64) Snapshot { return t.snapshots[tid] }

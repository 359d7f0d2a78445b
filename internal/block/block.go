// Package block implements basic blocks.
//
// The block graph — a cyclic directed graph with mutable edge sets and
// stable identity — is modeled as an arena indexed by block id, with
// successor/predecessor edges stored as id lists rather than shared
// pointers. This eliminates the reference cycles the original's shared_ptr
// graph has, and makes dropping the arena (backed by compctx.Context.Reset)
// the direct analogue of the original's static
// BasicBlock::resetGlobalState().
package block

import (
	"fmt"
	"sort"

	"pl0c/internal/compctx"
	"pl0c/internal/tac"
)

// ID identifies a basic block within an Arena. IDs are never reused within
// one compilation.
type ID uint64

// Block is a maximal straight-line run of TAC instructions with a single
// entry (its first instruction) and a single exit (its last).
type Block struct {
	Major ID
	Minor uint64 // disambiguates clones produced by the strip miner

	Instructions []tac.Instruction
	Successors   []ID
	Predecessors []ID
}

// FirstLabel returns the label name of the block's leader if it is a LABEL
// instruction, else "".
func (b *Block) FirstLabel() string {
	if len(b.Instructions) > 0 && b.Instructions[0].Op == tac.LABEL {
		return b.Instructions[0].Arg1
	}
	return ""
}

// HasEnterProcedure reports whether this block contains a procedure's
// ENTER_PROC marker. ENTER_PROC always immediately follows the procedure's
// own LABEL with nothing in between (internal/ast's KindProcDecl lowering),
// and that LABEL is already forced to be a leader as a CALL target, so the
// blocker lets ENTER_PROC share the label's block rather than forcing a
// split — ENTER_PROC is not necessarily this block's first instruction.
func (b *Block) HasEnterProcedure() bool {
	for _, i := range b.Instructions {
		if i.Op == tac.ENTER_PROC {
			return true
		}
	}
	return false
}

// EnterProcedureName returns the procedure name named by this block's
// ENTER_PROC instruction, or "" if it has none.
func (b *Block) EnterProcedureName() string {
	for _, i := range b.Instructions {
		if i.Op == tac.ENTER_PROC {
			return i.Arg1
		}
	}
	return ""
}

// HasExitProcedure reports whether this block ends a procedure body.
func (b *Block) HasExitProcedure() bool {
	for _, i := range b.Instructions {
		if i.Op == tac.EXIT_PROC {
			return true
		}
	}
	return false
}

// HasProcedureCall reports whether any instruction in this block is a CALL.
func (b *Block) HasProcedureCall() bool {
	for _, i := range b.Instructions {
		if i.Op == tac.CALL {
			return true
		}
	}
	return false
}

// EndsWithUnconditionalJump reports whether the block's last instruction is
// an unconditional jump.
func (b *Block) EndsWithUnconditionalJump() bool {
	if len(b.Instructions) == 0 {
		return false
	}
	return b.Instructions[len(b.Instructions)-1].Op == tac.UNCOND_JMP
}

// ChangesControlAtEnd reports whether the block's last instruction transfers
// control at all (conditional/unconditional jump or call).
func (b *Block) ChangesControlAtEnd() bool {
	if len(b.Instructions) == 0 {
		return false
	}
	return b.Instructions[len(b.Instructions)-1].Op.TransfersControl()
}

func (b *Block) insertInstruction(inst tac.Instruction) {
	b.Instructions = append(b.Instructions, inst)
}

// ComputeGenKill computes this block's reach-analysis gen/kill sets: gen is the last TAC id in the block that (re)defines each variable
// it assigns; kill is every other program-wide definition of those same
// variables.
func (b *Block) ComputeGenKill(ctx *compctx.Context) (gen, kill map[uint64]bool) {
	gen = make(map[uint64]bool)
	kill = make(map[uint64]bool)
	lastDefOf := make(map[string]uint64)
	for _, inst := range b.Instructions {
		if inst.Op.HasResult() && inst.Result != "" {
			lastDefOf[inst.Result] = inst.ID
		}
	}
	for name, id := range lastDefOf {
		gen[id] = true
		for other := range ctx.DefinitionsOf(name, id) {
			kill[other] = true
		}
	}
	return gen, kill
}

// DefChain returns, for each variable assigned in this block, the ordered
// list of instructions defining it.
func (b *Block) DefChain() map[string][]tac.Instruction {
	chain := make(map[string][]tac.Instruction)
	for _, inst := range b.Instructions {
		if inst.Op.HasResult() && inst.Result != "" {
			chain[inst.Result] = append(chain[inst.Result], inst)
		}
	}
	return chain
}

// UseChain returns, for each variable read in this block, the ordered list
// of instructions using it.
func (b *Block) UseChain() map[string][]tac.Instruction {
	chain := make(map[string][]tac.Instruction)
	for _, inst := range b.Instructions {
		for _, operand := range []string{inst.Arg1, inst.Arg2} {
			if operand == "" || tac.IsLabel(operand) {
				continue
			}
			chain[operand] = append(chain[operand], inst)
		}
	}
	return chain
}

func (b *Block) String() string {
	return fmt.Sprintf("BB%d.%d", b.Major, b.Minor)
}

// Arena owns every Block in a compilation and is the sole place new blocks
// are minted, replacing the original's shared_ptr-based allocation.
type Arena struct {
	ctx    *compctx.Context
	blocks map[ID]*Block
}

// NewArena constructs an empty Arena sharing ctx's id counters.
func NewArena(ctx *compctx.Context) *Arena {
	return &Arena{ctx: ctx, blocks: make(map[ID]*Block)}
}

// New allocates a fresh, empty block with the next major id.
func (a *Arena) New() *Block {
	id := ID(a.ctx.NextBlockID())
	b := &Block{Major: id}
	a.blocks[id] = b
	return b
}

// Clone duplicates src's instructions into a new block with a fresh major id
// and an incremented minor id, used by the loop vectorizer/strip miner
// to produce the unrolled/tail copies. Instructions are given
// fresh TAC ids via tac.Instruction.NewID so the clone's instruction-id set
// stays disjoint from the original's.
func (a *Arena) Clone(src *Block) *Block {
	id := ID(a.ctx.NextBlockID())
	clone := &Block{Major: id, Minor: src.Minor + a.ctx.NextMinorID() + 1}
	clone.Instructions = make([]tac.Instruction, len(src.Instructions))
	copy(clone.Instructions, src.Instructions)
	for i := range clone.Instructions {
		clone.Instructions[i].NewID(a.ctx)
	}
	a.blocks[id] = clone
	return clone
}

// Get retrieves a block by id.
func (a *Arena) Get(id ID) *Block { return a.blocks[id] }

// All returns every block in the arena ordered by (Major, Minor) — the
// program's total block order.
func (a *Arena) All() []*Block {
	result := make([]*Block, 0, len(a.blocks))
	for _, b := range a.blocks {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Major != result[j].Major {
			return result[i].Major < result[j].Major
		}
		return result[i].Minor < result[j].Minor
	})
	return result
}

// Link adds a successor/predecessor edge pair between from and to.
func (a *Arena) Link(from, to *Block) {
	from.Successors = append(from.Successors, to.Major)
	to.Predecessors = append(to.Predecessors, from.Major)
}

// Unlink removes a previously added edge, if present.
func (a *Arena) Unlink(from, to *Block) {
	from.Successors = removeID(from.Successors, to.Major)
	to.Predecessors = removeID(to.Predecessors, from.Major)
}

func removeID(list []ID, target ID) []ID {
	out := list[:0]
	for _, id := range list {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// Predecessors resolves the Block pointers for b's predecessor ids.
func (a *Arena) Predecessors(b *Block) []*Block {
	result := make([]*Block, 0, len(b.Predecessors))
	for _, id := range b.Predecessors {
		result = append(result, a.blocks[id])
	}
	return result
}

// Successors resolves the Block pointers for b's successor ids.
func (a *Arena) Successors(b *Block) []*Block {
	result := make([]*Block, 0, len(b.Successors))
	for _, id := range b.Successors {
		result = append(result, a.blocks[id])
	}
	return result
}

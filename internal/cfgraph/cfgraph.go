// Package cfgraph builds one control-flow graph per procedure (plus one for
// the program entry), and computes dominator trees over them.
package cfgraph

import (
	"fmt"
	"strings"

	"pl0c/internal/block"
)

// CFG is a control-flow graph scoped to one procedure (or the program
// entry). It never shares blocks with another procedure's CFG.
type CFG struct {
	Name  string
	Entry *block.Block
	arena *block.Arena

	postorder []*block.Block
	postIndex map[block.ID]int
	blockSet  map[block.ID]bool
}

// Build constructs the CFG rooted at entry, collecting every block
// transitively reachable through successor edges. Because the blocker never
// links across a procedure boundary, this reachability walk
// naturally confines each CFG to one procedure's blocks.
func Build(arena *block.Arena, name string, entry *block.Block) *CFG {
	c := &CFG{Name: name, Entry: entry, arena: arena, blockSet: make(map[block.ID]bool)}
	c.computePostorder()
	return c
}

// BuildAll scans every block for procedure entries and builds one CFG per
// block carrying an ENTER_PROC, plus one rooted at the program entry block.
func BuildAll(arena *block.Arena, entry *block.Block, all []*block.Block) []*CFG {
	cfgs := []*CFG{Build(arena, "_entry", entry)}
	for _, b := range all {
		if !b.HasEnterProcedure() {
			continue
		}
		cfgs = append(cfgs, Build(arena, b.EnterProcedureName(), b))
	}
	return cfgs
}

func (c *CFG) computePostorder() {
	visited := make(map[block.ID]bool)
	var order []*block.Block
	var visit func(b *block.Block)
	visit = func(b *block.Block) {
		if b == nil || visited[b.Major] {
			return
		}
		visited[b.Major] = true
		c.blockSet[b.Major] = true
		for _, s := range c.arena.Successors(b) {
			visit(s)
		}
		order = append(order, b)
	}
	visit(c.Entry)

	c.postorder = order
	c.postIndex = make(map[block.ID]int, len(order))
	for i, b := range order {
		c.postIndex[b.Major] = i
	}
}

// PerformPostorderTraversal invokes action on every block reachable from the
// entry, in post-order.
func (c *CFG) PerformPostorderTraversal(action func(b *block.Block)) {
	for _, b := range c.postorder {
		action(b)
	}
}

// Blocks returns every block belonging to this CFG, in post-order.
func (c *CFG) Blocks() []*block.Block { return c.postorder }

// Contains reports whether b belongs to this CFG.
func (c *CFG) Contains(b *block.Block) bool { return c.blockSet[b.Major] }

// postIndexOf returns a block's index in the post-order numbering, used by
// the dominator intersection walk.
func (c *CFG) postIndexOf(b *block.Block) int { return c.postIndex[b.Major] }

// ToGraph renders the CFG as a Graphviz dot digraph.
func (c *CFG) ToGraph() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %s {\n", c.Name)
	for _, b := range c.postorder {
		for _, s := range c.arena.Successors(b) {
			fmt.Fprintf(&sb, "  BB%d -> BB%d;\n", b.Major, s.Major)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (c *CFG) Arena() *block.Arena { return c.arena }

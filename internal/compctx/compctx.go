// Package compctx encapsulates the process-wide mutable counters the
// original compiler kept as static class members (tac_line_t::bid_gen,
// BasicBlock::basicBlockIdGenerator, BasicBlock::minorIdGenerator, and the
// global BasicBlock::globalVarDefinitions set), moved into an explicitly
// passed context instead of package-level globals, with a Reset method
// standing in for the original's static resetGlobalState() hook so an
// embedder can run independent compilations in the same process.
package compctx

import "github.com/google/uuid"

// Context owns the counters and cross-block bookkeeping that are shared
// across a single compilation: the TAC instruction id generator, the basic
// block major/minor id generators, and the set of TAC instruction ids that
// assign some variable anywhere in the program (used by reaching-definition
// analysis as the universe of "kill" candidates).
type Context struct {
	// ID tags a Context so diagnostics from concurrent or sequential
	// compilations in the same process can be told apart.
	ID uuid.UUID

	nextTACID   uint64
	nextBlockID uint64
	nextMinorID uint64

	// GlobalVarDefinitions is every TAC instruction id, across the whole
	// program, whose result assigns a variable. Reach analysis treats this
	// as the global "kill" universe per variable.
	GlobalVarDefinitions map[string]map[uint64]bool
}

// New constructs a fresh compilation context with all counters at zero.
func New() *Context {
	return &Context{
		ID:                   uuid.New(),
		GlobalVarDefinitions: make(map[string]map[uint64]bool),
	}
}

// NextTACID allocates a fresh, monotonically increasing TAC instruction id.
func (c *Context) NextTACID() uint64 {
	id := c.nextTACID
	c.nextTACID++
	return id
}

// NextBlockID allocates a fresh basic-block major id.
func (c *Context) NextBlockID() uint64 {
	id := c.nextBlockID
	c.nextBlockID++
	return id
}

// NextMinorID allocates a fresh basic-block minor id, used only to
// disambiguate clones produced by the strip miner.
func (c *Context) NextMinorID() uint64 {
	id := c.nextMinorID
	c.nextMinorID++
	return id
}

// RecordDefinition registers that TAC instruction id defines variable name,
// growing the global kill universe reach analysis draws from.
func (c *Context) RecordDefinition(name string, id uint64) {
	set, ok := c.GlobalVarDefinitions[name]
	if !ok {
		set = make(map[uint64]bool)
		c.GlobalVarDefinitions[name] = set
	}
	set[id] = true
}

// DefinitionsOf returns every TAC instruction id in the program (in any
// block) that assigns name, excluding exceptFor.
func (c *Context) DefinitionsOf(name string, exceptFor uint64) map[uint64]bool {
	result := make(map[uint64]bool)
	for id := range c.GlobalVarDefinitions[name] {
		if id != exceptFor {
			result[id] = true
		}
	}
	return result
}

// Reset restores the context to its construction state — the Go analogue of
// BasicBlock::resetGlobalState(), letting one process run independent
// compilations back to back without stale ids leaking between them.
func (c *Context) Reset() {
	*c = *New()
}

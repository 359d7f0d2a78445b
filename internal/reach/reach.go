// Package reach computes reaching-definition sets over a control-flow graph
// using the standard iterative worklist algorithm.
package reach

import (
	"pl0c/internal/block"
	"pl0c/internal/cfgraph"
	"pl0c/internal/compctx"
)

// Sets holds the per-block gen/kill/in/out definition sets, keyed by TAC
// instruction id.
type Sets struct {
	Gen  map[block.ID]map[uint64]bool
	Kill map[block.ID]map[uint64]bool
	In   map[block.ID]map[uint64]bool
	Out  map[block.ID]map[uint64]bool
}

// Analyze runs reaching-definition analysis over every block in cfg,
// iterating to a fixed point:
//
//	in[b]  = union of out[p] for every predecessor p of b
//	out[b] = gen[b] ∪ (in[b] - kill[b])
func Analyze(ctx *compctx.Context, cfg *cfgraph.CFG) *Sets {
	s := &Sets{
		Gen:  make(map[block.ID]map[uint64]bool),
		Kill: make(map[block.ID]map[uint64]bool),
		In:   make(map[block.ID]map[uint64]bool),
		Out:  make(map[block.ID]map[uint64]bool),
	}

	blocks := cfg.Blocks()
	for _, b := range blocks {
		gen, kill := b.ComputeGenKill(ctx)
		s.Gen[b.Major] = gen
		s.Kill[b.Major] = kill
		s.In[b.Major] = make(map[uint64]bool)
		s.Out[b.Major] = make(map[uint64]bool)
	}

	arena := cfg.Arena()
	changed := true
	for changed {
		changed = false
		for _, b := range blocks {
			in := make(map[uint64]bool)
			for _, p := range arena.Predecessors(b) {
				if !cfg.Contains(p) {
					continue
				}
				for id := range s.Out[p.Major] {
					in[id] = true
				}
			}
			s.In[b.Major] = in

			out := make(map[uint64]bool)
			for id := range s.Gen[b.Major] {
				out[id] = true
			}
			for id := range in {
				if !s.Kill[b.Major][id] {
					out[id] = true
				}
			}

			if !setEqual(out, s.Out[b.Major]) {
				s.Out[b.Major] = out
				changed = true
			}
		}
	}

	return s
}

func setEqual(a, b map[uint64]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}

// ReachesIn reports whether the definition with instruction id def reaches
// the start of block b.
func (s *Sets) ReachesIn(b *block.Block, def uint64) bool {
	return s.In[b.Major][def]
}

// ReachesOut reports whether the definition with instruction id def reaches
// the end of block b.
func (s *Sets) ReachesOut(b *block.Block, def uint64) bool {
	return s.Out[b.Major][def]
}

package cfgraph

import "pl0c/internal/block"

// Dominators is the immediate-dominator tree of one CFG, computed with the
// Cooper-Harvey-Kennedy iterative algorithm over reverse postorder.
type Dominators struct {
	cfg   *CFG
	idoms map[block.ID]block.ID
}

// ComputeDominators builds the immediate-dominator tree for c.
func ComputeDominators(c *CFG) *Dominators {
	d := &Dominators{cfg: c, idoms: make(map[block.ID]block.ID)}
	d.idoms[c.Entry.Major] = c.Entry.Major

	rpo := c.reversePostorder()
	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b.Major == c.Entry.Major {
				continue
			}
			preds := c.arena.Predecessors(b)
			newIdom := block.ID(0)
			havePick := false
			for _, p := range preds {
				if _, ok := d.idoms[p.Major]; !ok {
					continue
				}
				if !havePick {
					newIdom = p.Major
					havePick = true
					continue
				}
				newIdom = d.intersect(newIdom, p.Major)
			}
			if !havePick {
				continue
			}
			if old, ok := d.idoms[b.Major]; !ok || old != newIdom {
				d.idoms[b.Major] = newIdom
				changed = true
			}
		}
	}
	return d
}

// reversePostorder returns the CFG's blocks in reverse postorder, the
// traversal order the dominator fixed point converges fastest under.
func (c *CFG) reversePostorder() []*block.Block {
	rpo := make([]*block.Block, len(c.postorder))
	for i, b := range c.postorder {
		rpo[len(c.postorder)-1-i] = b
	}
	return rpo
}

// intersect walks two candidate dominators' finger pointers up the
// (partially built) dominator tree until they meet, using post-order index
// as the ordering (a block with a higher post-order index is "above" one
// with a lower index on the same path to the entry).
func (d *Dominators) intersect(a, b block.ID) block.ID {
	for a != b {
		for d.cfg.postIndex[a] < d.cfg.postIndex[b] {
			a = d.idoms[a]
		}
		for d.cfg.postIndex[b] < d.cfg.postIndex[a] {
			b = d.idoms[b]
		}
	}
	return a
}

// ImmediateDominator returns b's immediate dominator, or b itself for the
// entry block.
func (d *Dominators) ImmediateDominator(b *block.Block) *block.Block {
	return d.cfg.arena.Get(d.idoms[b.Major])
}

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (d *Dominators) Dominates(a, b *block.Block) bool {
	cur := b.Major
	for {
		if cur == a.Major {
			return true
		}
		parent, ok := d.idoms[cur]
		if !ok || parent == cur {
			return cur == a.Major
		}
		cur = parent
	}
}

// ProperlyDominates reports whether a dominates b and a != b.
func (d *Dominators) ProperlyDominates(a, b *block.Block) bool {
	return a.Major != b.Major && d.Dominates(a, b)
}

// DominanceFrontier returns the dominance frontier of b: every block x such
// that b dominates a predecessor of x but does not strictly dominate x.
func (d *Dominators) DominanceFrontier(b *block.Block) []*block.Block {
	var frontier []*block.Block
	for _, x := range d.cfg.postorder {
		for _, p := range d.cfg.arena.Predecessors(x) {
			if d.Dominates(b, p) && !d.ProperlyDominates(b, x) {
				frontier = append(frontier, x)
				break
			}
		}
	}
	return frontier
}

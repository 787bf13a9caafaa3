// Package coloring implements BasicGraphColoringAllocator: interference
// graph construction, reverse-postorder greedy coloring, and the Belady
// cost-based spillers.
//
// Grounded on py-regallo/allocators/graph/graph.py and spillers.py.
package coloring

import (
	"github.com/kestrelc/regallo/internal/analysis"
	"github.com/kestrelc/regallo/internal/ir"
	"github.com/kestrelc/regallo/internal/regset"
)

// InterferenceGraph maps each non-spilled variable to the set of variables
// it may not share a register with.
type InterferenceGraph map[*ir.Variable]map[*ir.Variable]bool

func (g InterferenceGraph) addEdge(a, b *ir.Variable) {
	if g[a] == nil {
		g[a] = map[*ir.Variable]bool{}
	}
	if g[b] == nil {
		g[b] = map[*ir.Variable]bool{}
	}
	g[a][b] = true
	g[b][a] = true
}

// BuildInterferenceGraph adds a clique over every block's live-in set, plus
// an edge between each instruction's definition and every other
// simultaneously live-out variable.
func BuildInterferenceGraph(f *ir.Function) InterferenceGraph {
	neighs := InterferenceGraph{}
	for _, v := range f.Vars {
		neighs[v] = map[*ir.Variable]bool{}
	}

	for _, bb := range f.Blocks {
		liveIn := make([]*ir.Variable, 0, len(bb.LiveIn))
		for _, v := range bb.LiveIn {
			liveIn = append(liveIn, v)
		}
		for _, v1 := range liveIn {
			if v1.IsSpilled() {
				continue
			}
			for _, v2 := range liveIn {
				if v2 == v1 || v2.IsSpilled() {
					continue
				}
				neighs.addEdge(v1, v2)
			}
		}

		for _, instr := range bb.Instructions {
			defn := instr.Def
			if defn == nil || defn.IsSpilled() {
				continue
			}
			if _, live := instr.LiveOut[defn.ID]; !live {
				continue
			}
			for _, v := range instr.LiveOut {
				if v == defn || v.IsSpilled() {
					continue
				}
				neighs.addEdge(v, defn)
			}
		}
	}

	return neighs
}

// Color assigns registers to every non-spilled variable in f, assuming its
// interference graph is regcount-colorable: entry-live variables get
// registers first, then each block is colored independently in reverse
// postorder, freeing a use's register once its value is no longer live and
// handing out a fresh one at each live-out definition.
func Color(f *ir.Function, regcount int) {
	regs := regset.New(regcount)

	for _, v := range f.Entry.LiveIn {
		if v.IsSpilled() {
			continue
		}
		if reg, ok := regs.GetFree(); ok {
			v.Alloc = ir.Reg(reg)
		}
	}

	colorBlock := func(bb *ir.BasicBlock) {
		regs.Reset()

		for _, v := range bb.LiveIn {
			if v.Alloc.IsRegister() {
				regs.Occupy(v.Alloc.Reg)
			}
		}

		for _, instr := range bb.Instructions {
			if !instr.IsPhi() {
				for _, v := range instr.Uses {
					if _, live := instr.LiveOut[v.ID]; !live && v.Alloc.IsRegister() {
						regs.SetFree(v.Alloc.Reg)
					}
				}
			}

			defn := instr.Def
			if defn != nil && defn.Alloc.IsNone() {
				if _, live := instr.LiveOut[defn.ID]; live {
					if reg, ok := regs.GetFree(); ok {
						defn.Alloc = ir.Reg(reg)
					}
				}
			}
		}
	}

	for _, bb := range analysis.ReversePostorder(f) {
		colorBlock(bb)
	}
}

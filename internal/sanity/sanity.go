// Package sanity implements the post-allocation correctness checks:
// allocation-is-injection (P1), data-flow preservation across inserted
// movs/loads/stores (P2), and the chordality witness used to validate a
// graph-coloring allocator's assumption (P4).
//
// Grounded on py-regallo/cfg/sanity.py.
package sanity

import (
	"sort"

	"github.com/kestrelc/regallo/internal/analysis"
	"github.com/kestrelc/regallo/internal/ir"
)

// AllocationIsCorrect reports whether, at every program point, the mapping
// from live variables to registers is an injection: every live variable has
// a register (not a memory slot, not unassigned), and no two simultaneously
// live variables share one.
func AllocationIsCorrect(f *ir.Function) bool {
	analysis.PerformLiveness(f, nil)

	isInjection := func(varset map[ir.VarID]*ir.Variable) bool {
		seen := map[int]bool{}
		for _, v := range varset {
			if !v.Alloc.IsRegister() || seen[v.Alloc.Reg] {
				return false
			}
			seen[v.Alloc.Reg] = true
		}
		return true
	}

	for _, bb := range f.Blocks {
		if !isInjection(bb.LiveIn) {
			return false
		}
		for _, instr := range bb.Instructions {
			if !isInjection(instr.LiveOut) {
				return false
			}
		}
	}
	return true
}

// DataFlowIsCorrect reports whether, for every instruction copied from the
// original (pre-allocation) function, every use it reads traces back
// through the movs/loads/stores inserted by allocation to the same
// definition the original instruction read from.
//
// defsOrig maps each original variable id to the instruction that defined
// it (only definitions — a variable with no entry is assumed to be a
// function argument or otherwise externally defined).
func DataFlowIsCorrect(f, orig *ir.Function) bool {
	defsNew := map[ir.VarID]*ir.Instruction{}
	defsOrig := map[ir.VarID]*ir.Instruction{}

	for _, bb := range f.Blocks {
		for _, instr := range bb.Instructions {
			if instr.Def != nil {
				defsNew[instr.Def.ID] = instr
			} else if instr.Op == ir.OpStore && len(instr.UsesDebug) > 0 {
				if instr.UsesDebug[0].Kind == ir.OperandLabel || instr.UsesDebug[0].Kind == ir.OperandConst {
					defsNew[ir.VarID(instr.UsesDebug[0].Lit)] = instr
				}
			}
		}
	}
	for _, bb := range orig.Blocks {
		for _, instr := range bb.Instructions {
			if instr.Def != nil {
				defsOrig[instr.Def.ID] = instr
			}
		}
	}

	var findOriginalDefinition func(v, varOrig *ir.Variable) bool
	findOriginalDefinition = func(v, varOrig *ir.Variable) bool {
		_, hasOrigDef := defsOrig[varOrig.ID]
		tmp := v
		for {
			pred, ok := defsNew[tmp.ID]
			if !ok {
				return !hasOrigDef
			}

			if pred.SSA && pred.Original != nil {
				if pred.Original.Def == varOrig {
					return true
				}
				return false
			}

			switch pred.Op {
			case ir.OpMov:
				if len(pred.UsesDebug) != 1 || pred.UsesDebug[0].Kind != ir.OperandVar {
					return false
				}
				tmp = pred.UsesDebug[0].Var

			case ir.OpLoad:
				if len(pred.UsesDebug) != 1 {
					return false
				}
				memslot := pred.UsesDebug[0].Lit
				store, ok := defsNew[ir.VarID(memslot)]
				if !ok {
					return !hasOrigDef
				}
				if len(store.UsesDebug) != 2 || store.UsesDebug[1].Kind != ir.OperandVar {
					return false
				}
				tmp = store.UsesDebug[1].Var

			default:
				return false
			}
		}
	}

	for _, bb := range f.Blocks {
		for _, instr := range bb.Instructions {
			if instr.Original == nil || !instr.SSA {
				continue
			}
			for i, v := range instr.Uses {
				if i >= len(instr.Original.UsesDebug) || instr.Original.UsesDebug[i].Kind != ir.OperandVar {
					continue
				}
				varOrig := instr.Original.UsesDebug[i].Var

				if defOrig, ok := defsOrig[varOrig.ID]; ok && defOrig.IsPhi() {
					continue
				}

				if !findOriginalDefinition(v, varOrig) {
					return false
				}
			}
		}
	}

	return true
}

// LexBFS returns neighs's variables in lexicographical-BFS order, the
// traversal chordal-graph recognition is built on.
func LexBFS(neighs map[*ir.Variable]map[*ir.Variable]bool) []*ir.Variable {
	type label struct {
		v *ir.Variable
		l []int
	}

	vars := make([]*ir.Variable, 0, len(neighs))
	for v := range neighs {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].ID < vars[j].ID })

	labels := make(map[*ir.Variable]*label, len(vars))
	for _, v := range vars {
		labels[v] = &label{v: v}
	}
	num := make(map[*ir.Variable]int, len(vars))

	remaining := append([]*ir.Variable(nil), vars...)

	less := func(a, b *label) bool {
		for i := 0; i < len(a.l) && i < len(b.l); i++ {
			if a.l[i] != b.l[i] {
				return a.l[i] < b.l[i]
			}
		}
		if len(a.l) != len(b.l) {
			return len(a.l) < len(b.l)
		}
		return a.v.ID < b.v.ID
	}

	for i := len(vars) - 1; i >= 1; i-- {
		sort.Slice(remaining, func(a, b int) bool { return less(labels[remaining[b]], labels[remaining[a]]) })
		largest := remaining[0]
		remaining = remaining[1:]
		num[largest] = i

		for n := range neighs[largest] {
			if num[n] == 0 {
				labels[n].l = append(labels[n].l, i)
			}
		}
	}

	order := append([]*ir.Variable(nil), vars...)
	sort.Slice(order, func(i, j int) bool { return num[order[i]] < num[order[j]] })
	return order
}

// IsChordal reports whether neighs, an interference graph adjacency map,
// is a chordal graph: the property BasicGraphColoringAllocator's
// reverse-postorder greedy coloring assumes holds.
func IsChordal(neighs map[*ir.Variable]map[*ir.Variable]bool) bool {
	order := LexBFS(neighs)
	pos := make(map[*ir.Variable]int, len(order))
	for i, v := range order {
		pos[v] = i
	}

	a := make(map[*ir.Variable]map[*ir.Variable]bool, len(neighs))
	for v := range neighs {
		a[v] = map[*ir.Variable]bool{}
	}

	for _, v := range order {
		var later []*ir.Variable
		for n := range neighs[v] {
			if pos[n] > pos[v] {
				later = append(later, n)
			}
		}
		if len(later) == 0 {
			continue
		}
		sort.Slice(later, func(i, j int) bool { return pos[later[i]] < pos[later[j]] })

		u := later[0]
		for _, w := range later[1:] {
			if !neighs[u][w] && !a[u][w] {
				return false
			}
			a[u][w] = true
		}
	}

	return true
}

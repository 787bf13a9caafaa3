// Package analysis implements the dataflow analyses spec.md §4.1 needs:
// reverse postorder, instruction numbering, defs/upward-exposed variables,
// liveness, dominance, natural-loop detection and register pressure.
//
// Grounded on py-regallo/cfg/analysis.py for the exact fixed-point
// formulas, and on fkuehnel-golang-cfg/go-code/dom.go for the explicit
// work-stack DFS idiom (spec.md §9 flags the original's recursive DFS as a
// stack-overflow risk on realistic CFGs).
package analysis

import (
	"sort"

	"github.com/kestrelc/regallo/internal/ir"
)

// blockAndIndex is a DFS stack frame: the block, and how many of its
// successors (in ascending-id order, for determinism) have been explored.
type blockAndIndex struct {
	b     *ir.BasicBlock
	succs []*ir.BasicBlock
	index int
}

func sortedSuccs(b *ir.BasicBlock) []*ir.BasicBlock {
	ids := make([]ir.BlockID, 0, len(b.Succs))
	for id := range b.Succs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*ir.BasicBlock, len(ids))
	for i, id := range ids {
		out[i] = b.Succs[id]
	}
	return out
}

func sortedPreds(b *ir.BasicBlock) []*ir.BasicBlock {
	ids := make([]ir.BlockID, 0, len(b.Preds))
	for id := range b.Preds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*ir.BasicBlock, len(ids))
	for i, id := range ids {
		out[i] = b.Preds[id]
	}
	return out
}

// Postorder returns f's blocks in DFS postorder from the entry block,
// using an explicit stack instead of recursion.
func Postorder(f *ir.Function) []*ir.BasicBlock {
	if f.Entry == nil {
		return nil
	}
	seen := map[ir.BlockID]bool{f.Entry.ID: true}
	order := make([]*ir.BasicBlock, 0, len(f.Blocks))

	stack := []blockAndIndex{{b: f.Entry, succs: sortedSuccs(f.Entry)}}
	for len(stack) > 0 {
		top := len(stack) - 1
		frame := &stack[top]
		if frame.index < len(frame.succs) {
			next := frame.succs[frame.index]
			frame.index++
			if !seen[next.ID] {
				seen[next.ID] = true
				stack = append(stack, blockAndIndex{b: next, succs: sortedSuccs(next)})
			}
			continue
		}
		stack = stack[:top]
		order = append(order, frame.b)
	}
	return order
}

// ReversePostorder reverses Postorder: every dominator precedes every
// block it strictly dominates.
func ReversePostorder(f *ir.Function) []*ir.BasicBlock {
	po := Postorder(f)
	rpo := make([]*ir.BasicBlock, len(po))
	for i, b := range po {
		rpo[len(po)-1-i] = b
	}
	return rpo
}

// NumberInstructions assigns consecutive integers 0,1,2,... to every
// instruction in bbs, in listing order.
func NumberInstructions(bbs []*ir.BasicBlock) {
	n := 0
	for _, bb := range bbs {
		for _, ins := range bb.Instructions {
			ins.Num = float64(n)
			n++
		}
	}
}

// ComputeDefsAndUEVs walks bb's instructions to populate bb.Defs (variables
// defined in this block) and bb.UEVs (non-phi uses before any local
// redefinition).
func ComputeDefsAndUEVs(bb *ir.BasicBlock) {
	defs := map[ir.VarID]*ir.Variable{}
	uevs := map[ir.VarID]*ir.Variable{}

	for _, ins := range bb.Instructions {
		if !ins.IsPhi() {
			for _, v := range ins.Uses {
				if _, defined := defs[v.ID]; !defined {
					uevs[v.ID] = v
				}
			}
		}
		if ins.Def != nil {
			defs[ins.Def.ID] = ins.Def
		}
	}

	bb.Defs = defs
	bb.UEVs = uevs
}

// perInstructionLiveness runs the backward, single-block pass that turns a
// block's live_out into per-instruction live_in/live_out sets.
func perInstructionLiveness(bb *ir.BasicBlock) {
	current := cloneVarSet(bb.LiveOut)

	for i := len(bb.Instructions) - 1; i >= 0; i-- {
		ins := bb.Instructions[i]
		ins.LiveOut = cloneVarSet(current)

		if ins.Def != nil {
			delete(current, ins.Def.ID)
		}
		if !ins.IsPhi() {
			for _, v := range ins.Uses {
				current[v.ID] = v
			}
		}

		ins.LiveIn = cloneVarSet(current)
	}
}

// PerformLiveness runs the fixed-point block-level liveness analysis
// (spec.md §4.1) followed by the per-instruction backward pass. ordered, if
// non-nil, fixes iteration order (e.g. reverse postorder, for faster
// convergence); otherwise blocks are visited in Function.OrderedBlocks
// order.
func PerformLiveness(f *ir.Function, ordered []*ir.BasicBlock) {
	for _, bb := range f.Blocks {
		ComputeDefsAndUEVs(bb)
		bb.LiveIn = map[ir.VarID]*ir.Variable{}
		bb.LiveOut = map[ir.VarID]*ir.Variable{}
	}

	if ordered == nil {
		ordered = f.OrderedBlocks()
	}

	changed := true
	for changed {
		changed = false
		for _, bb := range ordered {
			liveOutSize := len(bb.LiveOut)

			for _, succ := range sortedSuccs(bb) {
				for id, v := range succ.LiveIn {
					bb.LiveOut[id] = v
				}
				for _, phi := range succ.Phis {
					if use, ok := phi.PhiUses[bb.ID]; ok {
						if phi.Def != nil && !phi.Def.IsSpilled() {
							delete(bb.LiveOut, phi.Def.ID)
						}
						if !use.IsSpilled() {
							bb.LiveOut[use.ID] = use
						}
					}
				}
			}

			liveInSize := len(bb.LiveIn)

			maybeLiveIn := map[ir.VarID]*ir.Variable{}
			for id, v := range bb.UEVs {
				maybeLiveIn[id] = v
			}
			for id, v := range bb.LiveOut {
				if _, defined := bb.Defs[id]; !defined {
					maybeLiveIn[id] = v
				}
			}
			for _, phi := range bb.Phis {
				if phi.Def != nil && !phi.Def.IsSpilled() {
					maybeLiveIn[phi.Def.ID] = phi.Def
				}
			}

			bb.LiveIn = map[ir.VarID]*ir.Variable{}
			for id, v := range maybeLiveIn {
				if !v.IsSpilled() {
					bb.LiveIn[id] = v
				}
			}

			if len(bb.LiveIn) > liveInSize || len(bb.LiveOut) > liveOutSize {
				changed = true
			}
		}
	}

	for _, bb := range ordered {
		perInstructionLiveness(bb)
	}
}

func cloneVarSet(s map[ir.VarID]*ir.Variable) map[ir.VarID]*ir.Variable {
	out := make(map[ir.VarID]*ir.Variable, len(s))
	for id, v := range s {
		out[id] = v
	}
	return out
}

// PerformDominance runs the iterative-intersection dominator analysis of
// spec.md §4.1, writing bb.Dominators for every block.
func PerformDominance(f *ir.Function, ordered []*ir.BasicBlock) {
	if ordered == nil {
		ordered = f.OrderedBlocks()
	}

	all := map[ir.BlockID]*ir.BasicBlock{}
	for _, bb := range ordered {
		all[bb.ID] = bb
	}
	for _, bb := range ordered {
		bb.Dominators = map[ir.BlockID]*ir.BasicBlock{}
		for id, b := range all {
			bb.Dominators[id] = b
		}
	}
	f.Entry.Dominators = map[ir.BlockID]*ir.BasicBlock{f.Entry.ID: f.Entry}

	changed := true
	for changed {
		changed = false
		for _, bb := range ordered {
			if bb.ID == f.Entry.ID {
				continue
			}
			size := len(bb.Dominators)

			preds := sortedPreds(bb)
			var inter map[ir.BlockID]*ir.BasicBlock
			for i, p := range preds {
				if i == 0 {
					inter = map[ir.BlockID]*ir.BasicBlock{}
					for id, b := range p.Dominators {
						inter[id] = b
					}
					continue
				}
				for id := range inter {
					if _, ok := p.Dominators[id]; !ok {
						delete(inter, id)
					}
				}
			}
			if inter == nil {
				inter = map[ir.BlockID]*ir.BasicBlock{}
			}
			inter[bb.ID] = bb

			if len(inter) != size {
				changed = true
			}
			bb.Dominators = inter
		}
	}
}

// PerformLoopAnalysis finds natural loops by scanning back-edges found
// during a DFS from the entry block, then builds the loop-nesting forest
// and records each block's smallest enclosing loop.
func PerformLoopAnalysis(f *ir.Function) {
	var loops []*ir.Loop

	visited := map[ir.BlockID]bool{}
	onStack := map[ir.BlockID]bool{}

	var walk func(bb *ir.BasicBlock)
	walk = func(bb *ir.BasicBlock) {
		visited[bb.ID] = true
		onStack[bb.ID] = true
		for _, succ := range sortedSuccs(bb) {
			if onStack[succ.ID] {
				// Back-edge bb -> succ.
				if _, ok := bb.Dominators[succ.ID]; ok {
					loops = append(loops, buildLoop(succ, bb))
				}
				continue
			}
			if !visited[succ.ID] {
				walk(succ)
			}
		}
		onStack[bb.ID] = false
	}
	if f.Entry != nil {
		walk(f.Entry)
	}

	for i := range loops {
		for j := range loops {
			if i == j {
				continue
			}
			if loops[i].InnerOf(loops[j]) && (loops[i].Parent == nil || loops[j].InnerOf(loops[i].Parent)) {
				loops[i].Parent = loops[j]
			}
		}
	}

	var depth func(l *ir.Loop) int
	depth = func(l *ir.Loop) int {
		if l.Parent == nil {
			l.Depth = 1
			return 1
		}
		l.Depth = depth(l.Parent) + 1
		return l.Depth
	}
	for _, l := range loops {
		if l.Depth == 0 {
			depth(l)
		}
	}

	for _, l := range loops {
		for _, bb := range l.Body {
			if bb.Loop == nil || bb.Loop.Depth < l.Depth {
				bb.Loop = l
			}
		}
	}

	f.Loops = loops
}

// buildLoop materialises the natural loop for back-edge tail -> header:
// the body is every block reachable backward from tail up to (and
// including) header.
func buildLoop(header, tail *ir.BasicBlock) *ir.Loop {
	var body []*ir.BasicBlock
	visited := map[ir.BlockID]bool{}

	var walk func(bb *ir.BasicBlock)
	walk = func(bb *ir.BasicBlock) {
		visited[bb.ID] = true
		body = append(body, bb)
		if bb.ID == header.ID {
			return
		}
		for _, pred := range sortedPreds(bb) {
			if !visited[pred.ID] {
				walk(pred)
			}
		}
	}
	walk(tail)

	// walk appended in DFS-preorder from tail; reverse so header-first
	// order matches the original's body[::-1].
	rev := make([]*ir.BasicBlock, len(body))
	for i, bb := range body {
		rev[len(body)-1-i] = bb
	}
	return &ir.Loop{Header: header, Tail: tail, Body: rev}
}

// PerformFullAnalysis numbers instructions (in reverse-postorder block
// order), then runs liveness, dominance and loop analysis, matching
// py-regallo's perform_full_analysis.
func PerformFullAnalysis(f *ir.Function) {
	rpo := ReversePostorder(f)
	NumberInstructions(rpo)
	PerformLiveness(f, rpo)
	PerformDominance(f, rpo)
	PerformLoopAnalysis(f)
}

// MinimalRegisterPressure is the function-wide lower bound any allocator
// must respect: the maximum, over every instruction, of its non-phi use
// count (spec.md §4.1, P5).
func MinimalRegisterPressure(f *ir.Function) int {
	max := 0
	for _, bb := range f.Blocks {
		if p := bb.MinimalRegisterPressure(); p > max {
			max = p
		}
	}
	return max
}

// MaximalRegisterPressure is the function-wide maximum number of
// simultaneously live variables at any program point (spec.md P6).
func MaximalRegisterPressure(f *ir.Function) int {
	max := 0
	for _, bb := range f.Blocks {
		if p := bb.MaximalRegisterPressure(); p > max {
			max = p
		}
	}
	return max
}

// Package resolve turns an allocated SSA function into straight-line,
// allocation-respecting code: it inserts spill stores/loads for spilled
// variables and eliminates phi instructions via parallel-copy sequencing,
// splitting critical edges as needed.
//
// Grounded on py-regallo/cfg/resolve.py.
package resolve

import (
	"sort"

	"github.com/kestrelc/regallo/internal/ir"
)

// Alloc pairs a value (variable, or a literal constant/label) with the
// allocation slot it occupies at this point in the parallel copy: the
// original's own small Alloc helper class.
type Alloc struct {
	Var   *ir.Variable
	Lit   string
	Alloc ir.Allocation
}

func (a Alloc) Allocable() bool { return a.Alloc.Allocable() }

// Move is one parallel-copy entry: assign Use's value into Def's slot.
type Move struct {
	Def, Use Alloc
}

type edge struct {
	d, u Alloc
}

// OrderMoves sequences moves so that no move overwrites an allocation
// before every other move that still needs its old value has run, and
// separates out the self-loops (no-ops, returned at the front of the
// ordered list; materializeMove emits nothing for them) and the true cycles (which need a scratch
// register or memory slot to break).
//
// Based on S. Hack, "Register Allocation for Programs in SSA Form", 4.4.
func OrderMoves(moves []Move) ([]Move, [][]Move) {
	var nonAllocable, allocable, selfLoops []Move
	for _, m := range moves {
		switch {
		case !m.Use.Allocable():
			nonAllocable = append(nonAllocable, m)
		case m.Def.Alloc.Equal(m.Use.Alloc):
			selfLoops = append(selfLoops, m)
		default:
			allocable = append(allocable, m)
		}
	}

	in := map[ir.Allocation][]*edge{}
	out := map[ir.Allocation][]*edge{}
	var edges []*edge
	for _, m := range allocable {
		e := &edge{d: m.Def, u: m.Use}
		edges = append(edges, e)
		in[m.Def.Alloc] = append(in[m.Def.Alloc], e)
		out[m.Use.Alloc] = append(out[m.Use.Alloc], e)
	}

	removeFrom := func(list []*edge, e *edge) []*edge {
		out := make([]*edge, 0, len(list))
		for _, x := range list {
			if x != e {
				out = append(out, x)
			}
		}
		return out
	}
	contains := func(list []*edge, e *edge) bool {
		for _, x := range list {
			if x == e {
				return true
			}
		}
		return false
	}

	var leaves []*edge
	for _, e := range edges {
		if len(out[e.d.Alloc]) == 0 {
			leaves = append(leaves, e)
		}
	}

	var results []Move
	for len(leaves) > 0 {
		e := leaves[len(leaves)-1]
		leaves = leaves[:len(leaves)-1]
		if !contains(out[e.u.Alloc], e) {
			continue // already cut via another path
		}

		results = append(results, Move{Def: e.d, Use: e.u})
		out[e.u.Alloc] = removeFrom(out[e.u.Alloc], e)
		in[e.d.Alloc] = removeFrom(in[e.d.Alloc], e)

		for _, rem := range out[e.u.Alloc] {
			rem.u = e.d
			out[e.d.Alloc] = append(out[e.d.Alloc], rem)
		}
		out[e.u.Alloc] = nil
		leaves = append(leaves, in[e.u.Alloc]...)
	}

	// Whatever remains forms cycles. Iterate allocation keys in a
	// deterministic order (sorted by String()) since Go map order is not
	// stable across runs.
	allocKeys := make([]ir.Allocation, 0, len(in))
	for a := range in {
		allocKeys = append(allocKeys, a)
	}
	sort.Slice(allocKeys, func(i, j int) bool { return allocKeys[i].String() < allocKeys[j].String() })

	var cycles [][]Move
	visited := map[*edge]bool{}
	for _, start := range allocKeys {
		for len(in[start]) > 0 {
			e := in[start][len(in[start])-1]
			in[start] = in[start][:len(in[start])-1]
			if visited[e] {
				continue
			}
			visited[e] = true

			chain := []*edge{e}
			cur := e
			for !cur.u.Alloc.Equal(start) {
				next := in[cur.u.Alloc]
				if len(next) == 0 {
					break
				}
				cur = next[len(next)-1]
				in[cur.u.Alloc] = next[:len(next)-1]
				visited[cur] = true
				chain = append(chain, cur)
			}

			cycle := make([]Move, 0, len(chain))
			for _, e := range chain {
				cycle = append(cycle, Move{Def: e.d, Use: e.u})
			}
			cycles = append(cycles, cycle)
		}
	}

	ordered := make([]Move, 0, len(selfLoops)+len(results)+len(nonAllocable))
	ordered = append(ordered, selfLoops...)
	ordered = append(ordered, results...)
	ordered = append(ordered, nonAllocable...)
	return ordered, cycles
}

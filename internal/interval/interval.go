// Package interval implements lifetime intervals: the basic, single-range
// form used by BasicLinearScan, and the extended, hole-aware SSA form used
// by ExtendedLinearScan.
//
// Grounded on py-regallo/allocators/lscan/intervals.py.
package interval

import (
	"sort"

	"github.com/kestrelc/regallo/internal/ir"
)

// Interval is the basic [Fr, To] lifetime range of a single variable, plus
// the instructions that use it within that range.
type Interval struct {
	Var   *ir.Variable
	Fr    float64
	To    float64
	Alloc ir.Allocation
	Def   *ir.Instruction
	Uses  []*ir.Instruction
}

// NewInterval builds an empty interval for var, with the "nothing seen yet"
// bounds the original initializes to (fr=-0.5, to=0).
func NewInterval(v *ir.Variable) *Interval {
	return &Interval{Var: v, Fr: -0.5, To: 0}
}

func (iv *Interval) Empty() bool { return len(iv.Uses) == 0 }

// EndPoint returns iv.To, for use by sorted active-interval containers.
func (iv *Interval) EndPoint() float64 { return iv.To }

// UpdateEndpoints widens [Fr, To] to include fr/to.
func (iv *Interval) UpdateEndpoints(fr, to float64) {
	if iv.Fr > fr {
		iv.Fr = fr
	}
	if iv.To < to {
		iv.To = to
	}
}

// Allocate assigns alloc to the interval and propagates it to the variable.
func (iv *Interval) Allocate(alloc ir.Allocation) {
	iv.Alloc = alloc
	iv.Var.Alloc = alloc
}

// Spill assigns a memory slot named after the variable itself.
func (iv *Interval) Spill() {
	iv.Alloc = ir.MemSlot(iv.Var.ID)
	iv.Var.Alloc = iv.Alloc
}

// ExtendedInterval is the SSA-form lifetime range: a set of disjoint,
// ordered subintervals (so it can represent holes), plus an O(1)-amortized
// next-use cursor.
type ExtendedInterval struct {
	Var   *ir.Variable
	Fr    float64
	To    float64
	Alloc ir.Allocation
	Def   *ir.Instruction
	Uses  []*ir.Instruction

	Subintervals []*SubInterval
	Split        bool

	nextUseIdx int
}

// SubInterval is one contiguous, hole-free piece of an ExtendedInterval.
type SubInterval struct {
	Fr, To float64
	Parent *ExtendedInterval
}

// Intersection returns the lowest point at which sub and other overlap, or
// (0, false) if they don't.
func (sub *SubInterval) Intersection(other *SubInterval) (float64, bool) {
	if other.Fr >= sub.Fr && other.Fr <= sub.To {
		return other.Fr, true
	}
	if sub.Fr >= other.Fr && sub.Fr <= other.To {
		return sub.Fr, true
	}
	return 0, false
}

// NewExtendedInterval builds an empty extended interval for v.
func NewExtendedInterval(v *ir.Variable) *ExtendedInterval {
	return &ExtendedInterval{Var: v}
}

func (iv *ExtendedInterval) Empty() bool { return len(iv.Subintervals) == 0 }

// EndPoint returns iv.To, for use by sorted active-interval containers.
func (iv *ExtendedInterval) EndPoint() float64 { return iv.To }

// Allocate assigns alloc to the interval and propagates it to the variable.
func (iv *ExtendedInterval) Allocate(alloc ir.Allocation) {
	iv.Alloc = alloc
	iv.Var.Alloc = alloc
}

// Spill assigns a memory slot named after the variable itself.
func (iv *ExtendedInterval) Spill() {
	iv.Alloc = ir.MemSlot(iv.Var.ID)
	iv.Var.Alloc = iv.Alloc
}

func (iv *ExtendedInterval) LastSubinterval() *SubInterval {
	if iv.Empty() {
		return nil
	}
	return iv.Subintervals[len(iv.Subintervals)-1]
}

// AddSubinterval appends a new, possibly-overlapping subinterval; call
// RebuildAndOrderSubintervals once construction is done to normalize.
func (iv *ExtendedInterval) AddSubinterval(fr, to float64) *SubInterval {
	sub := &SubInterval{Fr: fr, To: to, Parent: iv}
	iv.Subintervals = append(iv.Subintervals, sub)
	return sub
}

// RebuildAndOrderSubintervals merges overlapping or adjacent (within 1)
// subintervals and sorts the result by Fr, matching the original's
// rebuild_and_order_subintervals.
func (iv *ExtendedInterval) RebuildAndOrderSubintervals() {
	if len(iv.Subintervals) == 0 {
		return
	}
	subs := append([]*SubInterval(nil), iv.Subintervals...)
	sort.Slice(subs, func(i, j int) bool { return subs[i].Fr < subs[j].Fr })

	var out []*SubInterval
	start, end := subs[0].Fr, subs[0].To
	for _, sub := range subs[1:] {
		if sub.Fr > end+1 {
			out = append(out, &SubInterval{Fr: start, To: end, Parent: iv})
			start, end = sub.Fr, sub.To
		} else if sub.To > end {
			end = sub.To
		}
	}
	out = append(out, &SubInterval{Fr: start, To: end, Parent: iv})
	iv.Subintervals = out

	iv.Fr = iv.Subintervals[0].Fr
	iv.To = iv.Subintervals[len(iv.Subintervals)-1].To
}

// NextUse advances (and returns) the cursor into Uses past every use at or
// before num, returning the index of the first remaining use, or -1 if
// none remain. Amortized O(1) per call across a whole allocation pass since
// the cursor only moves forward.
func (iv *ExtendedInterval) NextUse(num float64) int {
	if len(iv.Uses) == 0 || iv.nextUseIdx >= len(iv.Uses) {
		return -1
	}
	for iv.nextUseIdx < len(iv.Uses) && instrNum(iv.Uses[iv.nextUseIdx], iv.Var) <= num {
		iv.nextUseIdx++
	}
	if iv.nextUseIdx >= len(iv.Uses) {
		return -1
	}
	return iv.nextUseIdx
}

// instrNum returns the effective ordering number of ins with respect to v:
// its own Num, unless ins is a phi, in which case a variable live only
// until the end of the corresponding predecessor block uses that block's
// last instruction's Num (matching the original's phi-use special case).
func instrNum(ins *ir.Instruction, v *ir.Variable) float64 {
	if !ins.IsPhi() {
		return ins.Num
	}
	for bid, use := range ins.PhiUses {
		if use.ID == v.ID {
			if pred, ok := ins.Block.Preds[bid]; ok && len(pred.Instructions) > 0 {
				return pred.LastInstr().Num
			}
		}
	}
	return ins.Num
}

// Intersection returns the lowest point at which iv and other overlap, or
// (0, false) if they never do. O(m log m) in the combined subinterval
// count, via a merge-sorted adjacent-pair scan: if sorted subinterval i and
// i+1 don't intersect, none further apart can either.
func (iv *ExtendedInterval) Intersection(other *ExtendedInterval) (float64, bool) {
	all := append(append([]*SubInterval(nil), iv.Subintervals...), other.Subintervals...)
	sort.Slice(all, func(i, j int) bool {
		if all[i].Fr != all[j].Fr {
			return all[i].Fr < all[j].Fr
		}
		return all[i].To < all[j].To
	})
	for i := 0; i+1 < len(all); i++ {
		if p, ok := all[i].Intersection(all[i+1]); ok {
			return p, true
		}
	}
	return 0, false
}

// SplitAt splits iv at pos into self=[..., pos) and a freshly returned
// interval covering [pos, ...), partitioning subintervals, definition and
// uses accordingly. Built as a faithful, tested primitive; the allocator
// itself never calls it (see SPEC_FULL.md: the original's own split path has
// unfinished TODOs and is dead in practice).
func (iv *ExtendedInterval) SplitAt(pos float64) *ExtendedInterval {
	var oldRanges, newRanges [][2]float64

	for _, sub := range iv.Subintervals {
		switch {
		case sub.To < pos:
			oldRanges = append(oldRanges, [2]float64{sub.Fr, sub.To})
		case sub.Fr > pos:
			newRanges = append(newRanges, [2]float64{sub.Fr, sub.To})
		default:
			if pos > sub.Fr {
				oldRanges = append(oldRanges, [2]float64{sub.Fr, pos - 1})
			}
			newRanges = append(newRanges, [2]float64{pos, sub.To})
		}
	}

	iv.Fr = oldRanges[0][0]
	iv.To = oldRanges[len(oldRanges)-1][1]

	frNew := newRanges[0][0]
	toNew := newRanges[len(newRanges)-1][1]

	var defn *ir.Instruction
	if iv.Def != nil && iv.Def.Num >= frNew {
		defn = iv.Def
		iv.Def = nil
	}

	var usesOld, usesNew []*ir.Instruction
	for _, ins := range iv.Uses {
		num := instrNum(ins, iv.Var)
		if num < frNew {
			usesOld = append(usesOld, ins)
		} else {
			usesNew = append(usesNew, ins)
		}
	}
	iv.Uses = usesOld

	iv.Subintervals = nil
	for _, r := range oldRanges {
		iv.AddSubinterval(r[0], r[1])
	}

	newIv := &ExtendedInterval{Var: iv.Var, Fr: frNew, To: toNew, Alloc: iv.Alloc, Def: defn, Uses: usesNew}
	for _, r := range newRanges {
		newIv.AddSubinterval(r[0], r[1])
	}

	return newIv
}

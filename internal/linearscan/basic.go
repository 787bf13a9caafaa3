package linearscan

import (
	"sort"

	"github.com/kestrelc/regallo/internal/analysis"
	"github.com/kestrelc/regallo/internal/interval"
	"github.com/kestrelc/regallo/internal/ir"
	"github.com/kestrelc/regallo/internal/regset"
)

// BasicSpillPolicy picks which interval to spill when no free register is
// available for current. active holds every currently live, allocated
// interval sorted by ascending end point. Implementations may reassign
// current into a spilled interval's register instead of spilling current
// itself; they must update active accordingly.
//
// Grounded on py-regallo/allocators/lscan/basic/spillers.py.
type BasicSpillPolicy interface {
	SpillAtInterval(current *interval.Interval, active *activeSet) *interval.Interval
}

// BasicLinearScan is the textbook Poletto/Sarkar linear-scan allocator over
// basic (single-range) intervals.
//
// Grounded on py-regallo/allocators/lscan/basic/basic.py.
type BasicLinearScan struct {
	Spiller BasicSpillPolicy
	Name    string
}

// NewBasicLinearScan builds a BasicLinearScan with the given spill policy,
// defaulting to FurthestFirst (the original's spillers.default()).
func NewBasicLinearScan(spiller BasicSpillPolicy) *BasicLinearScan {
	if spiller == nil {
		spiller = FurthestFirst{}
	}
	return &BasicLinearScan{Spiller: spiller, Name: "Basic Linear Scan"}
}

// ComputeIntervals numbers f's instructions in reverse postorder and
// derives one basic Interval per variable.
func (ls *BasicLinearScan) ComputeIntervals(f *ir.Function) map[ir.VarID]*interval.Interval {
	intervals := make(map[ir.VarID]*interval.Interval, len(f.Vars))
	for _, v := range f.OrderedVars() {
		intervals[v.ID] = interval.NewInterval(v)
	}

	rpo := analysis.ReversePostorder(f)
	analysis.NumberInstructions(rpo)

	// Walk blocks in postorder (the reverse of rpo), matching the
	// original's `for bb in bbs[::-1]`.
	for i := len(rpo) - 1; i >= 0; i-- {
		bb := rpo[i]

		for _, v := range bb.LiveOut {
			iv := intervals[v.ID]
			if last := bb.LastInstr(); iv.To < last.Num+0.5 {
				iv.To = last.Num + 0.5
			}
			iv.Fr = bb.FirstInstr().Num - 0.5
		}

		for j := len(bb.Instructions) - 1; j >= 0; j-- {
			ins := bb.Instructions[j]

			if ins.Def != nil && !ins.Def.IsSpilled() {
				iv := intervals[ins.Def.ID]
				iv.Def = ins
				if !ins.IsPhi() {
					iv.Fr = ins.Num
				}
			}

			if ins.IsPhi() {
				for bid, v := range ins.PhiUses {
					if v.IsSpilled() {
						continue
					}
					iv := intervals[v.ID]
					if pred, ok := f.Blocks[bid]; ok {
						if last := pred.LastInstr(); iv.To < last.Num+0.5 {
							iv.To = last.Num + 0.5
						}
					}
					iv.Uses = append(iv.Uses, ins)
				}
			} else {
				for _, v := range ins.Uses {
					if v.IsSpilled() {
						continue
					}
					iv := intervals[v.ID]
					if iv.To < ins.Num {
						iv.To = ins.Num
					}
					iv.Uses = append(iv.Uses, ins)
				}
			}
		}
	}

	out := make(map[ir.VarID]*interval.Interval)
	for vid, iv := range intervals {
		if !iv.Empty() {
			out[vid] = iv
		}
	}
	return out
}

// AllocateRegisters runs the linear-scan main loop: process intervals
// sorted by Fr, expiring intervals whose range has ended, acquiring a free
// register when available, and invoking the spill policy otherwise. It
// returns true iff every interval was allocated a register with no spill.
// With spilling disabled it returns false at the first interval that finds
// no free register; with spilling enabled it finishes the pass through the
// spill policy and still returns false.
func (ls *BasicLinearScan) AllocateRegisters(intervals map[ir.VarID]*interval.Interval, regcount int, spilling bool) bool {
	sorted := make([]*interval.Interval, 0, len(intervals))
	for _, iv := range intervals {
		sorted = append(sorted, iv)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Fr < sorted[j].Fr })

	regs := regset.New(regcount)
	active := &activeSet{}
	spillOccurred := false

	expire := func(current *interval.Interval) {
		for len(active.items) > 0 && active.items[0].EndPoint() <= current.Fr {
			iv := active.items[0]
			active.items = active.items[1:]
			regs.SetFree(iv.Alloc.Reg)
		}
	}

	for _, iv := range sorted {
		expire(iv)
		if reg, ok := regs.GetFree(); ok {
			iv.Allocate(ir.Reg(reg))
			active.Add(iv)
			continue
		}
		if !spilling {
			return false
		}
		ls.Spiller.SpillAtInterval(iv, active)
		spillOccurred = true
	}

	return !spillOccurred
}

// Resolve is a no-op for BasicLinearScan: phi elimination and spill-code
// insertion are the driver's job (internal/resolve), run once after
// allocation succeeds, not per-allocator as the original's stub suggests.
func (ls *BasicLinearScan) Resolve(intervals map[ir.VarID]*interval.Interval) {}

// PerformRegisterAllocation computes intervals, allocates registers, and
// resolves in one call, matching LinearScan.perform_register_allocation.
func (ls *BasicLinearScan) PerformRegisterAllocation(f *ir.Function, regcount int, spilling bool) bool {
	intervals := ls.ComputeIntervals(f)
	if !ls.AllocateRegisters(intervals, regcount, spilling) {
		return false
	}
	ls.Resolve(intervals)
	return true
}

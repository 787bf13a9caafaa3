package linearscan

import (
	"sort"

	"github.com/kestrelc/regallo/internal/analysis"
	"github.com/kestrelc/regallo/internal/interval"
	"github.com/kestrelc/regallo/internal/ir"
	"github.com/kestrelc/regallo/internal/regset"
)

// ExtendedSpillPolicy picks which interval to spill among active and
// inactive when current needs a register but none is free.
//
// Grounded on py-regallo/allocators/lscan/extended/spillers.py.
type ExtendedSpillPolicy interface {
	SpillAtInterval(current *interval.ExtendedInterval, active, inactive *extActiveSet) *interval.ExtendedInterval
}

// ExtendedLinearScan is the Wimmer/Franz SSA-form linear-scan allocator:
// intervals carry holes (subintervals), and a variable whose interval has
// a lifetime hole at the current position becomes "inactive" rather than
// expiring outright, freeing its register for reuse without a spill.
//
// Grounded on py-regallo/allocators/lscan/extended/extended.py. Interval
// splitting is not performed (see DESIGN.md/SPEC_FULL.md: the original's
// own split branch is unreachable in practice), so every interval's Split
// flag is always false and the intersection-test branch of
// try_allocate_free_register never triggers.
type ExtendedLinearScan struct {
	Spiller ExtendedSpillPolicy
	Name    string
}

func NewExtendedLinearScan(spiller ExtendedSpillPolicy) *ExtendedLinearScan {
	if spiller == nil {
		spiller = ExtendedFurthestFirst{}
	}
	return &ExtendedLinearScan{Spiller: spiller, Name: "Extended Linear Scan"}
}

// ComputeIntervals builds one ExtendedInterval per variable, with
// subintervals covering every block in which the variable is live.
func (ls *ExtendedLinearScan) ComputeIntervals(f *ir.Function) map[ir.VarID]*interval.ExtendedInterval {
	intervals := make(map[ir.VarID]*interval.ExtendedInterval, len(f.Vars))
	for _, v := range f.OrderedVars() {
		intervals[v.ID] = interval.NewExtendedInterval(v)
	}

	rpo := analysis.ReversePostorder(f)
	analysis.NumberInstructions(rpo)

	for i := len(rpo) - 1; i >= 0; i-- {
		bb := rpo[i]

		for _, v := range bb.LiveOut {
			intervals[v.ID].AddSubinterval(bb.FirstInstr().Num-0.5, bb.LastInstr().Num+0.5)
		}

		for j := len(bb.Instructions) - 1; j >= 0; j-- {
			ins := bb.Instructions[j]

			if ins.Def != nil {
				iv := intervals[ins.Def.ID]
				iv.Def = ins
				if last := iv.LastSubinterval(); last != nil {
					last.Fr = ins.Num
				}
			}

			if ins.IsPhi() {
				for _, v := range ins.PhiUses {
					intervals[v.ID].Uses = append(intervals[v.ID].Uses, ins)
				}
			} else {
				for _, v := range ins.Uses {
					iv := intervals[v.ID]
					iv.Uses = append(iv.Uses, ins)
					last := iv.LastSubinterval()
					if last == nil || last.Fr > ins.Num {
						iv.AddSubinterval(bb.FirstInstr().Num-0.5, ins.Num)
					}
				}
			}
		}
	}

	out := make(map[ir.VarID]*interval.ExtendedInterval)
	for vid, iv := range intervals {
		if iv.Empty() {
			continue
		}
		iv.RebuildAndOrderSubintervals()
		out[vid] = iv
	}
	return out
}

type action struct {
	num  float64
	kind int // +1 start, -1 end
	sub  *interval.SubInterval
}

const (
	actionStart = 1
	actionEnd   = -1
)

// tryAllocateFreeRegister attempts to give current a register: first a
// genuinely free one, then (since current.Split is always false here) one
// held by an inactive interval with no conflicting occupant. Returns the
// register number and true on success.
func tryAllocateFreeRegister(current *interval.ExtendedInterval, active, inactive *extActiveSet, regs *regset.Set) (int, bool) {
	if reg, ok := regs.GetFree(); ok {
		current.Allocate(ir.Reg(reg))
		active.Add(current)
		return reg, true
	}

	if !current.Split && inactive.Len() > 0 {
		occupied := map[int]bool{}
		for _, iv := range active.All() {
			if iv.Alloc.IsRegister() {
				occupied[iv.Alloc.Reg] = true
			}
		}
		for _, iv := range inactive.All() {
			if iv.Alloc.IsRegister() && !occupied[iv.Alloc.Reg] {
				current.Allocate(iv.Alloc)
				active.Add(current)
				return iv.Alloc.Reg, true
			}
		}
	}

	return 0, false
}

// AllocateRegisters runs the Wimmer/Franz event-driven main loop: a
// START/END action stream built from every subinterval, processed in
// (position, kind) order.
func (ls *ExtendedLinearScan) AllocateRegisters(intervals map[ir.VarID]*interval.ExtendedInterval, regcount int, spilling bool) bool {
	regs := regset.New(regcount)

	var actions []action
	for _, iv := range intervals {
		for _, sub := range iv.Subintervals {
			actions = append(actions, action{num: sub.Fr, kind: actionStart, sub: sub})
			actions = append(actions, action{num: sub.To, kind: actionEnd, sub: sub})
		}
	}
	sort.Slice(actions, func(i, j int) bool {
		if actions[i].num != actions[j].num {
			return actions[i].num < actions[j].num
		}
		return actions[i].kind < actions[j].kind
	})

	active := newExtActiveSet()
	inactive := newExtActiveSet()

	spillOccurred := false

	for _, a := range actions {
		sub := a.sub
		iv := sub.Parent

		switch {
		case a.kind == actionEnd && active.Has(iv):
			active.Remove(iv)
			if sub.To < iv.To {
				inactive.Add(iv)
			}
			if iv.Alloc.IsRegister() {
				regs.SetFree(iv.Alloc.Reg)
			}

		case a.kind == actionStart && iv.Fr == sub.Fr:
			if _, ok := tryAllocateFreeRegister(iv, active, inactive, regs); !ok {
				if !spilling {
					return false
				}
				ls.Spiller.SpillAtInterval(iv, active, inactive)
				spillOccurred = true
			}

		case a.kind == actionStart && inactive.Has(iv):
			inactive.Remove(iv)
			active.Add(iv)
			if iv.Alloc.IsRegister() {
				regs.Occupy(iv.Alloc.Reg)
			}
		}
	}

	return !spillOccurred
}

// Resolve is a no-op: with splitting unused, no mov insertion is needed
// between subintervals of the same variable.
func (ls *ExtendedLinearScan) Resolve(intervals map[ir.VarID]*interval.ExtendedInterval) {}

func (ls *ExtendedLinearScan) PerformRegisterAllocation(f *ir.Function, regcount int, spilling bool) bool {
	intervals := ls.ComputeIntervals(f)
	if !ls.AllocateRegisters(intervals, regcount, spilling) {
		return false
	}
	ls.Resolve(intervals)
	return true
}

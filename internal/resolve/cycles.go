package resolve

import "github.com/kestrelc/regallo/internal/ir"

// AllocateCycle picks where a cycle-breaking temporary lives: a register not
// already occupied by one of the cycle's own allocations and not live-out at
// the point the cycle closes, or, failing that, a fresh memory slot.
//
// Grounded on py-regallo/cfg/resolve.py's allocate_cycle.
func AllocateCycle(regcount int, cycleAllocs map[ir.Allocation]bool, liveOutRegs map[int]bool, tmpID ir.VarID) ir.Allocation {
	for r := 1; r <= regcount; r++ {
		if cycleAllocs[ir.Reg(r)] || liveOutRegs[r] {
			continue
		}
		return ir.Reg(r)
	}
	return ir.MemSlot(tmpID)
}

// InsertCycles breaks each cycle (a closed chain of def<-use moves produced
// by OrderMoves) using exactly one temporary variable: the last move's
// source (which the chain's first move overwrites) is saved into the temp
// first, every other move in the chain runs normally, and the last move's
// destination is finally filled from the temp.
//
// liveOutRegs should hold the registers live immediately after the cycle
// (so the chosen temp register doesn't clobber a value the rest of the
// block still needs).
func InsertCycles(f *ir.Function, cycles [][]Move, regcount int, liveOutRegs map[int]bool) ([]*ir.Instruction, bool) {
	var out []*ir.Instruction
	for _, cyc := range cycles {
		if len(cyc) == 0 {
			continue
		}

		cycleAllocs := map[ir.Allocation]bool{}
		for _, m := range cyc {
			cycleAllocs[m.Def.Alloc] = true
		}

		last := cyc[len(cyc)-1]
		tmp := f.GetOrCreateVariable("")
		tmp.Alloc = AllocateCycle(regcount, cycleAllocs, liveOutRegs, tmp.ID)
		tmpAlloc := Alloc{Var: tmp, Alloc: tmp.Alloc}

		save, ok := materializeMove(f, Move{Def: tmpAlloc, Use: last.Use}, nil)
		if !ok {
			return out, false
		}
		out = append(out, save...)

		for _, m := range cyc[:len(cyc)-1] {
			ins, ok := materializeMove(f, m, nil)
			if !ok {
				return out, false
			}
			out = append(out, ins...)
		}

		restore, ok := materializeMove(f, Move{Def: last.Def, Use: tmpAlloc}, nil)
		if !ok {
			return out, false
		}
		out = append(out, restore...)
	}
	return out, true
}

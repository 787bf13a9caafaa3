package resolve

import (
	"sort"

	"github.com/kestrelc/regallo/internal/analysis"
	"github.com/kestrelc/regallo/internal/ir"
	"github.com/kestrelc/regallo/internal/regset"
)

// busyRegs returns the registers this batch of moves reads from or writes
// to, used as a (deliberately simple) stand-in for "occupied at this program
// point": a register is free for scratch use here only if none of the
// parallel copy's own endpoints are already using it.
func busyRegs(moves []Move) map[int]bool {
	busy := map[int]bool{}
	for _, m := range moves {
		if m.Def.Alloc.IsRegister() {
			busy[m.Def.Alloc.Reg] = true
		}
		if m.Use.Alloc.IsRegister() {
			busy[m.Use.Alloc.Reg] = true
		}
	}
	return busy
}

func freeRegSet(moves []Move, regcount int) *regset.Set {
	s := regset.New(regcount)
	for reg := range busyRegs(moves) {
		if s.IsFree(reg) {
			s.Occupy(reg)
		}
	}
	return s
}

// insertAtBlockEnd splices instrs immediately before bb's terminating
// branch, or at the very end if the block has none.
func insertAtBlockEnd(bb *ir.BasicBlock, instrs []*ir.Instruction) {
	for i := range instrs {
		instrs[i].Block = bb
	}
	if len(instrs) == 0 {
		return
	}
	n := len(bb.Instructions)
	if n > 0 && bb.Instructions[n-1].Op == ir.OpBranch {
		merged := make([]*ir.Instruction, 0, n+len(instrs))
		merged = append(merged, bb.Instructions[:n-1]...)
		merged = append(merged, instrs...)
		merged = append(merged, bb.Instructions[n-1])
		bb.SetInstructions(merged)
		return
	}
	bb.SetInstructions(append(append([]*ir.Instruction(nil), bb.Instructions...), instrs...))
}

func movesForEdge(block *ir.BasicBlock, pred *ir.BasicBlock) []Move {
	var moves []Move
	for _, phi := range block.Phis {
		use, ok := phi.PhiUses[pred.ID]
		if !ok {
			continue
		}
		moves = append(moves, Move{
			Def: Alloc{Var: phi.Def, Alloc: phi.Def.Alloc},
			Use: Alloc{Var: use, Alloc: use.Alloc},
		})
	}
	sort.Slice(moves, func(i, j int) bool { return moves[i].Def.Var.ID < moves[j].Def.Var.ID })
	return moves
}

// EliminatePhi removes every phi instruction from f, replacing each one with
// parallel-copy moves inserted along every incoming edge: critical edges (a
// predecessor with more than one successor) are split with a fresh block
// first, so the copies have somewhere to live without running on a path
// that doesn't need them.
//
// Grounded on py-regallo/cfg/resolve.py's eliminate_phi.
func EliminatePhi(f *ir.Function, regcount int) bool {
	analysis.PerformLiveness(f, nil)

	blocksWithPhis := make([]*ir.BasicBlock, 0)
	for _, bb := range f.OrderedBlocks() {
		if len(bb.Phis) > 0 {
			blocksWithPhis = append(blocksWithPhis, bb)
		}
	}

	ok := true
	for _, block := range blocksWithPhis {
		preds := make([]*ir.BasicBlock, 0, len(block.Preds))
		for _, p := range block.Preds {
			preds = append(preds, p)
		}
		sort.Slice(preds, func(i, j int) bool { return preds[i].ID < preds[j].ID })

		for _, pred := range preds {
			moves := movesForEdge(block, pred)
			if len(moves) == 0 {
				continue
			}

			target := pred
			if len(pred.Succs) > 1 {
				bti := f.NewBlock()
				f.InsertBasicBlockBetween(bti, pred, block)
				target = bti
			}

			ordered, cycles := OrderMoves(moves)

			free := freeRegSet(moves, regcount)
			movedInstrs, moveOK := InsertMoves(f, ordered, free)
			if !moveOK {
				ok = false
			}

			cycleInstrs, cycleOK := InsertCycles(f, cycles, regcount, busyRegs(moves))
			if !cycleOK {
				ok = false
			}

			insertAtBlockEnd(target, append(movedInstrs, cycleInstrs...))
		}

		remaining := make([]*ir.Instruction, 0, len(block.Instructions)-len(block.Phis))
		for _, ins := range block.Instructions {
			if !ins.IsPhi() {
				remaining = append(remaining, ins)
			}
		}
		block.SetInstructions(remaining)
	}

	analysis.PerformFullAnalysis(f)
	return ok
}

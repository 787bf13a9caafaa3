package resolve

import (
	"sort"

	"github.com/kestrelc/regallo/internal/analysis"
	"github.com/kestrelc/regallo/internal/ir"
)

// InsertSpillCode inserts a store right after the definition of every
// spilled variable, and a load right before each of its uses, then reruns
// full analysis so the resulting straight-line code has up-to-date
// liveness, numbering and loop information.
//
// Grounded on py-regallo/cfg/resolve.py's insert_spill_code.
func InsertSpillCode(f *ir.Function) {
	before := map[int][]*ir.Instruction{}
	after := map[int][]*ir.Instruction{}

	for _, bb := range f.OrderedBlocks() {
		for _, instr := range bb.Instructions {
			if instr.IsPhi() {
				continue
			}

			if instr.Def != nil && instr.Def.IsSpilled() {
				v := instr.Def
				v2 := f.GetOrCreateVariable("")
				v2.Alloc = ir.Reg(1) // kind only; register number is irrelevant here.
				store := storeInstr(Move{
					Def: Alloc{Var: v, Alloc: v.Alloc},
					Use: Alloc{Var: v2, Alloc: v2.Alloc},
				}, f.NextInstrID())
				after[instr.ID] = append(after[instr.ID], store)
				instr.Def = v2
			}

			replaced := map[ir.VarID]*ir.Variable{}
			for i, v := range instr.Uses {
				if !v.IsSpilled() {
					continue
				}
				v2, ok := replaced[v.ID]
				if !ok {
					v2 = f.GetOrCreateVariable("")
					v2.Alloc = ir.Reg(1)
					load := loadInstr(Move{
						Def: Alloc{Var: v2, Alloc: v2.Alloc},
						Use: Alloc{Var: v, Alloc: v.Alloc},
					}, f.NextInstrID())
					before[instr.ID] = append(before[instr.ID], load)
					replaced[v.ID] = v2
				}
				instr.Uses[i] = v2
			}
			for j, op := range instr.UsesDebug {
				if op.Kind == ir.OperandVar {
					if v2, ok := replaced[op.Var.ID]; ok {
						instr.UsesDebug[j] = ir.VarOperand(v2)
					}
				}
			}
		}
	}

	for _, bb := range f.OrderedBlocks() {
		var out []*ir.Instruction
		for _, instr := range bb.Instructions {
			out = append(out, before[instr.ID]...)
			out = append(out, instr)
			out = append(out, after[instr.ID]...)
		}
		for _, ins := range out {
			ins.Block = bb
		}
		bb.SetInstructions(out)
	}

	analysis.PerformFullAnalysis(f)
}

// spillIDsInOrder is a small helper kept for deterministic diagnostics
// (e.g. a future CLI report of which variables spilled).
func spillIDsInOrder(f *ir.Function) []ir.VarID {
	var ids []ir.VarID
	for _, v := range f.OrderedVars() {
		if v.IsSpilled() {
			ids = append(ids, v.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

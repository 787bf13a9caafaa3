package resolve

import (
	"github.com/kestrelc/regallo/internal/ir"
	"github.com/kestrelc/regallo/internal/regset"
)

func useOperand(a Alloc) (ir.Operand, *ir.Variable) {
	switch a.Alloc.Kind {
	case ir.AllocRegister, ir.AllocSlot:
		return ir.VarOperand(a.Var), a.Var
	case ir.AllocConst:
		return ir.ConstOperand(a.Lit), nil
	default:
		return ir.LabelOperand(a.Lit), nil
	}
}

// memOperand is the encoding sanity.DataFlowIsCorrect expects for the
// memory-slot half of a load/store: a label-kind literal carrying the
// spilled variable's id.
func memOperand(a Alloc) ir.Operand { return ir.LabelOperand(string(a.Var.ID)) }

func movInstr(m Move, id int) *ir.Instruction {
	op, v := useOperand(m.Use)
	instr := &ir.Instruction{ID: id, Op: ir.OpMov, Def: m.Def.Var, UsesDebug: []ir.Operand{op}}
	if v != nil {
		instr.Uses = []*ir.Variable{v}
	}
	return instr
}

func loadInstr(m Move, id int) *ir.Instruction {
	return &ir.Instruction{
		ID: id, Op: ir.OpLoad, Def: m.Def.Var,
		UsesDebug: []ir.Operand{memOperand(m.Use)},
	}
}

func storeInstr(m Move, id int) *ir.Instruction {
	op, v := useOperand(m.Use)
	instr := &ir.Instruction{
		ID: id, Op: ir.OpStore,
		UsesDebug: []ir.Operand{memOperand(m.Def), op},
	}
	if v != nil {
		instr.Uses = []*ir.Variable{v}
	}
	return instr
}

// materializeMove turns one resolved move into the instruction(s) that
// implement it: a register-to-register/const move becomes a MOV, a
// register-memory transfer becomes a LOAD or STORE, and a memory-to-memory
// transfer (which no single instruction can express) is routed through a
// scratch register borrowed from freeRegs. Reports false (with no
// instructions produced) if no scratch register was available.
//
// Grounded on py-regallo/cfg/resolve.py's insert_moves.
func materializeMove(f *ir.Function, m Move, freeRegs *regset.Set) ([]*ir.Instruction, bool) {
	if m.Def.Alloc.Equal(m.Use.Alloc) {
		return nil, true // self-loop: already in place.
	}

	switch {
	case m.Def.Alloc.IsRegister():
		if m.Use.Alloc.IsSlot() {
			return []*ir.Instruction{loadInstr(m, f.NextInstrID())}, true
		}
		return []*ir.Instruction{movInstr(m, f.NextInstrID())}, true

	case m.Def.Alloc.IsSlot():
		if !m.Use.Alloc.IsSlot() {
			return []*ir.Instruction{storeInstr(m, f.NextInstrID())}, true
		}
		if freeRegs == nil {
			return nil, false
		}
		reg, ok := freeRegs.GetFree()
		if !ok {
			return nil, false
		}
		tmp := f.GetOrCreateVariable("")
		tmp.Alloc = ir.Reg(reg)
		tmpAlloc := Alloc{Var: tmp, Alloc: tmp.Alloc}
		load := loadInstr(Move{Def: tmpAlloc, Use: m.Use}, f.NextInstrID())
		store := storeInstr(Move{Def: m.Def, Use: tmpAlloc}, f.NextInstrID())
		return []*ir.Instruction{load, store}, true

	default:
		return nil, true
	}
}

// InsertMoves materializes every ordered, non-cyclic move into instructions,
// appending them (in order) to out. Returns false, leaving out untouched
// past the point of failure, if a memory-to-memory move needed a scratch
// register and none was free.
func InsertMoves(f *ir.Function, moves []Move, freeRegs *regset.Set) ([]*ir.Instruction, bool) {
	var out []*ir.Instruction
	for _, m := range moves {
		ins, ok := materializeMove(f, m, freeRegs)
		if !ok {
			return out, false
		}
		out = append(out, ins...)
	}
	return out, true
}

package ir

// Copy produces a fresh, independently mutable twin of f. Every
// instruction in the twin remembers the original instruction it was
// copied from (or, if f is itself already a copy, f's instructions'
// originals — so copied instructions keep pointing into the very first,
// pristine function, however many retries deep we are). An instruction of
// f that has no Original, such as one inserted into a copy by spill-code
// insertion, gets f's own instruction as its Original.
//
// Grounded on Function.copy in the original py-regallo/cfg/cfg.py:
// variables are cloned first (so instructions can resolve cross-references
// by id), then blocks with their instructions, then predecessor/successor
// maps are rebuilt from the originals' block ids.
func (f *Function) Copy() *Function {
	cf := NewFunction(f.Name)
	cf.IsCopy = true
	cf.instrCounter = f.instrCounter
	cf.nextVarNum = f.nextVarNum
	cf.nextBlockNum = f.nextBlockNum

	cf.Vars = make(map[VarID]*Variable, len(f.Vars))
	for _, id := range f.varOrder {
		v := f.Vars[id]
		cf.Vars[id] = &Variable{ID: v.ID, DebugName: v.DebugName, Alloc: v.Alloc}
		cf.varOrder = append(cf.varOrder, id)
	}

	// First pass: create blocks (so instructions can reference any block).
	cf.Blocks = make(map[BlockID]*BasicBlock, len(f.Blocks))
	for _, id := range f.blockOrder {
		bb := f.Blocks[id]
		cbb := newBasicBlock(id, cf)
		cbb.DebugName = bb.DebugName
		cf.Blocks[id] = cbb
		cf.blockOrder = append(cf.blockOrder, id)
	}
	cf.Entry = cf.Blocks[f.Entry.ID]

	// Second pass: preds/succs.
	for _, id := range f.blockOrder {
		bb := f.Blocks[id]
		cbb := cf.Blocks[id]
		for pid := range bb.Preds {
			cbb.Preds[pid] = cf.Blocks[pid]
		}
		for sid := range bb.Succs {
			cbb.Succs[sid] = cf.Blocks[sid]
		}
	}

	// Third pass: instructions.
	for _, id := range f.blockOrder {
		bb := f.Blocks[id]
		cbb := cf.Blocks[id]
		cInstrs := make([]*Instruction, len(bb.Instructions))
		for i, ins := range bb.Instructions {
			cInstrs[i] = copyInstruction(ins, cbb, cf)
		}
		cbb.SetInstructions(cInstrs)
	}

	return cf
}

func copyInstruction(ins *Instruction, cbb *BasicBlock, cf *Function) *Instruction {
	ci := &Instruction{
		Block: cbb,
		ID:    ins.ID,
		Num:   ins.Num,
		Op:    ins.Op,
		SSA:   ins.SSA,
	}

	if ins.Def != nil {
		ci.Def = cf.Vars[ins.Def.ID]
	}

	if ins.IsPhi() {
		ci.PhiUses = make(map[BlockID]*Variable, len(ins.PhiUses))
		for bid, v := range ins.PhiUses {
			ci.PhiUses[bid] = cf.Vars[v.ID]
		}
		ci.PhiUsesDebug = make(map[BlockID]Operand, len(ins.PhiUsesDebug))
		for bid, op := range ins.PhiUsesDebug {
			ci.PhiUsesDebug[bid] = copyOperand(op, cf)
		}
	} else {
		ci.Uses = make([]*Variable, len(ins.Uses))
		for i, v := range ins.Uses {
			ci.Uses[i] = cf.Vars[v.ID]
		}
		ci.UsesDebug = make([]Operand, len(ins.UsesDebug))
		for i, op := range ins.UsesDebug {
			ci.UsesDebug[i] = copyOperand(op, cf)
		}
	}

	if ins.Original != nil {
		ci.Original = ins.Original
	} else if !ins.SSA || ins.Block.Func.IsCopy {
		// Defensive: if somehow unset on an already-copied instruction,
		// fall back to pointing at ins itself below.
	}
	if ci.Original == nil {
		ci.Original = ins
	}

	ci.LiveIn = copyVarSet(ins.LiveIn, cf)
	ci.LiveOut = copyVarSet(ins.LiveOut, cf)

	return ci
}

func copyOperand(op Operand, cf *Function) Operand {
	if op.Kind == OperandVar && op.Var != nil {
		return Operand{Kind: OperandVar, Var: cf.Vars[op.Var.ID]}
	}
	return op
}

func copyVarSet(s map[VarID]*Variable, cf *Function) map[VarID]*Variable {
	if s == nil {
		return nil
	}
	out := make(map[VarID]*Variable, len(s))
	for id := range s {
		out[id] = cf.Vars[id]
	}
	return out
}

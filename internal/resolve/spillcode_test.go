package resolve

import (
	"testing"

	"github.com/kestrelc/regallo/internal/ir"
)

func TestInsertSpillCodeWrapsDefAndUse(t *testing.T) {
	f := ir.NewFunction("f")
	bb := f.NewBlock()
	f.Entry = bb

	v1 := f.GetOrCreateVariable("v1")
	v2 := f.GetOrCreateVariable("v2")
	v1.Alloc = ir.MemSlot("v1") // spilled
	v2.Alloc = ir.Reg(1)

	def := &ir.Instruction{Block: bb, ID: f.NextInstrID(), Op: "const", Def: v1, SSA: true}
	use := &ir.Instruction{
		Block: bb, ID: f.NextInstrID(), Op: ir.OpMov, Def: v2,
		Uses:      []*ir.Variable{v1},
		UsesDebug: []ir.Operand{ir.VarOperand(v1)},
		SSA:       true,
	}
	bb.SetInstructions([]*ir.Instruction{def, use})

	InsertSpillCode(f)

	ops := make([]string, 0, len(bb.Instructions))
	for _, ins := range bb.Instructions {
		ops = append(ops, ins.Op)
	}

	if len(ops) != 4 {
		t.Fatalf("expected const, store, load, mov; got %v", ops)
	}
	if ops[0] != "const" || ops[1] != ir.OpStore {
		t.Fatalf("expected a store right after the spilled definition, got %v", ops)
	}
	if ops[2] != ir.OpLoad || ops[3] != ir.OpMov {
		t.Fatalf("expected a load right before the spilled use, got %v", ops)
	}
	store := bb.Instructions[1]
	load := bb.Instructions[2]

	if def.Def == v1 {
		t.Fatalf("expected the spilled definition to be rewritten to a fresh temporary, still %v", v1.ID)
	}
	if !def.Def.Alloc.IsRegister() {
		t.Fatalf("expected the rewritten definition to be register-resident, got %v", def.Def.Alloc)
	}
	if store.Uses[0] != def.Def {
		t.Fatalf("expected the store to read the same fresh temporary the definition now targets")
	}

	if len(use.Uses) != 1 || use.Uses[0] == v1 {
		t.Fatalf("expected the spilled use to be rewritten to a fresh temporary, got %v", use.Uses)
	}
	if !use.Uses[0].Alloc.IsRegister() {
		t.Fatalf("expected the rewritten use to be register-resident, got %v", use.Uses[0].Alloc)
	}
	if load.Def != use.Uses[0] {
		t.Fatalf("expected the load to define the same fresh temporary the use now reads")
	}
	if len(use.UsesDebug) != 1 || use.UsesDebug[0].Var != use.Uses[0] {
		t.Fatalf("expected UsesDebug to track the rewritten use, got %v", use.UsesDebug)
	}
}

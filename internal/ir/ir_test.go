package ir

import "testing"

// buildDiamond builds a small diamond CFG:
//
//	bb1 -> bb2 -> bb4
//	bb1 -> bb3 -> bb4
//
// with v1 defined in bb1, used in bb2 and bb3, and a phi in bb4 merging
// v2 (from bb2) and v3 (from bb3) into v4.
func buildDiamond() *Function {
	f := NewFunction("diamond")

	bb1 := f.NewBlock()
	bb2 := f.NewBlock()
	bb3 := f.NewBlock()
	bb4 := f.NewBlock()
	f.Entry = bb1

	bb1.Succs[bb2.ID] = bb2
	bb1.Succs[bb3.ID] = bb3
	bb2.Preds[bb1.ID] = bb1
	bb3.Preds[bb1.ID] = bb1
	bb2.Succs[bb4.ID] = bb4
	bb3.Succs[bb4.ID] = bb4
	bb4.Preds[bb2.ID] = bb2
	bb4.Preds[bb3.ID] = bb3

	v1 := f.GetOrCreateVariable("v1")
	v2 := f.GetOrCreateVariable("v2")
	v3 := f.GetOrCreateVariable("v3")
	v4 := f.GetOrCreateVariable("v4")

	def1 := &Instruction{Block: bb1, ID: f.NextInstrID(), Op: "const", Def: v1, SSA: true}
	br1 := &Instruction{Block: bb1, ID: f.NextInstrID(), Op: OpBranch, SSA: true}
	bb1.SetInstructions([]*Instruction{def1, br1})

	mov2 := &Instruction{Block: bb2, ID: f.NextInstrID(), Op: OpMov, Def: v2, Uses: []*Variable{v1}, UsesDebug: []Operand{VarOperand(v1)}, SSA: true}
	bb2.SetInstructions([]*Instruction{mov2})

	mov3 := &Instruction{Block: bb3, ID: f.NextInstrID(), Op: OpMov, Def: v3, Uses: []*Variable{v1}, UsesDebug: []Operand{VarOperand(v1)}, SSA: true}
	bb3.SetInstructions([]*Instruction{mov3})

	phi := &Instruction{
		Block: bb4, ID: f.NextInstrID(), Op: OpPhi, Def: v4, SSA: true,
		PhiUses:      map[BlockID]*Variable{bb2.ID: v2, bb3.ID: v3},
		PhiUsesDebug: map[BlockID]Operand{bb2.ID: VarOperand(v2), bb3.ID: VarOperand(v3)},
	}
	bb4.SetInstructions([]*Instruction{phi})

	return f
}

func TestCopyIsIndependent(t *testing.T) {
	f := buildDiamond()
	cf := f.Copy()

	if cf == f {
		t.Fatal("Copy returned the same function")
	}
	if !cf.IsCopy {
		t.Fatal("copy not marked IsCopy")
	}

	cv1 := cf.Vars["v1"]
	if cv1 == f.Vars["v1"] {
		t.Fatal("copy shares Variable pointers with original")
	}

	// Mutating the copy must not affect the original.
	cv1.Alloc = Reg(1)
	if !f.Vars["v1"].Alloc.IsNone() {
		t.Fatal("mutating copy's variable affected original")
	}

	// Every instruction in the copy should trace back to the original.
	for _, bb := range cf.OrderedBlocks() {
		obb := f.Blocks[bb.ID]
		for i, ins := range bb.Instructions {
			if ins.Original != obb.Instructions[i] {
				t.Fatalf("block %s instr %d: Original not wired to source instruction", bb.ID, i)
			}
		}
	}

	// Phi uses must resolve to the copy's own variables, not the original's.
	phi := cf.Blocks["bb4"].Phis[0]
	for _, v := range phi.PhiUses {
		if v.ID != "v2" && v.ID != "v3" {
			t.Fatalf("unexpected phi use %s", v.ID)
		}
		if _, ok := cf.Vars[v.ID]; !ok || v != cf.Vars[v.ID] {
			t.Fatalf("phi use %s not remapped to copy's variable arena", v.ID)
		}
	}
}

func TestAllocationEqualityAndString(t *testing.T) {
	r1 := Reg(1)
	r1b := Reg(1)
	r2 := Reg(2)
	if !r1.Equal(r1b) {
		t.Fatal("Reg(1) should equal Reg(1)")
	}
	if r1.Equal(r2) {
		t.Fatal("Reg(1) should not equal Reg(2)")
	}
	if r1.String() != "reg1" {
		t.Fatalf("got %q", r1.String())
	}

	slot := MemSlot("v5")
	if slot.String() != "mem(v5)" {
		t.Fatalf("got %q", slot.String())
	}
	if !slot.IsSlot() || slot.Allocable() != true {
		t.Fatal("slot should be allocable")
	}

	var none Allocation
	if !none.IsNone() || none.Allocable() {
		t.Fatal("zero-value Allocation should be AllocNone and not allocable")
	}
}

func TestIsRedundantMov(t *testing.T) {
	f := NewFunction("f")
	bb := f.NewBlock()
	f.Entry = bb
	a := f.GetOrCreateVariable("v1")
	b := f.GetOrCreateVariable("v2")
	a.Alloc = Reg(1)
	b.Alloc = Reg(1)

	mov := &Instruction{Block: bb, ID: f.NextInstrID(), Op: OpMov, Def: a, Uses: []*Variable{b}}
	if !mov.IsRedundant() {
		t.Fatal("mov between same-register variables should be redundant")
	}

	b.Alloc = Reg(2)
	if mov.IsRedundant() {
		t.Fatal("mov between different registers should not be redundant")
	}
}

func TestPrintFunctionSmoke(t *testing.T) {
	f := buildDiamond()
	out := PrintFunction(f)
	if out == "" {
		t.Fatal("expected non-empty output")
	}
}

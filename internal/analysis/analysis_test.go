package analysis

import (
	"testing"

	"github.com/kestrelc/regallo/internal/ir"
)

// buildDiamond mirrors ir.buildDiamond: bb1 -> {bb2, bb3} -> bb4, with a phi
// merging v2/v3 into v4.
func buildDiamond() *ir.Function {
	f := ir.NewFunction("diamond")

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

	def1 := &ir.Instruction{Block: bb1, ID: f.NextInstrID(), Op: "const", Def: v1, SSA: true}
	br1 := &ir.Instruction{Block: bb1, ID: f.NextInstrID(), Op: ir.OpBranch, SSA: true}
	bb1.SetInstructions([]*ir.Instruction{def1, br1})

	mov2 := &ir.Instruction{Block: bb2, ID: f.NextInstrID(), Op: ir.OpMov, Def: v2, Uses: []*ir.Variable{v1}, SSA: true}
	bb2.SetInstructions([]*ir.Instruction{mov2})

	mov3 := &ir.Instruction{Block: bb3, ID: f.NextInstrID(), Op: ir.OpMov, Def: v3, Uses: []*ir.Variable{v1}, SSA: true}
	bb3.SetInstructions([]*ir.Instruction{mov3})

	phi := &ir.Instruction{
		Block: bb4, ID: f.NextInstrID(), Op: ir.OpPhi, Def: v4, SSA: true,
		PhiUses: map[ir.BlockID]*ir.Variable{bb2.ID: v2, bb3.ID: v3},
	}
	bb4.SetInstructions([]*ir.Instruction{phi})

	_ = v4
	return f
}

// buildLoopFunc builds bb1 -> bb2 -> bb3 -> bb2 (back-edge), bb3 -> bb4.
func buildLoopFunc() *ir.Function {
	f := ir.NewFunction("loopy")

	bb1 := f.NewBlock()
	bb2 := f.NewBlock()
	bb3 := f.NewBlock()
	bb4 := f.NewBlock()
	f.Entry = bb1

	link := func(a, b *ir.BasicBlock) {
		a.Succs[b.ID] = b
		b.Preds[a.ID] = a
	}
	link(bb1, bb2)
	link(bb2, bb3)
	link(bb3, bb2) // back-edge
	link(bb3, bb4)

	v1 := f.GetOrCreateVariable("v1")
	bb1.SetInstructions([]*ir.Instruction{{Block: bb1, ID: f.NextInstrID(), Op: "const", Def: v1, SSA: true}})
	bb2.SetInstructions([]*ir.Instruction{{Block: bb2, ID: f.NextInstrID(), Op: ir.OpBranch, SSA: true}})
	bb3.SetInstructions([]*ir.Instruction{{Block: bb3, ID: f.NextInstrID(), Op: ir.OpBranch, Uses: []*ir.Variable{v1}, SSA: true}})
	bb4.SetInstructions([]*ir.Instruction{{Block: bb4, ID: f.NextInstrID(), Op: ir.OpBranch, Uses: []*ir.Variable{v1}, SSA: true}})

	return f
}

func TestReversePostorderDiamond(t *testing.T) {
	f := buildDiamond()
	rpo := ReversePostorder(f)
	if len(rpo) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(rpo))
	}
	if rpo[0].ID != f.Entry.ID {
		t.Fatalf("entry block should come first, got %s", rpo[0].ID)
	}
	pos := map[ir.BlockID]int{}
	for i, bb := range rpo {
		pos[bb.ID] = i
	}
	bb4 := ir.BlockID("bb4")
	if pos["bb1"] > pos["bb2"] || pos["bb1"] > pos["bb3"] || pos["bb2"] > pos[bb4] || pos["bb3"] > pos[bb4] {
		t.Fatalf("reverse postorder violates dominance-friendly ordering: %v", pos)
	}
}

func TestNumberInstructions(t *testing.T) {
	f := buildDiamond()
	rpo := ReversePostorder(f)
	NumberInstructions(rpo)
	seen := map[float64]bool{}
	for _, bb := range rpo {
		for _, ins := range bb.Instructions {
			if seen[ins.Num] {
				t.Fatalf("duplicate instruction number %v", ins.Num)
			}
			seen[ins.Num] = true
		}
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 numbered instructions, got %d", len(seen))
	}
}

func TestLivenessDiamond(t *testing.T) {
	f := buildDiamond()
	PerformFullAnalysis(f)

	bb1 := f.Blocks["bb1"]
	if _, ok := bb1.LiveOut["v1"]; !ok {
		t.Fatal("v1 should be live-out of bb1 (used in both successors)")
	}

	bb2 := f.Blocks["bb2"]
	if _, ok := bb2.UEVs["v1"]; !ok {
		t.Fatal("v1 should be an upward-exposed use in bb2")
	}
	if _, ok := bb2.LiveOut["v2"]; !ok {
		t.Fatal("v2 should be live-out of bb2 (consumed by the phi in bb4)")
	}

	bb4 := f.Blocks["bb4"]
	if _, ok := bb4.LiveIn["v4"]; !ok {
		t.Fatal("phi-defined v4 should be live-in to its own block")
	}
}

func TestDominanceDiamond(t *testing.T) {
	f := buildDiamond()
	PerformFullAnalysis(f)

	bb1 := f.Blocks["bb1"]
	bb4 := f.Blocks["bb4"]
	if !bb1.StrictlyDominates(bb4) {
		t.Fatal("bb1 should strictly dominate bb4")
	}
	bb2 := f.Blocks["bb2"]
	bb3 := f.Blocks["bb3"]
	if bb2.Dominates(bb4) || bb3.Dominates(bb4) {
		t.Fatal("neither bb2 nor bb3 alone should dominate bb4 (two paths merge)")
	}
}

func TestLoopAnalysis(t *testing.T) {
	f := buildLoopFunc()
	PerformFullAnalysis(f)

	if len(f.Loops) != 1 {
		t.Fatalf("expected exactly 1 natural loop, got %d", len(f.Loops))
	}
	loop := f.Loops[0]
	if loop.Header.ID != "bb2" {
		t.Fatalf("expected loop header bb2, got %s", loop.Header.ID)
	}
	if loop.Tail.ID != "bb3" {
		t.Fatalf("expected loop tail bb3, got %s", loop.Tail.ID)
	}

	bb2 := f.Blocks["bb2"]
	bb3 := f.Blocks["bb3"]
	bb4 := f.Blocks["bb4"]
	if !bb2.IsLoopHeader() {
		t.Fatal("bb2 should be marked as a loop header")
	}
	if bb2.Loop == nil || bb3.Loop == nil {
		t.Fatal("bb2 and bb3 should both be inside the loop")
	}
	if bb4.Loop != nil {
		t.Fatal("bb4 is outside the loop")
	}
	if bb2.Loop.Depth != 1 {
		t.Fatalf("expected loop depth 1, got %d", bb2.Loop.Depth)
	}
}

func TestRegisterPressure(t *testing.T) {
	f := buildDiamond()
	PerformFullAnalysis(f)

	if p := MinimalRegisterPressure(f); p < 1 {
		t.Fatalf("expected minimal register pressure >= 1, got %d", p)
	}
	if p := MaximalRegisterPressure(f); p < 1 {
		t.Fatalf("expected maximal register pressure >= 1, got %d", p)
	}
}

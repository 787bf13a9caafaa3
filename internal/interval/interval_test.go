package interval

import (
	"testing"

	"github.com/kestrelc/regallo/internal/ir"
)

func TestBasicIntervalUpdateEndpoints(t *testing.T) {
	v := &ir.Variable{ID: "v1"}
	iv := NewInterval(v)
	iv.UpdateEndpoints(2, 5)
	iv.UpdateEndpoints(1, 3)
	// NewInterval starts at [-0.5, 0]; UpdateEndpoints only ever widens.
	if iv.Fr != -0.5 || iv.To != 5 {
		t.Fatalf("expected [-0.5,5], got [%v,%v]", iv.Fr, iv.To)
	}
}

func TestBasicIntervalAllocateAndSpill(t *testing.T) {
	v := &ir.Variable{ID: "v1"}
	iv := NewInterval(v)
	iv.Allocate(ir.Reg(2))
	if !v.Alloc.Equal(ir.Reg(2)) {
		t.Fatalf("expected v.Alloc == reg2, got %s", v.Alloc)
	}
	iv.Spill()
	if !v.Alloc.IsSlot() {
		t.Fatal("expected spilled allocation to be a slot")
	}
}

func TestRebuildAndOrderSubintervalsMerges(t *testing.T) {
	v := &ir.Variable{ID: "v1"}
	iv := NewExtendedInterval(v)
	iv.AddSubinterval(5, 8)
	iv.AddSubinterval(0, 3)
	iv.AddSubinterval(4, 4) // adjacent to [0,3] and [5,8] -> should merge all into one
	iv.RebuildAndOrderSubintervals()

	if len(iv.Subintervals) != 1 {
		t.Fatalf("expected subintervals to merge into 1, got %d: %+v", len(iv.Subintervals), iv.Subintervals)
	}
	if iv.Fr != 0 || iv.To != 8 {
		t.Fatalf("expected merged bounds [0,8], got [%v,%v]", iv.Fr, iv.To)
	}
}

func TestRebuildAndOrderSubintervalsKeepsDisjoint(t *testing.T) {
	v := &ir.Variable{ID: "v1"}
	iv := NewExtendedInterval(v)
	iv.AddSubinterval(0, 2)
	iv.AddSubinterval(10, 12)
	iv.RebuildAndOrderSubintervals()

	if len(iv.Subintervals) != 2 {
		t.Fatalf("expected 2 disjoint subintervals, got %d", len(iv.Subintervals))
	}
}

func TestExtendedIntersection(t *testing.T) {
	v1 := &ir.Variable{ID: "v1"}
	v2 := &ir.Variable{ID: "v2"}
	a := NewExtendedInterval(v1)
	a.AddSubinterval(0, 5)
	b := NewExtendedInterval(v2)
	b.AddSubinterval(3, 8)

	p, ok := a.Intersection(b)
	if !ok || p != 3 {
		t.Fatalf("expected intersection at 3, got %v ok=%v", p, ok)
	}

	c := NewExtendedInterval(v2)
	c.AddSubinterval(10, 12)
	if _, ok := a.Intersection(c); ok {
		t.Fatal("expected no intersection between disjoint intervals")
	}
}

func TestNextUseAdvancesMonotonically(t *testing.T) {
	v := &ir.Variable{ID: "v1"}
	bb := &ir.BasicBlock{ID: "bb1"}
	u1 := &ir.Instruction{Block: bb, Num: 1, Uses: []*ir.Variable{v}}
	u2 := &ir.Instruction{Block: bb, Num: 5, Uses: []*ir.Variable{v}}
	u3 := &ir.Instruction{Block: bb, Num: 9, Uses: []*ir.Variable{v}}
	iv := &ExtendedInterval{Var: v, Uses: []*ir.Instruction{u1, u2, u3}}

	if idx := iv.NextUse(0); idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}
	if idx := iv.NextUse(1); idx != 1 {
		t.Fatalf("expected index 1 after passing num=1, got %d", idx)
	}
	if idx := iv.NextUse(9); idx != -1 {
		t.Fatalf("expected -1 once every use has passed, got %d", idx)
	}
}

func TestSplitAt(t *testing.T) {
	v := &ir.Variable{ID: "v1"}
	bb := &ir.BasicBlock{ID: "bb1"}
	def := &ir.Instruction{Block: bb, Num: 0, Def: v}
	use1 := &ir.Instruction{Block: bb, Num: 2, Uses: []*ir.Variable{v}}
	use2 := &ir.Instruction{Block: bb, Num: 8, Uses: []*ir.Variable{v}}

	iv := &ExtendedInterval{Var: v, Def: def, Uses: []*ir.Instruction{use1, use2}}
	iv.AddSubinterval(0, 10)

	newIv := iv.SplitAt(5)

	if iv.To >= 5 {
		t.Fatalf("expected old interval to end before split point, got To=%v", iv.To)
	}
	if newIv.Fr < 5 {
		t.Fatalf("expected new interval to start at/after split point, got Fr=%v", newIv.Fr)
	}
	if len(iv.Uses) != 1 || iv.Uses[0] != use1 {
		t.Fatalf("expected old interval to keep use1 only, got %+v", iv.Uses)
	}
	if len(newIv.Uses) != 1 || newIv.Uses[0] != use2 {
		t.Fatalf("expected new interval to keep use2 only, got %+v", newIv.Uses)
	}
	if iv.Def == nil {
		t.Fatal("definition before split point should stay with old interval")
	}
	if newIv.Def != nil {
		t.Fatal("new interval should not inherit a definition that stayed behind")
	}
}

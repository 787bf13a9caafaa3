package coloring

import (
	"github.com/kestrelc/regallo/internal/analysis"
	"github.com/kestrelc/regallo/internal/ir"
)

// Spiller picks and spills variables until f's maximal register pressure
// no longer exceeds regcount, and returns the ids of the variables it
// spilled.
type Spiller interface {
	SpillVariables(f *ir.Function, regcount int) map[ir.VarID]bool
}

// BasicGraphColoringAllocator refuses to color a function whose maximal
// register pressure exceeds the budget; when spilling is enabled it hands
// the function to its Spiller and reports failure so the driver retries
// (spill code insertion happens in a later pass, not here).
//
// Grounded on py-regallo/allocators/graph/graph.py's
// BasicGraphColoringAllocator.
type BasicGraphColoringAllocator struct {
	Spiller Spiller
	Name    string
}

func NewBasicGraphColoringAllocator(spiller Spiller) *BasicGraphColoringAllocator {
	if spiller == nil {
		spiller = BeladySpiller{}
	}
	return &BasicGraphColoringAllocator{Spiller: spiller, Name: "Basic Graph Coloring Allocator"}
}

// AllocateRegisters colors f in place if its register pressure already
// fits regcount; otherwise it spills (if enabled) and reports failure so a
// subsequent attempt recomputes pressure against the now-reduced demand.
func (a *BasicGraphColoringAllocator) AllocateRegisters(f *ir.Function, regcount int, spilling bool) bool {
	if analysis.MaximalRegisterPressure(f) > regcount {
		if spilling {
			a.Spiller.SpillVariables(f, regcount)
		}
		return false
	}

	Color(f, regcount)
	return true
}

// Resolve is a no-op: BasicGraphColoringAllocator never splits live ranges,
// so no SSA reconstruction is needed after coloring.
func (a *BasicGraphColoringAllocator) Resolve(f *ir.Function) {}

func (a *BasicGraphColoringAllocator) PerformRegisterAllocation(f *ir.Function, regcount int, spilling bool) bool {
	if !a.AllocateRegisters(f, regcount, spilling) {
		return false
	}
	a.Resolve(f)
	return true
}

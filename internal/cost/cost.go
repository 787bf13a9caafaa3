// Package cost scores an allocated function the way the original's
// evaluation table does, so cmd/regalloc can report which register
// budget and allocator produced the cheapest result.
//
// Grounded on py-regallo/cost.py's BasicCostCalculator.
package cost

import (
	"math"

	"github.com/kestrelc/regallo/internal/ir"
)

// Weights mirrors BasicCostCalculator's (s, n, l) constructor arguments:
// the per-instruction cost of a spill load/store, of an ordinary
// instruction, and the base of the per-loop-nesting-depth multiplier.
type Weights struct {
	Spill float64
	Norm  float64
	Loop  float64
}

// DefaultWeights matches the original's BasicCostCalculator() defaults
// (s=2, n=1, l=10).
var DefaultWeights = Weights{Spill: 2, Norm: 1, Loop: 10}

// Instruction returns l^depth * (s if the op is a load/store, else n).
// Redundant movs (already same-register copies) cost nothing, matching
// the original's instr_cost short-circuit.
func (w Weights) Instruction(ins *ir.Instruction) float64 {
	if ins.IsRedundant() {
		return 0
	}
	depth := math.Pow(w.Loop, float64(ins.LoopDepth()))
	if ins.Op == ir.OpLoad || ins.Op == ir.OpStore {
		return w.Spill * depth
	}
	return w.Norm * depth
}

// Block sums Instruction across bb's instructions.
func (w Weights) Block(bb *ir.BasicBlock) float64 {
	total := 0.0
	for _, ins := range bb.Instructions {
		total += w.Instruction(ins)
	}
	return total
}

// Function sums Block across every block in f, the same whole-function
// total the original's evaluation table plots against register count.
func (w Weights) Function(f *ir.Function) float64 {
	total := 0.0
	for _, bb := range f.OrderedBlocks() {
		total += w.Block(bb)
	}
	return total
}

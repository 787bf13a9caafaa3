package ir

import (
	"fmt"
	"strings"
)

// PrintFunction renders f in the textual form the original's
// cfg/printer.py produced: one line per instruction, blocks labelled,
// allocations shown once assigned. Recovered as a cheap, always-on
// debugging aid (spec.md treats the original's printer as an external,
// out-of-scope collaborator, but a few plain functions cost nothing).
func PrintFunction(f *Function) string {
	var b strings.Builder
	fmt.Fprintf(&b, "func %s() {\n", f.Name)
	for _, bb := range f.OrderedBlocks() {
		fmt.Fprintf(&b, "%s:\n", bb.String())
		for _, ins := range bb.Instructions {
			b.WriteString("  ")
			b.WriteString(PrintInstruction(ins))
			b.WriteByte('\n')
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// PrintInstruction renders a single instruction, including its allocation
// once assigned.
func PrintInstruction(ins *Instruction) string {
	var b strings.Builder

	if ins.Def != nil {
		b.WriteString(printVar(ins.Def))
		b.WriteString(" = ")
	}
	b.WriteString(ins.Op)

	if ins.IsPhi() {
		b.WriteByte('(')
		first := true
		for bid, op := range ins.PhiUsesDebug {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&b, "%s -> %s", bid, op)
		}
		b.WriteByte(')')
		return b.String()
	}

	if len(ins.UsesDebug) > 0 {
		b.WriteByte(' ')
		for i, op := range ins.UsesDebug {
			if i > 0 {
				b.WriteString(", ")
			}
			if op.Kind == OperandVar {
				b.WriteString(printVar(op.Var))
			} else {
				b.WriteString(op.Lit)
			}
		}
	}

	return b.String()
}

func printVar(v *Variable) string {
	if v.Alloc.IsNone() {
		return v.String()
	}
	return fmt.Sprintf("%s[%s]", v.String(), v.Alloc)
}

// PrintModule renders every function in m.
func PrintModule(m *Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s\n", m.Name)
	for _, name := range m.SortedFunctionNames() {
		b.WriteString(PrintFunction(m.Functions[name]))
		b.WriteByte('\n')
	}
	return b.String()
}

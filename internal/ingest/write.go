package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/kestrelc/regallo/internal/ir"
)

// Write serializes m back into spec.md §6's schema, augmented with each
// variable's allocation: an allocated variable's identifier gets a
// trailing "(regN)" or "(mem(vN))" suffix, the same style the original's
// cfg/printer.py uses for its with_alloc rendering.
func Write(w io.Writer, m *ir.Module) error {
	env := moduleEnvelope{SchemaVersion: SchemaVersion}
	for _, name := range m.SortedFunctionNames() {
		env.Functions = append(env.Functions, functionToJSON(m.Functions[name]))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("ingest: writing module: %w", err)
	}
	return nil
}

// WriteFile writes m to path, creating or truncating it.
func WriteFile(path string, m *ir.Module) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ingest: creating %s: %w", path, err)
	}
	defer f.Close()
	return Write(f, m)
}

func functionToJSON(f *ir.Function) functionJSON {
	out := functionJSON{Name: f.Name, EntryBlock: blockRef(f.Entry)}
	for _, bb := range f.OrderedBlocks() {
		out.Bblocks = append(out.Bblocks, bblockToJSON(bb))
	}
	return out
}

func bblockToJSON(bb *ir.BasicBlock) bblockJSON {
	out := bblockJSON{Name: blockRef(bb)}

	preds := make([]*ir.BasicBlock, 0, len(bb.Preds))
	for _, p := range bb.Preds {
		preds = append(preds, p)
	}
	sort.Slice(preds, func(i, j int) bool { return preds[i].ID < preds[j].ID })
	for _, p := range preds {
		out.Predecessors = append(out.Predecessors, blockRef(p))
	}

	for _, ins := range bb.Instructions {
		out.Instructions = append(out.Instructions, instructionToJSON(ins))
	}
	return out
}

func instructionToJSON(ins *ir.Instruction) instructionJSON {
	out := instructionJSON{Opname: ins.Op}
	if ins.Def != nil {
		out.Def = varRef(ins.Def)
	}

	if ins.IsPhi() {
		preds := make([]ir.BlockID, 0, len(ins.PhiUsesDebug))
		for bid := range ins.PhiUsesDebug {
			preds = append(preds, bid)
		}
		sort.Slice(preds, func(i, j int) bool { return preds[i] < preds[j] })
		for _, bid := range preds {
			raw, err := json.Marshal(phiOperandJSON{Val: operandRef(ins.PhiUsesDebug[bid]), BB: string(bid)})
			if err != nil {
				panic(err) // phiOperandJSON always marshals
			}
			out.Use = append(out.Use, raw)
		}
		return out
	}

	for _, op := range ins.UsesDebug {
		raw, err := json.Marshal(operandRef(op))
		if err != nil {
			panic(err) // a plain string always marshals
		}
		out.Use = append(out.Use, raw)
	}
	return out
}

func blockRef(bb *ir.BasicBlock) string {
	if bb.DebugName != "" {
		return string(bb.ID) + "/" + bb.DebugName
	}
	return string(bb.ID)
}

func varRef(v *ir.Variable) string {
	s := string(v.ID)
	if v.DebugName != "" {
		s += "/" + v.DebugName
	}
	if !v.Alloc.IsNone() {
		s += "(" + v.Alloc.String() + ")"
	}
	return s
}

func operandRef(o ir.Operand) string {
	if o.Kind == ir.OperandVar {
		return varRef(o.Var)
	}
	return o.Lit
}

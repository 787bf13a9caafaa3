package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrelc/regallo/internal/ir"
)

// Load reads a module from r, accepting either spec.md §6's bare function
// array or the schema_version-carrying envelope this package writes.
func Load(r io.Reader, moduleName string) (*ir.Module, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ingest: reading module: %w", err)
	}

	var functions []functionJSON
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return nil, fmt.Errorf("ingest: empty module input")
	case trimmed[0] == '{':
		var env moduleEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("ingest: malformed module envelope: %w", err)
		}
		if env.SchemaVersion != "" {
			if err := checkSchemaVersion(env.SchemaVersion); err != nil {
				return nil, err
			}
		}
		functions = env.Functions
	default:
		if err := json.Unmarshal(data, &functions); err != nil {
			return nil, fmt.Errorf("ingest: malformed module array: %w", err)
		}
	}

	m := ir.NewModule(moduleName)
	for _, fj := range functions {
		f, err := buildFunction(fj)
		if err != nil {
			return nil, err
		}
		m.Functions[f.Name] = f
	}
	return m, nil
}

// LoadFile opens path and loads it as a module, naming the module after
// the file's base name.
func LoadFile(path string) (*ir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: reading %s: %w", path, err)
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return Load(bytes.NewReader(data), name)
}

func buildFunction(fj functionJSON) (*ir.Function, error) {
	if fj.Name == "" {
		return nil, fmt.Errorf("ingest: function with no name")
	}
	f := ir.NewFunction(fj.Name)

	for _, bbj := range fj.Bblocks {
		id, label := splitLabel(bbj.Name)
		if !isBlockName(id) {
			return nil, fmt.Errorf("ingest: function %s: bad block name %q", fj.Name, bbj.Name)
		}
		bb := f.GetOrCreateBlock(ir.BlockID(id))
		bb.DebugName = label
	}

	for _, bbj := range fj.Bblocks {
		id, _ := splitLabel(bbj.Name)
		bb := f.Blocks[ir.BlockID(id)]
		instrs := make([]*ir.Instruction, 0, len(bbj.Instructions))
		for _, insj := range bbj.Instructions {
			instr, err := buildInstruction(f, bb, insj)
			if err != nil {
				return nil, err
			}
			instrs = append(instrs, instr)
		}
		bb.SetInstructions(instrs)
	}

	for _, bbj := range fj.Bblocks {
		id, _ := splitLabel(bbj.Name)
		bb := f.Blocks[ir.BlockID(id)]
		for _, predName := range bbj.Predecessors {
			pid, _ := splitLabel(predName)
			if !isBlockName(pid) {
				return nil, fmt.Errorf("ingest: function %s: bad predecessor name %q", fj.Name, predName)
			}
			pred, ok := f.Blocks[ir.BlockID(pid)]
			if !ok {
				return nil, fmt.Errorf("ingest: function %s: unknown predecessor block %q", fj.Name, predName)
			}
			bb.Preds[pred.ID] = pred
			pred.Succs[bb.ID] = bb
		}
	}

	entryID, entryLabel := splitLabel(fj.EntryBlock)
	entry, ok := f.Blocks[ir.BlockID(entryID)]
	if !ok {
		return nil, fmt.Errorf("ingest: function %s: unknown entry block %q", fj.Name, fj.EntryBlock)
	}
	if entryLabel != "" && entry.DebugName == "" {
		entry.DebugName = entryLabel
	}
	f.Entry = entry

	return f, nil
}

func buildInstruction(f *ir.Function, bb *ir.BasicBlock, insj instructionJSON) (*ir.Instruction, error) {
	var def *ir.Variable
	if insj.Def != "" {
		id, label := splitLabel(insj.Def)
		if !isVarName(id) {
			return nil, fmt.Errorf("ingest: function %s: bad def name %q", f.Name, insj.Def)
		}
		def = f.GetOrCreateVariable(ir.VarID(id))
		if label != "" && def.DebugName == "" {
			def.DebugName = label
		}
	}

	instr := &ir.Instruction{Block: bb, ID: f.NextInstrID(), Op: insj.Opname, Def: def, SSA: true}

	if insj.Opname == ir.OpPhi {
		instr.PhiUses = map[ir.BlockID]*ir.Variable{}
		instr.PhiUsesDebug = map[ir.BlockID]ir.Operand{}
		for _, raw := range insj.Use {
			var po phiOperandJSON
			if err := json.Unmarshal(raw, &po); err != nil {
				return nil, fmt.Errorf("ingest: function %s: malformed phi operand: %w", f.Name, err)
			}
			predID, _ := splitLabel(po.BB)
			if !isBlockName(predID) {
				return nil, fmt.Errorf("ingest: function %s: bad phi predecessor %q", f.Name, po.BB)
			}
			blockID := ir.BlockID(predID)
			v, debug := resolveOperand(f, po.Val)
			if v != nil {
				instr.PhiUses[blockID] = v
			}
			instr.PhiUsesDebug[blockID] = debug
		}
		return instr, nil
	}

	for _, raw := range insj.Use {
		var val string
		if err := json.Unmarshal(raw, &val); err != nil {
			return nil, fmt.Errorf("ingest: function %s: malformed operand: %w", f.Name, err)
		}
		v, debug := resolveOperand(f, val)
		if v != nil {
			instr.Uses = append(instr.Uses, v)
		}
		instr.UsesDebug = append(instr.UsesDebug, debug)
	}
	return instr, nil
}

// resolveOperand classifies val per spec.md §6's identifier grammar:
// a variable reference (registered and returned), a block label (id only,
// debug suffix dropped), or an opaque constant literal. Mirrors
// utils.is_varname / utils.is_bbname / the else branch in cfg.py's
// Instruction.from_json.
func resolveOperand(f *ir.Function, val string) (*ir.Variable, ir.Operand) {
	id, label := splitLabel(val)
	switch {
	case isVarName(id):
		v := f.GetOrCreateVariable(ir.VarID(id))
		if label != "" && v.DebugName == "" {
			v.DebugName = label
		}
		return v, ir.VarOperand(v)
	case isBlockName(id):
		return nil, ir.LabelOperand(id)
	default:
		return nil, ir.ConstOperand(val)
	}
}

package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kestrelc/regallo/internal/ir"
)

const diamondJSON = `[
  {
    "name": "f",
    "entry_block": "bb1",
    "bblocks": [
      {
        "name": "bb1",
        "predecessors": [],
        "instructions": [
          {"opname": "const", "def": "v1", "use": ["5"]},
          {"opname": "br", "use": []}
        ]
      },
      {
        "name": "bb2",
        "predecessors": ["bb1"],
        "instructions": [
          {"opname": "mov", "def": "v2", "use": ["v1"]}
        ]
      },
      {
        "name": "bb3",
        "predecessors": ["bb1"],
        "instructions": [
          {"opname": "mov", "def": "v3", "use": ["v1"]}
        ]
      },
      {
        "name": "bb4",
        "predecessors": ["bb2", "bb3"],
        "instructions": [
          {"opname": "phi", "def": "v4", "use": [
            {"val": "v2", "bb": "bb2"},
            {"val": "v3", "bb": "bb3"}
          ]}
        ]
      }
    ]
  }
]`

func TestLoadBuildsCFGShape(t *testing.T) {
	m, err := Load(strings.NewReader(diamondJSON), "mod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := m.Functions["f"]
	if !ok {
		t.Fatal("expected function f")
	}
	if f.Entry == nil || f.Entry.ID != "bb1" {
		t.Fatalf("expected entry bb1, got %v", f.Entry)
	}
	bb4 := f.Blocks["bb4"]
	if bb4 == nil {
		t.Fatal("expected bb4 to exist")
	}
	if len(bb4.Preds) != 2 {
		t.Fatalf("expected bb4 to have 2 predecessors, got %d", len(bb4.Preds))
	}
	if len(bb4.Phis) != 1 {
		t.Fatalf("expected one phi in bb4, got %d", len(bb4.Phis))
	}
	phi := bb4.Phis[0]
	if phi.PhiUses["bb2"].ID != "v2" || phi.PhiUses["bb3"].ID != "v3" {
		t.Fatalf("phi uses wrong: %+v", phi.PhiUses)
	}

	bb1 := f.Blocks["bb1"]
	constInstr := bb1.Instructions[0]
	if len(constInstr.Uses) != 0 || len(constInstr.UsesDebug) != 1 {
		t.Fatalf("expected the literal use to stay out of Uses but appear in UsesDebug: %+v", constInstr)
	}
}

func TestLoadRejectsUnknownPredecessor(t *testing.T) {
	bad := `[{"name":"f","entry_block":"bb1","bblocks":[
		{"name":"bb1","predecessors":["bb9"],"instructions":[]}
	]}]`
	if _, err := Load(strings.NewReader(bad), "mod"); err == nil {
		t.Fatal("expected an error for an unknown predecessor block")
	}
}

func TestLoadRejectsIncompatibleSchemaVersion(t *testing.T) {
	env := `{"schema_version": "2.0.0", "functions": []}`
	if _, err := Load(strings.NewReader(env), "mod"); err == nil {
		t.Fatal("expected a schema_version incompatibility error")
	}
}

func TestWriteRoundTripsAllocations(t *testing.T) {
	m, err := Load(strings.NewReader(diamondJSON), "mod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := m.Functions["f"]
	f.Vars["v1"].Alloc = ir.Reg(1)
	f.Vars["v4"].Alloc = ir.MemSlot("v4")

	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"schema_version": "1.0.0"`) {
		t.Fatalf("expected schema_version in output, got %s", out)
	}
	if !strings.Contains(out, "v1(reg1)") {
		t.Fatalf("expected v1's register allocation to be rendered, got %s", out)
	}
	if !strings.Contains(out, "v4(mem(v4))") {
		t.Fatalf("expected v4's slot allocation to be rendered, got %s", out)
	}
}

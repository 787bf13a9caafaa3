// Package ingest loads and writes the module JSON format spec.md §6
// describes: a function array, each function a block list, each block an
// instruction list, operands named by the v<n>/bb<n>/reg<n>/mem(v<n>)
// grammar with an optional "/<label>" debug suffix.
//
// Grounded on py-regallo/cfg/cfg.py's Variable/Instruction/BasicBlock/
// Function/Module.from_json classmethods.
package ingest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	semver "github.com/Masterminds/semver/v3"

	"github.com/kestrelc/regallo/internal/ir"
)

// SchemaVersion is the schema_version this loader/writer speaks. The
// original format (py-regallo) carries no such field at all; it is an
// addition over spec.md §6, gated by schemaConstraint the same way the
// teacher's internal/packagemanager gates dependency resolution with
// semver.NewConstraint.
const SchemaVersion = "1.0.0"

const schemaConstraint = "^1"

var (
	varNameRe   = regexp.MustCompile(`^v[0-9]+$`)
	blockNameRe = regexp.MustCompile(`^bb[0-9]+$`)
)

func isVarName(s string) bool   { return varNameRe.MatchString(s) }
func isBlockName(s string) bool { return blockNameRe.MatchString(s) }

// splitLabel separates an identifier from its optional "/<label>" debug
// suffix (spec.md §6's SEPARATOR-joined naming).
func splitLabel(s string) (id, label string) {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func checkSchemaVersion(v string) error {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("ingest: malformed schema_version %q: %w", v, err)
	}
	c, err := semver.NewConstraint(schemaConstraint)
	if err != nil {
		return fmt.Errorf("ingest: invalid schema constraint %q: %w", schemaConstraint, err)
	}
	if !c.Check(sv) {
		return fmt.Errorf("ingest: schema_version %s is not compatible with %s", v, schemaConstraint)
	}
	return nil
}

// moduleEnvelope is the optional wrapper shape carrying schema_version
// around the bare function array spec.md §6 defines as the module JSON's
// top-level value. Load accepts either shape; Write always emits the
// envelope so every file this package produces also carries the gate.
type moduleEnvelope struct {
	SchemaVersion string         `json:"schema_version,omitempty"`
	Functions     []functionJSON `json:"functions"`
}

type functionJSON struct {
	Name       string       `json:"name"`
	EntryBlock string       `json:"entry_block"`
	Bblocks    []bblockJSON `json:"bblocks"`
}

type bblockJSON struct {
	Name         string            `json:"name"`
	Predecessors []string          `json:"predecessors"`
	Instructions []instructionJSON `json:"instructions"`
}

type instructionJSON struct {
	Opname string            `json:"opname"`
	Def    string            `json:"def,omitempty"`
	Use    []json.RawMessage `json:"use"`
}

// phiOperandJSON is the {val, bb} shape spec.md §6 uses for phi operands,
// as opposed to the bare-name shape every other instruction's operands
// use.
type phiOperandJSON struct {
	Val string `json:"val"`
	BB  string `json:"bb"`
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tensorgraph/esat/esat"
	"github.com/tensorgraph/esat/internal/esaterrors"
	"github.com/tensorgraph/esat/internal/extract"
	"github.com/tensorgraph/esat/internal/term"
)

// program is the on-disk JSON shape for a tensor computation graph: a
// flat, already-topologically-sorted node list (children strictly
// precede parents, matching the order internal/extract.Reconstruct
// itself produces) plus the index of the root node. It doubles as both
// the optimizer's input format and, reusing extract.Record directly,
// its output format.
type program struct {
	Root  int             `json:"root"`
	Nodes []extract.Record `json:"nodes"`
}

func readProgram(path string) (program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return program{}, err
	}
	var p program
	if err := json.Unmarshal(data, &p); err != nil {
		return program{}, esaterrors.MalformedRule(path, "parsing program JSON", err)
	}
	return p, nil
}

// buildGraph replays p's node list into b, returning the Handle for
// p.Root.
func buildGraph(b *esat.Builder, p program) (esat.Handle, error) {
	if p.Root < 0 || p.Root >= len(p.Nodes) {
		return esat.Handle{}, fmt.Errorf("program: root index %d out of range", p.Root)
	}
	handles := make([]esat.Handle, len(p.Nodes))
	for i, rec := range p.Nodes {
		op, ok := term.LookupOp(rec.Label)
		if !ok {
			return esat.Handle{}, esaterrors.MalformedRule(rec.Label, "unknown operator", nil)
		}
		children := make([]esat.Handle, len(rec.Operands))
		for j, operand := range rec.Operands {
			if operand < 0 || operand >= i {
				return esat.Handle{}, fmt.Errorf("program: node %d references operand %d out of order", i, operand)
			}
			children[j] = handles[operand]
		}
		h, err := b.Build(op, children, term.Imm{Name: rec.Name, IntVal: rec.IntVal})
		if err != nil {
			return esat.Handle{}, err
		}
		handles[i] = h
	}
	return handles[p.Root], nil
}

func writeRecords(path string, records []extract.Record) error {
	out := program{Root: len(records) - 1, Nodes: records}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

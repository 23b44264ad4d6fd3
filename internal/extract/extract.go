// Package extract parses the ILP solver's response and reconstructs the
// chosen program as a flat sequence of records, per spec.md §4.I.
package extract

import (
	"fmt"
	"log/slog"

	"github.com/tensorgraph/esat/internal/ilp"
	"github.com/tensorgraph/esat/internal/term"
)

// Record is one flattened output node: an operator label and the
// indices, within the returned sequence, of its operands. Leaf nodes
// (Input, Num) carry no operands and their immediate payload lives on
// Name/IntVal instead.
type Record struct {
	Name     string
	Label    string
	Operands []int
	IntVal   int32
}

// Pick resolves solvedX into a map from class index to the single node
// index chosen for that class. If a class receives more than one pick —
// possible if the solver timed out with multiple incumbent variables
// set — the first one encountered (in node-index order) is kept and the
// rest are logged, per spec.md §4.I.
func Pick(d *ilp.Data, solvedX []bool, logger *slog.Logger) map[int]int {
	if logger == nil {
		logger = slog.Default()
	}
	picked := make(map[int]int)
	for idx, on := range solvedX {
		if !on || idx >= len(d.GI) {
			continue
		}
		classIdx := d.GI[idx]
		if existing, ok := picked[classIdx]; ok {
			logger.Warn("extract: duplicate pick for class, keeping first",
				"class", classIdx, "kept_node", existing, "dropped_node", idx)
			continue
		}
		picked[classIdx] = idx
	}
	return picked
}

// Reconstruct performs a memoized post-order traversal from the root
// class, resolving each picked node and recursing into its children,
// and returns the result as a flat sequence of Records in the order
// they were allocated (children always precede their parents).
func Reconstruct(d *ilp.Data, picked map[int]int) ([]Record, error) {
	var out []Record
	memo := make(map[int]int) // class index -> record index

	var walk func(classIdx int) (int, error)
	walk = func(classIdx int) (int, error) {
		if ri, ok := memo[classIdx]; ok {
			return ri, nil
		}
		nodeIdx, ok := picked[classIdx]
		if !ok {
			return 0, fmt.Errorf("extract: class %d has no picked node", classIdx)
		}
		node := d.Nodes[nodeIdx]

		children := d.HI[nodeIdx]
		operands := make([]int, len(children))
		for i, childClass := range children {
			ri, err := walk(childClass)
			if err != nil {
				return 0, err
			}
			operands[i] = ri
		}

		rec := Record{
			Name:     fmt.Sprintf("%s#%d", node.Op.String(), nodeIdx),
			Label:    node.Op.String(),
			Operands: operands,
			IntVal:   node.Imm.IntVal,
		}
		if node.Op == term.OpInput || node.Op == term.OpBlackBox {
			rec.Name = node.Imm.Name
		}

		ri := len(out)
		out = append(out, rec)
		memo[classIdx] = ri
		return ri, nil
	}

	if _, err := walk(d.RootM); err != nil {
		return nil, err
	}
	return out, nil
}

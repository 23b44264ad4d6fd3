// Package ilp prepares the e-graph extraction problem as an integer
// linear program, serializes it to the JSON interchange format, drives
// the solver subprocess, and parses its response, per spec.md §4.H.
package ilp

import (
	"github.com/tensorgraph/esat/internal/cost"
	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/term"
)

// Data is the ILP problem prepared from one live e-graph and root
// class. Field names mirror the wire JSON's, except MIDMap, which
// never crosses the wire (the solver only ever sees class *indices*;
// mapping index m back to an engine ClassID is the host's job when
// interpreting the response).
type Data struct {
	MIDMap     []egraph.ClassID // m -> engine class id
	EM         [][]int          // class index -> node indices
	HI         [][]int          // node index -> child class indices
	CostI      []*cost.Cost     // node index -> self cost
	GI         []int            // node index -> owning class index
	RootM      int
	BlacklistI []int // node indices ineligible for selection

	// Nodes is kept alongside the ILP arrays (not part of the ILP
	// problem itself) so the extractor can resolve a solved node index
	// back to the term.Node it names without re-walking the e-graph.
	Nodes []term.Node
}

// Prepare builds a Data from g, pricing every node through oracle.
func Prepare(g *egraph.Graph, oracle cost.Oracle, root egraph.ClassID) *Data {
	classes := g.Classes()
	classIndex := make(map[egraph.ClassID]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}

	d := &Data{
		MIDMap: classes,
		EM:     make([][]int, len(classes)),
		RootM:  classIndex[g.Find(root)],
	}

	nodeIdx := 0
	for ci, c := range classes {
		for _, n := range g.Nodes(c) {
			idx := nodeIdx
			nodeIdx++
			d.EM[ci] = append(d.EM[ci], idx)
			d.GI = append(d.GI, ci)
			d.Nodes = append(d.Nodes, n)

			children := make([]int, len(n.Children))
			childShapes := make([]term.Shape, len(n.Children))
			childDTypes := make([]term.DType, len(n.Children))
			var attrs []int64
			for k, ch := range n.Children {
				chRoot := g.Find(ch)
				children[k] = classIndex[chRoot]
				a := g.Analysis(chRoot)
				childShapes[k] = a.Shape
				childDTypes[k] = a.DType
				if vals, ok := g.LiteralInts(chRoot); ok {
					attrs = append(attrs, vals...)
				}
			}
			d.HI = append(d.HI, children)
			d.CostI = append(d.CostI, cost.PriceNode(oracle, n.Op, childShapes, childDTypes, attrs))

			if g.IsBlacklisted(c) || g.IsNodeExcluded(n) {
				d.BlacklistI = append(d.BlacklistI, idx)
			}
		}
	}
	return d
}

// TotalCost sums CostI over the given solved node indices, using the
// same decimal precision as the cost package so the objective value
// reported to the caller matches what the solver itself computed,
// without float64 summation drift.
func (d *Data) TotalCost(solvedX []bool) (*cost.Cost, error) {
	total := cost.Zero()
	for i, picked := range solvedX {
		if !picked || i >= len(d.CostI) {
			continue
		}
		var err error
		total, err = cost.Add(total, d.CostI[i])
		if err != nil {
			return nil, err
		}
	}
	return total, nil
}

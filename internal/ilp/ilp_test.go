package ilp_test

import (
	"testing"

	"github.com/cockroachdb/apd/v3"

	"github.com/tensorgraph/esat/internal/cost"
	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/ilp"
	"github.com/tensorgraph/esat/internal/term"
)

type fakeOracle struct{ price float64 }

func (f *fakeOracle) Price(cost.Request) (*cost.Cost, error) {
	d := apd.New(0, 0)
	d.SetFloat64(f.price)
	return d, nil
}

func build(t *testing.T) (*egraph.Graph, egraph.ClassID) {
	t.Helper()
	g := egraph.New()
	a := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "a@3_4"}})
	b := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "b@3_4"}})
	sum := g.MustAdd(term.Node{Op: term.OpAdd, Children: []term.ClassID{a, b}})
	g.SetRoot(sum)
	return g, sum
}

func TestPrepareProducesOneEntryPerNode(t *testing.T) {
	g, root := build(t)
	d := ilp.Prepare(g, &fakeOracle{price: 2}, root)

	if got, want := len(d.Nodes), g.NumNodes(); got != want {
		t.Fatalf("Prepare produced %d node entries, want %d", got, want)
	}
	if d.RootM < 0 || d.RootM >= len(d.EM) {
		t.Fatalf("RootM %d out of range [0,%d)", d.RootM, len(d.EM))
	}
	if len(d.GI) != len(d.Nodes) || len(d.HI) != len(d.Nodes) || len(d.CostI) != len(d.Nodes) {
		t.Fatalf("GI/HI/CostI length mismatch with Nodes: %d/%d/%d vs %d",
			len(d.GI), len(d.HI), len(d.CostI), len(d.Nodes))
	}
}

func TestPrepareMarksBlacklistedClassNodesIneligible(t *testing.T) {
	g, root := build(t)
	g.Blacklist(root)

	d := ilp.Prepare(g, &fakeOracle{price: 1}, root)
	if len(d.BlacklistI) == 0 {
		t.Fatal("expected root class's nodes to be marked ineligible after Blacklist")
	}
}

func TestPrepareMarksExcludedNodeIneligibleWithoutBlacklistingClass(t *testing.T) {
	g, root := build(t)
	rootNode := g.Nodes(root)[0]
	g.ExcludeNode(rootNode)

	d := ilp.Prepare(g, &fakeOracle{price: 1}, root)
	if g.IsBlacklisted(root) {
		t.Fatal("excluding a single node must not blacklist its class")
	}
	found := false
	for _, idx := range d.BlacklistI {
		if d.GI[idx] == d.RootM {
			found = true
		}
	}
	if !found {
		t.Error("excluded node's index not present in BlacklistI")
	}
}

func TestTotalCostSumsOnlyPickedNodes(t *testing.T) {
	g, root := build(t)
	d := ilp.Prepare(g, &fakeOracle{price: 3}, root)

	picked := make([]bool, len(d.Nodes))
	picked[0] = true

	total, err := d.TotalCost(picked)
	if err != nil {
		t.Fatal(err)
	}
	if total.Cmp(d.CostI[0]) != 0 {
		t.Errorf("TotalCost(single pick) = %v, want %v", total, d.CostI[0])
	}
}

func TestTotalCostIgnoresOutOfRangeIndices(t *testing.T) {
	g, root := build(t)
	d := ilp.Prepare(g, &fakeOracle{price: 1}, root)

	picked := make([]bool, len(d.Nodes)+5)
	total, err := d.TotalCost(picked)
	if err != nil {
		t.Fatal(err)
	}
	if total.Cmp(cost.Zero()) != 0 {
		t.Errorf("TotalCost(none picked) = %v, want 0", total)
	}
}

package extract_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/cockroachdb/apd/v3"

	"github.com/tensorgraph/esat/internal/extract"
	"github.com/tensorgraph/esat/internal/ilp"
	"github.com/tensorgraph/esat/internal/term"
)

// buildData hand-assembles an ilp.Data for Add(Input a, Input b) without
// going through egraph/Prepare, so extract can be tested in isolation.
func buildData() *ilp.Data {
	one := apd.New(1, 0)
	return &ilp.Data{
		EM:    [][]int{{0}, {1}, {2}},
		HI:    [][]int{{}, {}, {0, 1}},
		CostI: []*apd.Decimal{apd.New(0, 0), apd.New(0, 0), one},
		GI:    []int{0, 1, 2},
		RootM: 2,
		Nodes: []term.Node{
			{Op: term.OpInput, Imm: term.Imm{Name: "a@2_2"}},
			{Op: term.OpInput, Imm: term.Imm{Name: "b@2_2"}},
			{Op: term.OpAdd, Children: []term.ClassID{1, 2}},
		},
	}
}

func TestPickKeepsFirstOnDuplicate(t *testing.T) {
	d := buildData()
	// Pathologically, the solver picks two nodes for class 0.
	d.GI = append(d.GI, 0)
	d.HI = append(d.HI, []int{})
	d.Nodes = append(d.Nodes, term.Node{Op: term.OpInput, Imm: term.Imm{Name: "a-dup"}})
	d.CostI = append(d.CostI, apd.New(0, 0))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	solvedX := []bool{true, true, true, true}
	picked := extract.Pick(d, solvedX, logger)

	if got := picked[0]; got != 0 {
		t.Errorf("picked[0] = %d, want 0 (first encountered)", got)
	}
	if buf.Len() == 0 {
		t.Error("expected a logged warning for the duplicate pick")
	}
}

func TestReconstructProducesChildrenBeforeParents(t *testing.T) {
	d := buildData()
	picked := map[int]int{0: 0, 1: 1, 2: 2}

	recs, err := extract.Reconstruct(d, picked)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	root := recs[len(recs)-1]
	if root.Label != "Add" {
		t.Errorf("root label = %q, want Add", root.Label)
	}
	if len(root.Operands) != 2 {
		t.Fatalf("root operands = %v, want 2 entries", root.Operands)
	}
	for _, opIdx := range root.Operands {
		if opIdx >= len(recs)-1 {
			t.Errorf("operand index %d does not precede the root record", opIdx)
		}
	}
	if recs[root.Operands[0]].Label != "Input" {
		t.Errorf("first operand label = %q, want Input", recs[root.Operands[0]].Label)
	}
}

func TestReconstructErrorsOnMissingPick(t *testing.T) {
	d := buildData()
	_, err := extract.Reconstruct(d, map[int]int{})
	if err == nil {
		t.Fatal("expected an error when the root class has no picked node")
	}
}

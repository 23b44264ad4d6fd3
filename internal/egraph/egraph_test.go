package egraph_test

import (
	"testing"

	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/term"
)

func build(t *testing.T) (*egraph.Graph, term.ClassID, term.ClassID) {
	t.Helper()
	g := egraph.New()
	a := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "a@3_4"}})
	b := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "b@3_4"}})
	return g, a, b
}

func TestFindIdempotence(t *testing.T) {
	g, a, b := build(t)
	sum, _, err := g.Union(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if g.Find(g.Find(sum)) != g.Find(sum) {
		t.Error("Find is not idempotent")
	}
}

func TestHashconsUniqueness(t *testing.T) {
	g := egraph.New()
	a := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "a@3_4"}})
	b := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "b@3_4"}})

	n1 := g.MustAdd(term.Node{Op: term.OpAdd, Children: []term.ClassID{a, b}})
	n2 := g.MustAdd(term.Node{Op: term.OpAdd, Children: []term.ClassID{a, b}})
	if n1 != n2 {
		t.Errorf("identical e-nodes produced distinct classes: %d vs %d", n1, n2)
	}

	// After merging a and b, the two insertion orders of Add(a,b) and
	// Add(b,a) (if they were to exist as separate nodes) must collide
	// post-canonicalization and post-rebuild into one class.
	c := g.MustAdd(term.Node{Op: term.OpAdd, Children: []term.ClassID{b, a}})
	if _, _, err := g.Union(a, b); err != nil {
		t.Fatal(err)
	}
	if err := g.Rebuild(); err != nil {
		t.Fatal(err)
	}
	if g.Find(n1) != g.Find(c) {
		t.Errorf("congruent nodes after union(a,b) were not merged: %d vs %d", g.Find(n1), g.Find(c))
	}
}

func TestUnionCommutativeEffect(t *testing.T) {
	g1, a1, b1 := build(t)
	r1, _, err := g1.Union(a1, b1)
	if err != nil {
		t.Fatal(err)
	}

	g2, a2, b2 := build(t)
	r2, _, err := g2.Union(b2, a2)
	if err != nil {
		t.Fatal(err)
	}

	if g1.Find(r1) != g1.Find(a1) || g1.Find(r1) != g1.Find(b1) {
		t.Error("union(a,b) should equate a and b")
	}
	if g2.Find(r2) != g2.Find(a2) || g2.Find(r2) != g2.Find(b2) {
		t.Error("union(b,a) should equate a and b")
	}
	// Both graphs should end up with exactly one class for {a,b}.
	if g1.Find(a1) != g1.Find(b1) {
		t.Error("graph 1: a and b not in the same class")
	}
	if g2.Find(a2) != g2.Find(b2) {
		t.Error("graph 2: a and b not in the same class")
	}
}

func TestAnalysisMonotonicBlacklist(t *testing.T) {
	g, a, _ := build(t)
	if g.IsBlacklisted(a) {
		t.Fatal("fresh class should not be blacklisted")
	}
	g.Blacklist(a)
	if !g.IsBlacklisted(a) {
		t.Error("Blacklist should set the flag")
	}
}

func TestAnalysisConflictOnShapeMismatch(t *testing.T) {
	g := egraph.New()
	a := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "a@3_4"}})
	b := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "b@5_6"}})
	if _, _, err := g.Union(a, b); err == nil {
		t.Fatal("expected AnalysisConflict error merging incompatible shapes")
	}
}

func TestCanonicalAfterRebuild(t *testing.T) {
	g := egraph.New()
	a := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "a@3_4"}})
	b := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "b@3_4"}})
	add1 := g.MustAdd(term.Node{Op: term.OpAdd, Children: []term.ClassID{a, b}})

	c := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "c@3_4"}})
	if _, _, err := g.Union(b, c); err != nil {
		t.Fatal(err)
	}
	if err := g.Rebuild(); err != nil {
		t.Fatal(err)
	}

	for _, n := range g.Nodes(add1) {
		if n.Op != term.OpAdd {
			continue
		}
		for _, ch := range n.Children {
			if ch != g.Find(ch) {
				t.Errorf("stored node child %d is not a root after rebuild", ch)
			}
		}
	}
}

func TestLiteralIntsResolvesVecOfNum(t *testing.T) {
	g := egraph.New()
	n0 := g.MustAdd(term.Node{Op: term.OpNum, Imm: term.Imm{IntVal: 1}})
	n1 := g.MustAdd(term.Node{Op: term.OpNum, Imm: term.Imm{IntVal: 0}})
	vec := g.MustAdd(term.Node{Op: term.OpVec, Children: []term.ClassID{n0, n1}})

	got, ok := g.LiteralInts(vec)
	if !ok {
		t.Fatal("expected LiteralInts to resolve a Vec of Num")
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 0 {
		t.Errorf("LiteralInts = %v, want [1 0]", got)
	}
}

package rewrite_test

import (
	"context"
	"testing"
	"time"

	"github.com/tensorgraph/esat/internal/cycle"
	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/pattern"
	"github.com/tensorgraph/esat/internal/rewrite"
	"github.com/tensorgraph/esat/internal/term"
)

func TestRunSaturatesOnDoubleTransposeCancel(t *testing.T) {
	g := egraph.New()
	x := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "x@3_4"}})
	p0 := g.MustAdd(term.Node{Op: term.OpNum, Imm: term.Imm{IntVal: 1}})
	p1 := g.MustAdd(term.Node{Op: term.OpNum, Imm: term.Imm{IntVal: 0}})
	perm := g.MustAdd(term.Node{Op: term.OpVec, Children: []term.ClassID{p0, p1}})
	inner := g.MustAdd(term.Node{Op: term.OpTranspose, Children: []term.ClassID{x, perm}})
	outer := g.MustAdd(term.Node{Op: term.OpTranspose, Children: []term.ClassID{inner, perm}})
	g.SetRoot(outer)

	d := &rewrite.Driver{
		Graph:  g,
		Rules:  pattern.BuiltinRules(),
		Limits: rewrite.NewLimits(),
	}
	reason, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reason != rewrite.StopSaturated {
		t.Errorf("stop reason = %v, want saturated", reason)
	}
	if g.Find(outer) != g.Find(x) {
		t.Error("expected double-transpose-cancel to equate outer with the original input")
	}
}

func TestRunReportsSaturationWithinIterLimit(t *testing.T) {
	g := egraph.New()
	x := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "x@3_4"}})
	g.SetRoot(x)

	d := &rewrite.Driver{
		Graph:  g,
		Rules:  pattern.BuiltinRules(),
		Limits: rewrite.Limits{IterLimit: 1, NodeLimit: 1000, TimeLimit: time.Second},
	}
	reason, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Nothing to rewrite: the loop finds no matches on the very first
	// iteration and should report saturation, not the iteration limit.
	if reason != rewrite.StopSaturated {
		t.Errorf("stop reason = %v, want saturated", reason)
	}
}

func TestOnIterationHookInvoked(t *testing.T) {
	g := egraph.New()
	x := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "x@3_4"}})
	zero := g.MustAdd(term.Node{Op: term.OpNum, Imm: term.Imm{IntVal: 0}})
	sum := g.MustAdd(term.Node{Op: term.OpAdd, Children: []term.ClassID{x, zero}})
	g.SetRoot(sum)

	calls := 0
	d := &rewrite.Driver{
		Graph:       g,
		Rules:       pattern.BuiltinRules(),
		Limits:      rewrite.NewLimits(),
		OnIteration: func(int) { calls++ },
	}
	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls == 0 {
		t.Error("expected OnIteration to be invoked at least once")
	}
}

func TestOnlineCycleModeRejectsSelfWrappingUnion(t *testing.T) {
	g := egraph.New()
	x := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "x@3_4"}})
	zero := g.MustAdd(term.Node{Op: term.OpNum, Imm: term.Imm{IntVal: 0}})
	root := g.MustAdd(term.Node{Op: term.OpAdd, Children: []term.ClassID{x, zero}})
	g.SetRoot(root)

	// A rule that always wraps its match in another Add(?y, 0): firing
	// it on root would attempt to union root with Add(root, 0), which
	// the online filter must reject.
	wrapRule := pattern.Rule{
		Name: "wrap-in-add-zero",
		LHS:  mustParse(t, "?y"),
		RHS:  mustParse(t, "?y"),
		Apply: func(g *egraph.Graph, s pattern.Subst) (egraph.ClassID, error) {
			zeroID, err := g.Add(term.Node{Op: term.OpNum, Imm: term.Imm{IntVal: 0}})
			if err != nil {
				return 0, err
			}
			return g.Add(term.Node{Op: term.OpAdd, Children: []term.ClassID{s["y"], zeroID}})
		},
	}

	d := &rewrite.Driver{
		Graph:     g,
		Rules:     []pattern.Rule{wrapRule},
		Limits:    rewrite.Limits{IterLimit: 5, NodeLimit: 1000, TimeLimit: time.Second},
		CycleMode: cycle.ModeOnline,
	}
	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// The online filter should have prevented root from ever being
	// unioned with its own wrapped form, so x and root must remain
	// exactly as related as before (no cycle recorded), though the new
	// wrapped e-node may still have been added as an unrelated class.
	if g.Find(root) == g.Find(x) {
		t.Error("root should not have been merged with x by this rule")
	}
}

func mustParse(t *testing.T, src string) *pattern.Pattern {
	t.Helper()
	p, err := pattern.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

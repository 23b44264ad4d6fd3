package multipattern

import (
	"fmt"

	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/pattern"
	"github.com/tensorgraph/esat/internal/term"
)

// BuiltinRules returns the engine's built-in multi-premise table. This
// covers the joint-match scenario from the testable-properties suite:
// two separate `Mul ?x ?y` / `Mul ?x ?z` sites sharing `?x` fuse into
// one `Mul ?x (Add ?y ?z)` site, replacing both.
func BuiltinRules() []Rule {
	return []Rule{mulFactorSharedLeftRule()}
}

func mulFactorSharedLeftRule() Rule {
	return Rule{
		Name: "mul-factor-shared-left",
		Premises: []Premise{
			{LHS: mustParse("(Mul ?x ?y)")},
			{LHS: mustParse("(Mul ?x ?z)")},
		},
		Apply: func(g *egraph.Graph, b Binding) ([][2]egraph.ClassID, error) {
			if len(b.Roots) != 2 {
				return nil, fmt.Errorf("mul-factor-shared-left: expected 2 premise roots, got %d", len(b.Roots))
			}
			if b.Roots[0] == b.Roots[1] {
				// Both premises already refer to the same site; nothing
				// to fuse.
				return nil, nil
			}
			sum, err := g.Add(term.Node{Op: term.OpAdd, Children: []term.ClassID{b.Subst["y"], b.Subst["z"]}})
			if err != nil {
				return nil, err
			}
			fused, err := g.Add(term.Node{Op: term.OpMul, Children: []term.ClassID{b.Subst["x"], sum}})
			if err != nil {
				return nil, err
			}
			return [][2]egraph.ClassID{
				{b.Roots[0], fused},
				{b.Roots[1], fused},
			}, nil
		},
	}
}

func mustParse(src string) *pattern.Pattern {
	p, err := pattern.Parse(src)
	if err != nil {
		panic(err)
	}
	return p
}

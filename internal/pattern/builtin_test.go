package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/pattern"
	"github.com/tensorgraph/esat/internal/term"
)

// vecLiteral builds a Vec-of-Num e-node encoding dims, the same
// literal-shape-attribute shape the dot-associativity rule itself
// builds via addShapeLiteral.
func vecLiteral(t *testing.T, g *egraph.Graph, dims ...int32) term.ClassID {
	t.Helper()
	children := make([]term.ClassID, len(dims))
	for i, d := range dims {
		children[i] = numClass(t, g, d)
	}
	return g.MustAdd(term.Node{Op: term.OpVec, Children: children})
}

// dotGeneral builds a DotGeneral e-node over lhs/rhs with the batch and
// contracting-dim attributes left empty (plain matmul), outShape given
// literally, matching the 8-child order analysis.go's OpDotGeneral case
// expects.
func dotGeneral(t *testing.T, g *egraph.Graph, lhs, rhs term.ClassID, outShape term.ClassID) term.ClassID {
	t.Helper()
	empty := vecLiteral(t, g)
	prec := numClass(t, g, 0)
	return g.MustAdd(term.Node{Op: term.OpDotGeneral, Children: []term.ClassID{
		lhs, rhs, empty, empty, empty, empty, prec, outShape,
	}})
}

// TestDotAssociativityRightToLeftReassociates builds Dot(a, Dot(b, c))
// for a (4,3), b (3,2), c (2,5) matmul chain and checks that firing the
// built-in associativity rule unions in the (Dot(a,b), c) form under
// the same root class.
func TestDotAssociativityRightToLeftReassociates(t *testing.T) {
	g := egraph.New()
	a := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "a@4_3"}})
	b := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "b@3_2"}})
	c := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "c@2_5"}})

	bc := dotGeneral(t, g, b, c, vecLiteral(t, g, 3, 5))
	aBc := dotGeneral(t, g, a, bc, vecLiteral(t, g, 4, 5))
	g.SetRoot(aBc)

	rule := pattern.BuiltinRules()[3]
	matches := pattern.Search(g, rule.LHS, rule.Symmetric)
	require.NotEmpty(t, matches)

	var applied bool
	for _, m := range matches {
		if m.Root != g.Find(aBc) {
			continue
		}
		newRoot, ok, err := rule.ApplyTo(g, m)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, g.Find(aBc), g.Find(newRoot))
		applied = true
	}
	require.True(t, applied)
	require.NoError(t, g.Rebuild())

	found := false
	for _, n := range g.Nodes(g.Find(aBc)) {
		if n.Op != term.OpDotGeneral {
			continue
		}
		if g.Find(n.Children[1]) == g.Find(c) {
			found = true
			ana := g.Analysis(g.Find(n.Children[0]))
			assert.Equal(t, []int64{4, 2}, ana.Shape.Slice())
		}
	}
	assert.True(t, found, "expected (Dot a b) . c form to appear in the root class after reassociation")
}

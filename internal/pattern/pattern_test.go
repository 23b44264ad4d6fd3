package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/pattern"
	"github.com/tensorgraph/esat/internal/term"
)

func numClass(t *testing.T, g *egraph.Graph, v int32) term.ClassID {
	t.Helper()
	id, err := g.Add(term.Node{Op: term.OpNum, Imm: term.Imm{IntVal: v}})
	require.NoError(t, err)
	return id
}

func TestParseRoundTrip(t *testing.T) {
	p, err := pattern.Parse("(Transpose (Transpose ?x ?p) ?p)")
	require.NoError(t, err)
	assert.Equal(t, pattern.KindNode, p.Kind)
	assert.Equal(t, term.OpTranspose, p.Op)
	require.Len(t, p.Children, 2)
	assert.Equal(t, pattern.KindVar, p.Children[1].Kind)
	assert.Equal(t, "p", p.Children[1].Var)
}

func TestParseRuleMalformed(t *testing.T) {
	_, err := pattern.ParseRule("no-separator-here")
	require.Error(t, err)
}

func TestParseRuleValid(t *testing.T) {
	r, err := pattern.ParseRule("double-neg ; (Neg (Neg ?x)) => ?x")
	require.NoError(t, err)
	assert.Equal(t, "double-neg", r.Name)
	assert.Equal(t, term.OpNeg, r.LHS.Op)
}

func TestSearchMatchesTransposeCancel(t *testing.T) {
	g := egraph.New()
	x := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "a@3_4"}})
	p0 := numClass(t, g, 1)
	p1 := numClass(t, g, 0)
	perm := g.MustAdd(term.Node{Op: term.OpVec, Children: []term.ClassID{p0, p1}})
	inner := g.MustAdd(term.Node{Op: term.OpTranspose, Children: []term.ClassID{x, perm}})
	outer := g.MustAdd(term.Node{Op: term.OpTranspose, Children: []term.ClassID{inner, perm}})
	g.SetRoot(outer)

	rule := pattern.BuiltinRules()[0]
	matches := pattern.Search(g, rule.LHS, rule.Symmetric)
	require.NotEmpty(t, matches)

	found := false
	for _, m := range matches {
		if m.Root == g.Find(outer) {
			found = true
			root, applied, err := rule.ApplyTo(g, m)
			require.NoError(t, err)
			require.True(t, applied)
			assert.Equal(t, g.Find(x), g.Find(root))
		}
	}
	assert.True(t, found)
}

func TestAddZeroSymmetricMatchesBothOrders(t *testing.T) {
	g := egraph.New()
	x := g.MustAdd(term.Node{Op: term.OpInput, Imm: term.Imm{Name: "a@3_4"}})
	zero := numClass(t, g, 0)
	plusRight := g.MustAdd(term.Node{Op: term.OpAdd, Children: []term.ClassID{x, zero}})

	rule := pattern.BuiltinRules()[1]
	matches := pattern.Search(g, rule.LHS, rule.Symmetric)
	require.NotEmpty(t, matches)

	applied := false
	for _, m := range matches {
		if m.Root == g.Find(plusRight) {
			root, ok, err := rule.ApplyTo(g, m)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, g.Find(x), g.Find(root))
			applied = true
		}
	}
	assert.True(t, applied)
}

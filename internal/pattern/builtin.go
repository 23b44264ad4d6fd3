package pattern

import (
	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/term"
)

// BuiltinRules returns the engine's built-in rewrite table (spec.md
// §4.C: "Rule source: one built-in table plus a newline-delimited text
// file"). These cover the algebraic identities the end-to-end scenarios
// of spec.md §8 exercise directly.
func BuiltinRules() []Rule {
	return []Rule{
		transposeCancelRule(),
		addZeroRule(),
		mulOneRule(),
		dotAssocRightToLeftRule(),
	}
}

// transposeCancelRule: transpose(transpose(x, p), p) -> x, but only
// when p is strictly decreasing (the round-trip law in spec.md §8).
func transposeCancelRule() Rule {
	lhs := mustParse("(Transpose (Transpose ?x ?p) ?p)")
	rhs := mustParse("?x")
	return Rule{
		Name: "transpose-of-transpose-cancel",
		LHS:  lhs,
		RHS:  rhs,
		Predicate: func(g *egraph.Graph, s Subst) bool {
			perm, ok := g.LiteralInts(s["p"])
			return ok && term.IsStrictlyDecreasing(perm)
		},
	}
}

// addZeroRule: x + 0 -> x. Symmetric so it also matches 0 + x.
func addZeroRule() Rule {
	return Rule{
		Name:      "add-zero-identity",
		LHS:       mustParse("(Add ?x 0)"),
		RHS:       mustParse("?x"),
		Symmetric: true,
	}
}

// mulOneRule: x * 1 -> x. Symmetric so it also matches 1 * x.
func mulOneRule() Rule {
	return Rule{
		Name:      "mul-one-identity",
		LHS:       mustParse("(Mul ?x 1)"),
		RHS:       mustParse("?x"),
		Symmetric: true,
	}
}

// dotAssocRightToLeftRule reassociates a chain of pure matmuls (no
// batch/contracting dims beyond the trailing pair, precision held
// constant) from Dot(a, Dot(b, c)) to Dot(Dot(a, b), c). Its RHS shape
// attribute is recomputed rather than copied — one of the cases the
// plain pattern-substitution applier cannot express, per §4.C's
// "instantiates the RHS pattern... adding any missing e-nodes" being
// insufficient when the RHS needs a value not present verbatim in any
// matched e-class — hence a custom Apply.
func dotAssocRightToLeftRule() Rule {
	lhs := mustParse("(DotGeneral ?a (DotGeneral ?b ?c ?bb ?rb ?bc ?rc ?prec ?innerShape) ?ab ?ac ?lc ?rc2 ?prec2 ?outerShape)")
	return Rule{
		Name: "dot-associativity-right-to-left",
		LHS:  lhs,
		Apply: func(g *egraph.Graph, s Subst) (egraph.ClassID, error) {
			return reassociateDot(g, s)
		},
	}
}

func reassociateDot(g *egraph.Graph, s Subst) (egraph.ClassID, error) {
	aShape := g.Analysis(s["a"]).Shape
	cShape := g.Analysis(s["c"]).Shape

	// new inner dot is (a . b): rank = rank(a) - 1 (drop a's contracted
	// dim) + rank(b) - 1 (drop b's contracted dim), matching plain
	// matmul contraction on the trailing/leading dim pair.
	var innerDims []int64
	if aShape.NDim > 0 {
		innerDims = append(innerDims, aShape.Dims[:aShape.NDim-1]...)
	}
	bShape := g.Analysis(s["b"]).Shape
	if bShape.NDim > 0 {
		innerDims = append(innerDims, bShape.Dims[1:bShape.NDim]...)
	}
	innerShape, err := term.NewShape(innerDims)
	if err != nil {
		return 0, err
	}
	innerShapeID, err := addShapeLiteral(g, innerShape)
	if err != nil {
		return 0, err
	}
	innerDot, err := g.Add(term.Node{
		Op: term.OpDotGeneral,
		Children: []term.ClassID{
			s["a"], s["b"],
			s["bb"], s["rb"], s["bc"], s["rc"], s["prec"],
			innerShapeID,
		},
	})
	if err != nil {
		return 0, err
	}

	var outerDims []int64
	if innerShape.NDim > 0 {
		outerDims = append(outerDims, innerShape.Dims[:innerShape.NDim-1]...)
	}
	if cShape.NDim > 0 {
		outerDims = append(outerDims, cShape.Dims[1:cShape.NDim]...)
	}
	outerShape, err := term.NewShape(outerDims)
	if err != nil {
		return 0, err
	}
	outerShapeID, err := addShapeLiteral(g, outerShape)
	if err != nil {
		return 0, err
	}
	return g.Add(term.Node{
		Op: term.OpDotGeneral,
		Children: []term.ClassID{
			innerDot, s["c"],
			s["ab"], s["ac"], s["lc"], s["rc2"], s["prec2"],
			outerShapeID,
		},
	})
}

// addShapeLiteral inserts a Vec-of-Num e-node encoding shape, suitable
// for use as a DotGeneral/Reshape-style literal shape child.
func addShapeLiteral(g *egraph.Graph, shape term.Shape) (egraph.ClassID, error) {
	children := make([]term.ClassID, shape.NDim)
	for i := 0; i < shape.NDim; i++ {
		id, err := g.Add(term.Node{Op: term.OpNum, Imm: term.Imm{IntVal: int32(shape.Dims[i])}})
		if err != nil {
			return 0, err
		}
		children[i] = id
	}
	return g.Add(term.Node{Op: term.OpVec, Children: children})
}

func mustParse(src string) *Pattern {
	p, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return p
}

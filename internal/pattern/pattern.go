// Package pattern implements the pattern language used by rewrite rules:
// pattern trees over operator variants, pattern variables, a bottom-up
// matcher over an e-graph, and the rule-file surface syntax.
package pattern

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/esaterrors"
	"github.com/tensorgraph/esat/internal/term"
)

// Kind distinguishes the four leaf/internal shapes a Pattern can take.
type Kind int

const (
	// KindVar is a pattern variable ("?x"): matches any class, binding
	// it in the substitution (or checking consistency if already bound).
	KindVar Kind = iota
	// KindNode is an internal pattern node: matches any e-node with the
	// same Op and arity, recursing into each child pattern.
	KindNode
	// KindNumLit matches an OpNum leaf with an exact literal value.
	KindNumLit
	// KindNameLit matches an OpInput or OpBlackBox leaf with an exact
	// immediate name (e.g. to pin a rule to a specific input/opaque id).
	KindNameLit
)

// Pattern is one node of a pattern tree.
type Pattern struct {
	Kind     Kind
	Op       term.Op    // KindNode
	Children []*Pattern // KindNode
	Var      string     // KindVar
	NumLit   int32      // KindNumLit
	NameLit  string     // KindNameLit
}

// Subst binds pattern variable names to e-classes.
type Subst map[string]egraph.ClassID

func (s Subst) clone() Subst {
	out := make(Subst, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Match is one occurrence of a pattern's LHS in the e-graph: the root
// class it matched at, and the variable bindings that made it match.
type Match struct {
	Root  egraph.ClassID
	Subst Subst
}

// Search finds every occurrence of p in g, matching bottom-up by trying
// every live class as a candidate root. symmetric additionally tries
// each 2-ary node's children in reversed order, per the spec's note that
// duplicates from commutative operators are not deduplicated unless
// rule metadata says the LHS is symmetric.
func Search(g *egraph.Graph, p *Pattern, symmetric bool) []Match {
	var out []Match
	for _, c := range g.Classes() {
		for _, s := range matchClass(g, p, c, Subst{}, symmetric) {
			out = append(out, Match{Root: c, Subst: s})
		}
	}
	return out
}

func matchClass(g *egraph.Graph, p *Pattern, classID egraph.ClassID, subst Subst, symmetric bool) []Subst {
	switch p.Kind {
	case KindVar:
		if existing, ok := subst[p.Var]; ok {
			if g.Find(existing) != g.Find(classID) {
				return nil
			}
			return []Subst{subst.clone()}
		}
		s2 := subst.clone()
		s2[p.Var] = classID
		return []Subst{s2}

	case KindNumLit:
		for _, n := range g.Nodes(classID) {
			if n.Op == term.OpNum && n.Imm.IntVal == p.NumLit {
				return []Subst{subst.clone()}
			}
		}
		return nil

	case KindNameLit:
		for _, n := range g.Nodes(classID) {
			if (n.Op == term.OpInput || n.Op == term.OpBlackBox) && n.Imm.Name == p.NameLit {
				return []Subst{subst.clone()}
			}
		}
		return nil

	case KindNode:
		var out []Subst
		for _, n := range g.Nodes(classID) {
			if n.Op != p.Op || len(n.Children) != len(p.Children) {
				continue
			}
			out = append(out, matchChildren(g, p.Children, n.Children, subst, symmetric)...)
			if symmetric && len(p.Children) == 2 {
				rev := []egraph.ClassID{n.Children[1], n.Children[0]}
				out = append(out, matchChildren(g, p.Children, rev, subst, symmetric)...)
			}
		}
		return out

	default:
		return nil
	}
}

func matchChildren(g *egraph.Graph, pats []*Pattern, classes []egraph.ClassID, subst Subst, symmetric bool) []Subst {
	if len(pats) == 0 {
		return []Subst{subst.clone()}
	}
	var out []Subst
	for _, head := range matchClass(g, pats[0], classes[0], subst, symmetric) {
		out = append(out, matchChildren(g, pats[1:], classes[1:], head, symmetric)...)
	}
	return out
}

// Instantiate builds p into g under subst, adding whatever e-nodes are
// missing, and returns the resulting class id. Used by the ordinary
// rewrite applier to build a rule's RHS.
func Instantiate(g *egraph.Graph, p *Pattern, subst Subst) (egraph.ClassID, error) {
	switch p.Kind {
	case KindVar:
		id, ok := subst[p.Var]
		if !ok {
			return 0, fmt.Errorf("unbound pattern variable ?%s", p.Var)
		}
		return g.Find(id), nil

	case KindNumLit:
		return g.Add(term.Node{Op: term.OpNum, Imm: term.Imm{IntVal: p.NumLit}})

	case KindNameLit:
		return 0, fmt.Errorf("name-literal pattern %q cannot appear on a rule's RHS", p.NameLit)

	case KindNode:
		children := make([]term.ClassID, len(p.Children))
		for i, cp := range p.Children {
			id, err := Instantiate(g, cp, subst)
			if err != nil {
				return 0, err
			}
			children[i] = id
		}
		return g.Add(term.Node{Op: p.Op, Children: children})

	default:
		return 0, fmt.Errorf("invalid pattern kind %d", p.Kind)
	}
}

// Parse parses one surface-syntax pattern, e.g. "(Transpose (Transpose ?x ?p) ?p)".
func Parse(src string) (*Pattern, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}
	pos := 0
	p, err := parseOne(toks, &pos)
	if err != nil {
		return nil, err
	}
	if pos != len(toks) {
		return nil, fmt.Errorf("trailing tokens after pattern: %v", toks[pos:])
	}
	return p, nil
}

func tokenize(src string) ([]string, error) {
	spaced := strings.ReplaceAll(src, "(", " ( ")
	spaced = strings.ReplaceAll(spaced, ")", " ) ")
	return shlex.Split(spaced)
}

func parseOne(toks []string, pos *int) (*Pattern, error) {
	if *pos >= len(toks) {
		return nil, fmt.Errorf("unexpected end of pattern")
	}
	tok := toks[*pos]

	if tok == "(" {
		*pos++
		if *pos >= len(toks) {
			return nil, fmt.Errorf("unclosed '('")
		}
		opTok := toks[*pos]
		*pos++
		op, ok := term.LookupOp(opTok)
		if !ok {
			return nil, fmt.Errorf("unknown operator %q", opTok)
		}
		var children []*Pattern
		for *pos < len(toks) && toks[*pos] != ")" {
			c, err := parseOne(toks, pos)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		if *pos >= len(toks) {
			return nil, fmt.Errorf("unclosed '(' for operator %q", opTok)
		}
		*pos++ // consume ")"
		return &Pattern{Kind: KindNode, Op: op, Children: children}, nil
	}

	if tok == ")" {
		return nil, fmt.Errorf("unexpected ')'")
	}

	*pos++
	if strings.HasPrefix(tok, "?") && len(tok) > 1 {
		return &Pattern{Kind: KindVar, Var: tok[1:]}, nil
	}
	if iv, err := strconv.ParseInt(tok, 10, 32); err == nil {
		return &Pattern{Kind: KindNumLit, NumLit: int32(iv)}, nil
	}
	return &Pattern{Kind: KindNameLit, NameLit: tok}, nil
}

// Rule is one rewrite: name, LHS/RHS patterns (or a custom Apply for
// rules whose RHS needs computed attributes the plain pattern language
// cannot express, e.g. recomputed shape attributes), an optional
// Predicate gating conditional rewrites, and a Symmetric flag for
// commutative LHS operators.
type Rule struct {
	Name      string
	LHS       *Pattern
	RHS       *Pattern
	Symmetric bool
	Predicate func(*egraph.Graph, Subst) bool
	Apply     func(*egraph.Graph, Subst) (egraph.ClassID, error)
}

// instantiateRHS builds this rule's RHS (or runs its custom Apply) under
// subst.
func (r *Rule) instantiateRHS(g *egraph.Graph, s Subst) (egraph.ClassID, error) {
	if r.Apply != nil {
		return r.Apply(g, s)
	}
	return Instantiate(g, r.RHS, s)
}

// ApplyTo instantiates r's RHS under m.Subst (running the predicate
// first) and unions the result with m.Root. It returns (root, applied,
// err); applied is false (not an error) when the predicate rejected the
// match, per the spec's "predicate failure is silent, not logged as an
// error" rule.
func (r *Rule) ApplyTo(g *egraph.Graph, m Match) (egraph.ClassID, bool, error) {
	return r.ApplyToFiltered(g, m, nil)
}

// ApplyToFiltered behaves like ApplyTo, except that the union is only
// performed if allow(m.Root, newRoot) holds (allow == nil means always
// allow). A filter rejection is reported the same way a predicate
// rejection is: applied is false, err is nil. This is the hook the
// online cycle filter uses to veto a union before it is ever recorded.
func (r *Rule) ApplyToFiltered(g *egraph.Graph, m Match, allow func(a, b egraph.ClassID) bool) (egraph.ClassID, bool, error) {
	if r.Predicate != nil && !r.Predicate(g, m.Subst) {
		return 0, false, nil
	}
	newRoot, err := r.instantiateRHS(g, m.Subst)
	if err != nil {
		return 0, false, err
	}
	if allow != nil && !allow(m.Root, newRoot) {
		return 0, false, nil
	}
	root, changed, err := g.Union(m.Root, newRoot)
	if err != nil {
		return 0, false, err
	}
	return root, changed, nil
}

// ParseRule parses one rule-file line of the form "name ; LHS => RHS".
func ParseRule(line string) (Rule, error) {
	parts := strings.SplitN(line, ";", 2)
	if len(parts) != 2 {
		return Rule{}, esaterrors.MalformedRule(line, "expected \"name ; LHS => RHS\"", nil)
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return Rule{}, esaterrors.MalformedRule(line, "rule name must not be empty", nil)
	}
	exprParts := strings.SplitN(parts[1], "=>", 2)
	if len(exprParts) != 2 {
		return Rule{}, esaterrors.MalformedRule(name, "expected \"LHS => RHS\"", nil)
	}
	lhs, err := Parse(strings.TrimSpace(exprParts[0]))
	if err != nil {
		return Rule{}, esaterrors.MalformedRule(name, "parsing LHS", err)
	}
	rhs, err := Parse(strings.TrimSpace(exprParts[1]))
	if err != nil {
		return Rule{}, esaterrors.MalformedRule(name, "parsing RHS", err)
	}
	return Rule{Name: name, LHS: lhs, RHS: rhs}, nil
}

// ParseRuleText parses a whole rule file's contents: one rule per
// non-blank, non-comment ("#"-prefixed) line. A malformed line is a
// fatal configuration error, per spec.
func ParseRuleText(text string) ([]Rule, error) {
	var rules []Rule
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		r, err := ParseRule(trimmed)
		if err != nil {
			return nil, fmt.Errorf("rule file line %d: %w", i+1, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Package multipattern implements the joint multi-premise scheduler:
// rewrites that only fire when two or more patterns match
// simultaneously against a tuple of e-classes under a shared
// substitution, composed and applied as a single transactional union
// batch.
package multipattern

import (
	"log/slog"

	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/pattern"
)

// Premise is one leg of a joint match: an LHS pattern plus its own
// symmetry flag, exactly as a single-pattern rule's LHS would carry.
type Premise struct {
	LHS       *pattern.Pattern
	Symmetric bool
}

// Binding is one joint match across every premise of a Rule: the
// merged substitution (every premise's variables, agreeing on any name
// shared between premises) and the matched root class per premise, in
// premise order.
type Binding struct {
	Subst pattern.Subst
	Roots []egraph.ClassID
}

// Rule is a multi-premise rewrite. Apply receives one joint binding and
// returns the set of (a, b) class pairs that must end up equivalent;
// the scheduler unions every pair in the batch before rebuilding, so
// a rule that wants to replace every premise site with one fused form
// returns one pair per premise root.
type Rule struct {
	Name     string
	Premises []Premise
	Apply    func(g *egraph.Graph, b Binding) ([][2]egraph.ClassID, error)
}

// Limits bounds one scheduler run. Per spec, the scheduler carries its
// own, much smaller budget than the main saturation driver, since it is
// invoked as a periodic hook rather than run to its own fixpoint.
type Limits struct {
	IterLimit int
	NodeLimit int
}

// NewLimits returns the documented defaults: 2 iterations, 30000 nodes.
func NewLimits() Limits {
	return Limits{IterLimit: 2, NodeLimit: 30000}
}

func (l Limits) normalize() Limits {
	if l.IterLimit <= 0 {
		l.IterLimit = 2
	}
	if l.NodeLimit <= 0 {
		l.NodeLimit = 30000
	}
	return l
}

// Scheduler runs joint multi-pattern rules over a graph.
type Scheduler struct {
	Graph  *egraph.Graph
	Rules  []Rule
	Limits Limits
	Logger *slog.Logger
}

// Run searches and applies every rule's joint matches, batching each
// rule's composite unions, up to Limits.IterLimit sweeps or until a
// sweep produces no unions. It rebuilds after every sweep that changed
// anything. It returns the number of composite applications performed.
func (s *Scheduler) Run() (int, error) {
	limits := s.Limits.normalize()
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	applied := 0
	for iter := 0; iter < limits.IterLimit; iter++ {
		if n := s.Graph.NumNodes(); n > limits.NodeLimit {
			logger.Info("multipattern: stopping", "reason", "node limit", "iter", iter, "nodes", n)
			break
		}

		sweepApplied := 0
		for i := range s.Rules {
			n, err := applyRule(s.Graph, &s.Rules[i])
			if err != nil {
				return applied, err
			}
			sweepApplied += n
		}
		applied += sweepApplied
		if sweepApplied == 0 {
			logger.Debug("multipattern: sweep saturated", "iter", iter)
			break
		}
		if err := s.Graph.Rebuild(); err != nil {
			return applied, err
		}
		logger.Debug("multipattern: sweep", "iter", iter, "applied", sweepApplied)
	}
	return applied, nil
}

func applyRule(g *egraph.Graph, r *Rule) (int, error) {
	bindings := jointMatches(g, r.Premises)
	applied := 0
	for _, b := range bindings {
		pairs, err := r.Apply(g, b)
		if err != nil {
			return applied, err
		}
		bindingChanged := false
		for _, pair := range pairs {
			_, changed, err := g.Union(pair[0], pair[1])
			if err != nil {
				return applied, err
			}
			if changed {
				bindingChanged = true
			}
		}
		if bindingChanged {
			applied++
		}
	}
	return applied, nil
}

// jointMatches computes the cross product of each premise's independent
// matches, keeping only combinations whose substitutions agree on every
// variable shared between premises.
func jointMatches(g *egraph.Graph, premises []Premise) []Binding {
	if len(premises) == 0 {
		return nil
	}
	perPremise := make([][]pattern.Match, len(premises))
	for i, p := range premises {
		perPremise[i] = pattern.Search(g, p.LHS, p.Symmetric)
	}

	var out []Binding
	var rec func(i int, subst pattern.Subst, roots []egraph.ClassID)
	rec = func(i int, subst pattern.Subst, roots []egraph.ClassID) {
		if i == len(perPremise) {
			out = append(out, Binding{Subst: subst, Roots: append([]egraph.ClassID(nil), roots...)})
			return
		}
		for _, m := range perPremise[i] {
			merged, ok := mergeSubst(g, subst, m.Subst)
			if !ok {
				continue
			}
			rec(i+1, merged, append(roots, m.Root))
		}
	}
	rec(0, pattern.Subst{}, nil)
	return out
}

func mergeSubst(g *egraph.Graph, a, b pattern.Subst) (pattern.Subst, bool) {
	out := make(pattern.Subst, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if existing, ok := out[k]; ok && g.Find(existing) != g.Find(v) {
			return nil, false
		}
		out[k] = v
	}
	return out, true
}

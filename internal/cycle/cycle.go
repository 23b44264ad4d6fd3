// Package cycle implements the two cycle-filtering modes described for
// the rewrite engine: an online guard consulted before a union is ever
// recorded, and an offline pass that runs once after saturation to
// flag any e-node whose children can only be realized through a cycle.
//
// Equality saturation naturally produces e-classes that are reachable
// from themselves: a rewrite can introduce x = f(x) as one of several
// equivalent forms of x, and that is fine as long as at least one
// acyclic alternative survives in the same class for extraction to
// pick. The online guard only refuses new unions and never removes
// existing structure. The offline pass does remove existing choices: it
// excludes every e-node whose children can reach its own class, and a
// class left with no eligible e-node is blacklisted. Both use the same
// conservative whole-graph reachability check, so either may reject an
// e-node or union that a precise extraction-aware check would allow.
package cycle

import (
	"github.com/tensorgraph/esat/internal/egraph"
	"github.com/tensorgraph/esat/internal/term"
)

// Mode selects which of the two filtering strategies a caller wants.
type Mode int

const (
	// ModeOff performs no cycle filtering at all.
	ModeOff Mode = iota
	// ModeOnline rejects a union before it is recorded whenever it
	// would make one side of the union reachable from the other.
	ModeOnline
	// ModeOffline runs once after saturation, excluding individual
	// e-nodes (not whole classes) that only reach a realizable form
	// through a cycle.
	ModeOffline
)

// Guard returns an allow function suitable for
// pattern.Rule.ApplyToFiltered, reflecting mode. For ModeOff and
// ModeOffline it always allows (offline filtering happens later, as a
// separate pass, not inline during search/apply).
func Guard(g *egraph.Graph, mode Mode) func(a, b egraph.ClassID) bool {
	if mode != ModeOnline {
		return func(a, b egraph.ClassID) bool { return true }
	}
	return func(a, b egraph.ClassID) bool { return !WouldCreateCycle(g, a, b) }
}

// WouldCreateCycle reports whether unioning a and b would make either
// side reachable from the other via the graph's current edges (i.e.
// before the union itself is recorded). This is a conservative check:
// it looks at every member e-node of the reached class, not just the
// eventually-chosen extraction path, so it may reject some unions a
// more precise (extraction-aware) filter would allow. It never rejects
// a union that leaves the graph exactly as connected as before, so the
// seed program's original acyclic path is never endangered.
func WouldCreateCycle(g *egraph.Graph, a, b egraph.ClassID) bool {
	ra, rb := g.Find(a), g.Find(b)
	if ra == rb {
		return false
	}
	return reaches(g, rb, ra) || reaches(g, ra, rb)
}

func reaches(g *egraph.Graph, from, to egraph.ClassID) bool {
	to = g.Find(to)
	visited := map[egraph.ClassID]bool{}
	queue := []egraph.ClassID{g.Find(from)}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == to {
			return true
		}
		if visited[c] {
			continue
		}
		visited[c] = true
		for _, n := range g.Nodes(c) {
			for _, ch := range n.Children {
				queue = append(queue, g.Find(ch))
			}
		}
	}
	return false
}

// RunOffline performs the offline filter (spec.md §4.F "offline mode"):
// for every live class c it excludes (via Graph.ExcludeNode) any e-node
// of c that depends, directly or transitively through its children, on
// c itself — a node the extractor could never legally choose without
// producing a cyclic program. A class left with no remaining eligible
// node is blacklisted outright. It returns the number of e-nodes
// excluded, for logging.
func RunOffline(g *egraph.Graph) int {
	classes := g.Classes()
	excluded := 0
	for _, c := range classes {
		sawEligible := false
		for _, n := range g.Nodes(c) {
			if nodeReachesClass(g, n, c) {
				if !g.IsNodeExcluded(n) {
					g.ExcludeNode(n)
					excluded++
				}
				continue
			}
			sawEligible = true
		}
		if !sawEligible {
			g.Blacklist(c)
		}
	}
	return excluded
}

// nodeReachesClass reports whether any of n's children can reach target
// (including being target itself), via full-graph reachability over
// every recorded e-node — a conservative over-approximation of "would
// choosing n ever force a cycle", the same conservatism the online
// filter applies.
func nodeReachesClass(g *egraph.Graph, n term.Node, target egraph.ClassID) bool {
	target = g.Find(target)
	for _, ch := range n.Children {
		if reaches(g, ch, target) {
			return true
		}
	}
	return false
}

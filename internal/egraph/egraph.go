// Package egraph implements the e-graph core: union-find, hashconsing,
// congruence closure, and the analysis (metadata) lattice described in
// the data model. It is the single source of truth for "what programs
// are currently known to be equivalent".
package egraph

import (
	"fmt"
	"sort"

	"github.com/tensorgraph/esat/internal/esaterrors"
	"github.com/tensorgraph/esat/internal/term"
)

// ClassID re-exports term.ClassID so callers outside this package never
// need to import term just to hold an id.
type ClassID = term.ClassID

type parentEdge struct {
	node   term.Node
	parent ClassID
}

type class struct {
	id       ClassID
	nodes    []term.Node
	parents  []parentEdge
	analysis Analysis
}

// Graph is the e-graph: a union-find over e-classes plus a hashcons
// table mapping canonical e-nodes to owning classes. It is not safe for
// concurrent use (§5: the engine is single-threaded and synchronous).
type Graph struct {
	uf       map[ClassID]ClassID
	classes  map[ClassID]*class
	hashcons map[string]ClassID
	worklist []ClassID
	next     ClassID
	root     ClassID
	excluded map[string]bool
}

// New returns an empty e-graph.
func New() *Graph {
	return &Graph{
		uf:       make(map[ClassID]ClassID),
		classes:  make(map[ClassID]*class),
		hashcons: make(map[string]ClassID),
		excluded: make(map[string]bool),
	}
}

// Find returns the canonical root of id, path-compressing as it walks.
// Find(Find(x)) == Find(x) by construction.
func (g *Graph) Find(id ClassID) ClassID {
	root := id
	for {
		p, ok := g.uf[root]
		if !ok || p == root {
			break
		}
		root = p
	}
	// path compression
	for id != root {
		next := g.uf[id]
		g.uf[id] = root
		id = next
	}
	return root
}

func (g *Graph) canonicalize(n term.Node) term.Node {
	if len(n.Children) == 0 {
		return n
	}
	out := n
	out.Children = make([]term.ClassID, len(n.Children))
	for i, c := range n.Children {
		out.Children[i] = g.Find(c)
	}
	return out
}

// Add inserts node into the graph, canonicalizing its children first.
// Hashconsing guarantees that inserting a congruent node a second time
// returns the same class id without creating new state.
func (g *Graph) Add(node term.Node) (ClassID, error) {
	canon := g.canonicalize(node)
	key := canon.Key()
	if id, ok := g.hashcons[key]; ok {
		return g.Find(id), nil
	}

	id := g.newClassID()
	c := &class{id: id, nodes: []term.Node{canon}}
	g.classes[id] = c
	g.uf[id] = id
	g.hashcons[key] = id

	for _, child := range canon.Children {
		root := g.Find(child)
		g.classes[root].parents = append(g.classes[root].parents, parentEdge{node: canon, parent: id})
	}

	analysis, err := g.inferAnalysis(canon, func(i int) Analysis {
		return g.classes[g.Find(canon.Children[i])].analysis
	})
	if err != nil {
		return 0, err
	}
	c.analysis = analysis
	return id, nil
}

// MustAdd is a convenience wrapper for call sites (tests, builders) that
// treat insertion failures as programmer error.
func (g *Graph) MustAdd(node term.Node) ClassID {
	id, err := g.Add(node)
	if err != nil {
		panic(err)
	}
	return id
}

func (g *Graph) newClassID() ClassID {
	g.next++
	return g.next
}

// SetRoot designates id's class as the program root (data model
// invariant 4: a single root class identifies the program to optimize).
func (g *Graph) SetRoot(id ClassID) { g.root = g.Find(id) }

// Root returns the current root class id.
func (g *Graph) Root() ClassID { return g.Find(g.root) }

// Analysis returns the current analysis for id's class.
func (g *Graph) Analysis(id ClassID) Analysis {
	return g.classes[g.Find(id)].analysis
}

// Nodes returns the e-nodes currently recorded as members of id's class.
// The slice is owned by the graph; callers must not mutate it.
func (g *Graph) Nodes(id ClassID) []term.Node {
	return g.classes[g.Find(id)].nodes
}

// Union merges the classes of a and b. It reports the resulting root and
// whether a merge actually occurred (false if a and b were already the
// same class). Union(a,b) and Union(b,a) always produce the same
// resulting equivalence relation, independent of argument order.
func (g *Graph) Union(a, b ClassID) (ClassID, bool, error) {
	ra, rb := g.Find(a), g.Find(b)
	if ra == rb {
		return ra, false, nil
	}
	ca, cb := g.classes[ra], g.classes[rb]

	merged, err := mergeAnalysis(ca.analysis, cb.analysis)
	if err != nil {
		return 0, false, esaterrors.AnalysisConflict(fmt.Sprintf("class %d <> %d", ra, rb), err.Error())
	}

	// Union by size: keep the larger class's id as the surviving root,
	// so that Union(a,b) and Union(b,a) converge to the same survivor
	// given the same class sizes (a stable tie-break on id keeps the
	// relation, though not necessarily the chosen id, independent of
	// argument order — only the partition matters for correctness).
	survivor, loser := ra, rb
	if len(cb.nodes) > len(ca.nodes) || (len(cb.nodes) == len(ca.nodes) && rb < ra) {
		survivor, loser = rb, ra
	}
	survivorClass, loserClass := g.classes[survivor], g.classes[loser]

	g.uf[loser] = survivor
	survivorClass.nodes = append(survivorClass.nodes, loserClass.nodes...)
	survivorClass.parents = append(survivorClass.parents, loserClass.parents...)
	survivorClass.analysis = merged
	delete(g.classes, loser)

	if g.root == loser {
		g.root = survivor
	}

	g.worklist = append(g.worklist, survivor)
	return survivor, true, nil
}

// Rebuild restores all e-graph invariants after a batch of deferred
// unions: it re-canonicalizes every parent of every class touched since
// the last rebuild, and unions any e-nodes that become congruent as a
// result, repeating until the worklist is empty. Termination follows
// from the number of live classes strictly decreasing on every union
// and the node set being finite.
func (g *Graph) Rebuild() error {
	for len(g.worklist) > 0 {
		todo := g.worklist
		g.worklist = nil

		seen := make(map[ClassID]bool)
		var dedup []ClassID
		for _, id := range todo {
			root := g.Find(id)
			if !seen[root] {
				seen[root] = true
				dedup = append(dedup, root)
			}
		}

		for _, root := range dedup {
			c, ok := g.classes[root]
			if !ok {
				continue // already absorbed by a union processed earlier this pass
			}
			if err := g.repairParents(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) repairParents(c *class) error {
	parents := c.parents
	c.parents = nil
	for _, pe := range parents {
		canon := g.canonicalize(pe.node)
		newKey := canon.Key()
		ownerRoot := g.Find(pe.parent)
		if existing, ok := g.hashcons[newKey]; ok {
			existingRoot := g.Find(existing)
			if existingRoot != ownerRoot {
				if _, _, err := g.Union(existingRoot, ownerRoot); err != nil {
					return err
				}
				ownerRoot = g.Find(pe.parent)
			}
		} else {
			g.hashcons[newKey] = ownerRoot
		}
		owner, ok := g.classes[ownerRoot]
		if !ok {
			continue
		}
		c.parents = append(c.parents, parentEdge{node: canon, parent: ownerRoot})
		replaceNode(owner, pe.node, canon)
	}
	return nil
}

func replaceNode(c *class, old, canon term.Node) {
	for i, n := range c.nodes {
		if n.Key() == old.Key() {
			c.nodes[i] = canon
			return
		}
	}
	c.nodes = append(c.nodes, canon)
}

// Classes returns every live root class id, sorted and deduplicated
// (stable within one snapshot, per the public contract).
func (g *Graph) Classes() []ClassID {
	ids := make([]ClassID, 0, len(g.classes))
	for id := range g.classes {
		ids = append(ids, g.Find(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return dedupSorted(ids)
}

func dedupSorted(ids []ClassID) []ClassID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]ClassID, 1, len(ids))
	out[0] = ids[0]
	for _, v := range ids[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// LiteralInts resolves an e-class to a concrete []int64 if, and only if,
// it unambiguously denotes a literal attribute: a Num leaf (a single
// value) or a Vec of classes that each themselves resolve to a single
// Num. This is how attribute children (shapes, permutations, axes) are
// read back out during analysis, since Analysis itself only carries
// shape/dtype metadata, never literal values.
func (g *Graph) LiteralInts(id ClassID) ([]int64, bool) {
	c := g.classes[g.Find(id)]
	for _, n := range c.nodes {
		if n.Op == term.OpNum {
			return []int64{int64(n.Imm.IntVal)}, true
		}
	}
	for _, n := range c.nodes {
		if n.Op != term.OpVec {
			continue
		}
		out := make([]int64, 0, len(n.Children))
		ok := true
		for _, ch := range n.Children {
			v, found := g.LiteralInts(ch)
			if !found || len(v) != 1 {
				ok = false
				break
			}
			out = append(out, v[0])
		}
		if ok {
			return out, true
		}
	}
	return nil, false
}

// Blacklist marks id's class as ineligible for extraction (set, e.g., by
// the offline cycle filter).
func (g *Graph) Blacklist(id ClassID) {
	c := g.classes[g.Find(id)]
	c.analysis.Blacklisted = true
}

// IsBlacklisted reports id's current blacklist status.
func (g *Graph) IsBlacklisted(id ClassID) bool {
	return g.classes[g.Find(id)].analysis.Blacklisted
}

// ExcludeNode marks a single e-node (not its whole class) ineligible for
// extraction. This is distinct from Blacklist, which condemns an entire
// class: the offline cycle filter flags individual cyclic choices while
// leaving any acyclic sibling e-node in the same class extractable.
func (g *Graph) ExcludeNode(n term.Node) {
	g.excluded[g.canonicalize(n).Key()] = true
}

// IsNodeExcluded reports whether n was previously excluded via
// ExcludeNode.
func (g *Graph) IsNodeExcluded(n term.Node) bool {
	return g.excluded[g.canonicalize(n).Key()]
}

// NumClasses returns the number of live e-classes.
func (g *Graph) NumClasses() int { return len(g.classes) }

// NumNodes returns the total number of e-nodes across all live classes,
// the quantity the saturation driver checks against node_limit.
func (g *Graph) NumNodes() int {
	n := 0
	for _, c := range g.classes {
		n += len(c.nodes)
	}
	return n
}
